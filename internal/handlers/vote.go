package handlers

import (
	"fmt"
	"net/http"

	"github.com/electvote/electvote/internal/errors"
	"github.com/electvote/electvote/internal/models"
	"github.com/electvote/electvote/internal/services"
)

// handleCastVote admits one ballot for the authenticated voter
func (h *Handlers) handleCastVote(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	electionID, err := parseIDParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req BallotRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.CandidateID <= 0 {
		h.fail(w, r, BadRequest("candidate_id is required"))
		return
	}

	ballot, err := h.Ballots.CastVote(r.Context(), actor, electionID, req.CandidateID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondCreated(w, ballot)
}

// handleVoterPanel returns the current election, its roster, and whether
// the voter already voted. With no election running the panel is empty.
func (h *Handlers) handleVoterPanel(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	panel := VoterPanelResponse{Candidates: []models.Candidate{}}
	e, err := h.Elections.CurrentElection(r.Context())
	if err != nil {
		if errors.KindOf(err) == errors.ErrNotFound {
			respondOK(w, panel)
			return
		}
		h.fail(w, r, err)
		return
	}
	panel.Election = e

	if panel.Candidates, err = h.Elections.ListCandidates(r.Context(), e.ID); err != nil {
		h.fail(w, r, err)
		return
	}
	if panel.HasVoted, err = h.Ballots.HasVoted(r.Context(), actor.ID, e.ID); err != nil {
		h.fail(w, r, err)
		return
	}
	respondOK(w, panel)
}

// handleSubmitApplication files a candidacy request for the actor
func (h *Handlers) handleSubmitApplication(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	electionID, err := parseIDParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req ApplicationRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	app, err := h.Applications.SubmitApplication(r.Context(), actor, electionID, services.CandidateInput{
		Name:     req.Name,
		Category: req.Category,
		PhotoRef: req.PhotoRef,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondCreated(w, app)
}

// handleVoteLink is the landing point of ballot QR codes. It sends the
// scanner to the election's public record.
func (h *Handlers) handleVoteLink(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if _, err := h.Elections.GetElection(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	http.Redirect(w, r, fmt.Sprintf("/api/elections/%d", id), http.StatusFound)
}
