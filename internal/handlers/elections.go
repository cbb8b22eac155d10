package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/electvote/electvote/internal/models"
	"github.com/electvote/electvote/internal/services"
	"github.com/electvote/electvote/internal/timewindow"
)

// handleListElections lists elections in start order. Optional from/to
// bound the start instant; they are local wall-clock times read with
// tz_offset (minutes east of UTC) unless they carry their own zone.
func (h *Handlers) handleListElections(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.ElectionFilter{
		ExcludeCancelled: q.Get("include_cancelled") != "true",
	}

	offset := 0
	if raw := q.Get("tz_offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.fail(w, r, BadRequest("Invalid tz_offset query parameter"))
			return
		}
		offset = n
	}
	for name, dst := range map[string]*string{"from": &filter.From, "to": &filter.To} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		t, err := timewindow.NormalizeLocal(raw, offset)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		*dst = timewindow.FormatInstant(t)
	}

	elections, err := h.Elections.ListElections(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondOK(w, elections)
}

// handleListActiveElections lists the ongoing elections
func (h *Handlers) handleListActiveElections(w http.ResponseWriter, r *http.Request) {
	elections, err := h.Elections.ListActiveElections(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondOK(w, elections)
}

// handleCurrentElection returns the most recently started ongoing election
func (h *Handlers) handleCurrentElection(w http.ResponseWriter, r *http.Request) {
	e, err := h.Elections.CurrentElection(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondOK(w, e)
}

func (h *Handlers) handleGetElection(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	e, err := h.Elections.GetElection(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondOK(w, e)
}

func (h *Handlers) handleListCandidates(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	candidates, err := h.Elections.ListCandidates(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondOK(w, candidates)
}

// handleGetPhase reports the admission phase with roster and ballot counts
func (h *Handlers) handleGetPhase(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	summary, err := h.Elections.ClassifyPhase(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondOK(w, PhaseResponse{
		ElectionID: id,
		Phase:      string(summary.Phase),
		Status:     summary.Status,
		Candidates: summary.Candidates,
		Ballots:    summary.Ballots,
	})
}

// handleBallotQR serves a PNG QR code linking to the election's voting page
func (h *Handlers) handleBallotQR(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	png, err := h.Elections.BallotQR(r.Context(), id, h.baseURL(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(png)
}

// Admin

// handleScheduleElection converts the local wall-clock window to UTC and
// schedules the election
func (h *Handlers) handleScheduleElection(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req ScheduleElectionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	start, err := timewindow.NormalizeLocal(req.StartTime, req.TZOffset)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	end, err := timewindow.NormalizeLocal(req.EndTime, req.TZOffset)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	e, err := h.Elections.ScheduleElection(r.Context(), actor, services.ScheduleInput{
		Title:          req.Title,
		Category:       req.Category,
		Year:           req.Year,
		Start:          start,
		End:            end,
		CandidateLimit: req.CandidateLimit,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondCreated(w, e)
}

// handleAdminElections lists the elections created by the acting admin
func (h *Handlers) handleAdminElections(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	elections, err := h.Elections.ListElections(r.Context(), models.ElectionFilter{CreatedBy: &actor.ID})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondOK(w, elections)
}

func (h *Handlers) handleCancelElection(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	id, err := parseIDParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.Elections.CancelElection(r.Context(), actor, id); err != nil {
		h.fail(w, r, err)
		return
	}
	respondSuccess(w, "Election cancelled")
}

func (h *Handlers) handleAddCandidate(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	id, err := parseIDParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req CandidateRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	c, err := h.Elections.AddCandidate(r.Context(), actor, id, services.CandidateInput{
		Name:     req.Name,
		Category: req.Category,
		PhotoRef: req.PhotoRef,
		UserID:   req.UserID,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondCreated(w, c)
}

func (h *Handlers) handleTally(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	result, err := h.Tally.Tally(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondOK(w, result)
}

// handleCurrentTally tallies the most recently started ongoing election
func (h *Handlers) handleCurrentTally(w http.ResponseWriter, r *http.Request) {
	e, err := h.Elections.CurrentElection(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	result, err := h.Tally.Tally(r.Context(), e.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondOK(w, result)
}

// handleListApplications lists applications filtered by election_id and status
func (h *Handlers) handleListApplications(w http.ResponseWriter, r *http.Request) {
	electionID, err := parseIDQuery(r, "election_id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	status := models.ApplicationStatus(strings.ToLower(r.URL.Query().Get("status")))
	switch status {
	case "", models.ApplicationPending, models.ApplicationApproved, models.ApplicationRejected:
	default:
		h.fail(w, r, BadRequest("Invalid status query parameter"))
		return
	}

	apps, err := h.Applications.ListApplications(r.Context(), models.ApplicationFilter{
		ElectionID: electionID,
		Status:     status,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondOK(w, apps)
}

func (h *Handlers) handleResolveApplication(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	id, err := parseIDParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req ResolveRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	decision := models.Decision(strings.ToLower(strings.TrimSpace(req.Decision)))
	app, err := h.Applications.ResolveApplication(r.Context(), actor, id, decision)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondOK(w, app)
}
