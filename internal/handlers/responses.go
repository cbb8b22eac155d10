package handlers

import "github.com/electvote/electvote/internal/models"

// PhaseResponse is the response for the phase endpoint
type PhaseResponse struct {
	ElectionID int64  `json:"election_id"`
	Phase      string `json:"phase"`
	Status     string `json:"status"`
	Candidates int    `json:"candidates"`
	Ballots    int    `json:"ballots"`
}

// VoterPanelResponse is what a voter sees on the voting page
type VoterPanelResponse struct {
	Election   *models.Election   `json:"election"`
	Candidates []models.Candidate `json:"candidates"`
	HasVoted   bool               `json:"has_voted"`
}
