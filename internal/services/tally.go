package services

import (
	"context"
	"sort"

	"github.com/electvote/electvote/internal/clock"
	"github.com/electvote/electvote/internal/errors"
	"github.com/electvote/electvote/internal/logger"
	"github.com/electvote/electvote/internal/models"
	"github.com/electvote/electvote/internal/repository"
	"github.com/electvote/electvote/internal/timewindow"
)

// TallyServiceRepository defines the repository methods needed by TallyService
type TallyServiceRepository interface {
	repository.ElectionRepository
	repository.BallotRepository
}

// TallyService aggregates committed ballots into ranked results
type TallyService struct {
	log   logger.Logger
	repo  TallyServiceRepository
	clock clock.Clock
}

// NewTallyService creates a new TallyService
func NewTallyService(log logger.Logger, repo TallyServiceRepository, clk clock.Clock) *TallyService {
	return &TallyService{log: log, repo: repo, clock: clk}
}

// TallyResult is the ranked outcome of an election at one point in time
type TallyResult struct {
	ElectionID   int64             `json:"election_id"`
	Title        string            `json:"title"`
	Status       string            `json:"status,omitempty"`
	TotalBallots int               `json:"total_ballots"`
	Rows         []models.TallyRow `json:"rows"`
	ComputedAt   string            `json:"computed_at"`
}

// Tally counts ballots per candidate, zero-vote candidates included. It may
// run in any phase; ballots of cancelled elections still count.
func (s *TallyService) Tally(ctx context.Context, electionID int64) (*TallyResult, error) {
	e, err := s.repo.GetElection(ctx, electionID)
	if err != nil {
		return nil, storeError(err, "election", electionID)
	}

	rows, err := s.repo.TallyElection(ctx, electionID)
	if err != nil {
		s.log.Error("Failed to tally election", "election_id", electionID, "error", err)
		return nil, errors.Internal(err)
	}
	rankRows(rows)

	now := s.clock.Now()
	result := &TallyResult{
		ElectionID: electionID,
		Title:      e.Title,
		Rows:       rows,
		ComputedAt: timewindow.FormatInstant(now),
	}
	for _, row := range rows {
		result.TotalBallots += row.Votes
	}

	status, err := timewindow.Status(*e, now)
	if err != nil {
		s.log.Warn("Election has malformed window", "election_id", electionID, "error", err)
	} else {
		result.Status = string(status)
	}
	return result, nil
}

// rankRows orders by votes descending, then name (byte-wise), then candidate
// id, and assigns 1-based positions.
func rankRows(rows []models.TallyRow) {
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Votes != b.Votes {
			return a.Votes > b.Votes
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.CandidateID < b.CandidateID
	})
	for i := range rows {
		rows[i].Rank = i + 1
	}
}
