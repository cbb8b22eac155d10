package services

import (
	"context"

	"github.com/electvote/electvote/internal/clock"
	"github.com/electvote/electvote/internal/errors"
	"github.com/electvote/electvote/internal/logger"
	"github.com/electvote/electvote/internal/models"
	"github.com/electvote/electvote/internal/repository"
	"github.com/electvote/electvote/internal/timewindow"
)

// BallotServiceRepository defines the repository methods needed by BallotService
type BallotServiceRepository interface {
	repository.ElectionRepository
	repository.CandidateRepository
	repository.BallotRepository
}

// BallotService admits at most one ballot per voter and election
type BallotService struct {
	log     logger.Logger
	repo    BallotServiceRepository
	clock   clock.Clock
	events  EventPublisher
	metrics Recorder
}

// NewBallotService creates a new BallotService
func NewBallotService(log logger.Logger, repo BallotServiceRepository, clk clock.Clock) *BallotService {
	return &BallotService{
		log:     log,
		repo:    repo,
		clock:   clk,
		events:  noopPublisher{},
		metrics: noopRecorder{},
	}
}

// SetPublisher sets the publisher for ballot events
func (s *BallotService) SetPublisher(p EventPublisher) {
	s.events = p
}

// SetRecorder sets the metrics recorder
func (s *BallotService) SetRecorder(r Recorder) {
	s.metrics = r
}

// CastVote admits a ballot for the voter. The store's UNIQUE(voter_id,
// election_id) decides between concurrent attempts; there is no prior
// existence check.
func (s *BallotService) CastVote(ctx context.Context, voter models.Actor, electionID, candidateID int64) (*models.Ballot, error) {
	if voter.Role != models.RoleVoter && voter.Role != models.RoleCandidate {
		return nil, errors.Unauthorized("only voters can cast ballots")
	}

	e, err := s.repo.GetElection(ctx, electionID)
	if err != nil {
		return nil, storeError(err, "election", electionID)
	}

	now := s.clock.Now()
	phase, err := timewindow.ClassifyElection(*e, now)
	if err != nil {
		s.log.Warn("Election has malformed window", "election_id", electionID, "error", err)
		return nil, err
	}
	if phase != timewindow.PhaseOngoing {
		s.reject("not_active")
		s.log.Debug("Ballot outside voting window", "election_id", electionID, "voter_id", voter.ID, "phase", phase)
		return nil, errors.Newf(errors.ErrNotActive, "election %d is not active (%s)", electionID, phase)
	}

	c, err := s.repo.GetCandidate(ctx, candidateID)
	if err == repository.ErrNotFound || (err == nil && c.ElectionID != electionID) {
		s.reject("invalid_candidate")
		return nil, errors.Newf(errors.ErrInvalidCandidate, "candidate %d is not part of election %d", candidateID, electionID)
	}
	if err != nil {
		return nil, errors.Internal(err)
	}

	b := &models.Ballot{
		VoterID:     voter.ID,
		CandidateID: candidateID,
		ElectionID:  electionID,
		CastAt:      timewindow.FormatInstant(now),
	}
	id, err := s.repo.InsertBallot(ctx, b)
	switch err {
	case nil:
	case repository.ErrDuplicate:
		s.reject("already_voted")
		s.log.Info("Duplicate ballot refused", "election_id", electionID, "voter_id", voter.ID)
		return nil, errors.Newf(errors.ErrAlreadyVoted, "you have already voted in election %d", electionID)
	case repository.ErrInvalidReference:
		s.reject("invalid_candidate")
		return nil, errors.Newf(errors.ErrInvalidCandidate, "candidate %d is not part of election %d", candidateID, electionID)
	case repository.ErrUnknownVoter:
		s.reject("unknown_voter")
		return nil, errors.NotFoundf("voter %d not found", voter.ID)
	default:
		s.log.Error("Failed to record ballot", "election_id", electionID, "voter_id", voter.ID, "error", err)
		return nil, errors.Internal(err)
	}
	b.ID = id

	s.log.Info("Ballot recorded", "election_id", electionID, "voter_id", voter.ID, "candidate_id", candidateID)
	s.metrics.BallotAdmitted()
	s.events.Publish(EventBallotAdmitted, map[string]interface{}{
		"election_id":  electionID,
		"candidate_id": candidateID,
		"cast_at":      b.CastAt,
	})
	return b, nil
}

// HasVoted reports whether the voter already has a ballot in the election
func (s *BallotService) HasVoted(ctx context.Context, voterID, electionID int64) (bool, error) {
	voted, err := s.repo.HasVoted(ctx, voterID, electionID)
	if err != nil {
		return false, errors.Internal(err)
	}
	return voted, nil
}

func (s *BallotService) reject(reason string) {
	s.metrics.BallotRejected(reason)
}
