package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/skip2/go-qrcode"

	"github.com/electvote/electvote/internal/clock"
	"github.com/electvote/electvote/internal/errors"
	"github.com/electvote/electvote/internal/logger"
	"github.com/electvote/electvote/internal/models"
	"github.com/electvote/electvote/internal/repository"
	"github.com/electvote/electvote/internal/timewindow"
)

// qrSize is the edge length in pixels of generated ballot QR codes
const qrSize = 256

// ElectionServiceRepository defines the repository methods needed by ElectionService
type ElectionServiceRepository interface {
	repository.ElectionRepository
	repository.CandidateRepository
	CountBallots(ctx context.Context, electionID int64) (int, error)
}

// ElectionService owns elections, their rosters and lifecycle transitions
type ElectionService struct {
	log     logger.Logger
	repo    ElectionServiceRepository
	clock   clock.Clock
	events  EventPublisher
	metrics Recorder
}

// NewElectionService creates a new ElectionService
func NewElectionService(log logger.Logger, repo ElectionServiceRepository, clk clock.Clock) *ElectionService {
	return &ElectionService{
		log:     log,
		repo:    repo,
		clock:   clk,
		events:  noopPublisher{},
		metrics: noopRecorder{},
	}
}

// SetPublisher sets the publisher for lifecycle events
func (s *ElectionService) SetPublisher(p EventPublisher) {
	s.events = p
}

// SetRecorder sets the metrics recorder
func (s *ElectionService) SetRecorder(r Recorder) {
	s.metrics = r
}

// ScheduleInput holds the fields of a new election. Start and End are
// absolute instants; wall-clock conversion happens in timewindow before this.
type ScheduleInput struct {
	Title          string
	Category       string
	Year           int
	Start          time.Time
	End            time.Time
	CandidateLimit *int
}

// CandidateInput holds the fields of a roster entry or application
type CandidateInput struct {
	Name     string
	Category string
	PhotoRef string
	UserID   *int64
}

func (in CandidateInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return errors.Validation("candidate name is required")
	}
	if strings.TrimSpace(in.Category) == "" {
		return errors.Validation("candidate category is required")
	}
	return nil
}

// ScheduleElection creates an election owned by the acting admin
func (s *ElectionService) ScheduleElection(ctx context.Context, actor models.Actor, in ScheduleInput) (*models.Election, error) {
	if err := requireAdmin(actor, "schedule elections"); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(in.Title)
	category := strings.TrimSpace(in.Category)
	if title == "" || category == "" {
		return nil, errors.Validation("title and category are required for scheduling")
	}
	if err := timewindow.ValidateWindow(in.Start, in.End); err != nil {
		return nil, err
	}
	if in.CandidateLimit != nil && *in.CandidateLimit < 1 {
		return nil, errors.New(errors.ErrInvalidLimit, "candidate limit must be a positive number")
	}

	creator := actor.ID
	e := &models.Election{
		Title:          title,
		Category:       category,
		Year:           in.Year,
		StartTime:      timewindow.FormatInstant(in.Start),
		EndTime:        timewindow.FormatInstant(in.End),
		CreatedBy:      &creator,
		CandidateLimit: in.CandidateLimit,
		CreatedAt:      timewindow.FormatInstant(s.clock.Now()),
	}

	id, err := s.repo.CreateElection(ctx, e)
	if err != nil {
		s.log.Error("Failed to create election", "title", title, "error", err)
		return nil, errors.Internal(err)
	}
	e.ID = id
	s.decorate(e, s.clock.Now())

	s.log.Info("Election scheduled", "election_id", id, "title", title, "start", e.StartTime, "end", e.EndTime, "admin_id", actor.ID)
	s.metrics.ElectionScheduled()
	s.events.Publish(EventElectionScheduled, e)
	return e, nil
}

// CancelElection records a terminal cancellation. Ballots and candidates are kept.
func (s *ElectionService) CancelElection(ctx context.Context, actor models.Actor, electionID int64) error {
	if err := requireAdmin(actor, "cancel elections"); err != nil {
		return err
	}

	e, err := s.repo.GetElection(ctx, electionID)
	if err != nil {
		return storeError(err, "election", electionID)
	}
	if err := requireOwner(actor, e); err != nil {
		return err
	}
	if e.Cancelled() {
		return errors.Newf(errors.ErrAlreadyCancelled, "election %d is already cancelled", electionID)
	}

	at := timewindow.FormatInstant(s.clock.Now())
	switch err := s.repo.CancelElection(ctx, electionID, actor.ID, at); err {
	case nil:
	case repository.ErrStateChanged:
		// lost a race with another cancel
		return errors.Newf(errors.ErrAlreadyCancelled, "election %d is already cancelled", electionID)
	default:
		return storeError(err, "election", electionID)
	}

	s.log.Info("Election cancelled", "election_id", electionID, "admin_id", actor.ID)
	s.metrics.ElectionCancelled()
	s.events.Publish(EventElectionCancelled, map[string]interface{}{
		"election_id":  electionID,
		"cancelled_at": at,
	})
	return nil
}

// AddCandidate appends a roster entry while the election is under its ceiling
func (s *ElectionService) AddCandidate(ctx context.Context, actor models.Actor, electionID int64, in CandidateInput) (*models.Candidate, error) {
	if err := requireAdmin(actor, "add candidates"); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	e, err := s.repo.GetElection(ctx, electionID)
	if err != nil {
		return nil, storeError(err, "election", electionID)
	}
	if err := requireOwner(actor, e); err != nil {
		return nil, err
	}

	c := &models.Candidate{
		ElectionID: electionID,
		Name:       strings.TrimSpace(in.Name),
		Category:   strings.TrimSpace(in.Category),
		PhotoRef:   in.PhotoRef,
		UserID:     in.UserID,
		CreatedAt:  timewindow.FormatInstant(s.clock.Now()),
	}
	id, err := s.repo.CreateCandidate(ctx, c)
	switch err {
	case nil:
	case repository.ErrLimitReached:
		return nil, errors.Newf(errors.ErrLimitReached, "candidate limit reached for election %d", electionID)
	case repository.ErrInvalidReference:
		return nil, errors.Validation("linked user does not exist")
	default:
		return nil, storeError(err, "election", electionID)
	}
	c.ID = id

	s.log.Info("Candidate added", "election_id", electionID, "candidate_id", id, "name", c.Name)
	s.events.Publish(EventCandidateAdded, c)
	return c, nil
}

// GetElection returns an election with its derived status
func (s *ElectionService) GetElection(ctx context.Context, id int64) (*models.Election, error) {
	e, err := s.repo.GetElection(ctx, id)
	if err != nil {
		return nil, storeError(err, "election", id)
	}
	s.decorate(e, s.clock.Now())
	return e, nil
}

// ListElections returns elections ordered by start instant
func (s *ElectionService) ListElections(ctx context.Context, filter models.ElectionFilter) ([]models.Election, error) {
	elections, err := s.repo.ListElections(ctx, filter)
	if err != nil {
		return nil, errors.Internal(err)
	}
	now := s.clock.Now()
	result := make([]models.Election, 0, len(elections))
	for i := range elections {
		s.decorate(&elections[i], now)
		result = append(result, elections[i])
	}
	return result, nil
}

// ListActiveElections returns the elections that are ongoing right now.
// Elections with unreadable stored instants are logged and left out.
func (s *ElectionService) ListActiveElections(ctx context.Context) ([]models.Election, error) {
	elections, err := s.repo.ListElections(ctx, models.ElectionFilter{ExcludeCancelled: true})
	if err != nil {
		return nil, errors.Internal(err)
	}

	now := s.clock.Now()
	active := []models.Election{}
	for _, e := range elections {
		phase, err := timewindow.ClassifyElection(e, now)
		if err != nil {
			s.log.Warn("Skipping election with malformed window", "election_id", e.ID, "error", err)
			continue
		}
		if phase == timewindow.PhaseOngoing {
			e.Status = string(phase)
			active = append(active, e)
		}
	}
	return active, nil
}

// CurrentElection returns the most recently started ongoing election
func (s *ElectionService) CurrentElection(ctx context.Context) (*models.Election, error) {
	active, err := s.ListActiveElections(ctx)
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		return nil, errors.NotFound("no election is active right now")
	}

	// active is in start order; stored instants compare chronologically
	current := active[0]
	for _, e := range active[1:] {
		if e.StartTime >= current.StartTime {
			current = e
		}
	}
	return &current, nil
}

// ListCandidates returns the roster of an election
func (s *ElectionService) ListCandidates(ctx context.Context, electionID int64) ([]models.Candidate, error) {
	if _, err := s.repo.GetElection(ctx, electionID); err != nil {
		return nil, storeError(err, "election", electionID)
	}
	candidates, err := s.repo.ListCandidates(ctx, electionID)
	if err != nil {
		return nil, errors.Internal(err)
	}
	if candidates == nil {
		candidates = []models.Candidate{}
	}
	return candidates, nil
}

// PhaseSummary is an election's admission phase with its roster and
// ballot counts
type PhaseSummary struct {
	ElectionID int64            `json:"election_id"`
	Phase      timewindow.Phase `json:"phase"`
	Status     string           `json:"status"`
	Candidates int              `json:"candidates"`
	Ballots    int              `json:"ballots"`
}

// ClassifyPhase classifies an election and counts its candidates and
// committed ballots. Cancelled elections classify as ended; Status
// reports the cancellation.
func (s *ElectionService) ClassifyPhase(ctx context.Context, electionID int64) (*PhaseSummary, error) {
	e, err := s.repo.GetElection(ctx, electionID)
	if err != nil {
		return nil, storeError(err, "election", electionID)
	}
	now := s.clock.Now()
	phase, err := timewindow.ClassifyElection(*e, now)
	if err != nil {
		return nil, err
	}
	status, err := timewindow.Status(*e, now)
	if err != nil {
		return nil, err
	}
	summary := &PhaseSummary{ElectionID: electionID, Phase: phase, Status: string(status)}

	if summary.Candidates, err = s.repo.CountCandidates(ctx, electionID); err != nil {
		return nil, errors.Internal(err)
	}
	if summary.Ballots, err = s.repo.CountBallots(ctx, electionID); err != nil {
		return nil, errors.Internal(err)
	}
	return summary, nil
}

// BallotQR renders a PNG QR code linking to the election's voting page
func (s *ElectionService) BallotQR(ctx context.Context, electionID int64, baseURL string) ([]byte, error) {
	if _, err := s.repo.GetElection(ctx, electionID); err != nil {
		return nil, storeError(err, "election", electionID)
	}
	url := fmt.Sprintf("%s/vote/%d", strings.TrimRight(baseURL, "/"), electionID)
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return png, nil
}

// decorate fills in the display status
func (s *ElectionService) decorate(e *models.Election, now time.Time) {
	status, err := timewindow.Status(*e, now)
	if err != nil {
		s.log.Warn("Election has malformed window", "election_id", e.ID, "error", err)
		return
	}
	e.Status = string(status)
}
