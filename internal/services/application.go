package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/electvote/electvote/internal/clock"
	"github.com/electvote/electvote/internal/errors"
	"github.com/electvote/electvote/internal/logger"
	"github.com/electvote/electvote/internal/models"
	"github.com/electvote/electvote/internal/repository"
	"github.com/electvote/electvote/internal/timewindow"
)

// notifyTimeout bounds a single fire-and-forget notification
const notifyTimeout = 5 * time.Second

// ApplicationServiceRepository defines the repository methods needed by ApplicationService
type ApplicationServiceRepository interface {
	repository.ElectionRepository
	repository.ApplicationRepository
}

// ApplicationService runs candidate self-registration through admin review
type ApplicationService struct {
	log      logger.Logger
	repo     ApplicationServiceRepository
	clock    clock.Clock
	notifier Notifier
	events   EventPublisher
	metrics  Recorder

	pending sync.WaitGroup
}

// NewApplicationService creates a new ApplicationService. notifier may be nil.
func NewApplicationService(log logger.Logger, repo ApplicationServiceRepository, clk clock.Clock, notifier Notifier) *ApplicationService {
	return &ApplicationService{
		log:      log,
		repo:     repo,
		clock:    clk,
		notifier: notifier,
		events:   noopPublisher{},
		metrics:  noopRecorder{},
	}
}

// SetPublisher sets the publisher for resolution events
func (s *ApplicationService) SetPublisher(p EventPublisher) {
	s.events = p
}

// SetRecorder sets the metrics recorder
func (s *ApplicationService) SetRecorder(r Recorder) {
	s.metrics = r
}

// SubmitApplication files a pending application. Only one live (pending or
// approved) application per applicant and election is accepted.
func (s *ApplicationService) SubmitApplication(ctx context.Context, applicant models.Actor, electionID int64, in CandidateInput) (*models.CandidateApplication, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetElection(ctx, electionID); err != nil {
		return nil, storeError(err, "election", electionID)
	}

	app := &models.CandidateApplication{
		ApplicantID: applicant.ID,
		ElectionID:  electionID,
		Name:        strings.TrimSpace(in.Name),
		Category:    strings.TrimSpace(in.Category),
		PhotoRef:    in.PhotoRef,
		Status:      models.ApplicationPending,
		SubmittedAt: timewindow.FormatInstant(s.clock.Now()),
	}
	id, err := s.repo.CreateApplication(ctx, app)
	switch err {
	case nil:
	case repository.ErrDuplicate:
		s.log.Info("Duplicate application refused", "election_id", electionID, "applicant_id", applicant.ID)
		return nil, errors.Newf(errors.ErrDuplicateApplication, "you already applied to election %d", electionID)
	case repository.ErrInvalidReference:
		return nil, errors.NotFoundf("election %d not found", electionID)
	default:
		return nil, errors.Internal(err)
	}
	app.ID = id

	s.log.Info("Application submitted", "application_id", id, "election_id", electionID, "applicant_id", applicant.ID)
	return app, nil
}

// ResolveApplication approves or rejects a pending application. Approval is
// one transaction in the store; the applicant is notified afterwards without
// blocking the caller.
func (s *ApplicationService) ResolveApplication(ctx context.Context, resolver models.Actor, applicationID int64, decision models.Decision) (*models.CandidateApplication, error) {
	if err := requireAdmin(resolver, "resolve applications"); err != nil {
		return nil, err
	}
	if decision != models.DecisionApprove && decision != models.DecisionReject {
		return nil, errors.Validationf("decision must be %q or %q", models.DecisionApprove, models.DecisionReject)
	}

	app, err := s.repo.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, storeError(err, "application", applicationID)
	}
	e, err := s.repo.GetElection(ctx, app.ElectionID)
	if err != nil {
		return nil, storeError(err, "election", app.ElectionID)
	}
	if err := requireOwner(resolver, e); err != nil {
		return nil, err
	}

	at := timewindow.FormatInstant(s.clock.Now())
	if decision == models.DecisionApprove {
		var c *models.Candidate
		c, err = s.repo.ApproveApplication(ctx, applicationID, resolver.ID, at)
		if err == nil {
			app.Status = models.ApplicationApproved
			app.CandidateID = &c.ID
		}
	} else {
		err = s.repo.RejectApplication(ctx, applicationID, resolver.ID, at)
		if err == nil {
			app.Status = models.ApplicationRejected
		}
	}
	switch err {
	case nil:
	case repository.ErrStateChanged:
		s.log.Info("Application already resolved", "application_id", applicationID, "admin_id", resolver.ID)
		return nil, errors.Newf(errors.ErrAlreadyResolved, "application %d is already resolved", applicationID)
	case repository.ErrLimitReached:
		return nil, errors.Newf(errors.ErrLimitReached, "candidate limit reached for election %d", app.ElectionID)
	default:
		return nil, storeError(err, "application", applicationID)
	}
	resolvedBy := resolver.ID
	app.ResolvedBy = &resolvedBy
	app.ResolvedAt = at

	s.log.Info("Application resolved", "application_id", applicationID, "decision", decision, "admin_id", resolver.ID)
	s.metrics.ApplicationResolved(string(decision))
	s.events.Publish(EventApplicationResolved, app)
	s.notifyApplicant(app, e)
	return app, nil
}

// ListApplications returns applications oldest first
func (s *ApplicationService) ListApplications(ctx context.Context, filter models.ApplicationFilter) ([]models.CandidateApplication, error) {
	apps, err := s.repo.ListApplications(ctx, filter)
	if err != nil {
		return nil, errors.Internal(err)
	}
	if apps == nil {
		apps = []models.CandidateApplication{}
	}
	return apps, nil
}

// Wait blocks until in-flight notifications have finished
func (s *ApplicationService) Wait() {
	s.pending.Wait()
}

func (s *ApplicationService) notifyApplicant(app *models.CandidateApplication, e *models.Election) {
	if s.notifier == nil {
		return
	}

	verb := "approved"
	if app.Status == models.ApplicationRejected {
		verb = "rejected"
	}
	message := fmt.Sprintf("Your application to stand in %q was %s.", e.Title, verb)

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := s.notifier.Notify(ctx, app.ApplicantID, message); err != nil {
			s.log.Warn("Failed to notify applicant", "application_id", app.ID, "user_id", app.ApplicantID, "error", err)
		}
	}()
}
