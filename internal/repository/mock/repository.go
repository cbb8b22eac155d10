package mock

import (
	"context"

	"github.com/electvote/electvote/internal/models"
	"github.com/electvote/electvote/internal/repository"
)

// Repository wraps a real repository and allows injecting errors for testing.
// This provides a flexible way to test error paths without complex database manipulation.
//
// Usage:
//
//	realRepo := testutil.NewTestRepository(t)
//	mockRepo := mock.NewRepository(realRepo)
//	mockRepo.InsertBallotError = errors.New("database error")
//	svc := services.NewBallotService(log, mockRepo, clk, nil)
//	_, err := svc.CastVote(ctx, voter, electionID, candidateID)
//	// err will now contain the injected error
type Repository struct {
	repository.FullRepository

	// ===== User Errors =====
	CreateUserError        error
	GetUserError           error
	GetUserByUsernameError error

	// ===== Election Errors =====
	CreateElectionError error
	GetElectionError    error
	ListElectionsError  error
	CancelElectionError error

	// ===== Candidate Errors =====
	CreateCandidateError error
	GetCandidateError    error
	ListCandidatesError  error

	// ===== Application Errors =====
	CreateApplicationError  error
	ListApplicationsError   error
	ApproveApplicationError error
	RejectApplicationError  error

	// ===== Ballot Errors =====
	InsertBallotError  error
	HasVotedError      error
	CountBallotsError  error
	TallyElectionError error

	// ===== Notification Errors =====
	CreateNotificationError error
	PingError               error
}

// NewRepository creates a mock repository wrapping a real one
func NewRepository(real repository.FullRepository) *Repository {
	return &Repository{
		FullRepository: real,
	}
}

// ===== User Methods =====

func (m *Repository) CreateUser(ctx context.Context, u *models.User) (int64, error) {
	if m.CreateUserError != nil {
		return 0, m.CreateUserError
	}
	return m.FullRepository.CreateUser(ctx, u)
}

func (m *Repository) GetUser(ctx context.Context, id int64) (*models.User, error) {
	if m.GetUserError != nil {
		return nil, m.GetUserError
	}
	return m.FullRepository.GetUser(ctx, id)
}

func (m *Repository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	if m.GetUserByUsernameError != nil {
		return nil, m.GetUserByUsernameError
	}
	return m.FullRepository.GetUserByUsername(ctx, username)
}

// ===== Election Methods =====

func (m *Repository) CreateElection(ctx context.Context, e *models.Election) (int64, error) {
	if m.CreateElectionError != nil {
		return 0, m.CreateElectionError
	}
	return m.FullRepository.CreateElection(ctx, e)
}

func (m *Repository) GetElection(ctx context.Context, id int64) (*models.Election, error) {
	if m.GetElectionError != nil {
		return nil, m.GetElectionError
	}
	return m.FullRepository.GetElection(ctx, id)
}

func (m *Repository) ListElections(ctx context.Context, filter models.ElectionFilter) ([]models.Election, error) {
	if m.ListElectionsError != nil {
		return nil, m.ListElectionsError
	}
	return m.FullRepository.ListElections(ctx, filter)
}

func (m *Repository) CancelElection(ctx context.Context, id, actorID int64, at string) error {
	if m.CancelElectionError != nil {
		return m.CancelElectionError
	}
	return m.FullRepository.CancelElection(ctx, id, actorID, at)
}

// ===== Candidate Methods =====

func (m *Repository) CreateCandidate(ctx context.Context, c *models.Candidate) (int64, error) {
	if m.CreateCandidateError != nil {
		return 0, m.CreateCandidateError
	}
	return m.FullRepository.CreateCandidate(ctx, c)
}

func (m *Repository) GetCandidate(ctx context.Context, id int64) (*models.Candidate, error) {
	if m.GetCandidateError != nil {
		return nil, m.GetCandidateError
	}
	return m.FullRepository.GetCandidate(ctx, id)
}

func (m *Repository) ListCandidates(ctx context.Context, electionID int64) ([]models.Candidate, error) {
	if m.ListCandidatesError != nil {
		return nil, m.ListCandidatesError
	}
	return m.FullRepository.ListCandidates(ctx, electionID)
}

// ===== Application Methods =====

func (m *Repository) CreateApplication(ctx context.Context, a *models.CandidateApplication) (int64, error) {
	if m.CreateApplicationError != nil {
		return 0, m.CreateApplicationError
	}
	return m.FullRepository.CreateApplication(ctx, a)
}

func (m *Repository) ListApplications(ctx context.Context, filter models.ApplicationFilter) ([]models.CandidateApplication, error) {
	if m.ListApplicationsError != nil {
		return nil, m.ListApplicationsError
	}
	return m.FullRepository.ListApplications(ctx, filter)
}

func (m *Repository) ApproveApplication(ctx context.Context, id, resolverID int64, at string) (*models.Candidate, error) {
	if m.ApproveApplicationError != nil {
		return nil, m.ApproveApplicationError
	}
	return m.FullRepository.ApproveApplication(ctx, id, resolverID, at)
}

func (m *Repository) RejectApplication(ctx context.Context, id, resolverID int64, at string) error {
	if m.RejectApplicationError != nil {
		return m.RejectApplicationError
	}
	return m.FullRepository.RejectApplication(ctx, id, resolverID, at)
}

// ===== Ballot Methods =====

func (m *Repository) InsertBallot(ctx context.Context, b *models.Ballot) (int64, error) {
	if m.InsertBallotError != nil {
		return 0, m.InsertBallotError
	}
	return m.FullRepository.InsertBallot(ctx, b)
}

func (m *Repository) HasVoted(ctx context.Context, voterID, electionID int64) (bool, error) {
	if m.HasVotedError != nil {
		return false, m.HasVotedError
	}
	return m.FullRepository.HasVoted(ctx, voterID, electionID)
}

func (m *Repository) CountBallots(ctx context.Context, electionID int64) (int, error) {
	if m.CountBallotsError != nil {
		return 0, m.CountBallotsError
	}
	return m.FullRepository.CountBallots(ctx, electionID)
}

func (m *Repository) TallyElection(ctx context.Context, electionID int64) ([]models.TallyRow, error) {
	if m.TallyElectionError != nil {
		return nil, m.TallyElectionError
	}
	return m.FullRepository.TallyElection(ctx, electionID)
}

// ===== Notification Methods =====

func (m *Repository) CreateNotification(ctx context.Context, n *models.Notification) (int64, error) {
	if m.CreateNotificationError != nil {
		return 0, m.CreateNotificationError
	}
	return m.FullRepository.CreateNotification(ctx, n)
}

func (m *Repository) Ping(ctx context.Context) error {
	if m.PingError != nil {
		return m.PingError
	}
	return m.FullRepository.Ping(ctx)
}
