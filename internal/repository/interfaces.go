package repository

import (
	"context"

	"github.com/electvote/electvote/internal/models"
)

// UserRepository defines user data operations
type UserRepository interface {
	CreateUser(ctx context.Context, u *models.User) (int64, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

// ElectionRepository defines election data operations
type ElectionRepository interface {
	CreateElection(ctx context.Context, e *models.Election) (int64, error)
	GetElection(ctx context.Context, id int64) (*models.Election, error)
	ListElections(ctx context.Context, filter models.ElectionFilter) ([]models.Election, error)
	CancelElection(ctx context.Context, id, actorID int64, at string) error
}

// CandidateRepository defines roster data operations
type CandidateRepository interface {
	CreateCandidate(ctx context.Context, c *models.Candidate) (int64, error)
	GetCandidate(ctx context.Context, id int64) (*models.Candidate, error)
	ListCandidates(ctx context.Context, electionID int64) ([]models.Candidate, error)
	CountCandidates(ctx context.Context, electionID int64) (int, error)
}

// ApplicationRepository defines candidate application data operations
type ApplicationRepository interface {
	CreateApplication(ctx context.Context, a *models.CandidateApplication) (int64, error)
	GetApplication(ctx context.Context, id int64) (*models.CandidateApplication, error)
	ListApplications(ctx context.Context, filter models.ApplicationFilter) ([]models.CandidateApplication, error)
	ApproveApplication(ctx context.Context, id, resolverID int64, at string) (*models.Candidate, error)
	RejectApplication(ctx context.Context, id, resolverID int64, at string) error
}

// BallotRepository defines ballot data operations
type BallotRepository interface {
	InsertBallot(ctx context.Context, b *models.Ballot) (int64, error)
	HasVoted(ctx context.Context, voterID, electionID int64) (bool, error)
	CountBallots(ctx context.Context, electionID int64) (int, error)
	TallyElection(ctx context.Context, electionID int64) ([]models.TallyRow, error)
}

// NotificationRepository defines in-app notification data operations
type NotificationRepository interface {
	CreateNotification(ctx context.Context, n *models.Notification) (int64, error)
	ListNotifications(ctx context.Context, userID int64) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, id int64) error
}

// FullRepository combines all repository interfaces
// Use this when a service needs access to multiple domains
type FullRepository interface {
	UserRepository
	ElectionRepository
	CandidateRepository
	ApplicationRepository
	BallotRepository
	NotificationRepository
	Ping(ctx context.Context) error
}

// Ensure Repository implements all interfaces
var _ FullRepository = (*Repository)(nil)
