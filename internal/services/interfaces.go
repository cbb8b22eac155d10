package services

import (
	"context"

	"github.com/electvote/electvote/internal/models"
)

// Event types published to live listeners
const (
	EventElectionScheduled   = "election_scheduled"
	EventElectionCancelled   = "election_cancelled"
	EventCandidateAdded      = "candidate_added"
	EventBallotAdmitted      = "ballot_admitted"
	EventApplicationResolved = "application_resolved"
	EventPhaseChanged        = "phase_changed"
)

// EventPublisher defines the interface for pushing lifecycle events to clients
type EventPublisher interface {
	Publish(eventType string, payload interface{})
}

// Notifier delivers an in-app message to a user
type Notifier interface {
	Notify(ctx context.Context, userID int64, message string) error
}

// Recorder receives domain counters
type Recorder interface {
	ElectionScheduled()
	ElectionCancelled()
	BallotAdmitted()
	BallotRejected(reason string)
	ApplicationResolved(decision string)
}

// ElectionServicer defines the interface for election registry operations
type ElectionServicer interface {
	ScheduleElection(ctx context.Context, actor models.Actor, in ScheduleInput) (*models.Election, error)
	CancelElection(ctx context.Context, actor models.Actor, electionID int64) error
	AddCandidate(ctx context.Context, actor models.Actor, electionID int64, in CandidateInput) (*models.Candidate, error)
	GetElection(ctx context.Context, id int64) (*models.Election, error)
	ListElections(ctx context.Context, filter models.ElectionFilter) ([]models.Election, error)
	ListActiveElections(ctx context.Context) ([]models.Election, error)
	CurrentElection(ctx context.Context) (*models.Election, error)
	ListCandidates(ctx context.Context, electionID int64) ([]models.Candidate, error)
	ClassifyPhase(ctx context.Context, electionID int64) (*PhaseSummary, error)
	BallotQR(ctx context.Context, electionID int64, baseURL string) ([]byte, error)
}

// ApplicationServicer defines the interface for the candidate application pipeline
type ApplicationServicer interface {
	SubmitApplication(ctx context.Context, applicant models.Actor, electionID int64, in CandidateInput) (*models.CandidateApplication, error)
	ResolveApplication(ctx context.Context, resolver models.Actor, applicationID int64, decision models.Decision) (*models.CandidateApplication, error)
	ListApplications(ctx context.Context, filter models.ApplicationFilter) ([]models.CandidateApplication, error)
}

// BallotServicer defines the interface for ballot admission
type BallotServicer interface {
	CastVote(ctx context.Context, voter models.Actor, electionID, candidateID int64) (*models.Ballot, error)
	HasVoted(ctx context.Context, voterID, electionID int64) (bool, error)
}

// TallyServicer defines the interface for result aggregation
type TallyServicer interface {
	Tally(ctx context.Context, electionID int64) (*TallyResult, error)
}

// UserServicer defines the interface for accounts and notifications
type UserServicer interface {
	Signup(ctx context.Context, in SignupInput) (*models.User, error)
	Authenticate(ctx context.Context, username, password string) (*LoginResult, error)
	EnsureAdmin(ctx context.Context, username, password string) (bool, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	ListNotifications(ctx context.Context, userID int64) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, id int64) error
}

// Ensure concrete types implement interfaces
var (
	_ ElectionServicer    = (*ElectionService)(nil)
	_ ApplicationServicer = (*ApplicationService)(nil)
	_ BallotServicer      = (*BallotService)(nil)
	_ TallyServicer       = (*TallyService)(nil)
	_ UserServicer        = (*UserService)(nil)
)

type noopPublisher struct{}

func (noopPublisher) Publish(string, interface{}) {}

type noopRecorder struct{}

func (noopRecorder) ElectionScheduled()         {}
func (noopRecorder) ElectionCancelled()         {}
func (noopRecorder) BallotAdmitted()            {}
func (noopRecorder) BallotRejected(string)      {}
func (noopRecorder) ApplicationResolved(string) {}
