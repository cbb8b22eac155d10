package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/electvote/electvote/internal/auth"
	"github.com/electvote/electvote/internal/clock"
	"github.com/electvote/electvote/internal/errors"
	"github.com/electvote/electvote/internal/logger"
	"github.com/electvote/electvote/internal/models"
	"github.com/electvote/electvote/internal/repository"
	"github.com/electvote/electvote/internal/services"
	"github.com/electvote/electvote/internal/testutil"
)

// T0 is the start of the election most tests schedule
var T0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

// testEnv wires every service against one in-memory store
type testEnv struct {
	repo      *repository.Repository
	clock     *clock.Fixed
	events    *recordingPublisher
	notifier  *recordingNotifier
	elections *services.ElectionService
	ballots   *services.BallotService
	tally     *services.TallyService
	apps      *services.ApplicationService
	users     *services.UserService
	admin     models.Actor
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	repo := testutil.NewTestRepository(t)
	return setupEnvWithRepo(t, repo, repo)
}

// setupEnvWithRepo lets tests substitute an error-injecting repository
func setupEnvWithRepo(t *testing.T, real *repository.Repository, repo repository.FullRepository) *testEnv {
	t.Helper()
	log := logger.Discard()
	clk := clock.NewFixed(T0.Add(-time.Hour))
	events := &recordingPublisher{}
	notifier := &recordingNotifier{}

	env := &testEnv{
		repo:      real,
		clock:     clk,
		events:    events,
		notifier:  notifier,
		elections: services.NewElectionService(log, repo, clk),
		ballots:   services.NewBallotService(log, repo, clk),
		tally:     services.NewTallyService(log, repo, clk),
		apps:      services.NewApplicationService(log, repo, clk, notifier),
		users:     services.NewUserService(log, repo, clk, auth.New("test-secret", time.Hour)),
	}
	env.elections.SetPublisher(events)
	env.ballots.SetPublisher(events)
	env.apps.SetPublisher(events)

	adminID := testutil.CreateUser(t, real, "admin", models.RoleAdmin)
	env.admin = models.Actor{ID: adminID, Role: models.RoleAdmin}
	return env
}

// voter creates a voter account and returns it as an actor
func (env *testEnv) voter(t *testing.T, username string) models.Actor {
	t.Helper()
	return models.Actor{ID: testutil.CreateUser(t, env.repo, username, models.RoleVoter), Role: models.RoleVoter}
}

// schedule creates a one-hour election starting at T0
func (env *testEnv) schedule(t *testing.T, limit *int) *models.Election {
	t.Helper()
	e, err := env.elections.ScheduleElection(context.Background(), env.admin, services.ScheduleInput{
		Title:          "Student Council",
		Category:       "Student",
		Year:           2025,
		Start:          T0,
		End:            T0.Add(time.Hour),
		CandidateLimit: limit,
	})
	if err != nil {
		t.Fatalf("ScheduleElection failed: %v", err)
	}
	return e
}

func (env *testEnv) addCandidate(t *testing.T, electionID int64, name string) *models.Candidate {
	t.Helper()
	c, err := env.elections.AddCandidate(context.Background(), env.admin, electionID, services.CandidateInput{Name: name, Category: "Student"})
	if err != nil {
		t.Fatalf("AddCandidate(%s) failed: %v", name, err)
	}
	return c
}

func assertKind(t *testing.T, err error, want errors.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", want)
	}
	if got := errors.KindOf(err); got != want {
		t.Fatalf("expected %s error, got %s (%v)", want, got, err)
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(eventType string, _ interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
}

func (p *recordingPublisher) count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e == eventType {
			n++
		}
	}
	return n
}

type notification struct {
	userID  int64
	message string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notification
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, userID int64, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{userID: userID, message: message})
	return n.err
}

func (n *recordingNotifier) all() []notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notification(nil), n.sent...)
}
