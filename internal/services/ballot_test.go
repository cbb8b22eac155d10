package services_test

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/electvote/electvote/internal/errors"
	"github.com/electvote/electvote/internal/models"
	"github.com/electvote/electvote/internal/repository/mock"
	"github.com/electvote/electvote/internal/services"
	"github.com/electvote/electvote/internal/testutil"
	"github.com/electvote/electvote/internal/timewindow"
)

// TestBoundaryScenario checks that both window bounds are inclusive
func TestBoundaryScenario(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	e := env.schedule(t, nil)
	c := env.addCandidate(t, e.ID, "A")

	tests := []struct {
		name string
		at   time.Time
		want errors.Kind // ErrInternal means success here
	}{
		{"one second early", T0.Add(-time.Second), errors.ErrNotActive},
		{"at start", T0, errors.ErrInternal},
		{"at end", T0.Add(3600 * time.Second), errors.ErrInternal},
		{"one second late", T0.Add(3601 * time.Second), errors.ErrNotActive},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env.clock.Set(tt.at)
			voter := env.voter(t, fmt.Sprintf("voter%d", i))
			ballot, err := env.ballots.CastVote(ctx, voter, e.ID, c.ID)
			if tt.want == errors.ErrInternal {
				if err != nil {
					t.Fatalf("expected ballot to be admitted, got %v", err)
				}
				if ballot.CastAt != timewindow.FormatInstant(tt.at) {
					t.Errorf("expected cast_at %s, got %s", timewindow.FormatInstant(tt.at), ballot.CastAt)
				}
				return
			}
			assertKind(t, err, tt.want)
		})
	}

	count, _ := env.repo.CountBallots(ctx, e.ID)
	if count != 2 {
		t.Errorf("expected 2 ballots, got %d", count)
	}
}

func TestCastVote_SecondBallotIsAlreadyVoted(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	e := env.schedule(t, nil)
	a := env.addCandidate(t, e.ID, "A")
	b := env.addCandidate(t, e.ID, "B")
	voter := env.voter(t, "voter")
	env.clock.Set(T0.Add(time.Minute))

	if _, err := env.ballots.CastVote(ctx, voter, e.ID, a.ID); err != nil {
		t.Fatalf("first CastVote failed: %v", err)
	}
	_, err := env.ballots.CastVote(ctx, voter, e.ID, b.ID)
	assertKind(t, err, errors.ErrAlreadyVoted)
	if !errors.IsExpected(err) {
		t.Error("AlreadyVoted should be an expected outcome")
	}

	voted, err := env.ballots.HasVoted(ctx, voter.ID, e.ID)
	if err != nil || !voted {
		t.Errorf("expected HasVoted true, got %v (%v)", voted, err)
	}
	if env.events.count(services.EventBallotAdmitted) != 1 {
		t.Errorf("expected one ballot_admitted event, got %d", env.events.count(services.EventBallotAdmitted))
	}
}

// TestCastVote_ConcurrentAttempts races many ballots from the same voter
func TestCastVote_ConcurrentAttempts(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	e := env.schedule(t, nil)
	a := env.addCandidate(t, e.ID, "A")
	b := env.addCandidate(t, e.ID, "B")
	voter := env.voter(t, "voter")
	env.clock.Set(T0.Add(time.Minute))

	const attempts = 30
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			candidate := a.ID
			if i%2 == 0 {
				candidate = b.ID
			}
			_, err := env.ballots.CastVote(ctx, voter, e.ID, candidate)
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	var ok, dup int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.KindOf(err) == errors.ErrAlreadyVoted:
			dup++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 || dup != attempts-1 {
		t.Errorf("expected 1 success and %d AlreadyVoted, got %d and %d", attempts-1, ok, dup)
	}

	result, _ := env.tally.Tally(ctx, e.ID)
	if result.TotalBallots != 1 {
		t.Errorf("expected exactly one ballot in tally, got %d", result.TotalBallots)
	}
}

func TestCastVote_Errors(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	e := env.schedule(t, nil)
	env.addCandidate(t, e.ID, "A")
	other := testutil.CreateElection(t, env.repo, T0, T0.Add(time.Hour), nil, nil)
	foreign := testutil.CreateCandidate(t, env.repo, other, "Elsewhere")
	voter := env.voter(t, "voter")
	env.clock.Set(T0.Add(time.Minute))

	tests := []struct {
		name        string
		actor       models.Actor
		electionID  int64
		candidateID int64
		want        errors.Kind
	}{
		{"admin", env.admin, e.ID, foreign, errors.ErrUnauthorized},
		{"absent election", voter, 999, foreign, errors.ErrNotFound},
		{"absent candidate", voter, e.ID, 999, errors.ErrInvalidCandidate},
		{"candidate of other election", voter, e.ID, foreign, errors.ErrInvalidCandidate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.ballots.CastVote(ctx, tt.actor, tt.electionID, tt.candidateID)
			assertKind(t, err, tt.want)
		})
	}

	voted, _ := env.ballots.HasVoted(ctx, voter.ID, e.ID)
	if voted {
		t.Error("rejected attempts must not record a ballot")
	}
}

func TestCastVote_UnknownVoterIsNotFound(t *testing.T) {
	env := setupEnv(t)
	e := env.schedule(t, nil)
	c := env.addCandidate(t, e.ID, "A")
	env.clock.Set(T0)

	ghost := models.Actor{ID: 9999, Role: models.RoleVoter}
	_, err := env.ballots.CastVote(context.Background(), ghost, e.ID, c.ID)
	assertKind(t, err, errors.ErrNotFound)
}

func TestCastVote_CandidateRoleMayVote(t *testing.T) {
	env := setupEnv(t)
	e := env.schedule(t, nil)
	c := env.addCandidate(t, e.ID, "A")
	candidate := models.Actor{ID: testutil.CreateUser(t, env.repo, "cand", models.RoleCandidate), Role: models.RoleCandidate}
	env.clock.Set(T0)

	if _, err := env.ballots.CastVote(context.Background(), candidate, e.ID, c.ID); err != nil {
		t.Errorf("expected candidate-role user to vote, got %v", err)
	}
}

func TestCastVote_MalformedWindowPropagates(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	id, err := env.repo.CreateElection(ctx, &models.Election{
		Title: "Broken", Category: "X",
		StartTime: "2025-03-01 09:00", EndTime: timewindow.FormatInstant(T0.Add(time.Hour)),
		CreatedAt: timewindow.FormatInstant(T0),
	})
	if err != nil {
		t.Fatalf("CreateElection failed: %v", err)
	}
	c := testutil.CreateCandidate(t, env.repo, id, "A")

	_, err = env.ballots.CastVote(ctx, env.voter(t, "voter"), id, c)
	assertKind(t, err, errors.ErrMalformedTimestamp)
}

func TestCastVote_StoreFailureIsInternal(t *testing.T) {
	real := testutil.NewTestRepository(t)
	mockRepo := mock.NewRepository(real)
	env := setupEnvWithRepo(t, real, mockRepo)
	e := env.schedule(t, nil)
	c := env.addCandidate(t, e.ID, "A")
	env.clock.Set(T0)

	mockRepo.InsertBallotError = stderrors.New("database is locked")
	_, err := env.ballots.CastVote(context.Background(), env.voter(t, "voter"), e.ID, c.ID)
	assertKind(t, err, errors.ErrInternal)
	if errors.IsExpected(err) {
		t.Error("storage failure must not be classed as expected")
	}

	mockRepo.InsertBallotError = nil
	mockRepo.HasVotedError = stderrors.New("gone")
	_, err = env.ballots.HasVoted(context.Background(), 1, e.ID)
	assertKind(t, err, errors.ErrInternal)
}
