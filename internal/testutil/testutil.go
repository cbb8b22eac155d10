package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/electvote/electvote/internal/models"
	"github.com/electvote/electvote/internal/repository"
	"github.com/electvote/electvote/internal/timewindow"
)

// NewTestRepository creates a new in-memory repository for testing.
// Each call creates a fresh database with all migrations applied.
func NewTestRepository(t *testing.T) *repository.Repository {
	t.Helper()

	repo, err := repository.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("failed to create test repository: %v", err)
	}

	t.Cleanup(func() {
		repo.Close()
	})

	return repo
}

// CreateUser inserts a user with the given role straight into the store.
// The password hash is a placeholder; use UserService.Signup when a login is needed.
func CreateUser(t *testing.T, repo repository.UserRepository, username string, role models.Role) int64 {
	t.Helper()

	id, err := repo.CreateUser(context.Background(), &models.User{
		Name:         username,
		Username:     username,
		IDNumber:     "ID-" + username,
		Role:         role,
		PasswordHash: "x",
		CreatedAt:    timewindow.FormatInstant(time.Now()),
	})
	if err != nil {
		t.Fatalf("failed to create user %s: %v", username, err)
	}
	return id
}

// CreateElection inserts an election with the given window straight into the store
func CreateElection(t *testing.T, repo repository.ElectionRepository, start, end time.Time, limit *int, creator *int64) int64 {
	t.Helper()

	id, err := repo.CreateElection(context.Background(), &models.Election{
		Title:          "Test Election",
		Category:       "General",
		Year:           start.Year(),
		StartTime:      timewindow.FormatInstant(start),
		EndTime:        timewindow.FormatInstant(end),
		CreatedBy:      creator,
		CandidateLimit: limit,
		CreatedAt:      timewindow.FormatInstant(start),
	})
	if err != nil {
		t.Fatalf("failed to create election: %v", err)
	}
	return id
}

// CreateCandidate inserts a candidate straight into the store
func CreateCandidate(t *testing.T, repo repository.CandidateRepository, electionID int64, name string) int64 {
	t.Helper()

	id, err := repo.CreateCandidate(context.Background(), &models.Candidate{
		ElectionID: electionID,
		Name:       name,
		Category:   "General",
		CreatedAt:  timewindow.FormatInstant(time.Now()),
	})
	if err != nil {
		t.Fatalf("failed to create candidate %s: %v", name, err)
	}
	return id
}

// IntPtr returns a pointer to v
func IntPtr(v int) *int {
	return &v
}

// Int64Ptr returns a pointer to v
func Int64Ptr(v int64) *int64 {
	return &v
}
