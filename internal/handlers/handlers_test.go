package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/electvote/electvote/internal/auth"
	"github.com/electvote/electvote/internal/clock"
	"github.com/electvote/electvote/internal/handlers"
	"github.com/electvote/electvote/internal/logger"
	"github.com/electvote/electvote/internal/metrics"
	"github.com/electvote/electvote/internal/models"
	"github.com/electvote/electvote/internal/notify"
	"github.com/electvote/electvote/internal/repository"
	"github.com/electvote/electvote/internal/services"
	"github.com/electvote/electvote/internal/testutil"
	"github.com/electvote/electvote/internal/timewindow"
)

// T0 is the start of the election most tests schedule
var T0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

type testSetup struct {
	repo     *repository.Repository
	clock    *clock.Fixed
	tokens   *auth.Auth
	apps     *services.ApplicationService
	handlers *handlers.Handlers
	router   http.Handler

	adminID    int64
	adminToken string
}

func newTestSetup(t *testing.T) *testSetup {
	t.Helper()
	repo := testutil.NewTestRepository(t)
	log := logger.Discard()
	clk := clock.NewFixed(T0.Add(-time.Hour))
	tokens := auth.New("test-secret", 24*time.Hour)
	tokens.SetNow(clk.Now)

	elections := services.NewElectionService(log, repo, clk)
	apps := services.NewApplicationService(log, repo, clk, notify.NewStore(repo, clk))
	h := handlers.New(
		elections,
		apps,
		services.NewBallotService(log, repo, clk),
		services.NewTallyService(log, repo, clk),
		services.NewUserService(log, repo, clk, tokens),
		tokens,
		log,
	)
	h.Health = repo

	s := &testSetup{repo: repo, clock: clk, tokens: tokens, apps: apps, handlers: h}
	s.adminID = testutil.CreateUser(t, repo, "admin", models.RoleAdmin)
	s.adminToken = s.token(t, s.adminID, models.RoleAdmin)
	s.router = h.Router()
	return s
}

func (s *testSetup) token(t *testing.T, userID int64, role models.Role) string {
	t.Helper()
	token, _, err := s.tokens.Issue(userID, role)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	return token
}

// voter creates a voter and returns its id and bearer token
func (s *testSetup) voter(t *testing.T, username string) (int64, string) {
	t.Helper()
	id := testutil.CreateUser(t, s.repo, username, models.RoleVoter)
	return id, s.token(t, id, models.RoleVoter)
}

// do sends a request through the router; body is JSON-encoded when non-nil
func (s *testSetup) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

// schedule creates a one-hour election at T0 through the API
func (s *testSetup) schedule(t *testing.T, limit *int) models.Election {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/admin/elections", s.adminToken, handlers.ScheduleElectionRequest{
		Title:          "Student Council",
		Category:       "Student",
		Year:           2025,
		StartTime:      "2025-03-01T09:00",
		EndTime:        "2025-03-01T10:00",
		CandidateLimit: limit,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("schedule: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var e models.Election
	decode(t, rec, &e)
	return e
}

func (s *testSetup) addCandidate(t *testing.T, electionID int64, name string) models.Candidate {
	t.Helper()
	rec := s.do(t, http.MethodPost, fmt.Sprintf("/api/admin/elections/%d/candidates", electionID), s.adminToken,
		handlers.CandidateRequest{Name: name, Category: "Student"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add candidate: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var c models.Candidate
	decode(t, rec, &c)
	return c
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(target); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func expectError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("expected status %d, got %d: %s", status, rec.Code, rec.Body.String())
	}
	var apiErr handlers.APIError
	decode(t, rec, &apiErr)
	if apiErr.Code != code {
		t.Errorf("expected code %q, got %q (%s)", code, apiErr.Code, apiErr.Message)
	}
}

func TestSignupAndLogin(t *testing.T) {
	s := newTestSetup(t)

	rec := s.do(t, http.MethodPost, "/api/signup", "", handlers.SignupRequest{
		Name: "Alice", Username: "Alice", Password: "pw", Email: "alice@example.com", IDNumber: "S-1",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var user map[string]interface{}
	decode(t, rec, &user)
	if user["username"] != "alice" || user["role"] != "voter" {
		t.Errorf("unexpected user %v", user)
	}
	if _, leaked := user["PasswordHash"]; leaked {
		t.Error("password hash must not be serialized")
	}

	rec = s.do(t, http.MethodPost, "/api/signup", "", handlers.SignupRequest{
		Name: "Alice", Username: "ALICE", Password: "pw", IDNumber: "S-2",
	})
	expectError(t, rec, http.StatusConflict, handlers.ErrCodeConflict)

	rec = s.do(t, http.MethodPost, "/api/login", "", handlers.LoginRequest{Username: "alice", Password: "pw"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var login services.LoginResult
	decode(t, rec, &login)
	if login.Token == "" {
		t.Fatal("expected a token")
	}

	rec = s.do(t, http.MethodGet, "/api/me", login.Token, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected token to authenticate /api/me, got %d", rec.Code)
	}

	rec = s.do(t, http.MethodPost, "/api/login", "", handlers.LoginRequest{Username: "alice", Password: "nope"})
	expectError(t, rec, http.StatusUnauthorized, handlers.ErrCodeUnauthorized)
}

func TestSignup_BadBody(t *testing.T) {
	s := newTestSetup(t)
	req := httptest.NewRequest(http.MethodPost, "/api/signup", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	expectError(t, rec, http.StatusBadRequest, handlers.ErrCodeBadRequest)

	rec = s.do(t, http.MethodPost, "/api/signup", "", nil)
	expectError(t, rec, http.StatusBadRequest, handlers.ErrCodeBadRequest)
}

func TestScheduleElection_ConvertsLocalTimeToUTC(t *testing.T) {
	s := newTestSetup(t)

	rec := s.do(t, http.MethodPost, "/api/admin/elections", s.adminToken, handlers.ScheduleElectionRequest{
		Title: "Council", Category: "Student", Year: 2025,
		StartTime: "2025-03-01T14:30", EndTime: "2025-03-01T15:30", TZOffset: 330,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var e models.Election
	decode(t, rec, &e)
	if e.StartTime != timewindow.FormatInstant(T0) {
		t.Errorf("expected start %s, got %s", timewindow.FormatInstant(T0), e.StartTime)
	}
	if e.CreatedBy == nil || *e.CreatedBy != s.adminID {
		t.Errorf("expected creator %d, got %v", s.adminID, e.CreatedBy)
	}
	if e.Status != string(timewindow.PhaseScheduled) {
		t.Errorf("expected scheduled status, got %q", e.Status)
	}
}

func TestScheduleElection_Errors(t *testing.T) {
	s := newTestSetup(t)
	_, voterToken := s.voter(t, "voter")

	valid := handlers.ScheduleElectionRequest{
		Title: "Council", Category: "Student", StartTime: "2025-03-01T09:00", EndTime: "2025-03-01T10:00",
	}
	reversed := valid
	reversed.EndTime = "2025-03-01T08:00"
	badLimit := valid
	badLimit.CandidateLimit = testutil.IntPtr(0)
	badTime := valid
	badTime.StartTime = "tomorrow"
	badOffset := valid
	badOffset.TZOffset = 5000

	tests := []struct {
		name   string
		token  string
		body   handlers.ScheduleElectionRequest
		status int
		code   string
	}{
		{"no token", "", valid, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"voter", voterToken, valid, http.StatusForbidden, "FORBIDDEN"},
		{"reversed window", s.adminToken, reversed, http.StatusBadRequest, "INVALID_WINDOW"},
		{"zero limit", s.adminToken, badLimit, http.StatusBadRequest, "INVALID_LIMIT"},
		{"unparseable time", s.adminToken, badTime, http.StatusBadRequest, handlers.ErrCodeValidation},
		{"offset out of range", s.adminToken, badOffset, http.StatusBadRequest, handlers.ErrCodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/admin/elections", tt.token, tt.body)
			expectError(t, rec, tt.status, tt.code)
		})
	}
}

func TestElectionReads(t *testing.T) {
	s := newTestSetup(t)
	e := s.schedule(t, nil)
	s.addCandidate(t, e.ID, "Alice")

	rec := s.do(t, http.MethodGet, fmt.Sprintf("/api/elections/%d", e.ID), "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get election: %d", rec.Code)
	}

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/api/elections/%d/candidates", e.ID), "", nil)
	var roster []models.Candidate
	decode(t, rec, &roster)
	if len(roster) != 1 || roster[0].Name != "Alice" {
		t.Errorf("unexpected roster %+v", roster)
	}

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/api/elections/%d/phase", e.ID), "", nil)
	var phase handlers.PhaseResponse
	decode(t, rec, &phase)
	if phase.Phase != string(timewindow.PhaseScheduled) || phase.Status != string(timewindow.PhaseScheduled) {
		t.Errorf("expected scheduled, got %+v", phase)
	}
	if phase.Candidates != 1 || phase.Ballots != 0 {
		t.Errorf("expected 1 candidate and no ballots, got %+v", phase)
	}

	rec = s.do(t, http.MethodGet, "/api/elections/current", "", nil)
	expectError(t, rec, http.StatusNotFound, handlers.ErrCodeNotFound)

	s.clock.Set(T0.Add(time.Minute))
	rec = s.do(t, http.MethodGet, "/api/elections/current", "", nil)
	var current models.Election
	decode(t, rec, &current)
	if current.ID != e.ID {
		t.Errorf("expected current election %d, got %d", e.ID, current.ID)
	}

	rec = s.do(t, http.MethodGet, "/api/elections/active", "", nil)
	var active []models.Election
	decode(t, rec, &active)
	if len(active) != 1 {
		t.Errorf("expected one active election, got %d", len(active))
	}

	rec = s.do(t, http.MethodGet, "/api/elections", "", nil)
	var all []models.Election
	decode(t, rec, &all)
	if len(all) != 1 || all[0].Status != string(timewindow.PhaseOngoing) {
		t.Errorf("unexpected list %+v", all)
	}
}

func TestElectionReads_Errors(t *testing.T) {
	s := newTestSetup(t)

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"absent election", "/api/elections/999", http.StatusNotFound},
		{"non-numeric id", "/api/elections/abc", http.StatusBadRequest},
		{"zero id", "/api/elections/0/phase", http.StatusBadRequest},
		{"absent roster", "/api/elections/999/candidates", http.StatusNotFound},
		{"absent qr", "/api/elections/999/qr", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodGet, tt.path, "", nil)
			if rec.Code != tt.status {
				t.Errorf("expected %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestListElections_StartRange(t *testing.T) {
	s := newTestSetup(t)
	first := s.schedule(t, nil)
	rec := s.do(t, http.MethodPost, "/api/admin/elections", s.adminToken, handlers.ScheduleElectionRequest{
		Title: "Club Board", Category: "Club", Year: 2025,
		StartTime: "2025-03-05T09:00", EndTime: "2025-03-05T10:00",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("schedule: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var second models.Election
	decode(t, rec, &second)

	tests := []struct {
		name  string
		query string
		want  []int64
	}{
		{"no bounds", "", []int64{first.ID, second.ID}},
		{"from excludes earlier", "?from=2025-03-02T00:00", []int64{second.ID}},
		{"to in client zone", "?to=2025-03-01T12:00&tz_offset=120", []int64{first.ID}},
		{"to before offset applied", "?to=2025-03-01T10:00&tz_offset=120", nil},
		{"zoned bound ignores offset", "?from=2025-03-01T09:00Z&to=2025-03-01T09:00Z&tz_offset=-300", []int64{first.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodGet, "/api/elections"+tt.query, "", nil)
			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
			}
			var got []models.Election
			decode(t, rec, &got)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d elections, got %+v", len(tt.want), got)
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("position %d: expected election %d, got %d", i, id, got[i].ID)
				}
			}
		})
	}
}

func TestListElections_BadRange(t *testing.T) {
	s := newTestSetup(t)

	tests := []struct {
		name   string
		query  string
		status int
		code   string
	}{
		{"non-numeric offset", "?tz_offset=abc", http.StatusBadRequest, handlers.ErrCodeBadRequest},
		{"offset out of range", "?from=2025-03-01T09:00&tz_offset=5000", http.StatusBadRequest, handlers.ErrCodeValidation},
		{"unparseable from", "?from=garbage", http.StatusBadRequest, handlers.ErrCodeValidation},
		{"unparseable to", "?to=2025-13-01T09:00", http.StatusBadRequest, handlers.ErrCodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodGet, "/api/elections"+tt.query, "", nil)
			expectError(t, rec, tt.status, tt.code)
		})
	}
}

func TestCurrentTally(t *testing.T) {
	s := newTestSetup(t)
	e := s.schedule(t, nil)
	alice := s.addCandidate(t, e.ID, "Alice")
	_, voterToken := s.voter(t, "voter")

	rec := s.do(t, http.MethodGet, "/api/admin/elections/current/tally", s.adminToken, nil)
	expectError(t, rec, http.StatusNotFound, handlers.ErrCodeNotFound)

	s.clock.Set(T0.Add(time.Minute))
	rec = s.do(t, http.MethodPost, fmt.Sprintf("/api/elections/%d/ballots", e.ID), voterToken, handlers.BallotRequest{CandidateID: alice.ID})
	if rec.Code != http.StatusCreated {
		t.Fatalf("cast: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = s.do(t, http.MethodGet, "/api/admin/elections/current/tally", voterToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for a voter, got %d", rec.Code)
	}

	rec = s.do(t, http.MethodGet, "/api/admin/elections/current/tally", s.adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var result services.TallyResult
	decode(t, rec, &result)
	if result.ElectionID != e.ID || result.TotalBallots != 1 {
		t.Errorf("unexpected tally %+v", result)
	}

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/api/elections/%d/phase", e.ID), "", nil)
	var phase handlers.PhaseResponse
	decode(t, rec, &phase)
	if phase.Phase != string(timewindow.PhaseOngoing) || phase.Ballots != 1 || phase.Candidates != 1 {
		t.Errorf("unexpected phase %+v", phase)
	}
}

func TestGetPhase_MalformedWindowIs422(t *testing.T) {
	s := newTestSetup(t)
	id, err := s.repo.CreateElection(context.Background(), &models.Election{
		Title: "Broken", Category: "X",
		StartTime: "2025-03-01 09:00", EndTime: timewindow.FormatInstant(T0.Add(time.Hour)),
		CreatedAt: timewindow.FormatInstant(T0),
	})
	if err != nil {
		t.Fatalf("CreateElection failed: %v", err)
	}

	rec := s.do(t, http.MethodGet, fmt.Sprintf("/api/elections/%d/phase", id), "", nil)
	expectError(t, rec, http.StatusUnprocessableEntity, "MALFORMED_TIMESTAMP")
}

func TestBallotQR(t *testing.T) {
	s := newTestSetup(t)
	e := s.schedule(t, nil)

	rec := s.do(t, http.MethodGet, fmt.Sprintf("/api/elections/%d/qr", e.ID), "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("expected image/png, got %q", ct)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")) {
		t.Error("expected PNG data")
	}
}

func TestVoteLink(t *testing.T) {
	s := newTestSetup(t)
	e := s.schedule(t, nil)

	rec := s.do(t, http.MethodGet, fmt.Sprintf("/vote/%d", e.ID), "", nil)
	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != fmt.Sprintf("/api/elections/%d", e.ID) {
		t.Errorf("unexpected Location %q", loc)
	}

	rec = s.do(t, http.MethodGet, "/vote/999", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for an unknown election, got %d", rec.Code)
	}
}

func TestVotingFlow(t *testing.T) {
	s := newTestSetup(t)
	e := s.schedule(t, nil)
	alice := s.addCandidate(t, e.ID, "Alice")
	bob := s.addCandidate(t, e.ID, "Bob")
	_, voterToken := s.voter(t, "voter")
	ballotPath := fmt.Sprintf("/api/elections/%d/ballots", e.ID)

	// before the window opens
	rec := s.do(t, http.MethodPost, ballotPath, voterToken, handlers.BallotRequest{CandidateID: alice.ID})
	expectError(t, rec, http.StatusConflict, "NOT_ACTIVE")

	s.clock.Set(T0)
	rec = s.do(t, http.MethodPost, ballotPath, voterToken, handlers.BallotRequest{CandidateID: alice.ID})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = s.do(t, http.MethodPost, ballotPath, voterToken, handlers.BallotRequest{CandidateID: bob.ID})
	expectError(t, rec, http.StatusConflict, "ALREADY_VOTED")

	rec = s.do(t, http.MethodGet, "/api/voter/panel", voterToken, nil)
	var panel handlers.VoterPanelResponse
	decode(t, rec, &panel)
	if panel.Election == nil || panel.Election.ID != e.ID || !panel.HasVoted || len(panel.Candidates) != 2 {
		t.Errorf("unexpected panel %+v", panel)
	}

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/api/admin/elections/%d/tally", e.ID), s.adminToken, nil)
	var result services.TallyResult
	decode(t, rec, &result)
	if result.TotalBallots != 1 || result.Rows[0].CandidateID != alice.ID || result.Rows[0].Votes != 1 {
		t.Errorf("unexpected tally %+v", result)
	}
}

func TestCastVote_Errors(t *testing.T) {
	s := newTestSetup(t)
	e := s.schedule(t, nil)
	s.addCandidate(t, e.ID, "Alice")
	_, voterToken := s.voter(t, "voter")
	s.clock.Set(T0)
	path := fmt.Sprintf("/api/elections/%d/ballots", e.ID)

	tests := []struct {
		name   string
		token  string
		path   string
		body   interface{}
		status int
		code   string
	}{
		{"admin may not vote", s.adminToken, path, handlers.BallotRequest{CandidateID: 1}, http.StatusForbidden, "FORBIDDEN"},
		{"missing candidate", voterToken, path, handlers.BallotRequest{}, http.StatusBadRequest, handlers.ErrCodeBadRequest},
		{"unknown candidate", voterToken, path, handlers.BallotRequest{CandidateID: 999}, http.StatusBadRequest, "INVALID_CANDIDATE"},
		{"unknown election", voterToken, "/api/elections/999/ballots", handlers.BallotRequest{CandidateID: 1}, http.StatusNotFound, handlers.ErrCodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, tt.path, tt.token, tt.body)
			expectError(t, rec, tt.status, tt.code)
		})
	}
}

func TestCastVote_RateLimited(t *testing.T) {
	s := newTestSetup(t)
	s.handlers.Limiter = handlers.NewMemoryLimiter(1, time.Minute, s.clock)
	s.router = s.handlers.Router()
	e := s.schedule(t, nil)
	alice := s.addCandidate(t, e.ID, "Alice")
	_, voterToken := s.voter(t, "voter")
	s.clock.Set(T0)
	path := fmt.Sprintf("/api/elections/%d/ballots", e.ID)

	if rec := s.do(t, http.MethodPost, path, voterToken, handlers.BallotRequest{CandidateID: alice.ID}); rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	rec := s.do(t, http.MethodPost, path, voterToken, handlers.BallotRequest{CandidateID: alice.ID})
	expectError(t, rec, http.StatusTooManyRequests, handlers.ErrCodeRateLimited)

	// the window rolls over
	s.clock.Advance(time.Minute)
	rec = s.do(t, http.MethodPost, path, voterToken, handlers.BallotRequest{CandidateID: alice.ID})
	expectError(t, rec, http.StatusConflict, "ALREADY_VOTED")
}

func TestVoterPanel_NoCurrentElection(t *testing.T) {
	s := newTestSetup(t)
	_, voterToken := s.voter(t, "voter")

	rec := s.do(t, http.MethodGet, "/api/voter/panel", voterToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var panel handlers.VoterPanelResponse
	decode(t, rec, &panel)
	if panel.Election != nil || panel.Candidates == nil || panel.HasVoted {
		t.Errorf("expected empty panel, got %+v", panel)
	}
}

func TestApplicationFlow(t *testing.T) {
	s := newTestSetup(t)
	e := s.schedule(t, nil)
	applicantID, applicantToken := s.voter(t, "applicant")

	rec := s.do(t, http.MethodPost, fmt.Sprintf("/api/elections/%d/applications", e.ID), applicantToken,
		handlers.ApplicationRequest{Name: "Applicant", Category: "Student"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var app models.CandidateApplication
	decode(t, rec, &app)

	rec = s.do(t, http.MethodPost, fmt.Sprintf("/api/elections/%d/applications", e.ID), applicantToken,
		handlers.ApplicationRequest{Name: "Applicant", Category: "Student"})
	expectError(t, rec, http.StatusConflict, "DUPLICATE_APPLICATION")

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/api/admin/applications?election_id=%d&status=pending", e.ID), s.adminToken, nil)
	var pending []models.CandidateApplication
	decode(t, rec, &pending)
	if len(pending) != 1 || pending[0].ID != app.ID {
		t.Fatalf("unexpected pending list %+v", pending)
	}

	resolvePath := fmt.Sprintf("/api/admin/applications/%d/resolve", app.ID)
	rec = s.do(t, http.MethodPost, resolvePath, s.adminToken, handlers.ResolveRequest{Decision: "Approve"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = s.do(t, http.MethodPost, resolvePath, s.adminToken, handlers.ResolveRequest{Decision: "reject"})
	expectError(t, rec, http.StatusConflict, "ALREADY_RESOLVED")

	s.apps.Wait()
	rec = s.do(t, http.MethodGet, "/api/notifications", applicantToken, nil)
	var notes []models.Notification
	decode(t, rec, &notes)
	if len(notes) != 1 || notes[0].UserID != applicantID {
		t.Fatalf("expected one notification, got %+v", notes)
	}

	rec = s.do(t, http.MethodPost, fmt.Sprintf("/api/notifications/%d/read", notes[0].ID), applicantToken, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("mark read: expected 200, got %d", rec.Code)
	}
	_, otherToken := s.voter(t, "other")
	rec = s.do(t, http.MethodPost, fmt.Sprintf("/api/notifications/%d/read", notes[0].ID), otherToken, nil)
	expectError(t, rec, http.StatusNotFound, handlers.ErrCodeNotFound)
}

func TestListApplications_InvalidQuery(t *testing.T) {
	s := newTestSetup(t)

	rec := s.do(t, http.MethodGet, "/api/admin/applications?status=lost", s.adminToken, nil)
	expectError(t, rec, http.StatusBadRequest, handlers.ErrCodeBadRequest)
	rec = s.do(t, http.MethodGet, "/api/admin/applications?election_id=x", s.adminToken, nil)
	expectError(t, rec, http.StatusBadRequest, handlers.ErrCodeBadRequest)
}

func TestCancelElection(t *testing.T) {
	s := newTestSetup(t)
	e := s.schedule(t, nil)
	path := fmt.Sprintf("/api/admin/elections/%d/cancel", e.ID)

	if rec := s.do(t, http.MethodPost, path, s.adminToken, nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	rec := s.do(t, http.MethodPost, path, s.adminToken, nil)
	expectError(t, rec, http.StatusConflict, "ALREADY_CANCELLED")

	otherID := testutil.CreateUser(t, s.repo, "admin2", models.RoleAdmin)
	other := s.schedule(t, nil)
	rec = s.do(t, http.MethodPost, fmt.Sprintf("/api/admin/elections/%d/cancel", other.ID), s.token(t, otherID, models.RoleAdmin), nil)
	expectError(t, rec, http.StatusForbidden, "FORBIDDEN")

	// cancelled elections drop out of the public list by default
	rec = s.do(t, http.MethodGet, "/api/elections", "", nil)
	var listed []models.Election
	decode(t, rec, &listed)
	if len(listed) != 1 || listed[0].ID != other.ID {
		t.Errorf("unexpected public list %+v", listed)
	}
	rec = s.do(t, http.MethodGet, "/api/elections?include_cancelled=true", "", nil)
	decode(t, rec, &listed)
	if len(listed) != 2 {
		t.Errorf("expected both elections, got %d", len(listed))
	}
}

func TestAddCandidate_LimitReached(t *testing.T) {
	s := newTestSetup(t)
	e := s.schedule(t, testutil.IntPtr(1))
	s.addCandidate(t, e.ID, "Alice")

	rec := s.do(t, http.MethodPost, fmt.Sprintf("/api/admin/elections/%d/candidates", e.ID), s.adminToken,
		handlers.CandidateRequest{Name: "Bob", Category: "Student"})
	expectError(t, rec, http.StatusConflict, "LIMIT_REACHED")
}

func TestAdminElections_OnlyOwn(t *testing.T) {
	s := newTestSetup(t)
	mine := s.schedule(t, nil)
	testutil.CreateElection(t, s.repo, T0, T0.Add(time.Hour), nil, nil)

	rec := s.do(t, http.MethodGet, "/api/admin/elections", s.adminToken, nil)
	var list []models.Election
	decode(t, rec, &list)
	if len(list) != 1 || list[0].ID != mine.ID {
		t.Errorf("expected only own election, got %+v", list)
	}
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return fmt.Errorf("connection refused") }

func TestHealth(t *testing.T) {
	s := newTestSetup(t)

	rec := s.do(t, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	s.handlers.Health = failingPinger{}
	rec = s.do(t, http.MethodGet, "/healthz", "", nil)
	expectError(t, rec, http.StatusServiceUnavailable, handlers.ErrCodeUnavailable)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestSetup(t)
	s.handlers.Metrics = metrics.New()
	s.router = s.handlers.Router()

	s.do(t, http.MethodGet, "/api/elections", "", nil)
	rec := s.do(t, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte(`route="/api/elections"`)) {
		t.Error("expected request counter labelled by route")
	}
}

func TestOptionalRoutesAbsent(t *testing.T) {
	s := newTestSetup(t)
	for _, path := range []string{"/metrics", "/ws"} {
		if rec := s.do(t, http.MethodGet, path, "", nil); rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404 when not configured, got %d", path, rec.Code)
		}
	}
}
