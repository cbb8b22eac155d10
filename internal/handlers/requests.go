package handlers

// SignupRequest represents a request to create a voter account
type SignupRequest struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
	IDNumber string `json:"id_number"`
}

// LoginRequest represents a login attempt
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ScheduleElectionRequest represents a request to schedule an election.
// StartTime and EndTime are local wall-clock values ("2025-03-01T14:30")
// unless they carry their own zone; TZOffset is the client's offset east
// of UTC in minutes.
type ScheduleElectionRequest struct {
	Title          string `json:"title"`
	Category       string `json:"category"`
	Year           int    `json:"year"`
	StartTime      string `json:"start_time"`
	EndTime        string `json:"end_time"`
	TZOffset       int    `json:"tz_offset"`
	CandidateLimit *int   `json:"candidate_limit"`
}

// CandidateRequest represents a roster entry added by an admin
type CandidateRequest struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	PhotoRef string `json:"photo_ref"`
	UserID   *int64 `json:"user_id"`
}

// ApplicationRequest represents a self-registration request
type ApplicationRequest struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	PhotoRef string `json:"photo_ref"`
}

// ResolveRequest carries an admin's decision on an application
type ResolveRequest struct {
	Decision string `json:"decision"`
}

// BallotRequest represents a vote
type BallotRequest struct {
	CandidateID int64 `json:"candidate_id"`
}
