package models

// Role tags a user account
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleVoter     Role = "voter"
	RoleCandidate Role = "candidate"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleVoter, RoleCandidate:
		return true
	}
	return false
}

// User is a registered account
type User struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Username     string `json:"username"`
	Email        string `json:"email,omitempty"`
	IDNumber     string `json:"id_number,omitempty"`
	Role         Role   `json:"role"`
	PasswordHash string `json:"-"`
	CreatedAt    string `json:"created_at"`
}

// Actor is the already-authenticated identity performing an operation
type Actor struct {
	ID   int64 `json:"id"`
	Role Role  `json:"role"`
}

// IsAdmin reports whether the actor holds the admin role
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// Election is a time-boxed contest. StartTime and EndTime hold UTC instants
// in the fixed-width layout of package timewindow.
type Election struct {
	ID             int64  `json:"id"`
	Title          string `json:"title"`
	Category       string `json:"category"`
	Year           int    `json:"year"`
	StartTime      string `json:"start_time"`
	EndTime        string `json:"end_time"`
	CreatedBy      *int64 `json:"created_by,omitempty"`
	CandidateLimit *int   `json:"candidate_limit,omitempty"`
	CancelledAt    string `json:"cancelled_at,omitempty"`
	CancelledBy    *int64 `json:"cancelled_by,omitempty"`
	CreatedAt      string `json:"created_at"`

	// Status is derived at read time, never stored
	Status string `json:"status,omitempty"`
}

// Cancelled reports whether the terminal cancellation has been recorded
func (e Election) Cancelled() bool {
	return e.CancelledAt != ""
}

// OwnedBy reports whether actorID may modify the election. Elections without
// a recorded creator may be modified by any admin.
func (e Election) OwnedBy(actorID int64) bool {
	return e.CreatedBy == nil || *e.CreatedBy == actorID
}

// ElectionFilter narrows ListElections. Zero values are ignored.
type ElectionFilter struct {
	From             string // start_time >= From
	To               string // start_time <= To
	CreatedBy        *int64
	ExcludeCancelled bool
}

// Candidate is a roster entry of one election
type Candidate struct {
	ID         int64  `json:"id"`
	ElectionID int64  `json:"election_id"`
	Name       string `json:"name"`
	Category   string `json:"category"`
	PhotoRef   string `json:"photo_ref,omitempty"`
	UserID     *int64 `json:"user_id,omitempty"`
	CreatedAt  string `json:"created_at"`
}

// ApplicationStatus is the review state of a CandidateApplication
type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationApproved ApplicationStatus = "approved"
	ApplicationRejected ApplicationStatus = "rejected"
)

// Decision is an admin's verdict on a pending application
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// CandidateApplication is a self-registration request
type CandidateApplication struct {
	ID          int64             `json:"id"`
	ApplicantID int64             `json:"applicant_id"`
	ElectionID  int64             `json:"election_id"`
	Name        string            `json:"name"`
	Category    string            `json:"category"`
	PhotoRef    string            `json:"photo_ref,omitempty"`
	Status      ApplicationStatus `json:"status"`
	SubmittedAt string            `json:"submitted_at"`
	ResolvedBy  *int64            `json:"resolved_by,omitempty"`
	ResolvedAt  string            `json:"resolved_at,omitempty"`
	CandidateID *int64            `json:"candidate_id,omitempty"`
}

// ApplicationFilter narrows ListApplications. Zero values are ignored.
type ApplicationFilter struct {
	ElectionID  int64
	ApplicantID int64
	Status      ApplicationStatus
}

// Ballot is one admitted vote. (VoterID, ElectionID) is unique.
type Ballot struct {
	ID          int64  `json:"id"`
	VoterID     int64  `json:"voter_id"`
	CandidateID int64  `json:"candidate_id"`
	ElectionID  int64  `json:"election_id"`
	CastAt      string `json:"cast_at"`
}

// TallyRow is a candidate with its ballot count
type TallyRow struct {
	Rank        int    `json:"rank"`
	CandidateID int64  `json:"candidate_id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	PhotoRef    string `json:"photo_ref,omitempty"`
	Votes       int    `json:"votes"`
}

// Notification is an in-app message for a user
type Notification struct {
	ID        int64  `json:"id"`
	UserID    int64  `json:"user_id"`
	Message   string `json:"message"`
	Read      bool   `json:"read"`
	CreatedAt string `json:"created_at"`
}

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}
