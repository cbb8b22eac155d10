package repository

import (
	"context"

	"github.com/electvote/electvote/internal/models"
)

// InsertBallot records a ballot with a single INSERT. The UNIQUE(voter_id,
// election_id) constraint makes the storage engine the arbiter between
// concurrent attempts: exactly one succeeds and the rest get ErrDuplicate.
// A candidate outside the election fails the composite foreign key and
// yields ErrInvalidReference; a voter without an account yields
// ErrUnknownVoter.
func (r *Repository) InsertBallot(ctx context.Context, b *models.Ballot) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, r.rebind(`
		INSERT INTO ballots (voter_id, candidate_id, election_id, cast_at)
		VALUES (?, ?, ?, ?)
		RETURNING id
	`), b.VoterID, b.CandidateID, b.ElectionID, b.CastAt).Scan(&id)
	switch {
	case isUniqueViolation(err):
		return 0, ErrDuplicate
	case isForeignKeyViolation(err):
		return 0, r.ballotReferenceError(ctx, b.VoterID)
	case err != nil:
		return 0, err
	}
	return id, nil
}

// ballotReferenceError tells which foreign key a rejected ballot broke.
// SQLite does not name the constraint, so the voter is looked up.
func (r *Repository) ballotReferenceError(ctx context.Context, voterID int64) error {
	var n int
	err := r.db.QueryRowContext(ctx, r.rebind(`SELECT COUNT(*) FROM users WHERE id = ?`), voterID).Scan(&n)
	switch {
	case err != nil:
		return err
	case n == 0:
		return ErrUnknownVoter
	}
	return ErrInvalidReference
}

// HasVoted reports whether the voter has a ballot in the election
func (r *Repository) HasVoted(ctx context.Context, voterID, electionID int64) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, r.rebind(`
		SELECT COUNT(*) FROM ballots WHERE voter_id = ? AND election_id = ?
	`), voterID, electionID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// CountBallots returns the number of ballots cast in an election
func (r *Repository) CountBallots(ctx context.Context, electionID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, r.rebind(`SELECT COUNT(*) FROM ballots WHERE election_id = ?`), electionID).Scan(&count)
	return count, err
}

// TallyElection counts ballots per candidate with a LEFT JOIN so candidates
// without ballots appear with zero. Rows come back in candidate id order;
// ranking is the caller's job.
func (r *Repository) TallyElection(ctx context.Context, electionID int64) ([]models.TallyRow, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(`
		SELECT c.id, c.name, c.category, COALESCE(c.photo_ref, ''), COUNT(b.id)
		FROM candidates c
		LEFT JOIN ballots b ON b.candidate_id = c.id AND b.election_id = c.election_id
		WHERE c.election_id = ?
		GROUP BY c.id, c.name, c.category, c.photo_ref
		ORDER BY c.id
	`), electionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tally := []models.TallyRow{}
	for rows.Next() {
		var row models.TallyRow
		if err := rows.Scan(&row.CandidateID, &row.Name, &row.Category, &row.PhotoRef, &row.Votes); err != nil {
			return nil, err
		}
		tally = append(tally, row)
	}
	return tally, rows.Err()
}
