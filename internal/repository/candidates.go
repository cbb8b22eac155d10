package repository

import (
	"context"
	"database/sql"

	"github.com/electvote/electvote/internal/models"
)

// insertCandidateSQL is a single conditional insert: the row is written only
// while the election is below its ceiling (or has none). Casts keep parameter
// types explicit for PostgreSQL.
const insertCandidateSQL = `
	INSERT INTO candidates (election_id, name, category, photo_ref, user_id, created_at)
	SELECT CAST(? AS BIGINT), CAST(? AS TEXT), CAST(? AS TEXT), CAST(? AS TEXT), CAST(? AS BIGINT), CAST(? AS TEXT)
	WHERE (SELECT candidate_limit FROM elections WHERE id = ?) IS NULL
	   OR (SELECT COUNT(*) FROM candidates WHERE election_id = ?) < (SELECT candidate_limit FROM elections WHERE id = ?)
	RETURNING id`

// CreateCandidate adds a roster entry, failing with ErrLimitReached when the
// election's ceiling is already met.
func (r *Repository) CreateCandidate(ctx context.Context, c *models.Candidate) (int64, error) {
	var id int64
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = r.insertCandidate(ctx, tx, c)
		return err
	})
	return id, err
}

// insertCandidate must run inside a transaction so the election lock (where
// the dialect has one) covers the count and the insert.
func (r *Repository) insertCandidate(ctx context.Context, tx *sql.Tx, c *models.Candidate) (int64, error) {
	if r.dialect.lockElection != "" {
		var locked int64
		err := tx.QueryRowContext(ctx, r.dialect.lockElection, c.ElectionID).Scan(&locked)
		if err == sql.ErrNoRows {
			return 0, ErrNotFound
		}
		if err != nil {
			return 0, err
		}
	}

	var id int64
	err := tx.QueryRowContext(ctx, r.rebind(insertCandidateSQL),
		c.ElectionID, c.Name, c.Category, nullString(c.PhotoRef), nullInt64(c.UserID), c.CreatedAt,
		c.ElectionID, c.ElectionID, c.ElectionID,
	).Scan(&id)
	switch {
	case err == sql.ErrNoRows:
		return 0, ErrLimitReached
	case isForeignKeyViolation(err):
		return 0, ErrInvalidReference
	case err != nil:
		return 0, err
	}
	return id, nil
}

// GetCandidate retrieves a candidate by id
func (r *Repository) GetCandidate(ctx context.Context, id int64) (*models.Candidate, error) {
	row := r.db.QueryRowContext(ctx, r.rebind(`
		SELECT id, election_id, name, category, photo_ref, user_id, created_at
		FROM candidates WHERE id = ?
	`), id)
	c, err := scanCandidate(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListCandidates returns the roster of an election in creation order
func (r *Repository) ListCandidates(ctx context.Context, electionID int64) ([]models.Candidate, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(`
		SELECT id, election_id, name, category, photo_ref, user_id, created_at
		FROM candidates WHERE election_id = ?
		ORDER BY id
	`), electionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []models.Candidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, *c)
	}
	return candidates, rows.Err()
}

// CountCandidates returns the roster size of an election
func (r *Repository) CountCandidates(ctx context.Context, electionID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, r.rebind(`SELECT COUNT(*) FROM candidates WHERE election_id = ?`), electionID).Scan(&count)
	return count, err
}

func scanCandidate(row rowScanner) (*models.Candidate, error) {
	var c models.Candidate
	var photo sql.NullString
	var userID sql.NullInt64
	if err := row.Scan(&c.ID, &c.ElectionID, &c.Name, &c.Category, &photo, &userID, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.PhotoRef = photo.String
	c.UserID = int64Ptr(userID)
	return &c, nil
}
