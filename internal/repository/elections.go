package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/electvote/electvote/internal/models"
)

const electionColumns = `id, title, category, year, start_time, end_time, created_by,
	candidate_limit, cancelled_at, cancelled_by, created_at`

// CreateElection inserts an election. Start and end must already be stored instants.
func (r *Repository) CreateElection(ctx context.Context, e *models.Election) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, r.rebind(`
		INSERT INTO elections (title, category, year, start_time, end_time, created_by, candidate_limit, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`), e.Title, e.Category, e.Year, e.StartTime, e.EndTime, nullInt64(e.CreatedBy), nullInt(e.CandidateLimit), e.CreatedAt).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// GetElection retrieves an election by id
func (r *Repository) GetElection(ctx context.Context, id int64) (*models.Election, error) {
	return r.getElection(ctx, r.db, id)
}

func (r *Repository) getElection(ctx context.Context, q queryer, id int64) (*models.Election, error) {
	row := q.QueryRowContext(ctx, r.rebind(`SELECT `+electionColumns+` FROM elections WHERE id = ?`), id)
	e, err := scanElection(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// ListElections returns elections ordered by start instant
func (r *Repository) ListElections(ctx context.Context, filter models.ElectionFilter) ([]models.Election, error) {
	var where []string
	var args []any
	if filter.From != "" {
		where = append(where, "start_time >= ?")
		args = append(args, filter.From)
	}
	if filter.To != "" {
		where = append(where, "start_time <= ?")
		args = append(args, filter.To)
	}
	if filter.CreatedBy != nil {
		where = append(where, "created_by = ?")
		args = append(args, *filter.CreatedBy)
	}
	if filter.ExcludeCancelled {
		where = append(where, "cancelled_at IS NULL")
	}

	query := `SELECT ` + electionColumns + ` FROM elections`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY start_time, id`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var elections []models.Election
	for rows.Next() {
		e, err := scanElection(rows)
		if err != nil {
			return nil, err
		}
		elections = append(elections, *e)
	}
	return elections, rows.Err()
}

// CancelElection records the terminal cancellation. It is a conditional
// update: ErrStateChanged if the election was already cancelled.
func (r *Repository) CancelElection(ctx context.Context, id, actorID int64, at string) error {
	result, err := r.db.ExecContext(ctx, r.rebind(`
		UPDATE elections SET cancelled_at = ?, cancelled_by = ?
		WHERE id = ? AND cancelled_at IS NULL
	`), at, actorID, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	// Nothing updated: tell absent from already cancelled
	if _, err := r.GetElection(ctx, id); err != nil {
		return err
	}
	return ErrStateChanged
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanElection(row rowScanner) (*models.Election, error) {
	var e models.Election
	var createdBy, cancelledBy, limit sql.NullInt64
	var cancelledAt sql.NullString
	if err := row.Scan(&e.ID, &e.Title, &e.Category, &e.Year, &e.StartTime, &e.EndTime,
		&createdBy, &limit, &cancelledAt, &cancelledBy, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.CreatedBy = int64Ptr(createdBy)
	e.CandidateLimit = intPtr(limit)
	e.CancelledAt = cancelledAt.String
	e.CancelledBy = int64Ptr(cancelledBy)
	return &e, nil
}
