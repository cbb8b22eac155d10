package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/electvote/electvote/internal/models"
)

const applicationColumns = `id, applicant_id, election_id, name, category, photo_ref, status,
	submitted_at, resolved_by, resolved_at, candidate_id`

// CreateApplication inserts a pending application. The partial unique index
// on (applicant_id, election_id) turns a second live application into ErrDuplicate.
func (r *Repository) CreateApplication(ctx context.Context, a *models.CandidateApplication) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, r.rebind(`
		INSERT INTO candidate_applications (applicant_id, election_id, name, category, photo_ref, status, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`), a.ApplicantID, a.ElectionID, a.Name, a.Category, nullString(a.PhotoRef), string(models.ApplicationPending), a.SubmittedAt).Scan(&id)
	if isUniqueViolation(err) {
		return 0, ErrDuplicate
	}
	if isForeignKeyViolation(err) {
		return 0, ErrInvalidReference
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}

// GetApplication retrieves an application by id
func (r *Repository) GetApplication(ctx context.Context, id int64) (*models.CandidateApplication, error) {
	return r.getApplication(ctx, r.db, id)
}

func (r *Repository) getApplication(ctx context.Context, q queryer, id int64) (*models.CandidateApplication, error) {
	row := q.QueryRowContext(ctx, r.rebind(`SELECT `+applicationColumns+` FROM candidate_applications WHERE id = ?`), id)
	a, err := scanApplication(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ListApplications returns applications oldest first
func (r *Repository) ListApplications(ctx context.Context, filter models.ApplicationFilter) ([]models.CandidateApplication, error) {
	var where []string
	var args []any
	if filter.ElectionID != 0 {
		where = append(where, "election_id = ?")
		args = append(args, filter.ElectionID)
	}
	if filter.ApplicantID != 0 {
		where = append(where, "applicant_id = ?")
		args = append(args, filter.ApplicantID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}

	query := `SELECT ` + applicationColumns + ` FROM candidate_applications`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY submitted_at, id`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var apps []models.CandidateApplication
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, *a)
	}
	return apps, rows.Err()
}

// ApproveApplication resolves a pending application in one transaction: the
// status flips to approved, the candidate is created under the ceiling check,
// the candidate id is stored on the application and a voter applicant is
// elevated to candidate. Any failure leaves the application pending.
func (r *Repository) ApproveApplication(ctx context.Context, id, resolverID int64, at string) (*models.Candidate, error) {
	var candidate *models.Candidate
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if err := r.markResolved(ctx, tx, id, models.ApplicationApproved, resolverID, at); err != nil {
			return err
		}

		app, err := r.getApplication(ctx, tx, id)
		if err != nil {
			return err
		}

		c := &models.Candidate{
			ElectionID: app.ElectionID,
			Name:       app.Name,
			Category:   app.Category,
			PhotoRef:   app.PhotoRef,
			UserID:     &app.ApplicantID,
			CreatedAt:  at,
		}
		c.ID, err = r.insertCandidate(ctx, tx, c)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, r.rebind(`UPDATE candidate_applications SET candidate_id = ? WHERE id = ?`), c.ID, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, r.rebind(`UPDATE users SET role = ? WHERE id = ? AND role = ?`),
			string(models.RoleCandidate), app.ApplicantID, string(models.RoleVoter)); err != nil {
			return err
		}

		candidate = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return candidate, nil
}

// RejectApplication marks a pending application rejected
func (r *Repository) RejectApplication(ctx context.Context, id, resolverID int64, at string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		return r.markResolved(ctx, tx, id, models.ApplicationRejected, resolverID, at)
	})
}

// markResolved is the conditional pending -> resolved update. It returns
// ErrNotFound for an absent application and ErrStateChanged when it is no
// longer pending.
func (r *Repository) markResolved(ctx context.Context, tx *sql.Tx, id int64, status models.ApplicationStatus, resolverID int64, at string) error {
	result, err := tx.ExecContext(ctx, r.rebind(`
		UPDATE candidate_applications SET status = ?, resolved_by = ?, resolved_at = ?
		WHERE id = ? AND status = ?
	`), string(status), resolverID, at, id, string(models.ApplicationPending))
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
	if _, err := r.getApplication(ctx, tx, id); err != nil {
		return err
	}
	return ErrStateChanged
}

func scanApplication(row rowScanner) (*models.CandidateApplication, error) {
	var a models.CandidateApplication
	var photo, resolvedAt sql.NullString
	var status string
	var resolvedBy, candidateID sql.NullInt64
	if err := row.Scan(&a.ID, &a.ApplicantID, &a.ElectionID, &a.Name, &a.Category, &photo, &status,
		&a.SubmittedAt, &resolvedBy, &resolvedAt, &candidateID); err != nil {
		return nil, err
	}
	a.PhotoRef = photo.String
	a.Status = models.ApplicationStatus(status)
	a.ResolvedBy = int64Ptr(resolvedBy)
	a.ResolvedAt = resolvedAt.String
	a.CandidateID = int64Ptr(candidateID)
	return &a, nil
}
