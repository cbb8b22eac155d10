package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/electvote/electvote/internal/models"
)

// CreateUser inserts a user. Username and email are stored lower-cased;
// a clash on either yields ErrDuplicate.
func (r *Repository) CreateUser(ctx context.Context, u *models.User) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, r.rebind(`
		INSERT INTO users (name, username, email, id_number, role, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`), u.Name, strings.ToLower(u.Username), nullString(strings.ToLower(u.Email)), nullString(u.IDNumber),
		string(u.Role), u.PasswordHash, u.CreatedAt).Scan(&id)
	if isUniqueViolation(err) {
		return 0, ErrDuplicate
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}

// GetUser retrieves a user by id
func (r *Repository) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return r.getUser(ctx, `id = ?`, id)
}

// GetUserByUsername retrieves a user by case-insensitive username
func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getUser(ctx, `username = ?`, strings.ToLower(username))
}

func (r *Repository) getUser(ctx context.Context, where string, arg any) (*models.User, error) {
	var u models.User
	var email, idNumber sql.NullString
	var role string
	err := r.db.QueryRowContext(ctx, r.rebind(`
		SELECT id, name, username, email, id_number, role, password_hash, created_at
		FROM users WHERE `+where), arg).
		Scan(&u.ID, &u.Name, &u.Username, &email, &idNumber, &role, &u.PasswordHash, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Email = email.String
	u.IDNumber = idNumber.String
	u.Role = models.Role(role)
	return &u, nil
}
