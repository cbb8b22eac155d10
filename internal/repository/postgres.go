package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

var postgresDialect = dialect{
	name:         DriverPostgres,
	sqlDriver:    "pgx",
	migrations:   postgresMigrations,
	placeholder:  dollarPlaceholder,
	lockElection: `SELECT id FROM elections WHERE id = $1 FOR UPDATE`,
}

var postgresMigrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		username TEXT NOT NULL UNIQUE,
		email TEXT UNIQUE,
		id_number TEXT,
		role TEXT NOT NULL CHECK (role IN ('admin', 'voter', 'candidate')),
		password_hash TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS elections (
		id BIGSERIAL PRIMARY KEY,
		title TEXT NOT NULL,
		category TEXT NOT NULL,
		year INTEGER NOT NULL DEFAULT 0,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		created_by BIGINT REFERENCES users(id),
		candidate_limit INTEGER CHECK (candidate_limit IS NULL OR candidate_limit >= 1),
		cancelled_at TEXT,
		cancelled_by BIGINT REFERENCES users(id),
		created_at TEXT NOT NULL,
		CHECK (end_time COLLATE "C" > start_time COLLATE "C")
	)`,
	`CREATE TABLE IF NOT EXISTS candidates (
		id BIGSERIAL PRIMARY KEY,
		election_id BIGINT NOT NULL REFERENCES elections(id),
		name TEXT NOT NULL,
		category TEXT NOT NULL,
		photo_ref TEXT,
		user_id BIGINT REFERENCES users(id),
		created_at TEXT NOT NULL,
		UNIQUE (id, election_id)
	)`,
	`CREATE TABLE IF NOT EXISTS candidate_applications (
		id BIGSERIAL PRIMARY KEY,
		applicant_id BIGINT NOT NULL REFERENCES users(id),
		election_id BIGINT NOT NULL REFERENCES elections(id),
		name TEXT NOT NULL,
		category TEXT NOT NULL,
		photo_ref TEXT,
		status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'approved', 'rejected')),
		submitted_at TEXT NOT NULL,
		resolved_by BIGINT REFERENCES users(id),
		resolved_at TEXT,
		candidate_id BIGINT REFERENCES candidates(id)
	)`,
	`CREATE TABLE IF NOT EXISTS ballots (
		id BIGSERIAL PRIMARY KEY,
		voter_id BIGINT NOT NULL REFERENCES users(id),
		candidate_id BIGINT NOT NULL,
		election_id BIGINT NOT NULL REFERENCES elections(id),
		cast_at TEXT NOT NULL,
		UNIQUE (voter_id, election_id),
		FOREIGN KEY (candidate_id, election_id) REFERENCES candidates(id, election_id)
	)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id),
		message TEXT NOT NULL,
		is_read BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_applications_live ON candidate_applications(applicant_id, election_id) WHERE status <> 'rejected'`,
	`CREATE INDEX IF NOT EXISTS idx_elections_start ON elections(start_time COLLATE "C")`,
	`CREATE INDEX IF NOT EXISTS idx_elections_creator ON elections(created_by)`,
	`CREATE INDEX IF NOT EXISTS idx_candidates_election ON candidates(election_id)`,
	`CREATE INDEX IF NOT EXISTS idx_applications_election ON candidate_applications(election_id)`,
	`CREATE INDEX IF NOT EXISTS idx_ballots_election_candidate ON ballots(election_id, candidate_id)`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id)`,
}

// NewPostgres connects to a PostgreSQL server through the pgx stdlib driver
func NewPostgres(databaseURL string) (*Repository, error) {
	return open(postgresDialect, databaseURL, func(db *sql.DB) error {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("failed to ping database: %w", err)
		}
		return nil
	})
}

func isPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
