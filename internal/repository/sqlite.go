package repository

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/mattn/go-sqlite3"
)

var sqliteDialect = dialect{
	name:       DriverSQLite,
	sqlDriver:  "sqlite3",
	migrations: sqliteMigrations,
}

var sqliteMigrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		username TEXT NOT NULL UNIQUE,
		email TEXT UNIQUE,
		id_number TEXT,
		role TEXT NOT NULL CHECK (role IN ('admin', 'voter', 'candidate')),
		password_hash TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS elections (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		category TEXT NOT NULL,
		year INTEGER NOT NULL DEFAULT 0,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		created_by INTEGER,
		candidate_limit INTEGER CHECK (candidate_limit IS NULL OR candidate_limit >= 1),
		cancelled_at TEXT,
		cancelled_by INTEGER,
		created_at TEXT NOT NULL,
		CHECK (end_time > start_time),
		FOREIGN KEY (created_by) REFERENCES users(id),
		FOREIGN KEY (cancelled_by) REFERENCES users(id)
	)`,
	`CREATE TABLE IF NOT EXISTS candidates (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		election_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		category TEXT NOT NULL,
		photo_ref TEXT,
		user_id INTEGER,
		created_at TEXT NOT NULL,
		UNIQUE (id, election_id),
		FOREIGN KEY (election_id) REFERENCES elections(id),
		FOREIGN KEY (user_id) REFERENCES users(id)
	)`,
	`CREATE TABLE IF NOT EXISTS candidate_applications (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		applicant_id INTEGER NOT NULL,
		election_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		category TEXT NOT NULL,
		photo_ref TEXT,
		status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'approved', 'rejected')),
		submitted_at TEXT NOT NULL,
		resolved_by INTEGER,
		resolved_at TEXT,
		candidate_id INTEGER,
		FOREIGN KEY (applicant_id) REFERENCES users(id),
		FOREIGN KEY (election_id) REFERENCES elections(id),
		FOREIGN KEY (resolved_by) REFERENCES users(id),
		FOREIGN KEY (candidate_id) REFERENCES candidates(id)
	)`,
	`CREATE TABLE IF NOT EXISTS ballots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		voter_id INTEGER NOT NULL,
		candidate_id INTEGER NOT NULL,
		election_id INTEGER NOT NULL,
		cast_at TEXT NOT NULL,
		UNIQUE (voter_id, election_id),
		FOREIGN KEY (voter_id) REFERENCES users(id),
		FOREIGN KEY (election_id) REFERENCES elections(id),
		FOREIGN KEY (candidate_id, election_id) REFERENCES candidates(id, election_id)
	)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		message TEXT NOT NULL,
		is_read BOOLEAN NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id)
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_applications_live ON candidate_applications(applicant_id, election_id) WHERE status <> 'rejected'`,
	`CREATE INDEX IF NOT EXISTS idx_elections_start ON elections(start_time)`,
	`CREATE INDEX IF NOT EXISTS idx_elections_creator ON elections(created_by)`,
	`CREATE INDEX IF NOT EXISTS idx_candidates_election ON candidates(election_id)`,
	`CREATE INDEX IF NOT EXISTS idx_applications_election ON candidate_applications(election_id)`,
	`CREATE INDEX IF NOT EXISTS idx_ballots_election_candidate ON ballots(election_id, candidate_id)`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id)`,
}

// NewSQLite opens (or creates) a SQLite database file. ":memory:" gives a
// private in-memory database.
func NewSQLite(path string) (*Repository, error) {
	return open(sqliteDialect, sqliteDSN(path), func(db *sql.DB) error {
		// SQLite works best with a single connection; it also keeps a
		// :memory: database alive for the life of the pool.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)

		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			return err
		}
		return nil
	})
}

// sqliteDSN enables foreign keys and a busy timeout unless the caller already
// passed connection parameters.
func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_foreign_keys=on&_busy_timeout=5000"
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return isPgCode(err, pgUniqueViolation)
}

func isForeignKeyViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	return isPgCode(err, pgForeignKeyViolation)
}
