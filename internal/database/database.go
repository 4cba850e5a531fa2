package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite-backed document store. The embedded Queries run
// outside any transaction; WithTx hands out a transaction-bound Queries.
type Store struct {
	*Queries
	db *sql.DB
}

// Open creates the database file if needed, applies pragmas and runs migrations
func Open(path string, loc *time.Location) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// Open with DSN options for SQLite pragmas
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection serialises writers; transactions hold it for their lifetime.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return New(db, loc), nil
}

// New wraps an already opened and migrated database
func New(db *sql.DB, loc *time.Location) *Store {
	if loc == nil {
		loc = time.Local
	}
	return &Store{
		Queries: &Queries{q: db, loc: loc},
		db:      db,
	}
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB returns the underlying handle
func (s *Store) DB() *sql.DB {
	return s.db
}

// WithTx runs fn inside a transaction. The transaction commits when fn
// returns nil and rolls back otherwise.
func (s *Store) WithTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&Queries{q: tx, loc: s.loc}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return wrapError(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

// RunMigrations creates all necessary tables
func RunMigrations(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS skills (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE COLLATE NOCASE
	);

	CREATE TABLE IF NOT EXISTS jobs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		requirements TEXT NOT NULL DEFAULT '',
		min_experience REAL NOT NULL DEFAULT 0,
		ctc_min REAL,
		ctc_max REAL,
		location TEXT NOT NULL DEFAULT '',
		job_type TEXT NOT NULL DEFAULT 'onsite',
		recruiter_id INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		CHECK(job_type IN ('onsite', 'remote', 'hybrid'))
	);

	CREATE TABLE IF NOT EXISTS job_skills (
		job_id INTEGER NOT NULL,
		skill_id INTEGER NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (job_id, skill_id),
		FOREIGN KEY (job_id) REFERENCES jobs(id) ON DELETE CASCADE,
		FOREIGN KEY (skill_id) REFERENCES skills(id) ON DELETE CASCADE
	);

	CREATE VIRTUAL TABLE IF NOT EXISTS jobs_fts USING fts4(title, description, requirements, skills, tokenize=porter);

	CREATE TABLE IF NOT EXISTS candidates (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		phone TEXT NOT NULL,
		email TEXT NOT NULL,
		about TEXT NOT NULL DEFAULT '',
		experience REAL NOT NULL DEFAULT 0,
		current_ctc REAL,
		expected_ctc REAL,
		notice_period TEXT NOT NULL DEFAULT '',
		location_preference TEXT NOT NULL DEFAULT 'flexible',
		status TEXT NOT NULL DEFAULT 'pending',
		score REAL NOT NULL DEFAULT 0,
		source TEXT NOT NULL DEFAULT 'manual',
		job_id INTEGER,
		last_contact DATETIME,
		recruiter_id INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (job_id) REFERENCES jobs(id) ON DELETE SET NULL,
		UNIQUE (recruiter_id, email),
		UNIQUE (recruiter_id, phone),
		CHECK(status IN ('pending', 'screening', 'shortlisted', 'rejected', 'hired')),
		CHECK(location_preference IN ('onsite', 'remote', 'hybrid', 'flexible')),
		CHECK(source IN ('form', 'manual'))
	);

	CREATE TABLE IF NOT EXISTS candidate_ratings (
		candidate_id INTEGER NOT NULL,
		skill_id INTEGER NOT NULL,
		rating INTEGER NOT NULL,
		PRIMARY KEY (candidate_id, skill_id),
		FOREIGN KEY (candidate_id) REFERENCES candidates(id) ON DELETE CASCADE,
		FOREIGN KEY (skill_id) REFERENCES skills(id) ON DELETE CASCADE,
		CHECK(rating BETWEEN 1 AND 5)
	);

	CREATE TABLE IF NOT EXISTS slots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		date TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		interviewer_id INTEGER NOT NULL,
		is_available BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL,
		CHECK(end_time > start_time)
	);

	CREATE TABLE IF NOT EXISTS appointments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		job_id INTEGER NOT NULL,
		candidate_id INTEGER NOT NULL,
		slot_id INTEGER NOT NULL,
		recruiter_id INTEGER NOT NULL,
		meeting_link TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'booked',
		notes TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		FOREIGN KEY (job_id) REFERENCES jobs(id),
		FOREIGN KEY (candidate_id) REFERENCES candidates(id),
		FOREIGN KEY (slot_id) REFERENCES slots(id),
		CHECK(status IN ('booked', 'completed', 'canceled'))
	);

	CREATE TABLE IF NOT EXISTS call_queue (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		candidate_id INTEGER NOT NULL,
		job_id INTEGER,
		recruiter_id INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		priority INTEGER NOT NULL DEFAULT 0,
		attempts INTEGER NOT NULL DEFAULT 0,
		max_attempts INTEGER NOT NULL DEFAULT 3,
		scheduled_time DATETIME NOT NULL,
		last_attempt DATETIME,
		session_id TEXT NOT NULL DEFAULT '',
		call_sid TEXT NOT NULL DEFAULT '',
		error_message TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		FOREIGN KEY (candidate_id) REFERENCES candidates(id) ON DELETE CASCADE,
		CHECK(status IN ('pending', 'in_progress', 'completed', 'failed')),
		CHECK(max_attempts >= 1)
	);

	CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		candidate_id INTEGER NOT NULL,
		job_id INTEGER,
		recruiter_id INTEGER NOT NULL,
		queue_entry_id INTEGER,
		stage TEXT NOT NULL DEFAULT 'greeting',
		skill_index INTEGER NOT NULL DEFAULT 0,
		terminal_reason TEXT NOT NULL DEFAULT '',
		step INTEGER NOT NULL DEFAULT 0,
		job_skills TEXT NOT NULL DEFAULT '[]',
		entities TEXT NOT NULL DEFAULT '{}',
		history TEXT NOT NULL DEFAULT '[]',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		FOREIGN KEY (candidate_id) REFERENCES candidates(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS conversations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		candidate_id INTEGER NOT NULL,
		session_id TEXT NOT NULL DEFAULT '',
		transcript TEXT NOT NULL,
		entities_extracted TEXT NOT NULL DEFAULT '{}',
		created_at DATETIME NOT NULL,
		FOREIGN KEY (candidate_id) REFERENCES candidates(id) ON DELETE CASCADE
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_slots_identity ON slots(date, interviewer_id, start_time);
	CREATE INDEX IF NOT EXISTS idx_slots_available ON slots(is_available, date, start_time);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_appointments_active_slot ON appointments(slot_id) WHERE status IN ('booked', 'completed');
	CREATE INDEX IF NOT EXISTS idx_appointments_candidate ON appointments(candidate_id, status);
	CREATE INDEX IF NOT EXISTS idx_appointments_recruiter ON appointments(recruiter_id);
	CREATE INDEX IF NOT EXISTS idx_candidates_status ON candidates(status, last_contact);
	CREATE INDEX IF NOT EXISTS idx_jobs_experience ON jobs(min_experience);
	CREATE INDEX IF NOT EXISTS idx_call_queue_pick ON call_queue(status, priority DESC, scheduled_time);
	CREATE INDEX IF NOT EXISTS idx_call_queue_candidate ON call_queue(candidate_id, job_id, status);
	CREATE INDEX IF NOT EXISTS idx_call_queue_sid ON call_queue(call_sid);
	CREATE INDEX IF NOT EXISTS idx_conversations_candidate ON conversations(candidate_id);
	`

	_, err := db.Exec(schema)
	return err
}
