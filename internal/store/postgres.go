// Package store provides session storage backends for InterviewPipe.
//
// This file implements a PostgreSQL-backed store.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/interviewpipe/interviewpipe/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) SaveSession(session *models.InterviewSession) error {
	if err := session.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session for %d: %w", session.UserHandle, err)
	}
	_, err = s.db.Exec(`INSERT INTO sessions (user_handle, session_json, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (user_handle) DO UPDATE SET session_json = EXCLUDED.session_json, updated_at = NOW()`,
		session.UserHandle, string(data))
	if err != nil {
		slog.Error("PostgresStore SaveSession failed", "error", err, "userHandle", session.UserHandle)
		return fmt.Errorf("failed to save session for %d: %w", session.UserHandle, err)
	}
	slog.Debug("PostgresStore SaveSession succeeded", "userHandle", session.UserHandle, "stage", session.CurrentStage)
	return nil
}

func (s *PostgresStore) GetSession(userHandle int64) (*models.InterviewSession, error) {
	var data string
	err := s.db.QueryRow(`SELECT session_json FROM sessions WHERE user_handle = $1`, userHandle).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, models.ErrSessionNotFound
	}
	if err != nil {
		slog.Error("PostgresStore GetSession query failed", "error", err, "userHandle", userHandle)
		return nil, fmt.Errorf("failed to query session for %d: %w", userHandle, err)
	}
	var session models.InterviewSession
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("failed to decode session for %d: %w", userHandle, err)
	}
	return &session, nil
}

func (s *PostgresStore) DeleteSession(userHandle int64) error {
	_, err := s.db.Exec(`DELETE FROM sessions WHERE user_handle = $1`, userHandle)
	if err != nil {
		slog.Error("PostgresStore DeleteSession failed", "error", err, "userHandle", userHandle)
		return fmt.Errorf("failed to delete session for %d: %w", userHandle, err)
	}
	return nil
}

func (s *PostgresStore) ListSessions() ([]*models.InterviewSession, error) {
	rows, err := s.db.Query(`SELECT session_json FROM sessions`)
	if err != nil {
		slog.Error("PostgresStore ListSessions query failed", "error", err)
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.InterviewSession
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		var session models.InterviewSession
		if err := json.Unmarshal([]byte(data), &session); err != nil {
			return nil, fmt.Errorf("failed to decode session row: %w", err)
		}
		sessions = append(sessions, &session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate session rows: %w", err)
	}
	return sessions, nil
}

func (s *PostgresStore) ArchiveSession(archived *models.ArchivedSession) error {
	data, err := json.Marshal(archived)
	if err != nil {
		return fmt.Errorf("failed to marshal archive for %d: %w", archived.Session.UserHandle, err)
	}
	_, err = s.db.Exec(`INSERT INTO archives (user_handle, completion_reason, archived_at, archive_json) VALUES ($1, $2, $3, $4)`,
		archived.Session.UserHandle, string(archived.CompletionReason), archived.ArchivedAt, string(data))
	if err != nil {
		slog.Error("PostgresStore ArchiveSession failed", "error", err, "userHandle", archived.Session.UserHandle)
		return fmt.Errorf("failed to insert archive for %d: %w", archived.Session.UserHandle, err)
	}
	return nil
}

func (s *PostgresStore) GetArchived(userHandle int64) (*models.ArchivedSession, error) {
	var data string
	err := s.db.QueryRow(`SELECT archive_json FROM archives WHERE user_handle = $1 ORDER BY archived_at DESC, id DESC LIMIT 1`,
		userHandle).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, models.ErrArchiveNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query archive for %d: %w", userHandle, err)
	}
	var archived models.ArchivedSession
	if err := json.Unmarshal([]byte(data), &archived); err != nil {
		return nil, fmt.Errorf("failed to decode archive for %d: %w", userHandle, err)
	}
	return &archived, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
