// Package store provides session storage backends for InterviewPipe.
//
// This file implements an SQLite-backed store. Sessions are serialized as
// JSON documents so the schema never chases the session struct.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/interviewpipe/interviewpipe/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) SaveSession(session *models.InterviewSession) error {
	if err := session.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session for %d: %w", session.UserHandle, err)
	}
	_, err = s.db.Exec(`INSERT INTO sessions (user_handle, session_json, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_handle) DO UPDATE SET session_json = excluded.session_json, updated_at = CURRENT_TIMESTAMP`,
		session.UserHandle, string(data))
	if err != nil {
		slog.Error("SQLiteStore SaveSession failed", "error", err, "userHandle", session.UserHandle)
		return fmt.Errorf("failed to save session for %d: %w", session.UserHandle, err)
	}
	slog.Debug("SQLiteStore SaveSession succeeded", "userHandle", session.UserHandle, "stage", session.CurrentStage)
	return nil
}

func (s *SQLiteStore) GetSession(userHandle int64) (*models.InterviewSession, error) {
	var data string
	err := s.db.QueryRow(`SELECT session_json FROM sessions WHERE user_handle = ?`, userHandle).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, models.ErrSessionNotFound
	}
	if err != nil {
		slog.Error("SQLiteStore GetSession query failed", "error", err, "userHandle", userHandle)
		return nil, fmt.Errorf("failed to query session for %d: %w", userHandle, err)
	}
	var session models.InterviewSession
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("failed to decode session for %d: %w", userHandle, err)
	}
	return &session, nil
}

func (s *SQLiteStore) DeleteSession(userHandle int64) error {
	_, err := s.db.Exec(`DELETE FROM sessions WHERE user_handle = ?`, userHandle)
	if err != nil {
		slog.Error("SQLiteStore DeleteSession failed", "error", err, "userHandle", userHandle)
		return fmt.Errorf("failed to delete session for %d: %w", userHandle, err)
	}
	return nil
}

func (s *SQLiteStore) ListSessions() ([]*models.InterviewSession, error) {
	rows, err := s.db.Query(`SELECT session_json FROM sessions`)
	if err != nil {
		slog.Error("SQLiteStore ListSessions query failed", "error", err)
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

func (s *SQLiteStore) ArchiveSession(archived *models.ArchivedSession) error {
	data, err := json.Marshal(archived)
	if err != nil {
		return fmt.Errorf("failed to marshal archive for %d: %w", archived.Session.UserHandle, err)
	}
	_, err = s.db.Exec(`INSERT INTO archives (user_handle, completion_reason, archived_at, archive_json) VALUES (?, ?, ?, ?)`,
		archived.Session.UserHandle, string(archived.CompletionReason), archived.ArchivedAt, string(data))
	if err != nil {
		slog.Error("SQLiteStore ArchiveSession failed", "error", err, "userHandle", archived.Session.UserHandle)
		return fmt.Errorf("failed to insert archive for %d: %w", archived.Session.UserHandle, err)
	}
	slog.Debug("SQLiteStore ArchiveSession succeeded",
		"userHandle", archived.Session.UserHandle, "reason", archived.CompletionReason)
	return nil
}

func (s *SQLiteStore) GetArchived(userHandle int64) (*models.ArchivedSession, error) {
	var data string
	err := s.db.QueryRow(`SELECT archive_json FROM archives WHERE user_handle = ? ORDER BY archived_at DESC, id DESC LIMIT 1`,
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

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
