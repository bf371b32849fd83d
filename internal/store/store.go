// Package store provides session storage backends for InterviewPipe.
//
// It includes an in-memory store for tests, a file-backed store used by
// default, and SQLite/Postgres stores for deployments that already run a
// database.
package store

import (
	"strings"

	"github.com/interviewpipe/interviewpipe/internal/models"
)

// Store persists interview sessions and their archives. All writes are
// whole-record: the orchestrator saves the full session after each turn, so
// a crash never leaves a half-applied turn behind.
type Store interface {
	// SaveSession persists the session keyed by its user handle,
	// overwriting any previous record.
	SaveSession(session *models.InterviewSession) error
	// GetSession returns the active session for the handle, or
	// models.ErrSessionNotFound.
	GetSession(userHandle int64) (*models.InterviewSession, error)
	// DeleteSession removes the active session. Deleting a missing
	// session is not an error.
	DeleteSession(userHandle int64) error
	// ListSessions returns all active sessions in no particular order.
	ListSessions() ([]*models.InterviewSession, error)
	// ArchiveSession records a completed session. Archives are
	// append-only; a handle may accumulate several across resets.
	ArchiveSession(archived *models.ArchivedSession) error
	// GetArchived returns the most recent archive for the handle, or
	// models.ErrArchiveNotFound.
	GetArchived(userHandle int64) (*models.ArchivedSession, error)
	// Close releases backend resources.
	Close() error
}

// Opts holds configuration for store constructors.
type Opts struct {
	// DSN is the database connection string (file path for SQLite).
	DSN string
	// Dir is the state directory for the file store.
	Dir string
}

// Option configures a store backend.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets the Postgres connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithStateDir sets the file store directory.
func WithStateDir(dir string) Option {
	return func(o *Opts) { o.Dir = dir }
}

// DetectDSNType reports which database backend a DSN addresses: "postgres"
// for URL or key=value connection strings, "sqlite" for file paths.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}
