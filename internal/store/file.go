package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/interviewpipe/interviewpipe/internal/models"
)

// Constants for file store configuration
const (
	// DefaultDirPermissions defines the default permissions for state directories
	DefaultDirPermissions = 0755
	// DefaultFilePermissions defines the default permissions for session files
	DefaultFilePermissions = 0644
)

// FileStore persists one JSON document per user handle under a state
// directory. Writes go through a temp file and rename so readers never see
// a torn record. Archives live under an archive/ subdirectory and are
// written once.
type FileStore struct {
	dir        string
	archiveDir string
}

// NewFileStore creates a file-backed store rooted at the configured
// directory, creating it if needed.
func NewFileStore(opts ...Option) (*FileStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Dir == "" {
		slog.Error("FileStore state directory not set")
		return nil, fmt.Errorf("state directory not set")
	}
	archiveDir := filepath.Join(cfg.Dir, "archive")
	if err := os.MkdirAll(archiveDir, DefaultDirPermissions); err != nil {
		slog.Error("FileStore.NewFileStore: failed to create state directory", "error", err, "dir", cfg.Dir)
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	slog.Debug("FileStore.NewFileStore: state directory ready", "dir", cfg.Dir)
	return &FileStore{dir: cfg.Dir, archiveDir: archiveDir}, nil
}

func (s *FileStore) sessionPath(userHandle int64) string {
	return filepath.Join(s.dir, fmt.Sprintf("%d.json", userHandle))
}

func (s *FileStore) SaveSession(session *models.InterviewSession) error {
	if err := session.Validate(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session for %d: %w", session.UserHandle, err)
	}
	if err := writeFileAtomic(s.sessionPath(session.UserHandle), data); err != nil {
		slog.Error("FileStore.SaveSession failed", "error", err, "userHandle", session.UserHandle)
		return fmt.Errorf("failed to write session for %d: %w", session.UserHandle, err)
	}
	slog.Debug("FileStore.SaveSession succeeded", "userHandle", session.UserHandle, "stage", session.CurrentStage)
	return nil
}

func (s *FileStore) GetSession(userHandle int64) (*models.InterviewSession, error) {
	data, err := os.ReadFile(s.sessionPath(userHandle))
	if os.IsNotExist(err) {
		return nil, models.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session for %d: %w", userHandle, err)
	}
	var session models.InterviewSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to decode session for %d: %w", userHandle, err)
	}
	return &session, nil
}

func (s *FileStore) DeleteSession(userHandle int64) error {
	err := os.Remove(s.sessionPath(userHandle))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete session for %d: %w", userHandle, err)
	}
	return nil
}

func (s *FileStore) ListSessions() ([]*models.InterviewSession, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list state directory: %w", err)
	}
	var sessions []*models.InterviewSession
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		handle, err := strconv.ParseInt(strings.TrimSuffix(entry.Name(), ".json"), 10, 64)
		if err != nil {
			continue
		}
		session, err := s.GetSession(handle)
		if err != nil {
			slog.Warn("FileStore.ListSessions: skipping unreadable session file", "file", entry.Name(), "error", err)
			continue
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

func (s *FileStore) ArchiveSession(archived *models.ArchivedSession) error {
	data, err := json.MarshalIndent(archived, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal archive for %d: %w", archived.Session.UserHandle, err)
	}
	name := fmt.Sprintf("%d_%d.json", archived.Session.UserHandle, archived.ArchivedAt.UnixNano())
	if err := writeFileAtomic(filepath.Join(s.archiveDir, name), data); err != nil {
		slog.Error("FileStore.ArchiveSession failed", "error", err, "userHandle", archived.Session.UserHandle)
		return fmt.Errorf("failed to write archive for %d: %w", archived.Session.UserHandle, err)
	}
	slog.Debug("FileStore.ArchiveSession succeeded",
		"userHandle", archived.Session.UserHandle, "reason", archived.CompletionReason)
	return nil
}

func (s *FileStore) GetArchived(userHandle int64) (*models.ArchivedSession, error) {
	prefix := fmt.Sprintf("%d_", userHandle)
	entries, err := os.ReadDir(s.archiveDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list archive directory: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), prefix) {
			names = append(names, entry.Name())
		}
	}
	if len(names) == 0 {
		return nil, models.ErrArchiveNotFound
	}
	sort.Slice(names, func(i, j int) bool {
		return archiveStamp(names[i]) < archiveStamp(names[j])
	})
	data, err := os.ReadFile(filepath.Join(s.archiveDir, names[len(names)-1]))
	if err != nil {
		return nil, fmt.Errorf("failed to read archive for %d: %w", userHandle, err)
	}
	var archived models.ArchivedSession
	if err := json.Unmarshal(data, &archived); err != nil {
		return nil, fmt.Errorf("failed to decode archive for %d: %w", userHandle, err)
	}
	return &archived, nil
}

func (s *FileStore) Close() error {
	return nil
}

func archiveStamp(name string) int64 {
	base := strings.TrimSuffix(name, ".json")
	idx := strings.LastIndex(base, "_")
	if idx < 0 {
		return 0
	}
	stamp, _ := strconv.ParseInt(base[idx+1:], 10, 64)
	return stamp
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it into place.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, DefaultFilePermissions); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
