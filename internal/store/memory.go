package store

import (
	"sync"

	"github.com/interviewpipe/interviewpipe/internal/models"
)

// InMemoryStore keeps sessions in maps. It deep-copies on both read and
// write so callers never share mutable state with the store.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[int64]*models.InterviewSession
	archives map[int64][]*models.ArchivedSession
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[int64]*models.InterviewSession),
		archives: make(map[int64][]*models.ArchivedSession),
	}
}

func (s *InMemoryStore) SaveSession(session *models.InterviewSession) error {
	if err := session.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.UserHandle] = session.Clone()
	return nil
}

func (s *InMemoryStore) GetSession(userHandle int64) (*models.InterviewSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[userHandle]
	if !ok {
		return nil, models.ErrSessionNotFound
	}
	return session.Clone(), nil
}

func (s *InMemoryStore) DeleteSession(userHandle int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userHandle)
	return nil
}

func (s *InMemoryStore) ListSessions() ([]*models.InterviewSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sessions := make([]*models.InterviewSession, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session.Clone())
	}
	return sessions, nil
}

func (s *InMemoryStore) ArchiveSession(archived *models.ArchivedSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := &models.ArchivedSession{
		Session:          *archived.Session.Clone(),
		ArchivedAt:       archived.ArchivedAt,
		CompletionReason: archived.CompletionReason,
	}
	handle := archived.Session.UserHandle
	s.archives[handle] = append(s.archives[handle], copied)
	return nil
}

func (s *InMemoryStore) GetArchived(userHandle int64) (*models.ArchivedSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	archives := s.archives[userHandle]
	if len(archives) == 0 {
		return nil, models.ErrArchiveNotFound
	}
	latest := archives[len(archives)-1]
	return &models.ArchivedSession{
		Session:          *latest.Session.Clone(),
		ArchivedAt:       latest.ArchivedAt,
		CompletionReason: latest.CompletionReason,
	}, nil
}

func (s *InMemoryStore) Close() error {
	return nil
}
