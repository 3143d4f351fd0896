package memory

import (
	"sync"

	"pharma-quiz-service/internal/app"
)

// AttemptStore is an in-memory implementation of app.AttemptRepository.
// One active session per student; a new Put replaces the old session.
type AttemptStore struct {
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{
		sessions: make(map[string]*app.Session),
	}
}

func (s *AttemptStore) Put(studentID string, session *app.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[studentID] = session
}

func (s *AttemptStore) Get(studentID string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[studentID]
	return session, ok
}

func (s *AttemptStore) Remove(studentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, studentID)
}
