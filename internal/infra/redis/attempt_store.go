package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"pharma-quiz-service/internal/app"
)

// AttemptStore is a Redis-aware implementation of app.AttemptRepository.
// Notes:
//   - Sessions stay in a local in-memory map; the attempt state machine is
//     an in-process object and is never serialized.
//   - Redis marks attempt liveness per student so operators (and other
//     instances) can see who is mid-attempt.
type AttemptStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewAttemptStore(client *redis.Client, ttl time.Duration) *AttemptStore {
	return &AttemptStore{
		client:   client,
		ttl:      ttl,
		sessions: make(map[string]*app.Session),
	}
}

func (s *AttemptStore) Put(studentID string, session *app.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[studentID] = session
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), s.key(studentID), session.Quiz().ID, s.ttl).Err()
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
	_ = s.client.Del(context.Background(), s.key(studentID)).Err()
}

func (s *AttemptStore) key(studentID string) string {
	return "attempt:session:" + studentID
}
