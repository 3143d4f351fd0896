package memory

import (
	"context"
	"sync"
	"time"

	"pharma-quiz-service/internal/domain"
)

// PortalStore is the in-memory system of record: quizzes with their
// question sequences, graded results, and practice sets. A single mutex
// serializes all writes, so a quiz and its questions become visible to
// readers together and concurrent result submissions are independent
// appends. An optional per-operation latency simulates a remote backend.
type PortalStore struct {
	latency time.Duration

	mu       sync.RWMutex
	quizzes  []domain.Quiz
	bundles  map[string]domain.QuizBundle
	results  []domain.Result
	resultIx map[string]int
	practice []domain.PracticeSet
}

func NewPortalStore(latency time.Duration) *PortalStore {
	return &PortalStore{
		latency:  latency,
		bundles:  make(map[string]domain.QuizBundle),
		resultIx: make(map[string]int),
	}
}

// CreateQuiz persists the quiz and its questions as one unit.
func (s *PortalStore) CreateQuiz(ctx context.Context, bundle domain.QuizBundle) error {
	if err := s.sleep(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quizzes = append(s.quizzes, bundle.Quiz)
	s.bundles[bundle.Quiz.ID] = cloneBundle(bundle)
	return nil
}

func (s *PortalStore) ListQuizzes(ctx context.Context, filter domain.Program) ([]domain.Quiz, error) {
	if err := s.sleep(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Quiz, 0, len(s.quizzes))
	for _, q := range s.quizzes {
		if q.Program.Matches(filter) {
			out = append(out, q)
		}
	}
	return out, nil
}

func (s *PortalStore) LoadBundle(ctx context.Context, quizID string) (domain.QuizBundle, error) {
	if err := s.sleep(ctx); err != nil {
		return domain.QuizBundle{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	bundle, ok := s.bundles[quizID]
	if !ok {
		return domain.QuizBundle{}, domain.ErrQuizNotFound
	}
	return cloneBundle(bundle), nil
}

func (s *PortalStore) AppendResult(ctx context.Context, result domain.Result) error {
	if err := s.sleep(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resultIx[result.ID] = len(s.results)
	s.results = append(s.results, result)
	return nil
}

func (s *PortalStore) GetResult(ctx context.Context, id string) (domain.Result, error) {
	if err := s.sleep(ctx); err != nil {
		return domain.Result{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ix, ok := s.resultIx[id]
	if !ok {
		return domain.Result{}, domain.ErrResultNotFound
	}
	return s.results[ix], nil
}

func (s *PortalStore) ListResults(ctx context.Context) ([]domain.Result, error) {
	if err := s.sleep(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Result(nil), s.results...), nil
}

// PublishResult flips a result to published. Idempotent: publishing twice
// leaves the record unchanged.
func (s *PortalStore) PublishResult(ctx context.Context, id string) (domain.Result, error) {
	if err := s.sleep(ctx); err != nil {
		return domain.Result{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ix, ok := s.resultIx[id]
	if !ok {
		return domain.Result{}, domain.ErrResultNotFound
	}
	s.results[ix].Status = domain.ResultStatusPublished
	return s.results[ix], nil
}

func (s *PortalStore) ListPublishedByQuiz(ctx context.Context, quizID string) ([]domain.Result, error) {
	if err := s.sleep(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Result, 0)
	for _, r := range s.results {
		if r.QuizID == quizID && r.Status == domain.ResultStatusPublished {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *PortalStore) CreatePracticeSet(ctx context.Context, set domain.PracticeSet) error {
	if err := s.sleep(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.practice = append(s.practice, set)
	return nil
}

func (s *PortalStore) ListPracticeSets(ctx context.Context, filter domain.Program) ([]domain.PracticeSet, error) {
	if err := s.sleep(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.PracticeSet, 0, len(s.practice))
	for _, set := range s.practice {
		if set.Program.Matches(filter) {
			out = append(out, set)
		}
	}
	return out, nil
}

// sleep applies the simulated backend latency, honoring cancellation.
func (s *PortalStore) sleep(ctx context.Context) error {
	if s.latency <= 0 {
		return nil
	}
	select {
	case <-time.After(s.latency):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func cloneBundle(b domain.QuizBundle) domain.QuizBundle {
	questions := make([]domain.Question, len(b.Questions))
	for i, q := range b.Questions {
		q.Options = append([]string(nil), q.Options...)
		questions[i] = q
	}
	return domain.QuizBundle{Quiz: b.Quiz, Questions: questions}
}
