package app

import (
	"sync"

	"pharma-quiz-service/internal/domain"
)

// AttemptState is the explicit state of one student's quiz attempt.
type AttemptState string

const (
	AttemptInProgress AttemptState = "inProgress"
	AttemptConfirming AttemptState = "confirmingSubmit"
	AttemptSubmitted  AttemptState = "submitted"
	AttemptAbandoned  AttemptState = "abandoned"
)

// Session is one student's in-flight attempt at a quiz. It is transient:
// it lives for the duration of the attempt and is discarded on submission
// or abandonment. All transitions are guarded by the session mutex, so a
// concurrent manual confirm and timer expiry resolve to exactly one
// submission.
type Session struct {
	mu          sync.Mutex
	quiz        domain.Quiz
	questions   []domain.Question
	studentID   string
	studentName string
	state       AttemptState
	current     int
	answers     map[string]int
	remaining   int
}

// NewSession starts an attempt against a quiz bundle. It fails with
// ErrNoQuestions when the quiz has no questions; no session exists then.
func NewSession(bundle domain.QuizBundle, studentID, studentName string) (*Session, error) {
	if len(bundle.Questions) == 0 {
		return nil, domain.ErrNoQuestions
	}
	return &Session{
		quiz:        bundle.Quiz,
		questions:   bundle.Questions,
		studentID:   studentID,
		studentName: studentName,
		state:       AttemptInProgress,
		answers:     make(map[string]int),
		remaining:   bundle.Quiz.DurationMinutes * 60,
	}, nil
}

// Quiz returns the quiz under attempt.
func (s *Session) Quiz() domain.Quiz { return s.quiz }

// StudentID returns the attempting student's ID.
func (s *Session) StudentID() string { return s.studentID }

// StudentName returns the attempting student's display name.
func (s *Session) StudentName() string { return s.studentName }

// State returns the current attempt state.
func (s *Session) State() AttemptState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Current returns the question at the cursor and its index.
func (s *Session) Current() (domain.Question, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.questions[s.current], s.current
}

// Total returns the number of questions in the attempt.
func (s *Session) Total() int { return len(s.questions) }

// Remaining returns the countdown value in seconds.
func (s *Session) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remaining
}

// Answers returns a copy of the answer map as it stands.
func (s *Session) Answers() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyAnswersLocked()
}

// AnsweredCount returns how many questions have a recorded selection.
func (s *Session) AnsweredCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.answers)
}

// SelectOption records option idx for the current question, overwriting any
// earlier selection. The cursor does not advance.
func (s *Session) SelectOption(idx int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != AttemptInProgress {
		return domain.ErrAttemptNotInProgress
	}
	if idx < 0 || idx >= len(s.questions[s.current].Options) {
		return &domain.ValidationError{Field: "option", Reason: "index out of range"}
	}
	s.answers[s.questions[s.current].ID] = idx
	return nil
}

// Next moves the cursor forward, clamped to the last question.
func (s *Session) Next() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != AttemptInProgress {
		return domain.ErrAttemptNotInProgress
	}
	if s.current < len(s.questions)-1 {
		s.current++
	}
	return nil
}

// Previous moves the cursor back, clamped to the first question.
func (s *Session) Previous() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != AttemptInProgress {
		return domain.ErrAttemptNotInProgress
	}
	if s.current > 0 {
		s.current--
	}
	return nil
}

// RequestSubmit enters the confirmation step and reports how many questions
// are still unanswered. The count is advisory; it never blocks submission.
func (s *Session) RequestSubmit() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != AttemptInProgress {
		return 0, domain.ErrAttemptNotInProgress
	}
	s.state = AttemptConfirming
	return len(s.questions) - len(s.answers), nil
}

// CancelSubmit returns to the questions; the countdown resumes.
func (s *Session) CancelSubmit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != AttemptConfirming {
		return domain.ErrAttemptNotConfirming
	}
	s.state = AttemptInProgress
	return nil
}

// ConfirmSubmit finishes the attempt and returns the frozen answer map.
// Only the first caller to observe the confirmation step gets the answers;
// the attempt is terminal afterwards.
func (s *Session) ConfirmSubmit() (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != AttemptConfirming {
		return nil, domain.ErrAttemptNotConfirming
	}
	s.state = AttemptSubmitted
	return s.copyAnswersLocked(), nil
}

// Tick advances the countdown by one second. It decrements only while the
// attempt is in progress; once the clock reaches zero the attempt is forced
// to Submitted and the answer map at that instant is returned with
// expired=true. Later ticks are no-ops.
func (s *Session) Tick() (remaining int, expired bool, answers map[string]int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != AttemptInProgress {
		return s.remaining, false, nil
	}
	s.remaining--
	if s.remaining > 0 {
		return s.remaining, false, nil
	}
	s.remaining = 0
	s.state = AttemptSubmitted
	return 0, true, s.copyAnswersLocked()
}

// Abandon discards an unfinished attempt. It reports whether the session
// was still live; abandoning a submitted attempt is a no-op.
func (s *Session) Abandon() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == AttemptInProgress || s.state == AttemptConfirming {
		s.state = AttemptAbandoned
		return true
	}
	return false
}

func (s *Session) copyAnswersLocked() map[string]int {
	out := make(map[string]int, len(s.answers))
	for id, idx := range s.answers {
		out[id] = idx
	}
	return out
}
