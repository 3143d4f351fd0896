package app

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"pharma-quiz-service/internal/domain"
	"pharma-quiz-service/internal/pkg/logger"
)

// Store is the system of record for authored content and graded results.
type Store interface {
	CreateQuiz(ctx context.Context, bundle domain.QuizBundle) error
	ListQuizzes(ctx context.Context, filter domain.Program) ([]domain.Quiz, error)
	LoadBundle(ctx context.Context, quizID string) (domain.QuizBundle, error)

	AppendResult(ctx context.Context, result domain.Result) error
	GetResult(ctx context.Context, id string) (domain.Result, error)
	ListResults(ctx context.Context) ([]domain.Result, error)
	PublishResult(ctx context.Context, id string) (domain.Result, error)
	ListPublishedByQuiz(ctx context.Context, quizID string) ([]domain.Result, error)

	CreatePracticeSet(ctx context.Context, set domain.PracticeSet) error
	ListPracticeSets(ctx context.Context, filter domain.Program) ([]domain.PracticeSet, error)
}

// BundleRepository serves quiz bundles on the read path (cache over the store).
type BundleRepository interface {
	GetBundle(ctx context.Context, quizID string) (domain.QuizBundle, error)
}

// AttemptRepository tracks the single active attempt session per student.
type AttemptRepository interface {
	Put(studentID string, s *Session)
	Get(studentID string) (*Session, bool)
	Remove(studentID string)
}

// Notifier delivers fire-and-forget domain events. Delivery failures are
// logged, never surfaced to the caller.
type Notifier interface {
	Publish(event string, payload any) error
}

// PortalService contains the portal use cases: authoring, attempts,
// scoring, the publish gate, and the read-side projections.
type PortalService struct {
	store    Store
	bundles  BundleRepository
	attempts AttemptRepository
	notifier Notifier
	log      *logger.Logger
	now      func() time.Time
}

func NewPortalService(store Store, bundles BundleRepository, attempts AttemptRepository, notifier Notifier, log *logger.Logger) *PortalService {
	return &PortalService{
		store:    store,
		bundles:  bundles,
		attempts: attempts,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
}

// QuizDraft is the instructor-supplied quiz metadata.
type QuizDraft struct {
	Title           string         `json:"title"`
	DurationMinutes int            `json:"durationMinutes"`
	Program         domain.Program `json:"program"`
}

// QuestionDraft is one question as authored, before IDs are assigned.
type QuestionDraft struct {
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
	Explanation   string   `json:"explanation,omitempty"`
}

// CreateQuiz validates a draft and persists the quiz with its question
// sequence as one atomic unit. The quiz is published on creation and each
// question gets an ID scoped to the quiz.
func (s *PortalService) CreateQuiz(ctx context.Context, actor domain.Role, draft QuizDraft, questions []QuestionDraft) (domain.Quiz, error) {
	if !actor.CanAuthor() {
		return domain.Quiz{}, domain.ErrForbidden
	}
	if err := validateQuizDraft(draft, questions); err != nil {
		return domain.Quiz{}, err
	}

	quizID := uuid.NewString()
	quiz := domain.Quiz{
		ID:              quizID,
		Title:           draft.Title,
		DurationMinutes: draft.DurationMinutes,
		Program:         draft.Program,
		Status:          domain.QuizStatusPublished,
		QuestionCount:   len(questions),
	}
	bundle := domain.QuizBundle{Quiz: quiz, Questions: buildQuestions(quizID, questions)}

	if err := s.store.CreateQuiz(ctx, bundle); err != nil {
		return domain.Quiz{}, fmt.Errorf("create quiz: %w", err)
	}
	return quiz, nil
}

// ListQuizzes returns quizzes visible under the program filter.
func (s *PortalService) ListQuizzes(ctx context.Context, filter domain.Program) ([]domain.Quiz, error) {
	return s.store.ListQuizzes(ctx, filter)
}

// QuizQuestions returns the ordered question sequence for a quiz.
func (s *PortalService) QuizQuestions(ctx context.Context, quizID string) ([]domain.Question, error) {
	bundle, err := s.bundles.GetBundle(ctx, quizID)
	if err != nil {
		return nil, err
	}
	return bundle.Questions, nil
}

// StartAttempt opens a new attempt session for a student. A student has at
// most one active session; starting again replaces the old one.
func (s *PortalService) StartAttempt(ctx context.Context, quizID, studentID, studentName string) (*Session, error) {
	bundle, err := s.bundles.GetBundle(ctx, quizID)
	if err != nil {
		return nil, err
	}
	session, err := NewSession(bundle, studentID, studentName)
	if err != nil {
		return nil, err
	}
	s.attempts.Put(studentID, session)
	return session, nil
}

// ReleaseAttempt abandons the given session and clears the student's
// registry entry only if it still belongs to that session. A replacement
// attempt registered by a newer connection is left untouched. No Result
// is created.
func (s *PortalService) ReleaseAttempt(studentID string, session *Session) {
	session.Abandon()
	if current, ok := s.attempts.Get(studentID); ok && current == session {
		s.attempts.Remove(studentID)
	}
}

// SubmitQuiz grades an answer map against the quiz's questions and appends
// a pending Result. Questions absent from the map score as incorrect.
func (s *PortalService) SubmitQuiz(ctx context.Context, quizID string, answers map[string]int, studentID, studentName string) (domain.Result, error) {
	bundle, err := s.bundles.GetBundle(ctx, quizID)
	if err != nil {
		return domain.Result{}, err
	}
	total := len(bundle.Questions)
	if total == 0 {
		// Authoring guarantees at least one question; guard anyway so the
		// percentage below never divides by zero.
		return domain.Result{}, domain.ErrNoQuestions
	}

	correct := 0
	for _, q := range bundle.Questions {
		if idx, ok := answers[q.ID]; ok && idx == q.CorrectAnswer {
			correct++
		}
	}

	result := domain.Result{
		ID:             uuid.NewString(),
		QuizID:         quizID,
		QuizTitle:      bundle.Quiz.Title,
		StudentID:      studentID,
		StudentName:    studentName,
		Score:          correct,
		TotalQuestions: total,
		Percentage:     int(math.Round(100 * float64(correct) / float64(total))),
		CompletedAt:    s.now(),
		Status:         domain.ResultStatusPending,
	}
	if err := s.store.AppendResult(ctx, result); err != nil {
		return domain.Result{}, fmt.Errorf("append result: %w", err)
	}
	return result, nil
}

// PublishResult approves a pending result. It is idempotent: publishing an
// already-published result changes nothing and succeeds.
func (s *PortalService) PublishResult(ctx context.Context, actor domain.Role, resultID string) error {
	if !actor.CanPublishResults() {
		return domain.ErrForbidden
	}
	result, err := s.store.PublishResult(ctx, resultID)
	if err != nil {
		return err
	}
	if s.notifier != nil {
		if err := s.notifier.Publish("result.published", result); err != nil && s.log != nil {
			s.log.Warn("result notification failed", "resultId", resultID, "error", err)
		}
	}
	return nil
}

// ResultsForStudent returns the student's results, newest first.
func (s *PortalService) ResultsForStudent(ctx context.Context, studentID string) ([]domain.Result, error) {
	all, err := s.store.ListResults(ctx)
	if err != nil {
		return nil, err
	}
	results := make([]domain.Result, 0, len(all))
	for _, r := range all {
		if r.StudentID == studentID {
			results = append(results, r)
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].CompletedAt.After(results[j].CompletedAt)
	})
	return results, nil
}

// AllResults returns every result in submission order. Admin view.
func (s *PortalService) AllResults(ctx context.Context, actor domain.Role) ([]domain.Result, error) {
	if !actor.CanPublishResults() {
		return nil, domain.ErrForbidden
	}
	return s.store.ListResults(ctx)
}

// Leaderboard groups a quiz's published results by exact percentage and
// ranks the groups, best first. Ties share a rank; entries within a group
// keep submission order. Pure projection: nothing is mutated.
func (s *PortalService) Leaderboard(ctx context.Context, quizID string) (domain.Leaderboard, error) {
	if _, err := s.bundles.GetBundle(ctx, quizID); err != nil {
		return domain.Leaderboard{}, err
	}
	published, err := s.store.ListPublishedByQuiz(ctx, quizID)
	if err != nil {
		return domain.Leaderboard{}, err
	}

	byPercentage := make(map[int][]domain.LeaderboardEntry)
	order := make([]int, 0)
	for _, r := range published {
		if _, seen := byPercentage[r.Percentage]; !seen {
			order = append(order, r.Percentage)
		}
		byPercentage[r.Percentage] = append(byPercentage[r.Percentage], domain.LeaderboardEntry{
			StudentID:   r.StudentID,
			StudentName: r.StudentName,
			Score:       r.Score,
			Percentage:  r.Percentage,
		})
	}
	sort.Sort(sort.Reverse(sort.IntSlice(order)))

	groups := make([]domain.RankGroup, 0, len(order))
	for i, pct := range order {
		groups = append(groups, domain.RankGroup{
			Rank:       i + 1,
			Percentage: pct,
			Entries:    byPercentage[pct],
		})
	}
	return domain.Leaderboard{QuizID: quizID, Groups: groups, UpdatedAt: s.now()}, nil
}

// PracticeSetDraft is an instructor-supplied practice set before IDs exist.
type PracticeSetDraft struct {
	Title     string          `json:"title"`
	Topic     string          `json:"topic"`
	Program   domain.Program  `json:"program"`
	CreatedBy string          `json:"createdBy"`
	Questions []QuestionDraft `json:"questions"`
}

// CreatePracticeSet validates and persists an untimed practice set.
func (s *PortalService) CreatePracticeSet(ctx context.Context, actor domain.Role, draft PracticeSetDraft) (domain.PracticeSet, error) {
	if !actor.CanAuthor() {
		return domain.PracticeSet{}, domain.ErrForbidden
	}
	if draft.Title == "" {
		return domain.PracticeSet{}, &domain.ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if err := validateQuestions(draft.Questions); err != nil {
		return domain.PracticeSet{}, err
	}

	setID := uuid.NewString()
	set := domain.PracticeSet{
		ID:        setID,
		Title:     draft.Title,
		Topic:     draft.Topic,
		Program:   draft.Program,
		CreatedBy: draft.CreatedBy,
		Questions: buildQuestions(setID, draft.Questions),
	}
	if err := s.store.CreatePracticeSet(ctx, set); err != nil {
		return domain.PracticeSet{}, fmt.Errorf("create practice set: %w", err)
	}
	return set, nil
}

// ListPracticeSets returns practice sets visible under the program filter.
func (s *PortalService) ListPracticeSets(ctx context.Context, filter domain.Program) ([]domain.PracticeSet, error) {
	return s.store.ListPracticeSets(ctx, filter)
}

func validateQuizDraft(draft QuizDraft, questions []QuestionDraft) error {
	if draft.Title == "" {
		return &domain.ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if draft.DurationMinutes <= 0 {
		return &domain.ValidationError{Field: "durationMinutes", Reason: "must be positive"}
	}
	return validateQuestions(questions)
}

func validateQuestions(questions []QuestionDraft) error {
	if len(questions) == 0 {
		return &domain.ValidationError{Field: "questions", Reason: "at least one question required"}
	}
	for i, q := range questions {
		if q.Text == "" {
			return &domain.ValidationError{Field: fmt.Sprintf("questions[%d].text", i), Reason: "must not be empty"}
		}
		if len(q.Options) != 4 {
			return &domain.ValidationError{Field: fmt.Sprintf("questions[%d].options", i), Reason: "exactly 4 options required"}
		}
		for j, opt := range q.Options {
			if opt == "" {
				return &domain.ValidationError{Field: fmt.Sprintf("questions[%d].options[%d]", i, j), Reason: "must not be empty"}
			}
		}
		if q.CorrectAnswer < 0 || q.CorrectAnswer > 3 {
			return &domain.ValidationError{Field: fmt.Sprintf("questions[%d].correctAnswer", i), Reason: "must index an option (0-3)"}
		}
	}
	return nil
}

func buildQuestions(ownerID string, drafts []QuestionDraft) []domain.Question {
	questions := make([]domain.Question, len(drafts))
	for i, d := range drafts {
		questions[i] = domain.Question{
			ID:            fmt.Sprintf("%s_q%d", ownerID, i),
			Text:          d.Text,
			Options:       append([]string(nil), d.Options...),
			CorrectAnswer: d.CorrectAnswer,
			Explanation:   d.Explanation,
		}
	}
	return questions
}
