package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"pharma-quiz-service/internal/domain"
)

// PortalStore persists portal records as one JSONB document per row. A
// quiz bundle occupies a single row, so the quiz and its questions commit
// and become visible atomically.
type PortalStore struct {
	pool *pgxpool.Pool
}

func NewPortalStore(pool *pgxpool.Pool) *PortalStore {
	return &PortalStore{pool: pool}
}

func (s *PortalStore) CreateQuiz(ctx context.Context, bundle domain.QuizBundle) error {
	data, err := json.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("marshal bundle: %w", err)
	}
	if _, err := s.pool.Exec(ctx, `INSERT INTO quizzes (id, data) VALUES ($1, $2)`, bundle.Quiz.ID, data); err != nil {
		return fmt.Errorf("insert quiz: %w", err)
	}
	return nil
}

func (s *PortalStore) ListQuizzes(ctx context.Context, filter domain.Program) ([]domain.Quiz, error) {
	rows, err := s.pool.Query(ctx, `SELECT data FROM quizzes ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	defer rows.Close()

	quizzes := make([]domain.Quiz, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan quiz: %w", err)
		}
		var bundle domain.QuizBundle
		if err := json.Unmarshal(raw, &bundle); err != nil {
			return nil, fmt.Errorf("unmarshal quiz: %w", err)
		}
		if bundle.Quiz.Program.Matches(filter) {
			quizzes = append(quizzes, bundle.Quiz)
		}
	}
	return quizzes, rows.Err()
}

func (s *PortalStore) LoadBundle(ctx context.Context, quizID string) (domain.QuizBundle, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM quizzes WHERE id=$1`, quizID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.QuizBundle{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.QuizBundle{}, fmt.Errorf("load quiz: %w", err)
	}
	var bundle domain.QuizBundle
	if err := json.Unmarshal(raw, &bundle); err != nil {
		return domain.QuizBundle{}, fmt.Errorf("unmarshal quiz: %w", err)
	}
	return bundle, nil
}

func (s *PortalStore) AppendResult(ctx context.Context, result domain.Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if _, err := s.pool.Exec(ctx, `INSERT INTO results (id, data) VALUES ($1, $2)`, result.ID, data); err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

func (s *PortalStore) GetResult(ctx context.Context, id string) (domain.Result, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM results WHERE id=$1`, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Result{}, domain.ErrResultNotFound
	}
	if err != nil {
		return domain.Result{}, fmt.Errorf("load result: %w", err)
	}
	return unmarshalResult(raw)
}

func (s *PortalStore) ListResults(ctx context.Context) ([]domain.Result, error) {
	return s.queryResults(ctx, `SELECT data FROM results ORDER BY seq`)
}

// PublishResult flips status in place. A single UPDATE keeps it atomic and
// idempotent: re-publishing rewrites the same value.
func (s *PortalStore) PublishResult(ctx context.Context, id string) (domain.Result, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`UPDATE results SET data = jsonb_set(data, '{status}', '"published"') WHERE id=$1 RETURNING data`,
		id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Result{}, domain.ErrResultNotFound
	}
	if err != nil {
		return domain.Result{}, fmt.Errorf("publish result: %w", err)
	}
	return unmarshalResult(raw)
}

func (s *PortalStore) ListPublishedByQuiz(ctx context.Context, quizID string) ([]domain.Result, error) {
	return s.queryResults(ctx,
		`SELECT data FROM results WHERE data->>'quizId'=$1 AND data->>'status'='published' ORDER BY seq`,
		quizID)
}

func (s *PortalStore) CreatePracticeSet(ctx context.Context, set domain.PracticeSet) error {
	data, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("marshal practice set: %w", err)
	}
	if _, err := s.pool.Exec(ctx, `INSERT INTO practice_sets (id, data) VALUES ($1, $2)`, set.ID, data); err != nil {
		return fmt.Errorf("insert practice set: %w", err)
	}
	return nil
}

func (s *PortalStore) ListPracticeSets(ctx context.Context, filter domain.Program) ([]domain.PracticeSet, error) {
	rows, err := s.pool.Query(ctx, `SELECT data FROM practice_sets ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list practice sets: %w", err)
	}
	defer rows.Close()

	sets := make([]domain.PracticeSet, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan practice set: %w", err)
		}
		var set domain.PracticeSet
		if err := json.Unmarshal(raw, &set); err != nil {
			return nil, fmt.Errorf("unmarshal practice set: %w", err)
		}
		if set.Program.Matches(filter) {
			sets = append(sets, set)
		}
	}
	return sets, rows.Err()
}

func (s *PortalStore) queryResults(ctx context.Context, sql string, args ...interface{}) ([]domain.Result, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	results := make([]domain.Result, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		result, err := unmarshalResult(raw)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, rows.Err()
}

func unmarshalResult(raw []byte) (domain.Result, error) {
	var result domain.Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return domain.Result{}, fmt.Errorf("unmarshal result: %w", err)
	}
	return result, nil
}
