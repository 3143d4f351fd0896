package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pharma-quiz-service/internal/app"
	"pharma-quiz-service/internal/domain"
	"pharma-quiz-service/internal/infra/memory"
	"pharma-quiz-service/internal/pkg/logger"
)

func newTestServer(t *testing.T) (*httptest.Server, *app.PortalService) {
	t.Helper()
	store := memory.NewPortalStore(0)
	bundles := memory.NewQuizCache(store, time.Minute)
	attempts := memory.NewAttemptStore()
	service := app.NewPortalService(store, bundles, attempts, nil, logger.NewNop())
	server := httptest.NewServer(NewRouter(service, NewAttemptHandler(service, logger.NewNop())))
	t.Cleanup(server.Close)
	return server, service
}

func TestQuizLifecycleOverREST(t *testing.T) {
	server, _ := newTestServer(t)

	// Students may not author.
	status, _ := doJSON(t, server, http.MethodPost, "/api/v1/quizzes", sampleCreateBody(), map[string]string{
		headerRole: string(domain.RoleStudent),
	})
	if status != http.StatusForbidden {
		t.Fatalf("expected 403 for student authoring, got %d", status)
	}

	status, body := doJSON(t, server, http.MethodPost, "/api/v1/quizzes", sampleCreateBody(), map[string]string{
		headerRole: string(domain.RoleInstructor),
	})
	if status != http.StatusCreated {
		t.Fatalf("create quiz: status %d: %s", status, body)
	}
	var quiz domain.Quiz
	mustUnmarshal(t, body, &quiz)
	if quiz.QuestionCount != 2 || quiz.Status != domain.QuizStatusPublished {
		t.Fatalf("unexpected quiz: %+v", quiz)
	}

	status, body = doJSON(t, server, http.MethodGet, "/api/v1/quizzes?program=Bachelor", nil, nil)
	if status != http.StatusOK {
		t.Fatalf("list quizzes: status %d", status)
	}
	var quizzes []domain.Quiz
	mustUnmarshal(t, body, &quizzes)
	if len(quizzes) != 1 {
		t.Fatalf("expected one quiz, got %d", len(quizzes))
	}

	status, body = doJSON(t, server, http.MethodGet, "/api/v1/quizzes/"+quiz.ID+"/questions", nil, nil)
	if status != http.StatusOK {
		t.Fatalf("questions: status %d", status)
	}
	var questions []domain.Question
	mustUnmarshal(t, body, &questions)
	if len(questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(questions))
	}

	// Submit with one correct answer.
	submitBody := map[string]any{"answers": map[string]int{questions[0].ID: questions[0].CorrectAnswer}}
	status, body = doJSON(t, server, http.MethodPost, "/api/v1/quizzes/"+quiz.ID+"/submissions", submitBody, map[string]string{
		headerStudentID:   "s1",
		headerStudentName: "Aarav",
	})
	if status != http.StatusCreated {
		t.Fatalf("submit: status %d: %s", status, body)
	}
	var result domain.Result
	mustUnmarshal(t, body, &result)
	if result.Score != 1 || result.Percentage != 50 || result.Status != domain.ResultStatusPending {
		t.Fatalf("unexpected result: %+v", result)
	}

	// Publishing is admin-only.
	status, _ = doJSON(t, server, http.MethodPost, "/api/v1/results/"+result.ID+"/publish", nil, map[string]string{
		headerRole: string(domain.RoleInstructor),
	})
	if status != http.StatusForbidden {
		t.Fatalf("expected 403 for instructor publish, got %d", status)
	}
	status, _ = doJSON(t, server, http.MethodPost, "/api/v1/results/"+result.ID+"/publish", nil, map[string]string{
		headerRole: string(domain.RoleAdmin),
	})
	if status != http.StatusNoContent {
		t.Fatalf("publish: status %d", status)
	}

	status, body = doJSON(t, server, http.MethodGet, "/api/v1/quizzes/"+quiz.ID+"/leaderboard", nil, nil)
	if status != http.StatusOK {
		t.Fatalf("leaderboard: status %d", status)
	}
	var lb domain.Leaderboard
	mustUnmarshal(t, body, &lb)
	if len(lb.Groups) != 1 || lb.Groups[0].Percentage != 50 || lb.Groups[0].Rank != 1 {
		t.Fatalf("unexpected leaderboard: %+v", lb)
	}

	status, body = doJSON(t, server, http.MethodGet, "/api/v1/students/s1/results", nil, nil)
	if status != http.StatusOK {
		t.Fatalf("student results: status %d", status)
	}
	var results []domain.Result
	mustUnmarshal(t, body, &results)
	if len(results) != 1 || results[0].Status != domain.ResultStatusPublished {
		t.Fatalf("unexpected student results: %+v", results)
	}
}

func TestValidationAndNotFoundMapping(t *testing.T) {
	server, _ := newTestServer(t)

	bad := sampleCreateBody()
	bad["title"] = ""
	status, _ := doJSON(t, server, http.MethodPost, "/api/v1/quizzes", bad, map[string]string{
		headerRole: string(domain.RoleInstructor),
	})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for validation error, got %d", status)
	}

	status, _ = doJSON(t, server, http.MethodGet, "/api/v1/quizzes/missing/questions", nil, nil)
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown quiz, got %d", status)
	}

	status, _ = doJSON(t, server, http.MethodPost, "/api/v1/results/missing/publish", nil, map[string]string{
		headerRole: string(domain.RoleAdmin),
	})
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown result, got %d", status)
	}
}

func TestPracticeSetEndpoints(t *testing.T) {
	server, _ := newTestServer(t)

	body := map[string]any{
		"title":     "Cardio Drugs",
		"topic":     "Pharmacology",
		"program":   "Bachelor",
		"createdBy": "i1",
		"questions": sampleQuestions(),
	}
	status, raw := doJSON(t, server, http.MethodPost, "/api/v1/practice-sets", body, map[string]string{
		headerRole: string(domain.RoleInstructor),
	})
	if status != http.StatusCreated {
		t.Fatalf("create practice set: status %d: %s", status, raw)
	}

	status, raw = doJSON(t, server, http.MethodGet, "/api/v1/practice-sets?program=Bachelor", nil, nil)
	if status != http.StatusOK {
		t.Fatalf("list practice sets: status %d", status)
	}
	var sets []domain.PracticeSet
	mustUnmarshal(t, raw, &sets)
	if len(sets) != 1 || sets[0].Title != "Cardio Drugs" {
		t.Fatalf("unexpected sets: %+v", sets)
	}
}

func doJSON(t *testing.T, server *httptest.Server, method, path string, body any, headers map[string]string) (int, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, server.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := server.Client().Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	var out bytes.Buffer
	_, _ = out.ReadFrom(resp.Body)
	return resp.StatusCode, out.Bytes()
}

func mustUnmarshal(t *testing.T, raw []byte, v any) {
	t.Helper()
	if err := json.Unmarshal(raw, v); err != nil {
		t.Fatalf("unmarshal %s: %v", string(raw), err)
	}
}

func sampleQuestions() []map[string]any {
	return []map[string]any{
		{
			"text":          "Which of the following is a beta-blocker?",
			"options":       []string{"Atenolol", "Lisinopril", "Amlodipine", "Furosemide"},
			"correctAnswer": 0,
		},
		{
			"text":          "What is the standard dosage unit for insulin?",
			"options":       []string{"mg", "ml", "Units", "grams"},
			"correctAnswer": 2,
		},
	}
}

func sampleCreateBody() map[string]any {
	return map[string]any{
		"title":           "Mid-Term Pharmacology",
		"durationMinutes": 45,
		"program":         "Bachelor",
		"questions":       sampleQuestions(),
	}
}
