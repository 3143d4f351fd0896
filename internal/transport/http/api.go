package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"pharma-quiz-service/internal/app"
	"pharma-quiz-service/internal/domain"
)

// Identity headers. Authentication itself belongs to an upstream
// collaborator; the service trusts what the gateway attaches.
const (
	headerRole        = "X-Portal-Role"
	headerStudentID   = "X-Student-Id"
	headerStudentName = "X-Student-Name"
)

// NewRouter mounts the REST API and the websocket attempt endpoint.
func NewRouter(svc *app.PortalService, attempts *AttemptHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID, chimw.RealIP, chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Route("/api/v1", func(api chi.Router) {
		api.Post("/quizzes", CreateQuizHandler(svc))
		api.Get("/quizzes", ListQuizzesHandler(svc))
		api.Get("/quizzes/{quizID}/questions", QuizQuestionsHandler(svc))
		api.Get("/quizzes/{quizID}/leaderboard", LeaderboardHandler(svc))
		api.Post("/quizzes/{quizID}/submissions", SubmitQuizHandler(svc))
		api.Get("/students/{studentID}/results", StudentResultsHandler(svc))
		api.Get("/results", AllResultsHandler(svc))
		api.Post("/results/{resultID}/publish", PublishResultHandler(svc))
		api.Get("/practice-sets", ListPracticeSetsHandler(svc))
		api.Post("/practice-sets", CreatePracticeSetHandler(svc))
	})

	if attempts != nil {
		r.Get("/ws/attempt", attempts.ServeWS)
	}
	return r
}

type createQuizReq struct {
	app.QuizDraft
	Questions []app.QuestionDraft `json:"questions"`
}

// POST /api/v1/quizzes
func CreateQuizHandler(svc *app.PortalService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createQuizReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
			return
		}
		quiz, err := svc.CreateQuiz(r.Context(), roleFrom(r), req.QuizDraft, req.Questions)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, quiz)
	}
}

// GET /api/v1/quizzes?program=
func ListQuizzesHandler(svc *app.PortalService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		quizzes, err := svc.ListQuizzes(r.Context(), domain.Program(r.URL.Query().Get("program")))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, quizzes)
	}
}

// GET /api/v1/quizzes/{quizID}/questions
func QuizQuestionsHandler(svc *app.PortalService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		questions, err := svc.QuizQuestions(r.Context(), chi.URLParam(r, "quizID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, questions)
	}
}

// GET /api/v1/quizzes/{quizID}/leaderboard
func LeaderboardHandler(svc *app.PortalService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lb, err := svc.Leaderboard(r.Context(), chi.URLParam(r, "quizID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, lb)
	}
}

type submitQuizReq struct {
	Answers map[string]int `json:"answers"`
}

// POST /api/v1/quizzes/{quizID}/submissions
func SubmitQuizHandler(svc *app.PortalService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req submitQuizReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
			return
		}
		result, err := svc.SubmitQuiz(r.Context(), chi.URLParam(r, "quizID"), req.Answers,
			r.Header.Get(headerStudentID), r.Header.Get(headerStudentName))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, result)
	}
}

// GET /api/v1/students/{studentID}/results
func StudentResultsHandler(svc *app.PortalService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		results, err := svc.ResultsForStudent(r.Context(), chi.URLParam(r, "studentID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, results)
	}
}

// GET /api/v1/results
func AllResultsHandler(svc *app.PortalService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		results, err := svc.AllResults(r.Context(), roleFrom(r))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, results)
	}
}

// POST /api/v1/results/{resultID}/publish
func PublishResultHandler(svc *app.PortalService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.PublishResult(r.Context(), roleFrom(r), chi.URLParam(r, "resultID")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// GET /api/v1/practice-sets?program=
func ListPracticeSetsHandler(svc *app.PortalService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sets, err := svc.ListPracticeSets(r.Context(), domain.Program(r.URL.Query().Get("program")))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sets)
	}
}

// POST /api/v1/practice-sets
func CreatePracticeSetHandler(svc *app.PortalService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var draft app.PracticeSetDraft
		if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
			http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
			return
		}
		set, err := svc.CreatePracticeSet(r.Context(), roleFrom(r), draft)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, set)
	}
}

func roleFrom(r *http.Request) domain.Role {
	if role := r.Header.Get(headerRole); role != "" {
		return domain.Role(role)
	}
	return domain.RoleStudent
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case domain.IsValidation(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrForbidden):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, domain.ErrQuizNotFound),
		errors.Is(err, domain.ErrResultNotFound),
		errors.Is(err, domain.ErrPracticeSetNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrNoQuestions):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
