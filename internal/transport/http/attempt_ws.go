package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"pharma-quiz-service/internal/app"
	"pharma-quiz-service/internal/pkg/logger"
)

// AttemptHandler drives a student's timed quiz attempt over a websocket.
// The connection owns the session: the server ticks the countdown, the
// client navigates and answers, and exactly one Result comes out of a
// finished attempt. Closing the connection before submission abandons the
// attempt without a Result.
type AttemptHandler struct {
	service  *app.PortalService
	upgrader websocket.Upgrader
	log      *logger.Logger
}

func NewAttemptHandler(service *app.PortalService, log *logger.Logger) *AttemptHandler {
	return &AttemptHandler{
		service: service,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type selectPayload struct {
	Option int `json:"option"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// questionView is what the client sees mid-attempt. The correct answer and
// explanation stay server-side until grading.
type questionView struct {
	Index         int      `json:"index"`
	Total         int      `json:"total"`
	QuestionID    string   `json:"questionId"`
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	Selected      *int     `json:"selected,omitempty"`
	AnsweredCount int      `json:"answeredCount"`
	Remaining     int      `json:"remaining"`
}

type confirmView struct {
	Unanswered int `json:"unanswered"`
}

type tickView struct {
	Remaining int `json:"remaining"`
}

// ServeWS upgrades the request and runs one attempt start to finish.
// Query params: quizId, studentId, name.
func (h *AttemptHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	studentID := r.URL.Query().Get("studentId")
	studentName := r.URL.Query().Get("name")
	if quizID == "" || studentID == "" || studentName == "" {
		http.Error(w, "missing quizId, studentId, or name", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	session, err := h.service.StartAttempt(r.Context(), quizID, studentID, studentName)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	// Abandon is a no-op on a submitted session; this only discards
	// attempts cut short by disconnects. Scoped to this handler's session
	// so a stale connection never touches a newer attempt.
	defer h.service.ReleaseAttempt(studentID, session)

	send := make(chan outboundMessage[any], 16)
	writerDone := make(chan struct{})
	stopTicker := make(chan struct{})
	tickerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Warn("ws write error", "error", err)
				return
			}
		}
	}()

	// Countdown driver. The session itself refuses to tick outside
	// InProgress, so a paused attempt loses no seconds here and a finished
	// one can never be submitted twice.
	go func() {
		defer close(tickerDone)
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				remaining, expired, answers := session.Tick()
				if expired {
					h.finish(r, session, answers, send, writerDone)
					return
				}
				if session.State() == app.AttemptInProgress {
					select {
					case send <- outboundMessage[any]{Type: "tick", Payload: tickView{Remaining: remaining}}:
					case <-stopTicker:
						return
					case <-writerDone:
						return
					}
				}
			case <-stopTicker:
				return
			}
		}
	}()

	push(send, writerDone, h.questionFrame(session))

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if done := h.handle(r, session, inbound, send, writerDone); done {
			break
		}
	}

	close(stopTicker)
	<-tickerDone
	close(send)
	<-writerDone
}

// handle applies one client message to the session. It returns true when
// the attempt reached a terminal state via this message.
func (h *AttemptHandler) handle(r *http.Request, session *app.Session, inbound inboundMessage, send chan<- outboundMessage[any], quit <-chan struct{}) bool {
	switch inbound.Type {
	case "select":
		var payload selectPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			push(send, quit, errorFrame("invalid select payload"))
			return false
		}
		if err := session.SelectOption(payload.Option); err != nil {
			push(send, quit, errorFrame(err.Error()))
			return false
		}
		push(send, quit, h.questionFrame(session))
	case "next":
		if err := session.Next(); err != nil {
			push(send, quit, errorFrame(err.Error()))
			return false
		}
		push(send, quit, h.questionFrame(session))
	case "previous":
		if err := session.Previous(); err != nil {
			push(send, quit, errorFrame(err.Error()))
			return false
		}
		push(send, quit, h.questionFrame(session))
	case "requestSubmit":
		unanswered, err := session.RequestSubmit()
		if err != nil {
			push(send, quit, errorFrame(err.Error()))
			return false
		}
		push(send, quit, outboundMessage[any]{Type: "confirmSubmit", Payload: confirmView{Unanswered: unanswered}})
	case "cancel":
		if err := session.CancelSubmit(); err != nil {
			push(send, quit, errorFrame(err.Error()))
			return false
		}
		push(send, quit, h.questionFrame(session))
	case "confirm":
		answers, err := session.ConfirmSubmit()
		if err != nil {
			// The timer may have forced submission first; that frame
			// already carried the result.
			push(send, quit, errorFrame(err.Error()))
			return false
		}
		h.finish(r, session, answers, send, quit)
		return true
	default:
		push(send, quit, errorFrame("unsupported message type"))
	}
	return false
}

func (h *AttemptHandler) finish(r *http.Request, session *app.Session, answers map[string]int, send chan<- outboundMessage[any], quit <-chan struct{}) {
	result, err := h.service.SubmitQuiz(r.Context(), session.Quiz().ID, answers, session.StudentID(), session.StudentName())
	if err != nil {
		h.log.Error("submit failed", "quizId", session.Quiz().ID, "studentId", session.StudentID(), "error", err)
		push(send, quit, errorFrame(err.Error()))
		return
	}
	push(send, quit, outboundMessage[any]{Type: "submitted", Payload: result})
}

func (h *AttemptHandler) questionFrame(session *app.Session) outboundMessage[any] {
	question, index := session.Current()
	answers := session.Answers()
	view := questionView{
		Index:         index,
		Total:         session.Total(),
		QuestionID:    question.ID,
		Text:          question.Text,
		Options:       question.Options,
		AnsweredCount: len(answers),
		Remaining:     session.Remaining(),
	}
	if selected, ok := answers[question.ID]; ok {
		view.Selected = &selected
	}
	return outboundMessage[any]{Type: "question", Payload: view}
}

func errorFrame(msg string) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: msg}}
}

// push delivers a frame unless the writer has already exited. A dead
// writer must never block the read loop or the countdown goroutine.
func push(send chan<- outboundMessage[any], quit <-chan struct{}, msg outboundMessage[any]) {
	select {
	case send <- msg:
	case <-quit:
	}
}
