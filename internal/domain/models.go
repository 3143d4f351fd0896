package domain

import "time"

// QuizStatus tracks the authoring lifecycle of a quiz.
type QuizStatus string

const (
	QuizStatusDraft     QuizStatus = "draft"
	QuizStatusPublished QuizStatus = "published"
)

// ResultStatus gates a graded attempt behind admin approval.
type ResultStatus string

const (
	ResultStatusPending   ResultStatus = "pending"
	ResultStatusPublished ResultStatus = "published"
)

// Quiz is the authored metadata for one timed assessment.
// QuestionCount always equals the length of the quiz's question sequence.
type Quiz struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	DurationMinutes int        `json:"durationMinutes"`
	Program         Program    `json:"program"`
	Status          QuizStatus `json:"status"`
	QuestionCount   int        `json:"questionCount"`
}

// Question is a four-option MCQ owned by exactly one quiz.
// IDs are scoped per quiz: "{quizID}_q{index}".
type Question struct {
	ID            string   `json:"id"`
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
	Explanation   string   `json:"explanation,omitempty"`
}

// QuizBundle joins a quiz with its question sequence. It is the unit the
// store persists and the caches hold, so the two parts can never be
// observed out of sync.
type QuizBundle struct {
	Quiz      Quiz       `json:"quiz"`
	Questions []Question `json:"questions"`
}

// Result is one graded attempt. Immutable except for the
// pending->published status transition performed by an admin.
type Result struct {
	ID             string       `json:"id"`
	QuizID         string       `json:"quizId"`
	QuizTitle      string       `json:"quizTitle"`
	StudentID      string       `json:"studentId"`
	StudentName    string       `json:"studentName"`
	Score          int          `json:"score"`
	TotalQuestions int          `json:"totalQuestions"`
	Percentage     int          `json:"percentage"`
	CompletedAt    time.Time    `json:"completedAt"`
	Status         ResultStatus `json:"status"`
}

// PracticeSet is an untimed question set for self-study. Attempts against
// it are not graded and produce no Result.
type PracticeSet struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Topic     string     `json:"topic"`
	Program   Program    `json:"program"`
	CreatedBy string     `json:"createdBy"`
	Questions []Question `json:"questions"`
}

// LeaderboardEntry is one student's published score on a quiz.
type LeaderboardEntry struct {
	StudentID   string `json:"studentId"`
	StudentName string `json:"studentName"`
	Score       int    `json:"score"`
	Percentage  int    `json:"percentage"`
}

// RankGroup collects the entries sharing one percentage. Ties share a rank;
// entries within a group keep insertion order.
type RankGroup struct {
	Rank       int                `json:"rank"`
	Percentage int                `json:"percentage"`
	Entries    []LeaderboardEntry `json:"entries"`
}

// Leaderboard is the ranked view of published results for one quiz.
type Leaderboard struct {
	QuizID    string      `json:"quizId"`
	Groups    []RankGroup `json:"groups"`
	UpdatedAt time.Time   `json:"updatedAt"`
}
