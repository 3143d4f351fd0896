package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrQuizNotFound indicates an unknown quiz ID.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrResultNotFound indicates an unknown result ID.
	ErrResultNotFound = errors.New("result not found")
	// ErrPracticeSetNotFound indicates an unknown practice set ID.
	ErrPracticeSetNotFound = errors.New("practice set not found")
	// ErrNoQuestions is returned when an attempt is started on a quiz with no questions.
	ErrNoQuestions = errors.New("quiz has no questions")
	// ErrForbidden is returned when the acting role lacks the required capability.
	ErrForbidden = errors.New("operation not permitted for role")
	// ErrAttemptNotInProgress is returned when navigation or answering is requested outside InProgress.
	ErrAttemptNotInProgress = errors.New("attempt is not in progress")
	// ErrAttemptNotConfirming is returned when confirm/cancel arrives outside the confirmation step.
	ErrAttemptNotConfirming = errors.New("attempt is not awaiting confirmation")
)

// ValidationError reports bad author input. Nothing is persisted when one
// is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
