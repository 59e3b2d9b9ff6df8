package agent

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gaspardhassenforder/elearning-sub000/db"
	"github.com/gaspardhassenforder/elearning-sub000/services"

	"go.uber.org/zap"
)

const (
	ErrCodeNotFound     = "not_found"
	ErrCodeAccessDenied = "access_denied"
	ErrCodeNotReady     = "not_ready"
	ErrCodeValidation   = "validation"
	ErrCodeServiceError = "service_error"
)

// ToolError is the only failure shape the model ever sees from a tool. The
// message is safe to repeat to the learner verbatim: no identifiers, no
// status codes, no internals.
type ToolError struct {
	Code        string `json:"error"`
	Recoverable bool   `json:"recoverable"`
	Message     string `json:"message"`
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newToolError(code, message string) *ToolError {
	return &ToolError{
		Code:        code,
		Recoverable: code == ErrCodeNotFound || code == ErrCodeNotReady || code == ErrCodeValidation,
		Message:     message,
	}
}

// classifyToolError maps internal errors onto the fixed taxonomy.
func classifyToolError(err error, subject string) *ToolError {
	switch {
	case errors.Is(err, db.ErrSourceNotFound),
		errors.Is(err, db.ErrQuizNotFound),
		errors.Is(err, db.ErrPodcastNotFound),
		errors.Is(err, db.ErrObjectiveNotFound),
		errors.Is(err, db.ErrModuleNotFound):
		return newToolError(ErrCodeNotFound, fmt.Sprintf("I couldn't find that %s.", subject))
	case errors.Is(err, services.ErrModuleAccessDenied):
		return newToolError(ErrCodeAccessDenied, fmt.Sprintf("That %s isn't available in this course.", subject))
	case errors.Is(err, services.ErrPodcastNotReady):
		return newToolError(ErrCodeNotReady, "That podcast is still being prepared. It should be ready soon.")
	case errors.Is(err, services.ErrEvidenceRequired):
		return newToolError(ErrCodeValidation, "An objective can only be checked off with concrete evidence of what the learner demonstrated.")
	case errors.Is(err, services.ErrInvalidArtifactKind):
		return newToolError(ErrCodeValidation, "That isn't something I can generate. I can create quizzes, podcasts, and transformations.")
	case errors.Is(err, services.ErrTopicRequired):
		return newToolError(ErrCodeValidation, "Tell me what topic the artifact should cover.")
	default:
		return newToolError(ErrCodeServiceError, "Something went wrong on my side. Let's continue and try again in a moment.")
	}
}

// toolFailure logs the full diagnostic server-side and returns the safe
// serialized payload handed back to the model.
func toolFailure(toolName, subject string, err error) string {
	zap.S().Errorf("%s tool failed: %v", toolName, err)

	payload, marshalErr := json.Marshal(classifyToolError(err, subject))
	if marshalErr != nil {
		return `{"error":"service_error","recoverable":false,"message":"Something went wrong on my side."}`
	}

	return string(payload)
}

// validationFailure is for malformed tool input: the model gets a nudge to
// retry with corrected arguments.
func validationFailure(toolName string, err error, message string) string {
	zap.S().Errorf("%s tool received invalid input: %v", toolName, err)

	payload, marshalErr := json.Marshal(newToolError(ErrCodeValidation, message))
	if marshalErr != nil {
		return `{"error":"validation","recoverable":true,"message":"The tool input was invalid."}`
	}

	return string(payload)
}
