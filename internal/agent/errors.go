package agent

import (
	"errors"
	"fmt"

	"github.com/nestquery/nestquery/internal/query"
	"github.com/nestquery/nestquery/internal/sqlguard"
)

const (
	KindInput      = "input"
	KindGeneration = "generation"
	KindUnsafeSQL  = "unsafe_sql"
	KindEmptySQL   = "empty_sql"
	KindExecution  = "execution"
	KindInternal   = "internal"
)

// InputError rejects a request before any outbound call is made.
type InputError struct {
	Reason string
}

func (e *InputError) Error() string {
	return "invalid query: " + e.Reason
}

// GenerationError wraps a failed completion call for one prompt stage.
type GenerationError struct {
	Stage string
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Kind classifies err into the error taxonomy reported in responses.
func Kind(err error) string {
	var (
		inputErr  *InputError
		genErr    *GenerationError
		unsafeErr *sqlguard.UnsafeSQLError
		emptyErr  *sqlguard.EmptySQLError
		execErr   *query.ExecutionError
	)
	switch {
	case errors.As(err, &inputErr):
		return KindInput
	case errors.As(err, &genErr):
		return KindGeneration
	case errors.As(err, &unsafeErr):
		return KindUnsafeSQL
	case errors.As(err, &emptyErr):
		return KindEmptySQL
	case errors.As(err, &execErr):
		return KindExecution
	default:
		return KindInternal
	}
}

var fallbackMessages = map[string]string{
	KindInput:      "Please tell me what kind of accommodation you are looking for.",
	KindGeneration: "I'm having trouble processing your request right now. Please try again or rephrase your question.",
	KindUnsafeSQL:  "I couldn't turn that request into a safe search. Please rephrase your question.",
	KindEmptySQL:   "I couldn't turn that request into a safe search. Please rephrase your question.",
	KindExecution:  "I couldn't search the listings right now. Please try again shortly.",
	KindInternal:   "I'm having trouble processing your request right now. Please try again or rephrase your question.",
}

func FallbackMessage(kind string) string {
	if message, ok := fallbackMessages[kind]; ok {
		return message
	}
	return fallbackMessages[KindInternal]
}
