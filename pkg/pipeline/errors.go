package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/mediabrief/mediabrief/pkg/fetch"
	"github.com/mediabrief/mediabrief/pkg/stt"
)

// ErrorKind classifies a pipeline failure for user messaging.
type ErrorKind string

const (
	KindTimeout        ErrorKind = "timeout"
	KindAuthRequired   ErrorKind = "auth_required"
	KindClassification ErrorKind = "classification_miss"
	KindLLMParse       ErrorKind = "llm_parse"
	KindRateLimited    ErrorKind = "rate_limited"
	KindConflict       ErrorKind = "persistence_conflict"
	KindDatabase       ErrorKind = "database"
	KindInternal       ErrorKind = "internal"
)

// userMessages maps error kinds to the message sent on the terminal error
// event. Internal details are logged, never sent.
var userMessages = map[ErrorKind]string{
	KindTimeout:        "request timed out, try again",
	KindAuthRequired:   "content requires refreshed authentication",
	KindClassification: "media format is not supported, processed as text",
	KindLLMParse:       "AI service returned an unexpected response",
	KindRateLimited:    "service is temporarily busy, please retry",
	KindDatabase:       "database error",
	KindInternal:       "processing failed",
}

// Error is a classified pipeline failure.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// UserMessage returns the client-facing description for the failure.
func (e *Error) UserMessage() string {
	if msg, ok := userMessages[e.Kind]; ok {
		return msg
	}
	return userMessages[KindInternal]
}

// wrap classifies an error from a pipeline step.
func wrap(kind ErrorKind, err error) *Error {
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	return &Error{Kind: kind, Err: err}
}

// classify maps well-known sentinel errors onto kinds, defaulting to the
// given kind.
func classifyErr(err error, fallback ErrorKind) *Error {
	switch {
	case errors.Is(err, fetch.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return wrap(KindTimeout, err)
	case errors.Is(err, fetch.ErrAuthRequired):
		return wrap(KindAuthRequired, err)
	case errors.Is(err, stt.ErrRateLimited):
		return wrap(KindRateLimited, err)
	default:
		return wrap(fallback, err)
	}
}
