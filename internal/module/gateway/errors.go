package gateway

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a model call failure.
type ErrorKind string

const (
	// KindTransient covers timeouts and 5xx-equivalent responses.
	// Eligible for retry.
	KindTransient ErrorKind = "transient"
	// KindBadRequest covers malformed or rejected requests. Not retried.
	KindBadRequest ErrorKind = "bad_request"
	// KindQuota covers provider-side quota exhaustion. Not retried.
	KindQuota ErrorKind = "quota"
	// KindContentPolicy covers content-policy rejections. Not retried.
	KindContentPolicy ErrorKind = "content_policy"
)

// ModelError is the normalized failure of an external model call.
type ModelError struct {
	Kind  ErrorKind
	Model string
	Cause error
}

// Error implements the error interface.
func (e *ModelError) Error() string {
	return fmt.Sprintf("model %s: %s: %v", e.Model, e.Kind, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *ModelError) Unwrap() error {
	return e.Cause
}

// Retryable reports whether the failure is worth retrying.
func (e *ModelError) Retryable() bool {
	return e.Kind == KindTransient
}

// AsModelError extracts a ModelError from err, if present.
func AsModelError(err error) (*ModelError, bool) {
	var me *ModelError
	if errors.As(err, &me) {
		return me, true
	}
	return nil, false
}

func newModelError(model string, kind ErrorKind, cause error) *ModelError {
	return &ModelError{Kind: kind, Model: model, Cause: cause}
}

// kindForStatus maps an HTTP status to an error kind.
func kindForStatus(status int) ErrorKind {
	switch {
	case status == 429:
		return KindQuota
	case status >= 500:
		return KindTransient
	case status == 400 || status == 422:
		return KindBadRequest
	case status == 403:
		return KindContentPolicy
	default:
		return KindBadRequest
	}
}
