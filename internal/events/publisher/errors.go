package publisher

import (
	"errors"
	"fmt"
	"net/http"

	"krtbank/pkg/platform/sentinel"
)

// ErrRetriesExhausted is wrapped by PublishError when every attempt failed.
var ErrRetriesExhausted = errors.New("publish retries exhausted")

// PublishError is the terminal failure of a publish. It keeps the attempt
// count and the last transport error.
type PublishError struct {
	EventType string
	Attempts  int
	Exhausted bool
	Err       error
}

func (e *PublishError) Error() string {
	if e.Exhausted {
		return fmt.Sprintf("publish %s: %s after %d attempts: %v", e.EventType, ErrRetriesExhausted, e.Attempts, e.Err)
	}
	return fmt.Sprintf("publish %s: non-retryable failure on attempt %d: %v", e.EventType, e.Attempts, e.Err)
}

func (e *PublishError) Unwrap() []error {
	if e.Exhausted {
		return []error{ErrRetriesExhausted, e.Err}
	}
	return []error{e.Err}
}

// statusCoder is satisfied by smithy-go response errors from the AWS SDK.
type statusCoder interface {
	HTTPStatusCode() int
}

// IsTransient reports whether err is worth retrying: a server-side status
// (5xx, including 503 service unavailable) or a wrapped
// sentinel.ErrUnavailable.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, sentinel.ErrUnavailable) {
		return true
	}
	var sc statusCoder
	if errors.As(err, &sc) {
		return sc.HTTPStatusCode() >= http.StatusInternalServerError
	}
	return false
}

// StatusError is a transport failure with an HTTP-style status code, for
// transports that do not already expose one.
type StatusError struct {
	StatusCode int
	Err        error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %v", e.StatusCode, e.Err)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

func (e *StatusError) HTTPStatusCode() int {
	return e.StatusCode
}
