// Package remote is the JSON-over-HTTP transport shared by the clients of the
// three remote collaborators (timeline source, record store, anchoring
// service). It bounds every call with a timeout, classifies failures into
// transient, rejected and malformed, and records a span and metrics per call.
package remote

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tbourn/tweet-anchoring/internal/observability"
)

// Failure classes. Every *Error unwraps to exactly one of them.
var (
	// ErrTransient covers network failures, timeouts, 5xx, 408 and 429.
	// Transient failures are retried at the next tick, never in-cycle.
	ErrTransient = errors.New("transient remote failure")

	// ErrRejected covers every other 4xx response.
	ErrRejected = errors.New("request rejected")

	// ErrMalformed covers 2xx responses whose body does not have the
	// expected shape.
	ErrMalformed = errors.New("malformed response")
)

// Error describes a failed remote call.
type Error struct {
	Service string
	Op      string
	Status  int
	Body    string
	Kind    error
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: %v", e.Service, e.Op, e.Kind)
	if e.Status > 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if e.Body != "" {
		b.WriteString(": ")
		b.WriteString(e.Body)
	}
	return b.String()
}

// Unwrap exposes both the failure class and the underlying cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Classify maps a non-2xx HTTP status to its failure class.
func Classify(status int) error {
	switch {
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests:
		return ErrTransient
	case status >= 400 && status < 500:
		return ErrRejected
	default:
		return ErrTransient
	}
}

// Malformed builds an ErrMalformed error for a response that decoded but
// lacks an expected field.
func Malformed(service, op, format string, args ...any) error {
	return &Error{Service: service, Op: op, Kind: ErrMalformed, Err: fmt.Errorf(format, args...)}
}

// Outcome returns the metrics label for err.
func Outcome(err error) string {
	switch {
	case err == nil:
		return observability.OutcomeOK
	case errors.Is(err, ErrTransient):
		return observability.OutcomeTransient
	case errors.Is(err, ErrRejected):
		return observability.OutcomeRejected
	case errors.Is(err, ErrMalformed):
		return observability.OutcomeMalformed
	default:
		return observability.OutcomeError
	}
}
