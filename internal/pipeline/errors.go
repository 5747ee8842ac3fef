// Package pipeline runs the anchoring pipeline: one fetch, publish, anchor
// and patch cycle per tracked account, driven by a fixed-interval scheduler.
//
// This file centralizes the pipeline's error values. Remote failures keep
// their remote.ErrTransient / ErrRejected / ErrMalformed class when wrapped
// here, so callers can still tell them apart with errors.Is.
package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tbourn/tweet-anchoring/internal/domain"
)

var (
	// ErrPartialBatch is wrapped by every *BatchError: some items of a batch
	// failed while their siblings may have succeeded.
	ErrPartialBatch = errors.New("partial batch failure")

	// ErrUnknownAccount is returned when triggering a cycle for an account
	// that is not tracked.
	ErrUnknownAccount = errors.New("unknown account")

	// ErrCycleInFlight is returned when a cycle for the account is already
	// running.
	ErrCycleInFlight = errors.New("cycle already in flight")
)

// ItemFailure describes one failed item of a batch.
type ItemFailure struct {
	ID     domain.ContentID
	Status int
	Body   string
	Err    error
}

func (f ItemFailure) String() string {
	switch {
	case f.Err != nil:
		return fmt.Sprintf("%s: %v", f.ID, f.Err)
	case f.Body != "":
		return fmt.Sprintf("%s: status %d: %s", f.ID, f.Status, f.Body)
	default:
		return fmt.Sprintf("%s: status %d", f.ID, f.Status)
	}
}

// BatchError reports the failed items of one phase.
type BatchError struct {
	Phase    string
	Total    int
	Failures []ItemFailure
}

func (e *BatchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d of %d items failed", e.Phase, len(e.Failures), e.Total)
	if len(e.Failures) > 0 {
		b.WriteString(": ")
		b.WriteString(e.Failures[0].String())
		if n := len(e.Failures) - 1; n > 0 {
			fmt.Fprintf(&b, " (and %d more)", n)
		}
	}
	return b.String()
}

// Unwrap exposes ErrPartialBatch and the cause of every failed item.
func (e *BatchError) Unwrap() []error {
	errs := []error{ErrPartialBatch}
	for _, f := range e.Failures {
		if f.Err != nil {
			errs = append(errs, f.Err)
		}
	}
	return errs
}
