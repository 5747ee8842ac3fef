// Package services sits between the admin HTTP handlers and the pipeline,
// ledger and journal. Handlers map the errors below to HTTP statuses.
package services

import "errors"

var (
	// ErrUnknownAccount is returned for an account outside the configured set.
	ErrUnknownAccount = errors.New("unknown account")

	// ErrAccountBusy is returned when a cycle for the account is already running.
	ErrAccountBusy = errors.New("cycle already in flight")

	// ErrJournalDisabled is returned by history queries when no database is configured.
	ErrJournalDisabled = errors.New("cycle journal disabled")
)
