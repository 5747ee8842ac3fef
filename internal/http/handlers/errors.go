package handlers

// Stable error codes carried in ErrorResponse.Code.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeRateLimited      = "rate_limited"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	ErrCodeUnknownAccount  = "unknown_account"
	ErrCodeCycleInFlight   = "cycle_in_flight"
	ErrCodeJournalDisabled = "journal_disabled"
	ErrCodeListFailed      = "list_failed"
)
