package handlers

import (
	"context"
	"time"

	"github.com/tbourn/tweet-anchoring/internal/domain"
	"github.com/tbourn/tweet-anchoring/internal/services"
)

// AccountService reports per-account status and runs cycles on demand.
type AccountService interface {
	List(ctx context.Context) ([]services.AccountView, error)
	Trigger(ctx context.Context, account string) (domain.CycleResult, error)
}

// CycleService pages through the cycle journal.
type CycleService interface {
	ListPage(ctx context.Context, account string, page, pageSize int) ([]domain.CycleRun, int64, error)
	Stats(ctx context.Context, account string) (int64, *time.Time, error)
}

// Handlers groups the admin endpoints.
type Handlers struct {
	accountSvc AccountService
	cycleSvc   CycleService
}

func New(accountSvc AccountService, cycleSvc CycleService) *Handlers {
	return &Handlers{accountSvc: accountSvc, cycleSvc: cycleSvc}
}

// CycleResultResponse is the JSON shape of one cycle outcome.
type CycleResultResponse struct {
	RunID        string    `json:"run_id" example:"5b0c7f2e-8f43-4c4e-9d6b-0c1f8e0f6d11"`
	Account      string    `json:"account" example:"alice"`
	State        string    `json:"state" example:"done"`
	Reached      string    `json:"reached" example:"anchored"`
	Fetched      int       `json:"fetched"`
	Reposts      int       `json:"reposts"`
	Malformed    int       `json:"malformed"`
	Published    int       `json:"published"`
	Existing     int       `json:"existing"`
	Created      int       `json:"created"`
	Patched      int       `json:"patched"`
	ItemFailures int       `json:"item_failures"`
	Cursor       string    `json:"cursor,omitempty" example:"1710000000000000001"`
	Error        string    `json:"error,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	DurationMS   int64     `json:"duration_ms"`
}

func toCycleResultResponse(r domain.CycleResult) CycleResultResponse {
	return CycleResultResponse{
		RunID:        r.RunID,
		Account:      r.Account,
		State:        string(r.State),
		Reached:      string(r.Reached),
		Fetched:      r.Fetched,
		Reposts:      r.Reposts,
		Malformed:    r.Malformed,
		Published:    r.Published,
		Existing:     r.Existing,
		Created:      r.Created,
		Patched:      r.Patched,
		ItemFailures: r.ItemFailures,
		Cursor:       r.Cursor,
		Error:        r.ErrorString(),
		StartedAt:    r.StartedAt.UTC(),
		FinishedAt:   r.FinishedAt.UTC(),
		DurationMS:   r.Duration().Milliseconds(),
	}
}

// AccountResponse is the admin summary of one tracked account.
type AccountResponse struct {
	Account  string               `json:"account" example:"alice"`
	Cursor   string               `json:"cursor,omitempty" example:"1710000000000000001"`
	InFlight bool                 `json:"in_flight"`
	Last     *CycleResultResponse `json:"last,omitempty"`
	// Ledger entries by source; absent when no database is configured
	Anchors map[string]int64 `json:"anchors,omitempty"`
}

// ListAccountsResponse wraps every tracked account.
type ListAccountsResponse struct {
	Accounts []AccountResponse `json:"accounts"`
}

// Pagination carries paging metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListCyclesResponse wraps a page of journaled cycle runs.
type ListCyclesResponse struct {
	Cycles     []domain.CycleRun `json:"cycles"`
	Pagination Pagination        `json:"pagination"`
}
