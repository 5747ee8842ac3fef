package domain

import "time"

// Anchor sources recorded in the ledger.
const (
	AnchorSourceLedger   = "ledger"
	AnchorSourceExisting = "existing"
	AnchorSourceCreated  = "created"
)

// AnchorEntry is a row of the local anchor ledger. Rows are insert-only: the
// first receipt recorded for a hash is kept forever.
//
// Fields:
//   - Hash: the ContentID that was anchored (primary key).
//   - Account / Name: the tracked account and composite anchor name.
//   - ReceiptID: the receipt issued by the anchoring service.
//   - Source: whether the receipt was found or freshly created.
type AnchorEntry struct {
	Hash      string    `json:"hash"       gorm:"type:char(64);primaryKey"`
	Account   string    `json:"account"    gorm:"type:varchar(64);not null;index:idx_anchor_account"`
	Name      string    `json:"name"       gorm:"type:varchar(128);not null"`
	ReceiptID string    `json:"receipt_id" gorm:"type:varchar(128);not null"`
	Source    string    `json:"source"     gorm:"type:varchar(16);not null;check:source IN ('existing','created')"`
	CreatedAt time.Time `json:"created_at" gorm:"index:idx_anchor_account"`
}

// TableName returns the database table name for AnchorEntry.
func (AnchorEntry) TableName() string { return "anchors" }

// CycleRun is one journaled account-cycle outcome.
type CycleRun struct {
	ID         string    `json:"id"          gorm:"type:char(36);primaryKey"`
	Account    string    `json:"account"     gorm:"type:varchar(64);not null;index:idx_cycle_account,priority:1"`
	State      string    `json:"state"       gorm:"type:varchar(16);not null"`
	Reached    string    `json:"reached"     gorm:"type:varchar(16);not null"`
	Fetched    int       `json:"fetched"`
	Published  int       `json:"published"`
	Existing   int       `json:"existing"`
	Created    int       `json:"created"`
	Patched    int       `json:"patched"`
	Failures   int       `json:"failures"`
	Cursor     string    `json:"cursor"      gorm:"type:varchar(32)"`
	Error      string    `json:"error,omitempty" gorm:"type:text"`
	StartedAt  time.Time `json:"started_at"  gorm:"index:idx_cycle_account,priority:2"`
	FinishedAt time.Time `json:"finished_at"`
}

// TableName returns the database table name for CycleRun.
func (CycleRun) TableName() string { return "cycle_runs" }

// NewCycleRun converts a terminal CycleResult into its journal row.
func NewCycleRun(r CycleResult) CycleRun {
	return CycleRun{
		ID:         r.RunID,
		Account:    r.Account,
		State:      string(r.State),
		Reached:    string(r.Reached),
		Fetched:    r.Fetched,
		Published:  r.Published,
		Existing:   r.Existing,
		Created:    r.Created,
		Patched:    r.Patched,
		Failures:   r.ItemFailures,
		Cursor:     r.Cursor,
		Error:      r.ErrorString(),
		StartedAt:  r.StartedAt.UTC(),
		FinishedAt: r.FinishedAt.UTC(),
	}
}
