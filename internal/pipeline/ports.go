package pipeline

import (
	"context"

	"github.com/tbourn/tweet-anchoring/internal/domain"
	"github.com/tbourn/tweet-anchoring/internal/recordstore"
	"github.com/tbourn/tweet-anchoring/internal/timeline"
)

// TimelineSource returns an account's posts newer than sinceID, newest first.
type TimelineSource interface {
	FetchTimeline(ctx context.Context, account, sinceID string) ([]timeline.RawPost, error)
}

// RecordStore publishes and patches records in batches. Each result carries
// its own status; a non-nil error means the transport call itself failed.
type RecordStore interface {
	PublishBatch(ctx context.Context, account string, items []recordstore.PublishItem) ([]domain.BatchResult, error)
	PatchBatch(ctx context.Context, account string, items []recordstore.PatchItem) ([]domain.BatchResult, error)
}

// AnchorService looks up and creates blockchain anchors.
type AnchorService interface {
	FindExisting(ctx context.Context, hash domain.ContentID) (*domain.AnchorReceipt, error)
	CreateAnchor(ctx context.Context, req domain.AnchorRequest) (domain.AnchorReceipt, error)
}

// Ledger remembers receipts already obtained for a hash. GetAnchor returns
// nil without error when the hash is unknown.
type Ledger interface {
	GetAnchor(ctx context.Context, hash domain.ContentID) (*domain.AnchorEntry, error)
	SaveAnchor(ctx context.Context, entry domain.AnchorEntry) error
}

// Journal records terminal cycle results.
type Journal interface {
	RecordCycle(ctx context.Context, r domain.CycleResult) error
}
