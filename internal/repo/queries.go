package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/tweet-anchoring/internal/domain"
)

// Queries exposes the read functions of this package as methods so a
// single value satisfies the services' repository contracts.
type Queries struct{}

func (Queries) CountCycleRuns(ctx context.Context, db *gorm.DB, account string) (int64, error) {
	return CountCycleRuns(ctx, db, account)
}

func (Queries) ListCycleRunsPage(ctx context.Context, db *gorm.DB, account string, offset, limit int) ([]domain.CycleRun, error) {
	return ListCycleRunsPage(ctx, db, account, offset, limit)
}

func (Queries) CycleRunsStats(ctx context.Context, db *gorm.DB, account string) (int64, *time.Time, error) {
	return CycleRunsStats(ctx, db, account)
}

func (Queries) AnchorSourceCounts(ctx context.Context, db *gorm.DB, account string) (map[string]int64, error) {
	return AnchorSourceCounts(ctx, db, account)
}
