// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries used for
// conditional responses (ETag generation) in the HTTP layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/tweet-anchoring/internal/domain"
)

// CycleRunsStats returns the number of journaled cycles for account (all
// accounts when empty) and the greatest StartedAt among them.
//
// Return values:
//   - count:        total journal rows in scope
//   - maxStartedAt: pointer to the greatest StartedAt, or nil if no rows
//   - err:          database error, if any
func CycleRunsStats(ctx context.Context, db *gorm.DB, account string) (count int64, maxStartedAt *time.Time, err error) {
	q := func() *gorm.DB {
		return scopeAccount(db.WithContext(ctx).Model(&domain.CycleRun{}), account)
	}

	if err = q().Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest started_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		StartedAt time.Time
	}
	if err = q().Select("started_at").Order("started_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.StartedAt, nil
}

// AnchorSourceCounts returns the ledger entries of account grouped by source.
func AnchorSourceCounts(ctx context.Context, db *gorm.DB, account string) (map[string]int64, error) {
	var rows []struct {
		Source string
		N      int64
	}
	err := db.WithContext(ctx).
		Model(&domain.AnchorEntry{}).
		Select("source, COUNT(*) AS n").
		Where("account = ?", account).
		Group("source").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Source] = r.N
	}
	return out, nil
}
