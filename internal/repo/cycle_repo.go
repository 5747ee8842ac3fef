// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the cycle journal: one row per
// terminal account-cycle, listed newest first.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/tweet-anchoring/internal/domain"
)

// CreateCycleRun inserts a journal row.
func CreateCycleRun(ctx context.Context, db *gorm.DB, run *domain.CycleRun) error {
	return db.WithContext(ctx).Create(run).Error
}

// CountCycleRuns returns the number of journaled cycles for account, or for
// all accounts when account is empty.
func CountCycleRuns(ctx context.Context, db *gorm.DB, account string) (int64, error) {
	var total int64
	err := scopeAccount(db.WithContext(ctx).Model(&domain.CycleRun{}), account).
		Count(&total).Error
	return total, err
}

// ListCycleRunsPage returns a page of journaled cycles ordered by start time
// descending. Use CountCycleRuns to obtain the total for pagination metadata.
func ListCycleRunsPage(ctx context.Context, db *gorm.DB, account string, offset, limit int) ([]domain.CycleRun, error) {
	var out []domain.CycleRun
	err := scopeAccount(db.WithContext(ctx), account).
		Order("started_at desc").
		Order("id").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

func scopeAccount(q *gorm.DB, account string) *gorm.DB {
	if account == "" {
		return q
	}
	return q.Where("account = ?", account)
}

// Journal adapts the journal functions to the pipeline's Journal contract.
type Journal struct {
	DB *gorm.DB
}

// RecordCycle appends the terminal result r.
func (j *Journal) RecordCycle(ctx context.Context, r domain.CycleResult) error {
	run := domain.NewCycleRun(r)
	return CreateCycleRun(ctx, j.DB, &run)
}
