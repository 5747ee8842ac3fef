package services

import (
	"context"
	"slices"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/tweet-anchoring/internal/domain"
)

// CycleRepo is the persistence contract CycleService reads the journal through.
type CycleRepo interface {
	CountCycleRuns(ctx context.Context, db *gorm.DB, account string) (int64, error)
	ListCycleRunsPage(ctx context.Context, db *gorm.DB, account string, offset, limit int) ([]domain.CycleRun, error)
	CycleRunsStats(ctx context.Context, db *gorm.DB, account string) (int64, *time.Time, error)
}

// CycleService pages through past cycle runs.
type CycleService struct {
	DB       *gorm.DB
	Repo     CycleRepo
	Accounts []string

	DefaultPageSize int
}

func NewCycleService(db *gorm.DB, r CycleRepo, accounts []string) *CycleService {
	return &CycleService{DB: db, Repo: r, Accounts: slices.Clone(accounts), DefaultPageSize: 20}
}

// ListPage returns one page of runs, newest first, and the total count.
// An empty account lists runs across all accounts.
func (s *CycleService) ListPage(ctx context.Context, account string, page, pageSize int) ([]domain.CycleRun, int64, error) {
	if err := s.check(account); err != nil {
		return nil, 0, err
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = s.DefaultPageSize
	}

	total, err := s.Repo.CountCycleRuns(ctx, s.DB, account)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.CycleRun{}, 0, nil
	}
	items, err := s.Repo.ListCycleRunsPage(ctx, s.DB, account, (page-1)*pageSize, pageSize)
	return items, total, err
}

// Stats returns the run count and newest start time for conditional GETs.
func (s *CycleService) Stats(ctx context.Context, account string) (int64, *time.Time, error) {
	if err := s.check(account); err != nil {
		return 0, nil, err
	}
	return s.Repo.CycleRunsStats(ctx, s.DB, account)
}

func (s *CycleService) check(account string) error {
	if s.DB == nil {
		return ErrJournalDisabled
	}
	if account != "" && !slices.Contains(s.Accounts, account) {
		return ErrUnknownAccount
	}
	return nil
}
