package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tbourn/tweet-anchoring/internal/domain"
	"github.com/tbourn/tweet-anchoring/internal/pipeline"
)

// Scheduler is the subset of *pipeline.Scheduler AccountService drives.
type Scheduler interface {
	Status(ctx context.Context) []pipeline.AccountStatus
	Trigger(ctx context.Context, account string) (domain.CycleResult, error)
}

// AnchorStatsRepo reads ledger aggregates.
type AnchorStatsRepo interface {
	AnchorSourceCounts(ctx context.Context, db *gorm.DB, account string) (map[string]int64, error)
}

// AccountView is the admin summary of one tracked account.
type AccountView struct {
	pipeline.AccountStatus
	Anchors map[string]int64
}

// AccountService reports account status and runs cycles on demand.
// DB and Repo are optional; without them Anchors stays nil.
type AccountService struct {
	DB        *gorm.DB
	Repo      AnchorStatsRepo
	Scheduler Scheduler
}

func NewAccountService(db *gorm.DB, r AnchorStatsRepo, s Scheduler) *AccountService {
	return &AccountService{DB: db, Repo: r, Scheduler: s}
}

// List returns every tracked account with its cursor, in-flight flag,
// last result and ledger counts.
func (s *AccountService) List(ctx context.Context) ([]AccountView, error) {
	statuses := s.Scheduler.Status(ctx)
	out := make([]AccountView, 0, len(statuses))
	for _, st := range statuses {
		v := AccountView{AccountStatus: st}
		if s.DB != nil && s.Repo != nil {
			counts, err := s.Repo.AnchorSourceCounts(ctx, s.DB, st.Account)
			if err != nil {
				return nil, err
			}
			v.Anchors = counts
		}
		out = append(out, v)
	}
	return out, nil
}

// Trigger runs one cycle for account right away and returns its result.
func (s *AccountService) Trigger(ctx context.Context, account string) (domain.CycleResult, error) {
	res, err := s.Scheduler.Trigger(ctx, account)
	switch {
	case errors.Is(err, pipeline.ErrUnknownAccount):
		return res, ErrUnknownAccount
	case errors.Is(err, pipeline.ErrCycleInFlight):
		return res, ErrAccountBusy
	}
	return res, err
}
