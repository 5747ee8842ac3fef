package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/tbourn/tweet-anchoring/internal/domain"
)

type fakeCycleRepo struct {
	countAccount string
	countTotal   int64
	countErr     error

	pageAccount string
	pageOffset  int
	pageLimit   int
	pageItems   []domain.CycleRun
	pageErr     error
	pageCalled  bool

	statsCount int64
	statsMax   *time.Time
}

func (r *fakeCycleRepo) CountCycleRuns(_ context.Context, _ *gorm.DB, account string) (int64, error) {
	r.countAccount = account
	return r.countTotal, r.countErr
}

func (r *fakeCycleRepo) ListCycleRunsPage(_ context.Context, _ *gorm.DB, account string, offset, limit int) ([]domain.CycleRun, error) {
	r.pageCalled = true
	r.pageAccount, r.pageOffset, r.pageLimit = account, offset, limit
	return r.pageItems, r.pageErr
}

func (r *fakeCycleRepo) CycleRunsStats(_ context.Context, _ *gorm.DB, _ string) (int64, *time.Time, error) {
	return r.statsCount, r.statsMax, nil
}

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return db
}

func TestCycleService_ListPage_DefaultsAndOffset(t *testing.T) {
	repo := &fakeCycleRepo{countTotal: 45, pageItems: []domain.CycleRun{{ID: "r1"}}}
	svc := NewCycleService(openDB(t), repo, []string{"alice", "bob"})

	items, total, err := svc.ListPage(context.Background(), "alice", 3, 0)
	if err != nil {
		t.Fatalf("ListPage: %v", err)
	}
	if total != 45 || len(items) != 1 {
		t.Fatalf("total=%d items=%d", total, len(items))
	}
	if repo.countAccount != "alice" || repo.pageAccount != "alice" {
		t.Fatalf("account not forwarded: %q %q", repo.countAccount, repo.pageAccount)
	}
	if repo.pageOffset != 40 || repo.pageLimit != 20 {
		t.Fatalf("offset=%d limit=%d", repo.pageOffset, repo.pageLimit)
	}

	if _, _, err := svc.ListPage(context.Background(), "", -1, 5); err != nil {
		t.Fatalf("all accounts: %v", err)
	}
	if repo.pageOffset != 0 || repo.pageLimit != 5 || repo.countAccount != "" {
		t.Fatalf("offset=%d limit=%d account=%q", repo.pageOffset, repo.pageLimit, repo.countAccount)
	}
}

func TestCycleService_ListPage_EmptySkipsPageQuery(t *testing.T) {
	repo := &fakeCycleRepo{}
	svc := NewCycleService(openDB(t), repo, []string{"alice"})

	items, total, err := svc.ListPage(context.Background(), "alice", 1, 10)
	if err != nil || total != 0 || items == nil || len(items) != 0 {
		t.Fatalf("items=%v total=%d err=%v", items, total, err)
	}
	if repo.pageCalled {
		t.Fatalf("page query should be skipped when total is 0")
	}
}

func TestCycleService_Errors(t *testing.T) {
	boom := errors.New("db down")
	svc := NewCycleService(openDB(t), &fakeCycleRepo{countErr: boom}, []string{"alice"})

	if _, _, err := svc.ListPage(context.Background(), "mallory", 1, 10); !errors.Is(err, ErrUnknownAccount) {
		t.Fatalf("want ErrUnknownAccount, got %v", err)
	}
	if _, _, err := svc.ListPage(context.Background(), "alice", 1, 10); !errors.Is(err, boom) {
		t.Fatalf("want count error, got %v", err)
	}

	disabled := NewCycleService(nil, &fakeCycleRepo{}, []string{"alice"})
	if _, _, err := disabled.ListPage(context.Background(), "alice", 1, 10); !errors.Is(err, ErrJournalDisabled) {
		t.Fatalf("want ErrJournalDisabled, got %v", err)
	}
	if _, _, err := disabled.Stats(context.Background(), ""); !errors.Is(err, ErrJournalDisabled) {
		t.Fatalf("want ErrJournalDisabled from Stats, got %v", err)
	}
}

func TestCycleService_Stats(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := NewCycleService(openDB(t), &fakeCycleRepo{statsCount: 7, statsMax: &ts}, []string{"alice"})

	n, max, err := svc.Stats(context.Background(), "alice")
	if err != nil || n != 7 || max == nil || !max.Equal(ts) {
		t.Fatalf("n=%d max=%v err=%v", n, max, err)
	}
}
