package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/tweet-anchoring/internal/domain"
)

func TestListCycleRunsPage_NewestFirst(t *testing.T) {
	db := newTestDB(t, &domain.CycleRun{})
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"r1", "r2", "r3", "r4"} {
		seedRun(t, db, id, "alice", base.Add(time.Duration(i)*time.Minute))
	}
	seedRun(t, db, "b1", "bob", base.Add(time.Hour))

	total, err := CountCycleRuns(ctx, db, "alice")
	if err != nil || total != 4 {
		t.Fatalf("CountCycleRuns = %d, %v", total, err)
	}
	page, err := ListCycleRunsPage(ctx, db, "alice", 0, 3)
	if err != nil {
		t.Fatalf("ListCycleRunsPage: %v", err)
	}
	if len(page) != 3 || page[0].ID != "r4" || page[2].ID != "r2" {
		t.Fatalf("page 1 = %+v", page)
	}
	page, _ = ListCycleRunsPage(ctx, db, "alice", 3, 3)
	if len(page) != 1 || page[0].ID != "r1" {
		t.Fatalf("page 2 = %+v", page)
	}

	all, _ := ListCycleRunsPage(ctx, db, "", 0, 10)
	if len(all) != 5 || all[0].ID != "b1" {
		t.Fatalf("all = %+v", all)
	}
}

func TestJournal_RecordCycle(t *testing.T) {
	db := newTestDB(t, &domain.CycleRun{})
	ctx := context.Background()
	j := &Journal{DB: db}

	start := time.Now()
	res := domain.CycleResult{
		RunID:        "0b6f6a52-1111-4222-8333-444455556666",
		Account:      "alice",
		State:        domain.StateFailed,
		Reached:      domain.StatePublished,
		Fetched:      3,
		Published:    3,
		Created:      1,
		Patched:      1,
		ItemFailures: 2,
		Cursor:       "101",
		Err:          errors.New("anchor: 2 of 3 items failed"),
		StartedAt:    start,
		FinishedAt:   start.Add(2 * time.Second),
	}
	if err := j.RecordCycle(ctx, res); err != nil {
		t.Fatalf("RecordCycle: %v", err)
	}

	runs, err := ListCycleRunsPage(ctx, db, "alice", 0, 10)
	if err != nil || len(runs) != 1 {
		t.Fatalf("runs = %+v, %v", runs, err)
	}
	got := runs[0]
	if got.ID != res.RunID || got.State != "failed" || got.Reached != "published" || got.Failures != 2 || got.Cursor != "101" {
		t.Fatalf("run = %+v", got)
	}
	if got.Error != "anchor: 2 of 3 items failed" {
		t.Fatalf("error = %q", got.Error)
	}
}
