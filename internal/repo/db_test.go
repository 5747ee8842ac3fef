package repo

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tbourn/tweet-anchoring/internal/domain"
)

func TestOpenSQLite_MissingParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "anchord.db")
	db, err := OpenSQLite(path)
	if err == nil || db != nil {
		t.Fatalf("OpenSQLite(%q) = %v, %v; want error", path, db, err)
	}
}

func TestOpenSQLite_Pragmas(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "anchord.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	for pragma, want := range map[string]string{
		"journal_mode": "wal",
		"synchronous":  "1",
		"foreign_keys": "1",
		"busy_timeout": "5000",
	} {
		var got string
		if err := db.Raw("PRAGMA " + pragma + ";").Row().Scan(&got); err != nil {
			t.Fatalf("PRAGMA %s: %v", pragma, err)
		}
		if strings.ToLower(got) != want {
			t.Errorf("PRAGMA %s = %q; want %q", pragma, got, want)
		}
	}
	if n := sqlDB.Stats().MaxOpenConnections; n != 10 {
		t.Errorf("MaxOpenConnections = %d; want 10", n)
	}
}

func TestAutoMigrate_LedgerAndJournalUsable(t *testing.T) {
	db := newTestDB(t, &domain.AnchorEntry{}, &domain.CycleRun{})

	m := db.Migrator()
	for _, model := range []any{&domain.AnchorEntry{}, &domain.CycleRun{}} {
		if !m.HasTable(model) {
			t.Fatalf("table for %T missing", model)
		}
	}
	if !m.HasIndex(&domain.CycleRun{}, "idx_cycle_account") {
		t.Fatalf("idx_cycle_account missing")
	}

	now := time.Now().UTC()
	hash := strings.Repeat("a", 64)
	if err := db.Create(&domain.AnchorEntry{
		Hash: hash, Account: "alice", Name: "alice:5", ReceiptID: "r1",
		Source: domain.AnchorSourceCreated, CreatedAt: now,
	}).Error; err != nil {
		t.Fatalf("insert anchor: %v", err)
	}
	if err := db.Create(&domain.CycleRun{
		ID: "8c1f3c9e-0000-4000-8000-000000000001", Account: "alice",
		State: "done", Reached: "anchored", StartedAt: now, FinishedAt: now,
	}).Error; err != nil {
		t.Fatalf("insert cycle run: %v", err)
	}

	var got domain.AnchorEntry
	if err := db.First(&got, "hash = ?", hash).Error; err != nil || got.ReceiptID != "r1" {
		t.Fatalf("readback: err=%v got=%+v", err, got)
	}
}

func TestAnchorEntry_SourceCheckConstraint(t *testing.T) {
	db := newTestDB(t, &domain.AnchorEntry{}, &domain.CycleRun{})
	bad := &domain.AnchorEntry{Hash: strings.Repeat("b", 64), Account: "a", Name: "a:1", ReceiptID: "r", Source: domain.AnchorSourceLedger}
	if err := db.Create(bad).Error; err == nil {
		t.Fatalf("source %q accepted; want check violation", bad.Source)
	}
}
