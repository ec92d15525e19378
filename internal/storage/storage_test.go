package storage

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lotas/tabgruppen/internal/types"
)

// testDB creates a temporary database for testing.
func testDB(t *testing.T) *sql.DB {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	db, err := OpenDB(dbPath)
	if err != nil {
		t.Fatalf("OpenDB(%q): %v", dbPath, err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenDB(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "sub", "dir", "tabgruppen.db")

	db, err := OpenDB(dbPath)
	if err != nil {
		t.Fatalf("OpenDB failed: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("database file not found: %v", err)
	}

	var count int
	db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	if count != len(migrations) {
		t.Errorf("expected %d migrations recorded, got %d", len(migrations), count)
	}
}

func TestOpenDB_IdempotentMigrations(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "idempotent.db")
	ctx := context.Background()

	db1, err := OpenDB(dbPath)
	if err != nil {
		t.Fatalf("first OpenDB: %v", err)
	}
	if err := SetSetting(ctx, db1, "maxTabsPerGroup", "12"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	db1.Close()

	db2, err := OpenDB(dbPath)
	if err != nil {
		t.Fatalf("second OpenDB: %v", err)
	}
	defer db2.Close()

	v, ok, err := GetSetting(ctx, db2, "maxTabsPerGroup")
	if err != nil || !ok || v != "12" {
		t.Errorf("GetSetting after reopen = %q, %v, %v", v, ok, err)
	}
}

func TestDefaultDBPath(t *testing.T) {
	p, err := DefaultDBPath()
	if err != nil {
		t.Fatalf("DefaultDBPath: %v", err)
	}
	if filepath.Base(p) != "tabgruppen.db" {
		t.Errorf("expected filename tabgruppen.db, got %s", filepath.Base(p))
	}
	if !filepath.IsAbs(p) {
		t.Errorf("expected absolute path, got %s", p)
	}
}

func TestSettings(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if _, ok, err := GetSetting(ctx, db, "missing"); ok || err != nil {
		t.Fatalf("missing key: ok=%v err=%v", ok, err)
	}
	SetSetting(ctx, db, "a", `true`)
	SetSetting(ctx, db, "b", `"x"`)
	SetSetting(ctx, db, "a", `false`)

	all, err := AllSettings(ctx, db)
	if err != nil {
		t.Fatalf("AllSettings: %v", err)
	}
	if len(all) != 2 || all["a"] != "false" || all["b"] != `"x"` {
		t.Errorf("AllSettings = %v", all)
	}

	if err := DeleteSetting(ctx, db, "a"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := GetSetting(ctx, db, "a"); ok {
		t.Error("a should be deleted")
	}
}

func TestUndoHistoryRoundTrip(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	actions := []types.GroupingAction{
		{ID: "b", TabID: 2, WindowID: 1, FromGroupID: 4, ToGroupID: 7, GroupTitle: "📰 News", GroupColor: types.ColorYellow, Reasoning: "news", Timestamp: ts.Add(time.Minute)},
		{ID: "a", TabID: 1, WindowID: 1, FromGroupID: types.NoGroup, ToGroupID: 4, CreatedNewGroup: true, GroupTitle: "Docs", GroupColor: types.ColorBlue, Timestamp: ts},
	}
	if err := SaveUndoHistory(ctx, db, actions); err != nil {
		t.Fatalf("SaveUndoHistory: %v", err)
	}

	got, err := LoadUndoHistory(ctx, db)
	if err != nil {
		t.Fatalf("LoadUndoHistory: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d actions, want 2", len(got))
	}
	if got[0].ID != "b" || got[1].ID != "a" {
		t.Errorf("order = %s,%s; want b,a", got[0].ID, got[1].ID)
	}
	if !got[1].CreatedNewGroup || got[1].FromGroupID != types.NoGroup || got[1].GroupColor != types.ColorBlue {
		t.Errorf("action a = %+v", got[1])
	}
	if !got[0].Timestamp.Equal(actions[0].Timestamp) {
		t.Errorf("timestamp = %v, want %v", got[0].Timestamp, actions[0].Timestamp)
	}

	last, err := LastAction(ctx, db)
	if err != nil || last == nil || last.ID != "b" {
		t.Errorf("LastAction = %+v, %v", last, err)
	}
}

func TestUndoHistoryClear(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	SaveUndoHistory(ctx, db, []types.GroupingAction{{ID: "a", ToGroupID: 1, Timestamp: time.Now()}})
	if err := SaveUndoHistory(ctx, db, nil); err != nil {
		t.Fatalf("SaveUndoHistory(nil): %v", err)
	}

	got, _ := LoadUndoHistory(ctx, db)
	if len(got) != 0 {
		t.Errorf("history = %v, want empty", got)
	}
	if last, _ := LastAction(ctx, db); last != nil {
		t.Errorf("last action should be cleared, got %+v", last)
	}
}
