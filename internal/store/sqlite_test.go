package store

import (
	"path/filepath"
	"testing"
)

func testDB(t *testing.T) *SQLiteBackend {
	t.Helper()
	dir := t.TempDir()
	db, err := OpenSQLite(filepath.Join(dir, "state.db"))
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSQLiteGetMissing(t *testing.T) {
	db := testDB(t)

	_, ok, err := db.Get("watchlist")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Error("expected missing namespace")
	}
}

func TestSQLiteSetOverwrites(t *testing.T) {
	db := testDB(t)

	if err := db.Set("watchlist", `["bitcoin"]`); err != nil {
		t.Fatalf("first set: %v", err)
	}
	if err := db.Set("watchlist", `["bitcoin","ethereum"]`); err != nil {
		t.Fatalf("second set: %v", err)
	}

	got, ok, err := db.Get("watchlist")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got != `["bitcoin","ethereum"]` {
		t.Errorf("expected overwritten value, got %q", got)
	}

	namespaces, err := db.Namespaces()
	if err != nil {
		t.Fatalf("namespaces: %v", err)
	}
	if len(namespaces) != 1 {
		t.Errorf("expected 1 namespace, got %d", len(namespaces))
	}
	if namespaces["watchlist"].IsZero() {
		t.Error("expected an update time")
	}
}

func TestSQLiteSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.db")

	db, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	s := New(db)
	if err := s.Watchlist().Add("solana"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.RecentViews().Add(RecentView{ID: "solana", Name: "Solana"}); err != nil {
		t.Fatalf("recent: %v", err)
	}
	db.Close()

	reopened, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	s = New(reopened)
	if !s.Watchlist().Contains("solana") {
		t.Error("watchlist lost across reopen")
	}
	if items := s.RecentViews().Items(); len(items) != 1 || items[0].Name != "Solana" {
		t.Errorf("recent views lost across reopen: %+v", items)
	}
}
