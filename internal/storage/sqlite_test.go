package storage

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestMigrationsIdempotent runs Open twice on the same database and verifies
// the schema_version count stays correct (migration not re-applied).
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}

	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}

	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

func TestCacheRoundTrip(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.GetCache("SELECT 1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for empty cache, got %v", err)
	}

	if err := s.SaveCache("SELECT 1", `{"result": []}`); err != nil {
		t.Fatalf("SaveCache: %v", err)
	}

	e, err := s.GetCache("SELECT 1")
	if err != nil {
		t.Fatalf("GetCache: %v", err)
	}
	if e.Result != `{"result": []}` {
		t.Errorf("unexpected cached result %q", e.Result)
	}

	// Overwrite replaces the previous entry.
	if err := s.SaveCache("SELECT 1", `{"result": [1]}`); err != nil {
		t.Fatalf("SaveCache overwrite: %v", err)
	}
	e, err = s.GetCache("SELECT 1")
	if err != nil {
		t.Fatalf("GetCache after overwrite: %v", err)
	}
	if e.Result != `{"result": [1]}` {
		t.Errorf("cache not overwritten, got %q", e.Result)
	}

	n, err := s.CacheSize()
	if err != nil {
		t.Fatalf("CacheSize: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 cache entry, got %d", n)
	}
}

func TestCacheEviction(t *testing.T) {
	s := openTestStore(t)

	for i := 0; i < maxCacheEntries+10; i++ {
		query := fmt.Sprintf("SELECT %d", i)
		if err := s.SaveCache(query, "{}"); err != nil {
			t.Fatalf("SaveCache(%q): %v", query, err)
		}
	}

	n, err := s.CacheSize()
	if err != nil {
		t.Fatalf("CacheSize: %v", err)
	}
	if n > maxCacheEntries {
		t.Errorf("cache grew past cap: %d entries", n)
	}
}

func TestAuditAppendAndList(t *testing.T) {
	s := openTestStore(t)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		err := s.AppendAudit(AuditRecord{
			UserID:    "u1",
			Tool:      "sql_tool",
			Query:     fmt.Sprintf("SELECT %d", i),
			Outcome:   "ok",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("AppendAudit: %v", err)
		}
	}
	if err := s.AppendAudit(AuditRecord{UserID: "u2", Tool: "sql_tool"}); err != nil {
		t.Fatalf("AppendAudit other user: %v", err)
	}

	records, err := s.RecentAudit("u1", 2)
	if err != nil {
		t.Fatalf("RecentAudit: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Query != "SELECT 2" {
		t.Errorf("expected newest record first, got %q", records[0].Query)
	}
	if records[0].ID == "" {
		t.Error("expected generated record ID")
	}
}
