package sqlite

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNew_CreatesTables(t *testing.T) {
	db := newTestDB(t)

	ctx := context.Background()
	rows, err := db.db.QueryContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' ORDER BY name")
	if err != nil {
		t.Fatalf("query sqlite_master error: %v", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("scan error: %v", err)
		}
		tables = append(tables, name)
	}

	expected := []string{"notifications", "session"}
	for _, exp := range expected {
		found := false
		for _, tbl := range tables {
			if tbl == exp {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected table %q not found in %v", exp, tables)
		}
	}
}

func TestNew_FileReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	ctx := context.Background()

	db, err := New(path)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if err := db.SetValue(ctx, "last_checked", "2024-01-01T00:05:00Z"); err != nil {
		t.Fatalf("SetValue() error: %v", err)
	}
	db.Close()

	db, err = New(path)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer db.Close()

	got, err := db.GetValue(ctx, "last_checked")
	if err != nil {
		t.Fatalf("GetValue() error: %v", err)
	}
	if got != "2024-01-01T00:05:00Z" {
		t.Errorf("GetValue() = %q, want persisted value", got)
	}
}
