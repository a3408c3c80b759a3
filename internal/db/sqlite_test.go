package db

import (
	"path/filepath"
	"testing"
)

func TestOpenAppliesMigrations(t *testing.T) {
	dbFile := filepath.Join(t.TempDir(), "nested", "test.db")

	conn, err := Open(dbFile)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer conn.Close()

	for _, table := range []string{"chats", "messages", "invoices", "line_items", "prompt_cache", "tokens"} {
		var name string
		err := conn.Get(&name, `SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}

	var fk int
	if err := conn.Get(&fk, `PRAGMA foreign_keys`); err != nil {
		t.Fatalf("PRAGMA foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("foreign_keys = %d, want 1", fk)
	}
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	dbFile := filepath.Join(t.TempDir(), "test.db")

	if err := RunMigrations(dbFile); err != nil {
		t.Fatalf("first RunMigrations() error = %v", err)
	}
	if err := RunMigrations(dbFile); err != nil {
		t.Fatalf("second RunMigrations() error = %v", err)
	}
}
