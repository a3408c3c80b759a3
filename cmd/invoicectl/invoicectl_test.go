package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/BerylCAtieno/invoice-chat-api/internal/db"
	"github.com/BerylCAtieno/invoice-chat-api/internal/models"
	"github.com/BerylCAtieno/invoice-chat-api/internal/repository"
	"github.com/shopspring/decimal"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestMigrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cli.db")

	out, err := run(t, "migrate", "--db", path)
	if err != nil {
		t.Fatalf("migrate error = %v", err)
	}
	if !strings.Contains(out, "is up to date") {
		t.Errorf("output = %q", out)
	}
}

func TestCacheCleanupAndStats(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cli.db")
	conn, err := db.Open(path)
	if err != nil {
		t.Fatalf("db.Open() error = %v", err)
	}
	repo := repository.NewPromptCacheRepository(conn)
	ctx := context.Background()
	old := time.Now().Add(-time.Hour)
	for _, e := range []*models.CacheEntry{
		{ID: "a", PromptHash: "a", CachedResponse: []byte(`{}`), TokensSaved: 100, TTL: time.Minute, CreatedAt: old},
		{ID: "b", PromptHash: "b", CachedResponse: []byte(`{}`), TokensSaved: 100, TTL: 24 * time.Hour, CreatedAt: old},
	} {
		if err := repo.Upsert(ctx, e); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
	}
	conn.Close()

	out, err := run(t, "cache", "cleanup", "--db", path)
	if err != nil {
		t.Fatalf("cache cleanup error = %v", err)
	}
	if !strings.Contains(out, "Deleted 1 expired entries") {
		t.Errorf("cleanup output = %q", out)
	}

	out, err = run(t, "cache", "stats", "--db", path)
	if err != nil {
		t.Fatalf("cache stats error = %v", err)
	}
	if !strings.Contains(out, "Entries:          1") {
		t.Errorf("stats output = %q", out)
	}
}

func TestUsage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cli.db")
	conn, err := db.Open(path)
	if err != nil {
		t.Fatalf("db.Open() error = %v", err)
	}
	cost := decimal.RequireFromString("0.00084")
	err = repository.NewUsageRepository(conn).Upsert(context.Background(), &models.TokenUsageEvent{
		ID:            "ev-1",
		UserID:        "user-1",
		InvoiceID:     "run-1",
		OperationType: models.OperationClassification,
		InputTokens:   1000,
		OutputTokens:  100,
		TotalTokens:   1100,
		Cost:          &cost,
		CostUnit:      models.CostUnitUSD,
		ModelUsed:     "chat-model-small",
		CreatedAt:     time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	conn.Close()

	out, err := run(t, "usage", "--db", path, "--user", "user-1")
	if err != nil {
		t.Fatalf("usage error = %v", err)
	}
	for _, want := range []string{"(not saved)", "CLASSIFICATION", "0.000840 USD", "Invoices: 1  Tokens: 1100"} {
		if !strings.Contains(out, want) {
			t.Errorf("usage output missing %q:\n%s", want, out)
		}
	}

	if _, err := run(t, "usage", "--db", path); err == nil {
		t.Error("usage without --user succeeded")
	}
}
