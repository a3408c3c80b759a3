package repository

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"

	"github.com/BerylCAtieno/invoice-chat-api/internal/models"
	"github.com/jmoiron/sqlx"
)

type PromptCacheRepository interface {
	GetByHash(ctx context.Context, hash string) (*models.CacheEntry, error)
	Upsert(ctx context.Context, entry *models.CacheEntry) error
	IncrementHits(ctx context.Context, hash string) error
	DeleteByHash(ctx context.Context, hash string) error
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
	Stats(ctx context.Context) (*models.CacheStats, error)
}

type cacheRow struct {
	ID             string `db:"id"`
	PromptHash     string `db:"prompt_hash"`
	CachedResponse string `db:"cached_response"`
	TokensSaved    int    `db:"tokens_saved"`
	CacheHits      int    `db:"cache_hits"`
	TTL            int64  `db:"ttl"`
	CreatedAt      int64  `db:"created_at"`
}

type promptCacheRepository struct {
	db *sqlx.DB
}

func NewPromptCacheRepository(db *sqlx.DB) PromptCacheRepository {
	return &promptCacheRepository{db: db}
}

func (r *promptCacheRepository) GetByHash(ctx context.Context, hash string) (*models.CacheEntry, error) {
	var row cacheRow
	err := r.db.GetContext(ctx, &row, `
		SELECT * FROM prompt_cache WHERE prompt_hash = ? ORDER BY created_at DESC LIMIT 1
	`, hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &models.CacheEntry{
		ID:             row.ID,
		PromptHash:     row.PromptHash,
		CachedResponse: []byte(row.CachedResponse),
		TokensSaved:    row.TokensSaved,
		CacheHits:      row.CacheHits,
		CreatedAt:      fromMillis(row.CreatedAt),
		TTL:            time.Duration(row.TTL) * time.Millisecond,
	}, nil
}

// Upsert inserts the entry or, on id conflict, replaces it and restarts its TTL.
func (r *promptCacheRepository) Upsert(ctx context.Context, entry *models.CacheEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO prompt_cache (id, prompt_hash, cached_response, tokens_saved, cache_hits, ttl, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			prompt_hash = excluded.prompt_hash,
			cached_response = excluded.cached_response,
			tokens_saved = excluded.tokens_saved,
			cache_hits = excluded.cache_hits,
			ttl = excluded.ttl,
			created_at = excluded.created_at
	`,
		entry.ID,
		entry.PromptHash,
		string(entry.CachedResponse),
		entry.TokensSaved,
		entry.CacheHits,
		entry.TTL.Milliseconds(),
		toMillis(entry.CreatedAt),
	)
	return err
}

func (r *promptCacheRepository) IncrementHits(ctx context.Context, hash string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE prompt_cache SET cache_hits = cache_hits + 1 WHERE prompt_hash = ?
	`, hash)
	return err
}

func (r *promptCacheRepository) DeleteByHash(ctx context.Context, hash string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM prompt_cache WHERE prompt_hash = ?`, hash)
	return err
}

func (r *promptCacheRepository) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM prompt_cache WHERE ? - created_at > ttl
	`, toMillis(now))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (r *promptCacheRepository) Stats(ctx context.Context) (*models.CacheStats, error) {
	var row struct {
		Entries     int `db:"entries"`
		Hits        int `db:"hits"`
		TokensSaved int `db:"tokens_saved"`
	}
	err := r.db.GetContext(ctx, &row, `
		SELECT COUNT(*) AS entries,
		       COALESCE(SUM(cache_hits), 0) AS hits,
		       COALESCE(SUM(tokens_saved * cache_hits), 0) AS tokens_saved
		FROM prompt_cache
	`)
	if err != nil {
		return nil, err
	}

	stats := &models.CacheStats{
		TotalEntries:     row.Entries,
		TotalHits:        row.Hits,
		TotalTokensSaved: row.TokensSaved,
	}
	if row.Entries > 0 {
		avg := float64(row.Hits) / float64(row.Entries)
		stats.AverageHitsPerEntry = math.Round(avg*100) / 100
	}
	return stats, nil
}
