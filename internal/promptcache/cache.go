// Package promptcache memoizes model responses by a content fingerprint of
// the prompt that produced them. Entries expire after a TTL and count hits.
//
// The cache is strictly best-effort: store failures are logged and reported
// as misses, so callers never fail because the cache did.
package promptcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/BerylCAtieno/invoice-chat-api/internal/models"
	"github.com/BerylCAtieno/invoice-chat-api/internal/utils"
)

const DefaultTTL = 5 * time.Minute

// Key prefixes keep identical payloads sent to different stages apart.
const (
	PrefixClassify  = "Classify::"
	PrefixExtract   = "Extract::"
	PrefixDuplicate = "Duplicate::"
	PrefixTitle     = "Title::"
)

// Store is the persistence the cache runs on.
type Store interface {
	GetByHash(ctx context.Context, hash string) (*models.CacheEntry, error)
	Upsert(ctx context.Context, entry *models.CacheEntry) error
	IncrementHits(ctx context.Context, hash string) error
	DeleteByHash(ctx context.Context, hash string) error
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
	Stats(ctx context.Context) (*models.CacheStats, error)
}

// Fingerprint returns the hex SHA-256 of prefix followed by the JSON encoding of payload.
func Fingerprint(prefix string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode cache payload: %w", err)
	}

	h := sha256.New()
	h.Write([]byte(prefix))
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}

type Cache struct {
	store  Store
	ttl    time.Duration
	now    func() time.Time
	logger *utils.Logger
}

type Option func(*Cache)

// WithTTL sets the lifetime given to entries written by Store.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

func New(store Store, logger *utils.Logger, opts ...Option) *Cache {
	c := &Cache{
		store:  store,
		ttl:    DefaultTTL,
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup returns the cached value for key. An expired entry is deleted and
// reported as a miss; a live one has its hit count incremented.
func (c *Cache) Lookup(ctx context.Context, key string) ([]byte, bool) {
	entry, err := c.store.GetByHash(ctx, key)
	if err != nil {
		c.logger.Warn("Prompt cache lookup failed", "hash", key, "error", err)
		return nil, false
	}
	if entry == nil {
		return nil, false
	}

	if entry.Expired(c.now()) {
		if err := c.store.DeleteByHash(ctx, key); err != nil {
			c.logger.Warn("Failed to delete expired cache entry", "hash", key, "error", err)
		}
		return nil, false
	}

	if err := c.store.IncrementHits(ctx, key); err != nil {
		c.logger.Warn("Failed to record cache hit", "hash", key, "error", err)
	}

	return entry.CachedResponse, true
}

// Store writes value under key with the default TTL. tokensSaved is the
// token count each later hit avoids.
func (c *Cache) Store(ctx context.Context, key string, value []byte, tokensSaved int) {
	c.StoreWithTTL(ctx, key, value, tokensSaved, c.ttl)
}

// StoreWithTTL writes value under key. The entry id is the key itself, so
// concurrent writers of the same prompt converge on a single row.
func (c *Cache) StoreWithTTL(ctx context.Context, key string, value []byte, tokensSaved int, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}

	entry := &models.CacheEntry{
		ID:             key,
		PromptHash:     key,
		CachedResponse: value,
		TokensSaved:    tokensSaved,
		CreatedAt:      c.now(),
		TTL:            ttl,
	}
	if err := c.store.Upsert(ctx, entry); err != nil {
		c.logger.Warn("Failed to store prompt cache entry", "hash", key, "error", err)
	}
}

// Cleanup deletes every expired entry and returns how many were removed.
func (c *Cache) Cleanup(ctx context.Context) (int, error) {
	n, err := c.store.DeleteExpired(ctx, c.now())
	if err != nil {
		return 0, fmt.Errorf("failed to clean up prompt cache: %w", err)
	}
	return n, nil
}

func (c *Cache) Stats(ctx context.Context) (*models.CacheStats, error) {
	stats, err := c.store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt cache stats: %w", err)
	}
	return stats, nil
}

// RunSweeper calls Cleanup every interval until ctx is cancelled.
func (c *Cache) RunSweeper(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := c.Cleanup(ctx)
			if err != nil {
				c.logger.Error("Prompt cache sweep failed", "error", err)
				continue
			}
			if n > 0 {
				c.logger.Info("Prompt cache sweep", "deleted", n)
			}
		}
	}
}
