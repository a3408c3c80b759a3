package models

import "time"

type CacheEntry struct {
	ID             string        `json:"id"`
	PromptHash     string        `json:"promptHash"`
	CachedResponse []byte        `json:"cachedResponse"`
	TokensSaved    int           `json:"tokensSaved"`
	CacheHits      int           `json:"cacheHits"`
	CreatedAt      time.Time     `json:"createdAt"`
	TTL            time.Duration `json:"ttl"`
}

// Expired reports whether the entry has outlived its TTL at now.
func (e *CacheEntry) Expired(now time.Time) bool {
	return now.Sub(e.CreatedAt) > e.TTL
}

type CacheStats struct {
	TotalEntries        int     `json:"totalEntries"`
	TotalHits           int     `json:"totalHits"`
	TotalTokensSaved    int     `json:"totalTokensSaved"`
	AverageHitsPerEntry float64 `json:"averageHitsPerEntry"`
}
