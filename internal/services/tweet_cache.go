// Package services – TweetCache
//
// TweetCache is the read-through cache in front of the upstream fetcher. Each
// handle owns one key/value row holding its latest batch; the row is written
// with a fixed TTL and the store drops it on expiry, so there is no stale
// state to reason about here.
//
// Reads and writes never fail the request: storage errors and undecodable
// payloads are logged and reported as a miss, and write failures are logged
// and swallowed.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-tweet-feed/internal/domain"
)

const (
	// CacheTTL is how long a cached batch stays readable after its write.
	CacheTTL = 3600 * time.Second

	// CacheKeyPrefix namespaces tweet cache rows in the key/value store.
	CacheKeyPrefix = "tweets:"
)

var (
	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tweet_cache_lookups_total",
			Help: "Tweet cache reads by result (hit, miss).",
		},
		[]string{"result"},
	)
	cacheWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tweet_cache_writes_total",
			Help: "Tweet cache writes by result (ok, error).",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(cacheLookups, cacheWrites)
}

// cacheEntry is the stored payload of one cache row.
type cacheEntry struct {
	Handle   string           `json:"handle"`
	Batch    domain.PostBatch `json:"batch"`
	StoredAt time.Time        `json:"storedAt"`
}

// CacheKey returns the key/value key for handle. Handles that differ only in
// case share a key.
func CacheKey(handle string) string {
	return CacheKeyPrefix + foldHandle(NormalizeHandle(handle))
}

// TweetCache reads and writes per-handle post batches.
type TweetCache struct {
	DB   *gorm.DB
	Repo KVRepo

	// Now is the clock used for reads; defaults to time.Now.
	Now func() time.Time
}

// NewTweetCache constructs a TweetCache over the given store.
func NewTweetCache(db *gorm.DB, r KVRepo) *TweetCache {
	return &TweetCache{DB: db, Repo: r, Now: time.Now}
}

func (c *TweetCache) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

// Read returns the cached batch for handle when a live entry exists.
func (c *TweetCache) Read(ctx context.Context, handle string) (*domain.PostBatch, bool) {
	ctx, span := otel.Tracer("services/TweetCache").Start(ctx, "Read",
		trace.WithAttributes(attribute.String("twitter.handle", handle)),
	)
	defer span.End()

	key := CacheKey(handle)
	raw, err := c.Repo.GetValue(ctx, c.DB, key, c.now())
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			loggerFrom(ctx).Warn().Err(err).Str("key", key).Msg("tweet cache read failed; treating as miss")
		}
		return c.miss(span)
	}

	var e cacheEntry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		loggerFrom(ctx).Warn().Err(err).Str("key", key).Msg("tweet cache entry undecodable; treating as miss")
		return c.miss(span)
	}

	cacheLookups.WithLabelValues("hit").Inc()
	span.SetAttributes(attribute.Bool("cache.hit", true))
	return &e.Batch, true
}

func (c *TweetCache) miss(span trace.Span) (*domain.PostBatch, bool) {
	cacheLookups.WithLabelValues("miss").Inc()
	span.SetAttributes(attribute.Bool("cache.hit", false))
	return nil, false
}

// Write stores batch for handle with CacheTTL. Failures are logged only.
func (c *TweetCache) Write(ctx context.Context, handle string, batch *domain.PostBatch) {
	ctx, span := otel.Tracer("services/TweetCache").Start(ctx, "Write",
		trace.WithAttributes(attribute.String("twitter.handle", handle)),
	)
	defer span.End()

	if batch == nil {
		return
	}
	key := CacheKey(handle)
	raw, err := json.Marshal(cacheEntry{
		Handle:   NormalizeHandle(handle),
		Batch:    *batch,
		StoredAt: c.now().UTC(),
	})
	if err == nil {
		err = c.Repo.SetValueTTL(ctx, c.DB, key, string(raw), CacheTTL)
	}
	if err != nil {
		cacheWrites.WithLabelValues("error").Inc()
		span.RecordError(err)
		loggerFrom(ctx).Warn().Err(err).Str("key", key).Msg("tweet cache write failed")
		return
	}
	cacheWrites.WithLabelValues("ok").Inc()
}

// Invalidate deletes the entry for handle. Deleting a missing entry succeeds.
func (c *TweetCache) Invalidate(ctx context.Context, handle string) error {
	if err := c.Repo.DeleteValue(ctx, c.DB, CacheKey(handle)); err != nil {
		return fmt.Errorf("invalidate %s: %v: %w", handle, err, ErrStorage)
	}
	return nil
}
