// Package services – FeedService
//
// FeedService serves posts for one handle or for every registered handle.
// Both paths share the same read-through step: consult the cache, and on a
// miss fetch upstream and write the batch back on a best-effort basis.
//
// Aggregation walks handles one at a time. Each handle is an isolated step
// whose outcome is collected into a list; a failing handle is logged and
// left out of the merge, and never fails the request.
package services

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-tweet-feed/internal/domain"
)

// Fetcher retrieves the latest batch for a handle from upstream. It returns
// an error matching ErrNotFound when the handle does not resolve and one
// matching ErrUpstream otherwise.
type Fetcher interface {
	Fetch(ctx context.Context, handle string) (*domain.PostBatch, error)
}

// BatchCache is the cache contract used by FeedService.
type BatchCache interface {
	Read(ctx context.Context, handle string) (*domain.PostBatch, bool)
	Write(ctx context.Context, handle string, batch *domain.PostBatch)
}

// FeedService coordinates the cache and the fetcher.
type FeedService struct {
	Cache   BatchCache
	Fetcher Fetcher
}

// NewFeedService constructs a FeedService.
func NewFeedService(c BatchCache, f Fetcher) *FeedService {
	return &FeedService{Cache: c, Fetcher: f}
}

// handleOutcome is the result of processing a single handle.
type handleOutcome struct {
	Handle    string
	Posts     []domain.DisplayPost
	FromCache bool
	Err       error
}

// Tweets returns the formatted posts of one handle and whether they were
// served from cache.
func (s *FeedService) Tweets(ctx context.Context, handle string) ([]domain.DisplayPost, bool, error) {
	ctx, span := otel.Tracer("services/FeedService").Start(ctx, "Tweets",
		trace.WithAttributes(attribute.String("twitter.handle", handle)),
	)
	defer span.End()

	h := NormalizeHandle(handle)
	if h == "" {
		return nil, false, fmt.Errorf("username is required: %w", ErrValidation)
	}
	if !ValidHandle(h) {
		return nil, false, fmt.Errorf("invalid username %q: %w", h, ErrValidation)
	}

	o := s.load(ctx, h)
	if o.Err != nil {
		span.RecordError(o.Err)
		return nil, false, o.Err
	}
	span.SetAttributes(attribute.Bool("cache.hit", o.FromCache))
	return o.Posts, o.FromCache, nil
}

// AggregateAll merges the posts of every handle into one list ordered newest
// first. Handles that fail are skipped. allFromCache is false when at least
// one handle was fetched live. When ctx is cancelled the remaining handles
// are not processed.
func (s *FeedService) AggregateAll(ctx context.Context, handles []string) (posts []domain.DisplayPost, allFromCache bool) {
	ctx, span := otel.Tracer("services/FeedService").Start(ctx, "AggregateAll",
		trace.WithAttributes(attribute.Int("handles", len(handles))),
	)
	defer span.End()

	outcomes := make([]handleOutcome, 0, len(handles))
	for _, h := range handles {
		if ctx.Err() != nil {
			loggerFrom(ctx).Warn().Err(ctx.Err()).
				Int("remaining", len(handles)-len(outcomes)).
				Msg("aggregation cancelled")
			break
		}
		outcomes = append(outcomes, s.load(ctx, NormalizeHandle(h)))
	}

	posts = []domain.DisplayPost{}
	allFromCache = true
	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
			loggerFrom(ctx).Warn().Err(o.Err).Str("handle", o.Handle).Msg("skipping handle in aggregation")
			continue
		}
		if !o.FromCache {
			allFromCache = false
		}
		posts = append(posts, o.Posts...)
	}
	sortNewestFirst(posts)

	span.SetAttributes(
		attribute.Int("posts", len(posts)),
		attribute.Int("failed", failed),
		attribute.Bool("all_from_cache", allFromCache),
	)
	return posts, allFromCache
}

// load runs the read-through step for one handle.
func (s *FeedService) load(ctx context.Context, handle string) handleOutcome {
	if b, ok := s.Cache.Read(ctx, handle); ok {
		return handleOutcome{Handle: handle, Posts: Format(b), FromCache: true}
	}

	b, err := s.Fetcher.Fetch(ctx, handle)
	if err != nil {
		return handleOutcome{Handle: handle, Err: err}
	}
	s.Cache.Write(ctx, handle, b)
	return handleOutcome{Handle: handle, Posts: Format(b)}
}
