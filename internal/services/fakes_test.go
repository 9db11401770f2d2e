package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-tweet-feed/internal/domain"
)

// ----- Fake key/value repo -----

type fakeKVRow struct {
	value     string
	expiresAt *time.Time
}

// fakeKV is an in-memory KVRepo that enforces expiry the same way the SQL
// store does: against the now passed to GetValue.
type fakeKV struct {
	mu   sync.Mutex
	rows map[string]fakeKVRow

	// clock drives the expiry written by SetValueTTL.
	clock func() time.Time

	getErr error
	setErr error
	delErr error

	sets    []string
	ttls    []time.Duration
	deletes []string
}

func newFakeKV(clock func() time.Time) *fakeKV {
	return &fakeKV{rows: map[string]fakeKVRow{}, clock: clock}
}

func (f *fakeKV) GetValue(ctx context.Context, db *gorm.DB, key string, now time.Time) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return "", f.getErr
	}
	r, ok := f.rows[key]
	if !ok || (r.expiresAt != nil && !r.expiresAt.After(now)) {
		return "", gorm.ErrRecordNotFound
	}
	return r.value, nil
}

func (f *fakeKV) SetValue(ctx context.Context, db *gorm.DB, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	f.rows[key] = fakeKVRow{value: value}
	f.sets = append(f.sets, key)
	return nil
}

func (f *fakeKV) SetValueTTL(ctx context.Context, db *gorm.DB, key, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	exp := f.clock().Add(ttl)
	f.rows[key] = fakeKVRow{value: value, expiresAt: &exp}
	f.sets = append(f.sets, key)
	f.ttls = append(f.ttls, ttl)
	return nil
}

func (f *fakeKV) DeleteValue(ctx context.Context, db *gorm.DB, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.delErr != nil {
		return f.delErr
	}
	delete(f.rows, key)
	f.deletes = append(f.deletes, key)
	return nil
}

// ----- Fake fetcher -----

type fakeFetcher struct {
	batches map[string]*domain.PostBatch
	errs    map[string]error
	calls   map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		batches: map[string]*domain.PostBatch{},
		errs:    map[string]error{},
		calls:   map[string]int{},
	}
}

func (f *fakeFetcher) Fetch(ctx context.Context, handle string) (*domain.PostBatch, error) {
	f.calls[handle]++
	if err, ok := f.errs[handle]; ok {
		return nil, err
	}
	if b, ok := f.batches[handle]; ok {
		return b, nil
	}
	return nil, fmt.Errorf("fake fetcher: @%s: %w", handle, domain.ErrNotFound)
}

func (f *fakeFetcher) total() int {
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

// ----- Helpers -----

// manualClock is a settable clock for expiry tests.
type manualClock struct{ t time.Time }

func (c *manualClock) Now() time.Time          { return c.t }
func (c *manualClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func ts(sec int64) *time.Time {
	t := time.Unix(sec, 0).UTC()
	return &t
}

func batchOf(authorID, handle string, posts ...domain.Post) *domain.PostBatch {
	for i := range posts {
		posts[i].AuthorID = authorID
	}
	return &domain.PostBatch{
		Posts:   posts,
		Authors: []domain.Author{{ID: authorID, DisplayName: handle, Handle: handle}},
		Meta:    domain.FetchMeta{ResultCount: len(posts)},
	}
}

func ids(posts []domain.DisplayPost) []string {
	out := make([]string, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.ID)
	}
	return out
}
