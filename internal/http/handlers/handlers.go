// Package handlers implements the HTTP endpoints of the feed API.
//
// Handlers are transport-thin: they validate input, call application
// services, and translate results (and errors) into HTTP responses.
package handlers

import (
	"context"

	"github.com/tbourn/go-tweet-feed/internal/domain"
)

// AccountService defines account directory operations consumed by handlers.
//
// Implementations must be safe for concurrent use and honor ctx.
type AccountService interface {
	// List returns registered accounts in insertion order.
	List(ctx context.Context) ([]domain.Account, error)
	// Add registers a handle (leading "@" and whitespace are ignored).
	Add(ctx context.Context, username string) (*domain.Account, error)
	// Remove unregisters a handle and invalidates its cached tweets.
	Remove(ctx context.Context, username string) (*domain.Account, error)
}

// FeedService defines the tweet read paths consumed by handlers.
type FeedService interface {
	// Tweets returns one handle's posts and whether they came from cache.
	Tweets(ctx context.Context, handle string) ([]domain.DisplayPost, bool, error)
	// AggregateAll merges the posts of handles, newest first.
	AggregateAll(ctx context.Context, handles []string) ([]domain.DisplayPost, bool)
}

// AdminAuth verifies the shared admin secret.
type AdminAuth interface {
	Check(password string) error
}

// Handlers groups the HTTP endpoints for accounts and tweets.
type Handlers struct {
	accounts AccountService
	feed     FeedService
	admin    AdminAuth
}

// New constructs and returns a Handlers instance bound to the given services.
func New(accounts AccountService, feed FeedService, admin AdminAuth) *Handlers {
	return &Handlers{accounts: accounts, feed: feed, admin: admin}
}
