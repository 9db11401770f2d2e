// Package services – AccountDirectory
//
// AccountDirectory is the source of truth for which handles take part in
// aggregation. The list lives under a single key/value key as a JSON array in
// insertion order. Handles are unique case-insensitively.
//
// Removing an account also drops its cached tweets through the injected
// Invalidate function, so the directory never reaches into cache storage
// itself.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-tweet-feed/internal/domain"
)

// AccountsKey is the key/value key holding the registered accounts.
const AccountsKey = "accounts"

// AccountDirectory lists, adds and removes registered accounts.
type AccountDirectory struct {
	DB   *gorm.DB
	Repo KVRepo

	// Invalidate drops cached data for a removed handle. May be nil.
	Invalidate func(ctx context.Context, handle string) error

	// Now and NewID are injectable for tests.
	Now   func() time.Time
	NewID func() string
}

// NewAccountDirectory constructs an AccountDirectory with a wall clock and
// UUIDv4 identifiers.
func NewAccountDirectory(db *gorm.DB, r KVRepo, invalidate func(ctx context.Context, handle string) error) *AccountDirectory {
	return &AccountDirectory{
		DB:         db,
		Repo:       r,
		Invalidate: invalidate,
		Now:        time.Now,
		NewID:      uuid.NewString,
	}
}

// List returns every registered account in insertion order. An empty
// directory yields an empty, non-nil slice.
func (d *AccountDirectory) List(ctx context.Context) ([]domain.Account, error) {
	ctx, span := otel.Tracer("services/AccountDirectory").Start(ctx, "List")
	defer span.End()

	accts, err := d.load(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("accounts", len(accts)))
	return accts, nil
}

// Handles returns the usernames of every registered account in insertion
// order.
func (d *AccountDirectory) Handles(ctx context.Context) ([]string, error) {
	accts, err := d.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(accts))
	for _, a := range accts {
		out = append(out, a.Username)
	}
	return out, nil
}

// Add registers username after trimming whitespace and one leading "@".
func (d *AccountDirectory) Add(ctx context.Context, username string) (*domain.Account, error) {
	h := NormalizeHandle(username)
	ctx, span := otel.Tracer("services/AccountDirectory").Start(ctx, "Add",
		trace.WithAttributes(attribute.String("twitter.handle", h)),
	)
	defer span.End()

	if h == "" {
		return nil, fmt.Errorf("username is required: %w", ErrValidation)
	}
	if !ValidHandle(h) {
		return nil, fmt.Errorf("invalid username %q: %w", h, ErrValidation)
	}

	accts, err := d.load(ctx)
	if err != nil {
		return nil, err
	}
	for _, a := range accts {
		if sameHandle(a.Username, h) {
			return nil, fmt.Errorf("account @%s: %w", a.Username, ErrDuplicate)
		}
	}

	acct := domain.Account{
		ID:        d.newID(),
		Username:  h,
		CreatedAt: d.now().UTC(),
	}
	if err := d.save(ctx, append(accts, acct)); err != nil {
		return nil, err
	}
	return &acct, nil
}

// Remove unregisters username and invalidates its cached tweets. The
// removed account is returned. When only the invalidation fails, the account
// stays removed and the error matches ErrStorage.
func (d *AccountDirectory) Remove(ctx context.Context, username string) (*domain.Account, error) {
	h := NormalizeHandle(username)
	ctx, span := otel.Tracer("services/AccountDirectory").Start(ctx, "Remove",
		trace.WithAttributes(attribute.String("twitter.handle", h)),
	)
	defer span.End()

	if h == "" {
		return nil, fmt.Errorf("username is required: %w", ErrValidation)
	}

	accts, err := d.load(ctx)
	if err != nil {
		return nil, err
	}
	idx := -1
	for i, a := range accts {
		if sameHandle(a.Username, h) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("account @%s: %w", h, ErrNotFound)
	}

	removed := accts[idx]
	rest := append(accts[:idx:idx], accts[idx+1:]...)
	if err := d.save(ctx, rest); err != nil {
		return nil, err
	}

	if d.Invalidate != nil {
		if err := d.Invalidate(ctx, removed.Username); err != nil {
			span.RecordError(err)
			loggerFrom(ctx).Error().Err(err).Str("handle", removed.Username).Msg("cache invalidation failed after account removal")
			if !errors.Is(err, ErrStorage) {
				err = fmt.Errorf("%v: %w", err, ErrStorage)
			}
			return &removed, err
		}
	}
	return &removed, nil
}

func (d *AccountDirectory) load(ctx context.Context) ([]domain.Account, error) {
	raw, err := d.Repo.GetValue(ctx, d.DB, AccountsKey, d.now())
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return []domain.Account{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read accounts: %v: %w", err, ErrStorage)
	}
	var accts []domain.Account
	if err := json.Unmarshal([]byte(raw), &accts); err != nil {
		return nil, fmt.Errorf("decode accounts: %v: %w", err, ErrStorage)
	}
	if accts == nil {
		accts = []domain.Account{}
	}
	return accts, nil
}

func (d *AccountDirectory) save(ctx context.Context, accts []domain.Account) error {
	raw, err := json.Marshal(accts)
	if err != nil {
		return fmt.Errorf("encode accounts: %v: %w", err, ErrStorage)
	}
	if err := d.Repo.SetValue(ctx, d.DB, AccountsKey, string(raw)); err != nil {
		return fmt.Errorf("write accounts: %v: %w", err, ErrStorage)
	}
	return nil
}

func (d *AccountDirectory) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}

func (d *AccountDirectory) newID() string {
	if d.NewID == nil {
		return uuid.NewString()
	}
	return d.NewID()
}
