// Package repo implements the data persistence layer backed by GORM. This
// file provides the key/value store used by the account directory and the
// tweet cache.
//
// Expiry is owned by this layer: a row written with a TTL carries an
// expires_at timestamp, and every read filters on it. Callers never compare
// timestamps themselves, so an expired row is indistinguishable from a
// missing one.
//
// Functions:
//
//   - GetValue(ctx, db, key, now) -> string, error
//     Returns the live value for key, or ErrNotFound.
//
//   - SetValue(ctx, db, key, value) -> error
//     Upserts a value that never expires.
//
//   - SetValueTTL(ctx, db, key, value, ttl) -> error
//     Upserts a value that expires ttl after the write.
//
//   - DeleteValue(ctx, db, key) -> error
//     Removes key; deleting a missing key is not an error.
//
//   - PurgeExpired(ctx, db, now) -> int64, error
//     Physically removes rows that have already expired.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-tweet-feed/internal/domain"
)

// ErrNotFound is returned when a key is missing or expired.
// It aliases gorm.ErrRecordNotFound for convenience.
var ErrNotFound = gorm.ErrRecordNotFound

// liveAt restricts q to rows that have not expired at now.
func liveAt(q *gorm.DB, now time.Time) *gorm.DB {
	return q.Where("(expires_at IS NULL OR expires_at > ?)", now.UTC())
}

// GetValue returns the value stored under key if it is still live at now.
func GetValue(ctx context.Context, db *gorm.DB, key string, now time.Time) (string, error) {
	var row domain.KVEntry
	err := liveAt(db.WithContext(ctx).Where("key = ?", key), now).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return row.Value, nil
}

// SetValue stores value under key without an expiry, replacing any
// previous value (and clearing any previous expiry).
func SetValue(ctx context.Context, db *gorm.DB, key, value string) error {
	return upsert(ctx, db, key, value, nil)
}

// SetValueTTL stores value under key so that it expires ttl after now.
func SetValueTTL(ctx context.Context, db *gorm.DB, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("ttl must be positive")
	}
	exp := time.Now().UTC().Add(ttl)
	return upsert(ctx, db, key, value, &exp)
}

func upsert(ctx context.Context, db *gorm.DB, key, value string, expiresAt *time.Time) error {
	now := time.Now().UTC()
	row := &domain.KVEntry{
		Key:       key,
		Value:     value,
		ExpiresAt: expiresAt,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "updated_at"}),
		}).
		Create(row).Error
}

// DeleteValue removes key. Missing keys are ignored.
func DeleteValue(ctx context.Context, db *gorm.DB, key string) error {
	return db.WithContext(ctx).
		Where("key = ?", key).
		Delete(&domain.KVEntry{}).Error
}

// PurgeExpired deletes rows whose expiry is at or before now and reports how
// many were removed. Reads already ignore such rows; this only reclaims space.
func PurgeExpired(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at <= ?", now.UTC()).
		Delete(&domain.KVEntry{})
	return res.RowsAffected, res.Error
}
