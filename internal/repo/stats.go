// Package repo implements the data persistence layer backed by GORM. This
// file provides small aggregate queries over the key/value store used for
// health reporting.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-tweet-feed/internal/domain"
)

// KVStats returns the number of live rows whose key starts with prefix and
// the greatest UpdatedAt among them. When there are none, count is 0 and
// newest is nil.
func KVStats(ctx context.Context, db *gorm.DB, prefix string, now time.Time) (count int64, newest *time.Time, err error) {
	live := func() *gorm.DB {
		return liveAt(db.WithContext(ctx).
			Model(&domain.KVEntry{}).
			Where("key LIKE ?", prefix+"%"), now)
	}

	if err = live().Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = live().Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}
