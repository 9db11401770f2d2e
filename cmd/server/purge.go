package main

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/go-tweet-feed/internal/repo"
)

// purgeLoop deletes expired key/value rows every interval until ctx ends.
// Reads already ignore expired rows, so this only bounds table growth.
// A non-positive interval disables purging.
func purgeLoop(ctx context.Context, db *gorm.DB, interval time.Duration, logger zerolog.Logger) {
	if interval <= 0 {
		logger.Info().Msg("expired row purge disabled")
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purgeOnce(ctx, db, logger)
		}
	}
}

func purgeOnce(ctx context.Context, db *gorm.DB, logger zerolog.Logger) int64 {
	n, err := repo.PurgeExpired(ctx, db, time.Now().UTC())
	if err != nil {
		logger.Warn().Err(err).Msg("purge expired rows")
		return 0
	}
	if n > 0 {
		logger.Debug().Int64("rows", n).Msg("purged expired rows")
	}
	return n
}
