package services

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/cases"
	"gorm.io/gorm"
)

// KVRepo defines the key/value contract shared by the account directory and
// the tweet cache. A missing or expired key is reported as
// gorm.ErrRecordNotFound.
type KVRepo interface {
	// GetValue returns the value of key if it is live at now.
	GetValue(ctx context.Context, db *gorm.DB, key string, now time.Time) (string, error)

	// SetValue stores a value that never expires.
	SetValue(ctx context.Context, db *gorm.DB, key, value string) error

	// SetValueTTL stores a value that the store drops ttl after the write.
	SetValueTTL(ctx context.Context, db *gorm.DB, key, value string, ttl time.Duration) error

	// DeleteValue removes key; a missing key is not an error.
	DeleteValue(ctx context.Context, db *gorm.DB, key string) error
}

// handleRe matches a bare handle: letters, digits and underscore, 1..15.
var handleRe = regexp.MustCompile(`^[A-Za-z0-9_]{1,15}$`)

// NormalizeHandle trims surrounding whitespace and a single leading "@".
func NormalizeHandle(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "@")
	return strings.TrimSpace(s)
}

// ValidHandle reports whether h is a well-formed, already normalized handle.
func ValidHandle(h string) bool {
	return handleRe.MatchString(h)
}

// foldHandle returns the case-insensitive identity of a handle.
// A cases.Caser is stateful, so one is built per call.
func foldHandle(h string) string {
	return cases.Fold().String(h)
}

// sameHandle reports whether a and b name the same account.
func sameHandle(a, b string) bool {
	return foldHandle(a) == foldHandle(b)
}

// loggerFrom returns the request-scoped logger carried by ctx, or the global
// logger when none was attached.
func loggerFrom(ctx context.Context) *zerolog.Logger {
	if lg := zerolog.Ctx(ctx); lg.GetLevel() != zerolog.Disabled {
		return lg
	}
	return &log.Logger
}
