package domain

import "time"

// KVEntry is one row of the key/value store backing both the account
// directory and the tweet cache.
//
// A nil ExpiresAt never expires. Rows whose ExpiresAt is at or before the
// read time are treated as absent by every read; expiry is enforced by the
// storage queries, never by callers.
type KVEntry struct {
	Key       string     `gorm:"type:varchar(255);primaryKey"`
	Value     string     `gorm:"type:text;not null"`
	ExpiresAt *time.Time `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName implements the GORM tabler interface.
func (KVEntry) TableName() string { return "kv_entries" }
