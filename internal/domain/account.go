package domain

import "time"

// Account is a registered handle participating in aggregation.
//
// Username is stored without a leading "@" and is unique case-insensitively.
type Account struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
}
