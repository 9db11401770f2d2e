// Package domain defines the core data types shared by the storage, upstream
// and service layers: registered accounts, fetched post batches, the derived
// display records, and the key/value row used for persistence.
package domain

import "time"

// epoch is the timestamp assigned to posts that carry no creation time.
var epoch = time.Unix(0, 0).UTC()

// Metrics holds the public engagement counters of a post.
type Metrics struct {
	RetweetCount int `json:"retweet_count"`
	LikeCount    int `json:"like_count"`
	ReplyCount   int `json:"reply_count"`
	QuoteCount   int `json:"quote_count"`
}

// Post is a single upstream post. JSON names follow the upstream API so a
// cached batch round-trips without translation.
type Post struct {
	ID        string     `json:"id"`
	Text      string     `json:"text"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	AuthorID  string     `json:"author_id,omitempty"`
	Metrics   *Metrics   `json:"public_metrics,omitempty"`
}

// Timestamp returns CreatedAt, or the Unix epoch when the post has none.
func (p Post) Timestamp() time.Time {
	if p.CreatedAt == nil {
		return epoch
	}
	return *p.CreatedAt
}

// Author is the profile of a post author, embedded by the upstream API when
// author expansion is requested.
type Author struct {
	ID          string `json:"id"`
	DisplayName string `json:"name"`
	Handle      string `json:"username"`
	AvatarURL   string `json:"profile_image_url,omitempty"`
}

// FetchMeta mirrors the upstream timeline metadata.
type FetchMeta struct {
	ResultCount int    `json:"result_count"`
	NewestID    string `json:"newest_id"`
	OldestID    string `json:"oldest_id"`
}

// PostBatch is the unit returned by the fetcher and stored in the cache.
//
// Every AuthorID referenced by Posts should resolve to an entry in Authors,
// but consumers must tolerate missing authors.
type PostBatch struct {
	Posts   []Post    `json:"tweets"`
	Authors []Author  `json:"users"`
	Meta    FetchMeta `json:"meta"`
}

// DisplayPost is a Post joined with its resolved Author. It is derived for
// presentation and never persisted.
type DisplayPost struct {
	Post
	Author *Author `json:"author,omitempty"`
}
