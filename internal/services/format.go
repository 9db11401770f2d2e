package services

import (
	"sort"

	"github.com/tbourn/go-tweet-feed/internal/domain"
)

// Format joins each post of batch with its author and orders the result
// newest first. Posts whose author is not in the batch keep a nil Author;
// posts without a creation time sort as the Unix epoch. Ties keep batch order.
func Format(batch *domain.PostBatch) []domain.DisplayPost {
	if batch == nil {
		return []domain.DisplayPost{}
	}

	authors := make(map[string]*domain.Author, len(batch.Authors))
	for i := range batch.Authors {
		a := batch.Authors[i]
		authors[a.ID] = &a
	}

	out := make([]domain.DisplayPost, 0, len(batch.Posts))
	for _, p := range batch.Posts {
		dp := domain.DisplayPost{Post: p}
		if p.AuthorID != "" {
			dp.Author = authors[p.AuthorID]
		}
		out = append(out, dp)
	}
	sortNewestFirst(out)
	return out
}

// sortNewestFirst stable-sorts posts by creation time, descending.
func sortNewestFirst(posts []domain.DisplayPost) {
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].Timestamp().After(posts[j].Timestamp())
	})
}
