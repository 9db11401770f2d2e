// Tweet HTTP handlers.
//
// GET /tweets serves one handle when ?username= is given, and the merged feed
// of every registered account otherwise.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-tweet-feed/internal/domain"
	"github.com/tbourn/go-tweet-feed/internal/services"
)

// TweetsResponse is the body of GET /tweets.
type TweetsResponse struct {
	Tweets []domain.DisplayPost `json:"tweets"`
	// Cached is true when every post came from cache.
	Cached bool `json:"cached" example:"true"`
	// Username echoes the requested handle on the single-account path.
	Username string `json:"username,omitempty" example:"alice"`
}

// GetTweets godoc
// @ID          getTweets
// @Summary     Recent tweets
// @Description With username, returns that handle's latest tweets (read-through cache, 1h TTL). Without it, merges the tweets of every registered account newest first; failing accounts are skipped.
// @Tags        Tweets
// @Produce     json
//
// @Param       username  query  string  false  "Handle, with or without @"  example(alice)
//
// @Success     200  {object} handlers.TweetsResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Handle not found"
// @Failure     502  {object} handlers.ErrorResponse "Upstream failure"
// @Failure     503  {object} handlers.ErrorResponse "Storage unavailable"
// @Router      /tweets [get]
func (h *Handlers) GetTweets(c *gin.Context) {
	ctx := c.Request.Context()

	if raw, present := c.GetQuery("username"); present {
		if strings.TrimSpace(raw) == "" {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Username is required")
			return
		}
		posts, cached, err := h.feed.Tweets(ctx, raw)
		if err != nil {
			failErr(c, err, "Failed to fetch tweets")
			return
		}
		ok(c, http.StatusOK, TweetsResponse{
			Tweets:   posts,
			Cached:   cached,
			Username: services.NormalizeHandle(raw),
		})
		return
	}

	accts, err := h.accounts.List(ctx)
	if err != nil {
		failErr(c, err, "Failed to get accounts")
		return
	}
	handles := make([]string, 0, len(accts))
	for _, a := range accts {
		handles = append(handles, a.Username)
	}

	posts, allFromCache := h.feed.AggregateAll(ctx, handles)
	ok(c, http.StatusOK, TweetsResponse{Tweets: posts, Cached: allFromCache})
}
