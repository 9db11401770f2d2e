// Package twitter implements the upstream fetcher: a small client for the
// Twitter API v2 that resolves a handle to a user id and returns that user's
// most recent posts together with the expanded author profiles.
//
// Errors are reduced to two sentinels from the domain package. A handle that
// does not resolve yields domain.ErrNotFound; every other failure (rate
// limiting, transport errors, unexpected status codes, malformed payloads)
// yields domain.ErrUpstream. The client never retries.
package twitter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/tbourn/go-tweet-feed/internal/domain"
)

const (
	// DefaultBaseURL is the public API root.
	DefaultBaseURL = "https://api.twitter.com/2"

	// PageSize is the fixed number of posts requested per handle.
	PageSize = 20

	defaultTimeout = 30 * time.Second

	tweetFields = "created_at,public_metrics,author_id"
	userFields  = "name,username,profile_image_url"
)

// fetchTotal counts fetch outcomes: ok, not_found, error.
var fetchTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "twitter_fetch_total",
		Help: "Upstream timeline fetches by outcome.",
	},
	[]string{"result"},
)

func init() {
	prometheus.MustRegister(fetchTotal)
}

// Options configures a Client. Zero values fall back to defaults: the public
// base URL, a 30s timeout, and no outbound pacing.
type Options struct {
	BaseURL     string
	BearerToken string
	Timeout     time.Duration

	// RPS and Burst pace outbound requests with a token bucket. RPS <= 0
	// disables pacing.
	RPS   float64
	Burst int

	// HTTPClient overrides the transport (tests). Timeout is ignored when set.
	HTTPClient *http.Client
}

// Client fetches recent posts for a handle. It is safe for concurrent use.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	limiter *rate.Limiter
}

// New builds a Client from opts.
func New(opts Options) *Client {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	hc := opts.HTTPClient
	if hc == nil {
		to := opts.Timeout
		if to <= 0 {
			to = defaultTimeout
		}
		hc = &http.Client{Timeout: to}
	}
	var lim *rate.Limiter
	if opts.RPS > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(opts.RPS), burst)
	}
	return &Client{baseURL: base, token: opts.BearerToken, http: hc, limiter: lim}
}

type userEnvelope struct {
	Data *struct {
		ID string `json:"id"`
	} `json:"data"`
	Errors []apiError `json:"errors"`
}

type timelineEnvelope struct {
	Data     []domain.Post `json:"data"`
	Includes struct {
		Users []domain.Author `json:"users"`
	} `json:"includes"`
	Meta *domain.FetchMeta `json:"meta"`
}

type apiError struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Type   string `json:"type"`
}

// Fetch returns the latest PageSize posts of handle along with the profiles
// of their authors. A missing meta block is returned as zero-valued meta.
func (c *Client) Fetch(ctx context.Context, handle string) (*domain.PostBatch, error) {
	ctx, span := otel.Tracer("twitter/Client").Start(ctx, "Fetch",
		trace.WithAttributes(attribute.String("twitter.handle", handle)),
	)
	defer span.End()

	batch, err := c.fetch(ctx, handle)
	switch {
	case err == nil:
		fetchTotal.WithLabelValues("ok").Inc()
		span.SetAttributes(attribute.Int("twitter.result_count", len(batch.Posts)))
	case errors.Is(err, domain.ErrNotFound):
		fetchTotal.WithLabelValues("not_found").Inc()
		span.SetStatus(codes.Error, "not found")
	default:
		fetchTotal.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "upstream")
	}
	return batch, err
}

func (c *Client) fetch(ctx context.Context, handle string) (*domain.PostBatch, error) {
	handle = strings.TrimPrefix(strings.TrimSpace(handle), "@")
	if handle == "" {
		return nil, fmt.Errorf("twitter: empty handle: %w", domain.ErrNotFound)
	}

	userID, err := c.lookupUser(ctx, handle)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("max_results", strconv.Itoa(PageSize))
	q.Set("expansions", "author_id")
	q.Set("tweet.fields", tweetFields)
	q.Set("user.fields", userFields)

	var tl timelineEnvelope
	if _, err := c.get(ctx, "/users/"+url.PathEscape(userID)+"/tweets", q, &tl); err != nil {
		return nil, err
	}

	batch := &domain.PostBatch{
		Posts:   tl.Data,
		Authors: tl.Includes.Users,
	}
	if batch.Posts == nil {
		batch.Posts = []domain.Post{}
	}
	if batch.Authors == nil {
		batch.Authors = []domain.Author{}
	}
	if tl.Meta != nil {
		batch.Meta = *tl.Meta
	}
	return batch, nil
}

// lookupUser resolves handle to its numeric user id.
func (c *Client) lookupUser(ctx context.Context, handle string) (string, error) {
	var env userEnvelope
	status, err := c.get(ctx, "/users/by/username/"+url.PathEscape(handle), nil, &env)
	if err != nil {
		if status == http.StatusNotFound {
			return "", fmt.Errorf("twitter: user @%s: %w", handle, domain.ErrNotFound)
		}
		return "", err
	}
	// The API answers 200 with an errors array for unknown users.
	if env.Data == nil || env.Data.ID == "" {
		return "", fmt.Errorf("twitter: user @%s: %w", handle, domain.ErrNotFound)
	}
	return env.Data.ID, nil
}

// get performs an authenticated GET and decodes a 200 body into out. The
// HTTP status is returned alongside any error so callers can special-case it.
func (c *Client) get(ctx context.Context, path string, q url.Values, out any) (int, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, fmt.Errorf("twitter: pacing: %v: %w", err, domain.ErrUpstream)
		}
	}

	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, fmt.Errorf("twitter: build request: %v: %w", err, domain.ErrUpstream)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("twitter: %v: %w", err, domain.ErrUpstream)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return resp.StatusCode, fmt.Errorf("twitter: API error %d - %s: %w",
			resp.StatusCode, strings.TrimSpace(string(body)), domain.ErrUpstream)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("twitter: decode: %v: %w", err, domain.ErrUpstream)
	}
	return resp.StatusCode, nil
}
