// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// rate limiting, CORS, and security headers.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	_ "github.com/tbourn/go-tweet-feed/docs"
	"github.com/tbourn/go-tweet-feed/internal/auth"
	"github.com/tbourn/go-tweet-feed/internal/config"
	"github.com/tbourn/go-tweet-feed/internal/http/handlers"
	"github.com/tbourn/go-tweet-feed/internal/http/middleware"
	"github.com/tbourn/go-tweet-feed/internal/repo"
	"github.com/tbourn/go-tweet-feed/internal/services"
)

// kvRepoShim adapts the repository free functions to services.KVRepo.
type kvRepoShim struct{}

// GetValue proxies repo.GetValue.
func (kvRepoShim) GetValue(ctx context.Context, db *gorm.DB, key string, now time.Time) (string, error) {
	return repo.GetValue(ctx, db, key, now)
}

// SetValue proxies repo.SetValue.
func (kvRepoShim) SetValue(ctx context.Context, db *gorm.DB, key, value string) error {
	return repo.SetValue(ctx, db, key, value)
}

// SetValueTTL proxies repo.SetValueTTL.
func (kvRepoShim) SetValueTTL(ctx context.Context, db *gorm.DB, key, value string, ttl time.Duration) error {
	return repo.SetValueTTL(ctx, db, key, value, ttl)
}

// DeleteValue proxies repo.DeleteValue.
func (kvRepoShim) DeleteValue(ctx context.Context, db *gorm.DB, key string) error {
	return repo.DeleteValue(ctx, db, key)
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status       string     `json:"status" example:"ok"`
	CacheEntries int64      `json:"cache_entries" example:"3"`
	CacheNewest  *time.Time `json:"cache_newest,omitempty"`
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. fetcher supplies upstream timelines on cache misses.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with secret scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Rate limiter (per IP; health and metrics exempt)
//  8. CORS and Security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, fetcher services.Fetcher, cfg config.Config) {
	r.HandleMethodNotAllowed = true
	apiBase := cfg.APIBasePath

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskQuery: []string{"password"},
	}))
	r.Use(middleware.Recovery())

	// Account bodies are tiny; 64 KiB is generous.
	r.Use(limitBody(64 << 10))

	r.Use(middleware.Metrics("/metrics"))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByClientIP(), "/health", "/metrics")
	r.Use(rl.Handler())

	r.Use(cors.New(corsConfig(cfg.CORS.AllowedOrigins)))

	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:      cfg.Security.EnableHSTS,
		HSTSMaxAge:      cfg.Security.HSTSMaxAge,
		NoStorePrefixes: []string{joinPath(apiBase, "/accounts")},
		EnablePolicy:    true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", health(db))

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← repo/db/fetcher
	cache := services.NewTweetCache(db, kvRepoShim{})
	dir := services.NewAccountDirectory(db, kvRepoShim{}, cache.Invalidate)
	feed := services.NewFeedService(cache, fetcher)
	h := handlers.New(dir, feed, auth.NewAdmin(cfg.AdminPassword))

	api := groupWithPrefix(r, apiBase)
	api.Use(gzip.Gzip(gzip.DefaultCompression))
	{
		api.GET("/accounts", h.ListAccounts)
		api.POST("/accounts", h.AddAccount)
		api.DELETE("/accounts", h.RemoveAccount)

		api.GET("/tweets", h.GetTweets)
	}
}

// health reports liveness plus the number of live cache entries. A storage
// failure turns the probe into a 503.
func health(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, newest, err := repo.KVStats(c.Request.Context(), db, services.CacheKeyPrefix, time.Now().UTC())
		if err != nil {
			middleware.LoggerFrom(c).Error().Err(err).Msg("health: storage check failed")
			handlers.Fail(c, http.StatusServiceUnavailable, handlers.ErrCodeStorage, "storage unavailable")
			return
		}
		c.JSON(http.StatusOK, HealthResponse{Status: "ok", CacheEntries: n, CacheNewest: newest})
	}
}

func corsConfig(origins []string) cors.Config {
	cc := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "If-None-Match"},
		ExposeHeaders:    []string{"X-Request-ID", "ETag", "Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = origins
	}
	return cc
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}

func joinPath(base, p string) string {
	if base == "" || base == "/" {
		return p
	}
	return base + p
}
