package httpapi

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/go-tweet-feed/internal/config"
	"github.com/tbourn/go-tweet-feed/internal/domain"
	"github.com/tbourn/go-tweet-feed/internal/repo"
	"github.com/tbourn/go-tweet-feed/internal/services"
	"github.com/tbourn/go-tweet-feed/internal/twitter"
)

// --- test DB helper (pure-Go sqlite, no CGO, one database per test) ---
func newTestDB(t *testing.T, migrate bool) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := repo.OpenSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if migrate {
		if err := repo.AutoMigrate(db); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// nopFetcher satisfies services.Fetcher for tests that never reach upstream.
type nopFetcher struct{}

func (nopFetcher) Fetch(context.Context, string) (*domain.PostBatch, error) {
	return nil, domain.ErrUpstream
}

func testConfig() config.Config {
	return config.Config{
		APIBasePath:   "/api",
		RateRPS:       1000,
		RateBurst:     100,
		AdminPassword: "pw",
		OTEL:          config.OTELConfig{ServiceName: "test-svc"},
	}
}

func do(r http.Handler, method, path, body string, hdr ...string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterRoutes_CORSAllowAll_Health_Metrics_Fallbacks(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, newTestDB(t, true), nopFetcher{}, testConfig())

	w := do(r, http.MethodGet, "/health", "", "Origin", "https://app.example.org")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}
	var hr HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &hr); err != nil || hr.Status != "ok" || hr.CacheEntries != 0 {
		t.Fatalf("health body unexpected: %s (%v)", w.Body.String(), err)
	}

	w = do(r, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "http_requests_total") {
		t.Fatalf("GET /metrics bad: code=%d", w.Code)
	}

	w = do(r, http.MethodGet, "/nope", "")
	if w.Code != http.StatusNotFound || !strings.Contains(w.Body.String(), `"code":"not_found"`) {
		t.Fatalf("GET /nope expected 404 envelope, got %d %s", w.Code, w.Body.String())
	}

	w = do(r, http.MethodPut, "/api/accounts", "")
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("PUT /api/accounts expected 405, got %d", w.Code)
	}
}

func TestRegisterRoutes_CORSWithOrigins_HeaderEcho(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	cfg := testConfig()
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"https://app.example.org"}}
	RegisterRoutes(r, newTestDB(t, true), nopFetcher{}, cfg)

	w := do(r, http.MethodGet, "/health", "", "Origin", "https://app.example.org")
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.org" {
		t.Fatalf("expected ACAO echo, got %q", got)
	}

	w = do(r, http.MethodGet, "/health", "", "Origin", "https://evil.example.net")
	if w.Code != http.StatusForbidden {
		t.Fatalf("disallowed origin expected 403, got %d", w.Code)
	}
}

func TestHealth_StorageFailure_Is503(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, newTestDB(t, false), nopFetcher{}, testConfig())

	w := do(r, http.MethodGet, "/health", "")
	if w.Code != http.StatusServiceUnavailable || !strings.Contains(w.Body.String(), "storage_unavailable") {
		t.Fatalf("expected 503 storage_unavailable, got %d %s", w.Code, w.Body.String())
	}
}

func TestPipeline_SecurityHeaders_RequestID_NoStore(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, newTestDB(t, true), nopFetcher{}, testConfig())

	w := do(r, http.MethodGet, "/api/accounts", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /api/accounts = %d", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("security headers missing: %v", w.Header())
	}
	if w.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("accounts must be no-store, got %q", w.Header().Get("Cache-Control"))
	}
	if w.Header().Get("ETag") == "" {
		t.Fatalf("accounts list should carry an ETag")
	}

	w = do(r, http.MethodGet, "/health", "")
	if w.Header().Get("Cache-Control") == "no-store" {
		t.Fatalf("no-store should be scoped to accounts")
	}
}

func TestGzip_AppliesToAPIGroup(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, newTestDB(t, true), nopFetcher{}, testConfig())

	w := do(r, http.MethodGet, "/api/accounts", "", "Accept-Encoding", "gzip")
	if w.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("expected gzip encoding, headers=%v", w.Header())
	}
	zr, err := gzip.NewReader(w.Body)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	body, _ := io.ReadAll(zr)
	if !strings.Contains(string(body), `"accounts":[]`) {
		t.Fatalf("unexpected decompressed body: %s", body)
	}
}

func TestSwagger_OnlyWhenEnabled(t *testing.T) {
	gin.SetMode(gin.TestMode)

	off := gin.New()
	RegisterRoutes(off, newTestDB(t, true), nopFetcher{}, testConfig())
	if w := do(off, http.MethodGet, "/swagger/doc.json", ""); w.Code != http.StatusNotFound {
		t.Fatalf("swagger should be hidden by default, got %d", w.Code)
	}

	cfg := testConfig()
	cfg.SwaggerEnabled = true
	on := gin.New()
	RegisterRoutes(on, newTestDB(t, true), nopFetcher{}, cfg)
	w := do(on, http.MethodGet, "/swagger/doc.json", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "/tweets") {
		t.Fatalf("swagger doc.json: %d %s", w.Code, w.Body.String())
	}
}

func Test_limitBody_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	// tiny cap to trigger MaxBytesReader
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		_, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("0123456789AB")) // 12 bytes
	r.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 from limitBody, got %d", w.Code)
	}
}

func Test_groupWithPrefix_And_joinPath(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	groupWithPrefix(r, "/").GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	groupWithPrefix(r, "").GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })
	groupWithPrefix(r, "/api").GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for path, want := range map[string]string{"/one": "one", "/two": "two", "/api/ping": "pong"} {
		w := do(r, http.MethodGet, path, "")
		if w.Code != http.StatusOK || w.Body.String() != want {
			t.Fatalf("GET %s got %d %q", path, w.Code, w.Body.String())
		}
	}

	if joinPath("/", "/accounts") != "/accounts" || joinPath("/api", "/accounts") != "/api/accounts" {
		t.Fatalf("joinPath mismatch")
	}
}

func Test_kvRepoShim_Proxies(t *testing.T) {
	db := newTestDB(t, true)
	ctx := context.Background()
	var shim services.KVRepo = kvRepoShim{}

	if err := shim.SetValue(ctx, db, "k", "v"); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	if v, err := shim.GetValue(ctx, db, "k", time.Now().UTC()); err != nil || v != "v" {
		t.Fatalf("GetValue = %q, %v", v, err)
	}
	if err := shim.SetValueTTL(ctx, db, "t", "x", time.Minute); err != nil {
		t.Fatalf("SetValueTTL: %v", err)
	}
	if _, err := shim.GetValue(ctx, db, "t", time.Now().UTC().Add(2*time.Minute)); err == nil {
		t.Fatalf("expected ttl row to be expired")
	}
	if err := shim.DeleteValue(ctx, db, "k"); err != nil {
		t.Fatalf("DeleteValue: %v", err)
	}
	if _, err := shim.GetValue(ctx, db, "k", time.Now().UTC()); err == nil {
		t.Fatalf("expected deleted key to be gone")
	}
}

// --- end to end: real storage, real upstream client against a fake API ---

type fakeAPI struct {
	srv      *httptest.Server
	timeline atomic.Int32
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	users := map[string]string{"alice": "1", "bob": "2"}
	timelines := map[string]string{
		"1": `{"data":[
			{"id":"a1","text":"alice early","created_at":"2024-01-01T10:00:00.000Z","author_id":"1"},
			{"id":"a2","text":"alice late","created_at":"2024-01-01T12:00:00.000Z","author_id":"1"}],
			"includes":{"users":[{"id":"1","name":"Alice","username":"alice"}]},
			"meta":{"result_count":2,"newest_id":"a2","oldest_id":"a1"}}`,
		"2": `{"data":[
			{"id":"b1","text":"bob","created_at":"2024-01-01T11:00:00.000Z","author_id":"2"}],
			"includes":{"users":[{"id":"2","name":"Bob","username":"bob"}]},
			"meta":{"result_count":1,"newest_id":"b1","oldest_id":"b1"}}`,
	}

	f := &fakeAPI{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h, ok := strings.CutPrefix(r.URL.Path, "/users/by/username/"); ok {
			id, known := users[strings.ToLower(h)]
			if !known {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			fmt.Fprintf(w, `{"data":{"id":%q,"username":%q}}`, id, h)
			return
		}
		for id, body := range timelines {
			if r.URL.Path == "/users/"+id+"/tweets" {
				f.timeline.Add(1)
				_, _ = w.Write([]byte(body))
				return
			}
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func TestEndToEnd_AccountsAndFeed(t *testing.T) {
	gin.SetMode(gin.TestMode)
	api := newFakeAPI(t)
	client := twitter.New(twitter.Options{BaseURL: api.srv.URL, BearerToken: "tok", Timeout: 2 * time.Second})

	r := gin.New()
	RegisterRoutes(r, newTestDB(t, true), client, testConfig())

	// admin secret enforced
	if w := do(r, http.MethodPost, "/api/accounts", `{"username":"alice","password":"nope"}`); w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password expected 401, got %d", w.Code)
	}

	for _, u := range []string{"alice", "@bob"} {
		w := do(r, http.MethodPost, "/api/accounts", fmt.Sprintf(`{"username":%q,"password":"pw"}`, u))
		if w.Code != http.StatusCreated {
			t.Fatalf("add %s: %d %s", u, w.Code, w.Body.String())
		}
	}
	if w := do(r, http.MethodPost, "/api/accounts", `{"username":"ALICE","password":"pw"}`); w.Code != http.StatusConflict {
		t.Fatalf("duplicate expected 409, got %d", w.Code)
	}

	type feed struct {
		Tweets []struct {
			ID     string `json:"id"`
			Author *struct {
				Handle string `json:"username"`
			} `json:"author"`
		} `json:"tweets"`
		Cached   bool   `json:"cached"`
		Username string `json:"username"`
	}
	getFeed := func(path string) feed {
		t.Helper()
		w := do(r, http.MethodGet, path, "")
		if w.Code != http.StatusOK {
			t.Fatalf("GET %s: %d %s", path, w.Code, w.Body.String())
		}
		var f feed
		if err := json.Unmarshal(w.Body.Bytes(), &f); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return f
	}

	first := getFeed("/api/tweets")
	var got []string
	for _, p := range first.Tweets {
		got = append(got, p.ID)
	}
	if strings.Join(got, ",") != "a2,b1,a1" || first.Cached {
		t.Fatalf("first feed = %v cached=%v", got, first.Cached)
	}
	if first.Tweets[1].Author == nil || first.Tweets[1].Author.Handle != "bob" {
		t.Fatalf("author not joined: %+v", first.Tweets[1])
	}
	if n := api.timeline.Load(); n != 2 {
		t.Fatalf("expected 2 upstream timeline calls, got %d", n)
	}

	second := getFeed("/api/tweets")
	if !second.Cached || api.timeline.Load() != 2 {
		t.Fatalf("second feed should be served from cache (cached=%v calls=%d)", second.Cached, api.timeline.Load())
	}

	single := getFeed("/api/tweets?username=@Alice")
	if !single.Cached || single.Username != "Alice" || len(single.Tweets) != 2 {
		t.Fatalf("single handle = %+v", single)
	}

	w := do(r, http.MethodGet, "/health", "")
	var hr HealthResponse
	_ = json.Unmarshal(w.Body.Bytes(), &hr)
	if hr.CacheEntries != 2 || hr.CacheNewest == nil {
		t.Fatalf("health should report 2 cache entries: %s", w.Body.String())
	}

	// removal cascades to the cache
	if w := do(r, http.MethodDelete, "/api/accounts", `{"username":"bob","password":"pw"}`); w.Code != http.StatusOK {
		t.Fatalf("remove bob: %d %s", w.Code, w.Body.String())
	}
	if w := do(r, http.MethodDelete, "/api/accounts", `{"username":"bob","password":"pw"}`); w.Code != http.StatusNotFound {
		t.Fatalf("second remove expected 404, got %d", w.Code)
	}
	bob := getFeed("/api/tweets?username=bob")
	if bob.Cached || api.timeline.Load() != 3 {
		t.Fatalf("bob should be refetched after removal (cached=%v calls=%d)", bob.Cached, api.timeline.Load())
	}

	if w := do(r, http.MethodGet, "/api/tweets?username=nobody", ""); w.Code != http.StatusNotFound {
		t.Fatalf("unknown handle expected 404, got %d", w.Code)
	}
}
