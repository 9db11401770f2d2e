package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-tweet-feed/internal/auth"
	"github.com/tbourn/go-tweet-feed/internal/domain"
	"github.com/tbourn/go-tweet-feed/internal/services"
)

// ---------- stubs ----------

type stubAccounts struct {
	list   func(context.Context) ([]domain.Account, error)
	add    func(context.Context, string) (*domain.Account, error)
	remove func(context.Context, string) (*domain.Account, error)

	addCalls, removeCalls int
}

func (s *stubAccounts) List(ctx context.Context) ([]domain.Account, error) {
	if s.list != nil {
		return s.list(ctx)
	}
	return []domain.Account{}, nil
}

func (s *stubAccounts) Add(ctx context.Context, u string) (*domain.Account, error) {
	s.addCalls++
	if s.add != nil {
		return s.add(ctx, u)
	}
	return &domain.Account{ID: "id-1", Username: services.NormalizeHandle(u)}, nil
}

func (s *stubAccounts) Remove(ctx context.Context, u string) (*domain.Account, error) {
	s.removeCalls++
	if s.remove != nil {
		return s.remove(ctx, u)
	}
	return &domain.Account{ID: "id-1", Username: services.NormalizeHandle(u)}, nil
}

type stubFeed struct {
	tweets    func(context.Context, string) ([]domain.DisplayPost, bool, error)
	aggregate func(context.Context, []string) ([]domain.DisplayPost, bool)

	gotHandles []string
}

func (s *stubFeed) Tweets(ctx context.Context, h string) ([]domain.DisplayPost, bool, error) {
	if s.tweets != nil {
		return s.tweets(ctx, h)
	}
	return []domain.DisplayPost{}, false, nil
}

func (s *stubFeed) AggregateAll(ctx context.Context, hs []string) ([]domain.DisplayPost, bool) {
	s.gotHandles = hs
	if s.aggregate != nil {
		return s.aggregate(ctx, hs)
	}
	return []domain.DisplayPost{}, true
}

func newRouter(h *Handlers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/accounts", h.ListAccounts)
	r.POST("/accounts", h.AddAccount)
	r.DELETE("/accounts", h.RemoveAccount)
	r.GET("/tweets", h.GetTweets)
	return r
}

func doJSON(r http.Handler, method, path, body string, hdr ...string) *httptest.ResponseRecorder {
	var rd *bytes.Buffer
	if body != "" {
		rd = bytes.NewBufferString(body)
	} else {
		rd = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeErr(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var er ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
		t.Fatalf("decode error body %q: %v", w.Body.String(), err)
	}
	return er
}

// ---------- /accounts ----------

func TestListAccounts_OK_And_ETag(t *testing.T) {
	accts := &stubAccounts{list: func(context.Context) ([]domain.Account, error) {
		return []domain.Account{{ID: "1", Username: "alice"}, {ID: "2", Username: "bob"}}, nil
	}}
	r := newRouter(New(accts, &stubFeed{}, auth.NewAdmin("pw")))

	w := doJSON(r, http.MethodGet, "/accounts", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var body ListAccountsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(body.Accounts) != 2 || body.Accounts[0].Username != "alice" {
		t.Fatalf("unexpected body: %+v", body)
	}
	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("expected ETag header")
	}

	w = doJSON(r, http.MethodGet, "/accounts", "", "If-None-Match", etag)
	if w.Code != http.StatusNotModified {
		t.Fatalf("expected 304, got %d", w.Code)
	}
	w = doJSON(r, http.MethodGet, "/accounts", "", "If-None-Match", `W/"stale"`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for stale ETag, got %d", w.Code)
	}
}

func TestListAccounts_EmptyIsArray(t *testing.T) {
	r := newRouter(New(&stubAccounts{}, &stubFeed{}, auth.NewAdmin("pw")))
	w := doJSON(r, http.MethodGet, "/accounts", "")
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte(`"accounts":[]`)) {
		t.Fatalf("expected empty array, got %d %s", w.Code, w.Body.String())
	}
}

func TestListAccounts_StorageError(t *testing.T) {
	accts := &stubAccounts{list: func(context.Context) ([]domain.Account, error) {
		return nil, fmt.Errorf("read accounts: %w", services.ErrStorage)
	}}
	r := newRouter(New(accts, &stubFeed{}, auth.NewAdmin("pw")))
	w := doJSON(r, http.MethodGet, "/accounts", "")
	if w.Code != http.StatusServiceUnavailable || decodeErr(t, w).Code != ErrCodeStorage {
		t.Fatalf("expected 503 storage_unavailable, got %d %s", w.Code, w.Body.String())
	}
}

func TestAddAccount_Success(t *testing.T) {
	accts := &stubAccounts{add: func(_ context.Context, u string) (*domain.Account, error) {
		return &domain.Account{ID: "id-9", Username: services.NormalizeHandle(u), CreatedAt: time.Unix(1, 0).UTC()}, nil
	}}
	r := newRouter(New(accts, &stubFeed{}, auth.NewAdmin("pw")))

	w := doJSON(r, http.MethodPost, "/accounts", `{"username":"@alice","password":"pw"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var body AddAccountResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body.Username != "alice" || body.Account.ID != "id-9" || body.Message == "" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestAddAccount_RequestErrors(t *testing.T) {
	cases := []struct {
		name   string
		admin  *auth.Admin
		body   string
		status int
		msg    string
	}{
		{"bad json", auth.NewAdmin("pw"), `{bad`, http.StatusBadRequest, "invalid JSON body"},
		{"missing username", auth.NewAdmin("pw"), `{"password":"pw"}`, http.StatusBadRequest, "Username and password are required"},
		{"missing password", auth.NewAdmin("pw"), `{"username":"a"}`, http.StatusBadRequest, "Username and password are required"},
		{"wrong password", auth.NewAdmin("pw"), `{"username":"a","password":"nope"}`, http.StatusUnauthorized, "Invalid admin password"},
		{"not configured", auth.NewAdmin(""), `{"username":"a","password":"pw"}`, http.StatusInternalServerError, "Admin password not configured"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			accts := &stubAccounts{}
			r := newRouter(New(accts, &stubFeed{}, tc.admin))
			w := doJSON(r, http.MethodPost, "/accounts", tc.body)
			if w.Code != tc.status {
				t.Fatalf("status=%d want %d", w.Code, tc.status)
			}
			if er := decodeErr(t, w); er.Error != tc.msg {
				t.Fatalf("error=%q want %q", er.Error, tc.msg)
			}
			if accts.addCalls != 0 {
				t.Fatalf("service must not be called")
			}
		})
	}
}

func TestAddAccount_ServiceErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("account @alice: %w", services.ErrDuplicate), http.StatusConflict},
		{fmt.Errorf("invalid username: %w", services.ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("write accounts: %w", services.ErrStorage), http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		accts := &stubAccounts{add: func(context.Context, string) (*domain.Account, error) { return nil, tc.err }}
		r := newRouter(New(accts, &stubFeed{}, auth.NewAdmin("pw")))
		w := doJSON(r, http.MethodPost, "/accounts", `{"username":"alice","password":"pw"}`)
		if w.Code != tc.status {
			t.Fatalf("%v: status=%d want %d", tc.err, w.Code, tc.status)
		}
	}
}

func TestRemoveAccount(t *testing.T) {
	accts := &stubAccounts{}
	r := newRouter(New(accts, &stubFeed{}, auth.NewAdmin("pw")))

	w := doJSON(r, http.MethodDelete, "/accounts", `{"username":" @bob ","password":"pw"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var body RemoveAccountResponse
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body.Username != "bob" {
		t.Fatalf("unexpected body: %+v", body)
	}

	accts.remove = func(_ context.Context, u string) (*domain.Account, error) {
		return nil, fmt.Errorf("account @%s: %w", u, services.ErrNotFound)
	}
	w = doJSON(r, http.MethodDelete, "/accounts", `{"username":"ghost","password":"pw"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}

	w = doJSON(r, http.MethodDelete, "/accounts", `{"username":"bob","password":"bad"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

// ---------- /tweets ----------

func TestGetTweets_SingleHandle(t *testing.T) {
	feed := &stubFeed{tweets: func(_ context.Context, h string) ([]domain.DisplayPost, bool, error) {
		return []domain.DisplayPost{{Post: domain.Post{ID: "1", Text: "hi"}}}, true, nil
	}}
	r := newRouter(New(&stubAccounts{}, feed, auth.NewAdmin("pw")))

	w := doJSON(r, http.MethodGet, "/tweets?username=%40alice", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var body TweetsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if !body.Cached || body.Username != "alice" || len(body.Tweets) != 1 || body.Tweets[0].Text != "hi" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestGetTweets_SingleHandle_Errors(t *testing.T) {
	cases := []struct {
		query  string
		err    error
		status int
		code   string
	}{
		{"/tweets?username=", nil, http.StatusBadRequest, ErrCodeBadRequest},
		{"/tweets?username=ghost", fmt.Errorf("user @ghost: %w", services.ErrNotFound), http.StatusNotFound, ErrCodeNotFound},
		{"/tweets?username=down", fmt.Errorf("429: %w", services.ErrUpstream), http.StatusBadGateway, ErrCodeUpstream},
	}
	for _, tc := range cases {
		feed := &stubFeed{tweets: func(context.Context, string) ([]domain.DisplayPost, bool, error) {
			return nil, false, tc.err
		}}
		r := newRouter(New(&stubAccounts{}, feed, auth.NewAdmin("pw")))
		w := doJSON(r, http.MethodGet, tc.query, "")
		if w.Code != tc.status || decodeErr(t, w).Code != tc.code {
			t.Fatalf("%s: got %d %s", tc.query, w.Code, w.Body.String())
		}
	}
}

func TestGetTweets_Aggregate(t *testing.T) {
	accts := &stubAccounts{list: func(context.Context) ([]domain.Account, error) {
		return []domain.Account{{Username: "alice"}, {Username: "bob"}}, nil
	}}
	feed := &stubFeed{aggregate: func(_ context.Context, hs []string) ([]domain.DisplayPost, bool) {
		return []domain.DisplayPost{{Post: domain.Post{ID: "b"}}, {Post: domain.Post{ID: "a"}}}, false
	}}
	r := newRouter(New(accts, feed, auth.NewAdmin("pw")))

	w := doJSON(r, http.MethodGet, "/tweets", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var body TweetsResponse
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body.Cached || len(body.Tweets) != 2 || body.Username != "" {
		t.Fatalf("unexpected body: %+v", body)
	}
	if len(feed.gotHandles) != 2 || feed.gotHandles[0] != "alice" || feed.gotHandles[1] != "bob" {
		t.Fatalf("handles passed to aggregator: %v", feed.gotHandles)
	}
}

func TestGetTweets_Aggregate_NoAccounts(t *testing.T) {
	r := newRouter(New(&stubAccounts{}, &stubFeed{}, auth.NewAdmin("pw")))
	w := doJSON(r, http.MethodGet, "/tweets", "")
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte(`"tweets":[]`)) {
		t.Fatalf("expected empty tweets array, got %d %s", w.Code, w.Body.String())
	}
}

func TestGetTweets_Aggregate_DirectoryFailure(t *testing.T) {
	accts := &stubAccounts{list: func(context.Context) ([]domain.Account, error) {
		return nil, services.ErrStorage
	}}
	r := newRouter(New(accts, &stubFeed{}, auth.NewAdmin("pw")))
	if w := doJSON(r, http.MethodGet, "/tweets", ""); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}
