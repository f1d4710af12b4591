package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/fpang/instagram-relay/internal/config"
	"github.com/fpang/instagram-relay/internal/instagram"
)

const (
	testSecret      = "test-app-secret"
	testVerifyToken = "test-verify-token"
)

// fakeGraph records the last call and returns a canned response.
type fakeGraph struct {
	resp *instagram.Response
	err  error

	calls     []string
	accountID string
	mediaID   string
	mediaType instagram.MediaType
	token     string
}

func (f *fakeGraph) result() (*instagram.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.resp != nil {
		return f.resp, nil
	}
	return &instagram.Response{Status: http.StatusOK, Body: []byte(`{"data":[]}`)}, nil
}

func (f *fakeGraph) Me(_ context.Context, token string) (*instagram.Response, error) {
	f.calls = append(f.calls, "me")
	f.token = token
	return f.result()
}

func (f *fakeGraph) UserInsights(_ context.Context, accountID, token string) (*instagram.Response, error) {
	f.calls = append(f.calls, "user")
	f.accountID, f.token = accountID, token
	return f.result()
}

func (f *fakeGraph) MediaInsights(_ context.Context, mediaID string, mt instagram.MediaType, token string) (*instagram.Response, error) {
	f.calls = append(f.calls, "media")
	f.mediaID, f.mediaType, f.token = mediaID, mt, token
	return f.result()
}

func (f *fakeGraph) ListMedia(_ context.Context, accountID, token string) (*instagram.Response, error) {
	f.calls = append(f.calls, "list")
	f.accountID, f.token = accountID, token
	return f.result()
}

type fakeExchanger struct {
	short    *instagram.ShortLivedToken
	long     *instagram.LongLivedToken
	shortErr error
	longErr  error

	gotCode  string
	gotShort string
}

func (f *fakeExchanger) AuthorizeURL() string {
	return "https://www.instagram.com/oauth/authorize?client_id=app&scope=a%2Cb"
}

func (f *fakeExchanger) ExchangeCode(_ context.Context, code string) (*instagram.ShortLivedToken, error) {
	f.gotCode = code
	if f.shortErr != nil {
		return nil, f.shortErr
	}
	return f.short, nil
}

func (f *fakeExchanger) ExchangeLongLivedToken(_ context.Context, shortToken string) (*instagram.LongLivedToken, error) {
	f.gotShort = shortToken
	if f.longErr != nil {
		return nil, f.longErr
	}
	return f.long, nil
}

type fakeStore struct {
	err          error
	token, users []string
}

func (f *fakeStore) Save(_ context.Context, token, userID string) error {
	if f.err != nil {
		return f.err
	}
	f.token = append(f.token, token)
	f.users = append(f.users, userID)
	return nil
}

func testConfig() *config.Config {
	c := config.Default()
	c.Instagram = config.InstagramConfig{
		AppID:       "app",
		AppSecret:   testSecret,
		RedirectURI: "https://relay.example.com/auth/instagram/callback",
		AccessToken: "default-token",
		UserID:      "default-account",
	}
	c.Webhook.VerifyToken = testVerifyToken
	c.Webhook.RetentionCapacity = 3
	return c
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected JSON error body, got %q", rec.Body.String())
	}
	return body["error"]
}

func TestProxy_Defaults(t *testing.T) {
	g := &fakeGraph{}
	h := New(Deps{Config: testConfig(), Graph: g, OAuth: &fakeExchanger{}}).Handler()

	rec := get(t, h, "/insights/user")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if g.accountID != "default-account" || g.token != "default-token" {
		t.Errorf("expected configured defaults, got account=%q token=%q", g.accountID, g.token)
	}
	if rec.Body.String() != `{"data":[]}` {
		t.Errorf("expected upstream body unchanged, got %q", rec.Body.String())
	}

	rec = get(t, h, "/list-media?account_id=42&access_token=override")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if g.accountID != "42" || g.token != "override" {
		t.Errorf("expected query values, got account=%q token=%q", g.accountID, g.token)
	}
}

func TestProxy_MissingToken(t *testing.T) {
	cfg := testConfig()
	cfg.Instagram.AccessToken = ""
	g := &fakeGraph{}
	h := New(Deps{Config: cfg, Graph: g, OAuth: &fakeExchanger{}}).Handler()

	rec := get(t, h, "/ids")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if msg := decodeError(t, rec); msg != "access_token is required" {
		t.Errorf("unexpected error %q", msg)
	}
	if len(g.calls) != 0 {
		t.Errorf("expected no upstream call, got %v", g.calls)
	}
}

func TestProxy_MediaInsights(t *testing.T) {
	g := &fakeGraph{}
	h := New(Deps{Config: testConfig(), Graph: g, OAuth: &fakeExchanger{}}).Handler()

	rec := get(t, h, "/insights/media?media_id=m1&media_type=VIDEO")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if g.mediaID != "m1" || g.mediaType != instagram.MediaTypeVideo {
		t.Errorf("unexpected media call id=%q type=%q", g.mediaID, g.mediaType)
	}

	rec = get(t, h, "/insights/media?media_id=m1")
	if rec.Code != http.StatusOK || g.mediaType != instagram.MediaTypeImage {
		t.Errorf("expected IMAGE default, got status %d type %q", rec.Code, g.mediaType)
	}

	rec = get(t, h, "/insights/media?media_id=m1&media_type=STORY")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown media type, got %d", rec.Code)
	}

	rec = get(t, h, "/insights/media")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing media_id, got %d", rec.Code)
	}
}

func TestProxy_RelaysUpstream(t *testing.T) {
	g := &fakeGraph{resp: &instagram.Response{
		Status: http.StatusBadRequest,
		Body:   []byte(`{"error":{"message":"Invalid OAuth access token","code":190}}`),
	}}
	h := New(Deps{Config: testConfig(), Graph: g, OAuth: &fakeExchanger{}}).Handler()

	rec := get(t, h, "/ids?access_token=bad")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected upstream status 400, got %d", rec.Code)
	}
	if rec.Body.String() != string(g.resp.Body) {
		t.Errorf("expected upstream body, got %q", rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %q", ct)
	}
}

func TestProxy_TransportError(t *testing.T) {
	g := &fakeGraph{err: errors.New("dial tcp: connection refused")}
	h := New(Deps{Config: testConfig(), Graph: g, OAuth: &fakeExchanger{}}).Handler()

	rec := get(t, h, "/list-media")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	if msg := decodeError(t, rec); msg != "Instagram API unavailable" {
		t.Errorf("unexpected error %q", msg)
	}
}

func TestProxy_InsightsPrefix(t *testing.T) {
	g := &fakeGraph{}
	h := New(Deps{Config: testConfig(), Graph: g, OAuth: &fakeExchanger{}}).Handler()

	for _, path := range []string{"/insights/ids", "/insights/list-media", "/insights/insights/user", "/insights/insights/media?media_id=1"} {
		if rec := get(t, h, path); rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rec.Code)
		}
	}
	if len(g.calls) != 4 {
		t.Errorf("expected 4 upstream calls, got %v", g.calls)
	}
}

func TestOAuthCallback_NotConfigured(t *testing.T) {
	cfg := testConfig()
	cfg.Instagram.RedirectURI = ""
	ex := &fakeExchanger{}
	h := New(Deps{Config: cfg, Graph: &fakeGraph{}, OAuth: ex}).Handler()

	rec := get(t, h, "/auth/instagram/callback?code=abc")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if ex.gotCode != "" {
		t.Error("expected no exchange when unconfigured")
	}
}

func TestOAuthCallback_BadRequests(t *testing.T) {
	h := New(Deps{Config: testConfig(), Graph: &fakeGraph{}, OAuth: &fakeExchanger{}}).Handler()

	rec := get(t, h, "/auth/instagram/callback?error=access_denied&error_reason=user_denied")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for error param, got %d", rec.Code)
	}
	if msg := decodeError(t, rec); msg != "Instagram authorization error: access_denied" {
		t.Errorf("unexpected error %q", msg)
	}

	rec = get(t, h, "/auth/instagram/callback")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing code, got %d", rec.Code)
	}

	rec = get(t, h, "/auth/instagram/callback?code="+url.QueryEscape("#_"))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for code that is only a fragment, got %d", rec.Code)
	}
}

func TestOAuthCallback_Success(t *testing.T) {
	raw := `{"access_token":"IGQ-long","token_type":"bearer","expires_in":5184000}`
	ex := &fakeExchanger{
		short: &instagram.ShortLivedToken{AccessToken: "IGQ-short", UserID: "17841400000"},
		long:  &instagram.LongLivedToken{AccessToken: "IGQ-long", ExpiresIn: 5184000, Raw: json.RawMessage(raw)},
	}
	store := &fakeStore{}
	h := New(Deps{Config: testConfig(), Graph: &fakeGraph{}, OAuth: ex, Tokens: store}).Handler()

	rec := get(t, h, "/insights/auth/instagram/callback?code="+url.QueryEscape("AQBx#_"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ex.gotCode != "AQBx" {
		t.Errorf("expected #_ stripped from code, got %q", ex.gotCode)
	}
	if ex.gotShort != "IGQ-short" {
		t.Errorf("expected short token passed on, got %q", ex.gotShort)
	}
	if rec.Body.String() != raw {
		t.Errorf("expected long-lived token body, got %q", rec.Body.String())
	}
	if len(store.token) != 1 || store.token[0] != "IGQ-long" || store.users[0] != "17841400000" {
		t.Errorf("expected token and user stored, got %+v", store)
	}
}

func TestOAuthCallback_Failures(t *testing.T) {
	short := &instagram.ShortLivedToken{AccessToken: "s", UserID: "1"}
	long := &instagram.LongLivedToken{AccessToken: "l", Raw: json.RawMessage(`{"access_token":"l"}`)}

	tests := []struct {
		name   string
		ex     *fakeExchanger
		store  *fakeStore
		status int
		body   string
	}{
		{
			name:   "upstream rejects code",
			ex:     &fakeExchanger{shortErr: &instagram.UpstreamError{Op: "token exchange", Status: http.StatusBadRequest, Body: []byte(`{"error_message":"code expired"}`)}},
			status: http.StatusBadRequest,
			body:   `{"error_message":"code expired"}`,
		},
		{
			name:   "upstream rejects long-lived exchange",
			ex:     &fakeExchanger{short: short, longErr: &instagram.UpstreamError{Op: "long-lived token exchange", Status: http.StatusForbidden, Body: []byte("forbidden")}},
			status: http.StatusForbidden,
			body:   "forbidden",
		},
		{
			name:   "no access token",
			ex:     &fakeExchanger{shortErr: instagram.ErrNoAccessToken},
			status: http.StatusInternalServerError,
		},
		{
			name:   "transport failure",
			ex:     &fakeExchanger{shortErr: errors.New("connection reset")},
			status: http.StatusBadGateway,
		},
		{
			name:   "store failure",
			ex:     &fakeExchanger{short: short, long: long},
			store:  &fakeStore{err: errors.New("access denied")},
			status: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Deps{Config: testConfig(), Graph: &fakeGraph{}, OAuth: tt.ex}
			if tt.store != nil {
				d.Tokens = tt.store
			}
			rec := get(t, New(d).Handler(), "/auth/instagram/callback?code=abc")
			if rec.Code != tt.status {
				t.Errorf("expected %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
			if tt.body != "" && rec.Body.String() != tt.body {
				t.Errorf("expected body %q, got %q", tt.body, rec.Body.String())
			}
		})
	}
}
