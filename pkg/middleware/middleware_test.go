package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"

	"resqnet-web/pkg/client"
	"resqnet-web/pkg/config"
	"resqnet-web/pkg/models"
	"resqnet-web/pkg/session"
	"resqnet-web/pkg/store"
	"resqnet-web/pkg/utils"
)

const cookieName = "resqnet_session"

func mint(t *testing.T, role string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "user@resqnet.test",
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	s, err := tok.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

// withSession stores credential under a fresh sid and returns the cookie.
func withSession(t *testing.T, st store.Store, credential string) *http.Cookie {
	t.Helper()
	sid, err := utils.GenerateSessionID()
	if err != nil {
		t.Fatal(err)
	}
	if err := st.Put(context.Background(), sid, credential, time.Hour); err != nil {
		t.Fatal(err)
	}
	return &http.Cookie{Name: cookieName, Value: sid}
}

func sessionChain(st store.Store, h http.Handler) http.Handler {
	api := client.New("http://api.invalid")
	return SessionMiddleware(st, api, session.CookieOptions{Name: cookieName, TTL: time.Hour})(h)
}

func TestSessionMiddlewareRestoresSession(t *testing.T) {
	st := store.NewMemoryStore()
	cookie := withSession(t, st, mint(t, "ROLE_RESPONDER"))

	var got session.State
	var bearer bool
	h := sessionChain(st, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, ok := PageFromContext(r.Context())
		if !ok {
			t.Fatal("no page in context")
		}
		got = page.Session.State()
		bearer = page.API.HasBearer()
	}))

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(cookie)
	h.ServeHTTP(httptest.NewRecorder(), req)

	if !got.Authenticated || got.Role() != models.RoleResponder || got.Status != session.StatusReady {
		t.Fatalf("state=%+v", got)
	}
	if !bearer {
		t.Fatal("credential not attached to the page client")
	}
}

func TestSessionMiddlewareClearsGarbageCredentialSilently(t *testing.T) {
	st := store.NewMemoryStore()
	cookie := withSession(t, st, "not-a-jwt")

	h := sessionChain(st, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, _ := PageFromContext(r.Context())
		if page.Session.IsAuthenticated() {
			t.Fatal("garbage credential authenticated")
		}
		if page.ReloadTarget() != "" {
			t.Fatalf("restore must not redirect, got %q", page.ReloadTarget())
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	if _, err := st.Get(context.Background(), cookie.Value); err != store.ErrNotFound {
		t.Fatalf("stored credential not cleared: %v", err)
	}
	if c := rec.Result().Cookies(); len(c) != 1 || c[0].MaxAge != -1 {
		t.Fatalf("cookie not expired: %+v", c)
	}
}

func TestSessionsDoNotShareBearer(t *testing.T) {
	st := store.NewMemoryStore()
	admin := withSession(t, st, mint(t, "ADMIN"))

	var bearers []bool
	h := sessionChain(st, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, _ := PageFromContext(r.Context())
		bearers = append(bearers, page.API.HasBearer())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(admin)
	h.ServeHTTP(httptest.NewRecorder(), req)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if len(bearers) != 2 || !bearers[0] || bearers[1] {
		t.Fatalf("bearers=%v", bearers)
	}
}

func TestRequireRoute(t *testing.T) {
	st := store.NewMemoryStore()
	reporter := withSession(t, st, mint(t, "REPORTER"))
	admin := withSession(t, st, mint(t, "ADMIN"))

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

	cases := []struct {
		name     string
		method   string
		cookie   *http.Cookie
		roles    []models.Role
		status   int
		location string
	}{
		{"anonymous page", http.MethodGet, nil, nil, http.StatusFound, "/login"},
		{"anonymous action", http.MethodPost, nil, nil, http.StatusUnauthorized, ""},
		{"any authenticated", http.MethodGet, reporter, nil, http.StatusNoContent, ""},
		{"wrong role page", http.MethodGet, reporter, []models.Role{models.RoleAdmin}, http.StatusFound, "/dashboard"},
		{"wrong role action", http.MethodDelete, reporter, []models.Role{models.RoleAdmin}, http.StatusForbidden, ""},
		{"allowed role", http.MethodGet, admin, []models.Role{models.RoleAdmin}, http.StatusNoContent, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := sessionChain(st, RequireRoute(tc.roles...)(ok))
			req := httptest.NewRequest(tc.method, "/admin/users", nil)
			if tc.cookie != nil {
				req.AddCookie(tc.cookie)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tc.status {
				t.Fatalf("status=%d want %d", rec.Code, tc.status)
			}
			if tc.location != "" && rec.Header().Get("Location") != tc.location {
				t.Fatalf("Location=%q want %q", rec.Header().Get("Location"), tc.location)
			}
		})
	}
}

func TestRequireRouteWithoutSessionMiddlewareRedirects(t *testing.T) {
	h := RequireRoute()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler reached without a session")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/login" {
		t.Fatalf("status=%d location=%q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestRateLimiter(t *testing.T) {
	l := NewIPRateLimiter(2)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	if !l.Allow("1.1.1.1") || !l.Allow("1.1.1.1") {
		t.Fatal("burst rejected")
	}
	if l.Allow("1.1.1.1") {
		t.Fatal("third request in the same instant allowed")
	}
	if !l.Allow("2.2.2.2") {
		t.Fatal("limits leaked across IPs")
	}

	now = now.Add(30 * time.Second)
	if !l.Allow("1.1.1.1") {
		t.Fatal("token not refilled after 30s")
	}

	now = now.Add(time.Hour)
	if n := l.Sweep(); n != 2 {
		t.Fatalf("swept %d buckets, want 2", n)
	}
}

func TestRateLimitMiddlewareReturns429(t *testing.T) {
	h := NewIPRateLimiter(1).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}
	if rec := do(); rec.Code != http.StatusOK {
		t.Fatalf("first status=%d", rec.Code)
	}
	rec := do()
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second status=%d", rec.Code)
	}
	var body utils.APIResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Error == nil || body.Error.Code != utils.CodeRateLimited {
		t.Fatalf("body=%+v", body)
	}
}

func TestRateLimitIgnoresForwardedFor(t *testing.T) {
	h := PeerAddr(middleware.RealIP(NewIPRateLimiter(1).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))))
	allowed := 0
	for i := 0; i < 20; i++ {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "203.0.113.9:40000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.0.%d", i))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code == http.StatusOK {
			allowed++
		}
		if i == 1 && rec.Code != http.StatusTooManyRequests {
			t.Fatalf("second attempt status=%d", rec.Code)
		}
	}
	if allowed != 1 {
		t.Fatalf("allowed %d of 20 with rotating X-Forwarded-For", allowed)
	}
}

func TestPeerIPWithoutPeerAddr(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "[2001:db8::1]:443"
	req.Header.Set("X-Forwarded-For", "10.9.9.9")
	if got := peerIP(req); got != "2001:db8::1" {
		t.Fatalf("peerIP=%q", got)
	}
}

func TestContentTypeJSON(t *testing.T) {
	h := ContentTypeJSON(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	cases := []struct {
		contentType string
		body        string
		want        int
	}{
		{"application/json; charset=utf-8", `{}`, http.StatusOK},
		{"text/plain", `x`, http.StatusBadRequest},
		{"", "", http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/disasters", strings.NewReader(tc.body))
		if tc.contentType != "" {
			req.Header.Set("Content-Type", tc.contentType)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Fatalf("%q: status=%d want %d", tc.contentType, rec.Code, tc.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	var path string
	h := Normalize()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { path = r.URL.Path }))
	for in, want := range map[string]string{"/dashboard/": "/dashboard", "/": "/", "/admin/users": "/admin/users"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, in, nil))
		if path != want {
			t.Fatalf("%q normalized to %q want %q", in, path, want)
		}
	}
}

func TestIsOriginAllowed(t *testing.T) {
	allowed := []string{"https://resqnet.example.org", "https://preview-*"}
	cases := map[string]bool{
		"https://resqnet.example.org": true,
		"https://preview-42.vercel":   true,
		"https://evil.example":        false,
		"":                            false,
	}
	for origin, want := range cases {
		if got := isOriginAllowed(origin, allowed); got != want {
			t.Fatalf("%q: got %v want %v", origin, got, want)
		}
	}
}

func TestRecoveryWritesEnvelope(t *testing.T) {
	cfg := &config.Config{Environment: "production"}
	h := Recovery(cfg)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "boom") {
		t.Fatal("panic value leaked in production")
	}
}
