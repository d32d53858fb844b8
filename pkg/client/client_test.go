package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"resqnet-web/pkg/models"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL + "/api")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestBearerIsPerClient(t *testing.T) {
	var seen []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, []any{})
	})
	ctx := context.Background()

	c.SetBearer("tok-1")
	other := c.Clone()
	if other.HasBearer() {
		t.Fatalf("clone inherited the bearer")
	}
	_, _ = c.ListDisasters(ctx)
	_, _ = other.ListDisasters(ctx)
	c.ClearBearer()
	_, _ = c.ListDisasters(ctx)

	want := []string{"Bearer tok-1", "", ""}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("call %d Authorization=%q, want %q", i, seen[i], want[i])
		}
	}
}

func TestRequestIDPropagation(t *testing.T) {
	var got string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-Request-ID")
		writeJSON(w, http.StatusOK, []any{})
	})

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "host/abc-000001")
	_, _ = c.ListNotifications(ctx)
	if got != "host/abc-000001" {
		t.Fatalf("X-Request-ID=%q, want inbound id", got)
	}

	_, _ = c.ListNotifications(context.Background())
	if _, err := uuid.Parse(got); err != nil {
		t.Fatalf("generated X-Request-ID %q is not a UUID", got)
	}
}

func TestCreateSendsIdempotencyKey(t *testing.T) {
	var key, path string
	var body models.ResourceRequestInput
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		key = r.Header.Get("Idempotency-Key")
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&body)
		writeJSON(w, http.StatusCreated, map[string]any{
			"id": 7, "disasterId": body.DisasterID, "category": body.Category,
			"requestedQuantity": body.RequestedQuantity, "status": "PENDING",
			"createdAt": "2025-03-10T09:15:30.123456",
		})
	})

	created, err := c.CreateRequest(context.Background(), models.ResourceRequestInput{DisasterID: 3, Category: " water ", RequestedQuantity: 5})
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	if path != "/api/requests" || body.Category != "water" {
		t.Fatalf("path=%q body=%+v", path, body)
	}
	if _, err := ulid.Parse(key); err != nil {
		t.Fatalf("Idempotency-Key %q is not a ULID: %v", key, err)
	}
	if created.ID != 7 || created.Status != models.RequestPending {
		t.Fatalf("created=%+v", created)
	}
	if created.CreatedAt.Year() != 2025 || created.CreatedAt.Second() != 30 {
		t.Fatalf("zone-less timestamp not parsed: %v", created.CreatedAt)
	}
}

func TestValidationHappensBeforeSubmission(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusOK)
	})
	ctx := context.Background()

	_, err := c.CreateContribution(ctx, models.ContributionInput{RequestID: 1, Category: "toys", ContributedQuantity: 0})
	var verrs models.ValidationErrors
	if !errors.As(err, &verrs) || !errors.Is(err, ErrValidation) {
		t.Fatalf("err=%v, want ValidationErrors", err)
	}
	if len(verrs) != 2 {
		t.Fatalf("want quantity and category errors, got %v", verrs)
	}
	if _, err := c.CreateDisaster(ctx, models.DisasterInput{Type: "Flood", Severity: "EXTREME", Description: "x"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("bad severity err=%v", err)
	}
	if _, err := c.Register(ctx, models.UserRegisterRequest{Name: "a", Email: "a@b.c", Password: "p", Role: models.RoleAdmin}); !errors.Is(err, ErrValidation) {
		t.Fatalf("admin self-registration err=%v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 0 {
		t.Fatalf("%d requests reached the server", n)
	}
}

func TestErrorTaxonomy(t *testing.T) {
	cases := []struct {
		name     string
		status   int
		body     string
		sentinel error
		message  string
	}{
		{"unauthorized plain text", 401, "Invalid email or password", ErrUnauthenticated, "Invalid email or password"},
		{"forbidden json", 403, `{"error":"Access denied: nope","status":"FORBIDDEN"}`, ErrForbidden, "Access denied: nope"},
		{"not found", 404, `{"error":"Disaster not found"}`, ErrNotFound, "Disaster not found"},
		{"bean validation map", 400, `{"requestedQuantity":"Requested quantity must be at least 1"}`, ErrValidation, "Requested quantity must be at least 1"},
		{"unprocessable", 422, `{"message":"bad"}`, ErrValidation, "bad"},
		{"conflict", 409, "", ErrValidation, ""},
		{"server", 500, `{"error":"Unexpected error: boom"}`, ErrServer, "Unexpected error: boom"},
		{"bad gateway", 502, "<html>", ErrServer, "<html>"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			})
			_, err := c.GetDisaster(context.Background(), 12)
			if !errors.Is(err, tc.sentinel) {
				t.Fatalf("err=%v, want %v", err, tc.sentinel)
			}
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("err is not *APIError: %T", err)
			}
			if apiErr.StatusCode != tc.status || apiErr.Message != tc.message {
				t.Fatalf("apiErr=%+v", apiErr)
			}
			if apiErr.Endpoint != "/disasters/{id}" {
				t.Fatalf("endpoint label=%q", apiErr.Endpoint)
			}
			for _, other := range []error{ErrTransport, ErrUnauthenticated, ErrForbidden, ErrValidation, ErrNotFound, ErrServer} {
				if other != tc.sentinel && errors.Is(err, other) {
					t.Fatalf("err also matches %v", other)
				}
			}
		})
	}
}

func TestValidationResponseCarriesFields(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"type":     "Disaster type is required",
			"severity": "Severity is required",
		})
	})
	_, err := c.CreateDisaster(context.Background(), models.DisasterInput{Type: "Fire", Severity: "LOW", Description: "d"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || len(apiErr.Fields) != 2 || apiErr.Fields[0].Field != "severity" {
		t.Fatalf("fields=%+v err=%v", apiErr, err)
	}
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := New(url, WithTimeout(time.Second))
	_, err := c.ListDisasters(context.Background())
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("err=%v, want ErrTransport", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.ListDisasters(ctx)
	if !errors.Is(err, ErrTransport) || !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled call err=%v", err)
	}
}

func TestListNotFoundIsEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	list, err := c.ListMyRequests(context.Background())
	if err != nil || list == nil || len(list) != 0 {
		t.Fatalf("list=%v err=%v, want empty non-nil", list, err)
	}
}

func TestEndpointsAndMethods(t *testing.T) {
	type call struct{ method, path string }
	var got []call
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = append(got, call{r.Method, r.URL.EscapedPath()})
		switch r.URL.Path {
		case "/api/admin/summary":
			writeJSON(w, http.StatusOK, models.Summary{TotalUsers: 3, RequestStatusCounts: map[string]int64{"PENDING": 2}})
		case "/api/auth/login":
			writeJSON(w, http.StatusOK, models.UserLoginResponse{Token: "t", Role: models.RoleAdmin})
		default:
			if r.Method == http.MethodGet {
				writeJSON(w, http.StatusOK, []any{})
				return
			}
			w.WriteHeader(http.StatusNoContent)
		}
	})
	ctx := context.Background()

	if _, err := c.Login(ctx, models.UserLoginRequest{Email: "a@b.c", Password: "pw"}); err != nil {
		t.Fatal(err)
	}
	_, _ = c.ListContributionsByResponder(ctx, "r@x.io")
	_, _ = c.ListContributionsByRequest(ctx, 9)
	_, _ = c.ListUnreadNotifications(ctx)
	_ = c.MarkNotificationRead(ctx, 4)
	_ = c.DeleteNotification(ctx, 4)
	_ = c.AdminDelete(ctx, AdminContributions, 5)
	sum, err := c.AdminSummary(ctx)
	if err != nil || sum.TotalUsers != 3 || sum.RequestStatusCounts["PENDING"] != 2 {
		t.Fatalf("summary=%+v err=%v", sum, err)
	}
	if _, err := c.AdminList(ctx, AdminUsers); err != nil {
		t.Fatal(err)
	}

	want := []call{
		{http.MethodPost, "/api/auth/login"},
		{http.MethodGet, "/api/contributions/responder/r@x.io"},
		{http.MethodGet, "/api/contributions/request/9"},
		{http.MethodGet, "/api/notifications/unread"},
		{http.MethodPut, "/api/notifications/4/read"},
		{http.MethodDelete, "/api/notifications/4"},
		{http.MethodDelete, "/api/admin/contributions/5"},
		{http.MethodGet, "/api/admin/summary"},
		{http.MethodGet, "/api/admin/users"},
	}
	if len(got) != len(want) {
		t.Fatalf("calls=%v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("call %d = %v, want %v", i, got[i], want[i])
		}
	}

	if err := c.AdminDelete(ctx, "bogus", 1); !errors.Is(err, ErrValidation) {
		t.Fatalf("unknown kind err=%v", err)
	}
}

func TestCanonicalEndpoint(t *testing.T) {
	cases := map[string]string{
		"/disasters":                        "/disasters",
		"/disasters/42":                     "/disasters/{id}",
		"/notifications/42/read":            "/notifications/{id}/read",
		"/contributions/responder/a%40b.io": "/contributions/responder/{email}",
		"/requests?status=PENDING":          "/requests",
	}
	for in, want := range cases {
		if got := canonicalEndpoint(in); got != want {
			t.Fatalf("canonicalEndpoint(%q)=%q want %q", in, got, want)
		}
	}
}

func TestMessage(t *testing.T) {
	if got := Message(&APIError{StatusCode: 400, Message: "Category is required"}); got != "Category is required" {
		t.Fatalf("Message=%q", got)
	}
	if got := Message(&TransportError{Err: errors.New("dial")}); got == "" {
		t.Fatalf("empty transport message")
	}
}

func TestUnencodableBodyIsValidation(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	})
	err := c.do(context.Background(), http.MethodPost, "/disasters", map[string]float64{"latitude": math.NaN()}, nil)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err=%v, want ErrValidation", err)
	}
	for _, other := range []error{ErrTransport, ErrUnauthenticated, ErrForbidden, ErrNotFound, ErrServer} {
		if errors.Is(err, other) {
			t.Fatalf("err also matches %v", other)
		}
	}
	if Message(err) == "Something went wrong." {
		t.Fatalf("generic message for %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 0 {
		t.Fatalf("%d requests reached the server", n)
	}
}

func TestBadBaseURLIsTransport(t *testing.T) {
	c := New("http://bad host")
	_, err := c.ListDisasters(context.Background())
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("err=%v, want ErrTransport", err)
	}
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	s := strings.Repeat("洪", 5) // 3 bytes each
	for n := 1; n < len(s); n++ {
		got := truncate(s, n)
		if !utf8.ValidString(got) {
			t.Fatalf("truncate(%d)=%q is not valid UTF-8", n, got)
		}
	}
	if got := truncate(s, 7); got != "洪洪…" {
		t.Fatalf("truncate(7)=%q", got)
	}
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("truncate=%q", got)
	}
}

func TestListContributionsForRequests(t *testing.T) {
	var inFlight, peak atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		switch r.URL.Path {
		case "/api/contributions/request/3":
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "boom"})
		case "/api/contributions/request/1":
			writeJSON(w, http.StatusOK, []models.Contribution{{ID: 10, RequestID: 1}, {ID: 11, RequestID: 1}})
		default:
			writeJSON(w, http.StatusOK, []models.Contribution{{ID: 20, RequestID: 2}})
		}
	})

	var requests []models.ResourceRequest
	for i := int64(1); i <= 8; i++ {
		requests = append(requests, models.ResourceRequest{ID: i})
	}
	got, err := c.ListContributionsForRequests(context.Background(), requests)
	if err != nil {
		t.Fatal(err)
	}
	// 请求3失败被跳过，其余按请求顺序拼接
	if len(got) != 2+6 || got[0].ID != 10 || got[1].ID != 11 || got[2].RequestID != 2 {
		t.Fatalf("got %+v", got)
	}
	if p := peak.Load(); p > FanOutLimit {
		t.Fatalf("peak concurrency %d exceeds %d", p, FanOutLimit)
	}
}

func TestListContributionsForRequestsAbortsOnUnauthenticated(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/contributions/request/2" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			return
		}
		writeJSON(w, http.StatusOK, []models.Contribution{})
	})
	requests := []models.ResourceRequest{{ID: 1}, {ID: 2}, {ID: 3}}
	if _, err := c.ListContributionsForRequests(context.Background(), requests); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("err=%v, want ErrUnauthenticated", err)
	}
}
