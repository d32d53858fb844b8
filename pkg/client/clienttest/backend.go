// Package clienttest provides an in-process ResQNet API for tests.
package clienttest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"resqnet-web/pkg/models"
)

// Password is the password of every seeded account.
const Password = "relief"

// Seeded accounts.
const (
	ReporterEmail  = "reporter@resqnet.test"
	ResponderEmail = "responder@resqnet.test"
	AdminEmail     = "admin@resqnet.test"
)

// Mint signs claims into a credential. The signature is never checked
// client-side, so any key works.
func Mint(t testing.TB, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("clienttest"))
	if err != nil {
		t.Fatalf("mint credential: %v", err)
	}
	return s
}

// Backend is a small stateful fake of the ResQNet REST API.
type Backend struct {
	Server *httptest.Server

	mu            sync.Mutex
	users         []models.User
	disasters     []models.Disaster
	requests      []models.ResourceRequest
	contributions []models.Contribution
	notifications []models.Notification
	failFor       map[int64]bool
	revoked       bool
	calls         map[string]int
	nextID        int64
}

// NewBackend starts a seeded backend and stops it when the test ends.
func NewBackend(t testing.TB) *Backend {
	t.Helper()
	lat, lon := 12.9716, 77.5946
	created := models.NewTimestamp(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	b := &Backend{
		users: []models.User{
			{ID: 1, Name: "Rita Reporter", Email: ReporterEmail, Role: models.RoleReporter, CreatedAt: created},
			{ID: 2, Name: "Raj Responder", Email: ResponderEmail, Role: models.RoleResponder, CreatedAt: created},
			{ID: 3, Name: "Ada Admin", Email: AdminEmail, Role: models.RoleAdmin, CreatedAt: created},
		},
		disasters: []models.Disaster{
			{ID: 1, Type: "Flood", Severity: models.SeverityHigh, Description: "River overflow", Latitude: lat, Longitude: lon,
				ReporterEmail: ReporterEmail, ReporterName: "Rita Reporter", CreatedAt: created},
			{ID: 2, Type: "Fire", Severity: models.SeverityLow, Description: "Brush fire", Latitude: 13.1, Longitude: 77.2,
				ReporterEmail: ReporterEmail, CreatedAt: created},
		},
		requests: []models.ResourceRequest{
			{ID: 10, DisasterID: 1, Category: "water", RequestedQuantity: 10, FulfilledQuantity: 4, Status: models.RequestPending,
				ReporterEmail: ReporterEmail, CreatedAt: created},
			{ID: 11, DisasterID: 1, Category: "food", RequestedQuantity: 5, FulfilledQuantity: 5, Status: models.RequestFulfilled,
				ReporterEmail: ReporterEmail, CreatedAt: created},
		},
		contributions: []models.Contribution{
			{ID: 100, RequestID: 10, Category: "water", ContributedQuantity: 4, Latitude: &lat, Longitude: &lon,
				ResponderEmail: ResponderEmail, ResponderName: "Raj Responder", CreatedAt: created, UpdatedAt: created},
			{ID: 101, RequestID: 11, Category: "food", ContributedQuantity: 5, Latitude: &lat, Longitude: &lon,
				ResponderEmail: ResponderEmail, ResponderName: "Raj Responder", CreatedAt: created, UpdatedAt: created},
		},
		notifications: []models.Notification{
			{ID: 1, Type: "CONTRIBUTION", Message: "Raj contributed 4 water", Deletable: true, CreatedAt: created},
			{ID: 2, Type: "SYSTEM", Message: "Welcome to ResQNet", Read: true, CreatedAt: created},
		},
		failFor: map[int64]bool{},
		calls:   map[string]int{},
		nextID:  1000,
	}
	b.Server = httptest.NewServer(b.routes())
	t.Cleanup(b.Server.Close)
	return b
}

// URL is the API root to hand to client.New.
func (b *Backend) URL() string { return b.Server.URL + "/api" }

// Revoke makes every authenticated call answer 401, as if the credential
// had been revoked server side.
func (b *Backend) Revoke() {
	b.mu.Lock()
	b.revoked = true
	b.mu.Unlock()
}

// FailContributionsFor makes GET /contributions/request/{id} answer 500.
func (b *Backend) FailContributionsFor(requestID int64) {
	b.mu.Lock()
	b.failFor[requestID] = true
	b.mu.Unlock()
}

// Calls returns how often "METHOD /path-pattern" was hit.
func (b *Backend) Calls(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[key]
}

// Notifications returns a copy of the stored notifications.
func (b *Backend) Notifications() []models.Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.Notification(nil), b.notifications...)
}

// Disasters returns a copy of the stored disasters.
func (b *Backend) Disasters() []models.Disaster {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.Disaster(nil), b.disasters...)
}

// Users returns a copy of the stored users.
func (b *Backend) Users() []models.User {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.User(nil), b.users...)
}

type principal struct {
	email string
	role  models.Role
}

type ctxKey struct{}

func contextWith(r *http.Request, p principal) context.Context {
	return context.WithValue(r.Context(), ctxKey{}, p)
}

func principalOf(r *http.Request) principal {
	p, _ := r.Context().Value(ctxKey{}).(principal)
	return p
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (b *Backend) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req)
			if rc := chi.RouteContext(req.Context()); rc != nil {
				b.mu.Lock()
				b.calls[req.Method+" "+strings.TrimPrefix(rc.RoutePattern(), "/api")]++
				b.mu.Unlock()
			}
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", b.login)
		r.Post("/auth/register", b.register)

		r.Group(func(r chi.Router) {
			r.Use(b.authenticate)

			r.Get("/disasters", b.listDisasters)
			r.Get("/disasters/{id}", b.getDisaster)
			r.Post("/disasters", b.createDisaster)

			r.With(b.roles(models.RoleResponder, models.RoleAdmin)).Get("/requests", b.listRequests)
			r.Get("/requests/my", b.listMyRequests)
			r.Post("/requests", b.createRequest)

			r.Get("/contributions", b.listContributions)
			r.Get("/contributions/request/{id}", b.contributionsByRequest)
			r.Get("/contributions/responder/{email}", b.contributionsByResponder)
			r.Post("/contributions", b.createContribution)

			r.Get("/notifications", b.listNotifications)
			r.Get("/notifications/unread", b.listUnread)
			r.Put("/notifications/{id}/read", b.markRead)
			r.Delete("/notifications/{id}", b.deleteNotification)

			r.Route("/admin", func(r chi.Router) {
				r.Use(b.roles(models.RoleAdmin))
				r.Get("/summary", b.summary)
				r.Get("/{kind}", b.adminList)
				r.Delete("/{kind}/{id}", b.adminDelete)
			})
		})
	})
	return r
}

func (b *Backend) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		b.mu.Lock()
		revoked := b.revoked
		b.mu.Unlock()
		if !ok || revoked {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			return
		}
		claims := jwt.MapClaims{}
		if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid token"})
			return
		}
		sub, _ := claims.GetSubject()
		roleClaim, _ := claims["role"].(string)
		role, _ := models.ParseRole(roleClaim)
		p := principal{email: sub, role: role}
		next.ServeHTTP(w, r.WithContext(contextWith(r, p)))
	})
}

func (b *Backend) roles(allowed ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !principalOf(r).role.In(allowed) {
				writeJSON(w, http.StatusForbidden, map[string]string{"error": "Access Denied"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (b *Backend) login(w http.ResponseWriter, r *http.Request) {
	var req models.UserLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "malformed body"})
		return
	}
	b.mu.Lock()
	var user *models.User
	for i := range b.users {
		if b.users[i].Email == req.Email {
			user = &b.users[i]
		}
	}
	b.mu.Unlock()
	if user == nil || req.Password != Password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Bad credentials"})
		return
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  user.Email,
		"role": "ROLE_" + string(user.Role),
		"iat":  time.Now().Unix(),
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("clienttest"))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, models.UserLoginResponse{Token: token, Role: user.Role})
}

func (b *Backend) register(w http.ResponseWriter, r *http.Request) {
	var req models.UserRegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "malformed body"})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, u := range b.users {
		if u.Email == req.Email {
			writeJSON(w, http.StatusBadRequest, map[string]string{"email": "Email already registered"})
			return
		}
	}
	b.nextID++
	u := models.User{ID: b.nextID, Name: req.Name, Email: req.Email, Role: req.Role, CreatedAt: models.NewTimestamp(time.Now())}
	b.users = append(b.users, u)
	writeJSON(w, http.StatusCreated, u)
}

func (b *Backend) listDisasters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, b.Disasters())
}

func (b *Backend) getDisaster(w http.ResponseWriter, r *http.Request) {
	id := urlID(r)
	for _, d := range b.Disasters() {
		if d.ID == id {
			writeJSON(w, http.StatusOK, d)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "Disaster not found"})
}

func (b *Backend) createDisaster(w http.ResponseWriter, r *http.Request) {
	var in models.DisasterInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "malformed body"})
		return
	}
	p := principalOf(r)
	b.mu.Lock()
	b.nextID++
	d := models.Disaster{ID: b.nextID, Type: in.Type, Severity: in.Severity, Description: in.Description,
		Latitude: in.Latitude, Longitude: in.Longitude, ReporterEmail: p.email, CreatedAt: models.NewTimestamp(time.Now())}
	b.disasters = append(b.disasters, d)
	b.mu.Unlock()
	writeJSON(w, http.StatusCreated, d)
}

func (b *Backend) listRequests(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	out := append([]models.ResourceRequest(nil), b.requests...)
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) listMyRequests(w http.ResponseWriter, r *http.Request) {
	p := principalOf(r)
	b.mu.Lock()
	out := []models.ResourceRequest{}
	for _, req := range b.requests {
		if req.ReporterEmail == p.email {
			out = append(out, req)
		}
	}
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) createRequest(w http.ResponseWriter, r *http.Request) {
	var in models.ResourceRequestInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "malformed body"})
		return
	}
	p := principalOf(r)
	b.mu.Lock()
	b.nextID++
	req := models.ResourceRequest{ID: b.nextID, DisasterID: in.DisasterID, Category: in.Category,
		RequestedQuantity: in.RequestedQuantity, Status: models.RequestPending, ReporterEmail: p.email,
		CreatedAt: models.NewTimestamp(time.Now())}
	b.requests = append(b.requests, req)
	b.mu.Unlock()
	writeJSON(w, http.StatusCreated, req)
}

func (b *Backend) listContributions(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	out := append([]models.Contribution(nil), b.contributions...)
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) contributionsByRequest(w http.ResponseWriter, r *http.Request) {
	id := urlID(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failFor[id] {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
		return
	}
	out := []models.Contribution{}
	for _, c := range b.contributions {
		if c.RequestID == id {
			out = append(out, c)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) contributionsByResponder(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	b.mu.Lock()
	out := []models.Contribution{}
	for _, c := range b.contributions {
		if c.ResponderEmail == email {
			out = append(out, c)
		}
	}
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) createContribution(w http.ResponseWriter, r *http.Request) {
	var in models.ContributionInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "malformed body"})
		return
	}
	p := principalOf(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.requests {
		if b.requests[i].ID != in.RequestID {
			continue
		}
		b.nextID++
		now := models.NewTimestamp(time.Now())
		c := models.Contribution{ID: b.nextID, RequestID: in.RequestID, Category: in.Category,
			ContributedQuantity: in.ContributedQuantity, Latitude: in.Latitude, Longitude: in.Longitude,
			ResponderEmail: p.email, CreatedAt: now, UpdatedAt: now}
		b.contributions = append(b.contributions, c)
		req := &b.requests[i]
		req.FulfilledQuantity += in.ContributedQuantity
		if req.FulfilledQuantity >= req.RequestedQuantity {
			req.Status = models.RequestFulfilled
		}
		writeJSON(w, http.StatusCreated, c)
		return
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "Request not found"})
}

func (b *Backend) listNotifications(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, b.Notifications())
}

func (b *Backend) listUnread(w http.ResponseWriter, r *http.Request) {
	out := []models.Notification{}
	for _, n := range b.Notifications() {
		if !n.Read {
			out = append(out, n)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) markRead(w http.ResponseWriter, r *http.Request) {
	id := urlID(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.notifications {
		if b.notifications[i].ID == id {
			b.notifications[i].Read = true
			writeJSON(w, http.StatusOK, b.notifications[i])
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "Notification not found"})
}

func (b *Backend) deleteNotification(w http.ResponseWriter, r *http.Request) {
	id := urlID(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, n := range b.notifications {
		if n.ID == id {
			b.notifications = append(b.notifications[:i], b.notifications[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "Notification not found"})
}

func (b *Backend) summary(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := models.Summary{
		TotalUsers:          len(b.users),
		TotalDisasters:      len(b.disasters),
		TotalRequests:       len(b.requests),
		TotalContributions:  len(b.contributions),
		RequestStatusCounts: map[string]int64{},
		UserRoleCounts:      map[string]int64{},
	}
	for _, req := range b.requests {
		s.RequestStatusCounts[string(req.Status)]++
	}
	for _, u := range b.users {
		s.UserRoleCounts[string(u.Role)]++
	}
	writeJSON(w, http.StatusOK, s)
}

func (b *Backend) adminList(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch chi.URLParam(r, "kind") {
	case "users":
		writeJSON(w, http.StatusOK, b.users)
	case "disasters":
		writeJSON(w, http.StatusOK, b.disasters)
	case "requests":
		writeJSON(w, http.StatusOK, b.requests)
	case "contributions":
		writeJSON(w, http.StatusOK, b.contributions)
	case "notifications":
		writeJSON(w, http.StatusOK, b.notifications)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not Found"})
	}
}

func (b *Backend) adminDelete(w http.ResponseWriter, r *http.Request) {
	id := urlID(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	removed := false
	switch chi.URLParam(r, "kind") {
	case "users":
		b.users, removed = without(b.users, func(u models.User) bool { return u.ID == id })
	case "disasters":
		b.disasters, removed = without(b.disasters, func(d models.Disaster) bool { return d.ID == id })
	case "requests":
		b.requests, removed = without(b.requests, func(q models.ResourceRequest) bool { return q.ID == id })
	case "contributions":
		b.contributions, removed = without(b.contributions, func(c models.Contribution) bool { return c.ID == id })
	case "notifications":
		b.notifications, removed = without(b.notifications, func(n models.Notification) bool { return n.ID == id })
	}
	if !removed {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not Found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func without[T any](list []T, match func(T) bool) ([]T, bool) {
	out := list[:0:0]
	removed := false
	for _, v := range list {
		if match(v) {
			removed = true
			continue
		}
		out = append(out, v)
	}
	return out, removed
}

func urlID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id
}
