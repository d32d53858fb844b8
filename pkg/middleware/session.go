package middleware

import (
	"context"
	"net/http"
	"sync"

	"resqnet-web/pkg/client"
	"resqnet-web/pkg/obs"
	"resqnet-web/pkg/session"
	"resqnet-web/pkg/store"
)

// ContextKey 用于在context中存储会话的键
type ContextKey string

const (
	PageContextKey ContextKey = "page"
)

// Page is everything one page load owns: its session manager and the API
// client carrying that session's credential.
type Page struct {
	Session *session.Manager
	API     *client.Client

	mu     sync.Mutex
	reload string
}

// Reload records a hard navigation requested by the session manager. The
// handler turns it into a redirect once it finishes.
func (p *Page) Reload(location string) {
	p.mu.Lock()
	p.reload = location
	p.mu.Unlock()
}

// ReloadTarget returns the pending hard navigation, "" if none.
func (p *Page) ReloadTarget() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reload
}

// SessionMiddleware restores the session for every request. Each request
// gets its own manager and its own copy of the API client so credentials
// never leak between browsers.
func SessionMiddleware(st store.Store, api *client.Client, opts session.CookieOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			page := &Page{API: api.Clone()}
			storage := session.NewCookieStorage(st, opts, w, r)
			page.Session = session.NewManager(storage,
				session.WithAuthorizer(page.API),
				session.WithNavigator(page),
				session.WithLogger(obs.Logger().With().Str("request_id", requestID(r)).Logger()),
			)
			defer page.Session.Teardown()

			st := page.Session.Init(r.Context())
			reportRole(r.Context(), string(st.Role()))

			ctx := context.WithValue(r.Context(), PageContextKey, page)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PageFromContext 从context中获取当前页面
func PageFromContext(ctx context.Context) (*Page, bool) {
	page, ok := ctx.Value(PageContextKey).(*Page)
	return page, ok && page != nil
}

// WithPage attaches page to ctx. Tests and the CLI build pages directly.
func WithPage(ctx context.Context, page *Page) context.Context {
	return context.WithValue(ctx, PageContextKey, page)
}
