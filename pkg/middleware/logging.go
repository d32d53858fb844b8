package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"resqnet-web/pkg/config"
	"resqnet-web/pkg/obs"
)

// Logger 请求日志中间件
//
// The session middleware runs inside this one, so the role is read after
// the handler returns.
func Logger(cfg *config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			holder := &roleHolder{}
			next.ServeHTTP(ww, r.WithContext(withRoleHolder(r.Context(), holder)))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			log := obs.Logger()
			var ev *zerolog.Event
			switch {
			case status >= 500:
				ev = log.Error()
			case status >= 400:
				ev = log.Warn()
			default:
				ev = log.Info()
			}
			ev = ev.
				Str("request_id", requestID(r)).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("role", holder.get()).
				Str("ip", getClientIP(r))
			if !cfg.IsProduction() {
				ev = ev.Str("user_agent", r.UserAgent())
			}
			ev.Msg("request")
		})
	}
}

// getClientIP 获取客户端IP地址（X-Forwarded-For 取第一个）
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// roleHolder lets the session middleware report the role back to the logger.
type roleHolder struct {
	mu   sync.Mutex
	role string
}

func (h *roleHolder) set(role string) {
	h.mu.Lock()
	h.role = role
	h.mu.Unlock()
}

func (h *roleHolder) get() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.role == "" {
		return "anonymous"
	}
	return h.role
}

const roleHolderKey ContextKey = "role_holder"

func withRoleHolder(ctx context.Context, h *roleHolder) context.Context {
	return context.WithValue(ctx, roleHolderKey, h)
}

func reportRole(ctx context.Context, role string) {
	if h, ok := ctx.Value(roleHolderKey).(*roleHolder); ok {
		h.set(role)
	}
}

func requestID(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}
