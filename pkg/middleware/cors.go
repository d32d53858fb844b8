package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"

	"resqnet-web/pkg/config"
)

// CORS 创建CORS中间件
//
// Session cookies need credentials, so a wildcard origin is only used in
// development and never together with AllowCredentials.
func CORS(cfg *config.Config) func(http.Handler) http.Handler {
	corsOptions := cors.Options{
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
			"X-Requested-With",
			"X-Request-ID",
			"Cache-Control",
		},
		ExposedHeaders: []string{
			"Location",
			"X-Request-ID",
		},
		AllowCredentials: true,
		MaxAge:           300, // 5分钟
	}

	origins := cfg.AllowedOrigins
	switch {
	case contains(origins, "*") || (len(origins) == 0 && cfg.IsDevelopment()):
		corsOptions.AllowedOrigins = []string{"*"}
		corsOptions.AllowCredentials = false
	default:
		corsOptions.AllowOriginFunc = func(_ *http.Request, origin string) bool {
			return isOriginAllowed(origin, origins)
		}
	}

	return cors.Handler(corsOptions)
}

// isOriginAllowed 检查来源是否被允许，支持 "https://*.example.org" 之类的前缀通配
func isOriginAllowed(origin string, allowedOrigins []string) bool {
	if origin == "" || len(allowedOrigins) == 0 {
		return false
	}
	if contains(allowedOrigins, origin) {
		return true
	}
	for _, allowed := range allowedOrigins {
		if prefix, ok := strings.CutSuffix(allowed, "*"); ok && strings.HasPrefix(origin, prefix) {
			return true
		}
	}
	return false
}

// contains 检查切片是否包含指定的字符串
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
