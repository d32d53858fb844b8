package handler

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"resqnet-web/pkg/client"
	"resqnet-web/pkg/config"
	"resqnet-web/pkg/handlers"
	customMiddleware "resqnet-web/pkg/middleware"
	"resqnet-web/pkg/models"
	"resqnet-web/pkg/obs"
	"resqnet-web/pkg/session"
	"resqnet-web/pkg/store"
	"resqnet-web/pkg/utils"
)

// maxBodyBytes 表单请求体上限
const maxBodyBytes = 1 << 20

// Deps are the long-lived pieces a router is built from.
type Deps struct {
	Config *config.Config
	Store  store.Store
	// API is the template client; every page load gets its own clone.
	API *client.Client
	// LoginLimiter throttles login/registration per IP. Created when nil.
	LoginLimiter *customMiddleware.IPRateLimiter
}

var (
	serverlessOnce    sync.Once
	serverlessAPI     *client.Client
	serverlessLimiter *customMiddleware.IPRateLimiter
)

// Handler 是Vercel函数的入口点
// 所有页面集中在一个Chi路由器中管理
func Handler(w http.ResponseWriter, r *http.Request) {
	cfg := config.GetCached()
	if err := cfg.Validate(); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Configuration error: "+err.Error())
		return
	}

	st, err := store.GetStore(r.Context(), store.ConfigFrom(cfg))
	if err != nil {
		obs.Logger().Error().Err(err).Msg("session store unavailable")
		utils.WriteErrorResponseWithCode(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE",
			"Session store unavailable", "")
		return
	}

	serverlessOnce.Do(func() {
		obs.SetLogger(obs.NewLogger(obs.LogConfig{Level: cfg.LogLevel, ServiceName: "resqnet-web", Pretty: cfg.IsDevelopment()}))
		obs.Init()
		serverlessAPI = client.New(cfg.APIBaseURL, client.WithTimeout(cfg.APITimeout))
		serverlessLimiter = customMiddleware.NewIPRateLimiter(cfg.LoginRatePerMinute)
	})

	NewRouter(Deps{Config: cfg, Store: st, API: serverlessAPI, LoginLimiter: serverlessLimiter}).ServeHTTP(w, r)
}

// NewRouter 创建路由器
func NewRouter(deps Deps) http.Handler {
	if deps.API == nil {
		deps.API = client.New(deps.Config.APIBaseURL, client.WithTimeout(deps.Config.APITimeout))
	}
	if deps.LoginLimiter == nil {
		deps.LoginLimiter = customMiddleware.NewIPRateLimiter(deps.Config.LoginRatePerMinute)
	}

	router := chi.NewRouter()
	setupMiddleware(router, deps.Config)
	setupRoutes(router, deps)
	return router
}

// setupMiddleware 设置全局中间件
func setupMiddleware(router *chi.Mux, cfg *config.Config) {
	// 基础中间件
	router.Use(middleware.RequestID)
	router.Use(customMiddleware.PeerAddr)
	router.Use(middleware.RealIP)
	// Normalize path and restore scheme/host before logging and routing
	router.Use(customMiddleware.Normalize())
	router.Use(obs.Instrument)
	router.Use(customMiddleware.Logger(cfg))
	router.Use(customMiddleware.Recovery(cfg))

	// CORS中间件
	router.Use(customMiddleware.CORS(cfg))

	// 压缩中间件（text/event-stream 不在默认压缩类型内）
	router.Use(middleware.Compress(5))

	// 开发环境额外中间件
	if cfg.IsDevelopment() {
		router.Use(middleware.Heartbeat("/ping"))
	}
}

// setupRoutes 设置所有页面路由
func setupRoutes(router *chi.Mux, deps Deps) {
	cfg := deps.Config

	authHandler := handlers.NewAuthHandler(cfg)
	dashboardHandler := handlers.NewDashboardHandler(cfg)
	disasterHandler := handlers.NewDisasterHandler(cfg)
	requestHandler := handlers.NewRequestHandler(cfg)
	contributionHandler := handlers.NewContributionHandler(cfg)
	notificationHandler := handlers.NewNotificationHandler(cfg)
	adminHandler := handlers.NewAdminHandler(cfg)
	healthHandler := handlers.NewHealthHandler(cfg, deps.Store)

	// 运维端点
	router.Get("/healthz", healthHandler.HealthCheck)
	router.Handle("/metrics", obs.Handler())
	if cfg.IsDevelopment() {
		router.Get("/debug/store", healthHandler.StoreStats)
	}

	cookie := session.CookieOptions{
		Name:   cfg.SessionCookieName,
		Secure: cfg.SessionCookieSecure,
		TTL:    cfg.SessionTTL,
	}

	anyone := customMiddleware.RequireRoute()
	reporter := customMiddleware.RequireRoute(models.RoleReporter)
	responder := customMiddleware.RequireRoute(models.RoleResponder)
	admin := customMiddleware.RequireRoute(models.RoleAdmin)

	router.Group(func(r chi.Router) {
		r.Use(customMiddleware.SessionMiddleware(deps.Store, deps.API, cookie))
		r.Use(customMiddleware.MaxBodySize(maxBodyBytes))
		r.Use(customMiddleware.ContentTypeJSON)

		// 长连接，不加超时
		r.With(anyone).Get("/notifications/stream", notificationHandler.Stream)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(25 * time.Second))

			// 公开页面
			r.Get("/", authHandler.Welcome)
			r.Get("/session", authHandler.Session)
			r.Get("/login", authHandler.LoginPage)
			r.Get("/register", authHandler.RegisterPage)
			r.With(deps.LoginLimiter.Middleware).Post("/login", authHandler.Login)
			r.With(deps.LoginLimiter.Middleware).Post("/register", authHandler.Register)

			// 任意已登录角色
			r.With(anyone).Post("/logout", authHandler.Logout)
			r.With(anyone).Get("/dashboard", dashboardHandler.Dashboard)
			r.With(anyone).Get("/my-disasters", disasterHandler.ListDisasters)
			r.With(anyone).Get("/disasters/{id}", disasterHandler.GetDisaster)

			r.With(anyone).Get("/notifications", notificationHandler.ListNotifications)
			r.With(anyone).Post("/notifications/{id}/read", notificationHandler.MarkRead)
			r.With(anyone).Delete("/notifications/{id}", notificationHandler.DeleteNotification)

			// 报告者
			r.With(reporter).Post("/disasters", disasterHandler.ReportDisaster)
			r.With(reporter).Get("/my-requests", requestHandler.MyRequests)
			r.With(reporter).Post("/requests", requestHandler.CreateRequest)
			r.With(reporter).Get("/contributions", contributionHandler.ReceivedContributions)

			// 响应者
			r.With(customMiddleware.RequireRoute(models.RoleResponder, models.RoleAdmin)).
				Get("/requests", requestHandler.ListRequests)
			r.With(responder).Post("/contributions", contributionHandler.Contribute)
			r.With(responder).Get("/my-contributions", contributionHandler.MyContributions)

			// 管理员
			r.Route("/admin", func(r chi.Router) {
				r.Use(admin)
				r.Get("/dashboard", dashboardHandler.AdminDashboard)
				r.Get("/summary", adminHandler.Summary)
				r.Get("/{kind}", adminHandler.List)
				r.Delete("/{kind}/{id}", adminHandler.Delete)
			})
		})
	})

	// 404处理
	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteNotFoundResponse(w, fmt.Sprintf("Route not found: %s %s", r.Method, r.URL.Path))
	})

	// 405处理
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteErrorResponseWithCode(w, http.StatusMethodNotAllowed, utils.CodeMethodNotAllowed,
			fmt.Sprintf("Method %s not allowed for %s", r.Method, r.URL.Path), "")
	})
}
