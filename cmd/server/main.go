package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	handler "resqnet-web/api"
	"resqnet-web/pkg/client"
	"resqnet-web/pkg/config"
	"resqnet-web/pkg/middleware"
	"resqnet-web/pkg/obs"
	"resqnet-web/pkg/store"
)

const version = "1.0.0"

// sweepInterval 过期会话清理周期
const sweepInterval = 10 * time.Minute

func main() {
	cfg := config.LoadConfig()

	obs.SetLogger(obs.NewLogger(obs.LogConfig{
		Level:       cfg.LogLevel,
		ServiceName: "resqnet-web",
		Pretty:      cfg.IsDevelopment(),
	}))
	obs.Init()
	log := obs.Logger()

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.GetStore(ctx, store.ConfigFrom(cfg))
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.SessionStore).Msg("session store unavailable")
	}
	go store.RunSweeper(ctx, st, sweepInterval)

	limiter := middleware.NewIPRateLimiter(cfg.LoginRatePerMinute)
	go limiter.RunSweeper(ctx)

	api := client.New(cfg.APIBaseURL, client.WithTimeout(cfg.APITimeout), client.WithLogger(*log))

	srv := newServer(":"+cfg.Port, handler.NewRouter(handler.Deps{Config: cfg, Store: st, API: api, LoginLimiter: limiter}))

	log.Info().
		Str("version", version).
		Str("addr", srv.Addr).
		Str("api", cfg.APIBaseURL).
		Str("session_store", cfg.SessionStore).
		Msg("starting resqnet-web")

	// graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("server shutdown")
	}
	if err := store.CloseStore(); err != nil {
		log.Warn().Err(err).Msg("close session store")
	}
	log.Info().Msg("stopped")
}

// newServer 创建 HTTP 服务器。请求 context 派生自 base，Shutdown 时取消，
// 长连接（/notifications/stream）随之退出而不是拖满关闭超时。
func newServer(addr string, h http.Handler) *http.Server {
	base, cancel := context.WithCancel(context.Background())
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		// 不设 WriteTimeout：/notifications/stream 是长连接，其余路由由 chi Timeout 约束
		IdleTimeout: 60 * time.Second,
		BaseContext: func(net.Listener) context.Context { return base },
	}
	srv.RegisterOnShutdown(cancel)
	return srv
}
