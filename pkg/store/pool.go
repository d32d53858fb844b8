package store

import (
	"context"
	"sync"
	"time"

	"resqnet-web/pkg/obs"
)

// storePool 进程级存储单例
type storePool struct {
	instance Store
	config   StoreConfig
	mu       sync.RWMutex
	lastUsed time.Time
}

var (
	globalPool *storePool
	poolMutex  sync.Mutex
)

// GetStore 获取会话存储（单例模式）
func GetStore(ctx context.Context, cfg StoreConfig) (Store, error) {
	poolMutex.Lock()
	defer poolMutex.Unlock()

	if globalPool != nil && !shouldRecreate(ctx, globalPool, cfg) {
		globalPool.mu.Lock()
		globalPool.lastUsed = time.Now()
		globalPool.mu.Unlock()
		return globalPool.instance, nil
	}

	if globalPool != nil && globalPool.instance != nil {
		globalPool.instance.Close()
	}

	instance, err := NewStore(cfg)
	if err != nil {
		globalPool = nil
		return nil, err
	}
	obs.Logger().Info().Str("backend", backendName(cfg)).Msg("session store ready")
	globalPool = &storePool{instance: instance, config: cfg, lastUsed: time.Now()}
	return instance, nil
}

// shouldRecreate 判断是否需要重新创建存储
func shouldRecreate(ctx context.Context, pool *storePool, cfg StoreConfig) bool {
	if pool.instance == nil {
		return true
	}
	if pool.config != cfg {
		obs.Logger().Info().Msg("session store configuration changed, recreating")
		return true
	}
	if err := pool.instance.HealthCheck(ctx); err != nil {
		obs.Logger().Warn().Err(err).Msg("session store health check failed, recreating")
		return true
	}
	return false
}

// CloseStore closes and forgets the process store.
func CloseStore() error {
	poolMutex.Lock()
	defer poolMutex.Unlock()
	if globalPool == nil {
		return nil
	}
	err := globalPool.instance.Close()
	globalPool = nil
	return err
}

// Stats 获取存储统计信息
func Stats() map[string]interface{} {
	poolMutex.Lock()
	defer poolMutex.Unlock()

	if globalPool == nil {
		return map[string]interface{}{
			"status":    "no_store",
			"last_used": nil,
		}
	}

	globalPool.mu.RLock()
	lastUsed := globalPool.lastUsed
	globalPool.mu.RUnlock()

	return map[string]interface{}{
		"status":    "connected",
		"backend":   backendName(globalPool.config),
		"last_used": lastUsed.Format(time.RFC3339),
		"age":       time.Since(lastUsed).String(),
	}
}

// RunSweeper purges expired entries every interval until ctx is done.
// Stores that expire on their own (Redis) are skipped.
func RunSweeper(ctx context.Context, s Store, interval time.Duration) {
	sw, ok := s.(Sweeper)
	if !ok || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sw.PurgeExpired(ctx)
			if err != nil {
				obs.Logger().Warn().Err(err).Msg("session sweep failed")
				continue
			}
			if n > 0 {
				obs.Logger().Debug().Int("purged", n).Msg("expired sessions removed")
			}
		}
	}
}

func backendName(cfg StoreConfig) string {
	if cfg.Backend == "" {
		return "memory"
	}
	return cfg.Backend
}
