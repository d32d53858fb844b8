package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"resqnet-web/pkg/config"
)

// ErrNotFound is returned by Get when no live credential exists for the key.
var ErrNotFound = errors.New("session not found")

// Store 持久化会话存储接口：会话ID -> 凭证
//
// It is the durable storage the session manager persists the credential in,
// so a restarted server (or a second CLI invocation) restores the same login.
type Store interface {
	// Get returns the stored credential, or ErrNotFound if absent or expired.
	Get(ctx context.Context, key string) (string, error)
	// Put stores credential under key. A ttl <= 0 means no expiry.
	Put(ctx context.Context, key, credential string, ttl time.Duration) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// 健康检查
	HealthCheck(ctx context.Context) error

	// 关闭连接
	Close() error
}

// Sweeper is implemented by stores that do not expire entries on their own.
type Sweeper interface {
	PurgeExpired(ctx context.Context) (int, error)
}

// StoreConfig 存储配置
type StoreConfig struct {
	Backend     string
	DataDir     string
	PostgresDSN string
	RedisURL    string
	// FileName overrides the file store's file name (CLI uses "credentials.json").
	FileName string
}

// ConfigFrom builds a StoreConfig from the application config.
func ConfigFrom(cfg *config.Config) StoreConfig {
	return StoreConfig{
		Backend:     cfg.SessionStore,
		DataDir:     cfg.DataDir,
		PostgresDSN: cfg.PostgresDSN,
		RedisURL:    cfg.RedisURL,
	}
}

// NewStore 根据配置选择存储实现
func NewStore(cfg StoreConfig) (Store, error) {
	switch cfg.Backend {
	case "", config.StoreMemory:
		return NewMemoryStore(), nil
	case config.StoreFile:
		s, err := NewFileStore(cfg.DataDir, cfg.FileName)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.StorePostgres:
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres session store requires POSTGRES_DSN")
		}
		s, err := NewPostgresStore(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.StoreRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("redis session store requires REDIS_URL")
		}
		s, err := NewRedisStore(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown session store backend %q", cfg.Backend)
	}
}

// expiryFor converts a ttl into an absolute deadline; zero time means never.
func expiryFor(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}

func expired(now, expiresAt time.Time) bool {
	return !expiresAt.IsZero() && !now.Before(expiresAt)
}
