package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// SessionsTableDDL creates the table the Postgres store uses. scripts/setup_db.go applies it.
const SessionsTableDDL = `
CREATE TABLE IF NOT EXISTS web_sessions (
    sid         TEXT PRIMARY KEY,
    credential  TEXT NOT NULL,
    expires_at  TIMESTAMPTZ,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_web_sessions_expires_at ON web_sessions (expires_at);
`

// PostgresStore PostgreSQL会话存储实现
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore 打开 PostgreSQL 连接并验证可用
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	dsn = strings.TrimSpace(dsn)
	strategies := []string{
		addConnectionParams(dsn, "connect_timeout=10"),
		dsn,
	}

	var lastErr error
	for i, strategy := range strategies {
		db, err := sql.Open("postgres", strategy)
		if err != nil {
			lastErr = fmt.Errorf("strategy %d: open: %w", i+1, err)
			continue
		}

		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(5 * time.Minute)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = db.PingContext(ctx)
		cancel()
		if err != nil {
			lastErr = fmt.Errorf("strategy %d: ping: %w", i+1, err)
			db.Close()
			continue
		}
		return NewPostgresStoreFromDB(db), nil
	}
	return nil, fmt.Errorf("connect to postgres: %w", lastErr)
}

// NewPostgresStoreFromDB wraps an already-open handle.
func NewPostgresStoreFromDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// addConnectionParams 添加连接参数到DSN（仅 URL 形式的 DSN）
func addConnectionParams(dsn, params string) string {
	if params == "" || !strings.Contains(dsn, "://") {
		return dsn
	}
	separator := "?"
	if strings.Contains(dsn, "?") {
		separator = "&"
	}
	return dsn + separator + params
}

func (s *PostgresStore) Get(ctx context.Context, key string) (string, error) {
	query := `
        SELECT credential
        FROM web_sessions
        WHERE sid = $1 AND (expires_at IS NULL OR expires_at > NOW())
    `
	var credential string
	err := s.db.QueryRowContext(ctx, query, key).Scan(&credential)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to get session: %w", err)
	}
	return credential, nil
}

func (s *PostgresStore) Put(ctx context.Context, key, credential string, ttl time.Duration) error {
	query := `
        INSERT INTO web_sessions (sid, credential, expires_at, created_at, updated_at)
        VALUES ($1, $2, $3, NOW(), NOW())
        ON CONFLICT (sid) DO UPDATE
        SET credential = EXCLUDED.credential, expires_at = EXCLUDED.expires_at, updated_at = NOW()
    `
	var expiresAt sql.NullTime
	if ttl > 0 {
		expiresAt = sql.NullTime{Time: time.Now().Add(ttl).UTC(), Valid: true}
	}
	if _, err := s.db.ExecContext(ctx, query, key, credential, expiresAt); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM web_sessions WHERE sid = $1`, key); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// PurgeExpired 删除过期会话
func (s *PostgresStore) PurgeExpired(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM web_sessions WHERE expires_at IS NOT NULL AND expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to purge sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return int(n), nil
}

// EnsureSchema creates the sessions table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, SessionsTableDDL); err != nil {
		return fmt.Errorf("failed to create web_sessions: %w", err)
	}
	return nil
}

func (s *PostgresStore) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
