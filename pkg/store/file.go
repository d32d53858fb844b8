package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const defaultSessionsFile = "sessions.json"

type fileEntry struct {
	Credential string    `json:"credential"`
	ExpiresAt  time.Time `json:"expires_at,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// FileStore 本地文件会话存储：单个 JSON 文件，写入时原子替换
//
// This is what the CLI uses as its equivalent of browser localStorage.
type FileStore struct {
	dataDir  string
	fileName string
	mu       sync.Mutex
	now      func() time.Time
}

// NewFileStore 创建文件存储，必要时创建数据目录
func NewFileStore(dataDir, fileName string) (*FileStore, error) {
	if dataDir == "" {
		dataDir = "./data"
	}
	if fileName == "" {
		fileName = defaultSessionsFile
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create data directory %s: %w", dataDir, err)
	}
	return &FileStore{dataDir: dataDir, fileName: fileName, now: time.Now}, nil
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return filepath.Join(s.dataDir, s.fileName)
}

func (s *FileStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.loadAll()
	if err != nil {
		return "", err
	}
	e, ok := entries[key]
	if !ok || expired(s.now(), e.ExpiresAt) {
		return "", ErrNotFound
	}
	return e.Credential, nil
}

func (s *FileStore) Put(_ context.Context, key, credential string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.loadAll()
	if err != nil {
		return err
	}
	now := s.now()
	entries[key] = fileEntry{Credential: credential, ExpiresAt: expiryFor(now, ttl), UpdatedAt: now}
	return s.saveAll(entries)
}

func (s *FileStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.loadAll()
	if err != nil {
		return err
	}
	if _, ok := entries[key]; !ok {
		return nil
	}
	delete(entries, key)
	return s.saveAll(entries)
}

// PurgeExpired rewrites the file without expired entries.
func (s *FileStore) PurgeExpired(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.loadAll()
	if err != nil {
		return 0, err
	}
	now := s.now()
	n := 0
	for k, e := range entries {
		if expired(now, e.ExpiresAt) {
			delete(entries, k)
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return n, s.saveAll(entries)
}

// HealthCheck verifies the data directory is writable.
func (s *FileStore) HealthCheck(context.Context) error {
	f, err := os.CreateTemp(s.dataDir, ".health-*")
	if err != nil {
		return fmt.Errorf("data directory not writable: %w", err)
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) loadAll() (map[string]fileEntry, error) {
	data, err := os.ReadFile(s.Path())
	if os.IsNotExist(err) {
		return map[string]fileEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read sessions file: %w", err)
	}

	entries := map[string]fileEntry{}
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode sessions file: %w", err)
	}
	return entries, nil
}

func (s *FileStore) saveAll(entries map[string]fileEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dataDir, s.fileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("write sessions file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write sessions file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write sessions file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.Path())
}
