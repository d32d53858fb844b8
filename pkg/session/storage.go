package session

import (
	"context"
	"errors"
	"net/http"
	"time"

	"resqnet-web/pkg/store"
	"resqnet-web/pkg/utils"
)

// KeyedStorage keeps one credential under a fixed key. The CLI uses it with
// a file store, which makes it the equivalent of a browser's localStorage.
type KeyedStorage struct {
	Store store.Store
	Key   string
	TTL   time.Duration
}

func (s KeyedStorage) Load(ctx context.Context) (string, error) {
	v, err := s.Store.Get(ctx, s.Key)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	return v, err
}

func (s KeyedStorage) Save(ctx context.Context, credential string) error {
	return s.Store.Put(ctx, s.Key, credential, s.TTL)
}

func (s KeyedStorage) Clear(ctx context.Context) error {
	return s.Store.Delete(ctx, s.Key)
}

// CookieOptions 会话 cookie 配置
type CookieOptions struct {
	Name   string
	Secure bool
	TTL    time.Duration
}

// CookieStorage maps a browser's session cookie to a credential held in a
// server-side store. It is bound to a single request.
type CookieStorage struct {
	store store.Store
	opts  CookieOptions
	w     http.ResponseWriter
	r     *http.Request
	sid   string
}

// NewCookieStorage binds storage to one request/response pair.
func NewCookieStorage(st store.Store, opts CookieOptions, w http.ResponseWriter, r *http.Request) *CookieStorage {
	s := &CookieStorage{store: st, opts: opts, w: w, r: r}
	if c, err := r.Cookie(opts.Name); err == nil && c.Value != "" {
		s.sid = c.Value
	}
	return s
}

// SessionID returns the current cookie value, "" if none.
func (s *CookieStorage) SessionID() string { return s.sid }

func (s *CookieStorage) Load(ctx context.Context) (string, error) {
	if s.sid == "" {
		return "", nil
	}
	v, err := s.store.Get(ctx, s.sid)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	return v, err
}

// Save always issues a fresh session id so a login never reuses a
// pre-authentication cookie.
func (s *CookieStorage) Save(ctx context.Context, credential string) error {
	sid, err := utils.GenerateSessionID()
	if err != nil {
		return err
	}
	if err := s.store.Put(ctx, sid, credential, s.opts.TTL); err != nil {
		return err
	}
	if s.sid != "" {
		_ = s.store.Delete(ctx, s.sid)
	}
	s.sid = sid

	c := &http.Cookie{
		Name:     s.opts.Name,
		Value:    sid,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if s.opts.TTL > 0 {
		c.MaxAge = int(s.opts.TTL / time.Second)
	}
	http.SetCookie(s.w, c)
	return nil
}

func (s *CookieStorage) Clear(ctx context.Context) error {
	if s.sid == "" {
		return nil
	}
	err := s.store.Delete(ctx, s.sid)
	s.sid = ""
	http.SetCookie(s.w, &http.Cookie{
		Name:     s.opts.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return err
}
