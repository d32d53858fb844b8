package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"resqnet-web/pkg/models"
	"resqnet-web/pkg/obs"
)

// LoginPath is where Logout sends the user.
const LoginPath = "/login"

// Status of the session's initial restore.
type Status string

const (
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
)

// State is an immutable snapshot of the session.
type State struct {
	Status        Status    `json:"status"`
	Authenticated bool      `json:"authenticated"`
	Identity      *Identity `json:"identity,omitempty"`
	credential    string
}

// Credential returns the bearer credential, or "" when logged out.
func (s State) Credential() string { return s.credential }

// Role returns the identity's role, or "" when logged out.
func (s State) Role() models.Role {
	if s.Identity == nil {
		return ""
	}
	return s.Identity.Role
}

// Storage is the durable place a credential survives reloads in.
type Storage interface {
	// Load returns "" with a nil error when nothing is stored.
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, credential string) error
	Clear(ctx context.Context) error
}

// Authorizer owns the default outgoing Authorization header.
type Authorizer interface {
	SetBearer(credential string)
	ClearBearer()
}

// Navigator performs the hard navigation Logout requires.
type Navigator interface {
	Reload(location string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(location string)

func (f NavigatorFunc) Reload(location string) { f(location) }

// Manager 会话管理器：凭证、身份、状态的唯一来源
type Manager struct {
	storage Storage
	auth    Authorizer
	nav     Navigator
	now     func() time.Time
	log     zerolog.Logger

	mu         sync.RWMutex
	state      State
	listeners  map[int]func(State)
	nextID     int
	tornDown   bool
	initOnce   sync.Once
	initResult State
}

// Option configures a Manager.
type Option func(*Manager)

// WithAuthorizer attaches the outgoing-header owner.
func WithAuthorizer(a Authorizer) Option { return func(m *Manager) { m.auth = a } }

// WithNavigator sets what Logout calls to reload the login page.
func WithNavigator(n Navigator) Option { return func(m *Manager) { m.nav = n } }

// WithClock overrides time.Now, for expiry checks in tests.
func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option { return func(m *Manager) { m.log = l } }

// NewManager 创建会话管理器
func NewManager(storage Storage, opts ...Option) *Manager {
	m := &Manager{
		storage:   storage,
		now:       time.Now,
		log:       *obs.Logger(),
		state:     State{Status: StatusLoading},
		listeners: make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Init restores the session from durable storage, once per load. A stored
// credential that is malformed or expired is cleared silently: no error and
// no redirect, so rendering the login page can never loop back on itself.
func (m *Manager) Init(ctx context.Context) State {
	m.initOnce.Do(func() {
		m.initResult = m.restore(ctx)
	})
	return m.initResult
}

func (m *Manager) restore(ctx context.Context) State {
	credential, err := m.storage.Load(ctx)
	if err != nil {
		m.log.Warn().Err(err).Msg("session storage unavailable, starting logged out")
		credential = ""
	}
	if credential == "" {
		m.clearState()
		return m.markReady()
	}

	id, err := Decode(credential, m.now())
	if err != nil {
		m.log.Debug().Err(err).Msg("stored credential rejected, clearing session")
		obs.SessionEvent("silent_logout")
		m.cleanup(ctx)
		return m.markReady()
	}

	m.setState(credential, id)
	obs.SessionEvent("restore")
	return m.markReady()
}

// Login stores and decodes credential and attaches it to outgoing requests.
// The identity is returned right away so callers can redirect by role.
// Expired or undecodable credentials leave the session logged out.
func (m *Manager) Login(ctx context.Context, credential string) (Identity, error) {
	id, err := Decode(credential, m.now())
	if err != nil {
		m.cleanup(ctx)
		m.markReady()
		return Identity{}, err
	}

	if err := m.storage.Save(ctx, credential); err != nil {
		m.cleanup(ctx)
		m.markReady()
		return Identity{}, fmt.Errorf("persist session: %w", err)
	}

	m.setState(credential, id)
	m.markReady()
	obs.SessionEvent("login")
	m.log.Info().Str("subject", id.Subject).Str("role", string(id.Role)).Msg("session established")
	return id, nil
}

// Logout clears everything and reloads the login page. The state is cleared
// even when durable storage fails; the storage error is returned.
func (m *Manager) Logout(ctx context.Context) error {
	err := m.cleanup(ctx)
	m.markReady()
	obs.SessionEvent("logout")
	if m.nav != nil {
		m.nav.Reload(LoginPath)
	}
	return err
}

// Teardown drops listeners and releases the outgoing header. Durable storage
// is left alone, so the next load restores the same session.
func (m *Manager) Teardown() {
	m.mu.Lock()
	m.tornDown = true
	m.listeners = make(map[int]func(State))
	m.mu.Unlock()
	if m.auth != nil {
		m.auth.ClearBearer()
	}
}

// State returns the current snapshot.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// IsAuthenticated is true when a credential is held and its identity decoded.
func (m *Manager) IsAuthenticated() bool {
	return m.State().Authenticated
}

// Subscribe registers fn to run after every state change. The returned
// function unregisters it.
func (m *Manager) Subscribe(fn func(State)) (cancel func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tornDown {
		return func() {}
	}
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// cleanup is logout without the navigation.
func (m *Manager) cleanup(ctx context.Context) error {
	var err error
	if m.storage != nil {
		if cerr := m.storage.Clear(ctx); cerr != nil {
			m.log.Warn().Err(cerr).Msg("failed to clear session storage")
			err = fmt.Errorf("clear session storage: %w", cerr)
		}
	}
	m.clearState()
	return err
}

func (m *Manager) setState(credential string, id Identity) {
	m.mu.Lock()
	identity := id
	m.state = State{Status: m.state.Status, Authenticated: true, Identity: &identity, credential: credential}
	m.mu.Unlock()
	if m.auth != nil {
		m.auth.SetBearer(credential)
	}
	m.notify()
}

func (m *Manager) clearState() {
	m.mu.Lock()
	m.state = State{Status: m.state.Status}
	m.mu.Unlock()
	if m.auth != nil {
		m.auth.ClearBearer()
	}
	m.notify()
}

func (m *Manager) markReady() State {
	m.mu.Lock()
	changed := m.state.Status != StatusReady
	m.state.Status = StatusReady
	s := m.state
	m.mu.Unlock()
	if changed {
		m.notify()
	}
	return s
}

func (m *Manager) notify() {
	m.mu.RLock()
	s := m.state
	fns := make([]func(State), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.RUnlock()
	for _, fn := range fns {
		fn(s)
	}
}

// IsCredentialError reports whether err came from rejecting a credential.
func IsCredentialError(err error) bool {
	return errors.Is(err, ErrInvalidCredential) || errors.Is(err, ErrExpiredCredential)
}
