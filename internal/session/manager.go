// Copyright (c) 2025 Universal MCP
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package session implements the session authentication manager: the single
// owner of the current user's authentication state.
//
// The manager mediates login and logout, restores a session from a persisted
// token at startup and answers permission queries. All state changes go through
// a closed state machine (see transition); consumers only ever see Snapshot copies.
//
// Credential checks are delegated to a CredentialService and the session token
// is persisted through a TokenStore. Failures of either collaborator never
// escape the manager: a failed login is reported through Snapshot.Error, a
// failed restoration silently evicts the stored token.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	errs "universalmcp/cli/internal/errors"
	"universalmcp/cli/internal/logging"

	"go.uber.org/zap"
)

// DefaultLoginTimeout bounds every credential service call made by the manager.
const DefaultLoginTimeout = 30 * time.Second

// CredentialService verifies passwords and bearer tokens.
type CredentialService interface {
	// VerifyCredentials checks an email/password pair and returns the user
	// together with a fresh session token.
	VerifyCredentials(ctx context.Context, email, password string) (User, string, error)
	// ValidateToken returns the user a previously issued token belongs to.
	ValidateToken(ctx context.Context, token string) (User, error)
}

// Revoker is implemented by credential services that can invalidate a token
// server-side. The manager calls it best-effort on logout.
type Revoker interface {
	Revoke(ctx context.Context, token string) error
}

// TokenStore persists the session token across process restarts.
// Get returns an empty string and no error when no token is stored.
type TokenStore interface {
	Get() (string, error)
	Set(token string) error
	Clear() error
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used for transition and collaborator diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// WithLoginTimeout overrides DefaultLoginTimeout.
func WithLoginTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// Manager owns the session state machine. It is safe for concurrent use.
type Manager struct {
	creds   CredentialService
	store   TokenStore
	log     *zap.Logger
	timeout time.Duration

	mu       sync.Mutex
	state    State
	gen      uint64
	cancel   context.CancelFunc
	restored bool
	closed   bool
	watchers map[int]chan Snapshot
	nextID   int

	wg sync.WaitGroup
}

// NewManager creates a manager in the Unauthenticated state. The token store is
// read synchronously; when it holds a token the session stays Unauthenticated
// with that token pending until Restore is called. A store that cannot be read
// is treated as holding no token.
func NewManager(creds CredentialService, store TokenStore, opts ...Option) *Manager {
	m := &Manager{
		creds:    creds,
		store:    store,
		log:      zap.NewNop(),
		timeout:  DefaultLoginTimeout,
		state:    Unauthenticated{},
		watchers: make(map[int]chan Snapshot),
	}
	for _, opt := range opts {
		opt(m)
	}

	token, err := store.Get()
	if err != nil {
		m.log.Warn("token store unavailable, starting without a session",
			zap.Error(errs.Wrap(errs.StoreUnavailable, "read token", err)))
		return m
	}
	m.state = Unauthenticated{Token: token}
	return m
}

// Snapshot returns a copy of the current session.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return snapshotOf(m.state)
}

// HasPermission reports whether the current user is granted p. It is false when
// nobody is authenticated and always true for admins.
func (m *Manager) HasPermission(p string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.state.(Authenticated)
	if !ok {
		return false
	}
	return a.User.HasPermission(p)
}

// Login starts a login attempt and returns immediately. The session is
// Authenticating when Login returns; the returned channel is closed once the
// attempt has settled into Authenticated or AuthFailed, or was superseded.
//
// Credential failures are never returned: they are reported through
// Snapshot().Error. The error result is non-nil only when a login cannot be
// started in the current state (ErrAlreadyAuthenticated) or the manager is closed.
//
// A Login issued while another is in flight cancels the earlier attempt; the
// earlier result is discarded even if it arrives later.
func (m *Manager) Login(ctx context.Context, email, password string) (<-chan struct{}, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, errs.New(errs.IllegalTransition, "session manager is closed")
	}
	if err := m.apply(loginStarted{}); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	m.supersede()
	gen := m.gen
	attemptCtx, cancel := context.WithTimeout(ctx, m.timeout)
	m.cancel = cancel
	m.wg.Add(1)
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer m.wg.Done()
		defer close(done)
		defer cancel()

		user, token, err := m.verify(attemptCtx, email, password)
		m.settleLogin(gen, user, token, err)
	}()
	return done, nil
}

// Logout ends the session. Local state is cleared synchronously; the persisted
// token is cleared and, when supported, the token is revoked remotely in the
// background. Calling Logout on an Unauthenticated session is a no-op.
func (m *Manager) Logout() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if u, ok := m.state.(Unauthenticated); ok && u.Token == "" {
		return
	}
	prev := m.state
	m.supersede()
	_ = m.apply(loggedOut{})

	if err := m.store.Clear(); err != nil {
		m.log.Warn("could not clear persisted token",
			zap.Error(errs.Wrap(errs.StoreUnavailable, "clear token", err)))
	}
	if a, ok := prev.(Authenticated); ok {
		m.revoke(a.Token)
	}
}

// Restore attempts, once per manager, to re-establish the session from the
// token found in the store at construction. On success the session becomes
// Authenticated; on any failure the stored token is cleared and the session
// stays Unauthenticated without an error. Later calls return the current
// snapshot without contacting the credential service.
func (m *Manager) Restore(ctx context.Context) Snapshot {
	m.mu.Lock()
	u, ok := m.state.(Unauthenticated)
	if m.restored || m.closed || !ok || u.Token == "" {
		m.restored = true
		snap := snapshotOf(m.state)
		m.mu.Unlock()
		return snap
	}
	m.restored = true
	gen := m.gen
	vctx, cancel := context.WithTimeout(ctx, m.timeout)
	m.cancel = cancel
	m.mu.Unlock()
	defer cancel()

	user, err := m.creds.ValidateToken(vctx, u.Token)
	if err == nil {
		err = user.Validate()
	}
	if err != nil {
		err = classify(vctx, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		// A login or logout happened while validating; it owns the session now.
		return snapshotOf(m.state)
	}
	m.cancel = nil
	if err != nil {
		m.log.Debug("stored session could not be restored", zap.String("reason", logging.Mask(err.Error())))
		if cerr := m.store.Clear(); cerr != nil {
			m.log.Warn("could not clear stale token", zap.Error(cerr))
		}
		_ = m.apply(restoreFailed{})
	} else {
		_ = m.apply(restoreSucceeded{user: user})
	}
	return snapshotOf(m.state)
}

// Watch returns a channel that receives the current snapshot immediately and
// then the latest snapshot after every transition. Slow readers only see the
// most recent value. The returned function stops the subscription and closes
// the channel.
func (m *Manager) Watch() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	m.mu.Lock()
	id := m.nextID
	m.nextID++
	ch <- snapshotOf(m.state)
	if m.closed {
		close(ch)
		m.mu.Unlock()
		return ch, func() {}
	}
	m.watchers[id] = ch
	m.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if w, ok := m.watchers[id]; ok {
				delete(m.watchers, id)
				close(w)
			}
		})
	}
}

// Close cancels in-flight work, closes all watch channels and waits for
// background goroutines. The manager rejects new logins afterwards.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	m.supersede()
	for id, ch := range m.watchers {
		delete(m.watchers, id)
		close(ch)
	}
	m.mu.Unlock()
	m.wg.Wait()
}

// verify calls the credential service and normalises its failures.
func (m *Manager) verify(ctx context.Context, email, password string) (User, string, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return User{}, "", errs.New(errs.InvalidCredentials, "email and password are required")
	}
	user, token, err := m.creds.VerifyCredentials(ctx, strings.TrimSpace(email), password)
	if err != nil {
		return User{}, "", classify(ctx, err)
	}
	if token == "" {
		return User{}, "", errs.New(errs.ServiceUnavailable, "credential service returned no session token")
	}
	if err := user.Validate(); err != nil {
		return User{}, "", errs.Wrap(errs.ServiceUnavailable, "credential service returned an unusable profile", err)
	}
	return user, token, nil
}

func (m *Manager) settleLogin(gen uint64, user User, token string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen {
		m.log.Debug("discarding superseded login result", zap.Uint64("attempt", gen), zap.Uint64("current", m.gen))
		return
	}
	m.cancel = nil

	if err != nil {
		m.log.Info("login failed", zap.String("kind", string(errs.KindOf(err))), zap.String("reason", logging.Mask(err.Error())))
		_ = m.apply(loginFailed{message: logging.Mask(errs.MessageOf(err))})
		return
	}
	if serr := m.store.Set(token); serr != nil {
		m.log.Warn("could not persist session token; session will not survive a restart",
			zap.Error(errs.Wrap(errs.StoreUnavailable, "save token", serr)))
	}
	_ = m.apply(loginSucceeded{user: user, token: token})
	m.log.Info("login succeeded", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
}

// supersede invalidates whatever attempt is in flight. Callers hold m.mu.
func (m *Manager) supersede() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.gen++
}

// revoke invalidates token remotely without blocking the caller. Callers hold m.mu.
func (m *Manager) revoke(token string) {
	r, ok := m.creds.(Revoker)
	if !ok || m.closed {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		defer cancel()
		if err := r.Revoke(ctx, token); err != nil {
			m.log.Debug("remote token revocation failed", zap.String("reason", logging.Mask(err.Error())))
		}
	}()
}

// apply runs one transition and notifies watchers. Callers hold m.mu.
func (m *Manager) apply(ev event) error {
	next, err := transition(m.state, ev)
	if err != nil {
		m.log.Warn("rejected session transition", zap.String("event", ev.name()), zap.Stringer("state", m.state.Kind()))
		return err
	}
	m.log.Debug("session transition",
		zap.String("event", ev.name()),
		zap.Stringer("from", m.state.Kind()),
		zap.Stringer("to", next.Kind()))
	m.state = next

	snap := snapshotOf(next)
	for _, ch := range m.watchers {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
	return nil
}

// classify maps a collaborator error onto an error kind. Errors that already
// carry a kind are kept, context expiry becomes Timeout or Canceled, and
// anything else is reported as ServiceUnavailable.
func classify(ctx context.Context, err error) error {
	switch {
	case errs.KindOf(err) != errs.Unknown:
		return err
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return errs.Wrap(errs.Timeout, "the credential service did not answer in time, please try again", err)
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		return errs.Wrap(errs.Canceled, "login was canceled", err)
	default:
		return errs.Wrap(errs.ServiceUnavailable, "cannot reach the credential service", err)
	}
}
