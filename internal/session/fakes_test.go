// Copyright (c) 2025 Universal MCP
// Licensed under the MIT License. See LICENSE file in the project root for details.

package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	errs "universalmcp/cli/internal/errors"
)

// fakeCreds accepts a fixed set of accounts and tokens. Calls can be held
// open with gate to observe the Authenticating state.
type fakeCreds struct {
	mu       sync.Mutex
	accounts map[string]account // by email
	tokens   map[string]User

	gate        chan struct{} // when non-nil, calls block until it is closed or ctx ends
	verifyCalls atomic.Int32
	tokenCalls  atomic.Int32
	revoked     chan string
}

type account struct {
	password string
	user     User
	token    string
}

func newFakeCreds() *fakeCreds {
	return &fakeCreds{
		accounts: map[string]account{},
		tokens:   map[string]User{},
		revoked:  make(chan string, 8),
	}
}

func (f *fakeCreds) addAccount(email, password, token string, u User) *fakeCreds {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[email] = account{password: password, user: u, token: token}
	f.tokens[token] = u
	return f
}

func (f *fakeCreds) wait(ctx context.Context) error {
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeCreds) VerifyCredentials(ctx context.Context, email, password string) (User, string, error) {
	f.verifyCalls.Add(1)
	if err := f.wait(ctx); err != nil {
		return User{}, "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[email]
	if !ok || a.password != password {
		return User{}, "", errs.ErrInvalidCredentials
	}
	return a.user, a.token, nil
}

func (f *fakeCreds) ValidateToken(ctx context.Context, token string) (User, error) {
	f.tokenCalls.Add(1)
	if err := f.wait(ctx); err != nil {
		return User{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.tokens[token]
	if !ok {
		return User{}, errs.ErrInvalidToken
	}
	return u, nil
}

func (f *fakeCreds) Revoke(_ context.Context, token string) error {
	f.revoked <- token
	return nil
}

// plainCreds hides Revoke so the manager sees a service without revocation.
type plainCreds struct{ CredentialService }

// memStore is an in-memory TokenStore with injectable failures.
type memStore struct {
	mu       sync.Mutex
	token    string
	getErr   error
	setErr   error
	clearErr error
	sets     int
	clears   int
}

func (s *memStore) Get() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.getErr
}

func (s *memStore) Set(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets++
	if s.setErr != nil {
		return s.setErr
	}
	s.token = token
	return nil
}

func (s *memStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clears++
	if s.clearErr != nil {
		return s.clearErr
	}
	s.token = ""
	return nil
}

func (s *memStore) current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

var errStoreLocked = errors.New("keychain locked")
