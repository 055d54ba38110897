// Copyright (c) 2025 Universal MCP
// Licensed under the MIT License. See LICENSE file in the project root for details.

package session

import (
	"fmt"

	errs "universalmcp/cli/internal/errors"
)

// Kind names the behaviourally distinct states of a session.
type Kind int

const (
	KindUnauthenticated Kind = iota
	KindAuthenticating
	KindAuthenticated
	KindAuthFailed
)

func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindAuthenticating:
		return "authenticating"
	case KindAuthenticated:
		return "authenticated"
	case KindAuthFailed:
		return "auth_failed"
	default:
		return "unknown"
	}
}

// MarshalText renders the kind by name in JSON output.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// State is the closed set of session states. Each variant only carries the
// fields that are meaningful for it, so combinations such as "loading and
// authenticated" cannot be expressed.
type State interface {
	Kind() Kind
	state()
}

// Unauthenticated has no user. Token is non-empty only between construction
// and restoration, when a token was found in the persisted store.
type Unauthenticated struct {
	Token string
}

// Authenticating is an in-flight login attempt.
type Authenticating struct{}

// Authenticated holds the signed-in user and its session token.
type Authenticated struct {
	User  User
	Token string
}

// AuthFailed is the result of a rejected login attempt.
type AuthFailed struct {
	Message string
}

func (Unauthenticated) Kind() Kind { return KindUnauthenticated }
func (Authenticating) Kind() Kind  { return KindAuthenticating }
func (Authenticated) Kind() Kind   { return KindAuthenticated }
func (AuthFailed) Kind() Kind      { return KindAuthFailed }

func (Unauthenticated) state() {}
func (Authenticating) state()  {}
func (Authenticated) state()   {}
func (AuthFailed) state()      {}

// event is a trigger applied to the state machine.
type event interface {
	name() string
}

type (
	loginStarted   struct{}
	loginSucceeded struct {
		user  User
		token string
	}
	loginFailed      struct{ message string }
	loggedOut        struct{}
	restoreSucceeded struct{ user User }
	restoreFailed    struct{}
)

func (loginStarted) name() string     { return "login_started" }
func (loginSucceeded) name() string   { return "login_succeeded" }
func (loginFailed) name() string      { return "login_failed" }
func (loggedOut) name() string        { return "logged_out" }
func (restoreSucceeded) name() string { return "restore_succeeded" }
func (restoreFailed) name() string    { return "restore_failed" }

// ErrAlreadyAuthenticated is returned when a login is started on an authenticated session.
var ErrAlreadyAuthenticated = errs.New(errs.IllegalTransition, "already logged in; log out first")

// transition is total over (state, event): it either returns the next state
// or an IllegalTransition error. It has no side effects.
func transition(s State, ev event) (State, error) {
	switch e := ev.(type) {
	case loginStarted:
		switch s.(type) {
		case Unauthenticated, AuthFailed, Authenticating:
			// A login from Authenticating supersedes the in-flight attempt.
			return Authenticating{}, nil
		case Authenticated:
			return s, ErrAlreadyAuthenticated
		}
	case loginSucceeded:
		if _, ok := s.(Authenticating); ok {
			return Authenticated{User: e.user, Token: e.token}, nil
		}
	case loginFailed:
		if _, ok := s.(Authenticating); ok {
			return AuthFailed{Message: e.message}, nil
		}
	case loggedOut:
		return Unauthenticated{}, nil
	case restoreSucceeded:
		if u, ok := s.(Unauthenticated); ok && u.Token != "" {
			return Authenticated{User: e.user, Token: u.Token}, nil
		}
	case restoreFailed:
		if u, ok := s.(Unauthenticated); ok && u.Token != "" {
			return Unauthenticated{}, nil
		}
	}
	return s, errs.New(errs.IllegalTransition, fmt.Sprintf("%s is not allowed while %s", ev.name(), s.Kind()))
}

// Snapshot is the read-only projection of a session handed to consumers.
// User is a copy; mutating it has no effect on the session.
type Snapshot struct {
	State           Kind   `json:"state"`
	User            *User  `json:"user"`
	Token           string `json:"token,omitempty"`
	IsAuthenticated bool   `json:"is_authenticated"`
	Loading         bool   `json:"loading"`
	Error           string `json:"error,omitempty"`
}

func snapshotOf(s State) Snapshot {
	snap := Snapshot{State: s.Kind()}
	switch v := s.(type) {
	case Unauthenticated:
		snap.Token = v.Token
	case Authenticating:
		snap.Loading = true
	case Authenticated:
		u := v.User.clone()
		snap.User = &u
		snap.Token = v.Token
		snap.IsAuthenticated = true
	case AuthFailed:
		snap.Error = v.Message
	}
	return snap
}
