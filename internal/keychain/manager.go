// Copyright (c) 2025 Universal MCP
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package keychain provides thread-safe OS keychain operations for universal-mcp.
// It is the persisted token store of the session manager: the session token
// survives process restarts here, and so does the Postgres DSN used by the
// postgres credential transport.
//
// The package supports macOS Keychain (through the security command or the
// keyring library), Windows Credential Manager, the freedesktop Secret Service,
// KWallet, keyctl, pass and an encrypted file backend. Managers are constructed
// explicitly and handed to their users; there is no process-wide instance.
package keychain

import (
	"errors"
	"fmt"
	"io/fs"
	"runtime"
	"sync"

	errs "universalmcp/cli/internal/errors"

	"github.com/99designs/keyring"
)

// ServiceName identifies our keychain/credential store namespace.
const ServiceName = "universal-mcp"

// Keys used for storing secrets in the OS keychain.
const (
	KeySessionToken = "session_token"
	KeyDBDSN        = "db_dsn"
)

// errNotFound is returned by backends for missing keys.
var errNotFound = errors.New("key not found")

// keychainBackend defines the interface for native keychain operations.
type keychainBackend interface {
	Set(key, value string) error
	Get(key string) (string, error)
	Delete(key string) error
}

// Options selects and configures the keyring backends.
type Options struct {
	// Backends lists keyring backend names in preference order (e.g. "keychain",
	// "wincred", "secret-service", "pass", "file"). Empty selects the platform default.
	Backends []string
	// FileDir is where the file backend keeps its encrypted items.
	FileDir string
	// FilePassword unlocks the file backend. Empty falls back to a terminal prompt.
	FilePassword string
}

// Manager provides centralized, thread-safe operations for the OS keychain.
type Manager struct {
	mu      sync.RWMutex
	ring    keyring.Keyring
	backend keychainBackend
}

// Open creates a manager for the configured backends.
func Open(opts Options) (*Manager, error) {
	// Prefer the native security command on macOS unless backends were chosen explicitly.
	if runtime.GOOS == "darwin" && len(opts.Backends) == 0 {
		if backend, err := newSecurityBackend(); err == nil {
			return &Manager{backend: backend}, nil
		}
	}

	ring, err := openRing(opts)
	if err != nil {
		return nil, errs.Wrap(errs.StoreUnavailable, "open keychain", err)
	}
	return &Manager{ring: ring}, nil
}

// NewWithKeyring wraps an already opened keyring.
func NewWithKeyring(ring keyring.Keyring) *Manager {
	return &Manager{ring: ring}
}

// defaultBackends returns the native backends for the current platform.
func defaultBackends() []keyring.BackendType {
	switch runtime.GOOS {
	case "darwin":
		// pass is the fallback when the login keychain is locked down (brew install pass).
		return []keyring.BackendType{keyring.KeychainBackend, keyring.PassBackend}
	case "windows":
		return []keyring.BackendType{keyring.WinCredBackend}
	default:
		return []keyring.BackendType{
			keyring.SecretServiceBackend,
			keyring.KWalletBackend,
			keyring.KeyCtlBackend,
			keyring.PassBackend,
		}
	}
}

// ParseBackends converts backend names to keyring backend types.
func ParseBackends(names []string) ([]keyring.BackendType, error) {
	known := map[string]keyring.BackendType{
		"keychain":       keyring.KeychainBackend,
		"wincred":        keyring.WinCredBackend,
		"secret-service": keyring.SecretServiceBackend,
		"kwallet":        keyring.KWalletBackend,
		"keyctl":         keyring.KeyCtlBackend,
		"pass":           keyring.PassBackend,
		"file":           keyring.FileBackend,
	}
	out := make([]keyring.BackendType, 0, len(names))
	for _, n := range names {
		bt, ok := known[n]
		if !ok {
			return nil, fmt.Errorf("unknown keyring backend %q", n)
		}
		out = append(out, bt)
	}
	return out, nil
}

// openRing opens the OS keyring with the configured or native backends.
func openRing(opts Options) (keyring.Keyring, error) {
	allowed := defaultBackends()
	if len(opts.Backends) > 0 {
		parsed, err := ParseBackends(opts.Backends)
		if err != nil {
			return nil, err
		}
		allowed = parsed
	}

	cfg := keyring.Config{
		ServiceName:      ServiceName,
		AllowedBackends:  allowed,
		PassPrefix:       ServiceName,
		KeyCtlScope:      "user",
		FileDir:          opts.FileDir,
		FilePasswordFunc: keyring.TerminalPrompt,
	}
	if opts.FilePassword != "" {
		cfg.FilePasswordFunc = keyring.FixedStringPrompt(opts.FilePassword)
	}
	if runtime.GOOS == "windows" {
		cfg.WinCredPrefix = ServiceName
	}

	ring, err := keyring.Open(cfg)
	if err != nil {
		if runtime.GOOS == "darwin" {
			return nil, errors.New("macOS Keychain unavailable. On macOS 26.0+, install 'pass': brew install pass gnupg && gpg --generate-key && pass init <gpg-key-id>")
		}
		return nil, fmt.Errorf("no usable keyring backend (%v): %w", allowed, err)
	}
	return ring, nil
}

// get reads a key; a missing key yields "" and no error.
func (m *Manager) get(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.backend != nil {
		v, err := m.backend.Get(key)
		if errors.Is(err, errNotFound) {
			return "", nil
		}
		return v, err
	}

	it, err := m.ring.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(it.Data), nil
}

func (m *Manager) set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.backend != nil {
		return m.backend.Set(key, value)
	}
	return m.ring.Set(keyring.Item{
		Key:         key,
		Data:        []byte(value),
		Label:       ServiceName + " " + key,
		Description: "universal-mcp credential",
	})
}

// remove deletes a key; a missing key is not an error.
func (m *Manager) remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.backend != nil {
		if err := m.backend.Delete(key); err != nil && !errors.Is(err, errNotFound) {
			return err
		}
		return nil
	}
	// The file backend reports a missing key as a missing file.
	if err := m.ring.Remove(key); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// SaveDBDSN stores the database DSN in the keychain.
func (m *Manager) SaveDBDSN(dsn string) error {
	return m.set(KeyDBDSN, dsn)
}

// LoadDBDSN retrieves the database DSN from the keychain ("" when unset).
func (m *Manager) LoadDBDSN() (string, error) {
	return m.get(KeyDBDSN)
}

// ClearDB removes DB-related secrets from the keychain.
func (m *Manager) ClearDB() error {
	return m.remove(KeyDBDSN)
}

// ClearAll removes all secrets from the keychain.
func (m *Manager) ClearAll() error {
	if err := m.remove(KeySessionToken); err != nil {
		return err
	}
	return m.remove(KeyDBDSN)
}

// Tokens returns the session token store backed by this keychain.
func (m *Manager) Tokens() *TokenStore {
	return &TokenStore{m: m}
}
