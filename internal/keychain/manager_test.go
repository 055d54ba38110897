// Copyright (c) 2025 Universal MCP
// Licensed under the MIT License. See LICENSE file in the project root for details.

package keychain

import (
	"errors"
	"testing"

	errs "universalmcp/cli/internal/errors"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager() *Manager {
	return NewWithKeyring(keyring.NewArrayKeyring(nil))
}

func TestTokenStore_EmptyStoreReturnsNoToken(t *testing.T) {
	tok, err := newTestManager().Tokens().Get()
	require.NoError(t, err)
	assert.Empty(t, tok)
}

func TestTokenStore_SetGetClear(t *testing.T) {
	store := newTestManager().Tokens()

	require.NoError(t, store.Set("mcp_0123456789abcdef"))
	tok, err := store.Get()
	require.NoError(t, err)
	assert.Equal(t, "mcp_0123456789abcdef", tok)

	require.NoError(t, store.Set("mcp_fedcba9876543210"))
	tok, err = store.Get()
	require.NoError(t, err)
	assert.Equal(t, "mcp_fedcba9876543210", tok)

	require.NoError(t, store.Clear())
	tok, err = store.Get()
	require.NoError(t, err)
	assert.Empty(t, tok)

	// Clearing twice is fine.
	require.NoError(t, store.Clear())
}

func TestManager_DSNIsIndependentOfToken(t *testing.T) {
	m := newTestManager()
	require.NoError(t, m.SaveDBDSN("postgres://u:p@localhost/app"))
	require.NoError(t, m.Tokens().Set("tok"))

	require.NoError(t, m.Tokens().Clear())
	dsn, err := m.LoadDBDSN()
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@localhost/app", dsn)

	require.NoError(t, m.ClearDB())
	dsn, err = m.LoadDBDSN()
	require.NoError(t, err)
	assert.Empty(t, dsn)
}

func TestManager_ClearAll(t *testing.T) {
	m := newTestManager()
	require.NoError(t, m.SaveDBDSN("postgres://localhost/app"))
	require.NoError(t, m.Tokens().Set("tok"))

	require.NoError(t, m.ClearAll())

	tok, _ := m.Tokens().Get()
	dsn, _ := m.LoadDBDSN()
	assert.Empty(t, tok)
	assert.Empty(t, dsn)
}

type brokenRing struct{ keyring.Keyring }

func (brokenRing) Get(string) (keyring.Item, error) { return keyring.Item{}, errors.New("locked") }
func (brokenRing) Set(keyring.Item) error           { return errors.New("locked") }
func (brokenRing) Remove(string) error              { return errors.New("locked") }

func TestTokenStore_BackendFailuresAreStoreUnavailable(t *testing.T) {
	store := NewWithKeyring(brokenRing{}).Tokens()

	_, err := store.Get()
	assert.True(t, errors.Is(err, errs.ErrStoreUnavailable))
	assert.True(t, errors.Is(store.Set("x"), errs.ErrStoreUnavailable))
	assert.True(t, errors.Is(store.Clear(), errs.ErrStoreUnavailable))
}

func TestParseBackends(t *testing.T) {
	got, err := ParseBackends([]string{"file", "pass"})
	require.NoError(t, err)
	assert.Equal(t, []keyring.BackendType{keyring.FileBackend, keyring.PassBackend}, got)

	_, err = ParseBackends([]string{"vault"})
	assert.Error(t, err)
}

func TestOpen_FileBackend(t *testing.T) {
	m, err := Open(Options{
		Backends:     []string{"file"},
		FileDir:      t.TempDir(),
		FilePassword: "test-password",
	})
	require.NoError(t, err)

	store := m.Tokens()
	require.NoError(t, store.Set("persisted"))
	tok, err := store.Get()
	require.NoError(t, err)
	assert.Equal(t, "persisted", tok)

	require.NoError(t, m.ClearAll(), "clearing a key that was never set is not an error")
	tok, err = store.Get()
	require.NoError(t, err)
	assert.Empty(t, tok)
}
