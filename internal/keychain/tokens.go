// Copyright (c) 2025 Universal MCP
// Licensed under the MIT License. See LICENSE file in the project root for details.

package keychain

import (
	errs "universalmcp/cli/internal/errors"
)

// TokenStore persists the session token in the keychain. It satisfies
// session.TokenStore.
type TokenStore struct {
	m *Manager
}

// Get returns the stored session token, or "" when none is stored.
func (t *TokenStore) Get() (string, error) {
	tok, err := t.m.get(KeySessionToken)
	if err != nil {
		return "", errs.Wrap(errs.StoreUnavailable, "read session token", err)
	}
	return tok, nil
}

// Set replaces the stored session token.
func (t *TokenStore) Set(token string) error {
	if err := t.m.set(KeySessionToken, token); err != nil {
		return errs.Wrap(errs.StoreUnavailable, "save session token", err)
	}
	return nil
}

// Clear removes the stored session token. Clearing an empty store is a no-op.
func (t *TokenStore) Clear() error {
	if err := t.m.remove(KeySessionToken); err != nil {
		return errs.Wrap(errs.StoreUnavailable, "clear session token", err)
	}
	return nil
}
