// Copyright (c) 2025 Universal MCP
// Licensed under the MIT License. See LICENSE file in the project root for details.

package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	errs "universalmcp/cli/internal/errors"
	"universalmcp/cli/internal/session"
)

// ValidateToken calls GET {me} with Authorization: Bearer <token> and returns
// the profile the token belongs to. Successful lookups are cached for the
// configured TTL; failures are never cached.
func (h *HTTP) ValidateToken(ctx context.Context, token string) (session.User, error) {
	if token == "" {
		return session.User{}, errs.ErrInvalidToken
	}
	if u, ok := h.cached(token); ok {
		return u, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+h.endpoints.Me, nil)
	if err != nil {
		return session.User{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := h.do(ctx, req)
	if err != nil {
		return session.User{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return session.User{}, statusError(resp, "me", errs.InvalidToken, "session token is no longer valid")
	}

	var raw map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return session.User{}, errs.Wrap(errs.ServiceUnavailable, "the credential service sent an unreadable response", err)
	}
	user, err := decodeProfile(profileObject(raw))
	if err != nil {
		return session.User{}, errs.Wrap(errs.ServiceUnavailable, "credential service returned an unusable profile", err)
	}

	h.remember(token, user)
	return user, nil
}

func (h *HTTP) cached(token string) (session.User, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.meCache[token]
	if !ok {
		return session.User{}, false
	}
	if h.cacheTTL <= 0 || time.Since(c.at) >= h.cacheTTL {
		delete(h.meCache, token)
		return session.User{}, false
	}
	return c.user, true
}

func (h *HTTP) remember(token string, u session.User) {
	if h.cacheTTL <= 0 {
		return
	}
	h.mu.Lock()
	h.meCache[token] = cachedUser{user: u, at: time.Now()}
	h.mu.Unlock()
}

func (h *HTTP) forget(token string) {
	h.mu.Lock()
	delete(h.meCache, token)
	h.mu.Unlock()
}
