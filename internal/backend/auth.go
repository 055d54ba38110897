// Copyright (c) 2025 Universal MCP
// Licensed under the MIT License. See LICENSE file in the project root for details.

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	errs "universalmcp/cli/internal/errors"
	"universalmcp/cli/internal/session"
)

// VerifyCredentials posts {email, password} to the login endpoint and returns
// the user and session token from the response.
func (h *HTTP) VerifyCredentials(ctx context.Context, email, password string) (session.User, string, error) {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return session.User{}, "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+h.endpoints.Login, bytes.NewReader(body))
	if err != nil {
		return session.User{}, "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.do(ctx, req)
	if err != nil {
		return session.User{}, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return session.User{}, "", statusError(resp, "login", errs.InvalidCredentials, "invalid email or password")
	}

	var raw map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return session.User{}, "", errs.Wrap(errs.ServiceUnavailable, "the credential service sent an unreadable response", err)
	}

	token := findBearerTokenInHeaders(resp.Header)
	if token == "" {
		token = extractAccessToken(raw)
	}
	if token == "" {
		return session.User{}, "", errs.New(errs.ServiceUnavailable, "credential service returned no session token")
	}

	user, err := decodeProfile(profileObject(raw))
	if err != nil {
		return session.User{}, "", errs.Wrap(errs.ServiceUnavailable, "credential service returned an unusable profile", err)
	}

	h.remember(token, user)
	return user, token, nil
}

// Revoke calls POST {logout} with the token so the server forgets it.
// The cached profile is dropped regardless of the outcome.
func (h *HTTP) Revoke(ctx context.Context, token string) error {
	h.forget(token)
	if h.endpoints.Logout == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+h.endpoints.Logout, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := h.do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusUnauthorized:
		// 401 means the token is already gone.
		return nil
	default:
		return statusError(resp, "logout", errs.InvalidToken, "session token is no longer valid")
	}
}

// profileObject finds the user object inside a login or /me response.
func profileObject(raw map[string]any) map[string]any {
	for _, k := range []string{"user", "profile", "data"} {
		if m, ok := raw[k].(map[string]any); ok {
			if inner, ok := m["user"].(map[string]any); ok {
				return inner
			}
			return m
		}
	}
	return raw
}
