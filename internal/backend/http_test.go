// Copyright (c) 2025 Universal MCP
// Licensed under the MIT License. See LICENSE file in the project root for details.

package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"universalmcp/cli/internal/config"
	errs "universalmcp/cli/internal/errors"
	"universalmcp/cli/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testEndpoints = config.Default().Backend.Endpoints

func newTestHTTP(t *testing.T, handler http.HandlerFunc, opts ...HTTPOption) (*HTTP, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	opts = append([]HTTPOption{WithCacheTTL(time.Minute)}, opts...)
	return NewHTTP(srv.URL, testEndpoints, opts...), srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

var adaJSON = map[string]any{
	"id":          "u-1",
	"name":        "Ada",
	"email":       "ada@example.com",
	"role":        "developer",
	"permissions": []string{"servers:read", "servers:write"},
}

func TestHTTP_VerifyCredentials(t *testing.T) {
	h, _ := newTestHTTP(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, testEndpoints.Login, r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		assert.Equal(t, UserAgent, r.Header.Get("User-Agent"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ada@example.com", body["email"])
		assert.Equal(t, "hunter22", body["password"])

		writeJSON(w, http.StatusOK, map[string]any{"access_token": "tok-1", "user": adaJSON})
	})

	user, token, err := h.VerifyCredentials(context.Background(), "ada@example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)
	assert.Equal(t, "u-1", user.ID)
	assert.Equal(t, session.RoleDeveloper, user.Role)
	assert.Equal(t, []string{"servers:read", "servers:write"}, user.Permissions)
}

func TestHTTP_VerifyCredentials_TokenInHeaderAndFlatProfile(t *testing.T) {
	h, _ := newTestHTTP(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Authorization", "Bearer header-token")
		writeJSON(w, http.StatusOK, map[string]any{
			"user_id":      "42",
			"display_name": "Grace",
			"email":        "grace@example.com",
			"role":         "ADMIN",
		})
	})

	user, token, err := h.VerifyCredentials(context.Background(), "grace@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "header-token", token)
	assert.Equal(t, "42", user.ID)
	assert.Equal(t, "Grace", user.Name)
	assert.True(t, user.IsAdmin())
	assert.Empty(t, user.Permissions)
}

func TestHTTP_VerifyCredentials_Failures(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     any
		wantKind errs.Kind
		wantMsg  string
	}{
		{name: "rejected", status: http.StatusUnauthorized, body: map[string]any{"message": "wrong password"},
			wantKind: errs.InvalidCredentials, wantMsg: "wrong password"},
		{name: "rejected without body", status: http.StatusForbidden, body: "",
			wantKind: errs.InvalidCredentials, wantMsg: "invalid email or password"},
		{name: "server error", status: http.StatusInternalServerError, body: map[string]any{"error": "boom"},
			wantKind: errs.ServiceUnavailable, wantMsg: "the credential service returned HTTP 500"},
		{name: "no token", status: http.StatusOK, body: map[string]any{"user": adaJSON},
			wantKind: errs.ServiceUnavailable, wantMsg: "credential service returned no session token"},
		{name: "bad profile", status: http.StatusOK, body: map[string]any{"token": "t", "user": map[string]any{"id": "1", "role": "root"}},
			wantKind: errs.ServiceUnavailable, wantMsg: "credential service returned an unusable profile"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestHTTP(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})
			_, _, err := h.VerifyCredentials(context.Background(), "a@b.c", "pw")
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, errs.KindOf(err))
			assert.Equal(t, tt.wantMsg, errs.MessageOf(err))
		})
	}
}

func TestHTTP_ValidateToken_CachesSuccessOnly(t *testing.T) {
	var hits atomic.Int32
	valid := "good"
	h, _ := newTestHTTP(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, testEndpoints.Me, r.URL.Path)
		if r.Header.Get("Authorization") != "Bearer "+valid {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "invalid token"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"user": adaJSON})
	})
	ctx := context.Background()

	for range 2 {
		u, err := h.ValidateToken(ctx, "good")
		require.NoError(t, err)
		assert.Equal(t, "Ada", u.Name)
	}
	assert.Equal(t, int32(1), hits.Load())

	for range 2 {
		_, err := h.ValidateToken(ctx, "stale")
		assert.True(t, errors.Is(err, errs.ErrInvalidToken))
	}
	assert.Equal(t, int32(3), hits.Load())
}

func TestHTTP_ValidateToken_NoCacheWhenTTLZero(t *testing.T) {
	var hits atomic.Int32
	h, _ := newTestHTTP(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeJSON(w, http.StatusOK, adaJSON)
	}, WithCacheTTL(0))

	for range 3 {
		_, err := h.ValidateToken(context.Background(), "tok")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), hits.Load())
}

func TestHTTP_RevokeDropsCache(t *testing.T) {
	var meHits, logoutHits atomic.Int32
	h, _ := newTestHTTP(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case testEndpoints.Me:
			meHits.Add(1)
			writeJSON(w, http.StatusOK, adaJSON)
		case testEndpoints.Logout:
			logoutHits.Add(1)
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			w.WriteHeader(http.StatusNoContent)
		}
	})
	ctx := context.Background()

	_, err := h.ValidateToken(ctx, "tok")
	require.NoError(t, err)
	require.NoError(t, h.Revoke(ctx, "tok"))
	_, err = h.ValidateToken(ctx, "tok")
	require.NoError(t, err)

	assert.Equal(t, int32(2), meHits.Load())
	assert.Equal(t, int32(1), logoutHits.Load())
}

func TestHTTP_RevokeUnknownTokenIsNotAnError(t *testing.T) {
	h, _ := newTestHTTP(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	assert.NoError(t, h.Revoke(context.Background(), "gone"))
}

func TestHTTP_Timeout(t *testing.T) {
	h, _ := newTestHTTP(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}, WithTimeout(50*time.Millisecond))

	_, _, err := h.VerifyCredentials(context.Background(), "a@b.c", "pw")
	assert.ErrorIs(t, err, errs.ErrTimeout)
}

func TestHTTP_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	h := NewHTTP(url, testEndpoints)
	_, err := h.ValidateToken(context.Background(), "tok")
	assert.ErrorIs(t, err, errs.ErrServiceUnavailable)
}

func TestHTTP_GetVersion(t *testing.T) {
	h, _ := newTestHTTP(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, testEndpoints.Version, r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]string{"version": "2.4.0"})
	})
	v, err := h.GetVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2.4.0", v)
}

func TestParseBearerToken(t *testing.T) {
	assert.Equal(t, "abc", parseBearerToken("Bearer abc"))
	assert.Equal(t, "abc", parseBearerToken("  bearer   abc "))
	assert.Equal(t, "", parseBearerToken("Bearerabc"))
	assert.Equal(t, "", parseBearerToken("Basic abc"))
	assert.Equal(t, "", parseBearerToken("Bearer"))
}

func TestExtractAccessToken_Nested(t *testing.T) {
	assert.Equal(t, "deep", extractAccessToken(map[string]any{
		"data": map[string]any{"session": map[string]any{"accessToken": "deep"}},
	}))
	assert.Equal(t, "top", extractAccessToken(map[string]any{
		"token": "top",
		"data":  map[string]any{"token": "nested"},
	}))
	assert.Equal(t, "", extractAccessToken(map[string]any{"user": adaJSON}))
}

func TestExtractAccessToken_SiblingsInKeyOrder(t *testing.T) {
	payload := map[string]any{
		"user":    map[string]any{"session_token": "from-user"},
		"data":    map[string]any{"token": "from-data"},
		"session": map[string]any{"access_token": "from-session"},
	}
	for range 50 {
		require.Equal(t, "from-data", extractAccessToken(payload))
	}
}
