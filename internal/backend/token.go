// Copyright (c) 2025 Universal MCP
// Licensed under the MIT License. See LICENSE file in the project root for details.

package backend

import (
	"maps"
	"net/http"
	"slices"
	"strings"
)

// parseBearerToken extracts token from a value like "Bearer <token>" case-insensitively.
// Returns the token string without the "Bearer " prefix, or empty string if invalid format.
func parseBearerToken(value string) string {
	v := strings.TrimSpace(value)
	if len(v) < 7 || !strings.EqualFold(v[:6], "bearer") || (v[6] != ' ' && v[6] != '\t') {
		return ""
	}
	return strings.TrimSpace(v[6:])
}

// findBearerTokenInHeaders returns the bearer token from the Authorization
// header of a response, or "" when none is present.
func findBearerTokenInHeaders(h http.Header) string {
	for _, v := range h.Values("Authorization") {
		if t := parseBearerToken(v); t != "" {
			return t
		}
	}
	return ""
}

// extractAccessToken searches a response payload for the session token.
// Top-level fields win over nested ones.
func extractAccessToken(node map[string]any) string {
	var token string
	walkJSON(node, &token)
	return token
}

// walkJSON searches a JSON structure breadth-first for a token field,
// visiting the children of an object in key order.
// It handles various common field naming conventions.
func walkJSON(node any, token *string) {
	queue := []any{node}
	for len(queue) > 0 && *token == "" {
		cur := queue[0]
		queue = queue[1:]
		switch v := cur.(type) {
		case map[string]any:
			for _, k := range []string{"access_token", "accessToken", "token", "session_token", "sessionToken"} {
				if s, ok := v[k].(string); ok && strings.TrimSpace(s) != "" {
					*token = strings.TrimSpace(s)
					return
				}
			}
			if s, ok := v["authorization"].(string); ok {
				if t := parseBearerToken(s); t != "" {
					*token = t
					return
				}
			}
			// Sorted so that the first match at a given depth is deterministic.
			for _, k := range slices.Sorted(maps.Keys(v)) {
				queue = append(queue, v[k])
			}
		case []any:
			queue = append(queue, v...)
		}
	}
}
