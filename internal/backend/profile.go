// Copyright (c) 2025 Universal MCP
// Licensed under the MIT License. See LICENSE file in the project root for details.

package backend

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"universalmcp/cli/internal/session"
)

// decodeProfile builds a user from a loosely typed profile object. Backends
// disagree on field naming, so several common spellings are accepted.
func decodeProfile(raw map[string]any) (session.User, error) {
	var u session.User
	if raw == nil {
		return u, fmt.Errorf("empty user profile")
	}

	u.ID = firstString(raw, "id", "user_id", "userId", "uid")
	u.Name = firstString(raw, "name", "display_name", "displayName", "full_name", "fullName")
	u.Email = firstString(raw, "email", "email_address")
	u.AvatarURL = firstString(raw, "avatar", "avatar_url", "avatarUrl")
	u.Department = firstString(raw, "department", "dept")

	role, err := session.ParseRole(firstString(raw, "role"))
	if err != nil {
		return u, err
	}
	u.Role = role

	u.Permissions = stringList(firstValue(raw, "permissions", "scopes"))
	if u.Permissions == nil {
		u.Permissions = []string{}
	}

	if s := firstString(raw, "last_login", "last_login_at", "lastLogin"); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			u.LastLogin = &t
		}
	}

	if err := u.Validate(); err != nil {
		return u, err
	}
	return u, nil
}

func firstValue(raw map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := raw[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

// firstString returns the first non-empty value among keys, formatting
// numeric ids without a fractional part.
func firstString(raw map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := raw[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case int64:
			return strconv.FormatInt(v, 10)
		case int:
			return strconv.Itoa(v)
		}
	}
	return ""
}

func stringList(v any) []string {
	switch l := v.(type) {
	case []string:
		return append([]string(nil), l...)
	case []any:
		out := make([]string, 0, len(l))
		for _, e := range l {
			if s, ok := e.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		// space or comma separated scope strings
		fields := strings.FieldsFunc(l, func(r rune) bool { return r == ',' || r == ' ' })
		return fields
	}
	return nil
}

// encodeProfile is the inverse of decodeProfile. The gRPC server uses it to
// put users on the wire.
func encodeProfile(u session.User) map[string]any {
	perms := make([]any, 0, len(u.Permissions))
	for _, p := range u.Permissions {
		perms = append(perms, p)
	}
	m := map[string]any{
		"id":          u.ID,
		"name":        u.Name,
		"email":       u.Email,
		"role":        string(u.Role),
		"permissions": perms,
	}
	if u.AvatarURL != "" {
		m["avatar_url"] = u.AvatarURL
	}
	if u.Department != "" {
		m["department"] = u.Department
	}
	if u.LastLogin != nil {
		m["last_login"] = u.LastLogin.UTC().Format(time.RFC3339)
	}
	return m
}
