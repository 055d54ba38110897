// Copyright (c) 2025 Universal MCP
// Licensed under the MIT License. See LICENSE file in the project root for details.

package session

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Role is the single role granted to a user.
// Roles carry no implied ordering; only RoleAdmin has special meaning.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleManager   Role = "manager"
	RoleDeveloper Role = "developer"
	RoleViewer    Role = "viewer"
)

// ParseRole converts a string to a Role. Matching is case-insensitive.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleAdmin, RoleManager, RoleDeveloper, RoleViewer:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q (want admin, manager, developer or viewer)", s)
	}
}

// Valid reports whether r is one of the four known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleDeveloper, RoleViewer:
		return true
	}
	return false
}

// User is an authenticated principal as reported by the credential service.
type User struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Role        Role       `json:"role"`
	Permissions []string   `json:"permissions"`
	AvatarURL   string     `json:"avatar_url,omitempty"`
	Department  string     `json:"department,omitempty"`
	LastLogin   *time.Time `json:"last_login,omitempty"`
}

// Validate checks the fields the session relies on.
func (u User) Validate() error {
	if strings.TrimSpace(u.ID) == "" {
		return fmt.Errorf("user profile has no id")
	}
	if !u.Role.Valid() {
		return fmt.Errorf("user profile has unknown role %q", u.Role)
	}
	return nil
}

// IsAdmin reports whether the user holds the admin role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// HasPermission reports whether the user is granted p.
// The admin role is an implicit grant of every permission, so the permission
// list of an admin is not exhaustive. A non-admin with no permissions is denied everything.
func (u User) HasPermission(p string) bool {
	if u.IsAdmin() {
		return true
	}
	return slices.Contains(u.Permissions, p)
}

// clone returns a deep copy so snapshots never alias manager-owned memory.
func (u User) clone() User {
	c := u
	c.Permissions = slices.Clone(u.Permissions)
	if u.LastLogin != nil {
		t := *u.LastLogin
		c.LastLogin = &t
	}
	return c
}
