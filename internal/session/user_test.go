// Copyright (c) 2025 Universal MCP
// Licensed under the MIT License. See LICENSE file in the project root for details.

package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	for in, want := range map[string]Role{
		"admin":     RoleAdmin,
		" Manager ": RoleManager,
		"DEVELOPER": RoleDeveloper,
		"viewer":    RoleViewer,
	} {
		got, err := ParseRole(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseRole("owner")
	assert.Error(t, err)
	_, err = ParseRole("")
	assert.Error(t, err)
}

func TestUser_Validate(t *testing.T) {
	assert.NoError(t, devUser.Validate())
	assert.Error(t, User{Role: RoleViewer}.Validate())
	assert.Error(t, User{ID: "1", Role: "Admin"}.Validate(), "roles are matched exactly once parsed")
}

func TestUser_HasPermission(t *testing.T) {
	assert.True(t, adminUser.HasPermission("delete"))
	assert.True(t, User{Role: RoleAdmin}.HasPermission("anything"))
	assert.True(t, devUser.HasPermission("servers:read"))
	assert.False(t, devUser.HasPermission("servers:Read"))
	assert.False(t, User{Role: RoleManager}.HasPermission("read"))
}

func TestUser_CloneIsDeep(t *testing.T) {
	last := time.Now()
	u := User{ID: "1", Role: RoleViewer, Permissions: []string{"a"}, LastLogin: &last}
	c := u.clone()

	c.Permissions[0] = "b"
	*c.LastLogin = last.Add(time.Hour)

	assert.Equal(t, "a", u.Permissions[0])
	assert.Equal(t, last, *u.LastLogin)
}
