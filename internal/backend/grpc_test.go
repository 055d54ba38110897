// Copyright (c) 2025 Universal MCP
// Licensed under the MIT License. See LICENSE file in the project root for details.

package backend

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	errs "universalmcp/cli/internal/errors"
	"universalmcp/cli/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
)

// memoryAPI is an in-memory credential service served over bufconn.
type memoryAPI struct {
	mu       sync.Mutex
	password string
	user     session.User
	tokens   map[string]bool
	delay    time.Duration
}

func newMemoryAPI() *memoryAPI {
	return &memoryAPI{
		password: "correct horse",
		user: session.User{ID: "u1", Name: "Ada", Email: "ada@example.com", Role: session.RoleDeveloper,
			Permissions: []string{"servers:read"}},
		tokens: map[string]bool{},
	}
}

func (m *memoryAPI) VerifyCredentials(ctx context.Context, email, password string) (session.User, string, error) {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return session.User{}, "", ctx.Err()
		}
	}
	if email != m.user.Email || password != m.password {
		return session.User{}, "", errs.ErrInvalidCredentials
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens["tok-1"] = true
	return m.user, "tok-1", nil
}

func (m *memoryAPI) ValidateToken(_ context.Context, token string) (session.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.tokens[token] {
		return session.User{}, errs.ErrInvalidToken
	}
	return m.user, nil
}

func (m *memoryAPI) Revoke(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, token)
	return nil
}

func (m *memoryAPI) GetVersion(context.Context) (string, error) { return "mem-1", nil }
func (m *memoryAPI) Close() error                               { return nil }

func newTestGRPC(t *testing.T, api API) *GRPC {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterGRPCServer(srv, api)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	client := NewGRPC(conn, nil)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestGRPC_LoginValidateRevoke(t *testing.T) {
	client := newTestGRPC(t, newMemoryAPI())
	ctx := context.Background()

	user, token, err := client.VerifyCredentials(ctx, "ada@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)
	assert.Equal(t, "Ada", user.Name)
	assert.Equal(t, session.RoleDeveloper, user.Role)
	assert.Equal(t, []string{"servers:read"}, user.Permissions)

	got, err := client.ValidateToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	require.NoError(t, client.Revoke(ctx, token))
	_, err = client.ValidateToken(ctx, token)
	assert.True(t, errors.Is(err, errs.ErrInvalidToken))
}

func TestGRPC_WrongPassword(t *testing.T) {
	client := newTestGRPC(t, newMemoryAPI())

	_, _, err := client.VerifyCredentials(context.Background(), "ada@example.com", "nope")
	assert.True(t, errors.Is(err, errs.ErrInvalidCredentials))
	assert.Equal(t, "invalid email or password", errs.MessageOf(err))
}

func TestGRPC_EmptyCredentialsRejectedByServer(t *testing.T) {
	client := newTestGRPC(t, newMemoryAPI())

	_, _, err := client.VerifyCredentials(context.Background(), "", "")
	assert.True(t, errors.Is(err, errs.ErrInvalidCredentials))
}

func TestGRPC_Deadline(t *testing.T) {
	api := newMemoryAPI()
	api.delay = time.Second
	client := newTestGRPC(t, api)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, _, err := client.VerifyCredentials(ctx, "ada@example.com", "correct horse")
	assert.ErrorIs(t, err, errs.ErrTimeout)
}

func TestGRPC_GetVersion(t *testing.T) {
	client := newTestGRPC(t, newMemoryAPI())
	v, err := client.GetVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "mem-1", v)
}

func TestGRPC_ValidateEmptyToken(t *testing.T) {
	client := newTestGRPC(t, newMemoryAPI())
	_, err := client.ValidateToken(context.Background(), "")
	assert.True(t, errors.Is(err, errs.ErrInvalidToken))
}
