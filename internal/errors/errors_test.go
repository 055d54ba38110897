// Copyright (c) 2025 Universal MCP
// Licensed under the MIT License. See LICENSE file in the project root for details.

package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestE_Error(t *testing.T) {
	assert.Equal(t, "timeout: login timed out", New(Timeout, "login timed out").Error())
	assert.Equal(t,
		"service_unavailable: cannot reach server: dial tcp: refused",
		Wrap(ServiceUnavailable, "cannot reach server", stderrors.New("dial tcp: refused")).Error(),
	)
}

func TestE_IsMatchesByKind(t *testing.T) {
	cause := stderrors.New("401")
	err := fmt.Errorf("verify: %w", Wrap(InvalidCredentials, "wrong password", cause))

	assert.True(t, stderrors.Is(err, ErrInvalidCredentials))
	assert.False(t, stderrors.Is(err, ErrInvalidToken))
	assert.True(t, stderrors.Is(err, cause))
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "nil", err: nil, want: Unknown},
		{name: "plain", err: stderrors.New("boom"), want: Unknown},
		{name: "direct", err: ErrTimeout, want: Timeout},
		{name: "wrapped", err: fmt.Errorf("ctx: %w", New(StoreUnavailable, "locked")), want: StoreUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestMessageOf(t *testing.T) {
	assert.Equal(t, "", MessageOf(nil))
	assert.Equal(t, "invalid email or password", MessageOf(fmt.Errorf("x: %w", ErrInvalidCredentials)))
	assert.Equal(t, "boom", MessageOf(stderrors.New("boom")))
}
