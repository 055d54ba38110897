// Copyright (c) 2025 Universal MCP
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package backend provides clients for the credential service that backs a
// universal-mcp session. Three transports implement the same API: the hosted
// REST service (HTTP), a gRPC credential service, and a direct Postgres
// database holding users and sessions.
package backend

import (
	"context"
	"fmt"
	"strings"
	"time"

	"universalmcp/cli/internal/config"
	"universalmcp/cli/internal/session"

	"go.uber.org/zap"
)

// API defines backend operations the CLI depends on.
// Implementations may call real HTTP/gRPC/SQL endpoints or provide mocks for tests.
type API interface {
	session.CredentialService
	session.Revoker
	// GetVersion reports the credential service version for diagnostics.
	GetVersion(ctx context.Context) (string, error)
	// Close releases connections held by the transport.
	Close() error
}

// Options carries dependencies that do not belong in the config file.
type Options struct {
	Logger *zap.Logger
	// PostgresDSN is used by the postgres transport when config leaves it empty
	// (typically loaded from the keychain).
	PostgresDSN string
}

// New creates the API implementation selected by cfg.Backend.Transport.
func New(ctx context.Context, cfg config.Config, opts Options) (API, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	timeout := cfg.Backend.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	switch strings.ToLower(cfg.Backend.Transport) {
	case "", config.TransportHTTP:
		return NewHTTP(cfg.Backend.BaseURL, cfg.Backend.Endpoints,
			WithTimeout(timeout),
			WithCacheTTL(cfg.Backend.CacheTTL),
			WithLogger(log.Named("http")),
		), nil
	case config.TransportGRPC:
		return DialGRPC(cfg.GRPC.Address, cfg.GRPC.Insecure, log.Named("grpc"))
	case config.TransportPostgres:
		dsn := cfg.Postgres.DSN
		if dsn == "" {
			dsn = opts.PostgresDSN
		}
		return OpenPostgres(ctx, dsn, log.Named("postgres"))
	default:
		return nil, fmt.Errorf("unknown backend transport %q", cfg.Backend.Transport)
	}
}
