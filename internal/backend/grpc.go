// Copyright (c) 2025 Universal MCP
// Licensed under the MIT License. See LICENSE file in the project root for details.

package backend

import (
	"context"
	"crypto/tls"
	"errors"
	"strings"

	errs "universalmcp/cli/internal/errors"
	"universalmcp/cli/internal/session"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// gRPC surface of the credential service. Messages are google.protobuf.Struct
// so no generated stubs are required on either side.
const (
	grpcServiceName   = "universalmcp.auth.v1.CredentialService"
	methodVerify      = "/" + grpcServiceName + "/VerifyCredentials"
	methodValidate    = "/" + grpcServiceName + "/ValidateToken"
	methodRevoke      = "/" + grpcServiceName + "/Revoke"
	methodVersion     = "/" + grpcServiceName + "/GetVersion"
	authorizationMeta = "authorization"
)

// GRPC implements API against a gRPC credential service.
type GRPC struct {
	conn *grpc.ClientConn
	log  *zap.Logger
}

// DialGRPC connects to addr. TLS is used unless plaintext is set.
func DialGRPC(addr string, plaintext bool, log *zap.Logger) (*GRPC, error) {
	if addr == "" {
		return nil, errors.New("grpc address is empty")
	}
	creds := credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	if plaintext {
		creds = insecure.NewCredentials()
	}
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(creds),
		grpc.WithUserAgent(UserAgent),
	)
	if err != nil {
		return nil, errs.Wrap(errs.ServiceUnavailable, "cannot set up the gRPC connection", err)
	}
	return NewGRPC(conn, log), nil
}

// NewGRPC wraps an existing connection. The GRPC owns conn afterwards.
func NewGRPC(conn *grpc.ClientConn, log *zap.Logger) *GRPC {
	if log == nil {
		log = zap.NewNop()
	}
	return &GRPC{conn: conn, log: log}
}

// VerifyCredentials calls VerifyCredentials{email, password} → {token, user}.
func (g *GRPC) VerifyCredentials(ctx context.Context, email, password string) (session.User, string, error) {
	req, err := structpb.NewStruct(map[string]any{"email": email, "password": password})
	if err != nil {
		return session.User{}, "", err
	}
	resp := new(structpb.Struct)
	if err := g.conn.Invoke(ctx, methodVerify, req, resp); err != nil {
		return session.User{}, "", grpcError(err, errs.InvalidCredentials, "invalid email or password")
	}

	token := strings.TrimSpace(resp.GetFields()["token"].GetStringValue())
	if token == "" {
		return session.User{}, "", errs.New(errs.ServiceUnavailable, "credential service returned no session token")
	}
	user, err := decodeProfile(resp.GetFields()["user"].GetStructValue().AsMap())
	if err != nil {
		return session.User{}, "", errs.Wrap(errs.ServiceUnavailable, "credential service returned an unusable profile", err)
	}
	return user, token, nil
}

// ValidateToken calls ValidateToken with the token in authorization metadata.
func (g *GRPC) ValidateToken(ctx context.Context, token string) (session.User, error) {
	if token == "" {
		return session.User{}, errs.ErrInvalidToken
	}
	resp := new(structpb.Struct)
	if err := g.conn.Invoke(withBearer(ctx, token), methodValidate, &structpb.Struct{}, resp); err != nil {
		return session.User{}, grpcError(err, errs.InvalidToken, "session token is no longer valid")
	}
	user, err := decodeProfile(resp.GetFields()["user"].GetStructValue().AsMap())
	if err != nil {
		return session.User{}, errs.Wrap(errs.ServiceUnavailable, "credential service returned an unusable profile", err)
	}
	return user, nil
}

// Revoke invalidates token on the server.
func (g *GRPC) Revoke(ctx context.Context, token string) error {
	if err := g.conn.Invoke(withBearer(ctx, token), methodRevoke, &structpb.Struct{}, new(structpb.Struct)); err != nil {
		if status.Code(err) == codes.Unauthenticated {
			return nil
		}
		return grpcError(err, errs.InvalidToken, "session token is no longer valid")
	}
	return nil
}

// GetVersion asks the server for its version.
func (g *GRPC) GetVersion(ctx context.Context) (string, error) {
	resp := new(structpb.Struct)
	if err := g.conn.Invoke(ctx, methodVersion, &structpb.Struct{}, resp); err != nil {
		if status.Code(err) == codes.Unimplemented {
			return "unknown", nil
		}
		return "", grpcError(err, errs.ServiceUnavailable, "credential service unavailable")
	}
	if v := resp.GetFields()["version"].GetStringValue(); v != "" {
		return v, nil
	}
	return "unknown", nil
}

// Close closes the connection.
func (g *GRPC) Close() error {
	return g.conn.Close()
}

func withBearer(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, authorizationMeta, "Bearer "+token)
}

// grpcError maps a status code onto an error kind.
func grpcError(err error, rejectKind errs.Kind, rejectMsg string) error {
	st := status.Convert(err)
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied, codes.InvalidArgument, codes.NotFound:
		if st.Message() != "" {
			rejectMsg = st.Message()
		}
		return errs.Wrap(rejectKind, rejectMsg, err)
	case codes.DeadlineExceeded:
		return errs.Wrap(errs.Timeout, "the credential service did not answer in time, please try again", err)
	case codes.Canceled:
		return errs.Wrap(errs.Canceled, "request was canceled", err)
	default:
		return errs.Wrap(errs.ServiceUnavailable, "cannot reach the credential service", err)
	}
}
