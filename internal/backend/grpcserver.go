// Copyright (c) 2025 Universal MCP
// Licensed under the MIT License. See LICENSE file in the project root for details.

package backend

import (
	"context"

	errs "universalmcp/cli/internal/errors"
	"universalmcp/cli/internal/session"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// RegisterGRPCServer exposes api as the gRPC credential service on s, so a
// database-backed API can be shared by clients using the grpc transport.
func RegisterGRPCServer(s grpc.ServiceRegistrar, api API) {
	s.RegisterService(&credentialServiceDesc, api)
}

var credentialServiceDesc = grpc.ServiceDesc{
	ServiceName: grpcServiceName,
	HandlerType: (*API)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "VerifyCredentials", Handler: unaryHandler(methodVerify, serveVerify)},
		{MethodName: "ValidateToken", Handler: unaryHandler(methodValidate, serveValidate)},
		{MethodName: "Revoke", Handler: unaryHandler(methodRevoke, serveRevoke)},
		{MethodName: "GetVersion", Handler: unaryHandler(methodVersion, serveVersion)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "universalmcp/auth/v1/credential.proto",
}

type structHandler func(ctx context.Context, api API, req *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, fn structHandler) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		call := func(ctx context.Context, req any) (any, error) {
			return fn(ctx, srv.(API), req.(*structpb.Struct))
		}
		if interceptor == nil {
			return call(ctx, in)
		}
		return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}, call)
	}
}

func serveVerify(ctx context.Context, api API, req *structpb.Struct) (*structpb.Struct, error) {
	email := req.GetFields()["email"].GetStringValue()
	password := req.GetFields()["password"].GetStringValue()
	if email == "" || password == "" {
		return nil, status.Error(codes.InvalidArgument, "email and password are required")
	}
	user, token, err := api.VerifyCredentials(ctx, email, password)
	if err != nil {
		return nil, statusOf(err)
	}
	return userResponse(user, map[string]any{"token": token})
}

func serveValidate(ctx context.Context, api API, _ *structpb.Struct) (*structpb.Struct, error) {
	token, err := bearerFromIncoming(ctx)
	if err != nil {
		return nil, err
	}
	user, err := api.ValidateToken(ctx, token)
	if err != nil {
		return nil, statusOf(err)
	}
	return userResponse(user, nil)
}

func serveRevoke(ctx context.Context, api API, _ *structpb.Struct) (*structpb.Struct, error) {
	token, err := bearerFromIncoming(ctx)
	if err != nil {
		return nil, err
	}
	if err := api.Revoke(ctx, token); err != nil {
		return nil, statusOf(err)
	}
	return &structpb.Struct{}, nil
}

func serveVersion(ctx context.Context, api API, _ *structpb.Struct) (*structpb.Struct, error) {
	v, err := api.GetVersion(ctx)
	if err != nil {
		return nil, statusOf(err)
	}
	return structpb.NewStruct(map[string]any{"version": v})
}

func userResponse(u session.User, extra map[string]any) (*structpb.Struct, error) {
	out := map[string]any{"user": encodeProfile(u)}
	for k, v := range extra {
		out[k] = v
	}
	s, err := structpb.NewStruct(out)
	if err != nil {
		return nil, status.Error(codes.Internal, "cannot encode user profile")
	}
	return s, nil
}

func bearerFromIncoming(ctx context.Context) (string, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	for _, v := range md.Get(authorizationMeta) {
		if t := parseBearerToken(v); t != "" {
			return t, nil
		}
	}
	return "", status.Error(codes.Unauthenticated, "missing bearer token")
}

// statusOf maps an error kind onto a gRPC status, keeping the user message.
func statusOf(err error) error {
	msg := errs.MessageOf(err)
	switch errs.KindOf(err) {
	case errs.InvalidCredentials, errs.InvalidToken:
		return status.Error(codes.Unauthenticated, msg)
	case errs.Timeout:
		return status.Error(codes.DeadlineExceeded, msg)
	case errs.Canceled:
		return status.Error(codes.Canceled, msg)
	default:
		return status.Error(codes.Unavailable, msg)
	}
}
