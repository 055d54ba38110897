// Copyright (c) 2025 Universal MCP
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"fmt"
	"net"
	"time"

	"universalmcp/cli/internal/backend"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

var serveListen string

// serveCmd exposes the configured credential service over gRPC, typically to
// share a postgres user database with clients using the grpc transport.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the credential service over gRPC",
	Long: `The serve command exposes the configured credential service as a gRPC
service, so other machines can sign in with backend.transport set to grpc.
It is most useful with the postgres transport. The server runs until
interrupted.`,
	Annotations: map[string]string{needsBackend: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		a := appFrom(cmd)
		ctx := cmd.Context()

		lis, err := net.Listen("tcp", serveListen)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", serveListen, err)
		}
		srv := grpc.NewServer(grpc.ChainUnaryInterceptor(accessLog(a.log.Named("serve"))))
		backend.RegisterGRPCServer(srv, a.api)

		served := make(chan error, 1)
		go func() { served <- srv.Serve(lis) }()
		pterm.Info.Printfln("Serving %s credential service on %s", a.cfg.Backend.Transport, lis.Addr())

		select {
		case err := <-served:
			return err
		case <-ctx.Done():
		}

		stopped := make(chan struct{})
		go func() {
			srv.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(5 * time.Second):
			srv.Stop()
		}
		pterm.Info.Println("Server stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "127.0.0.1:50051", "Address to listen on")
	rootCmd.AddCommand(serveCmd)
}

// accessLog logs every call with its method, status code and duration.
func accessLog(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		log.Info("rpc",
			zap.String("method", info.FullMethod),
			zap.Stringer("code", status.Code(err)),
			zap.Duration("took", time.Since(start)))
		return resp, err
	}
}
