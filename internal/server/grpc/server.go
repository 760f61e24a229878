// Package grpc exposes the secret vault of the calling user over gRPC.
package grpc

import (
	"context"
	"errors"
	"net"

	"github.com/dmitrijs2005/sbetterfy/internal/logging"
	"github.com/dmitrijs2005/sbetterfy/internal/server/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// SecretVault is the part of *vault.Vault served over gRPC. Errors keep
// the vault's sentinels so they can be mapped to status codes.
type SecretVault interface {
	EncryptField(ctx context.Context, userID string, field models.SecretField, plaintext string) error
	DecryptField(ctx context.Context, userID string, field models.SecretField) (string, error)
	HasField(ctx context.Context, userID string, field models.SecretField) (bool, error)
	ClearSecret(ctx context.Context, userID string, field models.SecretField) error
}

type GRPCServer struct {
	address   string
	vault     SecretVault
	logger    logging.Logger
	jwtSecret []byte
}

func NewGRPCServer(a string, l logging.Logger, v SecretVault, secretKey string) (*GRPCServer, error) {
	if secretKey == "" {
		return nil, errors.New("grpc server: empty jwt secret")
	}
	if v == nil {
		return nil, errors.New("grpc server: nil vault")
	}
	return &GRPCServer{
		address:   a,
		logger:    l.With("module", "grpc_server"),
		vault:     v,
		jwtSecret: []byte(secretKey),
	}, nil
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is cancelled.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {

	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.accessTokenInterceptor))

	RegisterSecretServiceServer(srv, s)

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		hs.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(lis); err != nil {
		return err
	}

	return nil
}
