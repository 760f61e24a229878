// Package client is a Go client for the secret service of a running
// sbetterfy server.
package client

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/sbetterfy/internal/common"
	gs "github.com/dmitrijs2005/sbetterfy/internal/server/grpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const callTimeout = 10 * time.Second

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	accessToken string
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Delete(common.AccessTokenHeaderName)
	md.Set(common.AccessTokenHeaderName, token)

	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	return invoker(withAccessToken(ctx, s.accessToken), method, req, reply, cc, opts...)
}

// NewGRPCClient connects to endpointURL and authenticates every call with
// accessToken. Extra dial options are appended, e.g. a custom dialer.
func NewGRPCClient(endpointURL, accessToken string, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL, accessToken: accessToken}

	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.accessTokenInterceptor),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(gs.CodecName)),
	}, opts...)

	conn, err := grpc.NewClient(endpointURL, opts...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	return c, nil
}

func (s *GRPCClient) invoke(ctx context.Context, method string, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	return s.mapError(s.conn.Invoke(ctx, "/"+gs.ServiceName+"/"+method, in, out))
}

func (s *GRPCClient) SaveSecret(ctx context.Context, field, value string) error {
	return s.invoke(ctx, "SaveSecret", &gs.SaveSecretRequest{Field: field, Value: value}, &gs.SaveSecretResponse{})
}

func (s *GRPCClient) LoadSecret(ctx context.Context, field string) (string, error) {
	var resp gs.LoadSecretResponse
	if err := s.invoke(ctx, "LoadSecret", &gs.LoadSecretRequest{Field: field}, &resp); err != nil {
		return "", err
	}
	return resp.Value, nil
}

func (s *GRPCClient) HasSecret(ctx context.Context, field string) (bool, error) {
	var resp gs.HasSecretResponse
	if err := s.invoke(ctx, "HasSecret", &gs.HasSecretRequest{Field: field}, &resp); err != nil {
		return false, err
	}
	return resp.Set, nil
}

func (s *GRPCClient) ClearSecret(ctx context.Context, field string) error {
	return s.invoke(ctx, "ClearSecret", &gs.ClearSecretRequest{Field: field}, &gs.ClearSecretResponse{})
}

func (s *GRPCClient) Close() error {
	return s.conn.Close()
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return ErrUnauthorized
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	case codes.NotFound:
		return ErrNotSet
	case codes.FailedPrecondition:
		return fmt.Errorf("%w: %s", ErrReenter, st.Message())
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", ErrInvalid, st.Message())
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
