package grpc

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified name of the secret service.
const ServiceName = "sbetterfy.vault.v1.SecretService"

type SaveSecretRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

type SaveSecretResponse struct{}

type LoadSecretRequest struct {
	Field string `json:"field"`
}

type LoadSecretResponse struct {
	Value string `json:"value"`
}

type HasSecretRequest struct {
	Field string `json:"field"`
}

type HasSecretResponse struct {
	Set bool `json:"set"`
}

type ClearSecretRequest struct {
	Field string `json:"field"`
}

type ClearSecretResponse struct{}

// SecretServiceServer is implemented by GRPCServer.
type SecretServiceServer interface {
	SaveSecret(context.Context, *SaveSecretRequest) (*SaveSecretResponse, error)
	LoadSecret(context.Context, *LoadSecretRequest) (*LoadSecretResponse, error)
	HasSecret(context.Context, *HasSecretRequest) (*HasSecretResponse, error)
	ClearSecret(context.Context, *ClearSecretRequest) (*ClearSecretResponse, error)
}

// unary builds a method descriptor the same way generated code does, so
// server interceptors see every call.
func unary[Req, Resp any](name string, call func(SecretServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(SecretServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(SecretServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// SecretServiceDesc describes SecretService without generated stubs.
var SecretServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SecretServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("SaveSecret", SecretServiceServer.SaveSecret),
		unary("LoadSecret", SecretServiceServer.LoadSecret),
		unary("HasSecret", SecretServiceServer.HasSecret),
		unary("ClearSecret", SecretServiceServer.ClearSecret),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "sbetterfy/vault/v1/secret.proto",
}

// RegisterSecretServiceServer registers srv on s.
func RegisterSecretServiceServer(s grpc.ServiceRegistrar, srv SecretServiceServer) {
	s.RegisterService(&SecretServiceDesc, srv)
}
