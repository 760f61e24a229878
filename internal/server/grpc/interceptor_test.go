package grpc

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/sbetterfy/internal/common"
	"github.com/dmitrijs2005/sbetterfy/internal/logging"
	"github.com/dmitrijs2005/sbetterfy/internal/server/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const testSecret = "super-secret"

// helper to build server
func newTestServer(t *testing.T, v SecretVault) *GRPCServer {
	t.Helper()
	s, err := NewGRPCServer("127.0.0.1:0", logging.Nop{}, v, testSecret)
	if err != nil {
		t.Fatalf("NewGRPCServer error: %v", err)
	}
	return s
}

var saveInfo = &grpc.UnaryServerInfo{FullMethod: "/" + ServiceName + "/SaveSecret"}

func TestInterceptor_OtherService_AllowsWithoutToken(t *testing.T) {
	s := newTestServer(t, newFakeVault())

	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}
	handlerCalled := false

	h := func(ctx context.Context, req interface{}) (interface{}, error) {
		handlerCalled = true
		return "ok", nil
	}

	resp, err := s.accessTokenInterceptor(context.Background(), nil, info, h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !handlerCalled {
		t.Fatal("handler was not called")
	}
	if resp != "ok" {
		t.Fatalf("unexpected handler resp: %v", resp)
	}
}

func TestInterceptor_MissingToken(t *testing.T) {
	s := newTestServer(t, newFakeVault())

	h := func(ctx context.Context, req interface{}) (interface{}, error) {
		t.Fatal("handler should not be called when token missing")
		return nil, nil
	}

	_, err := s.accessTokenInterceptor(context.Background(), nil, saveInfo, h)
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", status.Code(err))
	}
	if status.Convert(err).Message() != "missing token" {
		t.Fatalf("expected 'missing token', got %q", status.Convert(err).Message())
	}
}

func TestInterceptor_InvalidToken(t *testing.T) {
	s := newTestServer(t, newFakeVault())

	expired, err := auth.GenerateToken("user-1", []byte(testSecret), -time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}
	otherKey, err := auth.GenerateToken("user-1", []byte("another-secret"), time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	for name, token := range map[string]string{
		"garbage":   "not-a-valid-jwt",
		"expired":   expired,
		"other key": otherKey,
	} {
		t.Run(name, func(t *testing.T) {
			md := metadata.New(map[string]string{common.AccessTokenHeaderName: token})
			ctx := metadata.NewIncomingContext(context.Background(), md)

			h := func(ctx context.Context, req interface{}) (interface{}, error) {
				t.Fatal("handler should not be called for invalid token")
				return nil, nil
			}

			_, err := s.accessTokenInterceptor(ctx, nil, saveInfo, h)
			if status.Code(err) != codes.Unauthenticated {
				t.Fatalf("expected Unauthenticated, got %v", status.Code(err))
			}
		})
	}
}

func TestInterceptor_ValidToken_SetsUserID(t *testing.T) {
	s := newTestServer(t, newFakeVault())

	userID := "user-123"
	token, err := auth.GenerateToken(userID, []byte(testSecret), time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	md := metadata.New(map[string]string{common.AccessTokenHeaderName: token})
	ctx := metadata.NewIncomingContext(context.Background(), md)

	var got string
	h := func(ctx context.Context, req interface{}) (interface{}, error) {
		got, _ = UserIDFromContext(ctx)
		return "ok", nil
	}

	resp, err := s.accessTokenInterceptor(ctx, nil, saveInfo, h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp != "ok" {
		t.Fatalf("unexpected handler resp: %v", resp)
	}
	if got != userID {
		t.Fatalf("user id not propagated in context: got %v want %v", got, userID)
	}
}
