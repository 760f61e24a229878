package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/sbetterfy/internal/common"
	"github.com/dmitrijs2005/sbetterfy/internal/server/models"
	"github.com/dmitrijs2005/sbetterfy/internal/vault"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// msgReenter is returned when a stored secret no longer decrypts.
const msgReenter = "stored secret can no longer be read, please enter it again"

func toStatus(err error) error {
	switch {
	case errors.Is(err, vault.ErrAbsent):
		return status.Error(codes.NotFound, "secret not set")
	case errors.Is(err, vault.ErrUnreadable):
		return status.Error(codes.FailedPrecondition, msgReenter)
	case errors.Is(err, vault.ErrInvalidField),
		errors.Is(err, vault.ErrInvalidUser),
		errors.Is(err, common.ErrorValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, vault.ErrStore):
		return status.Error(codes.Unavailable, "secret store unavailable")
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

func (s *GRPCServer) callerAndField(ctx context.Context, name string) (string, models.SecretField, error) {
	userID, ok := UserIDFromContext(ctx)
	if !ok {
		return "", "", status.Error(codes.Unauthenticated, "missing token")
	}
	field, err := models.ParseSecretField(name)
	if err != nil {
		return "", "", status.Error(codes.InvalidArgument, err.Error())
	}
	return userID, field, nil
}

func (s *GRPCServer) SaveSecret(ctx context.Context, req *SaveSecretRequest) (*SaveSecretResponse, error) {
	userID, field, err := s.callerAndField(ctx, req.Field)
	if err != nil {
		return nil, err
	}

	if err := s.vault.EncryptField(ctx, userID, field, req.Value); err != nil {
		s.logger.Error(ctx, "save secret failed", "user_id", userID, "field", req.Field, "error", err)
		return nil, toStatus(err)
	}

	s.logger.Info(ctx, "secret saved", "user_id", userID, "field", req.Field)
	return &SaveSecretResponse{}, nil
}

func (s *GRPCServer) LoadSecret(ctx context.Context, req *LoadSecretRequest) (*LoadSecretResponse, error) {
	userID, field, err := s.callerAndField(ctx, req.Field)
	if err != nil {
		return nil, err
	}

	value, err := s.vault.DecryptField(ctx, userID, field)
	if err != nil {
		if !errors.Is(err, vault.ErrAbsent) {
			s.logger.Warn(ctx, "load secret failed", "user_id", userID, "field", req.Field, "error", err)
		}
		return nil, toStatus(err)
	}

	return &LoadSecretResponse{Value: value}, nil
}

func (s *GRPCServer) HasSecret(ctx context.Context, req *HasSecretRequest) (*HasSecretResponse, error) {
	userID, field, err := s.callerAndField(ctx, req.Field)
	if err != nil {
		return nil, err
	}

	set, err := s.vault.HasField(ctx, userID, field)
	if err != nil {
		return nil, toStatus(err)
	}
	return &HasSecretResponse{Set: set}, nil
}

func (s *GRPCServer) ClearSecret(ctx context.Context, req *ClearSecretRequest) (*ClearSecretResponse, error) {
	userID, field, err := s.callerAndField(ctx, req.Field)
	if err != nil {
		return nil, err
	}

	if err := s.vault.ClearSecret(ctx, userID, field); err != nil {
		s.logger.Error(ctx, "clear secret failed", "user_id", userID, "field", req.Field, "error", err)
		return nil, toStatus(err)
	}
	return &ClearSecretResponse{}, nil
}
