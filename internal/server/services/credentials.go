// Package services contains server-side business logic on top of the vault:
// the user's Spotify app credentials and tokens, the AI key, the Spotify
// connect flow and ciphertext backups.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/sbetterfy/internal/common"
	"github.com/dmitrijs2005/sbetterfy/internal/server/models"
	"golang.org/x/oauth2"
)

// minSecretLen is the shortest client id, client secret or API key accepted.
const minSecretLen = 10

// SecretVault is the part of *vault.Vault the services need.
type SecretVault interface {
	SaveSecret(ctx context.Context, userID string, field models.SecretField, plaintext string) error
	LoadSecret(ctx context.Context, userID string, field models.SecretField) (string, bool, error)
	HasSecret(ctx context.Context, userID string, field models.SecretField) bool
	ClearSecret(ctx context.Context, userID string, field models.SecretField) error
}

// SpotifyCredentials is the client id/secret of the user's own Spotify app.
type SpotifyCredentials struct {
	ClientID     string
	ClientSecret string
}

// accessTokenRecord is what provider_access_token holds. The refresh token
// lives in its own field.
type accessTokenRecord struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type,omitempty"`
	Expiry      time.Time `json:"expiry"`
}

// CredentialService reads and writes the named secrets of a user.
type CredentialService struct {
	vault SecretVault
}

func NewCredentialService(v SecretVault) *CredentialService {
	return &CredentialService{vault: v}
}

func validateSecret(name, value string) error {
	if len(value) < minSecretLen {
		return fmt.Errorf("%w: %s must be at least %d characters", common.ErrorValidation, name, minSecretLen)
	}
	return nil
}

func (s *CredentialService) SaveSpotifyCredentials(ctx context.Context, userID string, creds SpotifyCredentials) error {
	if err := validateSecret("client id", creds.ClientID); err != nil {
		return err
	}
	if err := validateSecret("client secret", creds.ClientSecret); err != nil {
		return err
	}
	if err := s.vault.SaveSecret(ctx, userID, models.ProviderClientID, creds.ClientID); err != nil {
		return err
	}
	return s.vault.SaveSecret(ctx, userID, models.ProviderClientSecret, creds.ClientSecret)
}

// GetSpotifyCredentials returns ok=false unless both halves are stored.
func (s *CredentialService) GetSpotifyCredentials(ctx context.Context, userID string) (*SpotifyCredentials, bool, error) {
	id, ok, err := s.vault.LoadSecret(ctx, userID, models.ProviderClientID)
	if err != nil || !ok {
		return nil, false, err
	}
	secret, ok, err := s.vault.LoadSecret(ctx, userID, models.ProviderClientSecret)
	if err != nil || !ok {
		return nil, false, err
	}
	return &SpotifyCredentials{ClientID: id, ClientSecret: secret}, true, nil
}

func (s *CredentialService) HasSpotifyCredentials(ctx context.Context, userID string) bool {
	return s.vault.HasSecret(ctx, userID, models.ProviderClientID) &&
		s.vault.HasSecret(ctx, userID, models.ProviderClientSecret)
}

// SaveSpotifyTokens stores tok. A token without a refresh token keeps the
// refresh token already stored, as providers omit it on refresh.
func (s *CredentialService) SaveSpotifyTokens(ctx context.Context, userID string, tok *oauth2.Token) error {
	if tok == nil || tok.AccessToken == "" {
		return fmt.Errorf("%w: empty access token", common.ErrorValidation)
	}

	b, err := json.Marshal(accessTokenRecord{
		AccessToken: tok.AccessToken,
		TokenType:   tok.TokenType,
		Expiry:      tok.Expiry,
	})
	if err != nil {
		return err
	}
	if err := s.vault.SaveSecret(ctx, userID, models.ProviderAccessToken, string(b)); err != nil {
		return err
	}
	if tok.RefreshToken == "" {
		return nil
	}
	return s.vault.SaveSecret(ctx, userID, models.ProviderRefreshToken, tok.RefreshToken)
}

// GetSpotifyTokens returns ok=false unless both tokens are stored.
func (s *CredentialService) GetSpotifyTokens(ctx context.Context, userID string) (*oauth2.Token, bool, error) {
	access, ok, err := s.vault.LoadSecret(ctx, userID, models.ProviderAccessToken)
	if err != nil || !ok {
		return nil, false, err
	}
	refresh, ok, err := s.vault.LoadSecret(ctx, userID, models.ProviderRefreshToken)
	if err != nil || !ok {
		return nil, false, err
	}

	var rec accessTokenRecord
	if err := json.Unmarshal([]byte(access), &rec); err != nil {
		return nil, false, fmt.Errorf("decode access token: %w", err)
	}
	return &oauth2.Token{
		AccessToken:  rec.AccessToken,
		TokenType:    rec.TokenType,
		RefreshToken: refresh,
		Expiry:       rec.Expiry,
	}, true, nil
}

// ClearSpotifyTokens disconnects the Spotify account. The app credentials
// are kept so the user can reconnect.
func (s *CredentialService) ClearSpotifyTokens(ctx context.Context, userID string) error {
	return errors.Join(
		s.vault.ClearSecret(ctx, userID, models.ProviderAccessToken),
		s.vault.ClearSecret(ctx, userID, models.ProviderRefreshToken),
		s.vault.ClearSecret(ctx, userID, models.PendingAuthVerifier),
	)
}

func (s *CredentialService) SaveAIKey(ctx context.Context, userID, apiKey string) error {
	if err := validateSecret("API key", apiKey); err != nil {
		return err
	}
	return s.vault.SaveSecret(ctx, userID, models.AIAPIKey, apiKey)
}

func (s *CredentialService) GetAIKey(ctx context.Context, userID string) (string, bool, error) {
	return s.vault.LoadSecret(ctx, userID, models.AIAPIKey)
}

func (s *CredentialService) HasAIKey(ctx context.Context, userID string) bool {
	return s.vault.HasSecret(ctx, userID, models.AIAPIKey)
}

// Status reports which fields of the user are set. Values are not read.
func (s *CredentialService) Status(ctx context.Context, userID string) map[models.SecretField]bool {
	status := make(map[models.SecretField]bool, len(models.SecretFields))
	for _, f := range models.SecretFields {
		status[f] = s.vault.HasSecret(ctx, userID, f)
	}
	return status
}
