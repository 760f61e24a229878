package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/dmitrijs2005/sbetterfy/internal/common"
	"github.com/dmitrijs2005/sbetterfy/internal/logging"
	"github.com/dmitrijs2005/sbetterfy/internal/server/models"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/oauth2/spotify"
)

// DefaultSpotifyScopes are requested when connecting an account.
var DefaultSpotifyScopes = []string{"user-library-read", "playlist-modify-public", "user-top-read"}

var (
	// ErrNoCredentials means the user has not stored a Spotify client id and
	// secret yet.
	ErrNoCredentials = errors.New("spotify credentials not set")
	// ErrNotConnected means no Spotify tokens are stored for the user.
	ErrNotConnected = errors.New("spotify account not connected")
	// ErrInvalidCredentials means Spotify rejected the client id/secret.
	ErrInvalidCredentials = errors.New("invalid spotify credentials")
)

// SpotifyAuthService runs the authorization code flow (with PKCE) using the
// Spotify app of each user. The verifier is kept in the vault between the
// redirect and the callback.
type SpotifyAuthService struct {
	creds       *CredentialService
	vault       SecretVault
	logger      logging.Logger
	endpoint    oauth2.Endpoint
	redirectURL string
	scopes      []string
	httpClient  *http.Client
}

type SpotifyAuthOption func(*SpotifyAuthService)

// WithEndpoint replaces the Spotify accounts endpoint, mostly in tests.
func WithEndpoint(e oauth2.Endpoint) SpotifyAuthOption {
	return func(s *SpotifyAuthService) { s.endpoint = e }
}

func WithHTTPClient(c *http.Client) SpotifyAuthOption {
	return func(s *SpotifyAuthService) { s.httpClient = c }
}

func WithScopes(scopes ...string) SpotifyAuthOption {
	return func(s *SpotifyAuthService) { s.scopes = scopes }
}

func NewSpotifyAuthService(v SecretVault, redirectURL string, logger logging.Logger, opts ...SpotifyAuthOption) *SpotifyAuthService {
	s := &SpotifyAuthService{
		creds:       NewCredentialService(v),
		vault:       v,
		logger:      logger,
		endpoint:    spotify.Endpoint,
		redirectURL: redirectURL,
		scopes:      DefaultSpotifyScopes,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SpotifyAuthService) ctx(ctx context.Context) context.Context {
	if s.httpClient != nil {
		return context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	}
	return ctx
}

func (s *SpotifyAuthService) config(ctx context.Context, userID string) (*oauth2.Config, error) {
	creds, ok, err := s.creds.GetSpotifyCredentials(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoCredentials
	}
	return &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint:     s.endpoint,
		RedirectURL:  s.redirectURL,
		Scopes:       s.scopes,
	}, nil
}

// ValidateCredentials asks Spotify for a client-credentials token to check
// that the pair is accepted.
func (s *SpotifyAuthService) ValidateCredentials(ctx context.Context, creds SpotifyCredentials) error {
	cc := &clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     s.endpoint.TokenURL,
		AuthStyle:    s.endpoint.AuthStyle,
	}
	if _, err := cc.Token(s.ctx(ctx)); err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			return fmt.Errorf("%w: %s", ErrInvalidCredentials, re.ErrorCode)
		}
		return fmt.Errorf("validate spotify credentials: %w", err)
	}
	return nil
}

// Begin starts connecting the user's Spotify account and returns the URL to
// redirect the browser to. state is echoed back on the callback.
func (s *SpotifyAuthService) Begin(ctx context.Context, userID, state string) (string, error) {
	cfg, err := s.config(ctx, userID)
	if err != nil {
		return "", err
	}

	verifier := oauth2.GenerateVerifier()
	if err := s.vault.SaveSecret(ctx, userID, models.PendingAuthVerifier, verifier); err != nil {
		return "", fmt.Errorf("store verifier: %w", err)
	}

	return cfg.AuthCodeURL(state,
		oauth2.S256ChallengeOption(verifier),
		oauth2.SetAuthURLParam("show_dialog", "true"),
	), nil
}

// Complete exchanges the authorization code and stores the tokens.
func (s *SpotifyAuthService) Complete(ctx context.Context, userID, code string) (*oauth2.Token, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: missing code", common.ErrorValidation)
	}
	cfg, err := s.config(ctx, userID)
	if err != nil {
		return nil, err
	}

	verifier, ok, err := s.vault.LoadSecret(ctx, userID, models.PendingAuthVerifier)
	if err != nil {
		return nil, fmt.Errorf("load verifier: %w", err)
	}
	if !ok {
		return nil, common.ErrNoPendingAuth
	}

	tok, err := cfg.Exchange(s.ctx(ctx), code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	if err := s.creds.SaveSpotifyTokens(ctx, userID, tok); err != nil {
		return nil, fmt.Errorf("store tokens: %w", err)
	}
	if err := s.vault.ClearSecret(ctx, userID, models.PendingAuthVerifier); err != nil {
		s.logger.Warn(ctx, "could not clear pending verifier", "user_id", userID, "error", err)
	}

	s.logger.Info(ctx, "spotify account connected", "user_id", userID)
	return tok, nil
}

// TokenSource returns a source of valid access tokens for the user.
// Refreshed tokens are written back to the vault.
func (s *SpotifyAuthService) TokenSource(ctx context.Context, userID string) (oauth2.TokenSource, error) {
	cfg, err := s.config(ctx, userID)
	if err != nil {
		return nil, err
	}
	tok, ok, err := s.creds.GetSpotifyTokens(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotConnected
	}

	return &persistingTokenSource{
		src:     cfg.TokenSource(s.ctx(ctx), tok),
		current: tok.AccessToken,
		save: func(t *oauth2.Token) error {
			return s.creds.SaveSpotifyTokens(ctx, userID, t)
		},
		onSaveError: func(err error) {
			s.logger.Error(ctx, "could not store refreshed token", "user_id", userID, "error", err)
		},
	}, nil
}

type persistingTokenSource struct {
	mu          sync.Mutex
	src         oauth2.TokenSource
	current     string
	save        func(*oauth2.Token) error
	onSaveError func(error)
}

func (p *persistingTokenSource) Token() (*oauth2.Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	t, err := p.src.Token()
	if err != nil {
		return nil, err
	}
	if t.AccessToken != p.current {
		// A failed save only costs another refresh later.
		if err := p.save(t); err != nil {
			p.onSaveError(err)
		} else {
			p.current = t.AccessToken
		}
	}
	return t, nil
}
