// Package httpapi is the browser-facing HTTP surface of the vault: the
// Spotify connect redirect and callback, secret status and the credential
// forms, plus health and metrics.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/sbetterfy/internal/common"
	"github.com/dmitrijs2005/sbetterfy/internal/logging"
	"github.com/dmitrijs2005/sbetterfy/internal/server/auth"
	"github.com/dmitrijs2005/sbetterfy/internal/server/models"
	"github.com/dmitrijs2005/sbetterfy/internal/server/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/oauth2"
)

const stateCookie = "oauth_state"

// Credentials is the part of *services.CredentialService used here.
type Credentials interface {
	Status(ctx context.Context, userID string) map[models.SecretField]bool
	SaveSpotifyCredentials(ctx context.Context, userID string, creds services.SpotifyCredentials) error
	SaveAIKey(ctx context.Context, userID, apiKey string) error
}

// SpotifyConnector is the part of *services.SpotifyAuthService used here.
type SpotifyConnector interface {
	ValidateCredentials(ctx context.Context, creds services.SpotifyCredentials) error
	Begin(ctx context.Context, userID, state string) (string, error)
	Complete(ctx context.Context, userID, code string) (*oauth2.Token, error)
}

// Options configure a Server. Metrics and Health may be nil.
type Options struct {
	Address string
	// JWTSecret verifies bearer tokens and keys the state cookie.
	JWTSecret string
	// AppURL is where the browser lands after the Spotify callback.
	AppURL  string
	Metrics http.Handler
	Health  func(ctx context.Context) error
}

type Server struct {
	opts      Options
	logger    logging.Logger
	creds     Credentials
	spotify   SpotifyConnector
	jwtSecret []byte
	stateKey  []byte
	now       func() time.Time
}

func NewServer(opts Options, l logging.Logger, creds Credentials, spotify SpotifyConnector) (*Server, error) {
	if opts.JWTSecret == "" {
		return nil, errors.New("http server: empty jwt secret")
	}
	if opts.AppURL == "" {
		opts.AppURL = "/"
	}
	return &Server{
		opts:      opts,
		logger:    l.With("module", "http_server"),
		creds:     creds,
		spotify:   spotify,
		jwtSecret: []byte(opts.JWTSecret),
		stateKey:  []byte("oauth-state:" + opts.JWTSecret),
		now:       time.Now,
	}, nil
}

// Handler returns the routed handler with security headers applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer, securityHeaders)

	r.Get("/connect/spotify", s.connectSpotify)
	r.Get("/callback", s.callback)
	r.Route("/api", func(r chi.Router) {
		r.Get("/secrets/status", s.secretStatus)
		r.Post("/spotify-credentials", s.saveSpotifyCredentials)
		r.Post("/ai-key", s.saveAIKey)
	})
	r.Get("/healthz", s.healthz)
	if s.opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.opts.Metrics)
	}
	return r
}

// Run serves until ctx is cancelled and then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.opts.Address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, lis)
}

func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// userFromRequest reads the JWT from the Authorization header. When
// allowCookie is set an access_token cookie is accepted too, for plain
// browser navigation.
func (s *Server) userFromRequest(r *http.Request, allowCookie bool) (string, bool) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok && allowCookie {
		if c, err := r.Cookie("access_token"); err == nil {
			token, ok = c.Value, true
		}
	}
	if !ok || token == "" {
		return "", false
	}
	userID, err := auth.GetUserIDFromToken(token, s.jwtSecret)
	if err != nil {
		return "", false
	}
	return userID, true
}

func (s *Server) requireUser(w http.ResponseWriter, r *http.Request, allowCookie bool) (string, bool) {
	userID, ok := s.userFromRequest(r, allowCookie)
	if !ok {
		respondJSONError(w, http.StatusUnauthorized, "authentication required")
		return "", false
	}
	return userID, true
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if s.opts.Health != nil {
		if err := s.opts.Health(r.Context()); err != nil {
			s.logger.Warn(r.Context(), "health check failed", "error", err)
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func randomState() (string, error) {
	return common.MakeRandHexString(16)
}
