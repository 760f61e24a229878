package httpapi

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/sbetterfy/internal/common"
	"github.com/dmitrijs2005/sbetterfy/internal/server/models"
	"github.com/dmitrijs2005/sbetterfy/internal/server/services"
	"github.com/dmitrijs2005/sbetterfy/internal/vault"
)

// msgReenter tells the user a stored secret has to be entered again.
const msgReenter = "stored credentials can no longer be read, please enter them again"

// errorStatus maps service and vault errors to an HTTP status and a message
// safe to show.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrNoCredentials):
		return http.StatusConflict, "save your Spotify client id and secret first"
	case errors.Is(err, services.ErrInvalidCredentials):
		return http.StatusBadRequest, "Spotify rejected the client id and secret"
	case errors.Is(err, common.ErrNoPendingAuth):
		return http.StatusBadRequest, "no Spotify connection in progress"
	case errors.Is(err, common.ErrorValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, vault.ErrUnreadable):
		return http.StatusConflict, msgReenter
	case errors.Is(err, vault.ErrStore):
		return http.StatusServiceUnavailable, "secret store unavailable"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func (s *Server) respondErr(w http.ResponseWriter, r *http.Request, userID, action string, err error) {
	code, msg := errorStatus(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), action+" failed", "user_id", userID, "error", err)
	} else {
		s.logger.Info(r.Context(), action+" rejected", "user_id", userID, "error", err)
	}
	respondJSONError(w, code, msg)
}

// connectSpotify starts the authorization code flow. The state and the
// user id travel in a signed cookie since the callback carries no JWT.
func (s *Server) connectSpotify(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r, true)
	if !ok {
		return
	}

	state, err := randomState()
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "failed to generate state")
		return
	}

	authURL, err := s.spotify.Begin(r.Context(), userID, state)
	if err != nil {
		s.respondErr(w, r, userID, "spotify connect", err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    signValue(encodeState(state, userID, s.now()), s.stateKey),
		Path:     "/",
		MaxAge:   int(stateMaxAge / time.Second),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, authURL, http.StatusFound)
}

// stateFromCookie returns the state and user id stored by connectSpotify
// unless the cookie is forged or stale.
func (s *Server) stateFromCookie(r *http.Request) (state, userID string, ok bool) {
	c, err := r.Cookie(stateCookie)
	if err != nil {
		return "", "", false
	}
	value, ok := verifyValue(c.Value, s.stateKey)
	if !ok {
		return "", "", false
	}
	return decodeState(value, s.now())
}

func (s *Server) callback(w http.ResponseWriter, r *http.Request) {
	state, userID, ok := s.stateFromCookie(r)
	if !ok || r.URL.Query().Get("state") != state {
		respondJSONError(w, http.StatusBadRequest, "state mismatch")
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Path: "/", MaxAge: -1})

	if reason := r.URL.Query().Get("error"); reason != "" {
		s.logger.Info(r.Context(), "spotify authorization denied", "user_id", userID, "reason", reason)
		s.redirectToApp(w, r, "denied")
		return
	}

	if _, err := s.spotify.Complete(r.Context(), userID, r.URL.Query().Get("code")); err != nil {
		s.respondErr(w, r, userID, "spotify callback", err)
		return
	}
	s.redirectToApp(w, r, "connected")
}

func (s *Server) redirectToApp(w http.ResponseWriter, r *http.Request, result string) {
	target := s.opts.AppURL
	if u, err := url.Parse(target); err == nil {
		q := u.Query()
		q.Set("spotify", result)
		u.RawQuery = q.Encode()
		target = u.String()
	}
	http.Redirect(w, r, target, http.StatusFound)
}

type statusResponse struct {
	SpotifyCredentials bool                        `json:"spotify_credentials"`
	SpotifyConnected   bool                        `json:"spotify_connected"`
	AIKey              bool                        `json:"ai_key"`
	Fields             map[models.SecretField]bool `json:"fields"`
}

// secretStatus reports which secrets the user has set. Values are never
// returned.
func (s *Server) secretStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r, false)
	if !ok {
		return
	}

	fields := s.creds.Status(r.Context(), userID)
	respondJSON(w, http.StatusOK, statusResponse{
		SpotifyCredentials: fields[models.ProviderClientID] && fields[models.ProviderClientSecret],
		SpotifyConnected:   fields[models.ProviderAccessToken] && fields[models.ProviderRefreshToken],
		AIKey:              fields[models.AIAPIKey],
		Fields:             fields,
	})
}

type spotifyCredentialsRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// saveSpotifyCredentials checks the pair against Spotify before storing it.
func (s *Server) saveSpotifyCredentials(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r, false)
	if !ok {
		return
	}

	var req spotifyCredentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	creds := services.SpotifyCredentials{
		ClientID:     strings.TrimSpace(req.ClientID),
		ClientSecret: strings.TrimSpace(req.ClientSecret),
	}
	if creds.ClientID == "" || creds.ClientSecret == "" {
		respondJSONError(w, http.StatusBadRequest, "client_id and client_secret are required")
		return
	}

	if err := s.spotify.ValidateCredentials(r.Context(), creds); err != nil {
		s.respondErr(w, r, userID, "validate spotify credentials", err)
		return
	}
	if err := s.creds.SaveSpotifyCredentials(r.Context(), userID, creds); err != nil {
		s.respondErr(w, r, userID, "save spotify credentials", err)
		return
	}

	s.logger.Info(r.Context(), "spotify credentials saved", "user_id", userID)
	w.WriteHeader(http.StatusNoContent)
}

type aiKeyRequest struct {
	APIKey string `json:"api_key"`
}

func (s *Server) saveAIKey(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r, false)
	if !ok {
		return
	}

	var req aiKeyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.creds.SaveAIKey(r.Context(), userID, strings.TrimSpace(req.APIKey)); err != nil {
		s.respondErr(w, r, userID, "save ai key", err)
		return
	}

	s.logger.Info(r.Context(), "ai key saved", "user_id", userID)
	w.WriteHeader(http.StatusNoContent)
}
