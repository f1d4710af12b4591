package relay

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/fpang/instagram-relay/internal/instagram"
)

// handleOAuthCallback completes Instagram Business Login.
//
// Flow:
//  1. Instagram redirects here with ?code=AUTH_CODE (or ?error=...)
//  2. Exchange the code for a short-lived token (1 hour)
//  3. Exchange the short-lived token for a long-lived token (60 days)
//  4. Persist the token and user ID when a token store is configured
//  5. Return the long-lived token response as JSON
func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	if err := s.cfg.CheckOAuth(); err != nil {
		httpError(w, http.StatusInternalServerError, "Instagram OAuth is not configured", err.Error())
		return
	}

	q := r.URL.Query()
	if errParam := q.Get("error"); errParam != "" {
		log.Warn().
			Str("error", errParam).
			Str("reason", q.Get("error_reason")).
			Str("description", q.Get("error_description")).
			Msg("OAuth callback received error from Instagram")
		httpError(w, http.StatusBadRequest, "Instagram authorization error: "+errParam)
		return
	}

	code := instagram.CleanCode(q.Get("code"))
	if code == "" {
		httpError(w, http.StatusBadRequest, "authorization code not provided")
		return
	}

	ctx := r.Context()

	short, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		oauthFailure(w, err)
		return
	}

	long, err := s.oauth.ExchangeLongLivedToken(ctx, short.AccessToken)
	if err != nil {
		oauthFailure(w, err)
		return
	}

	if s.tokens != nil {
		if err := s.tokens.Save(ctx, long.AccessToken, short.UserID); err != nil {
			httpError(w, http.StatusInternalServerError,
				"token was obtained but could not be stored", err.Error())
			return
		}
	}

	log.Info().
		Str("userId", short.UserID).
		Int64("expiresInDays", long.ExpiresIn/86400).
		Bool("stored", s.tokens != nil).
		Msg("Instagram account connected")
	respondRaw(w, http.StatusOK, long.Raw)
}

// oauthFailure maps a token exchange error to a response. Upstream
// rejections are relayed with their own status and body.
func oauthFailure(w http.ResponseWriter, err error) {
	var upErr *instagram.UpstreamError
	switch {
	case errors.As(err, &upErr):
		log.Warn().Str("op", upErr.Op).Int("status", upErr.Status).Msg("Instagram rejected token exchange")
		respondRaw(w, upErr.Status, upErr.Body)
	case errors.Is(err, instagram.ErrNoAccessToken):
		httpError(w, http.StatusInternalServerError, "no access token in Instagram response", err.Error())
	default:
		httpError(w, http.StatusBadGateway, "Instagram token exchange failed", err.Error())
	}
}
