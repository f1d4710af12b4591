// OAuth token exchange functions for Instagram Business Login.
//
// Instagram uses a two-step token exchange:
//  1. Authorization code → short-lived token (1 hour) via POST to api.instagram.com
//  2. Short-lived token → long-lived token (60 days) via GET to graph.instagram.com
//
// The short-lived token response also includes the Instagram user ID.
// See: https://developers.facebook.com/docs/instagram-platform/instagram-api-with-instagram-login/business-login

package instagram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

const (
	defaultAuthorizeURL = "https://www.instagram.com/oauth/authorize"
	defaultTokenURL     = "https://api.instagram.com/oauth/access_token"
)

// Scopes requested on the Connect Instagram link.
var Scopes = []string{
	"instagram_business_basic",
	"instagram_business_manage_messages",
	"instagram_business_manage_comments",
	"instagram_business_content_publish",
	"instagram_business_manage_insights",
}

// ShortLivedToken holds the response from exchanging an authorization code
// for a short-lived access token.
type ShortLivedToken struct {
	AccessToken string // Short-lived token (1 hour)
	UserID      string // Instagram user ID (as string)
}

// LongLivedToken holds the response from exchanging a short-lived token
// for a long-lived access token. Raw is the upstream JSON body, relayed
// to the caller unchanged.
type LongLivedToken struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"` // Seconds until expiry (typically 5184000 = 60 days)

	Raw json.RawMessage `json:"-"`
}

// shortTokenResponse is the JSON response from the Instagram token exchange endpoint.
type shortTokenResponse struct {
	AccessToken string `json:"access_token"`
	UserID      int64  `json:"user_id"`
}

// shortTokenErrorResponse is the JSON error response from the Instagram token endpoint.
type shortTokenErrorResponse struct {
	ErrorType    string `json:"error_type"`
	Code         int    `json:"code"`
	ErrorMessage string `json:"error_message"`
}

// OAuth performs the Instagram Business Login token exchange.
type OAuth struct {
	httpClient  *http.Client
	appID       string
	appSecret   string
	redirectURI string

	authorizeURL string
	tokenURL     string
	graphURL     string
}

// NewOAuth creates an OAuth exchanger for the given app credentials.
func NewOAuth(appID, appSecret, redirectURI string) *OAuth {
	return &OAuth{
		httpClient:   &http.Client{Timeout: defaultTimeout},
		appID:        appID,
		appSecret:    appSecret,
		redirectURI:  redirectURI,
		authorizeURL: defaultAuthorizeURL,
		tokenURL:     defaultTokenURL,
		graphURL:     graphHost,
	}
}

// AuthorizeURL returns the Instagram authorization page URL that starts the
// login flow. Instagram redirects back to the redirect URI with ?code=.
func (o *OAuth) AuthorizeURL() string {
	params := url.Values{
		"enable_fb_login":      {"0"},
		"force_authentication": {"1"},
		"client_id":            {o.appID},
		"redirect_uri":         {o.redirectURI},
		"response_type":        {"code"},
		"scope":                {strings.Join(Scopes, ",")},
	}
	return o.authorizeURL + "?" + params.Encode()
}

// CleanCode strips the "#_" fragment Instagram appends to the authorization code.
func CleanCode(code string) string {
	return strings.Trim(code, "#_")
}

// ExchangeCode exchanges an Instagram authorization code for a short-lived access token.
// The authorization code comes from Meta's OAuth redirect (?code=AUTH_CODE).
//
// Endpoint: POST https://api.instagram.com/oauth/access_token
// Returns the short-lived token (1 hour) and the Instagram user ID.
func (o *OAuth) ExchangeCode(ctx context.Context, code string) (*ShortLivedToken, error) {
	params := url.Values{
		"client_id":     {o.appID},
		"client_secret": {o.appSecret},
		"grant_type":    {"authorization_code"},
		"redirect_uri":  {o.redirectURI},
		"code":          {code},
	}

	log.Debug().Str("redirectUri", o.redirectURI).Msg("Exchanging authorization code for short-lived token")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.tokenURL,
		strings.NewReader(params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	status, body, err := do(o.httpClient, req)
	if err != nil {
		return nil, fmt.Errorf("token exchange request: %w", err)
	}

	if status != http.StatusOK {
		// Try to parse Instagram-specific error format for the log line.
		var errResp shortTokenErrorResponse
		if json.Unmarshal(body, &errResp) == nil && errResp.ErrorMessage != "" {
			log.Warn().
				Str("errorType", errResp.ErrorType).
				Int("errorCode", errResp.Code).
				Str("errorMessage", errResp.ErrorMessage).
				Msg("Token exchange rejected")
		}
		return nil, &UpstreamError{Op: "token exchange", Status: status, Body: body}
	}

	var result shortTokenResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	if result.AccessToken == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoAccessToken, truncate(string(body), 300))
	}

	userID := strconv.FormatInt(result.UserID, 10)
	log.Info().Str("userId", userID).Msg("Short-lived token obtained")

	return &ShortLivedToken{
		AccessToken: result.AccessToken,
		UserID:      userID,
	}, nil
}

// ExchangeLongLivedToken exchanges a short-lived Instagram token for a long-lived token.
// Long-lived tokens are valid for 60 days and can be refreshed before expiry.
//
// Endpoint: GET https://graph.instagram.com/access_token
//
//	?grant_type=ig_exchange_token
//	&client_secret={app_secret}
//	&access_token={short_lived_token}
func (o *OAuth) ExchangeLongLivedToken(ctx context.Context, shortToken string) (*LongLivedToken, error) {
	params := url.Values{
		"grant_type":    {"ig_exchange_token"},
		"client_secret": {o.appSecret},
		"access_token":  {shortToken},
	}

	log.Debug().Msg("Exchanging short-lived token for long-lived token")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		o.graphURL+"/access_token?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	status, body, err := do(o.httpClient, req)
	if err != nil {
		return nil, fmt.Errorf("long-lived token request: %w", err)
	}

	if status != http.StatusOK {
		return nil, &UpstreamError{Op: "long-lived token exchange", Status: status, Body: body}
	}

	var result LongLivedToken
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	result.Raw = json.RawMessage(body)

	if result.AccessToken == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoAccessToken, truncate(string(body), 300))
	}

	days := result.ExpiresIn / 86400
	log.Info().Int64("expiresInDays", days).Msg("Long-lived token obtained")

	return &result, nil
}
