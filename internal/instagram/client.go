// Package instagram provides a client for the Instagram Graph API read-only
// analytics endpoints and the Instagram Business Login token exchange.
//
// The Graph client is a passthrough: each call returns the upstream status
// code and raw JSON body so the relay can hand them back unchanged. Nothing
// is aggregated or reshaped.
package instagram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// graphHost is the Instagram Graph API host (unversioned paths).
	graphHost = "https://graph.instagram.com"

	// graphVersion is used for the /me profile lookup.
	graphVersion = "v23.0"

	// defaultTimeout is the HTTP client timeout for API calls.
	defaultTimeout = 30 * time.Second
)

// profileFields are requested by Me.
var profileFields = []string{
	"id", "user_id", "username", "name", "account_type",
	"profile_picture_url", "followers_count", "follows_count", "media_count",
}

// mediaFields are requested by ListMedia.
var mediaFields = []string{"id", "caption", "media_type", "media_url", "thumbnail_url", "timestamp"}

// Response is a raw Graph API response.
type Response struct {
	Status int
	Body   []byte
}

// Client issues read-only Graph API queries.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a Graph API client.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		baseURL: graphHost,
	}
}

// Me returns the profile of the account that owns accessToken.
//
// Endpoint: GET /v23.0/me?fields=id,user_id,username,...
func (c *Client) Me(ctx context.Context, accessToken string) (*Response, error) {
	params := url.Values{
		"fields":       {strings.Join(profileFields, ",")},
		"access_token": {accessToken},
	}
	return c.get(ctx, "/"+graphVersion+"/me", params)
}

// UserInsights returns daily total-value account insights.
//
// Endpoint: GET /{account_id}/insights?metric=...&metric_type=total_value&period=day
func (c *Client) UserInsights(ctx context.Context, accountID, accessToken string) (*Response, error) {
	return c.insights(ctx, accountID, UserMetrics, accessToken)
}

// MediaInsights returns daily total-value insights for one media object,
// using the metric set appropriate for its media type.
func (c *Client) MediaInsights(ctx context.Context, mediaID string, mediaType MediaType, accessToken string) (*Response, error) {
	return c.insights(ctx, mediaID, mediaType.Metrics(), accessToken)
}

// ListMedia returns the media objects of an account.
//
// Endpoint: GET /{account_id}/media?fields=id,caption,media_type,...
func (c *Client) ListMedia(ctx context.Context, accountID, accessToken string) (*Response, error) {
	params := url.Values{
		"fields":       {strings.Join(mediaFields, ",")},
		"access_token": {accessToken},
	}
	return c.get(ctx, "/"+url.PathEscape(accountID)+"/media", params)
}

func (c *Client) insights(ctx context.Context, objectID string, metrics []string, accessToken string) (*Response, error) {
	params := url.Values{
		"metric":       {strings.Join(metrics, ",")},
		"metric_type":  {"total_value"},
		"period":       {"day"},
		"access_token": {accessToken},
	}
	return c.get(ctx, "/"+url.PathEscape(objectID)+"/insights", params)
}

// get sends a GET request to the Graph API and returns the raw response.
// Non-200 statuses are not errors here; the caller relays them.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values) (*Response, error) {
	startTime := time.Now()

	// Log query parameter names (not values) at Trace level; values carry tokens.
	paramNames := make([]string, 0, len(params))
	for key := range params {
		paramNames = append(paramNames, key)
	}
	log.Trace().Strs("queryParams", paramNames).Msg("Query parameters")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	status, body, err := do(c.httpClient, req)
	duration := time.Since(startTime)
	if err != nil {
		log.Debug().Str("path", endpoint).Dur("duration", duration).Err(err).Msg("Instagram API response")
		return nil, fmt.Errorf("request failed: %w", err)
	}

	log.Debug().Str("path", endpoint).Int("statusCode", status).Dur("duration", duration).Msg("Instagram API response")
	return &Response{Status: status, Body: body}, nil
}

// do executes req and reads the full response body.
func do(client *http.Client, req *http.Request) (int, []byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, redact(req, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

// redact replaces the URL in a transport error with one that has no query
// string. Request URLs carry the app secret and access tokens.
func redact(req *http.Request, err error) error {
	var ue *url.Error
	if !errors.As(err, &ue) {
		return err
	}
	return fmt.Errorf("%s %s://%s%s: %w", ue.Op, req.URL.Scheme, req.URL.Host, req.URL.Path, ue.Err)
}
