// Package config loads relay configuration.
//
// Values are resolved in three layers, later layers only filling what is
// still empty or overriding explicitly:
//  1. an optional YAML file (server binary, --config)
//  2. environment variables, which override the file
//  3. SSM Parameter Store, consulted only for credentials still missing
//
// Missing credentials are not fatal. The webhook handler fails closed
// without a secret or verify token, and the OAuth callback answers 500
// until the app credentials are present.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/fpang/instagram-relay/internal/retention"
)

// DefaultPort is the listen port of the server binary.
const DefaultPort = 8000

// ErrMissingConfig is wrapped by checks that find a required value unset.
var ErrMissingConfig = errors.New("missing configuration")

// Config is the full relay configuration.
type Config struct {
	Instagram InstagramConfig `yaml:"instagram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Server    ServerConfig    `yaml:"server"`
	Events    EventsConfig    `yaml:"events"`
	Tokens    TokenConfig     `yaml:"tokens"`
	Log       LogConfig       `yaml:"log"`
}

// InstagramConfig holds the Instagram app credentials and proxy defaults.
type InstagramConfig struct {
	AppID       string `yaml:"app_id"`
	AppSecret   string `yaml:"app_secret"`
	RedirectURI string `yaml:"redirect_uri"`
	// AccessToken and UserID are the defaults for proxy queries that omit them.
	AccessToken string `yaml:"access_token"`
	UserID      string `yaml:"user_id"`
}

// WebhookConfig holds webhook handshake and retention settings.
type WebhookConfig struct {
	VerifyToken       string `yaml:"verify_token"`
	RetentionCapacity int    `yaml:"retention_capacity"`
}

// ServerConfig holds listener settings for the server binary.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// EventsConfig enables EventBridge fan-out of accepted notifications.
type EventsConfig struct {
	BusName string `yaml:"bus_name"`
}

// TokenConfig names the SSM parameters the OAuth callback writes to.
// Empty TokenParam disables persistence.
type TokenConfig struct {
	TokenParam  string `yaml:"token_param"`
	UserIDParam string `yaml:"user_id_param"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns a Config with defaults applied.
func Default() *Config {
	return &Config{
		Webhook: WebhookConfig{RetentionCapacity: retention.DefaultCapacity},
		Server:  ServerConfig{Port: DefaultPort},
	}
}

// LoadFile reads a YAML configuration file on top of the defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// validate applies the bounds ApplyEnv enforces on environment values.
func (c *Config) validate() error {
	var errs []error
	if c.Webhook.RetentionCapacity < 1 {
		errs = append(errs, fmt.Errorf("retention_capacity %d: must be a positive integer", c.Webhook.RetentionCapacity))
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d: must be a valid port", c.Server.Port))
	}
	return errors.Join(errs...)
}

// envBinding maps one config field to the environment variables that set it,
// in priority order. The later names are the variables used by earlier
// deployments of the relay.
type envBinding struct {
	names []string
	dst   *string
}

func (c *Config) stringBindings() []envBinding {
	return []envBinding{
		{[]string{"INSTAGRAM_APP_ID", "CLIENT_ID"}, &c.Instagram.AppID},
		{[]string{"INSTAGRAM_APP_SECRET", "CLIENT_SECRET"}, &c.Instagram.AppSecret},
		{[]string{"OAUTH_REDIRECT_URI", "REDIRECT_URI"}, &c.Instagram.RedirectURI},
		{[]string{"INSTAGRAM_ACCESS_TOKEN", "ACCESS_TOKEN"}, &c.Instagram.AccessToken},
		{[]string{"INSTAGRAM_USER_ID", "USER_ID"}, &c.Instagram.UserID},
		{[]string{"WEBHOOK_VERIFY_TOKEN", "VERIFY_TOKEN"}, &c.Webhook.VerifyToken},
		{[]string{"EVENT_BUS_NAME"}, &c.Events.BusName},
		{[]string{"SSM_TOKEN_PARAM"}, &c.Tokens.TokenParam},
		{[]string{"SSM_USER_ID_PARAM"}, &c.Tokens.UserIDParam},
		{[]string{"RELAY_LOG_LEVEL"}, &c.Log.Level},
	}
}

// ApplyEnv overrides fields with any environment variables that are set.
func (c *Config) ApplyEnv() error {
	for _, b := range c.stringBindings() {
		for _, name := range b.names {
			if v := os.Getenv(name); v != "" {
				*b.dst = v
				break
			}
		}
	}

	var errs []error
	if v := os.Getenv("RETENTION_CAPACITY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			errs = append(errs, fmt.Errorf("RETENTION_CAPACITY %q: must be a positive integer", v))
		} else {
			c.Webhook.RetentionCapacity = n
		}
	}
	if v := os.Getenv("PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 65535 {
			errs = append(errs, fmt.Errorf("PORT %q: must be a valid port", v))
		} else {
			c.Server.Port = n
		}
	}
	return errors.Join(errs...)
}

// Load builds the configuration. path names an optional YAML file; params,
// when non-nil, is consulted for credentials the file and environment left
// empty. SSM failures are logged and leave the value unset.
func Load(ctx context.Context, path string, params ParamReader) (*Config, error) {
	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if params != nil {
		if err := cfg.ResolveSSM(ctx, params); err != nil {
			log.Warn().Err(err).Msg("Some credentials could not be loaded from SSM")
		}
	}
	return cfg, nil
}

// CheckOAuth returns an error wrapping ErrMissingConfig naming every unset
// value the OAuth callback needs.
func (c *Config) CheckOAuth() error {
	var missing []string
	if c.Instagram.AppID == "" {
		missing = append(missing, "app ID")
	}
	if c.Instagram.AppSecret == "" {
		missing = append(missing, "app secret")
	}
	if c.Instagram.RedirectURI == "" {
		missing = append(missing, "redirect URI")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingConfig, strings.Join(missing, ", "))
	}
	return nil
}

// OAuthConfigured reports whether the OAuth callback can run.
func (c *Config) OAuthConfigured() bool {
	return c.CheckOAuth() == nil
}

// Warnings lists configuration gaps that disable part of the relay.
func (c *Config) Warnings() []string {
	var w []string
	if c.Instagram.AppSecret == "" {
		w = append(w, "app secret not set: every webhook notification will be rejected")
	}
	if c.Webhook.VerifyToken == "" {
		w = append(w, "verify token not set: webhook subscription verification will fail")
	}
	if !c.OAuthConfigured() {
		w = append(w, "app ID, app secret, or redirect URI not set: OAuth callback disabled")
	}
	if c.Instagram.AccessToken == "" {
		w = append(w, "default access token not set: proxy queries must pass access_token")
	}
	return w
}
