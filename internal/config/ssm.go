package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"
)

// ParamReader is the subset of *ssm.Client used to resolve credentials.
type ParamReader interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// SSMParam describes one credential that may be read from Parameter Store.
type SSMParam struct {
	Label       string // for logs
	PathEnv     string // env var overriding the parameter path
	DefaultPath string
	Decrypt     bool
	dst         *string
}

// Path returns the parameter path, honoring the PathEnv override.
func (p SSMParam) Path() string {
	if v := os.Getenv(p.PathEnv); v != "" {
		return v
	}
	return p.DefaultPath
}

// SSMParams lists the credentials resolvable from Parameter Store.
func (c *Config) SSMParams() []SSMParam {
	return []SSMParam{
		{"appId", "SSM_APP_ID_PARAM", "/instagram-relay/prod/instagram-app-id", false, &c.Instagram.AppID},
		{"appSecret", "SSM_APP_SECRET_PARAM", "/instagram-relay/prod/instagram-app-secret", true, &c.Instagram.AppSecret},
		{"redirectUri", "SSM_REDIRECT_URI_PARAM", "/instagram-relay/prod/instagram-oauth-redirect-uri", false, &c.Instagram.RedirectURI},
		{"verifyToken", "SSM_WEBHOOK_VERIFY_TOKEN_PARAM", "/instagram-relay/prod/instagram-webhook-verify-token", true, &c.Webhook.VerifyToken},
		{"accessToken", "SSM_INSTAGRAM_TOKEN_PARAM", "/instagram-relay/prod/instagram-access-token", true, &c.Instagram.AccessToken},
		{"userId", "SSM_INSTAGRAM_USER_ID_PARAM", "/instagram-relay/prod/instagram-user-id", false, &c.Instagram.UserID},
	}
}

// ResolveSSM fills every credential that is still empty from Parameter
// Store. Parameters that cannot be read are left empty and reported in the
// joined error; the caller decides whether that is fatal.
func (c *Config) ResolveSSM(ctx context.Context, client ParamReader) error {
	var errs []error
	for _, p := range c.SSMParams() {
		if *p.dst != "" {
			continue
		}
		path := p.Path()

		start := time.Now()
		result, err := client.GetParameter(ctx, &ssm.GetParameterInput{
			Name:           aws.String(path),
			WithDecryption: aws.Bool(p.Decrypt),
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("read %s from SSM %s: %w", p.Label, path, err))
			continue
		}
		if result.Parameter == nil || result.Parameter.Value == nil {
			errs = append(errs, fmt.Errorf("read %s from SSM %s: empty parameter", p.Label, path))
			continue
		}

		*p.dst = aws.ToString(result.Parameter.Value)
		log.Debug().Str("param", path).Dur("elapsed", time.Since(start)).Msgf("%s loaded from SSM", p.Label)
	}
	return errors.Join(errs...)
}
