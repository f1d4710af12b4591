// Package tokenstore persists the long-lived Instagram token obtained by the
// OAuth callback so the proxy and other consumers can pick it up on their
// next cold start.
package tokenstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/rs/zerolog/log"
)

// ErrNoTokenParam is returned by NewSSM when no token parameter is named.
var ErrNoTokenParam = errors.New("token parameter path is required")

// ParamWriter is the subset of *ssm.Client the store needs.
type ParamWriter interface {
	PutParameter(ctx context.Context, params *ssm.PutParameterInput, optFns ...func(*ssm.Options)) (*ssm.PutParameterOutput, error)
}

// Store saves an access token and the account it belongs to.
type Store interface {
	Save(ctx context.Context, accessToken, userID string) error
}

// SSM stores the token as a SecureString and the user ID as a plain String.
type SSM struct {
	client      ParamWriter
	tokenParam  string
	userIDParam string
}

// NewSSM creates an SSM-backed store. userIDParam may be empty, in which
// case only the token is written.
func NewSSM(client ParamWriter, tokenParam, userIDParam string) (*SSM, error) {
	if tokenParam == "" {
		return nil, ErrNoTokenParam
	}
	return &SSM{client: client, tokenParam: tokenParam, userIDParam: userIDParam}, nil
}

// Save overwrites both parameters. The token is written first; a failure on
// the user ID leaves the new token in place.
func (s *SSM) Save(ctx context.Context, accessToken, userID string) error {
	_, err := s.client.PutParameter(ctx, &ssm.PutParameterInput{
		Name:      aws.String(s.tokenParam),
		Value:     aws.String(accessToken),
		Type:      ssmtypes.ParameterTypeSecureString,
		Overwrite: aws.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("store access token in %s: %w", s.tokenParam, err)
	}
	log.Info().Str("param", s.tokenParam).Msg("Long-lived access token stored in SSM")

	if s.userIDParam == "" || userID == "" {
		return nil
	}

	_, err = s.client.PutParameter(ctx, &ssm.PutParameterInput{
		Name:      aws.String(s.userIDParam),
		Value:     aws.String(userID),
		Type:      ssmtypes.ParameterTypeString,
		Overwrite: aws.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("store user ID in %s: %w", s.userIDParam, err)
	}
	log.Info().Str("param", s.userIDParam).Str("userId", userID).Msg("Instagram user ID stored in SSM")
	return nil
}
