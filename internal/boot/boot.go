// Package boot holds the start-up wiring shared by the relay binaries.
//
// Both binaries need the same composition: AWS clients (optional for the
// server), configuration, the retention ring, and the optional token store
// and event publisher. Each binary's start-up is a short call sequence of
// these helpers.
package boot

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"

	"github.com/fpang/instagram-relay/internal/config"
	"github.com/fpang/instagram-relay/internal/events"
	"github.com/fpang/instagram-relay/internal/logging"
	"github.com/fpang/instagram-relay/internal/relay"
	"github.com/fpang/instagram-relay/internal/retention"
	"github.com/fpang/instagram-relay/internal/tokenstore"
)

// AWSClients holds the AWS SDK clients the relay uses.
type AWSClients struct {
	Config      aws.Config
	SSM         *ssm.Client
	EventBridge *eventbridge.Client
}

// InitAWS loads the default AWS config and creates the relay's clients.
func InitAWS(ctx context.Context) (*AWSClients, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return &AWSClients{
		Config:      cfg,
		SSM:         ssm.NewFromConfig(cfg),
		EventBridge: eventbridge.NewFromConfig(cfg),
	}, nil
}

// paramReader returns the SSM client as a config.ParamReader, or nil.
func (c *AWSClients) paramReader() config.ParamReader {
	if c == nil {
		return nil
	}
	return c.SSM
}

// LoadConfig loads configuration from path (optional), the environment, and,
// when clients is non-nil, SSM. The configured log level is applied and the
// SSM parameter paths consulted are registered on startup.
func LoadConfig(ctx context.Context, path string, clients *AWSClients, startup *logging.StartupLogger) (*config.Config, error) {
	cfg, err := config.Load(ctx, path, clients.paramReader())
	if err != nil {
		return nil, err
	}
	if cfg.Log.Level != "" {
		logging.SetLevel(cfg.Log.Level)
		startup.Config("logLevel", cfg.Log.Level)
	}
	if clients != nil {
		for _, p := range cfg.SSMParams() {
			startup.SSMParam(p.Label, p.Path())
		}
	}
	for _, w := range cfg.Warnings() {
		log.Warn().Msg(w)
	}
	return cfg, nil
}

// Deps builds the relay dependencies described by cfg. Integrations that need
// AWS are skipped with a warning when clients is nil.
func Deps(cfg *config.Config, clients *AWSClients, startup *logging.StartupLogger) (relay.Deps, error) {
	d := relay.Deps{
		Config:  cfg,
		Updates: retention.New(cfg.Webhook.RetentionCapacity),
	}

	if cfg.Tokens.TokenParam != "" {
		if clients == nil {
			log.Warn().Str("param", cfg.Tokens.TokenParam).Msg("Token parameter set without AWS; token store disabled")
		} else {
			store, err := tokenstore.NewSSM(clients.SSM, cfg.Tokens.TokenParam, cfg.Tokens.UserIDParam)
			if err != nil {
				return relay.Deps{}, err
			}
			d.Tokens = store
			startup.SSMParam("tokenStore", cfg.Tokens.TokenParam)
		}
	}

	if cfg.Events.BusName != "" {
		if clients == nil {
			log.Warn().Str("bus", cfg.Events.BusName).Msg("Event bus set without AWS; publishing disabled")
		} else {
			pub, err := events.NewPublisher(clients.EventBridge, cfg.Events.BusName)
			if err != nil {
				return relay.Deps{}, err
			}
			d.Publisher = pub
			startup.Config("eventBus", cfg.Events.BusName)
		}
	}

	startup.
		Feature("oauth", cfg.OAuthConfigured()).
		Feature("webhookSecret", cfg.Instagram.AppSecret != "").
		Feature("tokenStore", d.Tokens != nil).
		Feature("eventBridge", d.Publisher != nil).
		Config("retentionCapacity", strconv.Itoa(d.Updates.Cap()))

	return d, nil
}
