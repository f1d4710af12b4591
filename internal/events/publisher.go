// Package events fans accepted webhook notifications out to EventBridge.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	eventbridgetypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/rs/zerolog/log"

	"github.com/fpang/instagram-relay/internal/retention"
)

// Source and DetailType mark relay events on the bus. EventBridge rules
// match on them.
const (
	Source     = "instagram-relay"
	DetailType = "InstagramWebhookUpdate"
)

// ErrNoBus is returned by NewPublisher when no bus name is given.
var ErrNoBus = errors.New("event bus name is required")

// API is the subset of *eventbridge.Client the publisher needs.
type API interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// Publisher puts one event per accepted notification on a bus.
type Publisher struct {
	client  API
	busName string
}

// NewPublisher creates a Publisher targeting busName.
func NewPublisher(client API, busName string) (*Publisher, error) {
	if busName == "" {
		return nil, ErrNoBus
	}
	return &Publisher{client: client, busName: busName}, nil
}

// Publish sends u as the event detail. The detail is the same JSON document
// the status page renders for a retained update.
func (p *Publisher) Publish(ctx context.Context, u retention.Update) error {
	detail, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("marshal update %s: %w", u.ID, err)
	}

	result, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []eventbridgetypes.PutEventsRequestEntry{
			{
				EventBusName: aws.String(p.busName),
				Source:       aws.String(Source),
				DetailType:   aws.String(DetailType),
				Detail:       aws.String(string(detail)),
				Time:         aws.Time(u.ReceivedAt),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("PutEvents: %w", err)
	}

	if result.FailedEntryCount > 0 {
		for i, entry := range result.Entries {
			if entry.ErrorCode != nil || entry.ErrorMessage != nil {
				return fmt.Errorf("PutEvents entry %d failed: %s - %s", i, aws.ToString(entry.ErrorCode), aws.ToString(entry.ErrorMessage))
			}
		}
		return fmt.Errorf("PutEvents: %d entries failed", result.FailedEntryCount)
	}

	log.Debug().Str("updateId", u.ID).Str("bus", p.busName).Msg("Webhook update published to EventBridge")
	return nil
}
