// Package sns publishes storefront events to an AWS SNS topic.
package sns

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awssns "github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/revolutionai/storefront/internal/config"
	"go.uber.org/zap"
)

// ErrNoTopic is returned when publishing without a configured topic.
var ErrNoTopic = errors.New("sns topic not configured")

// API is the subset of the SNS client the publisher needs.
type API interface {
	Publish(ctx context.Context, params *awssns.PublishInput, optFns ...func(*awssns.Options)) (*awssns.PublishOutput, error)
}

// Publisher sends JSON events to one topic. A nil Publisher drops events.
type Publisher struct {
	client   API
	topicARN string
}

func New(client API, topicARN string) *Publisher {
	return &Publisher{client: client, topicARN: strings.TrimSpace(topicARN)}
}

// NewFromConfig builds a publisher from the default AWS credential chain. It
// returns nil when no topic is configured.
func NewFromConfig(ctx context.Context, cfg config.Config, log *zap.Logger) (*Publisher, error) {
	if cfg.SNS.TopicARN == "" {
		return nil, nil
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.SNS.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.SNS.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	log.Info("sns publisher enabled", zap.String("topic_arn", cfg.SNS.TopicARN))
	return New(awssns.NewFromConfig(awsCfg), cfg.SNS.TopicARN), nil
}

// Publish marshals payload with an event_type field and sends it to the topic.
func (p *Publisher) Publish(ctx context.Context, eventType string, payload map[string]any) error {
	if p == nil {
		return nil
	}
	if p.topicARN == "" {
		return ErrNoTopic
	}

	body := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		body[k] = v
	}
	body["event_type"] = eventType

	msg, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	_, err = p.client.Publish(ctx, &awssns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(msg)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event_type": {
				DataType:    aws.String("String"),
				StringValue: aws.String(eventType),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	return nil
}
