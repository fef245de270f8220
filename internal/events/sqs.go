package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/soaringjerry/Vitals/internal/services"
)

// SQSAPI is the part of *sqs.Client the publisher needs.
type SQSAPI interface {
	GetQueueUrl(ctx context.Context, in *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

type SQSPublisher struct {
	client   SQSAPI
	queueURL string
}

// NewSQSPublisherFromEnv loads the default AWS configuration (region,
// credentials, AWS_ENDPOINT_URL) and resolves queue by name.
func NewSQSPublisherFromEnv(ctx context.Context, queue string) (*SQSPublisher, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := sqs.New(sqs.Options{
		Region:       cfg.Region,
		Credentials:  cfg.Credentials,
		HTTPClient:   cfg.HTTPClient,
		BaseEndpoint: cfg.BaseEndpoint,
	})
	return NewSQSPublisher(ctx, client, queue)
}

func NewSQSPublisher(ctx context.Context, client SQSAPI, queue string) (*SQSPublisher, error) {
	if queue == "" {
		return nil, errors.New("sqs queue name is required")
	}
	resp, err := client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(queue)})
	if err != nil {
		return nil, fmt.Errorf("get queue url %s: %w", queue, err)
	}
	if resp.QueueUrl == nil {
		return nil, fmt.Errorf("queue %s has no url", queue)
	}
	return &SQSPublisher{client: client, queueURL: *resp.QueueUrl}, nil
}

func (p *SQSPublisher) Publish(ctx context.Context, ev services.Event) error {
	b, err := Encode(ev)
	if err != nil {
		return err
	}
	_, err = p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(b)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"type": {DataType: aws.String("String"), StringValue: aws.String(ev.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("sqs send %s: %w", ev.Type, err)
	}
	return nil
}

func (p *SQSPublisher) Close() error { return nil }
