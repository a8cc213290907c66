// Package sqs implements the mirror's queue.Client contract against Amazon
// SQS.
package sqs

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/KevinZhao/s3sync/pkg/queue"
)

// ClientConfig describes how to reach one SQS queue.
type ClientConfig struct {
	Region   string
	Endpoint string
	QueueURL string
}

// NewSDKClient builds an AWS SQS client from cfg, using the default
// credential chain (environment, shared config, or container/instance
// role).
func NewSDKClient(ctx context.Context, cfg ClientConfig) (*sqs.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	client := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return client, nil
}

// Client implements queue.Client against one SQS queue URL.
type Client struct {
	sqs      *sqs.Client
	queueURL string
}

// New wraps an SQS client bound to a single queue URL.
func New(client *sqs.Client, queueURL string) *Client {
	return &Client{sqs: client, queueURL: queueURL}
}

// Receive long-polls the queue for up to maxMessages messages, requesting
// the ApproximateReceiveCount attribute so SyncEvent.Attempt can be
// populated from it.
func (c *Client) Receive(ctx context.Context, waitSeconds, maxMessages int32) ([]queue.Message, error) {
	out, err := c.sqs.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:              aws.String(c.queueURL),
		WaitTimeSeconds:       waitSeconds,
		MaxNumberOfMessages:   maxMessages,
		MessageAttributeNames: []string{"All"},
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{
			types.MessageSystemAttributeNameApproximateReceiveCount,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("receive from %s: %w", c.queueURL, err)
	}

	messages := make([]queue.Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		attempts := 1
		if raw, ok := m.Attributes[string(types.MessageSystemAttributeNameApproximateReceiveCount)]; ok {
			if n, err := strconv.Atoi(raw); err == nil {
				attempts = n
			}
		}
		messages = append(messages, queue.Message{
			Body:      aws.ToString(m.Body),
			Receipt:   aws.ToString(m.ReceiptHandle),
			MessageID: aws.ToString(m.MessageId),
			Attempts:  attempts,
		})
	}
	return messages, nil
}

// Ack deletes the message from the queue.
func (c *Client) Ack(ctx context.Context, receipt string) error {
	_, err := c.sqs.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: aws.String(receipt),
	})
	if err != nil {
		return fmt.Errorf("ack %s: %w", c.queueURL, err)
	}
	return nil
}

// Extend pushes out the message's visibility deadline by seconds.
func (c *Client) Extend(ctx context.Context, receipt string, seconds int32) error {
	_, err := c.sqs.ChangeMessageVisibility(ctx, &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(c.queueURL),
		ReceiptHandle:     aws.String(receipt),
		VisibilityTimeout: seconds,
	})
	if err != nil {
		return fmt.Errorf("extend visibility on %s: %w", c.queueURL, err)
	}
	return nil
}

// Depth returns the queue's current approximate visible and in-flight
// message counts.
func (c *Client) Depth(ctx context.Context) (queue.Depth, error) {
	out, err := c.sqs.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl: aws.String(c.queueURL),
		AttributeNames: []types.QueueAttributeName{
			types.QueueAttributeNameApproximateNumberOfMessages,
			types.QueueAttributeNameApproximateNumberOfMessagesNotVisible,
		},
	})
	if err != nil {
		return queue.Depth{}, fmt.Errorf("get queue attributes for %s: %w", c.queueURL, err)
	}

	var depth queue.Depth
	if raw, ok := out.Attributes[string(types.QueueAttributeNameApproximateNumberOfMessages)]; ok {
		depth.Visible, _ = strconv.ParseInt(raw, 10, 64)
	}
	if raw, ok := out.Attributes[string(types.QueueAttributeNameApproximateNumberOfMessagesNotVisible)]; ok {
		depth.InFlight, _ = strconv.ParseInt(raw, 10, 64)
	}
	return depth, nil
}

var _ queue.Client = (*Client)(nil)
