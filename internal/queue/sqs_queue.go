// Package queue implements the MessageQueue port: an SQS-backed production
// queue and an in-memory fake for tests and local development.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/cricksy/video-analysis/internal/common"
	"github.com/cricksy/video-analysis/internal/interfaces"
)

// SQSQueue implements interfaces.MessageQueue against AWS SQS, relying on
// SQS's own visibility-timeout mechanism for at-least-once delivery and a
// redrive policy on the queue itself for DLQ behavior (spec §2, §4.3, GLOSSARY).
type SQSQueue struct {
	client   *sqs.Client
	queueURL string
	logger   *common.Logger
}

// NewSQSQueue builds an SQSQueue bound to the given queue URL.
func NewSQSQueue(ctx context.Context, logger *common.Logger, queueURL, region string) (*SQSQueue, error) {
	if queueURL == "" {
		return nil, fmt.Errorf("sqs queue url is required")
	}

	var optFns []func(*awsconfig.LoadOptions) error
	if region != "" {
		optFns = append(optFns, awsconfig.WithRegion(region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	logger.Info().Str("queue_url", queueURL).Msg("SQSQueue initialized")

	return &SQSQueue{
		client:   sqs.NewFromConfig(awsCfg),
		queueURL: queueURL,
		logger:   logger,
	}, nil
}

func (q *SQSQueue) Enqueue(ctx context.Context, jobID string) error {
	_, err := q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(jobID),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"job_id": {DataType: aws.String("String"), StringValue: aws.String(jobID)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to enqueue job %s: %w", jobID, err)
	}
	return nil
}

func (q *SQSQueue) Receive(ctx context.Context, maxMessages int, waitTime time.Duration) ([]interfaces.Message, error) {
	if maxMessages <= 0 {
		maxMessages = 1
	}
	if maxMessages > 10 {
		maxMessages = 10 // SQS hard limit per ReceiveMessage call
	}

	out, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.queueURL),
		MaxNumberOfMessages: int32(maxMessages),
		WaitTimeSeconds:     int32(waitTime.Seconds()),
		AttributeNames:      []sqstypes.QueueAttributeName{sqstypes.QueueAttributeNameApproximateReceiveCount},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to receive messages: %w", err)
	}

	messages := make([]interfaces.Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		receiveCount := 1
		if raw, ok := m.Attributes[string(sqstypes.QueueAttributeNameApproximateReceiveCount)]; ok {
			fmt.Sscanf(raw, "%d", &receiveCount)
		}
		messages = append(messages, interfaces.Message{
			ID:            aws.ToString(m.MessageId),
			ReceiptHandle: aws.ToString(m.ReceiptHandle),
			JobID:         aws.ToString(m.Body),
			ReceiveCount:  receiveCount,
		})
	}
	return messages, nil
}

func (q *SQSQueue) Delete(ctx context.Context, receiptHandle string) error {
	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}

func (q *SQSQueue) ChangeVisibility(ctx context.Context, receiptHandle string, timeout time.Duration) error {
	_, err := q.client.ChangeMessageVisibility(ctx, &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(q.queueURL),
		ReceiptHandle:     aws.String(receiptHandle),
		VisibilityTimeout: int32(timeout.Seconds()),
	})
	if err != nil {
		return fmt.Errorf("failed to change message visibility: %w", err)
	}
	return nil
}

// Compile-time check.
var _ interfaces.MessageQueue = (*SQSQueue)(nil)
