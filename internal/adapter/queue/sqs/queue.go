// Package sqs implements the queue port on an SQS-compatible service.
//
// Local development points SQS_ENDPOINT at ElasticMQ; production uses
// the real service. Delivery is at-least-once, so consumers must stay
// idempotent.
package sqs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/hirehub/profile-evaluator/internal/config"
	"github.com/hirehub/profile-evaluator/internal/domain"
)

// API is the subset of the SQS client the adapter uses, kept narrow for
// testing.
type API interface {
	SendMessage(ctx context.Context, params *awssqs.SendMessageInput, optFns ...func(*awssqs.Options)) (*awssqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *awssqs.ReceiveMessageInput, optFns ...func(*awssqs.Options)) (*awssqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *awssqs.DeleteMessageInput, optFns ...func(*awssqs.Options)) (*awssqs.DeleteMessageOutput, error)
	ChangeMessageVisibility(ctx context.Context, params *awssqs.ChangeMessageVisibilityInput, optFns ...func(*awssqs.Options)) (*awssqs.ChangeMessageVisibilityOutput, error)
	GetQueueAttributes(ctx context.Context, params *awssqs.GetQueueAttributesInput, optFns ...func(*awssqs.Options)) (*awssqs.GetQueueAttributesOutput, error)
}

// Queue implements domain.Queue on SQS.
type Queue struct {
	client   API
	queueURL string
}

// New builds the SQS client from the environment and returns the queue
// adapter.
func New(ctx context.Context, cfg config.Config) (*Queue, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.SQSRegion),
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("op=sqs.new: %w", err)
	}
	client := awssqs.NewFromConfig(awsCfg, func(o *awssqs.Options) {
		if cfg.SQSEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.SQSEndpoint)
		}
	})
	return NewWithClient(client, cfg.SQSQueueURL), nil
}

// NewWithClient wires an existing client, used by tests.
func NewWithClient(client API, queueURL string) *Queue {
	return &Queue{client: client, queueURL: queueURL}
}

// Send serializes the directive and enqueues it.
func (q *Queue) Send(ctx domain.Context, d domain.EvaluationDirective) (string, error) {
	body, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("op=queue.send: %w", err)
	}
	out, err := q.client.SendMessage(ctx, &awssqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return "", fmt.Errorf("op=queue.send: %w", err)
	}
	slog.Info("queue message sent",
		slog.String("message_id", aws.ToString(out.MessageId)),
		slog.String("job_id", d.JobID),
		slog.String("evaluation_type", string(d.EvaluationType)))
	return aws.ToString(out.MessageId), nil
}

// Receive claims at most one message. A nil message means the queue was
// empty this poll.
func (q *Queue) Receive(ctx domain.Context) (*domain.QueueMessage, error) {
	out, err := q.client.ReceiveMessage(ctx, &awssqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.queueURL),
		MaxNumberOfMessages: 1,
		WaitTimeSeconds:     5,
	})
	if err != nil {
		return nil, fmt.Errorf("op=queue.receive: %w", err)
	}
	if len(out.Messages) == 0 {
		return nil, nil
	}
	m := out.Messages[0]
	return &domain.QueueMessage{
		ID:            aws.ToString(m.MessageId),
		ReceiptHandle: aws.ToString(m.ReceiptHandle),
		Body:          []byte(aws.ToString(m.Body)),
	}, nil
}

// Delete acknowledges a message so it is not redelivered.
func (q *Queue) Delete(ctx domain.Context, m domain.QueueMessage) error {
	_, err := q.client.DeleteMessage(ctx, &awssqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: aws.String(m.ReceiptHandle),
	})
	if err != nil {
		return fmt.Errorf("op=queue.delete: %w", err)
	}
	return nil
}

// Ping verifies the queue is reachable, used by readiness probes.
func (q *Queue) Ping(ctx context.Context) error {
	_, err := q.client.GetQueueAttributes(ctx, &awssqs.GetQueueAttributesInput{
		QueueUrl: aws.String(q.queueURL),
	})
	if err != nil {
		return fmt.Errorf("op=queue.ping: %w", err)
	}
	return nil
}

// ExtendVisibility pushes out the redelivery deadline for an in-flight
// message.
func (q *Queue) ExtendVisibility(ctx domain.Context, m domain.QueueMessage, d time.Duration) error {
	_, err := q.client.ChangeMessageVisibility(ctx, &awssqs.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(q.queueURL),
		ReceiptHandle:     aws.String(m.ReceiptHandle),
		VisibilityTimeout: int32(d / time.Second),
	})
	if err != nil {
		return fmt.Errorf("op=queue.extend_visibility: %w", err)
	}
	return nil
}
