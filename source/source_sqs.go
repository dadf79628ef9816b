package source

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// SQSConfig holds the ReceiveMessage tunables passed straight through to SQS.
type SQSConfig struct {
	MaxMessages       int32
	VisibilityTimeout time.Duration
	WaitTime          time.Duration

	// RequestTimeout bounds a single ReceiveMessage call. Zero means
	// WaitTime plus five seconds.
	RequestTimeout time.Duration
}

var DefaultSQSConfig = SQSConfig{
	MaxMessages:       10,
	VisibilityTimeout: 60 * time.Second,
	WaitTime:          2 * time.Second,
}

func (c *SQSConfig) validate() {
	if c.MaxMessages < 1 || c.MaxMessages > 10 {
		panic("max messages must be between 1 and 10")
	}
	if c.WaitTime < 0 || c.WaitTime > 20*time.Second {
		panic("wait time must be between 0 and 20s")
	}
	if c.VisibilityTimeout < 0 {
		panic("visibility timeout must be non-negative")
	}
	if c.RequestTimeout < 0 {
		panic("request timeout must be non-negative")
	}
}

type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
}

// SQSReceiver polls an SQS queue, one ReceiveMessage call per Receive.
type SQSReceiver struct {
	cfg    SQSConfig
	client sqsAPI

	waitSec       int32
	visibilitySec int32
	reqTimeout    time.Duration
}

func NewSQSReceiver(client sqsAPI, cfg SQSConfig) *SQSReceiver {
	if client == nil {
		panic("sqs client is required")
	}
	cfg.validate()

	r := &SQSReceiver{
		cfg:           cfg,
		client:        client,
		waitSec:       int32(cfg.WaitTime / time.Second),
		visibilitySec: int32(cfg.VisibilityTimeout / time.Second),
		reqTimeout:    cfg.RequestTimeout,
	}
	if r.reqTimeout == 0 {
		r.reqTimeout = cfg.WaitTime + 5*time.Second
	}
	return r
}

func (r *SQSReceiver) Receive(ctx context.Context, queueURL string) (Batch, error) {
	reqCtx, cancel := context.WithTimeout(ctx, r.reqTimeout)
	defer cancel()

	out, err := r.client.ReceiveMessage(reqCtx, &sqs.ReceiveMessageInput{
		QueueUrl:              aws.String(queueURL),
		MaxNumberOfMessages:   r.cfg.MaxMessages,
		WaitTimeSeconds:       r.waitSec,
		VisibilityTimeout:     r.visibilitySec,
		MessageAttributeNames: []string{"All"},
		AttributeNames:        []sqstypes.QueueAttributeName{sqstypes.QueueAttributeNameAll},
	})
	if err != nil {
		return nil, err
	}
	if out == nil || len(out.Messages) == 0 {
		return Batch{}, nil
	}

	batch := make(Batch, 0, len(out.Messages))
	for i := range out.Messages {
		m := &out.Messages[i]
		batch = append(batch, Message{
			ID:     aws.ToString(m.MessageId),
			Handle: aws.ToString(m.ReceiptHandle),
			Body:   aws.ToString(m.Body),
		})
	}
	return batch, nil
}
