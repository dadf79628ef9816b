package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"

	"github.com/baldanca/sqs-drainer/source"
)

type lambdaAPI interface {
	Invoke(ctx context.Context, params *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

type LambdaConfig struct {
	// InvocationType defaults to RequestResponse so the outcome reflects the
	// worker's own result. Event only reports whether Lambda accepted it.
	InvocationType lambdatypes.InvocationType
	Qualifier      string
}

var DefaultLambdaConfig = LambdaConfig{
	InvocationType: lambdatypes.InvocationTypeRequestResponse,
}

// FunctionError is returned when the worker function ran but reported an
// error (handled or unhandled).
type FunctionError struct {
	Function string
	Kind     string
	Payload  string
}

func (e *FunctionError) Error() string {
	return fmt.Sprintf("lambda %s function error %s: %s", e.Function, e.Kind, e.Payload)
}

// invocationPayload mirrors the SQS message shape so workers can reuse their
// SQS event parsing.
type invocationPayload struct {
	MessageID     string `json:"MessageId"`
	ReceiptHandle string `json:"ReceiptHandle"`
	Body          string `json:"Body"`
}

// LambdaInvoker invokes a Lambda function per message; workerID is the
// function name or ARN.
type LambdaInvoker struct {
	client lambdaAPI
	cfg    LambdaConfig
}

func NewLambdaInvoker(client lambdaAPI, cfg LambdaConfig) *LambdaInvoker {
	if client == nil {
		panic("lambda client is required")
	}
	if cfg.InvocationType == "" {
		cfg.InvocationType = lambdatypes.InvocationTypeRequestResponse
	}
	return &LambdaInvoker{client: client, cfg: cfg}
}

func (l *LambdaInvoker) Invoke(ctx context.Context, workerID string, msg source.Message) error {
	payload, err := json.Marshal(invocationPayload{
		MessageID:     msg.ID,
		ReceiptHandle: msg.Handle,
		Body:          msg.Body,
	})
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	fn := workerID
	in := lambda.InvokeInput{
		FunctionName:   &fn,
		InvocationType: l.cfg.InvocationType,
		Payload:        payload,
	}
	if l.cfg.Qualifier != "" {
		q := l.cfg.Qualifier
		in.Qualifier = &q
	}

	out, err := l.client.Invoke(ctx, &in)
	if err != nil {
		return fmt.Errorf("lambda invoke %s: %w", workerID, err)
	}
	if out != nil && out.FunctionError != nil {
		return &FunctionError{Function: workerID, Kind: *out.FunctionError, Payload: string(out.Payload)}
	}
	return nil
}
