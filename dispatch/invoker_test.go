package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"

	"github.com/baldanca/sqs-drainer/source"
)

type fakeLambdaAPI struct {
	mu sync.Mutex

	calls  int
	lastIn *lambda.InvokeInput

	out *lambda.InvokeOutput
	err error
}

func (f *fakeLambdaAPI) Invoke(ctx context.Context, in *lambda.InvokeInput, _ ...func(*lambda.Options)) (*lambda.InvokeOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	f.lastIn = in
	if f.err != nil {
		return nil, f.err
	}
	if f.out != nil {
		return f.out, nil
	}
	return &lambda.InvokeOutput{StatusCode: 200}, nil
}

func TestLambdaInvoker_SendsMessageAsPayload(t *testing.T) {
	f := &fakeLambdaAPI{}
	inv := NewLambdaInvoker(f, DefaultLambdaConfig)

	msg := source.Message{ID: "1", Handle: "handle_for_1", Body: `{"eventType":"event_1"}`}
	if err := inv.Invoke(context.Background(), "myLambda", msg); err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	if f.calls != 1 {
		t.Fatalf("calls=%d want=1", f.calls)
	}
	if aws.ToString(f.lastIn.FunctionName) != "myLambda" {
		t.Fatalf("function: %q", aws.ToString(f.lastIn.FunctionName))
	}
	if f.lastIn.InvocationType != lambdatypes.InvocationTypeRequestResponse {
		t.Fatalf("invocation type: %q", f.lastIn.InvocationType)
	}
	if f.lastIn.Qualifier != nil {
		t.Fatalf("unexpected qualifier %q", aws.ToString(f.lastIn.Qualifier))
	}

	var got map[string]string
	if err := json.Unmarshal(f.lastIn.Payload, &got); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if got["MessageId"] != "1" || got["ReceiptHandle"] != "handle_for_1" || got["Body"] != msg.Body {
		t.Fatalf("payload=%v", got)
	}
}

func TestLambdaInvoker_Qualifier(t *testing.T) {
	f := &fakeLambdaAPI{}
	inv := NewLambdaInvoker(f, LambdaConfig{InvocationType: lambdatypes.InvocationTypeEvent, Qualifier: "live"})

	if err := inv.Invoke(context.Background(), "w", source.Message{ID: "1"}); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if aws.ToString(f.lastIn.Qualifier) != "live" || f.lastIn.InvocationType != lambdatypes.InvocationTypeEvent {
		t.Fatalf("input=%+v", f.lastIn)
	}
}

func TestLambdaInvoker_TransportError(t *testing.T) {
	boom := errors.New("throttled")
	inv := NewLambdaInvoker(&fakeLambdaAPI{err: boom}, LambdaConfig{})

	if err := inv.Invoke(context.Background(), "w", source.Message{ID: "1"}); !errors.Is(err, boom) {
		t.Fatalf("expected throttled, got %v", err)
	}
}

func TestLambdaInvoker_FunctionError(t *testing.T) {
	f := &fakeLambdaAPI{out: &lambda.InvokeOutput{
		StatusCode:    200,
		FunctionError: aws.String("Unhandled"),
		Payload:       []byte(`{"errorMessage":"bad input"}`),
	}}
	inv := NewLambdaInvoker(f, DefaultLambdaConfig)

	err := inv.Invoke(context.Background(), "w", source.Message{ID: "1"})
	var ferr *FunctionError
	if !errors.As(err, &ferr) {
		t.Fatalf("expected *FunctionError, got %T (%v)", err, err)
	}
	if ferr.Kind != "Unhandled" || ferr.Function != "w" {
		t.Fatalf("function error=%+v", ferr)
	}
}

func TestSimulatedInvoker(t *testing.T) {
	s := SimulatedInvoker{Min: time.Millisecond, Max: 3 * time.Millisecond}
	if err := s.Invoke(context.Background(), "w", source.Message{}); err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	slow := SimulatedInvoker{Min: time.Hour, Max: time.Hour}
	if err := slow.Invoke(ctx, "w", source.Message{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
}
