package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/baldanca/sqs-drainer/config"
	"github.com/baldanca/sqs-drainer/dispatch"
	"github.com/baldanca/sqs-drainer/logger"
	"github.com/baldanca/sqs-drainer/report"
	"github.com/baldanca/sqs-drainer/source"
)

type scriptedReceiver struct {
	mu      sync.Mutex
	batches []source.Batch
	queues  []string
}

func (r *scriptedReceiver) Receive(ctx context.Context, queueURL string) (source.Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queues = append(r.queues, queueURL)
	if len(r.batches) == 0 {
		return source.Batch{}, nil
	}
	b := r.batches[0]
	r.batches = r.batches[1:]
	return b, nil
}

type memSink struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (s *memSink) Write(ctx context.Context, req report.WriteRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = append(s.keys, req.Key)
	return s.err
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg.QueueURL = "cfg-queue"
	cfg.WorkerID = "cfg-worker"
	return cfg
}

func TestApp_HandleUsesConfigDefaults(t *testing.T) {
	recv := &scriptedReceiver{batches: []source.Batch{
		{{ID: "1"}, {ID: "2"}},
	}}
	var mu sync.Mutex
	var workers []string
	inv := dispatch.InvokerFunc(func(ctx context.Context, workerID string, msg source.Message) error {
		mu.Lock()
		workers = append(workers, workerID)
		mu.Unlock()
		return nil
	})
	sink := &memSink{}

	a, err := newApp(testConfig(t), logger.Nop(), recv, inv, sink)
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}

	rep, err := a.handle(context.Background(), invokeEvent{})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}

	if rep.QueueURL != "cfg-queue" || rep.WorkerID != "cfg-worker" {
		t.Fatalf("report=%+v", rep)
	}
	if rep.Succeeded != 2 || len(rep.Errors) != 0 {
		t.Fatalf("report=%+v", rep)
	}
	if len(workers) != 2 || workers[0] != "cfg-worker" {
		t.Fatalf("workers=%v", workers)
	}
	if recv.queues[0] != "cfg-queue" {
		t.Fatalf("queues=%v", recv.queues)
	}
	if len(sink.keys) != 1 || !strings.HasSuffix(sink.keys[0], rep.RunID+".json") {
		t.Fatalf("keys=%v", sink.keys)
	}
}

func TestApp_HandleEventOverridesConfig(t *testing.T) {
	recv := &scriptedReceiver{}
	inv := dispatch.InvokerFunc(func(context.Context, string, source.Message) error { return nil })

	a, err := newApp(testConfig(t), logger.Nop(), recv, inv, report.NopSink{})
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}

	rep, err := a.handle(context.Background(), invokeEvent{QueueURL: "ev-queue", WorkerID: "ev-worker"})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if rep.QueueURL != "ev-queue" || rep.WorkerID != "ev-worker" {
		t.Fatalf("report=%+v", rep)
	}
}

func TestApp_HandleReturnsRecordedErrorsInReport(t *testing.T) {
	recv := &scriptedReceiver{batches: []source.Batch{{{ID: "1"}, {ID: "2"}}}}
	inv := dispatch.InvokerFunc(func(ctx context.Context, _ string, msg source.Message) error {
		if msg.ID == "2" {
			return errors.New("boom")
		}
		return nil
	})

	a, err := newApp(testConfig(t), logger.Nop(), recv, inv, &memSink{err: errors.New("s3 down")})
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}

	rep, err := a.handle(context.Background(), invokeEvent{})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(rep.Errors) != 1 || !strings.Contains(rep.Errors[0], "boom") || rep.Failed != 1 {
		t.Fatalf("report=%+v", rep)
	}
}

func TestApp_HandleMissingQueueIsAnError(t *testing.T) {
	cfg := testConfig(t)
	cfg.QueueURL = ""
	inv := dispatch.InvokerFunc(func(context.Context, string, source.Message) error { return nil })

	a, err := newApp(cfg, logger.Nop(), &scriptedReceiver{}, inv, report.NopSink{})
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	if _, err := a.handle(context.Background(), invokeEvent{}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestRunBudget(t *testing.T) {
	if runBudget(context.Background(), 0, 15*time.Second)() {
		t.Fatalf("no timeout and no deadline must not stop")
	}
	timed := runBudget(context.Background(), time.Millisecond, 0)
	time.Sleep(5 * time.Millisecond)
	if !timed() {
		t.Fatalf("elapsed timeout must stop")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if !runBudget(ctx, 0, 15*time.Second)() {
		t.Fatalf("deadline inside margin must stop")
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)

	if !strings.HasPrefix(out.String(), "drainer dev") {
		t.Fatalf("out=%q", out.String())
	}
}
