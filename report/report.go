package report

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/baldanca/sqs-drainer/drainer"
)

// Report is the JSON summary of one drain run.
type Report struct {
	RunID      string    `json:"run_id"`
	QueueURL   string    `json:"queue_url"`
	WorkerID   string    `json:"worker_id"`
	FinishedAt time.Time `json:"finished_at"`
	DurationMS int64     `json:"duration_ms"`
	StopReason string    `json:"stop_reason"`

	Polls           int `json:"polls"`
	Received        int `json:"received"`
	Succeeded       int `json:"succeeded"`
	Failed          int `json:"failed"`
	PollErrors      int `json:"poll_errors"`
	PeakConcurrency int `json:"peak_concurrency"`

	Errors []string `json:"errors"`
}

func FromResult(queueURL, workerID string, res drainer.Result, finishedAt time.Time) Report {
	errs := make([]string, 0, len(res.Errors))
	for _, err := range res.Errors {
		errs = append(errs, err.Error())
	}
	return Report{
		RunID:           res.RunID,
		QueueURL:        queueURL,
		WorkerID:        workerID,
		FinishedAt:      finishedAt.UTC(),
		DurationMS:      res.Duration.Milliseconds(),
		StopReason:      res.StopReason.String(),
		Polls:           res.Polls,
		Received:        res.Received,
		Succeeded:       res.Succeeded,
		Failed:          res.Failed,
		PollErrors:      res.PollErrors,
		PeakConcurrency: res.PeakConcurrency,
		Errors:          errs,
	}
}

// KeyFunc names the object a report is stored under.
type KeyFunc func(r Report) string

// DefaultKey partitions reports by hour; the run ID keeps keys unique across
// concurrent runs.
func DefaultKey(r Report) string {
	t := r.FinishedAt.UTC()
	return fmt.Sprintf("%04d/%02d/%02d/%02d/%s.json",
		t.Year(), int(t.Month()), t.Day(), t.Hour(), r.RunID,
	)
}

// Publisher writes reports to a Sink.
type Publisher struct {
	sink Sink
	key  KeyFunc
}

func NewPublisher(sink Sink, key KeyFunc) *Publisher {
	if sink == nil {
		sink = NopSink{}
	}
	if key == nil {
		key = DefaultKey
	}
	return &Publisher{sink: sink, key: key}
}

func (p *Publisher) Publish(ctx context.Context, r Report) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return p.sink.Write(ctx, WriteRequest{
		Key:         p.key(r),
		Data:        data,
		ContentType: "application/json",
		Metadata: map[string]string{
			"run-id":      r.RunID,
			"stop-reason": r.StopReason,
			"errors":      strconv.Itoa(len(r.Errors)),
		},
	})
}
