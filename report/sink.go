package report

import "context"

type WriteRequest struct {
	Key         string
	Data        []byte
	ContentType string
	// Metadata is stored alongside the object (S3 user metadata) so runs can
	// be triaged without downloading the body.
	Metadata map[string]string
}

type Sink interface {
	Write(ctx context.Context, req WriteRequest) error
}

// NopSink discards every report.
type NopSink struct{}

func (NopSink) Write(context.Context, WriteRequest) error { return nil }
