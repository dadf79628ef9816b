package report

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ReportCacheControl is set on every stored report.
const ReportCacheControl = "no-cache"

type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink stores each run report as one object under bucket/prefix, tagging it
// with the run's metadata.
type S3Sink struct {
	client s3API

	bucket string
	prefix string
}

func NewS3Sink(client s3API, bucket, prefix string) *S3Sink {
	if client == nil {
		panic("s3 client is required")
	}
	if strings.TrimSpace(bucket) == "" {
		panic("bucket is required")
	}
	return &S3Sink{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

func (s *S3Sink) objectKey(key string) string {
	// S3 keys are not paths; no cleaning.
	key = strings.TrimLeft(key, "/")
	if s.prefix != "" {
		key = s.prefix + "/" + key
	}
	return key
}

// metadata lowercases keys and drops empty values.
func metadata(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		if v == "" {
			continue
		}
		out[strings.ToLower(k)] = v
	}
	return out
}

func (s *S3Sink) Write(ctx context.Context, req WriteRequest) error {
	if req.Key == "" {
		return fmt.Errorf("empty report key")
	}

	key := s.objectKey(req.Key)
	bucket := s.bucket
	cl := int64(len(req.Data))
	cacheControl := ReportCacheControl

	input := s3.PutObjectInput{
		Bucket:        &bucket,
		Key:           &key,
		Body:          bytes.NewReader(req.Data),
		ContentLength: &cl,
		CacheControl:  &cacheControl,
		Metadata:      metadata(req.Metadata),
	}
	if req.ContentType != "" {
		ct := req.ContentType
		input.ContentType = &ct
	}

	if _, err := s.client.PutObject(ctx, &input); err != nil {
		return fmt.Errorf("put report key=%q: %w", key, err)
	}
	return nil
}
