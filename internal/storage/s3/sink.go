// Package s3 provides a Sink backed by Amazon S3 or an S3-compatible store.
package s3

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Config captures the parameters required to build an S3 client.
type Config struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	HTTPClient      *http.Client
}

// PutObjectAPI is the subset of the S3 client the sink needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Sink writes objects with a single PutObject call.
type Sink struct {
	client      PutObjectAPI
	contentType string
}

// New wraps an existing S3 client.
func New(client PutObjectAPI, contentType string) (*Sink, error) {
	if client == nil {
		return nil, fmt.Errorf("s3 client is required")
	}
	return &Sink{client: client, contentType: contentType}, nil
}

// NewFromConfig loads AWS configuration (default credential chain unless
// static keys are provided) and returns a sink.
func NewFromConfig(ctx context.Context, cfg Config, contentType string) (*Sink, error) {
	if cfg.Region == "" {
		return nil, fmt.Errorf("s3 region is required")
	}
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, awsconfig.WithHTTPClient(cfg.HTTPClient))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return New(client, contentType)
}

// Put uploads data as one object.
func (s *Sink) Put(ctx context.Context, bucket, key string, data []byte) error {
	if strings.TrimSpace(bucket) == "" {
		return fmt.Errorf("bucket is required")
	}
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("key is required")
	}
	input := &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if s.contentType != "" {
		input.ContentType = aws.String(s.contentType)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("put object s3://%s/%s: %w", bucket, key, err)
	}
	return nil
}
