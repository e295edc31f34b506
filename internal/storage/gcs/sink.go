// Package gcs provides a Sink backed by Google Cloud Storage.
package gcs

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/storage"
)

// Sink writes objects to GCS buckets.
type Sink struct {
	client      *storage.Client
	contentType string
}

// New creates a GCS-backed sink.
func New(client *storage.Client, contentType string) (*Sink, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	return &Sink{
		client:      client,
		contentType: contentType,
	}, nil
}

// Put uploads data in a single request. The object only becomes visible
// once the upload completes.
func (s *Sink) Put(ctx context.Context, bucket, key string, data []byte) error {
	if strings.TrimSpace(bucket) == "" {
		return fmt.Errorf("bucket is required")
	}
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("key is required")
	}
	writer := s.client.Bucket(bucket).Object(key).NewWriter(ctx)
	writer.ChunkSize = 0
	if s.contentType != "" {
		writer.ContentType = s.contentType
	}
	if _, err := writer.Write(data); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return fmt.Errorf("write object %s: %w (close writer: %v)", key, err, closeErr)
		}
		return fmt.Errorf("write object %s: %w", key, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close writer for %s: %w", key, err)
	}
	return nil
}

// Close releases the underlying client.
func (s *Sink) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("close gcs client: %w", err)
	}
	return nil
}
