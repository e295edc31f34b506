// Package memory stores objects in-memory for tests and dry runs.
package memory

import (
	"context"
	"fmt"
	"sync"
)

// Sink keeps every object keyed by bucket and key.
type Sink struct {
	mu      sync.RWMutex
	objects map[string][]byte
	puts    int
	err     error
}

// NewSink creates an empty in-memory sink.
func NewSink() *Sink {
	return &Sink{objects: make(map[string][]byte)}
}

// FailWith makes every subsequent Put return err. A nil err restores normal behavior.
func (s *Sink) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Put stores a copy of data.
func (s *Sink) Put(_ context.Context, bucket, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts++
	if s.err != nil {
		return fmt.Errorf("put %s/%s: %w", bucket, key, s.err)
	}
	s.objects[path(bucket, key)] = append([]byte(nil), data...)
	return nil
}

// Object returns the stored bytes for bucket/key.
func (s *Sink) Object(bucket, key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[path(bucket, key)]
	return data, ok
}

// Puts returns the number of Put calls, including failed ones.
func (s *Sink) Puts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.puts
}

func path(bucket, key string) string {
	return bucket + "/" + key
}
