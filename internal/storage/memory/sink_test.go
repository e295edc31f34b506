package memory

import (
	"context"
	"errors"
	"testing"
)

func TestSinkPutCopiesData(t *testing.T) {
	t.Parallel()

	sink := NewSink()
	payload := []byte("content")
	if err := sink.Put(context.Background(), "bucket", "carsnbids/2025-11-14.parquet", payload); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	payload[0] = 'C'
	stored, ok := sink.Object("bucket", "carsnbids/2025-11-14.parquet")
	if !ok {
		t.Fatal("expected object to be stored")
	}
	if string(stored) != "content" {
		t.Fatalf("expected stored copy to be immutable, got %q", stored)
	}
	if sink.Puts() != 1 {
		t.Fatalf("expected 1 put, got %d", sink.Puts())
	}
}

func TestSinkFailWith(t *testing.T) {
	t.Parallel()

	sink := NewSink()
	boom := errors.New("access denied")
	sink.FailWith(boom)
	err := sink.Put(context.Background(), "bucket", "key", []byte("x"))
	if !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}
	if _, ok := sink.Object("bucket", "key"); ok {
		t.Fatal("failed put must not store an object")
	}

	sink.FailWith(nil)
	if err := sink.Put(context.Background(), "bucket", "key", []byte("x")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if sink.Puts() != 2 {
		t.Fatalf("expected 2 puts, got %d", sink.Puts())
	}
}
