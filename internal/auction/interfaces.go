package auction

import (
	"context"
	"time"
)

// Discoverer lists auction identifiers from at most maxPages listing pages.
type Discoverer interface {
	Discover(ctx context.Context, maxPages int) ([]Identifier, error)
}

// Fetcher scrapes one auction detail page into a Record.
type Fetcher interface {
	Fetch(ctx context.Context, id Identifier) (Record, error)
}

// Sink writes one object to durable storage in a single put.
type Sink interface {
	Put(ctx context.Context, bucket, key string, data []byte) error
}

// Notifier sends an out-of-band alert. Failures are handled by the implementation.
type Notifier interface {
	Notify(ctx context.Context, topic, message string)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, id Identifier) (Record, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, id Identifier) (Record, error) {
	return f(ctx, id)
}
