package auction

import "sync"

// Identifier names one auction listing. It is the absolute listing URL.
type Identifier string

// String returns the identifier as a plain string.
func (i Identifier) String() string {
	return string(i)
}

// Record is one auction's scraped attributes keyed by field name.
// Values are scalars (string, int64, float64, bool). Field sets may differ
// between records of the same batch.
type Record map[string]any

// FieldURL is the field every fetched record carries.
const FieldURL = "url"

// Batch is an append-only collection of records built during one run.
// Append is safe for concurrent use; once Freeze is called further appends
// are rejected.
type Batch struct {
	mu      sync.Mutex
	records []Record
	frozen  bool
}

// NewBatch returns an empty batch.
func NewBatch() *Batch {
	return &Batch{}
}

// Append adds one record. It reports false when the batch is frozen.
func (b *Batch) Append(record Record) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.frozen {
		return false
	}
	b.records = append(b.records, record)
	return true
}

// Freeze marks the batch as final.
func (b *Batch) Freeze() {
	b.mu.Lock()
	b.frozen = true
	b.mu.Unlock()
}

// Frozen reports whether Freeze has been called.
func (b *Batch) Frozen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frozen
}

// Len returns the number of records appended so far.
func (b *Batch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.records)
}

// Records returns a copy of the record slice in append order.
func (b *Batch) Records() []Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Record, len(b.records))
	copy(out, b.records)
	return out
}

// Result is the outcome of one detail fetch as it crosses the worker pool boundary.
type Result struct {
	Identifier Identifier
	Record     Record
	Err        error
}

// OK reports whether the fetch produced a record.
func (r Result) OK() bool {
	return r.Err == nil && r.Record != nil
}
