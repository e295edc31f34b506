// Package memory contains an in-memory notifier for tests.
package memory

import (
	"context"
	"sync"
)

// Message captures one Notify call.
type Message struct {
	Topic   string
	Message string
}

// Notifier stores alerts for inspection.
type Notifier struct {
	mu       sync.RWMutex
	messages []Message
}

// New returns a memory Notifier.
func New() *Notifier {
	return &Notifier{}
}

// Notify records the alert.
func (n *Notifier) Notify(_ context.Context, topic, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, Message{Topic: topic, Message: message})
}

// Messages returns the recorded alerts.
func (n *Notifier) Messages() []Message {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]Message, len(n.messages))
	copy(out, n.messages)
	return out
}
