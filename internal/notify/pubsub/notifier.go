// Package pubsub sends alerts through Google Cloud Pub/Sub.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

// Alert is the JSON payload published for each notification.
type Alert struct {
	Topic   string    `json:"topic"`
	Message string    `json:"message"`
	SentAt  time.Time `json:"sent_at"`
}

type publishFunc func(ctx context.Context, msg *pubsub.Message) (string, error)

// Notifier publishes alerts to one Pub/Sub topic.
type Notifier struct {
	publish publishFunc
	stop    func()
	logger  *zap.Logger
	now     func() time.Time
}

// New creates a Notifier for the provided topic publisher.
func New(publisher *pubsub.Publisher, logger *zap.Logger) *Notifier {
	var publish publishFunc
	var stop func()
	if publisher != nil {
		publish = func(ctx context.Context, msg *pubsub.Message) (string, error) {
			return publisher.Publish(ctx, msg).Get(ctx)
		}
		stop = publisher.Stop
	}
	return newNotifier(publish, stop, logger)
}

func newNotifier(publish publishFunc, stop func(), logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{
		publish: publish,
		stop:    stop,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Notify publishes the alert and waits for the server ack. Failures are logged only.
func (n *Notifier) Notify(ctx context.Context, topic, message string) {
	id, err := n.send(ctx, topic, message)
	if err != nil {
		n.logger.Warn("pubsub notification failed", zap.String("topic", topic), zap.Error(err))
		return
	}
	n.logger.Debug("pubsub notification sent", zap.String("topic", topic), zap.String("message_id", id))
}

func (n *Notifier) send(ctx context.Context, topic, message string) (string, error) {
	if n.publish == nil {
		return "", fmt.Errorf("pubsub publisher is not configured")
	}
	data, err := json.Marshal(Alert{Topic: topic, Message: message, SentAt: n.now()})
	if err != nil {
		return "", fmt.Errorf("marshal alert: %w", err)
	}

	msg := &pubsub.Message{Data: data}
	msg.Attributes = map[string]string{"topic": topic}
	otel.GetTextMapPropagator().Inject(ctx, &pubsubCarrier{attrs: msg.Attributes})

	id, err := n.publish(ctx, msg)
	if err != nil {
		return "", fmt.Errorf("publish alert: %w", err)
	}
	return id, nil
}

// Close flushes pending publishes.
func (n *Notifier) Close() {
	if n.stop != nil {
		n.stop()
	}
}

// pubsubCarrier implements propagation.TextMapCarrier for Pub/Sub attributes.
type pubsubCarrier struct {
	attrs map[string]string
}

func (c *pubsubCarrier) Get(key string) string {
	return c.attrs[key]
}

func (c *pubsubCarrier) Set(key, value string) {
	c.attrs[key] = value
}

func (c *pubsubCarrier) Keys() []string {
	keys := make([]string, 0, len(c.attrs))
	for k := range c.attrs {
		keys = append(keys, k)
	}
	return keys
}
