// Package ntfy sends alerts to an ntfy server (https://ntfy.sh).
package ntfy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultServer = "https://ntfy.sh"

// Config locates the ntfy server.
type Config struct {
	Server  string
	Title   string
	Timeout time.Duration
}

// Notifier publishes a plain-text message to {server}/{topic}.
type Notifier struct {
	server *url.URL
	title  string
	client *http.Client
	logger *zap.Logger
}

// New creates a Notifier. client may be nil.
func New(cfg Config, client *http.Client, logger *zap.Logger) (*Notifier, error) {
	server := cfg.Server
	if server == "" {
		server = defaultServer
	}
	u, err := url.Parse(server)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid ntfy server %q", server)
	}
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{server: u, title: cfg.Title, client: client, logger: logger}, nil
}

// Notify posts message to topic. Delivery failures are logged only.
func (n *Notifier) Notify(ctx context.Context, topic, message string) {
	if err := n.send(ctx, topic, message); err != nil {
		n.logger.Warn("ntfy notification failed", zap.String("topic", topic), zap.Error(err))
	}
}

func (n *Notifier) send(ctx context.Context, topic, message string) error {
	topic = strings.Trim(topic, "/ ")
	if topic == "" {
		return fmt.Errorf("topic is required")
	}
	endpoint := n.server.JoinPath(topic)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), strings.NewReader(message))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if n.title != "" {
		req.Header.Set("Title", n.title)
	}
	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post notification: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("ntfy returned status %d", resp.StatusCode)
	}
	return nil
}
