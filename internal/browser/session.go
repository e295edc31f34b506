// Package browser owns headless browser sessions used to render auction pages.
package browser

import (
	"context"
	"errors"
	"fmt"
)

// Session is an opaque handle to one live browser. Sessions are never shared
// between concurrent units of work.
type Session interface {
	// Render navigates to url, waits until ready matches an element, and
	// returns the rendered document HTML.
	Render(ctx context.Context, url, ready string) (string, error)
}

// Launcher starts and stops browser sessions.
type Launcher interface {
	Setup(ctx context.Context) (Session, error)
	Teardown(session Session)
}

// WithSession acquires a session, runs fn with it, and tears the session down
// on every exit path, including a panic in fn.
func WithSession(ctx context.Context, launcher Launcher, fn func(Session) error) error {
	if launcher == nil {
		return errors.New("browser launcher is required")
	}
	session, err := launcher.Setup(ctx)
	if err != nil {
		return fmt.Errorf("setup session: %w", err)
	}
	defer launcher.Teardown(session)
	return fn(session)
}
