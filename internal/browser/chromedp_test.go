package browser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestNewChromeValidation(t *testing.T) {
	t.Parallel()

	_, err := NewChrome(Config{NavigationTimeout: -time.Second}, nil)
	require.Error(t, err)

	_, err = NewChrome(Config{NavigationsPerSecond: -1}, nil)
	require.Error(t, err)

	chrome, err := NewChrome(Config{NavigationsPerSecond: 2}, nil)
	require.NoError(t, err)
	require.Equal(t, rate.Limit(2), chrome.limiter.Limit())

	chrome, err = NewChrome(Config{}, nil)
	require.NoError(t, err)
	require.Equal(t, rate.Inf, chrome.limiter.Limit())
}

func TestChromeDefaults(t *testing.T) {
	t.Parallel()

	chrome := &Chrome{}
	require.Equal(t, 45*time.Second, chrome.navTimeout())
	require.Equal(t, 500*time.Millisecond, chrome.settle())

	chrome.cfg = Config{NavigationTimeout: time.Second, Settle: time.Millisecond}
	require.Equal(t, time.Second, chrome.navTimeout())
	require.Equal(t, time.Millisecond, chrome.settle())
}

func TestAllocatorOptionsGrowWithConfig(t *testing.T) {
	t.Parallel()

	base := (&Chrome{cfg: Config{Headless: true}}).allocatorOptions()
	withPath := (&Chrome{cfg: Config{Headless: true, ExecPath: "/usr/bin/chromium"}}).allocatorOptions()
	require.Len(t, withPath, len(base)+1)
}

func TestTeardownIgnoresForeignSession(t *testing.T) {
	t.Parallel()

	chrome, err := NewChrome(Config{}, nil)
	require.NoError(t, err)
	require.NotPanics(t, func() {
		chrome.Teardown(&fakeSession{})
		chrome.Teardown(nil)
	})
}

func TestWithSessionReleasesOnEveryPath(t *testing.T) {
	t.Parallel()

	launcher := &fakeLauncher{}
	boom := errors.New("boom")

	err := WithSession(context.Background(), launcher, func(Session) error { return nil })
	require.NoError(t, err)

	err = WithSession(context.Background(), launcher, func(Session) error { return boom })
	require.ErrorIs(t, err, boom)

	require.Panics(t, func() {
		_ = WithSession(context.Background(), launcher, func(Session) error { panic("fetch exploded") })
	})

	require.Equal(t, 3, launcher.setups)
	require.Equal(t, 3, launcher.teardowns)
}

func TestWithSessionSetupFailure(t *testing.T) {
	t.Parallel()

	launcher := &fakeLauncher{setupErr: errors.New("no chrome")}
	called := false
	err := WithSession(context.Background(), launcher, func(Session) error {
		called = true
		return nil
	})
	require.ErrorContains(t, err, "setup session: no chrome")
	require.False(t, called)
	require.Zero(t, launcher.teardowns)

	require.Error(t, WithSession(context.Background(), nil, func(Session) error { return nil }))
}

type fakeSession struct{}

func (fakeSession) Render(context.Context, string, string) (string, error) {
	return "<html></html>", nil
}

type fakeLauncher struct {
	setupErr  error
	setups    int
	teardowns int
}

func (l *fakeLauncher) Setup(context.Context) (Session, error) {
	if l.setupErr != nil {
		return nil, l.setupErr
	}
	l.setups++
	return &fakeSession{}, nil
}

func (l *fakeLauncher) Teardown(Session) {
	l.teardowns++
}
