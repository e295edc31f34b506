package carsandbids

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/carsnbids-loader/internal/auction"
	"github.com/JakeFAU/carsnbids-loader/internal/browser"
)

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(Config{BaseURL: "https://carsandbids.com"}, nil, nil)
	require.Error(t, err)

	_, err = New(Config{BaseURL: "not a url"}, &fakeLauncher{}, nil)
	require.Error(t, err)

	s, err := New(Config{BaseURL: "https://carsandbids.com"}, &fakeLauncher{}, nil)
	require.NoError(t, err)
	require.Equal(t, "https://carsandbids.com/past-auctions/?page=3", s.listingURL(3))
}

func TestDiscoverWalksPagesWithOneSession(t *testing.T) {
	t.Parallel()

	launcher := &fakeLauncher{pages: map[string]string{
		"https://carsandbids.com/past-auctions/?page=1": listingHTML,
		"https://carsandbids.com/past-auctions/?page=2": `<ul class="auctions-list"><li class="auction-item"><a href="/auctions/p2/car">car</a></li></ul>`,
		"https://carsandbids.com/past-auctions/?page=3": `<ul class="auctions-list"><li class="auction-item"><a href="/auctions/p3/car">car</a></li></ul>`,
	}}
	s, err := New(Config{BaseURL: "https://carsandbids.com"}, launcher, nil)
	require.NoError(t, err)

	ids, err := s.Discover(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, ids, 4)
	require.Equal(t, auction.Identifier("https://carsandbids.com/auctions/p2/car"), ids[3])
	require.Equal(t, 1, launcher.setupCount())
	require.Equal(t, 1, launcher.teardownCount())
}

func TestDiscoverStopsOnEmptyPage(t *testing.T) {
	t.Parallel()

	launcher := &fakeLauncher{pages: map[string]string{
		"https://carsandbids.com/past-auctions/?page=1": listingHTML,
		"https://carsandbids.com/past-auctions/?page=2": `<div class="no-results"></div>`,
	}}
	s, err := New(Config{BaseURL: "https://carsandbids.com"}, launcher, nil)
	require.NoError(t, err)

	ids, err := s.Discover(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, ids, 3)
	require.Equal(t, []string{
		"https://carsandbids.com/past-auctions/?page=1",
		"https://carsandbids.com/past-auctions/?page=2",
	}, launcher.visited())
}

func TestDiscoverPageFailureIsFatal(t *testing.T) {
	t.Parallel()

	launcher := &fakeLauncher{pages: map[string]string{
		"https://carsandbids.com/past-auctions/?page=1": listingHTML,
	}}
	s, err := New(Config{BaseURL: "https://carsandbids.com"}, launcher, nil)
	require.NoError(t, err)

	ids, err := s.Discover(context.Background(), 2)
	require.Nil(t, ids)
	var discErr *auction.DiscoveryError
	require.ErrorAs(t, err, &discErr)
	require.Equal(t, 2, discErr.Page)
	require.Equal(t, 1, launcher.teardownCount())
}

func TestDiscoverRejectsNonPositivePages(t *testing.T) {
	t.Parallel()

	s, err := New(Config{BaseURL: "https://carsandbids.com"}, &fakeLauncher{}, nil)
	require.NoError(t, err)
	_, err = s.Discover(context.Background(), 0)
	var discErr *auction.DiscoveryError
	require.ErrorAs(t, err, &discErr)
}

func TestDiscoverSetupFailure(t *testing.T) {
	t.Parallel()

	s, err := New(Config{BaseURL: "https://carsandbids.com"}, &fakeLauncher{setupErr: auction.ErrNoSession}, nil)
	require.NoError(t, err)
	_, err = s.Discover(context.Background(), 1)
	var discErr *auction.DiscoveryError
	require.ErrorAs(t, err, &discErr)
	require.ErrorIs(t, err, auction.ErrNoSession)
}

func TestFetchUsesDedicatedSession(t *testing.T) {
	t.Parallel()

	id := auction.Identifier("https://carsandbids.com/auctions/rk3Xy1/2008-porsche-911")
	launcher := &fakeLauncher{pages: map[string]string{id.String(): detailHTML}}
	s, err := New(Config{BaseURL: "https://carsandbids.com"}, launcher, nil)
	require.NoError(t, err)

	rec, err := s.Fetch(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, "2008 Porsche 911 Carrera S", rec["title"])

	_, err = s.Fetch(context.Background(), "https://carsandbids.com/auctions/missing")
	var fetchErr *auction.FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.Equal(t, auction.Identifier("https://carsandbids.com/auctions/missing"), fetchErr.Identifier)

	require.Equal(t, 2, launcher.setupCount())
	require.Equal(t, 2, launcher.teardownCount())
}

func TestFetchEmptyPage(t *testing.T) {
	t.Parallel()

	id := auction.Identifier("https://carsandbids.com/auctions/blank")
	launcher := &fakeLauncher{pages: map[string]string{id.String(): "<html></html>"}}
	s, err := New(Config{BaseURL: "https://carsandbids.com"}, launcher, nil)
	require.NoError(t, err)

	_, err = s.Fetch(context.Background(), id)
	require.True(t, errors.Is(err, auction.ErrEmptyPage))
}

type fakeLauncher struct {
	mu        sync.Mutex
	pages     map[string]string
	setupErr  error
	setups    int
	teardowns int
	urls      []string
}

func (l *fakeLauncher) Setup(context.Context) (browser.Session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.setupErr != nil {
		return nil, l.setupErr
	}
	l.setups++
	return &fakeSession{launcher: l}, nil
}

func (l *fakeLauncher) Teardown(browser.Session) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.teardowns++
}

func (l *fakeLauncher) setupCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.setups
}

func (l *fakeLauncher) teardownCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.teardowns
}

func (l *fakeLauncher) visited() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.urls...)
}

type fakeSession struct {
	launcher *fakeLauncher
}

func (s *fakeSession) Render(_ context.Context, url, _ string) (string, error) {
	s.launcher.mu.Lock()
	defer s.launcher.mu.Unlock()
	s.launcher.urls = append(s.launcher.urls, url)
	html, ok := s.launcher.pages[url]
	if !ok {
		return "", fmt.Errorf("navigate %s: timeout", url)
	}
	return html, nil
}
