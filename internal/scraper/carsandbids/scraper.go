package carsandbids

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/carsnbids-loader/internal/auction"
	"github.com/JakeFAU/carsnbids-loader/internal/browser"
)

// Config locates the listing pages.
type Config struct {
	BaseURL     string
	ListingPath string
}

// Scraper implements auction.Discoverer and auction.Fetcher on top of
// browser sessions.
type Scraper struct {
	launcher browser.Launcher
	base     *url.URL
	listing  string
	logger   *zap.Logger
}

// New builds a Scraper.
func New(cfg Config, launcher browser.Launcher, logger *zap.Logger) (*Scraper, error) {
	if launcher == nil {
		return nil, errors.New("browser launcher is required")
	}
	base, err := url.Parse(strings.TrimSpace(cfg.BaseURL))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}
	listing := cfg.ListingPath
	if listing == "" {
		listing = "/past-auctions/"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scraper{
		launcher: launcher,
		base:     base,
		listing:  listing,
		logger:   logger,
	}, nil
}

// listingURL returns the absolute URL of listing page n (1-based).
func (s *Scraper) listingURL(page int) string {
	ref := &url.URL{Path: s.listing}
	u := s.base.ResolveReference(ref)
	q := u.Query()
	q.Set("page", fmt.Sprint(page))
	u.RawQuery = q.Encode()
	return u.String()
}

// Discover walks listing pages 1..maxPages with a single browser session and
// returns the auction URLs found, in page order. A page with no auctions ends
// the walk. Any failure is returned as *auction.DiscoveryError.
func (s *Scraper) Discover(ctx context.Context, maxPages int) ([]auction.Identifier, error) {
	if maxPages <= 0 {
		return nil, &auction.DiscoveryError{Err: fmt.Errorf("max pages must be > 0, got %d", maxPages)}
	}
	var ids []auction.Identifier
	err := browser.WithSession(ctx, s.launcher, func(session browser.Session) error {
		for page := 1; page <= maxPages; page++ {
			pageURL := s.listingURL(page)
			html, err := session.Render(ctx, pageURL, listingReadySelector)
			if err != nil {
				return &auction.DiscoveryError{Page: page, URL: pageURL, Err: err}
			}
			found, err := ParseListing(html, s.base)
			if err != nil {
				return &auction.DiscoveryError{Page: page, URL: pageURL, Err: err}
			}
			s.logger.Info("listing page scraped", zap.Int("page", page), zap.Int("auctions", len(found)))
			if len(found) == 0 {
				return nil
			}
			ids = append(ids, found...)
		}
		return nil
	})
	if err != nil {
		var discErr *auction.DiscoveryError
		if errors.As(err, &discErr) {
			return nil, discErr
		}
		return nil, &auction.DiscoveryError{Err: err}
	}
	return ids, nil
}

// Fetch renders one auction page in a dedicated session and parses it.
// Failures are returned as *auction.FetchError.
func (s *Scraper) Fetch(ctx context.Context, id auction.Identifier) (auction.Record, error) {
	var record auction.Record
	err := browser.WithSession(ctx, s.launcher, func(session browser.Session) error {
		html, err := session.Render(ctx, id.String(), detailReadySelector)
		if err != nil {
			return err
		}
		record, err = ParseDetail(html, id)
		return err
	})
	if err != nil {
		return nil, &auction.FetchError{Identifier: id, Err: err}
	}
	return record, nil
}
