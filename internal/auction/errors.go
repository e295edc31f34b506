package auction

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyPage is returned when a page rendered without the expected content.
	ErrEmptyPage = errors.New("page has no auction content")
	// ErrNoSession is returned when a browser session could not be started.
	ErrNoSession = errors.New("browser session unavailable")
)

// DiscoveryError is fatal to a run: no fetches are attempted after it.
type DiscoveryError struct {
	Page int
	URL  string
	Err  error
}

func (e *DiscoveryError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("discover auctions: %v", e.Err)
	}
	return fmt.Sprintf("discover auctions page %d (%s): %v", e.Page, e.URL, e.Err)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// FetchError is absorbed by the collector for a single identifier.
type FetchError struct {
	Identifier Identifier
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch auction %s: %v", e.Identifier, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// PersistError describes a batch that could not be encoded or written.
type PersistError struct {
	Key string
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist batch %s: %v", e.Key, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}
