// Package browser is the DOM query and wait capability the crawler and the
// detail fetcher drive. The production implementation is backed by go-rod;
// browsertest provides an in-memory one.
package browser

import (
	"context"
	"errors"
)

var (
	// ErrNotFound means a selector matched nothing.
	ErrNotFound = errors.New("element not found")
	// ErrTimeout means an element or condition did not appear in time.
	ErrTimeout = errors.New("wait timed out")
	// ErrSessionLost means the automation session itself is unusable.
	ErrSessionLost = errors.New("browser session lost")
)

// Session is one browser context. A Session and its pages must be used by a
// single goroutine at a time.
type Session interface {
	NewPage(ctx context.Context) (Page, error)
	// NewContext opens an independent browser context sharing the same
	// browser process, for workers that need their own navigation state.
	NewContext(ctx context.Context) (Session, error)
	Close() error
}

// Page is one tab.
type Page interface {
	Navigate(ctx context.Context, url string) error
	// WaitFor blocks until selector matches or ctx is done, in which case
	// the error wraps ErrTimeout.
	WaitFor(ctx context.Context, selector string) (Element, error)
	Find(selector string) (Element, error)
	FindAll(selector string) ([]Element, error)
	Close() error
}

// Element is a node in the rendered DOM.
type Element interface {
	Text() (string, error)
	// Attribute reports the attribute value and whether it is present.
	Attribute(name string) (string, bool, error)
	// OuterHTML serializes the element including its own tag.
	OuterHTML() (string, error)
	Find(selector string) (Element, error)
	FindAll(selector string) ([]Element, error)
	// Closest returns the nearest ancestor with the given tag name.
	Closest(tag string) (Element, error)
	Interactable() (bool, error)
	Activate() error
}

// IsSessionLost reports whether err means the session can no longer be used.
func IsSessionLost(err error) bool {
	return errors.Is(err, ErrSessionLost)
}
