// Package browser defines the AI-assisted browser automation façade the
// engine drives.
//
// The engine never talks to a browser directly; it issues high-level
// instructions ("click on the compose button") through this contract and any
// implementation satisfying it is acceptable: a Stagehand-style automation
// sidecar, a CDP bridge, or the in-process mock used by the test suite.
package browser

import (
	"context"
	"time"
)

// Load states accepted by WaitForLoad.
const (
	// LoadDOMContentLoaded waits until the DOM is parsed.
	LoadDOMContentLoaded = "domcontentloaded"

	// LoadNetworkIdle waits until the page has gone network-quiet.
	LoadNetworkIdle = "networkidle"
)

// NavigateOptions controls a Navigate call.
type NavigateOptions struct {
	// WaitUntil is the load state Navigate blocks on.
	WaitUntil string

	// Timeout bounds the navigation; implementations return a deadline
	// error when exceeded.
	Timeout time.Duration
}

// ScreenshotOptions controls a Screenshot call.
type ScreenshotOptions struct {
	// FullPage captures the whole scrollable page rather than the viewport.
	FullPage bool

	// Selector restricts the capture to one element when non-empty.
	Selector string
}

// Page is one browser tab.
//
// Act, Extract and Observe are AI-driven: the implementation receives a
// natural-language instruction and is responsible for element
// disambiguation; the engine never falls back to low-level selectors.
type Page interface {
	// Navigate loads url and blocks until the requested load state.
	Navigate(ctx context.Context, url string, opts *NavigateOptions) error

	// WaitForLoad blocks until the page reaches the given load state or the
	// timeout elapses.
	WaitForLoad(ctx context.Context, state string, timeout time.Duration) error

	// Act performs an AI-driven element interaction described in prose.
	Act(ctx context.Context, instruction string) error

	// Extract performs an AI-driven structured extraction. The schema, when
	// non-nil, is a JSON-Schema document the implementation validates
	// against.
	Extract(ctx context.Context, instruction string, schema map[string]any) (map[string]any, error)

	// Observe performs an AI-driven read-only inspection of the page.
	Observe(ctx context.Context, instruction string) ([]map[string]any, error)

	// Screenshot captures the page as PNG bytes.
	Screenshot(ctx context.Context, opts *ScreenshotOptions) ([]byte, error)

	// GoBack navigates one entry back in the tab's history.
	GoBack(ctx context.Context) error

	// GoForward navigates one entry forward in the tab's history.
	GoForward(ctx context.Context) error

	// Reload reloads the current page.
	Reload(ctx context.Context) error

	// BringToFront raises the tab.
	BringToFront(ctx context.Context) error

	// URL returns the tab's current location.
	URL() string
}

// Context creates pages within one browser session. The engine holds exactly
// one Context per run and multiplexes named tabs over it.
type Context interface {
	// NewPage opens a fresh tab.
	NewPage(ctx context.Context) (Page, error)
}
