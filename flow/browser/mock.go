package browser

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockContext is a scripted browser session for testing workflows without a
// live browser.
//
// Example:
//
//	bctx := browser.NewMockContext()
//	bctx.ExtractResults = append(bctx.ExtractResults, map[string]any{
//	    "emails": []any{map[string]any{"unread": true}},
//	})
//
// Pages created by the context share its scripted results in FIFO order.
type MockContext struct {
	mu sync.Mutex

	// ExtractResults are returned by Extract calls in order; the last entry
	// repeats once the queue drains.
	ExtractResults []map[string]any

	// ObserveResults are returned by Observe calls in order.
	ObserveResults [][]map[string]any

	// ActErr, when set, is returned by every Act call.
	ActErr error

	// NavigateErr, when set, is returned by every Navigate call.
	NavigateErr error

	// Pages lists every page opened through NewPage, in creation order.
	Pages []*MockPage

	extractCalls int
	observeCalls int
}

// NewMockContext creates an empty scripted browser session.
func NewMockContext() *MockContext {
	return &MockContext{}
}

// NewPage implements Context.
func (c *MockContext) NewPage(_ context.Context) (Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := &MockPage{ctx: c}
	c.Pages = append(c.Pages, p)
	return p, nil
}

func (c *MockContext) nextExtract() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.ExtractResults) == 0 {
		return map[string]any{}
	}
	i := c.extractCalls
	if i >= len(c.ExtractResults) {
		i = len(c.ExtractResults) - 1
	}
	c.extractCalls++
	return c.ExtractResults[i]
}

func (c *MockContext) nextObserve() []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.ObserveResults) == 0 {
		return nil
	}
	i := c.observeCalls
	if i >= len(c.ObserveResults) {
		i = len(c.ObserveResults) - 1
	}
	c.observeCalls++
	return c.ObserveResults[i]
}

// MockPage is a scripted Page recording every instruction it receives.
type MockPage struct {
	ctx *MockContext

	mu sync.Mutex

	// Acts records every Act instruction.
	Acts []string

	// Extracts records every Extract instruction.
	Extracts []string

	// Observes records every Observe instruction.
	Observes []string

	// History is the tab's navigation history. GoBack and GoForward move the
	// current position within it, so the current entry is not always the last.
	History []string

	historyPos int
	fronted    int
	reloads    int
}

// Navigate implements Page.
func (p *MockPage) Navigate(ctx context.Context, url string, _ *NavigateOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.ctx != nil && p.ctx.NavigateErr != nil {
		return p.ctx.NavigateErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.History = append(p.History[:p.historyPos], url)
	p.historyPos = len(p.History)
	return nil
}

// WaitForLoad implements Page; the mock is always loaded.
func (p *MockPage) WaitForLoad(ctx context.Context, _ string, _ time.Duration) error {
	return ctx.Err()
}

// Act implements Page.
func (p *MockPage) Act(ctx context.Context, instruction string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	p.Acts = append(p.Acts, instruction)
	p.mu.Unlock()
	if p.ctx != nil {
		return p.ctx.ActErr
	}
	return nil
}

// Extract implements Page.
func (p *MockPage) Extract(ctx context.Context, instruction string, _ map[string]any) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.Extracts = append(p.Extracts, instruction)
	p.mu.Unlock()
	if p.ctx == nil {
		return map[string]any{}, nil
	}
	return p.ctx.nextExtract(), nil
}

// Observe implements Page.
func (p *MockPage) Observe(ctx context.Context, instruction string) ([]map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.Observes = append(p.Observes, instruction)
	p.mu.Unlock()
	if p.ctx == nil {
		return nil, nil
	}
	return p.ctx.nextObserve(), nil
}

// Screenshot implements Page, returning a tiny placeholder image.
func (p *MockPage) Screenshot(ctx context.Context, _ *ScreenshotOptions) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []byte("\x89PNG\r\n\x1a\n"), nil
}

// GoBack implements Page.
func (p *MockPage) GoBack(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.historyPos <= 1 {
		return fmt.Errorf("no history to go back to")
	}
	p.historyPos--
	return nil
}

// GoForward implements Page.
func (p *MockPage) GoForward(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.historyPos >= len(p.History) {
		return fmt.Errorf("no history to go forward to")
	}
	p.historyPos++
	return nil
}

// Reload implements Page.
func (p *MockPage) Reload(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	p.reloads++
	p.mu.Unlock()
	return nil
}

// BringToFront implements Page.
func (p *MockPage) BringToFront(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	p.fronted++
	p.mu.Unlock()
	return nil
}

// URL implements Page.
func (p *MockPage) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.historyPos == 0 {
		return "about:blank"
	}
	return p.History[p.historyPos-1]
}
