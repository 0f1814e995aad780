package flow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oswaldoh/agentflow-go/flow/browser"
)

// browserActionPrimitive executes side-effectful browser operations.
//
// Sub-actions are matched case-insensitively; "goto" aliases navigate.
// Every action resolves templated fields before dispatch and returns a
// result mapping with success set on the happy path. Click and type do not
// fall back to low-level selectors: target disambiguation is the façade's
// job.
type browserActionPrimitive struct {
	base
}

// Execute implements primitive.
func (p *browserActionPrimitive) Execute(ctx context.Context, node *Node) (any, error) {
	data := node.Data.(*BrowserActionData)
	action := strings.ToLower(data.Action)
	switch action {
	case "navigate", "goto":
		return p.navigate(ctx, node, p.resolveString(data.URL))
	case "click":
		return p.act(ctx, node, fmt.Sprintf("click on %s", p.resolveString(data.Target)))
	case "type":
		value := p.resolve(data.Value)
		return p.act(ctx, node, fmt.Sprintf("type %q into %s", stringifyValue(value), p.resolveString(data.Target)))
	case "wait":
		return p.wait(ctx, node, data.Duration)
	case "opennewtab":
		return p.openNewTab(ctx, node, data)
	case "switchtab":
		return p.switchTab(ctx, node, p.resolveString(data.TabName))
	case "back":
		return p.history(ctx, node, func(pg browser.Page) error { return pg.GoBack(ctx) })
	case "forward":
		return p.history(ctx, node, func(pg browser.Page) error { return pg.GoForward(ctx) })
	case "refresh":
		return p.history(ctx, node, func(pg browser.Page) error { return pg.Reload(ctx) })
	case "screenshot":
		return p.screenshot(ctx, node, data)
	case "listtabs":
		return p.listTabs(ctx, node)
	case "getcurrenttab":
		return p.getCurrentTab(ctx, node)
	default:
		return nil, newError(ErrUnknownAction, node.Name, fmt.Sprintf("action %q", data.Action), nil)
	}
}

// navigate loads url in the current tab: DOM-loaded within the fatal
// timeout, then a best-effort network-idle wait whose expiry is absorbed.
func (p *browserActionPrimitive) navigate(ctx context.Context, node *Node, url string) (any, error) {
	pg, err := p.d.page(ctx)
	if err != nil {
		return nil, err
	}
	return p.navigatePage(ctx, node, pg, url)
}

func (p *browserActionPrimitive) navigatePage(ctx context.Context, node *Node, pg browser.Page, url string) (any, error) {
	err := pg.Navigate(ctx, url, &browser.NavigateOptions{
		WaitUntil: browser.LoadDOMContentLoaded,
		Timeout:   p.d.navTimeout,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, newError(ErrNavigationTimeout, node.Name, fmt.Sprintf("loading %s", url), err)
		}
		return nil, fmt.Errorf("navigating to %s: %w", url, err)
	}
	if idleErr := pg.WaitForLoad(ctx, browser.LoadNetworkIdle, p.d.idleTimeout); idleErr != nil {
		// Network-idle is best effort; slow trackers must not fail the run.
		p.d.emitter.Emit(eventFor(node, "network_idle_timeout", map[string]any{"url": url}))
	}
	return map[string]any{"success": true, "url": url}, nil
}

// act issues an AI-driven interaction instruction on the current tab.
func (p *browserActionPrimitive) act(ctx context.Context, node *Node, instruction string) (any, error) {
	pg, err := p.d.page(ctx)
	if err != nil {
		return nil, err
	}
	if err := pg.Act(ctx, instruction); err != nil {
		return nil, fmt.Errorf("act %q: %w", instruction, err)
	}
	return map[string]any{"success": true, "instruction": instruction}, nil
}

// wait sleeps for duration milliseconds (default 1000), honoring
// cancellation.
func (p *browserActionPrimitive) wait(ctx context.Context, node *Node, duration int) (any, error) {
	if duration <= 0 {
		duration = 1000
	}
	select {
	case <-time.After(time.Duration(duration) * time.Millisecond):
		return map[string]any{"success": true, "duration": duration}, nil
	case <-ctx.Done():
		return nil, cancelled(node.Name, ctx.Err())
	}
}

// openNewTab creates a page, registers it under the caller-supplied or
// generated name, makes it current, and navigates when a URL is given.
func (p *browserActionPrimitive) openNewTab(ctx context.Context, node *Node, data *BrowserActionData) (any, error) {
	if p.d.browser == nil {
		return nil, newError(ErrNotInitialized, node.Name, "no browser configured", nil)
	}
	// Opening a tab implies a session; make sure main exists first so the
	// reserved name always denotes the original tab.
	if _, err := p.d.page(ctx); err != nil {
		return nil, err
	}
	name := p.resolveString(data.TabName)
	if name == "" {
		name = fmt.Sprintf("tab-%d", len(p.d.tabs))
	}
	pg, err := p.d.browser.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening tab %q: %w", name, err)
	}
	p.d.tabs[name] = pg
	p.d.setCurrent(name)
	result := map[string]any{"success": true, "tabName": name}
	if data.URL != "" {
		if _, err := p.navigatePage(ctx, node, pg, p.resolveString(data.URL)); err != nil {
			return nil, err
		}
		result["url"] = pg.URL()
	}
	return result, nil
}

// switchTab makes the named tab current and brings it to front.
func (p *browserActionPrimitive) switchTab(ctx context.Context, node *Node, name string) (any, error) {
	pg, ok := p.d.tabs[name]
	if !ok {
		return nil, newError(ErrTabUnknown, node.Name, fmt.Sprintf("tab %q", name), nil)
	}
	if err := pg.BringToFront(ctx); err != nil {
		return nil, fmt.Errorf("switching to tab %q: %w", name, err)
	}
	p.d.setCurrent(name)
	return map[string]any{"success": true, "tabName": name, "url": pg.URL()}, nil
}

// history runs a history navigation followed by a DOM-loaded wait.
func (p *browserActionPrimitive) history(ctx context.Context, node *Node, nav func(browser.Page) error) (any, error) {
	pg, err := p.d.page(ctx)
	if err != nil {
		return nil, err
	}
	if err := nav(pg); err != nil {
		return nil, err
	}
	if err := pg.WaitForLoad(ctx, browser.LoadDOMContentLoaded, p.d.navTimeout); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, newError(ErrNavigationTimeout, node.Name, "history navigation", err)
		}
		return nil, err
	}
	return map[string]any{"success": true, "url": pg.URL()}, nil
}

// screenshot captures the page and writes the PNG to disk, returning the
// file path and byte length.
func (p *browserActionPrimitive) screenshot(ctx context.Context, node *Node, data *BrowserActionData) (any, error) {
	pg, err := p.d.page(ctx)
	if err != nil {
		return nil, err
	}
	bytes, err := pg.Screenshot(ctx, &browser.ScreenshotOptions{
		FullPage: data.FullPage,
		Selector: p.resolveString(data.Selector),
	})
	if err != nil {
		return nil, fmt.Errorf("taking screenshot: %w", err)
	}
	path := p.resolveString(data.Path)
	if path == "" {
		path = fmt.Sprintf("screenshot-%d.png", time.Now().UnixMilli())
	}
	if p.d.screenshotDir != "" && !filepath.IsAbs(path) {
		path = filepath.Join(p.d.screenshotDir, path)
	}
	if err := os.WriteFile(path, bytes, 0o644); err != nil {
		return nil, fmt.Errorf("writing screenshot to %s: %w", path, err)
	}
	return map[string]any{"success": true, "path": path, "bytes": len(bytes)}, nil
}

// listTabs reports every registered tab with its URL and active flag.
func (p *browserActionPrimitive) listTabs(ctx context.Context, node *Node) (any, error) {
	if _, err := p.d.page(ctx); err != nil {
		return nil, err
	}
	tabs := make([]any, 0, len(p.d.tabs))
	// Keep main first, then the rest in name order for determinism.
	for _, name := range tabNames(p.d.tabs) {
		tabs = append(tabs, map[string]any{
			"name":   name,
			"url":    p.d.tabs[name].URL(),
			"active": name == p.d.current,
		})
	}
	return map[string]any{"success": true, "tabs": tabs}, nil
}

// getCurrentTab reports the current tab's name and URL.
func (p *browserActionPrimitive) getCurrentTab(ctx context.Context, node *Node) (any, error) {
	pg, err := p.d.page(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{"success": true, "name": p.d.current, "url": pg.URL()}, nil
}
