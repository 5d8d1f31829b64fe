package page

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"draftling/internal/applog"
	"draftling/internal/types"
)

// bindingName is the DevTools binding the page runtime posts events to.
const bindingName = "__draftling"

// Browser is a connection to a running Chromium instance's DevTools
// endpoint (e.g. started with --remote-debugging-port=9222).
type Browser struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// Connect attaches to the browser at url (ws:// or http:// DevTools
// address) and verifies the connection by resolving the browser target.
func Connect(ctx context.Context, url string) (*Browser, error) {
	allocCtx, allocCancel := chromedp.NewRemoteAllocator(ctx, url)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	cancel := func() {
		browserCancel()
		allocCancel()
	}

	// An empty Run forces the websocket dial so a bad address fails here,
	// not on the first page operation.
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("connect to browser at %s: %w", url, err)
	}

	applog.Info("cdp.connected", "url", url)
	return &Browser{ctx: browserCtx, cancel: cancel}, nil
}

// Close tears down the browser connection. Attached pages become unusable.
func (b *Browser) Close() {
	b.cancel()
}

// PageTargets lists the browser's open http(s) page targets.
func (b *Browser) PageTargets() ([]*target.Info, error) {
	infos, err := chromedp.Targets(b.ctx)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	var pages []*target.Info
	for _, info := range infos {
		if info.Type != "page" {
			continue
		}
		if !strings.HasPrefix(info.URL, "http://") && !strings.HasPrefix(info.URL, "https://") {
			continue
		}
		pages = append(pages, info)
	}
	return pages, nil
}

// Attach creates a Page bound to one existing browser tab.
func (b *Browser) Attach(id target.ID) (*CDPPage, error) {
	ctx, cancel := chromedp.NewContext(b.ctx, chromedp.WithTargetID(id))

	p := &CDPPage{
		targetID: string(id),
		ctx:      ctx,
		cancel:   cancel,
		events:   make(chan Event, 64),
	}

	chromedp.ListenTarget(ctx, func(ev any) {
		bc, ok := ev.(*runtime.EventBindingCalled)
		if !ok || bc.Name != bindingName {
			return
		}
		var msg Event
		if err := json.Unmarshal([]byte(bc.Payload), &msg); err != nil {
			applog.Error("cdp.event", err, "target", p.targetID)
			return
		}
		p.emit(msg)
	})

	go func() {
		<-ctx.Done()
		p.mu.Lock()
		p.closed = true
		close(p.events)
		p.mu.Unlock()
	}()

	return p, nil
}

// CDPPage drives one page over the DevTools protocol. All DOM work is
// delegated to the injected runtime; the Go side stays in charge of
// scheduling, state and routing.
type CDPPage struct {
	targetID string
	ctx      context.Context
	cancel   context.CancelFunc

	mu     sync.Mutex
	closed bool
	events chan Event
}

// TargetID returns the CDP target this page is bound to.
func (p *CDPPage) TargetID() string { return p.targetID }

// Close detaches from the tab (the tab itself stays open).
func (p *CDPPage) Close() { p.cancel() }

// Events implements Page.
func (p *CDPPage) Events() <-chan Event { return p.events }

func (p *CDPPage) emit(ev Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.events <- ev:
	default:
		// A stalled consumer must not wedge the CDP event loop.
		applog.Warn("cdp.event-drop", "target", p.targetID, "kind", ev.Kind)
	}
}

// InstallRuntime implements Page. The runtime script is both evaluated in
// the live document and registered for future documents, so navigations
// within the tab come up instrumented.
func (p *CDPPage) InstallRuntime(ctx context.Context) error {
	err := chromedp.Run(p.ctx,
		runtime.AddBinding(bindingName),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := cdppage.AddScriptToEvaluateOnNewDocument(runtimeScript).Do(ctx)
			return err
		}),
		chromedp.Evaluate(runtimeScript, nil),
	)
	if err != nil {
		return fmt.Errorf("install runtime: %w", err)
	}
	return nil
}

// Query implements Page.
func (p *CDPPage) Query(ctx context.Context, selector string, kind types.SurfaceKind) ([]types.Surface, error) {
	var ids []string
	expr := fmt.Sprintf("window.__draftlingRuntime.query(%q)", selector)
	if err := p.eval(expr, &ids); err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}
	surfaces := make([]types.Surface, 0, len(ids))
	for _, id := range ids {
		surfaces = append(surfaces, types.Surface{ID: id, Kind: kind})
	}
	return surfaces, nil
}

// Attach implements Page.
func (p *CDPPage) Attach(ctx context.Context, s types.Surface) error {
	return p.eval(fmt.Sprintf("window.__draftlingRuntime.attach(%q)", s.ID), nil)
}

// ShowLoading implements Page.
func (p *CDPPage) ShowLoading(ctx context.Context, surfaceID string) error {
	return p.eval(fmt.Sprintf("window.__draftlingRuntime.showLoading(%q)", surfaceID), nil)
}

// RenderSuggestions implements Page.
func (p *CDPPage) RenderSuggestions(ctx context.Context, surfaceID string, set types.SuggestionSet) error {
	items, err := json.Marshal(set.Items)
	if err != nil {
		return fmt.Errorf("marshal suggestions: %w", err)
	}
	expr := fmt.Sprintf("window.__draftlingRuntime.render(%q, %s, %t)", surfaceID, items, set.FromModel)
	return p.eval(expr, nil)
}

// ClosePanels implements Page.
func (p *CDPPage) ClosePanels(ctx context.Context) error {
	return p.eval("window.__draftlingRuntime.closePanels()", nil)
}

// SetText implements Page.
func (p *CDPPage) SetText(ctx context.Context, s types.Surface, text string) error {
	expr := fmt.Sprintf("window.__draftlingRuntime.setText(%q, %q, %t)",
		s.ID, text, s.Kind == types.RichText)
	return p.eval(expr, nil)
}

// WriteClipboard implements Page. Fails when the page context has no
// clipboard API (insecure origin, restrictive permissions policy).
func (p *CDPPage) WriteClipboard(ctx context.Context, text string) error {
	expr := fmt.Sprintf("navigator.clipboard.writeText(%q)", text)
	err := chromedp.Run(p.ctx, chromedp.Evaluate(expr, nil,
		func(ep *runtime.EvaluateParams) *runtime.EvaluateParams {
			return ep.WithAwaitPromise(true)
		}))
	if err != nil {
		return fmt.Errorf("clipboard write: %w", err)
	}
	return nil
}

// Notify implements Page.
func (p *CDPPage) Notify(ctx context.Context, surfaceID, message string) error {
	return p.eval(fmt.Sprintf("window.__draftlingRuntime.notify(%q, %q)", surfaceID, message), nil)
}

// Alert implements Page. The alert is raised from a timeout so the
// evaluate call returns immediately instead of blocking on the dialog.
func (p *CDPPage) Alert(ctx context.Context, text string) error {
	return p.eval(fmt.Sprintf("setTimeout(() => window.alert(%q), 0)", text), nil)
}

// ObserveMutations implements Page.
func (p *CDPPage) ObserveMutations(ctx context.Context, enabled bool) error {
	return p.eval(fmt.Sprintf("window.__draftlingRuntime.setObserver(%t)", enabled), nil)
}

// ArmWake implements Page.
func (p *CDPPage) ArmWake(ctx context.Context) error {
	return p.eval("window.__draftlingRuntime.armWake()", nil)
}

// DisarmWake implements Page.
func (p *CDPPage) DisarmWake(ctx context.Context) error {
	return p.eval("window.__draftlingRuntime.disarmWake()", nil)
}

// HTML implements Page.
func (p *CDPPage) HTML(ctx context.Context) (string, error) {
	var html string
	if err := chromedp.Run(p.ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("outer html: %w", err)
	}
	return html, nil
}

// Info implements Page.
func (p *CDPPage) Info(ctx context.Context) (string, string, error) {
	var url, title string
	err := chromedp.Run(p.ctx,
		chromedp.Location(&url),
		chromedp.Title(&title),
	)
	if err != nil {
		return "", "", fmt.Errorf("page info: %w", err)
	}
	return url, title, nil
}

func (p *CDPPage) eval(expr string, out any) error {
	return chromedp.Run(p.ctx, chromedp.Evaluate(expr, out))
}
