// Package inject attaches the trigger control and suggestion panel to a
// surface and services panel interactions.
package inject

import (
	"context"
	"sync"

	"draftling/internal/applog"
	"draftling/internal/page"
	"draftling/internal/types"
)

// Requester produces the suggestion set for one panel-open cycle. It never
// fails; degraded results are the fallback set.
type Requester func(ctx context.Context) types.SuggestionSet

// Injector instruments surfaces and renders suggestion sets into their
// panels. The caller (scanner) guarantees Attach runs at most once per
// surface; the injector does not re-check the marker.
type Injector struct {
	page    page.Page
	request Requester
	touch   func() // resets the idle countdown on every panel interaction

	mu       sync.Mutex
	surfaces map[string]types.Surface
}

// New creates an injector over one page.
func New(p page.Page, request Requester, touch func()) *Injector {
	if touch == nil {
		touch = func() {}
	}
	return &Injector{
		page:     p,
		request:  request,
		touch:    touch,
		surfaces: make(map[string]types.Surface),
	}
}

// Attach synthesizes the trigger and panel for an unmarked surface. A DOM
// failure (element detached, node refuses children) is logged and leaves
// the surface unmarked so a later scan may retry while the element exists.
func (inj *Injector) Attach(ctx context.Context, s types.Surface) error {
	if err := inj.page.Attach(ctx, s); err != nil {
		applog.Error("inject.attach", err, "surface", s.ID)
		return err
	}

	inj.mu.Lock()
	inj.surfaces[s.ID] = s
	inj.mu.Unlock()

	applog.Info("inject.attach", "surface", s.ID, "kind", s.Kind)
	return nil
}

// Surface resolves an instrumented surface by id.
func (inj *Injector) Surface(id string) (types.Surface, bool) {
	inj.mu.Lock()
	defer inj.mu.Unlock()
	s, ok := inj.surfaces[id]
	return s, ok
}

// Count returns how many surfaces are instrumented.
func (inj *Injector) Count() int {
	inj.mu.Lock()
	defer inj.mu.Unlock()
	return len(inj.surfaces)
}

// HandleToggle services a trigger click. Opening shows the loading state,
// fetches a fresh suggestion set, and replaces the panel content
// wholesale; the request runs in its own goroutine so a slow service
// never blocks other page events. A response landing after the panel was
// closed and reopened is still rendered; superseded requests are not
// cancelled.
func (inj *Injector) HandleToggle(ctx context.Context, surfaceID string, open bool) {
	inj.touch()
	if !open {
		return
	}

	go func() {
		if err := inj.page.ShowLoading(ctx, surfaceID); err != nil {
			applog.Warn("inject.loading", "surface", surfaceID, "detail", err.Error())
		}
		set := inj.request(ctx)
		if err := inj.page.RenderSuggestions(ctx, surfaceID, set); err != nil {
			applog.Error("inject.render", err, "surface", surfaceID)
		}
	}()
}

// HandleCopy services the copy affordance: clipboard only, panel stays
// open. The page runtime shows the transient confirmation; a failed write
// is logged but not surfaced, clipboard copy is best-effort by contract.
func (inj *Injector) HandleCopy(ctx context.Context, surfaceID, text string) {
	inj.touch()
	if err := inj.page.WriteClipboard(ctx, text); err != nil {
		applog.Warn("inject.copy", "surface", surfaceID, "detail", err.Error())
	}
}
