// Package page abstracts the DOM operations the agent performs on one
// browser page. The production implementation drives a real page over the
// DevTools protocol; tests substitute a fake.
package page

import (
	"context"

	"draftling/internal/types"
)

// Event is one message from the injected page runtime back to the agent.
// Events arrive over the DevTools binding channel.
type Event struct {
	Kind      string `json:"kind"`    // toggle, insert, copy, activity, mutation, wake
	SurfaceID string `json:"surface"` // set for toggle/insert/copy
	Index     int    `json:"index"`   // 1-based suggestion ordinal, set for insert/copy
	Text      string `json:"text"`    // chosen suggestion text, set for insert/copy
	Open      bool   `json:"open"`    // toggle direction
}

// Page is the set of DOM operations the scanner, injector, inserter and
// lifecycle controller need. Every method tolerates a detached or hostile
// element by returning an error rather than panicking; callers decide
// which errors are swallowed.
type Page interface {
	// InstallRuntime injects the page runtime (binding, panel styles, the
	// once-per-document dismiss listener, activity listeners). Idempotent.
	InstallRuntime(ctx context.Context) error

	// Query returns visible, not-yet-instrumented elements matching one
	// selector. Elements with zero rendered width or height are excluded.
	// An invalid selector returns an error and instruments nothing.
	Query(ctx context.Context, selector string, kind types.SurfaceKind) ([]types.Surface, error)

	// Attach creates the trigger control and hidden panel for a surface
	// and sets its instrumented marker. Fails without side effects if the
	// element no longer accepts children.
	Attach(ctx context.Context, s types.Surface) error

	// ShowLoading puts the surface's open panel into its transient
	// loading state.
	ShowLoading(ctx context.Context, surfaceID string) error

	// RenderSuggestions replaces the panel's content wholesale with the
	// given set. Ordinals are 1-based display positions.
	RenderSuggestions(ctx context.Context, surfaceID string, set types.SuggestionSet) error

	// ClosePanels force-closes every open panel on the page.
	ClosePanels(ctx context.Context) error

	// SetText commits text into the surface: content replacement for
	// rich-text, value assignment for plain-text, each followed by exactly
	// one synthetic input event.
	SetText(ctx context.Context, s types.Surface, text string) error

	// WriteClipboard copies text via the page's clipboard API.
	WriteClipboard(ctx context.Context, text string) error

	// Notify shows a short transient status string near the surface.
	Notify(ctx context.Context, surfaceID, message string) error

	// Alert is the blocking last-resort delivery; it cannot fail short of
	// the page being gone.
	Alert(ctx context.Context, text string) error

	// ObserveMutations connects or disconnects the page's mutation
	// observer. Idempotent in both directions.
	ObserveMutations(ctx context.Context, enabled bool) error

	// ArmWake installs one-shot capture-phase listeners (click, keydown,
	// pointermove, scroll, focusin) that fire a single wake event,
	// whichever comes first, then remove themselves.
	ArmWake(ctx context.Context) error

	// DisarmWake removes any armed wake listeners.
	DisarmWake(ctx context.Context) error

	// HTML returns the page's current outer HTML, used for compose
	// context extraction.
	HTML(ctx context.Context) (string, error)

	// Info returns the page's current URL and title.
	Info(ctx context.Context) (url, title string, err error)

	// Events is the stream of runtime events. Closed when the page goes
	// away.
	Events() <-chan Event
}
