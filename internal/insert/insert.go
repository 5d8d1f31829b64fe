// Package insert commits a chosen suggestion into a surface through an
// ordered chain of delivery channels, ending in one that cannot fail.
package insert

import (
	"context"

	"draftling/internal/applog"
	"draftling/internal/page"
	"draftling/internal/types"
)

// Result reports which channel delivered the text.
type Result struct {
	Delivery  types.Delivery
	Clipboard bool // the best-effort clipboard write succeeded
}

// Inserter delivers chosen text into surfaces on one page.
type Inserter struct {
	page page.Page
}

// New creates an inserter over one page.
func New(p page.Page) *Inserter {
	return &Inserter{page: p}
}

// Insert runs the delivery chain: a best-effort clipboard write, then
// direct assignment into the surface (content replacement for rich-text,
// value assignment for plain-text, one synthetic input event either way).
// If the direct path throws, the clipboard result stands alone; if the
// clipboard is unavailable too, a blocking alert shows the literal text.
// The user is always told which channel succeeded, never silent failure.
func (ins *Inserter) Insert(ctx context.Context, s types.Surface, text string) Result {
	clipOK := true
	if err := ins.page.WriteClipboard(ctx, text); err != nil {
		clipOK = false
		applog.Warn("insert.clipboard", "surface", s.ID, "detail", err.Error())
	}

	if err := ins.page.SetText(ctx, s, text); err == nil {
		msg := "Inserted"
		if clipOK {
			msg = "Inserted and copied"
		}
		ins.notify(ctx, s.ID, msg)
		applog.Info("insert.direct", "surface", s.ID, "kind", s.Kind, "clipboard", clipOK)
		return Result{Delivery: types.DeliveryInserted, Clipboard: clipOK}
	} else {
		applog.Error("insert.direct", err, "surface", s.ID)
	}

	if clipOK {
		ins.notify(ctx, s.ID, "Copied to clipboard")
		return Result{Delivery: types.DeliveryClipboard, Clipboard: true}
	}

	// Last resort. The alert itself is the notification and cannot fail
	// short of the page being gone.
	if err := ins.page.Alert(ctx, text); err != nil {
		applog.Error("insert.alert", err, "surface", s.ID)
	}
	return Result{Delivery: types.DeliveryAlert}
}

func (ins *Inserter) notify(ctx context.Context, surfaceID, msg string) {
	if err := ins.page.Notify(ctx, surfaceID, msg); err != nil {
		applog.Warn("insert.notify", "surface", surfaceID, "detail", err.Error())
	}
}
