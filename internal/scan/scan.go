// Package scan discovers editable surfaces on a page and hands each
// newly found one to the injector.
package scan

import (
	"context"
	"sync"

	"draftling/internal/applog"
	"draftling/internal/page"
	"draftling/internal/types"
)

// Injector instruments one surface. Attach failures are handled (logged,
// swallowed) by the implementation; the error return only feeds the
// scanner's success count.
type Injector interface {
	Attach(ctx context.Context, s types.Surface) error
}

type selectorSpec struct {
	query string
	kind  types.SurfaceKind
}

// The fixed selector set: generic editable-content flags, known
// third-party editor containers, and plain text-entry fields. Order
// matters only for kind resolution; the instrumented marker makes
// overlapping matches harmless.
var selectors = []selectorSpec{
	{`div[contenteditable="true"]`, types.RichText},
	{`[contenteditable=""]`, types.RichText},
	{`[g_editable="true"]`, types.RichText}, // Gmail legacy compose flag
	{`div[role="textbox"]`, types.RichText},
	{`.Am.editable`, types.RichText}, // Gmail compose body
	{`.ql-editor`, types.RichText},   // Quill
	{`.public-DraftEditor-content`, types.RichText}, // Draft.js
	{`.cke_editable`, types.RichText},               // CKEditor
	{`.ProseMirror`, types.RichText},
	{`textarea`, types.PlainText},
	{`input[type="text"]`, types.PlainText},
}

// Scanner enumerates visible editable elements and delegates unseen ones
// to the injector. Scan is idempotent: the element's own instrumented
// marker (checked inside Page.Query) prevents re-injection no matter how
// often or how concurrently scans are scheduled.
type Scanner struct {
	page     page.Page
	injector Injector

	mu       sync.Mutex
	attached int
}

// New creates a scanner over one page.
func New(p page.Page, inj Injector) *Scanner {
	return &Scanner{page: p, injector: inj}
}

// Scan runs the full selector set once and returns how many surfaces were
// newly instrumented. A failing selector (hostile page, unsupported
// syntax) is isolated: it is logged and the remaining selectors still run.
func (s *Scanner) Scan(ctx context.Context) int {
	found := 0
	for _, sel := range selectors {
		surfaces, err := s.page.Query(ctx, sel.query, sel.kind)
		if err != nil {
			applog.Error("scan.selector", err, "selector", sel.query)
			continue
		}
		for _, sf := range surfaces {
			if err := s.injector.Attach(ctx, sf); err != nil {
				continue
			}
			found++
		}
	}
	if found > 0 {
		s.mu.Lock()
		s.attached += found
		total := s.attached
		s.mu.Unlock()
		applog.Info("scan.found", "new", found, "total", total)
	}
	return found
}

// Attached returns the number of surfaces this scanner has instrumented
// over its lifetime.
func (s *Scanner) Attached() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attached
}
