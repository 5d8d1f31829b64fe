package scan

import (
	"context"
	"errors"
	"sync"
	"testing"

	"draftling/internal/page"
	"draftling/internal/types"
)

// fakePage simulates Query's contract: only visible, unmarked elements are
// returned, and an attached element is marked and never returned again.
type fakePage struct {
	page.Page // unimplemented methods panic if reached

	elements map[string][]types.Surface // selector -> unmarked matches
	badSel   map[string]bool            // selectors that error
}

func (f *fakePage) Query(ctx context.Context, selector string, kind types.SurfaceKind) ([]types.Surface, error) {
	if f.badSel[selector] {
		return nil, errors.New("syntax error, unrecognized expression")
	}
	return f.elements[selector], nil
}

// recordingInjector marks attached surfaces on the fake page, mirroring
// the marker the real injector sets through the DOM.
type recordingInjector struct {
	page     *fakePage
	attached []types.Surface
	fail     map[string]bool // surface IDs whose attach fails
}

func (r *recordingInjector) Attach(ctx context.Context, s types.Surface) error {
	if r.fail[s.ID] {
		return errors.New("element no longer accepts children")
	}
	r.attached = append(r.attached, s)
	for sel, matches := range r.page.elements {
		kept := matches[:0]
		for _, m := range matches {
			if m.ID != s.ID {
				kept = append(kept, m)
			}
		}
		r.page.elements[sel] = kept
	}
	return nil
}

func TestScanAttachesMatches(t *testing.T) {
	p := &fakePage{
		elements: map[string][]types.Surface{
			`div[contenteditable="true"]`: {
				{ID: "dl-1", Kind: types.RichText},
				{ID: "dl-2", Kind: types.RichText},
			},
			`textarea`: {
				{ID: "dl-3", Kind: types.PlainText},
			},
		},
	}
	inj := &recordingInjector{page: p}
	s := New(p, inj)

	if got := s.Scan(context.Background()); got != 3 {
		t.Errorf("Scan = %d, want 3", got)
	}
	if len(inj.attached) != 3 {
		t.Fatalf("attached %d surfaces, want 3", len(inj.attached))
	}
	for _, sf := range inj.attached {
		if sf.ID == "dl-3" && sf.Kind != types.PlainText {
			t.Errorf("textarea surface kind = %v, want PlainText", sf.Kind)
		}
	}
	if s.Attached() != 3 {
		t.Errorf("Attached = %d, want 3", s.Attached())
	}
}

func TestScanIsIdempotent(t *testing.T) {
	p := &fakePage{
		elements: map[string][]types.Surface{
			`.ql-editor`: {{ID: "dl-1", Kind: types.RichText}},
		},
	}
	inj := &recordingInjector{page: p}
	s := New(p, inj)

	ctx := context.Background()
	if got := s.Scan(ctx); got != 1 {
		t.Fatalf("first Scan = %d, want 1", got)
	}
	if got := s.Scan(ctx); got != 0 {
		t.Errorf("second Scan = %d, want 0", got)
	}
	if got := s.Scan(ctx); got != 0 {
		t.Errorf("third Scan = %d, want 0", got)
	}
	if len(inj.attached) != 1 {
		t.Errorf("attached %d times, want 1", len(inj.attached))
	}
}

func TestScanIsolatesFailingSelector(t *testing.T) {
	p := &fakePage{
		elements: map[string][]types.Surface{
			`textarea`: {{ID: "dl-9", Kind: types.PlainText}},
		},
		badSel: map[string]bool{
			`div[contenteditable="true"]`: true,
			`[contenteditable=""]`:        true,
		},
	}
	inj := &recordingInjector{page: p}
	s := New(p, inj)

	if got := s.Scan(context.Background()); got != 1 {
		t.Errorf("Scan = %d, want 1 despite failing selectors", got)
	}
}

func TestScanDoesNotCountFailedAttach(t *testing.T) {
	p := &fakePage{
		elements: map[string][]types.Surface{
			`textarea`: {
				{ID: "dl-1", Kind: types.PlainText},
				{ID: "dl-2", Kind: types.PlainText},
			},
		},
	}
	inj := &recordingInjector{page: p, fail: map[string]bool{"dl-1": true}}
	s := New(p, inj)

	if got := s.Scan(context.Background()); got != 1 {
		t.Errorf("Scan = %d, want 1 (one attach failed)", got)
	}
}

// steadyPage reports one fresh textarea on every scan, so each Scan call
// bumps the lifetime counter by exactly one.
type steadyPage struct {
	page.Page
}

func (steadyPage) Query(ctx context.Context, selector string, kind types.SurfaceKind) ([]types.Surface, error) {
	if selector != `textarea` {
		return nil, nil
	}
	return []types.Surface{{ID: "dl-1", Kind: kind}}, nil
}

type nopInjector struct{}

func (nopInjector) Attach(ctx context.Context, s types.Surface) error { return nil }

func TestScanConcurrent(t *testing.T) {
	// The ticker, debounce and settle timers can all fire Scan at once;
	// the lifetime counter must stay consistent.
	s := New(steadyPage{}, nopInjector{})

	const workers = 2
	const rounds = 200

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < rounds; j++ {
				s.Scan(context.Background())
				s.Attached()
			}
		}()
	}
	wg.Wait()

	if got := s.Attached(); got != workers*rounds {
		t.Errorf("Attached = %d, want %d", got, workers*rounds)
	}
}

func TestSelectorSetCoversKnownEditors(t *testing.T) {
	byQuery := make(map[string]types.SurfaceKind, len(selectors))
	for _, sel := range selectors {
		byQuery[sel.query] = sel.kind
	}

	rich := []string{
		`div[contenteditable="true"]`,
		`div[role="textbox"]`,
		`.ql-editor`,
		`.ProseMirror`,
	}
	for _, q := range rich {
		kind, ok := byQuery[q]
		if !ok {
			t.Errorf("selector %q missing", q)
			continue
		}
		if kind != types.RichText {
			t.Errorf("selector %q kind = %v, want RichText", q, kind)
		}
	}

	for _, q := range []string{`textarea`, `input[type="text"]`} {
		kind, ok := byQuery[q]
		if !ok {
			t.Errorf("selector %q missing", q)
			continue
		}
		if kind != types.PlainText {
			t.Errorf("selector %q kind = %v, want PlainText", q, kind)
		}
	}
}
