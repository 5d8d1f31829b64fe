// Package agent wires one attached page together: scanner, injector,
// inserter and lifecycle controller, plus the routing of page runtime
// events to them.
package agent

import (
	"context"
	"database/sql"
	"net/url"
	"sync"

	"github.com/google/uuid"

	"draftling/internal/applog"
	"draftling/internal/bridge"
	"draftling/internal/extract"
	"draftling/internal/inject"
	"draftling/internal/insert"
	"draftling/internal/lifecycle"
	"draftling/internal/page"
	"draftling/internal/scan"
	"draftling/internal/storage"
	"draftling/internal/types"
)

// Options configures page agents.
type Options struct {
	Tone    string
	Length  string
	DB      *sql.DB // nil disables history and the offline feedback spool
	DataDir string  // for context blobs
	Timing  lifecycle.Config
}

// PageAgent runs the suggestion affordance on one page.
type PageAgent struct {
	targetID string
	page     page.Page
	bridge   *bridge.Client
	opts     Options

	injector *inject.Injector
	inserter *insert.Inserter
	control  *lifecycle.Controller

	mu       sync.Mutex
	pageURL  string
	title    string
	lastText string // most recent compose context sent to the service
	lastHTML string
}

// NewPage creates an agent for one page. Call Run to start it.
func NewPage(targetID string, p page.Page, br *bridge.Client, opts Options) *PageAgent {
	a := &PageAgent{
		targetID: targetID,
		page:     p,
		bridge:   br,
		opts:     opts,
	}
	a.injector = inject.New(p, a.requestSuggestions, a.touch)
	a.inserter = insert.New(p)
	scanner := scan.New(p, a.injector)
	a.control = lifecycle.New(p, scanner, opts.Timing)
	return a
}

// Run installs the page runtime, starts the lifecycle controller and
// services runtime events until the page goes away or ctx is cancelled.
func (a *PageAgent) Run(ctx context.Context) error {
	if err := a.page.InstallRuntime(ctx); err != nil {
		return err
	}
	a.refreshInfo(ctx)

	a.control.Start(ctx)
	defer a.control.Stop()

	events := a.page.Events()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				applog.Info("agent.detached", "target", a.targetID)
				return nil
			}
			a.route(ctx, ev)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Info describes the page for status displays.
func (a *PageAgent) Info() types.PageInfo {
	a.mu.Lock()
	defer a.mu.Unlock()
	return types.PageInfo{
		TargetID: a.targetID,
		URL:      a.pageURL,
		Title:    a.title,
		Surfaces: a.injector.Count(),
		Active:   a.control.Active(),
	}
}

// Rescan forces one scan, used by the operator UI.
func (a *PageAgent) Rescan(ctx context.Context) {
	a.control.Touch()
	a.control.OnMutation()
}

func (a *PageAgent) route(ctx context.Context, ev page.Event) {
	switch ev.Kind {
	case "activity", "wake":
		a.control.Touch()
	case "mutation":
		a.control.OnMutation()
	case "toggle":
		a.refreshInfo(ctx)
		a.injector.HandleToggle(ctx, ev.SurfaceID, ev.Open)
	case "copy":
		a.injector.HandleCopy(ctx, ev.SurfaceID, ev.Text)
		go a.learn(ctx, "copy", ev)
	case "insert":
		a.handleInsert(ctx, ev)
	default:
		applog.Warn("agent.event", "kind", ev.Kind)
	}
}

func (a *PageAgent) touch() {
	a.control.Touch()
}

// requestSuggestions builds the compose context from the live page and
// asks the service for a set. Never fails; the bridge degrades to the
// fallback set on its own.
func (a *PageAgent) requestSuggestions(ctx context.Context) types.SuggestionSet {
	html, err := a.page.HTML(ctx)
	if err != nil {
		applog.Warn("agent.html", "target", a.targetID, "detail", err.Error())
	}
	text := extract.ThreadText(html)

	a.mu.Lock()
	a.lastText = text
	a.lastHTML = html
	a.mu.Unlock()

	return a.bridge.RequestSuggestions(ctx, text, a.opts.Tone, a.opts.Length)
}

func (a *PageAgent) handleInsert(ctx context.Context, ev page.Event) {
	a.control.Touch()

	s, ok := a.injector.Surface(ev.SurfaceID)
	if !ok {
		// Unknown surface (agent restarted mid-page); rich-text is the
		// safer commit path for contenteditable-heavy webmail.
		s = types.Surface{ID: ev.SurfaceID, Kind: types.RichText}
	}

	res := a.inserter.Insert(ctx, s, ev.Text)
	a.record(s, res, ev.Text)
	go a.learn(ctx, "insert", ev)
	go a.remember(ctx, ev.Text)
}

func (a *PageAgent) record(s types.Surface, res insert.Result, text string) {
	if a.opts.DB == nil {
		return
	}
	ins := types.Insertion{
		Host:     a.host(),
		Kind:     s.Kind,
		Delivery: res.Delivery,
		Text:     text,
	}
	if err := storage.RecordInsertion(a.opts.DB, ins); err != nil {
		applog.Error("agent.history", err)
	}
}

// learn forwards an interaction to the service; if the service is down
// the event goes into the local spool and is flushed later.
func (a *PageAgent) learn(ctx context.Context, interaction string, ev page.Event) {
	a.mu.Lock()
	original := a.lastText
	html := a.lastHTML
	a.mu.Unlock()

	learnEv := bridge.LearnEvent{
		InteractionType: interaction,
		Suggestion:      ev.Text,
		SuggestionIndex: ev.Index,
		OriginalEmail:   original,
		Context:         map[string]any{"host": a.host()},
		Feedback:        "accepted",
	}
	err := a.bridge.LearnInteraction(ctx, learnEv)
	if err == nil {
		return
	}
	applog.Warn("agent.learn", "detail", err.Error())

	if a.opts.DB == nil {
		return
	}
	queued := types.FeedbackEvent{
		ID:              uuid.NewString(),
		Kind:            "learn",
		InteractionType: interaction,
		Suggestion:      ev.Text,
		SuggestionIndex: ev.Index,
		OriginalEmail:   original,
		Feedback:        "accepted",
	}
	if a.opts.DataDir != "" && html != "" {
		if blob, err := storage.SaveContext(a.opts.DataDir, html); err == nil {
			queued.ContextBlob = blob
		}
	}
	if err := storage.QueueFeedback(a.opts.DB, queued); err != nil {
		applog.Error("agent.spool", err)
	}
}

// remember is the legacy "remember inserted text" call, spooled the same
// way as learn events.
func (a *PageAgent) remember(ctx context.Context, text string) {
	err := a.bridge.Remember(ctx, text)
	if err == nil {
		return
	}
	applog.Warn("agent.remember", "detail", err.Error())
	if a.opts.DB == nil {
		return
	}
	queued := types.FeedbackEvent{
		ID:         uuid.NewString(),
		Kind:       "remember",
		Suggestion: text,
	}
	if err := storage.QueueFeedback(a.opts.DB, queued); err != nil {
		applog.Error("agent.spool", err)
	}
}

func (a *PageAgent) refreshInfo(ctx context.Context) {
	u, title, err := a.page.Info(ctx)
	if err != nil {
		return
	}
	a.mu.Lock()
	a.pageURL = u
	a.title = title
	a.mu.Unlock()
}

func (a *PageAgent) host() string {
	a.mu.Lock()
	raw := a.pageURL
	a.mu.Unlock()
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return u.Hostname()
}
