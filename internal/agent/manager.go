package agent

import (
	"context"
	"sort"
	"sync"
	"time"

	"draftling/internal/applog"
	"draftling/internal/bridge"
	"draftling/internal/page"
	"draftling/internal/storage"
	"draftling/internal/types"
)

const (
	targetPollEvery = 3 * time.Second
	healthPollEvery = 5 * time.Second
	flushBatch      = 50
)

// Manager attaches a PageAgent to every open http(s) page in the browser,
// tracks reply-service health and flushes the offline feedback spool when
// the service comes back.
type Manager struct {
	browser *page.Browser
	bridge  *bridge.Client
	opts    Options

	mu      sync.Mutex
	agents  map[string]*PageAgent
	health  types.Health
	online  bool
	memory  types.MemoryStatus
	checked time.Time
}

// NewManager creates a manager over one browser connection.
func NewManager(b *page.Browser, br *bridge.Client, opts Options) *Manager {
	return &Manager{
		browser: b,
		bridge:  br,
		opts:    opts,
		agents:  make(map[string]*PageAgent),
	}
}

// Run polls for new page targets and service health until ctx is
// cancelled.
func (m *Manager) Run(ctx context.Context) error {
	m.attachNew(ctx)
	m.checkHealth(ctx)

	targets := time.NewTicker(targetPollEvery)
	defer targets.Stop()
	health := time.NewTicker(healthPollEvery)
	defer health.Stop()

	for {
		select {
		case <-targets.C:
			m.attachNew(ctx)
		case <-health.C:
			m.checkHealth(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Pages lists attached pages, stable order, for status displays.
func (m *Manager) Pages() []types.PageInfo {
	m.mu.Lock()
	agents := make([]*PageAgent, 0, len(m.agents))
	for _, a := range m.agents {
		agents = append(agents, a)
	}
	m.mu.Unlock()

	infos := make([]types.PageInfo, 0, len(agents))
	for _, a := range agents {
		infos = append(infos, a.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].TargetID < infos[j].TargetID })
	return infos
}

// Status returns the last observed service health and memory report.
// online is false when the service was unreachable.
func (m *Manager) Status() (h types.Health, mem types.MemoryStatus, online bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.health, m.memory, m.online
}

// Rescan forces a scan on every attached page.
func (m *Manager) Rescan(ctx context.Context) {
	m.mu.Lock()
	agents := make([]*PageAgent, 0, len(m.agents))
	for _, a := range m.agents {
		agents = append(agents, a)
	}
	m.mu.Unlock()

	for _, a := range agents {
		a.Rescan(ctx)
	}
}

func (m *Manager) attachNew(ctx context.Context) {
	infos, err := m.browser.PageTargets()
	if err != nil {
		applog.Error("manager.targets", err)
		return
	}

	for _, info := range infos {
		id := string(info.TargetID)

		m.mu.Lock()
		_, known := m.agents[id]
		m.mu.Unlock()
		if known {
			continue
		}

		p, err := m.browser.Attach(info.TargetID)
		if err != nil {
			applog.Error("manager.attach", err, "target", id)
			continue
		}

		a := NewPage(id, p, m.bridge, m.opts)
		m.mu.Lock()
		m.agents[id] = a
		m.mu.Unlock()

		applog.Info("manager.attach", "target", id, "url", info.URL)
		go func() {
			if err := a.Run(ctx); err != nil && ctx.Err() == nil {
				applog.Error("manager.agent", err, "target", id)
			}
			p.Close()
			m.mu.Lock()
			delete(m.agents, id)
			m.mu.Unlock()
		}()
	}
}

func (m *Manager) checkHealth(ctx context.Context) {
	hctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	h, err := m.bridge.Health(hctx)
	online := err == nil

	var mem types.MemoryStatus
	if online {
		if ms, err := m.bridge.MemoryStatus(hctx); err == nil {
			mem = ms
		}
	}

	m.mu.Lock()
	wasOnline := m.online
	m.health = h
	m.memory = mem
	m.online = online
	m.checked = time.Now()
	m.mu.Unlock()

	if online && !wasOnline {
		applog.Info("manager.online")
	}
	if online {
		m.flushSpool(ctx)
	}
}

// flushSpool replays queued feedback events now that the service is
// reachable. Each event is deleted only after its call succeeds, so a
// crash mid-flush loses nothing.
func (m *Manager) flushSpool(ctx context.Context) {
	if m.opts.DB == nil {
		return
	}

	pending, err := storage.PendingFeedback(m.opts.DB, flushBatch)
	if err != nil {
		applog.Error("manager.flush", err)
		return
	}
	if len(pending) == 0 {
		return
	}

	flushed := 0
	for _, ev := range pending {
		var err error
		switch ev.Kind {
		case "remember":
			err = m.bridge.Remember(ctx, ev.Suggestion)
		default:
			err = m.bridge.LearnInteraction(ctx, bridge.LearnEvent{
				InteractionType: ev.InteractionType,
				Suggestion:      ev.Suggestion,
				SuggestionIndex: ev.SuggestionIndex,
				OriginalEmail:   ev.OriginalEmail,
				Feedback:        ev.Feedback,
			})
		}
		if err != nil {
			// Service flapped; the rest stays queued.
			break
		}
		if err := storage.DeleteFeedback(m.opts.DB, ev.ID); err != nil {
			applog.Error("manager.flush", err, "event", ev.ID)
			break
		}
		flushed++
	}
	if flushed > 0 {
		applog.Info("manager.flush", "events", flushed, "pending", len(pending)-flushed)
	}
}
