// Package lifecycle schedules background work for one page: a periodic
// scan while the user is active, and near-zero standing cost while idle.
// The controller owns all mutable lifecycle state explicitly so the state
// machine is testable without a live page.
package lifecycle

import (
	"context"
	"sync"
	"time"

	"draftling/internal/applog"
	"draftling/internal/page"
)

// Scanner is the periodic work the controller schedules.
type Scanner interface {
	Scan(ctx context.Context) int
}

// Config holds the controller's timing knobs. Zero values take defaults.
type Config struct {
	IdleWindow  time.Duration // inactivity before idling down (default 60s)
	ScanEvery   time.Duration // scan interval while active (default 5s)
	Debounce    time.Duration // delay after a mutation burst (default 500ms)
	SettleDelay time.Duration // delay before the reactivation scan (default 250ms)
}

func (c Config) withDefaults() Config {
	if c.IdleWindow <= 0 {
		c.IdleWindow = 60 * time.Second
	}
	if c.ScanEvery <= 0 {
		c.ScanEvery = 5 * time.Second
	}
	if c.Debounce <= 0 {
		c.Debounce = 500 * time.Millisecond
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = 250 * time.Millisecond
	}
	return c
}

// Controller is the ACTIVE/IDLE state machine. Transitions are idempotent:
// activating while active only rearms the idle timer, idling while idle is
// a no-op, and at most one scan ticker and one mutation observer exist at
// any time no matter how often transitions fire.
type Controller struct {
	cfg     Config
	page    page.Page
	scanner Scanner

	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	active    bool
	started   bool
	idleTimer *time.Timer
	tickStop  chan struct{}
	debounce  *time.Timer
}

// New creates a controller for one page.
func New(p page.Page, s Scanner, cfg Config) *Controller {
	return &Controller{cfg: cfg.withDefaults(), page: p, scanner: s}
}

// Start enters ACTIVE: connects the mutation observer, starts the scan
// ticker, arms the idle timer and runs one immediate scan. Idempotent.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.active = true
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.startTickerLocked()
	c.rearmIdleLocked()
	c.mu.Unlock()

	if err := c.page.ObserveMutations(c.ctx, true); err != nil {
		applog.Error("lifecycle.observe", err)
	}
	c.scanner.Scan(c.ctx)
	applog.Info("lifecycle.start")
}

// Stop tears the controller down entirely. Used on page detach, not for
// the idle transition.
func (c *Controller) Stop() {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return
	}
	c.started = false
	c.active = false
	c.stopTickerLocked()
	c.stopTimersLocked()
	cancel := c.cancel
	c.mu.Unlock()
	cancel()
}

// Active reports whether the controller is in the ACTIVE state.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Touch records an activity event. While ACTIVE it only rearms the idle
// countdown (cancel-and-reschedule, never decrement); from IDLE it
// reactivates.
func (c *Controller) Touch() {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return
	}
	if c.active {
		c.rearmIdleLocked()
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	c.activate()
}

// OnMutation schedules a debounced scan. Mutation bursts collapse into a
// single scan; ignored entirely while IDLE (the observer should already be
// disconnected, but a late callback may still arrive).
func (c *Controller) OnMutation() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return
	}
	if c.debounce != nil {
		c.debounce.Stop()
	}
	c.debounce = time.AfterFunc(c.cfg.Debounce, func() {
		if c.Active() {
			c.scanner.Scan(c.ctx)
		}
	})
}

// idle is the ACTIVE→IDLE transition: stop the ticker, disconnect the
// observer, force panels closed and arm the one-shot wake listeners.
func (c *Controller) idle() {
	c.mu.Lock()
	if !c.active || !c.started {
		c.mu.Unlock()
		return
	}
	c.active = false
	c.stopTickerLocked()
	c.stopTimersLocked()
	ctx := c.ctx
	c.mu.Unlock()

	if err := c.page.ObserveMutations(ctx, false); err != nil {
		applog.Error("lifecycle.observe", err)
	}
	if err := c.page.ClosePanels(ctx); err != nil {
		applog.Error("lifecycle.close-panels", err)
	}
	if err := c.page.ArmWake(ctx); err != nil {
		applog.Error("lifecycle.arm-wake", err)
	}
	applog.Info("lifecycle.idle")
}

// activate is the IDLE→ACTIVE transition: disarm wake listeners, restart
// the ticker, reconnect the observer and scan once after a short settle
// delay so the triggering DOM change has landed.
func (c *Controller) activate() {
	c.mu.Lock()
	if !c.started || c.active {
		if c.started && c.active {
			c.rearmIdleLocked()
		}
		c.mu.Unlock()
		return
	}
	c.active = true
	c.startTickerLocked()
	c.rearmIdleLocked()
	ctx := c.ctx
	c.mu.Unlock()

	if err := c.page.DisarmWake(ctx); err != nil {
		applog.Error("lifecycle.disarm-wake", err)
	}
	if err := c.page.ObserveMutations(ctx, true); err != nil {
		applog.Error("lifecycle.observe", err)
	}
	time.AfterFunc(c.cfg.SettleDelay, func() {
		if c.Active() {
			c.scanner.Scan(ctx)
		}
	})
	applog.Info("lifecycle.active")
}

func (c *Controller) rearmIdleLocked() {
	if c.idleTimer != nil {
		c.idleTimer.Stop()
	}
	c.idleTimer = time.AfterFunc(c.cfg.IdleWindow, c.idle)
}

func (c *Controller) startTickerLocked() {
	if c.tickStop != nil {
		return
	}
	stop := make(chan struct{})
	c.tickStop = stop
	ctx := c.ctx
	go func() {
		ticker := time.NewTicker(c.cfg.ScanEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.scanner.Scan(ctx)
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (c *Controller) stopTickerLocked() {
	if c.tickStop != nil {
		close(c.tickStop)
		c.tickStop = nil
	}
}

func (c *Controller) stopTimersLocked() {
	if c.idleTimer != nil {
		c.idleTimer.Stop()
		c.idleTimer = nil
	}
	if c.debounce != nil {
		c.debounce.Stop()
		c.debounce = nil
	}
}
