package lifecycle

import (
	"context"
	"sync"
	"testing"
	"time"

	"draftling/internal/page"
)

type fakeScanner struct {
	mu    sync.Mutex
	scans int
}

func (f *fakeScanner) Scan(ctx context.Context) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scans++
	return 0
}

func (f *fakeScanner) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scans
}

type fakePage struct {
	page.Page

	mu          sync.Mutex
	observeOn   int
	observeOff  int
	closePanels int
	armWake     int
	disarmWake  int
}

func (f *fakePage) ObserveMutations(ctx context.Context, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if enabled {
		f.observeOn++
	} else {
		f.observeOff++
	}
	return nil
}

func (f *fakePage) ClosePanels(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closePanels++
	return nil
}

func (f *fakePage) ArmWake(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.armWake++
	return nil
}

func (f *fakePage) DisarmWake(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disarmWake++
	return nil
}

func (f *fakePage) counts() (on, off, closed, armed, disarmed int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.observeOn, f.observeOff, f.closePanels, f.armWake, f.disarmWake
}

// fastConfig keeps the state machine timers short enough to test but wide
// enough apart to avoid flaking on a loaded machine.
func fastConfig() Config {
	return Config{
		IdleWindow:  80 * time.Millisecond,
		ScanEvery:   1 * time.Hour, // ticker out of the way unless a test wants it
		Debounce:    30 * time.Millisecond,
		SettleDelay: 10 * time.Millisecond,
	}
}

func TestStartScansImmediatelyAndIsIdempotent(t *testing.T) {
	p := &fakePage{}
	s := &fakeScanner{}
	c := New(p, s, fastConfig())
	defer c.Stop()

	ctx := context.Background()
	c.Start(ctx)
	c.Start(ctx)
	c.Start(ctx)

	if !c.Active() {
		t.Error("Active = false after Start")
	}
	if got := s.count(); got != 1 {
		t.Errorf("scans = %d, want 1 (Start must be idempotent)", got)
	}
	on, _, _, _, _ := p.counts()
	if on != 1 {
		t.Errorf("observer connected %d times, want 1", on)
	}
}

func TestIdleTransition(t *testing.T) {
	p := &fakePage{}
	s := &fakeScanner{}
	c := New(p, s, fastConfig())
	defer c.Stop()

	c.Start(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for c.Active() {
		if time.Now().After(deadline) {
			t.Fatal("controller never went idle")
		}
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(30 * time.Millisecond) // let the transition's page calls land

	_, off, closed, armed, _ := p.counts()
	if off != 1 {
		t.Errorf("observer disconnected %d times, want 1", off)
	}
	if closed != 1 {
		t.Errorf("ClosePanels called %d times, want 1", closed)
	}
	if armed != 1 {
		t.Errorf("ArmWake called %d times, want 1", armed)
	}
}

func TestTouchWhileActiveDefersIdle(t *testing.T) {
	p := &fakePage{}
	s := &fakeScanner{}
	c := New(p, s, fastConfig())
	defer c.Stop()

	c.Start(context.Background())

	// Keep touching at half the idle window; the countdown must rearm,
	// never tick down.
	for i := 0; i < 6; i++ {
		time.Sleep(40 * time.Millisecond)
		if !c.Active() {
			t.Fatalf("went idle after %d touches despite steady activity", i)
		}
		c.Touch()
	}
}

func TestTouchFromIdleReactivates(t *testing.T) {
	p := &fakePage{}
	s := &fakeScanner{}
	c := New(p, s, fastConfig())
	defer c.Stop()

	c.Start(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for c.Active() {
		if time.Now().After(deadline) {
			t.Fatal("controller never went idle")
		}
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	before := s.count()

	c.Touch()
	if !c.Active() {
		t.Fatal("Active = false after wake touch")
	}

	// The reactivation scan runs after the settle delay.
	deadline = time.Now().Add(2 * time.Second)
	for s.count() == before {
		if time.Now().After(deadline) {
			t.Fatal("no scan after reactivation")
		}
		time.Sleep(5 * time.Millisecond)
	}

	time.Sleep(30 * time.Millisecond)
	on, _, _, _, disarmed := p.counts()
	if disarmed != 1 {
		t.Errorf("DisarmWake called %d times, want 1", disarmed)
	}
	if on != 2 {
		t.Errorf("observer connected %d times, want 2 (start + reactivate)", on)
	}
}

func TestMutationBurstCollapsesToOneScan(t *testing.T) {
	p := &fakePage{}
	s := &fakeScanner{}
	c := New(p, s, fastConfig())
	defer c.Stop()

	c.Start(context.Background())
	base := s.count()

	for i := 0; i < 10; i++ {
		c.OnMutation()
		time.Sleep(2 * time.Millisecond)
	}

	time.Sleep(100 * time.Millisecond)
	if got := s.count() - base; got != 1 {
		t.Errorf("burst produced %d scans, want 1", got)
	}
}

func TestMutationIgnoredWhileIdle(t *testing.T) {
	p := &fakePage{}
	s := &fakeScanner{}
	c := New(p, s, fastConfig())
	defer c.Stop()

	c.Start(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for c.Active() {
		if time.Now().After(deadline) {
			t.Fatal("controller never went idle")
		}
		time.Sleep(10 * time.Millisecond)
	}
	base := s.count()

	c.OnMutation()
	time.Sleep(100 * time.Millisecond)

	if got := s.count(); got != base {
		t.Errorf("idle mutation triggered %d scans", got-base)
	}
	if c.Active() {
		t.Error("a late mutation callback must not reactivate the controller")
	}
}

func TestTickerScansWhileActive(t *testing.T) {
	cfg := fastConfig()
	cfg.ScanEvery = 20 * time.Millisecond
	cfg.IdleWindow = time.Hour

	p := &fakePage{}
	s := &fakeScanner{}
	c := New(p, s, cfg)
	defer c.Stop()

	c.Start(context.Background())
	time.Sleep(110 * time.Millisecond)

	if got := s.count(); got < 3 {
		t.Errorf("scans = %d, want several from the ticker", got)
	}
}

func TestStopHaltsEverything(t *testing.T) {
	cfg := fastConfig()
	cfg.ScanEvery = 10 * time.Millisecond

	p := &fakePage{}
	s := &fakeScanner{}
	c := New(p, s, cfg)

	c.Start(context.Background())
	c.Stop()
	c.Stop() // second stop is a no-op

	if c.Active() {
		t.Error("Active = true after Stop")
	}

	base := s.count()
	time.Sleep(60 * time.Millisecond)
	if got := s.count(); got != base {
		t.Errorf("%d scans after Stop", got-base)
	}

	// Touch after Stop must not revive the controller.
	c.Touch()
	if c.Active() {
		t.Error("Touch revived a stopped controller")
	}
}
