package types

import "time"

// SurfaceKind distinguishes how text is committed into an editable element.
type SurfaceKind int

const (
	// RichText is a contenteditable region; insertion replaces its content.
	RichText SurfaceKind = iota
	// PlainText is a textarea or text input; insertion assigns its value.
	PlainText
)

func (k SurfaceKind) String() string {
	if k == PlainText {
		return "plain-text"
	}
	return "rich-text"
}

// Surface is one editable element eligible for suggestion injection.
// The element itself carries the "already instrumented" marker attribute,
// so a Surface is just a handle; it is never explicitly destroyed and the
// page may detach the underlying element at any time.
type Surface struct {
	ID   string // agent-assigned element id, unique within the page
	Kind SurfaceKind
}

// SuggestionSet is the ordered 1-3 candidate strings shown in a panel
// for one fetch. Immutable once produced; a new fetch replaces the whole set.
type SuggestionSet struct {
	Items     []string
	FromModel bool // false when the set is the static fallback
}

// PageInfo describes one attached browser page.
type PageInfo struct {
	TargetID string
	URL      string
	Title    string
	Surfaces int // instrumented surface count
	Active   bool
}

// Delivery identifies which channel committed a chosen suggestion.
type Delivery int

const (
	DeliveryNone     Delivery = iota
	DeliveryInserted          // direct assignment succeeded (clipboard also attempted)
	DeliveryClipboard
	DeliveryAlert // last-resort blocking prompt
)

func (d Delivery) String() string {
	switch d {
	case DeliveryInserted:
		return "inserted"
	case DeliveryClipboard:
		return "clipboard"
	case DeliveryAlert:
		return "alert"
	}
	return "none"
}

// Insertion is one committed suggestion, recorded in the local history.
type Insertion struct {
	ID        int64
	Host      string // page host, not the full URL
	Kind      SurfaceKind
	Delivery  Delivery
	Text      string
	CreatedAt time.Time
}

// FeedbackEvent is a learn/remember call queued locally while the reply
// service is unreachable, flushed on the next successful health check.
type FeedbackEvent struct {
	ID              string // uuid
	Kind            string // "learn" or "remember"
	InteractionType string
	Suggestion      string
	SuggestionIndex int
	OriginalEmail   string
	Feedback        string
	ContextBlob     string // path of the lz4-compressed page context, may be empty
	CreatedAt       time.Time
}

// MemoryStatus is the reply service's resource report.
type MemoryStatus struct {
	ModelLoaded  bool
	MemoryMB     float64
	WillUnloadIn float64 // seconds until idle unload, 0 if not loaded
}

// Health is the reply service's liveness report.
type Health struct {
	OK          bool
	HasModel    bool
	ModelLoaded bool
}
