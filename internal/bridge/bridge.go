// Package bridge is the normalization layer between UI actions and the
// local reply service's HTTP contract. Generate requests never surface an
// error to the caller: any transport or protocol failure degrades to the
// static fallback suggestion set.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"draftling/internal/applog"
	"draftling/internal/types"
)

// GenerateTimeout accommodates a cold model load on the service side.
const GenerateTimeout = 30 * time.Second

// cleanupOdds: roughly one in N successful generates triggers a
// fire-and-forget storage cleanup on the service.
const cleanupOdds = 10

// DefaultAddr is the fixed local service address.
const DefaultAddr = "http://127.0.0.1:8765"

// Client talks to the local reply service.
type Client struct {
	base string
	http *http.Client

	// chance reports whether the probabilistic maintenance call should
	// fire. Replaced in tests; defaults to a 1-in-cleanupOdds roll.
	chance func() bool
}

// New creates a client for the service at base (e.g. "http://127.0.0.1:8765").
func New(base string) *Client {
	return &Client{
		base:   strings.TrimRight(base, "/"),
		http:   &http.Client{},
		chance: func() bool { return rand.Intn(cleanupOdds) == 0 },
	}
}

type generateRequest struct {
	EmailText string `json:"email_text"`
	Tone      string `json:"tone"`
	Length    string `json:"length"`
}

type generateResponse struct {
	OK        bool           `json:"ok"`
	Reply     string         `json:"reply"`
	FromModel bool           `json:"from_model"`
	Meta      map[string]any `json:"meta"`
}

// RequestSuggestions asks the service for a reply to emailText and expands
// it into a 1-3 item suggestion set. It never returns an error: timeouts,
// transport failures, non-2xx statuses and malformed payloads all yield the
// static fallback set with FromModel=false.
func (c *Client) RequestSuggestions(ctx context.Context, emailText, tone, length string) types.SuggestionSet {
	ctx, cancel := context.WithTimeout(ctx, GenerateTimeout)
	defer cancel()

	body, err := json.Marshal(generateRequest{EmailText: emailText, Tone: tone, Length: length})
	if err != nil {
		applog.Error("bridge.generate", err)
		return FallbackSet()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/generate", bytes.NewReader(body))
	if err != nil {
		applog.Error("bridge.generate", err)
		return FallbackSet()
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		applog.Warn("bridge.fallback", "reason", "transport", "detail", err.Error())
		return FallbackSet()
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		applog.Warn("bridge.fallback", "reason", "status", "code", resp.StatusCode)
		return FallbackSet()
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		applog.Warn("bridge.fallback", "reason", "decode", "detail", err.Error())
		return FallbackSet()
	}

	reply := strings.TrimSpace(result.Reply)
	if reply == "" {
		applog.Warn("bridge.fallback", "reason", "empty-reply")
		return FallbackSet()
	}

	if c.chance() {
		go c.maintenance()
	}

	applog.Info("bridge.generate", "from_model", result.FromModel, "len", len(reply))
	return types.SuggestionSet{Items: Variants(reply), FromModel: result.FromModel}
}

// maintenance fires the probabilistic cleanup call. Best-effort: the result
// never affects suggestion handling.
func (c *Client) maintenance() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.CleanupStorage(ctx); err != nil {
		applog.Warn("bridge.cleanup", "detail", err.Error())
	}
}

// LearnEvent describes one user interaction forwarded to the service's
// learning endpoint.
type LearnEvent struct {
	InteractionType string         `json:"interaction_type"`
	Suggestion      string         `json:"suggestion"`
	SuggestionIndex int            `json:"suggestion_index"`
	OriginalEmail   string         `json:"original_email"`
	Context         map[string]any `json:"context"`
	Feedback        string         `json:"feedback"`
}

// LearnInteraction forwards a learning event. The caller decides whether a
// failure is queued for later or dropped.
func (c *Client) LearnInteraction(ctx context.Context, ev LearnEvent) error {
	return c.post(ctx, "/learn_interaction", ev)
}

// Remember is the legacy "remember inserted text" call.
func (c *Client) Remember(ctx context.Context, text string) error {
	return c.post(ctx, "/remember", map[string]string{"text": text})
}

// UnloadModel asks the service to free the model's memory.
func (c *Client) UnloadModel(ctx context.Context) error {
	return c.post(ctx, "/unload_model", nil)
}

// CleanupStorage asks the service to compact its sample storage.
func (c *Client) CleanupStorage(ctx context.Context) error {
	return c.post(ctx, "/cleanup_storage", nil)
}

// Shutdown stops the service. The process may exit before writing a
// response, so a dropped connection after the request was sent counts
// as success.
func (c *Client) Shutdown(ctx context.Context) error {
	err := c.post(ctx, "/shutdown", nil)
	if err != nil && (errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)) {
		return nil
	}
	return err
}

type memoryStatusResponse struct {
	ModelLoaded  bool    `json:"model_loaded"`
	MemoryMB     float64 `json:"memory_mb"`
	WillUnloadIn float64 `json:"will_unload_in"`
}

// MemoryStatus reports the service's model/memory state.
func (c *Client) MemoryStatus(ctx context.Context) (types.MemoryStatus, error) {
	var raw memoryStatusResponse
	if err := c.get(ctx, "/memory_status", &raw); err != nil {
		return types.MemoryStatus{}, err
	}
	return types.MemoryStatus{
		ModelLoaded:  raw.ModelLoaded,
		MemoryMB:     raw.MemoryMB,
		WillUnloadIn: raw.WillUnloadIn,
	}, nil
}

type healthResponse struct {
	OK          bool `json:"ok"`
	HasModel    bool `json:"has_model"`
	ModelLoaded bool `json:"model_loaded"`
}

// Health reports service liveness. An unreachable service is not an
// exceptional state for callers; they display "offline".
func (c *Client) Health(ctx context.Context) (types.Health, error) {
	var raw healthResponse
	if err := c.get(ctx, "/health", &raw); err != nil {
		return types.Health{}, err
	}
	return types.Health{OK: raw.OK, HasModel: raw.HasModel, ModelLoaded: raw.ModelLoaded}, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, body)
	if err != nil {
		return fmt.Errorf("create request %s: %w", path, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s: HTTP %d", path, resp.StatusCode)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return fmt.Errorf("create request %s: %w", path, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: HTTP %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
