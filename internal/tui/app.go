// Package tui is the operator dashboard: service health, model state and
// the list of attached pages, refreshed on a timer.
package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"draftling/internal/agent"
	"draftling/internal/bridge"
	"draftling/internal/types"
)

// --- Messages ---

type refreshMsg struct {
	pages  []types.PageInfo
	health types.Health
	memory types.MemoryStatus
	online bool
}

type actionDoneMsg struct {
	label string
	err   error
}

type tickMsg struct{}

// --- Model ---

type Model struct {
	manager *agent.Manager
	bridge  *bridge.Client

	pages  []types.PageInfo
	health types.Health
	memory types.MemoryStatus
	online bool

	status string // transient action feedback line
	width  int
	height int
}

func NewModel(mgr *agent.Manager, br *bridge.Client) Model {
	return Model{manager: mgr, bridge: br}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(refresh(m.manager), tick())
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg { return tickMsg{} })
}

func refresh(mgr *agent.Manager) tea.Cmd {
	return func() tea.Msg {
		h, mem, online := mgr.Status()
		return refreshMsg{
			pages:  mgr.Pages(),
			health: h,
			memory: mem,
			online: online,
		}
	}
}

func runAction(label string, fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return actionDoneMsg{label: label, err: fn(ctx)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		return m, tea.Batch(refresh(m.manager), tick())

	case refreshMsg:
		m.pages = msg.pages
		m.health = msg.health
		m.memory = msg.memory
		m.online = msg.online
		return m, nil

	case actionDoneMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("%s failed: %v", msg.label, msg.err)
		} else {
			m.status = msg.label + " ok"
		}
		return m, refresh(m.manager)

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "u":
			m.status = "unloading model..."
			return m, runAction("unload", m.bridge.UnloadModel)
		case "c":
			m.status = "cleaning storage..."
			return m, runAction("cleanup", m.bridge.CleanupStorage)
		case "r":
			m.status = "rescanning pages..."
			mgr := m.manager
			return m, runAction("rescan", func(ctx context.Context) error {
				mgr.Rescan(ctx)
				return nil
			})
		}
		return m, nil
	}

	return m, nil
}

func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	okStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	badStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("203"))

	var service string
	if m.online {
		service = okStyle.Render("● online")
	} else {
		service = badStyle.Render("○ offline")
	}
	top := titleStyle.Render("Draftling") + "  service " + service

	var model string
	switch {
	case !m.online:
		model = dimStyle.Render("model: unknown")
	case m.memory.ModelLoaded:
		model = fmt.Sprintf("model: loaded · %.0f MB", m.memory.MemoryMB)
		if m.memory.WillUnloadIn > 0 {
			model += fmt.Sprintf(" · unloads in %s", (time.Duration(m.memory.WillUnloadIn) * time.Second).Round(time.Second))
		}
	case m.health.HasModel:
		model = "model: available, not loaded"
	default:
		model = badStyle.Render("model: not installed")
	}

	var b []string
	b = append(b, top, "  "+model, "")

	if len(m.pages) == 0 {
		b = append(b, dimStyle.Render("  no pages attached"))
	} else {
		b = append(b, fmt.Sprintf("  %d page(s) attached", len(m.pages)))
		for _, p := range m.pages {
			state := "idle"
			if p.Active {
				state = okStyle.Render("active")
			}
			title := p.Title
			if title == "" {
				title = p.URL
			}
			if len(title) > 60 {
				title = title[:60] + "…"
			}
			b = append(b, fmt.Sprintf("   %s  %s  %s",
				state, title, dimStyle.Render(fmt.Sprintf("%d surface(s)", p.Surfaces))))
		}
	}

	b = append(b, "")
	if m.status != "" {
		b = append(b, "  "+m.status)
	}
	b = append(b, dimStyle.Render("  u unload model · c cleanup storage · r rescan · q quit"))

	return "\n" + lipgloss.JoinVertical(lipgloss.Left, b...) + "\n"
}
