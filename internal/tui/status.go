// Package tui renders live dispatch progress while responses stream in.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nerdprompt/np/internal/dispatch"
)

// Status icons per dispatch phase.
const (
	iconWaiting = "[○]"
	iconDone    = "[✓]"
	iconError   = "[✗]"
	iconManual  = "[✎]"
)

// pollInterval is how often the view re-reads the status registry.
const pollInterval = 100 * time.Millisecond

// tickMsg drives registry polling.
type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// StatusView is the bubbletea model that follows one dispatch run until
// every target reaches a terminal phase.
type StatusView struct {
	registry *dispatch.Registry
	spinner  spinner.Model
	statuses []dispatch.Status
	quitting bool

	// Styles
	titleStyle   lipgloss.Style
	targetStyle  lipgloss.Style
	detailStyle  lipgloss.Style
	phaseWaiting lipgloss.Style
	phaseSending lipgloss.Style
	phaseDone    lipgloss.Style
	phaseError   lipgloss.Style
	phaseManual  lipgloss.Style
}

// NewStatusView creates a StatusView over the given registry.
func NewStatusView(registry *dispatch.Registry) *StatusView {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("69")) // Blue

	return &StatusView{
		registry: registry,
		spinner:  sp,
		statuses: registry.Snapshot(),

		titleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")),

		targetStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")),

		detailStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),

		phaseWaiting: lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")), // Gray

		phaseSending: lipgloss.NewStyle().
			Foreground(lipgloss.Color("69")), // Blue

		phaseDone: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")), // Green

		phaseError: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")), // Red

		phaseManual: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")), // Orange
	}
}

// Init implements tea.Model.
func (v *StatusView) Init() tea.Cmd {
	return tea.Batch(v.spinner.Tick, tick())
}

// Update implements tea.Model.
func (v *StatusView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			v.quitting = true
			return v, tea.Quit
		}
	case tickMsg:
		v.statuses = v.registry.Snapshot()
		if v.registry.AllTerminal() {
			v.quitting = true
			return v, tea.Quit
		}
		return v, tick()
	case spinner.TickMsg:
		var cmd tea.Cmd
		v.spinner, cmd = v.spinner.Update(msg)
		return v, cmd
	}
	return v, nil
}

// View implements tea.Model.
func (v *StatusView) View() string {
	var b strings.Builder
	b.WriteString(v.titleStyle.Render("Dispatching prompt"))
	b.WriteString("\n\n")
	for _, st := range v.statuses {
		b.WriteString("  ")
		b.WriteString(v.icon(st.Phase))
		b.WriteString(" ")
		b.WriteString(v.targetStyle.Render(st.Target))
		if detail := detailFor(st); detail != "" {
			b.WriteString(" ")
			b.WriteString(v.detailStyle.Render(detail))
		}
		b.WriteString("\n")
	}
	if !v.quitting {
		b.WriteString("\n")
		b.WriteString(v.detailStyle.Render("press q to detach"))
		b.WriteString("\n")
	}
	return b.String()
}

// icon renders the styled phase marker, substituting the spinner while a
// request is in flight.
func (v *StatusView) icon(phase dispatch.Phase) string {
	switch phase {
	case dispatch.PhaseSending:
		return v.phaseSending.Render("[" + v.spinner.View() + "]")
	case dispatch.PhaseDone:
		return v.phaseDone.Render(iconDone)
	case dispatch.PhaseError:
		return v.phaseError.Render(iconError)
	case dispatch.PhaseManual:
		return v.phaseManual.Render(iconManual)
	default:
		return v.phaseWaiting.Render(iconWaiting)
	}
}

// detailFor picks the inline annotation for one row.
func detailFor(st dispatch.Status) string {
	switch st.Phase {
	case dispatch.PhaseError:
		if st.Detail != "" {
			return "- " + st.Detail
		}
		return "- failed"
	case dispatch.PhaseManual:
		return "- awaiting manual paste"
	case dispatch.PhaseSending:
		return "- sending"
	}
	return ""
}

// Run drives the status view until every target is terminal or the user
// detaches. The dispatch itself runs elsewhere; Run only observes.
func Run(registry *dispatch.Registry) error {
	_, err := tea.NewProgram(NewStatusView(registry)).Run()
	return err
}

// Follow polls the registry and prints transitions as plain lines. It is the
// fallback for non-interactive terminals and piped output.
func Follow(registry *dispatch.Registry, printf func(format string, args ...interface{})) {
	seen := map[string]dispatch.Phase{}
	for {
		for _, st := range registry.Snapshot() {
			if seen[st.Target] == st.Phase {
				continue
			}
			seen[st.Target] = st.Phase
			line := fmt.Sprintf("%s: %s", st.Target, st.Phase)
			if st.Phase == dispatch.PhaseError && st.Detail != "" {
				line += " (" + st.Detail + ")"
			}
			printf("%s\n", line)
		}
		if registry.AllTerminal() {
			return
		}
		time.Sleep(pollInterval)
	}
}
