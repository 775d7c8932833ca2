package tui

import (
	"fmt"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nerdprompt/np/internal/dispatch"
)

func testRegistry() *dispatch.Registry {
	return dispatch.NewRegistry(dispatch.NewTargets([]string{
		"openai/gpt-4",
		"google/gemini-pro",
		"manual-claude",
	}, nil))
}

func TestStatusView_ViewListsEveryTarget(t *testing.T) {
	v := NewStatusView(testRegistry())

	out := v.View()
	for _, name := range []string{"openai/gpt-4", "google/gemini-pro", "manual-claude"} {
		if !strings.Contains(out, name) {
			t.Errorf("view missing target %q", name)
		}
	}
	if !strings.Contains(out, "awaiting manual paste") {
		t.Error("manual target should be annotated")
	}
}

func TestStatusView_TickRefreshesAndQuitsWhenTerminal(t *testing.T) {
	reg := testRegistry()
	v := NewStatusView(reg)

	reg.Set("openai/gpt-4", dispatch.PhaseDone, "")
	model, cmd := v.Update(tickMsg(time.Now()))
	v = model.(*StatusView)
	if cmd == nil {
		t.Fatal("expected a re-tick command while targets are in flight")
	}
	if !strings.Contains(v.View(), iconDone) {
		t.Error("done marker should appear after refresh")
	}

	reg.Set("openai/gpt-4", dispatch.PhaseDone, "")
	reg.Set("google/gemini-pro", dispatch.PhaseError, "HTTP 500")
	_, cmd = v.Update(tickMsg(time.Now()))
	if cmd == nil {
		t.Fatal("expected quit command once all targets are terminal")
	}
	if msg := cmd(); msg != tea.Quit() {
		t.Errorf("cmd() = %v, want quit", msg)
	}
}

func TestStatusView_ErrorDetailShown(t *testing.T) {
	reg := testRegistry()
	reg.Set("google/gemini-pro", dispatch.PhaseError, "HTTP 429")
	v := NewStatusView(reg)

	if !strings.Contains(v.View(), "HTTP 429") {
		t.Error("error detail should be rendered inline")
	}
}

func TestFollow_PrintsTransitionsUntilTerminal(t *testing.T) {
	reg := dispatch.NewRegistry(dispatch.NewTargets([]string{"openai/gpt-4"}, nil))

	go func() {
		time.Sleep(20 * time.Millisecond)
		reg.Set("openai/gpt-4", dispatch.PhaseSending, "")
		time.Sleep(20 * time.Millisecond)
		reg.Set("openai/gpt-4", dispatch.PhaseDone, "")
	}()

	var b strings.Builder
	Follow(reg, func(format string, args ...interface{}) {
		fmt.Fprintf(&b, format, args...)
	})

	out := b.String()
	for _, want := range []string{"waiting", "sending", "done"} {
		if !strings.Contains(out, "openai/gpt-4: "+want) {
			t.Errorf("output missing %q transition:\n%s", want, out)
		}
	}
}
