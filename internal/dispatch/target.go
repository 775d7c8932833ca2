// Package dispatch sends an assembled prompt to multiple LLM targets
// concurrently, tracking live per-target status and isolating failures.
package dispatch

import "strings"

// Kind classifies a target at ingestion time.
type Kind int

const (
	// KindRemote targets are dispatched over HTTP to the chat-completions
	// endpoint.
	KindRemote Kind = iota
	// KindManual targets are placeholders fulfilled outside this system;
	// they receive an empty response file and cost nothing.
	KindManual
)

// Target is one named LLM destination plus its parameter overrides.
type Target struct {
	Name      string
	Kind      Kind
	Overrides map[string]any
}

// NewTarget classifies a name and attaches its overrides. A name containing
// the provider/model separator "/" is remote; anything else is a manual
// placeholder. Classification is pure and happens exactly once, here.
func NewTarget(name string, overrides map[string]any) Target {
	kind := KindManual
	if strings.Contains(name, "/") {
		kind = KindRemote
	}
	return Target{Name: name, Kind: kind, Overrides: overrides}
}

// NewTargets classifies a list of names, looking up overrides by name.
func NewTargets(names []string, overrides map[string]map[string]any) []Target {
	targets := make([]Target, 0, len(names))
	for _, name := range names {
		targets = append(targets, NewTarget(name, overrides[name]))
	}
	return targets
}

// CountRemote returns the number of remote targets.
func CountRemote(targets []Target) int {
	n := 0
	for _, t := range targets {
		if t.Kind == KindRemote {
			n++
		}
	}
	return n
}
