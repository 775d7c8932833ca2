package dispatch

import (
	"sync"
	"time"
)

// Phase is the lifecycle state of one target.
type Phase string

const (
	PhaseWaiting Phase = "waiting"
	PhaseSending Phase = "sending"
	PhaseDone    Phase = "done"
	PhaseError   Phase = "error"
	PhaseManual  Phase = "manual"
)

// Terminal reports whether the phase is final.
func (p Phase) Terminal() bool {
	return p == PhaseDone || p == PhaseError || p == PhaseManual
}

// Status is a point-in-time view of one target's progress.
type Status struct {
	Target  string
	Phase   Phase
	Detail  string
	Started time.Time
}

// statusCell holds the mutable state for one target. Only the owning worker
// writes it after setup; readers go through the registry snapshot.
type statusCell struct {
	status Status
}

// Registry tracks per-target status with a single writer per cell and a
// coarse read lock for the rendering observer. Workers never contend with
// each other on the same cell; the lock only orders writers against
// snapshot readers.
type Registry struct {
	mu    sync.RWMutex
	cells map[string]*statusCell
	order []string
}

// NewRegistry creates a registry with one cell per target. Manual targets
// start - and stay - in the terminal manual phase.
func NewRegistry(targets []Target) *Registry {
	r := &Registry{cells: make(map[string]*statusCell, len(targets))}
	now := time.Now()
	for _, t := range targets {
		phase := PhaseWaiting
		if t.Kind == KindManual {
			phase = PhaseManual
		}
		r.cells[t.Name] = &statusCell{status: Status{
			Target:  t.Name,
			Phase:   phase,
			Started: now,
		}}
		r.order = append(r.order, t.Name)
	}
	return r
}

// Set updates a target's phase and detail. Called only by the worker that
// owns the target.
func (r *Registry) Set(target string, phase Phase, detail string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cell, ok := r.cells[target]
	if !ok {
		return
	}
	cell.status.Phase = phase
	cell.status.Detail = detail
}

// Snapshot returns an immutable copy of all statuses in registration order,
// safe to render while workers keep mutating their own cells.
func (r *Registry) Snapshot() []Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Status, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.cells[name].status)
	}
	return out
}

// AllTerminal reports whether every target has reached a final phase.
func (r *Registry) AllTerminal() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, cell := range r.cells {
		if !cell.status.Phase.Terminal() {
			return false
		}
	}
	return true
}
