package dispatch

import (
	"context"
	"fmt"
	"sync"
)

// DefaultConcurrency is the worker ceiling when none is configured.
const DefaultConcurrency = 5

// Result is the terminal record for one target. Immutable once produced.
// Failed targets carry ErrMessage and no content; manual targets carry
// neither content nor cost.
type Result struct {
	Target           string
	Content          string
	ErrMessage       string
	Cost             float64
	PromptTokens     int
	CompletionTokens int
}

// Err reports whether the result is a failure.
func (r Result) Err() bool {
	return r.ErrMessage != ""
}

// Engine fans a prompt out to remote targets with a bounded worker pool.
// Each worker owns exclusive write access to its target's status cell;
// a failed request is terminal for that target and never affects siblings.
type Engine struct {
	client      *Client
	concurrency int
}

// NewEngine creates a dispatch engine over the given client. concurrency <= 0
// selects the default ceiling.
func NewEngine(client *Client, concurrency int) *Engine {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Engine{client: client, concurrency: concurrency}
}

// Dispatch sends the prompt to every remote target concurrently and returns
// all results plus the summed cost. The registry passed in is the live
// status surface: manual targets are already terminal in it, and each remote
// worker walks its cell through waiting -> sending -> done|error.
//
// Result order follows completion, not submission; match results to targets
// by name. There are no retries and no mid-flight cancellation beyond ctx.
func (e *Engine) Dispatch(ctx context.Context, prompt string, targets []Target, reg *Registry) ([]Result, float64) {
	results := make([]Result, 0, len(targets))
	resultCh := make(chan Result, len(targets))

	// Manual targets are fulfilled outside this system: terminal at setup,
	// empty result, zero cost.
	for _, t := range targets {
		if t.Kind == KindManual {
			results = append(results, Result{Target: t.Name})
		}
	}

	sem := make(chan struct{}, e.concurrency)
	var wg sync.WaitGroup
	for _, t := range targets {
		if t.Kind != KindRemote {
			continue
		}
		wg.Add(1)
		go func(t Target) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			resultCh <- e.send(ctx, prompt, t, reg)
		}(t)
	}

	wg.Wait()
	close(resultCh)
	for r := range resultCh {
		results = append(results, r)
	}

	var total float64
	for _, r := range results {
		total += r.Cost
	}
	return results, total
}

// send runs the per-worker protocol for one remote target.
func (e *Engine) send(ctx context.Context, prompt string, t Target, reg *Registry) Result {
	reg.Set(t.Name, PhaseSending, "")

	content, usage, err := e.client.Complete(ctx, t.Name, prompt, t.Overrides)
	if err != nil {
		msg := fmt.Sprintf("request to %s failed: %v", t.Name, err)
		reg.Set(t.Name, PhaseError, msg)
		return Result{Target: t.Name, ErrMessage: msg}
	}

	reg.Set(t.Name, PhaseDone, "")
	return Result{
		Target:           t.Name,
		Content:          content,
		Cost:             usage.Cost,
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
	}
}
