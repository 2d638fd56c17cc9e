// Package reconcile compares persisted agent records against live
// multiplexer state and removes the records whose agents are gone.
//
// The engine only ever deletes on a definitive answer: a backend that
// returns an error (socket gone, binary missing, malformed output)
// leaves the record in place so a flaky or unreachable multiplexer can
// never wipe the store.
package reconcile

import (
	"context"
	"fmt"
	"os"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/timvw/muxtrack/internal/model"
	"github.com/timvw/muxtrack/internal/mux"
	mtotel "github.com/timvw/muxtrack/internal/otel"
	"github.com/timvw/muxtrack/internal/state"
)

var tracer = otel.Tracer("muxtrack")

// Engine runs reconciliation passes over the agent state store.
type Engine struct {
	Store    *state.Store
	Backends map[string]mux.Backend // keyed by multiplexer name (model.PaneKey.Mux)
	Parallel int
	Verbose  bool
	DryRun   bool            // report dead records without deleting them
	Metrics  *mtotel.Metrics // OTEL metric counters; nil-safe
}

// Failure records one agent whose liveness could not be determined.
type Failure struct {
	Key model.PaneKey
	Err error
}

// Result holds the outcome of one reconciliation pass. Records that
// failed validation appear in both Alive and Failures: they stay in the
// store and callers may badge them as unverified.
type Result struct {
	Alive    []model.AgentState
	Pruned   []model.PaneKey
	Failures []Failure
}

// Run loads every persisted record, validates each against its
// multiplexer backend, and deletes the ones whose agent is dead.
// Validation runs with bounded parallelism; deletions are applied
// serially after all answers are in.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	ctx, span := tracer.Start(ctx, "reconcile")
	defer span.End()

	states, err := e.Store.LoadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to load agent records: %w", err)
	}
	if len(states) == 0 {
		return &Result{}, nil
	}

	type outcome struct {
		alive bool
		err   error
	}
	outcomes := make([]outcome, len(states))

	parallel := e.Parallel
	if parallel < 1 {
		parallel = 1
	}
	if parallel > len(states) {
		parallel = len(states)
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, parallel)

	for i, st := range states {
		wg.Add(1)
		go func(idx int, st model.AgentState) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			backend, ok := e.Backends[st.Key.Mux]
			if !ok {
				outcomes[idx] = outcome{err: fmt.Errorf("no backend for multiplexer %q", st.Key.Mux)}
				return
			}
			alive, err := backend.ValidateAgentAlive(ctx, st)
			outcomes[idx] = outcome{alive: alive, err: err}
		}(i, st)
	}

	wg.Wait()

	result := &Result{}
	for i, st := range states {
		o := outcomes[i]
		switch {
		case o.err != nil:
			fmt.Fprintf(os.Stderr, "warning: %s: %v\n", st.Key, o.err)
			result.Failures = append(result.Failures, Failure{Key: st.Key, Err: o.err})
			result.Alive = append(result.Alive, st)
		case o.alive:
			result.Alive = append(result.Alive, st)
		default:
			if e.DryRun {
				result.Pruned = append(result.Pruned, st.Key)
				continue
			}
			if err := e.Store.Delete(st.Key); err != nil {
				fmt.Fprintf(os.Stderr, "warning: %s: delete failed: %v\n", st.Key, err)
				result.Failures = append(result.Failures, Failure{Key: st.Key, Err: err})
				result.Alive = append(result.Alive, st)
				continue
			}
			if e.Verbose {
				fmt.Fprintf(os.Stderr, "pruned %s\n", st.Key)
			}
			e.Metrics.RecordStoreDelete(ctx)
			result.Pruned = append(result.Pruned, st.Key)
		}
	}

	e.Metrics.RecordReconcile(ctx, len(result.Alive), len(result.Pruned), len(result.Failures))
	span.SetAttributes(
		attribute.Int("agents.total", len(states)),
		attribute.Int("agents.alive", len(result.Alive)),
		attribute.Int("agents.pruned", len(result.Pruned)),
		attribute.Int("agents.failed", len(result.Failures)),
	)

	return result, nil
}
