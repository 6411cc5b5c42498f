package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Store owns the state. A single run loop consumes dispatched actions
// and applies the reducer, so state transitions are strictly ordered
// with no locking inside reductions. Readers get consistent snapshots
// through CurrentState.
type Store struct {
	opts    Options
	exec    *Executor
	logger  *slog.Logger
	actions chan Action

	mu    sync.RWMutex
	state State
}

func NewStore(initial State, opts Options, exec *Executor, logger *slog.Logger) *Store {
	return &Store{
		opts:    opts,
		exec:    exec,
		logger:  logger,
		actions: make(chan Action, 256),
		state:   initial,
	}
}

// Dispatch queues an action for the run loop. Safe from any goroutine.
func (s *Store) Dispatch(a Action) {
	s.actions <- a
}

// CurrentState returns a snapshot of the state. Reducers never mutate
// shared slices in place, so the snapshot stays stable while the loop
// keeps running.
func (s *Store) CurrentState() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Run consumes actions until the context is cancelled. Effects run
// concurrently in the executor; their follow-up actions come back
// through Dispatch.
func (s *Store) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case a := <-s.actions:
			s.mu.Lock()
			next, effs := Reduce(s.state, a, s.opts)
			s.state = next
			s.mu.Unlock()
			s.logger.Debug("reduced", "action", actionName(a), "effects", len(effs))
			for _, e := range effs {
				s.exec.Execute(ctx, e, s.Dispatch)
			}
		}
	}
}

func actionName(a Action) string {
	return strings.TrimPrefix(fmt.Sprintf("%T", a), "engine.")
}
