// Package reactive is a small dependency tracking engine: cells hold values, computations record which cells and
// triggers they read while evaluating, and writes invalidate exactly those computations. Invalidated computations
// are re-evaluated lazily the next time they are read. Effects are computations that the runtime re-runs on Flush.
//
// A Runtime is owned by one goroutine at a time. Nothing in here locks.
package reactive

import (
	"errors"
	"fmt"
	"sort"
)

// ErrFlushLimit is returned by Flush when effects keep invalidating each other.
var ErrFlushLimit = errors.New("effects did not settle")

const maxFlushRounds = 100

// dependency is anything a computation can subscribe to.
type dependency interface {
	unsubscribe(s subscriber)
}

type subscriber interface {
	invalidate()
	track(d dependency)
}

// source is the subscriber set embedded in every readable node.
type source struct {
	subs map[subscriber]struct{}
}

func (s *source) subscribe(sub subscriber) {
	if s.subs == nil {
		s.subs = make(map[subscriber]struct{})
	}
	s.subs[sub] = struct{}{}
}

func (s *source) unsubscribe(sub subscriber) {
	delete(s.subs, sub)
}

// notify invalidates and forgets every current subscriber. They subscribe again on their next tracked read.
func (s *source) notify() {
	if len(s.subs) == 0 {
		return
	}
	subs := s.subs
	s.subs = nil
	for sub := range subs {
		sub.invalidate()
	}
}

// Runtime holds the tracking context and the effect queue for one graph of cells and computations.
type Runtime struct {
	current subscriber
	pending []*Effect
	effects int
}

func NewRuntime() *Runtime {
	return &Runtime{}
}

// read registers d as a dependency of the computation currently evaluating, if any.
func (rt *Runtime) read(d dependency, src *source) {
	if rt.current == nil {
		return
	}
	src.subscribe(rt.current)
	rt.current.track(d)
}

func (rt *Runtime) with(sub subscriber, fn func()) {
	prev := rt.current
	rt.current = sub
	defer func() { rt.current = prev }()
	fn()
}

// Isolate runs fn with tracking suspended. Reads inside fn see live values but the enclosing computation does not
// depend on them.
func Isolate[T any](rt *Runtime, fn func() T) T {
	var out T
	rt.with(nil, func() {
		out = fn()
	})
	return out
}

// Tracking reports whether a computation is currently evaluating.
func (rt *Runtime) Tracking() bool {
	return rt.current != nil
}

func (rt *Runtime) schedule(e *Effect) {
	rt.pending = append(rt.pending, e)
}

// Pending is the number of effects waiting for Flush.
func (rt *Runtime) Pending() int {
	return len(rt.pending)
}

// Flush re-runs every invalidated effect, including effects invalidated while flushing, until none are left.
func (rt *Runtime) Flush() error {
	for round := 0; len(rt.pending) > 0; round++ {
		if round >= maxFlushRounds {
			rt.pending = nil
			return fmt.Errorf("failed to flush after %d rounds: %w", maxFlushRounds, ErrFlushLimit)
		}
		batch := rt.pending
		rt.pending = nil
		// effects run in creation order regardless of which write queued them first
		sort.Slice(batch, func(i, j int) bool { return batch[i].seq < batch[j].seq })
		for _, e := range batch {
			e.run()
		}
	}
	return nil
}
