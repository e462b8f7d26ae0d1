// Package editor is the editing session: a reactive collection cell, the last persisted snapshot, a dirty flag
// derived from the two, a slot binder and the commands that move between them.
//
// A Session is not safe for concurrent use. Commands are processed one at a time and each one ends by flushing the
// rebuilds it caused, so a rebuild never runs inside a handler.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/oklog/ulid/v2"

	"github.com/astromechza/record-editor/pkg/binder"
	"github.com/astromechza/record-editor/pkg/reactive"
	"github.com/astromechza/record-editor/pkg/records"
	"github.com/astromechza/record-editor/pkg/store"
)

var (
	ErrNoSelector  = errors.New("no selector chosen")
	ErrEmptyField  = errors.New("field name must not be empty")
	ErrUnboundSlot = errors.New("no handler bound for slot")
)

type Options struct {
	// Columns are always rendered, in this order, and new records start with them set to "".
	Columns  []string
	Composer Composer
	Logger   *slog.Logger
}

type Session struct {
	id       ulid.ULID
	store    store.Store
	logger   *slog.Logger
	columns  []string
	composer Composer

	rt          *reactive.Runtime
	selector    *reactive.Cell[string]
	hasSelector bool
	collection  *reactive.Cell[records.Collection]
	snapshot    *reactive.Cell[records.Collection]
	rebuild     *reactive.Trigger
	dirty       *reactive.Computed[bool]

	binder *binder.Binder

	render     *reactive.Effect
	watchDirty *reactive.Effect
	view       View
	viewErr    error
	controls   Controls

	viewListeners     []func(View)
	controlsListeners []func(Controls)
}

func NewSession(s store.Store, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	composer := opts.Composer
	if composer == nil {
		composer = TableComposer{Columns: opts.Columns}
	}
	id := ulid.Make()
	rt := reactive.NewRuntime()
	sess := &Session{
		id:         id,
		store:      s,
		logger:     logger.With("session", id.String()),
		columns:    opts.Columns,
		composer:   composer,
		rt:         rt,
		selector:   reactive.NewCell(rt, ""),
		collection: reactive.NewCell(rt, records.Collection{}),
		snapshot:   reactive.NewCell(rt, records.Collection{}),
		rebuild:    reactive.NewTrigger(rt),
	}
	sess.binder = binder.New(binder.NewDispatcher(), target{sess}, sess.logger)

	sess.dirty = reactive.NewComputed(rt, func() bool {
		sess.rebuild.Depend()
		return !sess.collection.Get().Equal(sess.snapshot.Get())
	})

	// the widget list is rebuilt only when the rebuild trigger fires, never because a value changed
	sess.render = reactive.NewEffect(rt, func() {
		sess.rebuild.Depend()
		c := reactive.Isolate(rt, sess.collection.Get)
		v, err := sess.composer.Compose(c, sess.binder)
		if err != nil {
			sess.viewErr = err
			sess.logger.Error("failed to compose view", "err", err)
			return
		}
		v.Selector = sess.selector.Peek()
		v.Epoch = sess.binder.Epoch()
		sess.view = v
		for _, fn := range sess.viewListeners {
			fn(v)
		}
	})

	sess.watchDirty = reactive.NewEffect(rt, func() {
		d := sess.dirty.Get()
		c := Controls{SaveVisible: d, CancelVisible: d}
		if c == sess.controls {
			return
		}
		sess.controls = c
		for _, fn := range sess.controlsListeners {
			fn(c)
		}
	})
	return sess
}

func (s *Session) ID() string {
	return s.id.String()
}

// flush runs the rebuilds queued by the command that just finished.
func (s *Session) flush() error {
	err := s.rt.Flush()
	if s.viewErr != nil {
		err = errors.Join(err, s.viewErr)
		s.viewErr = nil
	}
	if err != nil {
		return fmt.Errorf("failed to rebuild: %w", err)
	}
	return nil
}

// Select loads the collection for key and starts a new binding epoch. An unknown key with no previous selector
// still opens an empty collection for it so that it can be populated and saved; the not-found error is returned
// either way.
func (s *Session) Select(ctx context.Context, key string) error {
	c, err := s.store.Load(ctx, key)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) || s.hasSelector {
			s.logger.Warn("failed to load selector", "selector", key, "err", err)
			return fmt.Errorf("failed to select %q: %w", key, err)
		}
		s.logger.Info("opening new selector", "selector", key)
		c = records.Collection{}
	}

	s.selector.Set(key)
	s.hasSelector = true
	s.snapshot.Set(c.Clone())
	s.collection.Set(c)
	s.binder.Reset()
	s.rebuild.Fire()
	s.logger.Info("selected", "selector", key, "records", len(c), "epoch", s.binder.Epoch())

	if ferr := s.flush(); ferr != nil {
		return ferr
	}
	if err != nil {
		return fmt.Errorf("failed to select %q: %w", key, err)
	}
	return nil
}

func (s *Session) Add() error {
	if !s.hasSelector {
		return ErrNoSelector
	}
	next, r := s.collection.Peek().Append(s.columns...)
	s.collection.Set(next)
	s.rebuild.Fire()
	s.logger.Debug("added", "id", r.ID, "slot", len(next))
	return s.flush()
}

func (s *Session) Delete(slot int) error {
	if err := s.deleteSlot(slot); err != nil {
		return err
	}
	return s.flush()
}

func (s *Session) Edit(slot int, field, value string) error {
	if err := s.editSlot(slot, field, value); err != nil {
		return err
	}
	return s.flush()
}

// Cancel throws away every edit since the last load or save.
func (s *Session) Cancel() error {
	if !s.hasSelector {
		return ErrNoSelector
	}
	s.collection.Set(s.snapshot.Peek().Clone())
	s.rebuild.Fire()
	s.logger.Debug("cancelled")
	return s.flush()
}

// Save writes the collection under the current selector. On failure neither the collection nor the snapshot change.
func (s *Session) Save(ctx context.Context) error {
	if !s.hasSelector {
		return ErrNoSelector
	}
	key := s.selector.Peek()
	saved, err := s.store.Save(ctx, key, s.collection.Peek())
	if err != nil {
		s.logger.Error("failed to save", "selector", key, "err", err)
		return fmt.Errorf("failed to save %q: %w", key, err)
	}
	s.snapshot.Set(saved.Clone())
	s.collection.Set(saved)
	s.rebuild.Fire()
	s.logger.Info("saved", "selector", key, "records", len(saved))
	return s.flush()
}

// Dispatch delivers a widget event to the handlers bound for its slot in the current epoch.
func (s *Session) Dispatch(e binder.Event) error {
	n, err := s.binder.Dispatch(e)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrUnboundSlot, e)
	}
	return s.flush()
}

func (s *Session) editSlot(slot int, field, value string) error {
	if !s.hasSelector {
		return ErrNoSelector
	}
	if field == "" {
		return ErrEmptyField
	}
	next, err := s.collection.Peek().SetField(slot, field, value)
	if err != nil {
		return fmt.Errorf("failed to edit: %w", err)
	}
	s.collection.Set(next)
	return nil
}

func (s *Session) deleteSlot(slot int) error {
	if !s.hasSelector {
		return ErrNoSelector
	}
	next, err := s.collection.Peek().RemoveAt(slot)
	if err != nil {
		return fmt.Errorf("failed to delete: %w", err)
	}
	s.collection.Set(next)
	s.rebuild.Fire()
	s.logger.Debug("deleted", "slot", slot)
	return nil
}

// target is what bound handlers mutate.
type target struct {
	s *Session
}

func (t target) EditSlot(slot int, field, value string) error {
	return t.s.editSlot(slot, field, value)
}

func (t target) DeleteSlot(slot int) error {
	return t.s.deleteSlot(slot)
}

func (s *Session) Selector() string {
	return s.selector.Peek()
}

func (s *Session) Records() records.Collection {
	return s.collection.Peek().Clone()
}

func (s *Session) Snapshot() records.Collection {
	return s.snapshot.Peek().Clone()
}

func (s *Session) Dirty() bool {
	return s.dirty.Peek()
}

func (s *Session) View() View {
	return s.view
}

func (s *Session) Controls() Controls {
	return s.controls
}

// Rebuilds counts how many times the widget list has been composed, including the initial empty one.
func (s *Session) Rebuilds() int {
	return s.render.Runs()
}

func (s *Session) Watermark() int {
	return s.binder.Watermark()
}

func (s *Session) Epoch() int {
	return s.binder.Epoch()
}

// Bound reports how many handlers of a kind the current epoch holds for a slot.
func (s *Session) Bound(kind binder.Kind, slot int) int {
	return s.binder.Bound(kind, slot)
}

// OnView registers fn to be called after every rebuild.
func (s *Session) OnView(fn func(View)) {
	s.viewListeners = append(s.viewListeners, fn)
}

// OnControls registers fn to be called whenever save/cancel visibility changes.
func (s *Session) OnControls(fn func(Controls)) {
	s.controlsListeners = append(s.controlsListeners, fn)
}

// Close stops the session's effects.
func (s *Session) Close() {
	s.render.Stop()
	s.watchDirty.Stop()
}
