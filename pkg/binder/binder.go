// Package binder keeps event handlers bound exactly once per positional slot while a widget list is rebuilt over
// and over. Handler registration is treated as irrevocable, so the binder remembers the highest slot it has ever
// bound (the watermark) and only registers handlers for slots above it.
package binder

import (
	"errors"
	"fmt"
	"log/slog"
)

var ErrNonDenseSlot = errors.New("slots must be bound densely from 1")

// Target receives the mutations made by bound handlers. Slots are 1-based and resolved against the live collection
// when the event arrives, not when the handler was bound.
type Target interface {
	EditSlot(slot int, field, value string) error
	DeleteSlot(slot int) error
}

type Binder struct {
	dispatcher *Dispatcher
	target     Target
	logger     *slog.Logger

	epoch     int
	watermark int
	cursor    int
}

func New(dispatcher *Dispatcher, target Target, logger *slog.Logger) *Binder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Binder{dispatcher: dispatcher, target: target, logger: logger}
}

// EnsureBound must be called for every slot 1..N, in order, on each rebuild pass. Slot 1 starts a new pass. Slots
// already at or below the watermark are left alone.
func (b *Binder) EnsureBound(slot int) error {
	if slot != 1 && slot != b.cursor+1 {
		err := fmt.Errorf("%w: got slot %d after slot %d", ErrNonDenseSlot, slot, b.cursor)
		b.logger.Error("binder misuse", "epoch", b.epoch, "slot", slot, "cursor", b.cursor, "err", err)
		return err
	}
	b.cursor = slot
	if slot <= b.watermark {
		return nil
	}

	b.dispatcher.On(b.epoch, KindEdit, slot, func(e Event) error {
		return b.target.EditSlot(slot, e.Field, e.Value)
	})
	b.dispatcher.On(b.epoch, KindDelete, slot, func(e Event) error {
		return b.target.DeleteSlot(slot)
	})
	b.watermark = slot
	b.logger.Debug("bound slot", "epoch", b.epoch, "slot", slot)
	return nil
}

// Reset starts a new binding epoch with a zero watermark. Handlers of earlier epochs remain registered but the
// binder no longer routes events to them.
func (b *Binder) Reset() {
	b.epoch++
	b.watermark = 0
	b.cursor = 0
}

// Dispatch delivers a widget event to the handlers of the current epoch.
func (b *Binder) Dispatch(e Event) (int, error) {
	return b.dispatcher.Dispatch(b.epoch, e)
}

func (b *Binder) Watermark() int {
	return b.watermark
}

func (b *Binder) Epoch() int {
	return b.epoch
}

// Bound reports how many handlers of the given kind the current epoch holds for a slot.
func (b *Binder) Bound(kind Kind, slot int) int {
	return b.dispatcher.Count(b.epoch, kind, slot)
}
