package binder

import (
	"fmt"
)

type Kind string

const (
	KindEdit   Kind = "edit"
	KindDelete Kind = "delete"
)

// Event is a widget interaction tagged with the slot the widget was rendered for.
type Event struct {
	Kind  Kind
	Slot  int
	Field string
	Value string
}

func (e Event) String() string {
	if e.Kind == KindEdit {
		return fmt.Sprintf("%s[%d] %s=%q", e.Kind, e.Slot, e.Field, e.Value)
	}
	return fmt.Sprintf("%s[%d]", e.Kind, e.Slot)
}

type Handler func(Event) error

type key struct {
	epoch int
	kind  Kind
	slot  int
}

// Dispatcher is an append-only handler registry. Once a handler is registered it stays live for the lifetime of
// the dispatcher; there is deliberately no Off.
type Dispatcher struct {
	handlers map[key][]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[key][]Handler)}
}

func (d *Dispatcher) On(epoch int, kind Kind, slot int, h Handler) {
	k := key{epoch: epoch, kind: kind, slot: slot}
	d.handlers[k] = append(d.handlers[k], h)
}

// Dispatch runs every handler registered for the event in the given epoch and returns how many ran. Handlers run in
// registration order; the first error stops the rest.
func (d *Dispatcher) Dispatch(epoch int, e Event) (int, error) {
	hs := d.handlers[key{epoch: epoch, kind: e.Kind, slot: e.Slot}]
	for i, h := range hs {
		if err := h(e); err != nil {
			return i + 1, fmt.Errorf("failed to handle %s: %w", e, err)
		}
	}
	return len(hs), nil
}

// Count is the number of handlers registered for one key.
func (d *Dispatcher) Count(epoch int, kind Kind, slot int) int {
	return len(d.handlers[key{epoch: epoch, kind: kind, slot: slot}])
}

// Total is the number of handlers registered across all epochs.
func (d *Dispatcher) Total() int {
	n := 0
	for _, hs := range d.handlers {
		n += len(hs)
	}
	return n
}
