package reactive

// Cell is a mutable value. Tracked reads subscribe the reading computation; writes invalidate all subscribers.
type Cell[T any] struct {
	rt  *Runtime
	src source
	v   T
}

func NewCell[T any](rt *Runtime, initial T) *Cell[T] {
	return &Cell[T]{rt: rt, v: initial}
}

// Get returns the current value and subscribes the computation that is evaluating, if any.
func (c *Cell[T]) Get() T {
	c.rt.read(c, &c.src)
	return c.v
}

// Peek returns the current value without subscribing anything.
func (c *Cell[T]) Peek() T {
	return c.v
}

// Set replaces the value and invalidates every subscriber. Values are not compared: every Set is a change.
func (c *Cell[T]) Set(v T) {
	c.v = v
	c.src.notify()
}

// Update is Set(fn(Peek())).
func (c *Cell[T]) Update(fn func(T) T) {
	c.Set(fn(c.v))
}

func (c *Cell[T]) unsubscribe(s subscriber) {
	c.src.unsubscribe(s)
}

// Subscribers is the number of computations currently depending on the cell.
func (c *Cell[T]) Subscribers() int {
	return len(c.src.subs)
}

// Trigger is a payload-less invalidation signal. Dependents only learn that it fired since they last ran, not how
// many times.
type Trigger struct {
	version *Cell[uint64]
}

func NewTrigger(rt *Runtime) *Trigger {
	return &Trigger{version: NewCell[uint64](rt, 0)}
}

// Depend subscribes the evaluating computation to the trigger.
func (t *Trigger) Depend() {
	_ = t.version.Get()
}

// Fire invalidates everything that called Depend since its last evaluation.
func (t *Trigger) Fire() {
	t.version.Update(func(v uint64) uint64 { return v + 1 })
}
