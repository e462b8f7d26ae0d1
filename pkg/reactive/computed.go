package reactive

// tracker records the dependency set of one evaluation and drops the previous one.
type tracker struct {
	deps map[dependency]struct{}
}

func (t *tracker) track(d dependency) {
	if t.deps == nil {
		t.deps = make(map[dependency]struct{})
	}
	t.deps[d] = struct{}{}
}

func (t *tracker) release(self subscriber) {
	for d := range t.deps {
		d.unsubscribe(self)
	}
	t.deps = nil
}

// Computed is a lazily evaluated derived value. It re-evaluates on the first Get after any of the cells, triggers or
// computations it read during its previous evaluation changed.
type Computed[T any] struct {
	rt    *Runtime
	fn    func() T
	src   source
	deps  tracker
	valid bool
	v     T
	evals int
}

func NewComputed[T any](rt *Runtime, fn func() T) *Computed[T] {
	return &Computed[T]{rt: rt, fn: fn}
}

// Get returns the cached value, evaluating first if needed, and subscribes the evaluating computation, if any.
func (c *Computed[T]) Get() T {
	c.rt.read(c, &c.src)
	if !c.valid {
		c.evaluate()
	}
	return c.v
}

// Peek is Get without subscribing. It still evaluates when invalid.
func (c *Computed[T]) Peek() T {
	return Isolate(c.rt, c.Get)
}

// Valid reports whether the cached value is current.
func (c *Computed[T]) Valid() bool {
	return c.valid
}

// Evaluations is the number of times fn has run.
func (c *Computed[T]) Evaluations() int {
	return c.evals
}

func (c *Computed[T]) evaluate() {
	c.deps.release(c)
	c.rt.with(c, func() {
		c.v = c.fn()
	})
	c.evals++
	c.valid = true
}

func (c *Computed[T]) invalidate() {
	if !c.valid {
		return
	}
	c.valid = false
	c.src.notify()
}

func (c *Computed[T]) track(d dependency) {
	c.deps.track(d)
}

func (c *Computed[T]) unsubscribe(s subscriber) {
	c.src.unsubscribe(s)
}

// Effect runs fn once on creation and again on every Runtime.Flush that follows an invalidation of anything fn read.
// Invalidation only queues the effect; it never runs inside the write that caused it.
type Effect struct {
	rt      *Runtime
	seq     int
	fn      func()
	deps    tracker
	queued  bool
	stopped bool
	runs    int
}

func NewEffect(rt *Runtime, fn func()) *Effect {
	rt.effects++
	e := &Effect{rt: rt, fn: fn, seq: rt.effects}
	e.run()
	return e
}

func (e *Effect) run() {
	e.queued = false
	if e.stopped {
		return
	}
	e.deps.release(e)
	e.rt.with(e, e.fn)
	e.runs++
}

func (e *Effect) invalidate() {
	if e.queued || e.stopped {
		return
	}
	e.queued = true
	e.rt.schedule(e)
}

func (e *Effect) track(d dependency) {
	e.deps.track(d)
}

// Runs is the number of times the effect has executed.
func (e *Effect) Runs() int {
	return e.runs
}

// Stop drops every subscription. A stopped effect never runs again.
func (e *Effect) Stop() {
	e.stopped = true
	e.deps.release(e)
}
