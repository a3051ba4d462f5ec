package pagable

// Setter updates a state created by UseState. Changes are visible from the
// next render on.
type Setter[T any] struct {
	c   *Component
	key string
}

// Set stores v for the next render.
func (s Setter[T]) Set(v T) {
	s.c.UpdateState(s.key, v)
}

// Update stores fn applied to the latest value: a pending update when there
// is one, else the current state.
func (s Setter[T]) Update(fn func(T) T) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	var cur T
	if v, ok := s.c.next[s.key].(T); ok {
		cur = v
	} else if v, ok := s.c.states[s.key].(T); ok {
		cur = v
	}
	s.c.next[s.key] = fn(cur)
}

// UseState returns the value stored under name and a setter for it. The
// first call stores initial. A stored value of another type is replaced by
// initial.
//
//	count, setCount := pagable.UseState(c, "count", 0)
//	setCount.Update(func(n int) int { return n + 1 })
func UseState[T any](c *Component, name string, initial T) (T, Setter[T]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.states[name].(T)
	if !ok {
		c.states[name] = initial
		v = initial
	}
	return v, Setter[T]{c: c, key: name}
}
