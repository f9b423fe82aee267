package catalog

// Ref owns one reference to a handle and releases it exactly once.
//
// The zero value and a nil *Ref are empty references.
type Ref[T Handle] struct {
	h     T
	valid bool
}

// Own takes over a reference the caller already holds.
func Own[T Handle](h T) *Ref[T] {
	return &Ref[T]{h: h, valid: true}
}

// Share adds a reference to a borrowed handle and owns it.
func Share[T Handle](h T) *Ref[T] {
	h.AddRef()
	return &Ref[T]{h: h, valid: true}
}

// Get returns the handle, or the zero T for an empty or released reference.
func (r *Ref[T]) Get() T {
	if r == nil || !r.valid {
		var zero T
		return zero
	}
	return r.h
}

// Valid reports whether r still holds a reference.
func (r *Ref[T]) Valid() bool {
	return r != nil && r.valid
}

// Release drops the reference. Further calls are no-ops.
func (r *Ref[T]) Release() {
	if r == nil || !r.valid {
		return
	}
	r.valid = false
	r.h.Release()
	var zero T
	r.h = zero
}
