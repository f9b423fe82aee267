// Package playlist keeps the shuffled play order of the active playlist.
package playlist

import "math/rand/v2"

// Order maps play positions to track indices of a playlist: position p plays
// track Index(p). The permutation always covers [0, Len()).
type Order struct {
	perm []int
	pos  int
}

// NewOrder returns the identity order for n tracks.
func NewOrder(n int) *Order {
	o := &Order{}
	o.resize(n)
	return o
}

// FromPermutation returns an order over a fixed permutation, for callers
// that need a known play order instead of a shuffled one. It returns nil if
// perm is not a permutation of [0, len(perm)).
func FromPermutation(perm []int) *Order {
	if !IsPermutation(perm) {
		return nil
	}
	o := &Order{perm: make([]int, len(perm))}
	copy(o.perm, perm)
	return o
}

// Shuffle regenerates the order for n tracks: identity permutation, then a
// uniform Fisher-Yates shuffle. The position is kept when still in range and
// clamped to the last position otherwise.
func (o *Order) Shuffle(n int, r *rand.Rand) {
	o.resize(n)
	r.Shuffle(len(o.perm), func(i, j int) {
		o.perm[i], o.perm[j] = o.perm[j], o.perm[i]
	})
}

func (o *Order) resize(n int) {
	n = max(n, 0)
	if cap(o.perm) >= n {
		o.perm = o.perm[:n]
	} else {
		o.perm = make([]int, n)
	}
	for i := range o.perm {
		o.perm[i] = i
	}
	if n == 0 {
		o.pos = 0
	} else {
		o.pos = min(o.pos, n-1)
	}
}

// Len returns the number of tracks covered.
func (o *Order) Len() int {
	return len(o.perm)
}

// Position returns the current play position.
func (o *Order) Position() int {
	return o.pos
}

// Reset moves back to the first position.
func (o *Order) Reset() {
	o.pos = 0
}

// Index returns the track index at the current position, or -1 if empty.
func (o *Order) Index() int {
	if len(o.perm) == 0 {
		return -1
	}
	return o.perm[o.pos]
}

// Advance moves to the next position, wrapping at the end, and returns the
// new track index (-1 if empty).
func (o *Order) Advance() int {
	if len(o.perm) == 0 {
		return -1
	}
	o.pos = (o.pos + 1) % len(o.perm)
	return o.perm[o.pos]
}

// Peek returns the track index after the current position without moving,
// or -1 if empty.
func (o *Order) Peek() int {
	if len(o.perm) == 0 {
		return -1
	}
	return o.perm[(o.pos+1)%len(o.perm)]
}

// Permutation returns a copy of the order.
func (o *Order) Permutation() []int {
	result := make([]int, len(o.perm))
	copy(result, o.perm)
	return result
}

// IsPermutation reports whether p holds each of 0..len(p)-1 exactly once.
func IsPermutation(p []int) bool {
	seen := make([]bool, len(p))
	for _, v := range p {
		if v < 0 || v >= len(p) || seen[v] {
			return false
		}
		seen[v] = true
	}
	return true
}
