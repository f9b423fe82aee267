// Package wakeup provides a cross-goroutine signal telling the main loop it
// must re-check scheduler and session state.
package wakeup

// Channel coalesces any number of Signal calls made before the receiver
// wakes into a single wake. A signal sent after the receiver has woken is
// never lost: it stays buffered until the next receive.
type Channel struct {
	c chan struct{}
}

// New creates a wakeup channel.
func New() *Channel {
	return &Channel{c: make(chan struct{}, 1)}
}

// Signal requests a wake. Never blocks; safe from any goroutine.
func (w *Channel) Signal() {
	select {
	case w.c <- struct{}{}:
	default:
		// A wake is already pending
	}
}

// C returns the channel to select on.
func (w *Channel) C() <-chan struct{} {
	return w.c
}

// Pending reports whether a wake is buffered, consuming it.
func (w *Channel) Pending() bool {
	select {
	case <-w.c:
		return true
	default:
		return false
	}
}
