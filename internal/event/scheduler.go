package event

import (
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/llehouerou/boombox/internal/wakeup"
)

// Scheduler holds the set of pending events.
//
// Post may be called from any goroutine, including goroutines owned by the
// session. Dequeue, Drain and the wait accessors belong to the main loop.
type Scheduler struct {
	mu      sync.Mutex
	pending [eventCount]bool

	wake *wakeup.Channel
	log  zerolog.Logger
}

// NewScheduler creates a scheduler that signals wake after every post.
// wake may be nil.
func NewScheduler(wake *wakeup.Channel) *Scheduler {
	return &Scheduler{
		wake: wake,
		log:  log.With().Str("component", "event").Logger(),
	}
}

// Post marks e pending. It returns false when e was already pending, which
// is not an error: the two posts coalesce into one dispatch.
func (s *Scheduler) Post(e Event) bool {
	if !e.Valid() {
		s.log.Warn().Uint8("event", uint8(e)).Msg("Ignoring post of undefined event")
		return false
	}

	s.mu.Lock()
	if s.pending[e] {
		set := s.describeLocked()
		s.mu.Unlock()
		s.log.Debug().Stringer("event", e).Str("events", set).Msg("Re-queued event")
		return false
	}
	s.pending[e] = true
	set := s.describeLocked()
	s.mu.Unlock()

	s.log.Debug().Stringer("event", e).Str("events", set).Msg("Queued event")

	if s.wake != nil {
		s.wake.Signal()
	}
	return true
}

// Dequeue removes and returns the highest-priority pending primary event,
// or None when no primary event is pending.
func (s *Scheduler) Dequeue() Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range priority {
		if s.pending[e] {
			s.pending[e] = false
			return e
		}
	}
	return None
}

// Drain dispatches pending primary events in priority order until none is
// left. It stops as soon as DoExit is dequeued and returns true; handlers
// that already ran are not interrupted.
//
// Priority is re-evaluated before every dispatch, so an event posted by a
// handler (or another goroutine) preempts lower-priority pending events.
func (s *Scheduler) Drain(handle func(Event)) bool {
	for {
		e := s.Dequeue()
		if e == None {
			return false
		}
		s.log.Debug().Stringer("event", e).Msg("Dequeued event")
		if e == DoExit {
			return true
		}
		handle(e)
	}
}

// Pending reports whether e is pending, in either tier.
func (s *Scheduler) Pending(e Event) bool {
	if !e.Valid() {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending[e]
}

// Clear unmarks e. Used for wait conditions once satisfied.
func (s *Scheduler) Clear(e Event) {
	if !e.Valid() {
		return
	}
	s.mu.Lock()
	s.pending[e] = false
	s.mu.Unlock()
}

// AnyWaiting reports whether any wait condition is pending.
func (s *Scheduler) AnyWaiting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for e := WaitInbox; e < eventCount; e++ {
		if s.pending[e] {
			return true
		}
	}
	return false
}

// String lists pending events.
func (s *Scheduler) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.describeLocked()
}

func (s *Scheduler) describeLocked() string {
	var names []string
	for e := None + 1; e < eventCount; e++ {
		if s.pending[e] {
			names = append(names, e.String())
		}
	}
	return "{" + strings.Join(names, ",") + "}"
}
