package output

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/llehouerou/boombox/internal/audioq"
)

// DefaultSlots is the number of sink buffers filled before output starts.
const DefaultSlots = 3

const defaultPollInterval = time.Millisecond

// Driver consumes the frame queue on its own goroutine and keeps the sink
// fed: it prebuffers a few slots, refills each slot as it finishes, and
// restarts from prebuffering on underrun or when the PCM format changes.
type Driver struct {
	src   Source
	sink  Sink
	slots int
	poll  time.Duration
	log   zerolog.Logger

	state  atomic.Int32
	format audioq.Format // format the sink is configured for
	queued []Slot        // submitted slots, oldest first
}

// Option configures a Driver.
type Option func(*Driver)

// WithSlots sets the prebuffer depth.
func WithSlots(n int) Option {
	return func(d *Driver) {
		if n > 0 {
			d.slots = n
		}
	}
}

// WithPollInterval sets how often a busy slot is re-checked.
func WithPollInterval(p time.Duration) Option {
	return func(d *Driver) {
		if p > 0 {
			d.poll = p
		}
	}
}

// NewDriver creates a driver reading from src and writing to sink.
func NewDriver(src Source, sink Sink, opts ...Option) *Driver {
	d := &Driver{
		src:   src,
		sink:  sink,
		slots: DefaultSlots,
		poll:  defaultPollInterval,
		log:   log.With().Str("component", "output").Logger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// State returns the current driver state. Safe from any goroutine.
func (d *Driver) State() State {
	return State(d.state.Load())
}

func (d *Driver) setState(s State) {
	if State(d.state.Swap(int32(s))) != s {
		d.log.Debug().Stringer("state", s).Msg("Output state changed")
	}
}

// Run drives the sink until the source is closed or ctx is done. When ctx
// is cancelled the source is closed so a blocked Pop returns.
func (d *Driver) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, d.src.Close)
	defer stop()
	defer d.setState(StateIdle)
	defer d.sink.Stop()

	var first *audioq.Chunk
	for {
		next, ok := d.prebuffer(first)
		if !ok {
			return ctx.Err()
		}
		first = next
		if first != nil {
			continue
		}

		d.sink.Start()
		d.setState(StatePlaying)

		first, ok = d.play(ctx)
		if !ok {
			return ctx.Err()
		}
	}
}

// prebuffer fills the sink, submitting first before anything popped. It
// returns a chunk that must start a new prebuffer pass when the format
// changed midway, and false when the source is closed.
func (d *Driver) prebuffer(first *audioq.Chunk) (*audioq.Chunk, bool) {
	d.setState(StatePrebuffering)
	d.queued = d.queued[:0]

	for len(d.queued) < d.slots {
		c := first
		first = nil
		if c == nil {
			var ok bool
			if c, ok = d.src.Pop(); !ok {
				return nil, false
			}
		}

		if c.Format != d.format {
			if len(d.queued) > 0 {
				d.reconfigure(c)
				return c, true
			}
			if !d.configure(c.Format) {
				continue
			}
		}
		d.submit(c)
	}
	return nil, true
}

// play refills slots as they finish. It returns the chunk that interrupted
// playback, to be submitted first on the next prebuffer pass.
func (d *Driver) play(ctx context.Context) (*audioq.Chunk, bool) {
	for {
		if !d.waitOldest(ctx) {
			return nil, false
		}

		c, ok := d.src.Pop()
		if !ok {
			return nil, false
		}

		if c.Format != d.format {
			d.log.Info().
				Stringer("from", d.format).
				Stringer("to", c.Format).
				Msg("Rate or channel count changed, resetting")
			d.reconfigure(c)
			return c, true
		}

		if !d.sink.Playing() {
			d.log.Warn().Msg("Audio playback stopped (buffer underrun?), restarting")
			d.sink.Stop()
			return c, true
		}

		d.submit(c)
	}
}

// waitOldest blocks until the oldest submitted slot has played.
func (d *Driver) waitOldest(ctx context.Context) bool {
	if len(d.queued) == 0 {
		return true
	}
	oldest := d.queued[0]
	if !d.sink.SlotFree(oldest) {
		tick := time.NewTicker(d.poll)
		defer tick.Stop()
		for !d.sink.SlotFree(oldest) {
			select {
			case <-ctx.Done():
				return false
			case <-tick.C:
			}
		}
	}
	d.queued = d.queued[1:]
	return true
}

func (d *Driver) reconfigure(c *audioq.Chunk) {
	d.setState(StateReconfiguring)
	d.sink.Stop()
	d.queued = d.queued[:0]
	d.configure(c.Format)
}

func (d *Driver) configure(f audioq.Format) bool {
	if err := d.sink.Configure(f.SampleRate, f.Channels); err != nil {
		d.log.Error().Err(err).Stringer("format", f).Msg("Configuring audio output failed, dropping audio")
		d.format = audioq.Format{}
		return false
	}
	d.format = f
	return true
}

func (d *Driver) submit(c *audioq.Chunk) {
	s, err := d.sink.Submit(c)
	if err != nil {
		d.log.Warn().Err(err).Int("frames", c.Frames).Msg("Submitting audio failed")
		return
	}
	d.queued = append(d.queued, s)
}
