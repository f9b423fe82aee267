package output

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"

	"github.com/llehouerou/boombox/internal/audioq"
)

// ErrUnsupportedFormat is returned by Configure for layouts the speaker
// cannot play.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

var (
	speakerOnce sync.Once
	speakerErr  error
)

// initSpeaker opens the audio device. The speaker can only be initialised
// once per process, so every BeepSink shares it at the device rate.
func initSpeaker(rate beep.SampleRate, buffer time.Duration) error {
	speakerOnce.Do(func() {
		speakerErr = speaker.Init(rate, rate.N(buffer))
	})
	return speakerErr
}

// BeepConfig holds the speaker settings.
type BeepConfig struct {
	DeviceRate      int
	Buffer          time.Duration
	ResampleQuality int
}

// BeepSink plays slots through the beep speaker. Sources at another rate
// than the device are resampled.
type BeepSink struct {
	cfg BeepConfig

	mu      sync.Mutex // guards the fields below; Stream runs on the speaker goroutine
	format  audioq.Format
	slots   []*slot
	offset  int // frames of slots[0] already played
	last    Slot
	played  Slot
	playing bool
}

type slot struct {
	id    Slot
	chunk *audioq.Chunk
}

// NewBeepSink creates a sink. The device is opened on the first Configure.
func NewBeepSink(cfg BeepConfig) *BeepSink {
	if cfg.DeviceRate <= 0 {
		cfg.DeviceRate = 44100
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 100 * time.Millisecond
	}
	if cfg.ResampleQuality < 1 || cfg.ResampleQuality > 64 {
		cfg.ResampleQuality = 4
	}
	return &BeepSink{cfg: cfg}
}

// Configure implements Sink.
func (s *BeepSink) Configure(rate, channels int) error {
	if rate <= 0 || channels < 1 || channels > 2 {
		return fmt.Errorf("%w: %dHz/%dch", ErrUnsupportedFormat, rate, channels)
	}
	if err := initSpeaker(beep.SampleRate(s.cfg.DeviceRate), s.cfg.Buffer); err != nil {
		return fmt.Errorf("initializing speaker: %w", err)
	}

	s.mu.Lock()
	s.format = audioq.Format{SampleRate: rate, Channels: channels}
	s.mu.Unlock()
	return nil
}

// Submit implements Sink.
func (s *BeepSink) Submit(c *audioq.Chunk) (Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.Format != s.format {
		return 0, fmt.Errorf("%w: chunk is %s, sink is %s", ErrUnsupportedFormat, c.Format, s.format)
	}
	s.last++
	s.slots = append(s.slots, &slot{id: s.last, chunk: c})
	return s.last, nil
}

// SlotFree implements Sink.
func (s *BeepSink) SlotFree(id Slot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return id <= s.played
}

// Start implements Sink.
func (s *BeepSink) Start() {
	s.mu.Lock()
	if s.playing {
		s.mu.Unlock()
		return
	}
	s.playing = true
	rate := beep.SampleRate(s.format.SampleRate)
	s.mu.Unlock()

	var st beep.Streamer = streamer{s}
	device := beep.SampleRate(s.cfg.DeviceRate)
	if rate != device {
		st = beep.Resample(s.cfg.ResampleQuality, rate, device, st)
	}
	speaker.Play(st)
}

// Stop implements Sink.
func (s *BeepSink) Stop() {
	speaker.Clear()

	s.mu.Lock()
	s.discard()
	s.playing = false
	s.mu.Unlock()
}

// Playing implements Sink.
func (s *BeepSink) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// Close releases the audio device.
func (s *BeepSink) Close() {
	s.Stop()
	speaker.Close()
}

func (s *BeepSink) discard() {
	s.slots = nil
	s.offset = 0
	s.played = s.last
}

// fill converts queued slots into stereo float samples. It returns the
// number of frames written; 0 means the sink ran dry.
func (s *BeepSink) fill(out [][2]float64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for n < len(out) && len(s.slots) > 0 {
		head := s.slots[0]
		c := head.chunk
		for s.offset < c.Frames && n < len(out) {
			i := s.offset * c.Channels
			l := float64(c.Samples[i]) / 32768
			r := l
			if c.Channels == 2 {
				r = float64(c.Samples[i+1]) / 32768
			}
			out[n] = [2]float64{l, r}
			s.offset++
			n++
		}
		if s.offset == c.Frames {
			s.played = head.id
			s.slots[0] = nil
			s.slots = s.slots[1:]
			s.offset = 0
		}
	}
	if n == 0 {
		s.playing = false
	}
	return n
}

// streamer adapts the sink to beep. It ends when the slots run out, which
// the driver observes as an underrun.
type streamer struct{ s *BeepSink }

func (st streamer) Stream(samples [][2]float64) (int, bool) {
	n := st.s.fill(samples)
	return n, n > 0
}

func (st streamer) Err() error { return nil }
