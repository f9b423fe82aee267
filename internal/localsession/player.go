package localsession

import (
	"context"
	"fmt"
	"time"

	"github.com/llehouerou/boombox/internal/audioq"
	"github.com/llehouerou/boombox/internal/catalog"
	"github.com/llehouerou/boombox/internal/tags"
)

const (
	chunkFrames = 2048
	backoff     = 10 * time.Millisecond
)

// Decoder produces interleaved 16-bit PCM.
type Decoder interface {
	PCMFormat() audioq.Format
	// ReadPCM fills buf with up to len(buf)/channels frames and returns the
	// number of frames read and false once the stream is exhausted.
	ReadPCM(buf []int16, scratch [][2]float64) (int, bool)
	Close() error
}

// Opener opens the file at path for decoding.
type Opener func(path string) (Decoder, error)

type fileDecoder struct {
	*tags.Stream
}

func (d fileDecoder) PCMFormat() audioq.Format {
	return audioq.Format{
		SampleRate: int(d.Format.SampleRate),
		Channels:   d.Format.NumChannels,
	}
}

// OpenFile decodes an MP3 or FLAC file.
func OpenFile(path string) (Decoder, error) {
	st, err := tags.Open(path)
	if err != nil {
		return nil, err
	}
	return fileDecoder{st}, nil
}

// loadedTrack is the track in the player. Decoding state survives a pause.
type loadedTrack struct {
	track  *track
	dec    Decoder
	format audioq.Format

	buf     []int16
	scratch [][2]float64
	off, n  int // delivered and decoded frames in buf
	eof     bool

	cancel context.CancelFunc
	done   chan struct{}
}

type prefetch struct {
	path string
	dec  Decoder
}

// PlayerLoad opens t for playback, replacing the loaded track.
func (s *Session) PlayerLoad(t catalog.Track) error {
	tr, ok := t.(*track)
	if !ok {
		return errForeignHandle
	}
	if err := tr.playable(); err != nil {
		return err
	}

	s.PlayerUnload()

	dec := s.takePrefetched(tr.path)
	if dec == nil {
		var err error
		if dec, err = s.open(tr.path); err != nil {
			return fmt.Errorf("%w: %w", ErrUnplayable, err)
		}
	}

	format := dec.PCMFormat()
	if format.SampleRate <= 0 || format.Channels <= 0 {
		dec.Close()
		return fmt.Errorf("%w: bad format %s", ErrUnplayable, format)
	}

	s.pmu.Lock()
	s.current = &loadedTrack{
		track:   tr,
		dec:     dec,
		format:  format,
		buf:     make([]int16, chunkFrames*format.Channels),
		scratch: make([][2]float64, chunkFrames),
	}
	s.pmu.Unlock()

	s.log.Debug().Str("path", tr.path).Stringer("format", format).Msg("Track loaded")
	return nil
}

// PlayerPlay starts or pauses delivery of the loaded track.
func (s *Session) PlayerPlay(play bool) {
	s.pmu.Lock()
	lt := s.current
	s.pmu.Unlock()
	if lt == nil {
		s.log.Debug().Bool("play", play).Msg("No track loaded")
		return
	}

	if !play {
		s.stopProducer(lt)
		return
	}
	if lt.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(s.ctx)
	lt.cancel = cancel
	lt.done = make(chan struct{})
	go s.produce(ctx, lt)
}

// PlayerUnload stops delivery and closes the loaded track.
func (s *Session) PlayerUnload() {
	s.pmu.Lock()
	lt := s.current
	s.current = nil
	s.pmu.Unlock()
	if lt == nil {
		return
	}

	s.stopProducer(lt)
	if err := lt.dec.Close(); err != nil {
		s.log.Debug().Err(err).Msg("Closing decoder failed")
	}
}

// PlayerPrefetch opens t in the background so the next PlayerLoad of it
// starts at once.
func (s *Session) PlayerPrefetch(t catalog.Track) error {
	tr, ok := t.(*track)
	if !ok {
		return errForeignHandle
	}
	if err := tr.playable(); err != nil {
		return err
	}

	s.goAsync(func() {
		dec, err := s.open(tr.path)
		if err != nil {
			s.log.Debug().Err(err).Str("path", tr.path).Msg("Prefetch failed")
			return
		}
		s.pmu.Lock()
		prev := s.prefetched
		s.prefetched = &prefetch{path: tr.path, dec: dec}
		s.pmu.Unlock()
		if prev != nil {
			prev.dec.Close()
		}
	})
	return nil
}

func (s *Session) takePrefetched(path string) Decoder {
	s.pmu.Lock()
	p := s.prefetched
	s.prefetched = nil
	s.pmu.Unlock()

	switch {
	case p == nil:
		return nil
	case p.path != path:
		p.dec.Close()
		return nil
	default:
		return p.dec
	}
}

func (s *Session) stopProducer(lt *loadedTrack) {
	if lt.cancel == nil {
		return
	}
	lt.cancel()
	<-lt.done
	lt.cancel = nil
}

// produce delivers lt's frames until the stream ends or ctx is done. A
// delivery of 0 frames means the consumer is full; the same frames are
// offered again after a pause.
func (s *Session) produce(ctx context.Context, lt *loadedTrack) {
	defer close(lt.done)

	started := false
	defer func() {
		if started && s.cb.StopPlayback != nil {
			s.cb.StopPlayback()
		}
	}()

	ch := lt.format.Channels
	for ctx.Err() == nil {
		if lt.off == lt.n {
			if lt.eof {
				s.finish(lt)
				return
			}
			if s.saturated(lt.format) {
				sleep(ctx, backoff)
				continue
			}
			n, ok := lt.dec.ReadPCM(lt.buf, lt.scratch)
			lt.off, lt.n, lt.eof = 0, n, !ok
			continue
		}

		m := s.cb.MusicDelivery(lt.format, lt.buf[lt.off*ch:lt.n*ch], lt.n-lt.off)
		if m == 0 {
			sleep(ctx, backoff)
			continue
		}
		if !started {
			started = true
			if s.cb.StartPlayback != nil {
				s.cb.StartPlayback()
			}
		}
		lt.off += m
	}
}

// saturated reports whether the consumer already holds half a second.
func (s *Session) saturated(f audioq.Format) bool {
	if s.cb.BufferStats == nil {
		return false
	}
	return s.cb.BufferStats().Frames >= f.SampleRate/2
}

// finish reports the end of lt from the main goroutine, unless another
// track was loaded meanwhile.
func (s *Session) finish(lt *loadedTrack) {
	s.log.Debug().Str("path", lt.track.path).Msg("End of track")
	s.post(func() {
		s.pmu.Lock()
		current := s.current == lt
		s.pmu.Unlock()
		if current && s.cb.EndOfTrack != nil {
			s.cb.EndOfTrack()
		}
	})
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
