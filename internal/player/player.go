// Package player implements the streaming callbacks of the session: it sinks
// delivered PCM into the frame queue and turns playback notifications into
// scheduler events.
package player

import (
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/llehouerou/boombox/internal/audioq"
	"github.com/llehouerou/boombox/internal/catalog"
	"github.com/llehouerou/boombox/internal/event"
)

// Poster queues scheduler events.
type Poster interface {
	Post(e event.Event) bool
}

// TrackSource reports the current track. It is read from foreign
// goroutines.
type TrackSource interface {
	CurrentTrack() catalog.Track
}

// Unloader unloads the track from the session's player.
type Unloader interface {
	PlayerUnload()
}

// Stats counts frames delivered for the current track.
type Stats struct {
	FramesSunk     int64
	FramesExpected int64 // 0 until the first delivery of a track
}

// Progress returns the delivered fraction of the track, or 0 when unknown.
func (s Stats) Progress() float64 {
	if s.FramesExpected <= 0 {
		return 0
	}
	return float64(s.FramesSunk) / float64(s.FramesExpected)
}

// Player receives the session's streaming callbacks.
//
// DeliverFrames, BufferStats, StartPlayback, StopPlayback and PlayTokenLost
// may run on goroutines owned by the session; they never block beyond the
// queue's critical section.
type Player struct {
	queue    *audioq.Queue
	events   Poster
	tracks   TrackSource
	unloader atomic.Pointer[unloaderBox]
	log      zerolog.Logger

	framesSunk     atomic.Int64
	framesExpected atomic.Int64
}

type unloaderBox struct{ u Unloader }

// New creates a player feeding queue.
func New(queue *audioq.Queue, events Poster, tracks TrackSource) *Player {
	return &Player{
		queue:  queue,
		events: events,
		tracks: tracks,
		log:    log.With().Str("component", "player").Logger(),
	}
}

// Bind sets the session used to unload finished tracks. The session is
// created with the player's callbacks, so it is bound afterwards.
func (p *Player) Bind(u Unloader) {
	p.unloader.Store(&unloaderBox{u: u})
}

// DeliverFrames copies frames into a new chunk and queues it. It returns
// the number of frames accepted; 0 asks the producer to retry later.
func (p *Player) DeliverFrames(format audioq.Format, samples []int16, frames int) int {
	if frames == 0 {
		// discontinuity
		return 0
	}
	if frames < 0 || format.Channels <= 0 || len(samples) < frames*format.Channels {
		p.log.Warn().Int("frames", frames).Int("samples", len(samples)).Msg("Malformed audio delivery")
		return 0
	}

	n := p.queue.Push(audioq.NewChunk(format, samples, frames))
	if n > 0 {
		p.updateStats(n, format.SampleRate)
	}
	return n
}

func (p *Player) updateStats(frames, sampleRate int) {
	if p.framesExpected.Load() == 0 {
		if t := p.tracks.CurrentTrack(); t != nil {
			secs := int64(t.Duration() / time.Second)
			p.framesExpected.CompareAndSwap(0, int64(sampleRate)*secs)
		}
	}
	p.framesSunk.Add(int64(frames))
}

// BufferStats reports queue occupancy so the producer can pace itself.
func (p *Player) BufferStats() audioq.Stats {
	s := p.queue.Stats()
	s.Stutter = 0
	return s
}

// StartPlayback requests a prefetch of the following track.
func (p *Player) StartPlayback() {
	p.log.Info().Msg("Playback started")
	p.events.Post(event.DoPrefetch)
}

// StopPlayback is informational.
func (p *Player) StopPlayback() {
	p.log.Info().Msg("Playback ended")
}

// EndOfTrack unloads the finished track and advances to the next one.
func (p *Player) EndOfTrack() {
	p.ResetStats()

	if t := p.tracks.CurrentTrack(); t != nil {
		p.log.Info().Msgf("Finished playing track: %02d. %s - %s", t.Index(), t.Artist(), t.Name())
		p.queue.Flush()
		if b := p.unloader.Load(); b != nil {
			b.u.PlayerUnload()
		}
	}

	p.events.Post(event.DoNextTrack)
}

// PlayTokenLost discards buffered audio after playback moved elsewhere.
func (p *Player) PlayTokenLost() {
	p.log.Warn().Msg("Playback stopped because the account is used elsewhere")
	p.queue.Flush()
}

// ResetStats zeroes the frame counters.
func (p *Player) ResetStats() {
	p.framesSunk.Store(0)
	p.framesExpected.Store(0)
	p.log.Debug().Msg("Statistics reset")
}

// Stats returns the frame counters.
func (p *Player) Stats() Stats {
	return Stats{
		FramesSunk:     p.framesSunk.Load(),
		FramesExpected: p.framesExpected.Load(),
	}
}
