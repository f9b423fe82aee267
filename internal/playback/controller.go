// Package playback owns the active playlist, the shuffled play order and the
// current track, and advances playback through them.
package playback

import (
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/llehouerou/boombox/internal/catalog"
	"github.com/llehouerou/boombox/internal/event"
	"github.com/llehouerou/boombox/internal/playlist"
)

// Poster queues scheduler events.
type Poster interface {
	Post(e event.Event) bool
}

// Monitor is the part of the session the controller needs while switching
// playlists.
type Monitor interface {
	MonitorPlaylist(pl catalog.Playlist, on bool)
	SetOfflineMode(pl catalog.Playlist, on bool) error
}

type trackBox struct{ t catalog.Track }

type playlistBox struct{ pl catalog.Playlist }

// Controller is the playback state of the application.
//
// All mutating methods must be called from the main goroutine.
// CurrentTrack and ActivePlaylist may be read from any goroutine.
type Controller struct {
	events  Poster
	monitor Monitor
	rng     *rand.Rand
	log     zerolog.Logger

	reserved []catalog.Playlist

	active   *catalog.Ref[catalog.Playlist]
	order    *playlist.Order
	track    *catalog.Ref[catalog.Track]
	selected bool // a track was picked from the active playlist

	currentTrack   atomic.Pointer[trackBox]
	activePlaylist atomic.Pointer[playlistBox]
}

// Option configures a Controller.
type Option func(*Controller)

// WithRand replaces the time-seeded shuffle source.
func WithRand(r *rand.Rand) Option {
	return func(c *Controller) { c.rng = r }
}

// NewController creates a controller with no active playlist.
func NewController(events Poster, monitor Monitor, opts ...Option) *Controller {
	seed := uint64(time.Now().UnixNano()) //nolint:gosec // shuffle seed, sign is irrelevant
	c := &Controller{
		events:  events,
		monitor: monitor,
		rng:     rand.New(rand.NewPCG(seed, seed>>32)), //nolint:gosec // listening variety only
		log:     log.With().Str("component", "playback").Logger(),
		order:   playlist.NewOrder(0),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetReserved declares the playlists whose monitoring is tied to login and
// logout rather than to activation. Passing nothing clears them.
func (c *Controller) SetReserved(pls ...catalog.Playlist) {
	c.reserved = c.reserved[:0]
	for _, pl := range pls {
		if pl != nil {
			c.reserved = append(c.reserved, pl)
		}
	}
}

// IsReserved reports whether pl is the Inbox or Starred playlist.
func (c *Controller) IsReserved(pl catalog.Playlist) bool {
	if pl == nil {
		return false
	}
	for _, r := range c.reserved {
		if r == pl {
			return true
		}
	}
	return false
}

// SetActivePlaylist makes ref the playlist tracks are picked from, taking
// ownership of the reference. The previous playlist is released. A nil or
// empty ref clears the active playlist.
func (c *Controller) SetActivePlaylist(ref *catalog.Ref[catalog.Playlist]) {
	if prev := c.active.Get(); prev != nil {
		if !c.IsReserved(prev) {
			c.monitor.MonitorPlaylist(prev, false)
		}
		c.active.Release()
	}
	c.active = nil
	c.activePlaylist.Store(nil)
	c.selected = false
	c.order = playlist.NewOrder(0)

	pl := ref.Get()
	if pl == nil {
		return
	}

	if !c.IsReserved(pl) {
		c.monitor.MonitorPlaylist(pl, true)
		if err := c.monitor.SetOfflineMode(pl, true); err != nil {
			c.log.Debug().Err(err).Msg("Marking active playlist for offline failed")
		}
	}

	c.active = ref
	c.activePlaylist.Store(&playlistBox{pl: pl})
	c.order.Reset()
	c.RegenerateShuffleOrder()

	name := pl.Name()
	if c.IsReserved(pl) {
		name = "internal (inbox or starred)"
	}
	c.log.Info().
		Str("playlist", name).
		Int("tracks", pl.TrackCount()).
		Bool("loaded", pl.Loaded()).
		Msg("Selected playlist")
}

// RegenerateShuffleOrder rebuilds the play order for the active playlist's
// current track count. Called on activation and whenever tracks are added
// to or removed from the active playlist.
func (c *Controller) RegenerateShuffleOrder() {
	pl := c.active.Get()
	if pl == nil {
		c.order = playlist.NewOrder(0)
		return
	}
	c.order.Shuffle(pl.TrackCount(), c.rng)
}

// TracksChanged handles a structural change notification for pl.
func (c *Controller) TracksChanged(pl catalog.Playlist) {
	if pl == nil || pl != c.active.Get() {
		return
	}
	c.log.Debug().Str("playlist", pl.Name()).Int("tracks", pl.TrackCount()).Msg("Active playlist changed, reshuffling")
	c.RegenerateShuffleOrder()
}

// NextTrack selects the next track in shuffle order, makes it current and
// posts WaitPlay and DoMetadata so playback starts once it is loaded.
//
// The first call after activation selects shuffle position 0; later calls
// advance by one, wrapping around. It returns nil, posting nothing, when
// there is no active playlist or it has no tracks.
func (c *Controller) NextTrack() catalog.Track {
	pl := c.active.Get()
	if pl == nil {
		c.log.Warn().Msg("Attempted 'next track' without an active playlist")
		return nil
	}

	n := pl.TrackCount()
	if n == 0 {
		state := "not yet loaded"
		if pl.Loaded() {
			state = "loaded"
		}
		c.log.Warn().Msgf("Attempted 'next track' on %s playlist with zero tracks", state)
		return nil
	}

	if c.order.Len() != n {
		c.order.Shuffle(n, c.rng)
	}

	idx := c.order.Index()
	if c.selected && c.track.Valid() {
		idx = c.order.Advance()
	}

	t := pl.TrackAt(idx)
	if t == nil {
		c.log.Warn().Int("index", idx).Msg("Playlist returned no track")
		return nil
	}
	c.setTrack(catalog.Share(t))
	c.selected = true

	c.log.Info().Msgf("Selected next track %d/%d (playlist pos: %d) in playlist: %s",
		c.order.Position()+1, n, idx+1, t.Name())

	c.events.Post(event.WaitPlay)
	c.events.Post(event.DoMetadata)

	return t
}

// PeekNext returns the track after the current shuffle position, borrowed
// from the active playlist, or nil.
func (c *Controller) PeekNext() catalog.Track {
	pl := c.active.Get()
	if pl == nil || pl.TrackCount() == 0 || c.order.Len() != pl.TrackCount() {
		return nil
	}
	return pl.TrackAt(c.order.Peek())
}

// SetTrack makes the borrowed track t current, taking a reference to it.
// A nil t clears the current track.
func (c *Controller) SetTrack(t catalog.Track) {
	if t == nil {
		c.ClearTrack()
		return
	}
	c.setTrack(catalog.Share(t))
	c.selected = true
}

// ClearTrack drops the current track.
func (c *Controller) ClearTrack() {
	c.setTrack(nil)
	c.selected = false
}

func (c *Controller) setTrack(ref *catalog.Ref[catalog.Track]) {
	c.track.Release()
	c.track = ref
	if t := ref.Get(); t != nil {
		c.currentTrack.Store(&trackBox{t: t})
	} else {
		c.currentTrack.Store(nil)
	}
}

// CurrentTrack returns the selected track, or nil. Safe from any goroutine.
func (c *Controller) CurrentTrack() catalog.Track {
	if b := c.currentTrack.Load(); b != nil {
		return b.t
	}
	return nil
}

// ActivePlaylist returns the active playlist, or nil. Safe from any
// goroutine.
func (c *Controller) ActivePlaylist() catalog.Playlist {
	if b := c.activePlaylist.Load(); b != nil {
		return b.pl
	}
	return nil
}

// Order returns a copy of the shuffle permutation and the current position.
func (c *Controller) Order() (perm []int, position int) {
	return c.order.Permutation(), c.order.Position()
}

// Release drops every reference held by the controller.
func (c *Controller) Release() {
	c.ClearTrack()
	c.SetActivePlaylist(nil)
}
