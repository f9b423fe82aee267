package playback

import (
	"time"

	"github.com/llehouerou/boombox/internal/catalog"
	"github.com/llehouerou/boombox/internal/event"
)

type fakeTrack struct {
	name   string
	loaded bool
	err    error
	refs   int
}

func (t *fakeTrack) AddRef()                 { t.refs++ }
func (t *fakeTrack) Release()                { t.refs-- }
func (t *fakeTrack) Loaded() bool            { return t.loaded }
func (t *fakeTrack) Err() error              { return t.err }
func (t *fakeTrack) Name() string            { return t.name }
func (t *fakeTrack) Artist() string          { return "artist" }
func (t *fakeTrack) Duration() time.Duration { return time.Minute }
func (t *fakeTrack) Index() int              { return 0 }

type fakePlaylist struct {
	name   string
	tracks []*fakeTrack
	loaded bool
	refs   int
}

func newFakePlaylist(name string, n int) *fakePlaylist {
	pl := &fakePlaylist{name: name, loaded: true, refs: 1}
	for i := range n {
		pl.tracks = append(pl.tracks, &fakeTrack{name: string(rune('a' + i)), loaded: true})
	}
	return pl
}

func (p *fakePlaylist) AddRef()         { p.refs++ }
func (p *fakePlaylist) Release()        { p.refs-- }
func (p *fakePlaylist) Loaded() bool    { return p.loaded }
func (p *fakePlaylist) Name() string    { return p.name }
func (p *fakePlaylist) TrackCount() int { return len(p.tracks) }
func (p *fakePlaylist) TrackAt(i int) catalog.Track {
	if i < 0 || i >= len(p.tracks) {
		return nil
	}
	return p.tracks[i]
}

type recordingPoster struct {
	posted []event.Event
}

func (r *recordingPoster) Post(e event.Event) bool {
	r.posted = append(r.posted, e)
	return true
}

type fakeMonitor struct {
	monitored map[catalog.Playlist]bool
	offline   map[catalog.Playlist]bool
	offlineErr error
}

func newFakeMonitor() *fakeMonitor {
	return &fakeMonitor{
		monitored: make(map[catalog.Playlist]bool),
		offline:   make(map[catalog.Playlist]bool),
	}
}

func (m *fakeMonitor) MonitorPlaylist(pl catalog.Playlist, on bool) {
	m.monitored[pl] = on
}

func (m *fakeMonitor) SetOfflineMode(pl catalog.Playlist, on bool) error {
	m.offline[pl] = on
	return m.offlineErr
}
