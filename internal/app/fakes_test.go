package app

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/llehouerou/boombox/internal/catalog"
	"github.com/llehouerou/boombox/internal/library"
	"github.com/llehouerou/boombox/internal/output"
	"github.com/llehouerou/boombox/internal/session"
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
func (t *fakeTrack) Artist() string          { return "Artist" }
func (t *fakeTrack) Duration() time.Duration { return time.Minute }
func (t *fakeTrack) Index() int              { return 1 }

type fakePlaylist struct {
	name   string
	loaded bool
	tracks []*fakeTrack
	refs   int
}

func newFakePlaylist(name string, tracks ...*fakeTrack) *fakePlaylist {
	return &fakePlaylist{name: name, loaded: true, tracks: tracks}
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

// fakeSession records calls. Callbacks queued with later run on
// ProcessEvents, like a real session would.
type fakeSession struct {
	cb session.Callbacks

	inbox   *fakePlaylist
	starred *fakePlaylist
	links   map[string]*fakePlaylist

	user         string
	ignoreLogout bool
	loadErr      error // returned once by the next PlayerLoad

	mu        sync.Mutex
	work      []func()
	calls     []string
	loaded    catalog.Track
	prefetch  catalog.Track
	monitored map[catalog.Playlist]bool
	offline   map[catalog.Playlist]bool
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		inbox:     &fakePlaylist{name: "Inbox"},
		starred:   &fakePlaylist{name: "Starred"},
		links:     make(map[string]*fakePlaylist),
		monitored: make(map[catalog.Playlist]bool),
		offline:   make(map[catalog.Playlist]bool),
	}
}

func (s *fakeSession) record(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, fmt.Sprintf(format, args...))
}

func (s *fakeSession) takeCalls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.calls
	s.calls = nil
	return c
}

func (s *fakeSession) later(fn func()) {
	s.mu.Lock()
	s.work = append(s.work, fn)
	s.mu.Unlock()
	s.cb.NotifyMainThread()
}

func (s *fakeSession) Login(user, _ string) error {
	s.user = user
	s.record("login %s", user)
	s.later(func() { s.cb.LoggedIn(nil) })
	return nil
}

func (s *fakeSession) Relogin() error {
	if s.user == "" {
		return session.ErrNoCredentials
	}
	return s.Login(s.user, "")
}

func (s *fakeSession) RememberedUser() string { return s.user }

func (s *fakeSession) Logout() error {
	s.record("logout")
	if !s.ignoreLogout {
		s.later(s.cb.LoggedOut)
	}
	return nil
}

func (s *fakeSession) ProcessEvents() time.Duration {
	s.mu.Lock()
	work := s.work
	s.work = nil
	s.mu.Unlock()
	for _, fn := range work {
		fn()
	}
	return time.Second
}

func (s *fakeSession) Inbox() (catalog.Playlist, error) {
	s.inbox.AddRef()
	return s.inbox, nil
}

func (s *fakeSession) Starred() (catalog.Playlist, error) {
	s.starred.AddRef()
	return s.starred, nil
}

func (s *fakeSession) PlaylistFromLink(link string) (catalog.Playlist, error) {
	if link == "bad" {
		return nil, catalog.ErrInvalidLink
	}
	pl, ok := s.links[link]
	if !ok {
		return nil, fmt.Errorf("playlist %q: %w", link, library.ErrNotFound)
	}
	pl.AddRef()
	return pl, nil
}

func (s *fakeSession) MonitorContainer(on bool) { s.record("container %t", on) }

func (s *fakeSession) MonitorPlaylist(pl catalog.Playlist, on bool) {
	s.monitored[pl] = on
}

func (s *fakeSession) SetOfflineMode(pl catalog.Playlist, on bool) error {
	s.offline[pl] = on
	return nil
}

func (s *fakeSession) OfflineStatus(pl catalog.Playlist) catalog.OfflineStatus {
	if s.offline[pl] {
		return catalog.OfflineYes
	}
	return catalog.OfflineNo
}

func (s *fakeSession) OfflineSync() (session.OfflineSync, bool) {
	return session.OfflineSync{Remaining: 3}, false
}

func (s *fakeSession) Playlists() []session.PlaylistInfo {
	var out []session.PlaylistInfo
	for _, pl := range []*fakePlaylist{s.inbox, s.starred} {
		out = append(out, session.PlaylistInfo{
			Name:    pl.name,
			Tracks:  len(pl.tracks),
			Offline: s.OfflineStatus(pl),
		})
	}
	return out
}

func (s *fakeSession) PlayerLoad(t catalog.Track) error {
	s.record("load %s", t.Name())
	if err := s.loadErr; err != nil {
		s.loadErr = nil
		return err
	}
	s.loaded = t
	return nil
}

func (s *fakeSession) PlayerPlay(play bool) { s.record("play %t", play) }

func (s *fakeSession) PlayerPrefetch(t catalog.Track) error {
	s.record("prefetch %s", t.Name())
	s.prefetch = t
	return nil
}

func (s *fakeSession) PlayerUnload() {
	s.record("unload")
	s.loaded = nil
}

func (s *fakeSession) Close() error { return nil }

type fakeOutput struct{ state output.State }

func (o fakeOutput) State() output.State { return o.state }

var errLoad = errors.New("load failed")
