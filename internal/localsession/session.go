// Package localsession implements the session contract on top of the local
// music library: playlists and tracks come from the library database and
// audio is decoded from the files on disk.
package localsession

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/llehouerou/boombox/internal/catalog"
	"github.com/llehouerou/boombox/internal/library"
	"github.com/llehouerou/boombox/internal/session"
)

const idleWake = time.Second

var (
	// ErrNotLoaded is returned when a track's metadata is not available yet.
	ErrNotLoaded = errors.New("track not loaded")
	// ErrUnplayable is returned for tracks whose file is missing or cannot
	// be decoded.
	ErrUnplayable = errors.New("track is not playable")
)

// Session serves the library as a streaming session. Work that must run on
// the main goroutine is queued and executed by ProcessEvents.
type Session struct {
	lib  *library.Library
	cb   session.Callbacks
	open Opener
	log  zerolog.Logger

	watchSources []string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	work      []func()
	user      string
	loggedIn  bool
	container bool
	playlists map[int64]*playlist
	tracks    map[int64]*track
	watcher   *watcher

	pmu        sync.Mutex
	current    *loadedTrack
	prefetched *prefetch
}

// Option configures a Session.
type Option func(*Session)

// WithUser sets the user remembered for Relogin.
func WithUser(user string) Option {
	return func(s *Session) { s.user = user }
}

// WithWatch watches sources for new and removed music files while logged
// in. New files are imported into the Inbox.
func WithWatch(sources []string) Option {
	return func(s *Session) { s.watchSources = sources }
}

// WithOpener replaces the file decoder.
func WithOpener(open Opener) Option {
	return func(s *Session) { s.open = open }
}

// New creates a session over lib reporting to cb.
func New(lib *library.Library, cb session.Callbacks, opts ...Option) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		lib:       lib,
		cb:        cb,
		open:      OpenFile,
		log:       log.With().Str("component", "session").Logger(),
		ctx:       ctx,
		cancel:    cancel,
		playlists: make(map[int64]*playlist),
		tracks:    make(map[int64]*track),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// post queues fn for the main goroutine and asks for ProcessEvents.
func (s *Session) post(fn func()) {
	s.mu.Lock()
	s.work = append(s.work, fn)
	s.mu.Unlock()

	if s.cb.NotifyMainThread != nil {
		s.cb.NotifyMainThread()
	}
}

// goAsync runs fn on a goroutine that Close waits for.
func (s *Session) goAsync(fn func()) {
	s.wg.Go(fn)
}

// ProcessEvents runs the work queued so far. It returns 0 when more work
// arrived meanwhile.
func (s *Session) ProcessEvents() time.Duration {
	s.mu.Lock()
	work := s.work
	s.work = nil
	s.mu.Unlock()

	for _, fn := range work {
		fn()
	}

	s.mu.Lock()
	more := len(s.work) > 0
	s.mu.Unlock()
	if more {
		return 0
	}
	return idleWake
}

// Login logs user in. The password is not used by the local library.
func (s *Session) Login(user, _ string) error {
	if user == "" {
		return errors.New("empty user name")
	}
	s.mu.Lock()
	if s.loggedIn {
		s.mu.Unlock()
		return errors.New("already logged in")
	}
	s.user = user
	s.mu.Unlock()

	s.log.Info().Str("user", user).Msg("Logging in")

	if len(s.watchSources) > 0 {
		if err := s.startWatcher(); err != nil {
			s.log.Warn().Err(err).Msg("Watching library sources failed")
		}
	}

	s.post(func() {
		s.mu.Lock()
		s.loggedIn = true
		s.mu.Unlock()
		if s.cb.ConnectionState != nil {
			s.cb.ConnectionState(session.ConnectionLoggedIn)
		}
		if s.cb.LoggedIn != nil {
			s.cb.LoggedIn(nil)
		}
	})
	return nil
}

// Relogin logs the remembered user in.
func (s *Session) Relogin() error {
	user := s.RememberedUser()
	if user == "" {
		return session.ErrNoCredentials
	}
	return s.Login(user, "")
}

// RememberedUser returns the last user that logged in.
func (s *Session) RememberedUser() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// Logout stops playback and the watcher and reports LoggedOut from the
// main goroutine.
func (s *Session) Logout() error {
	s.log.Info().Msg("Logging out")

	s.PlayerUnload()
	s.stopWatcher()

	s.post(func() {
		s.mu.Lock()
		s.loggedIn = false
		s.mu.Unlock()
		if s.cb.ConnectionState != nil {
			s.cb.ConnectionState(session.ConnectionLoggedOut)
		}
		if s.cb.LoggedOut != nil {
			s.cb.LoggedOut()
		}
	})
	return nil
}

// Close stops every goroutine of the session. The library stays open.
func (s *Session) Close() error {
	s.PlayerUnload()
	s.stopWatcher()
	s.cancel()
	s.wg.Wait()

	s.pmu.Lock()
	if s.prefetched != nil {
		s.prefetched.dec.Close()
		s.prefetched = nil
	}
	s.pmu.Unlock()
	return nil
}

// Inbox returns a new reference to the Inbox playlist.
func (s *Session) Inbox() (catalog.Playlist, error) {
	return s.reserved(library.KindInbox)
}

// Starred returns a new reference to the Starred playlist.
func (s *Session) Starred() (catalog.Playlist, error) {
	return s.reserved(library.KindStarred)
}

func (s *Session) reserved(kind library.Kind) (catalog.Playlist, error) {
	p, err := s.lib.Reserved(kind)
	if err != nil {
		return nil, fmt.Errorf("%s playlist: %w", kind, err)
	}
	return s.playlistHandle(*p), nil
}

// PlaylistFromLink returns a new reference to the playlist link names.
func (s *Session) PlaylistFromLink(link string) (catalog.Playlist, error) {
	kind, name, err := parseLink(link)
	if err != nil {
		return nil, err
	}
	if kind != library.KindUser {
		return s.reserved(kind)
	}
	p, err := s.lib.PlaylistByName(name)
	if err != nil {
		return nil, fmt.Errorf("playlist %q: %w", name, err)
	}
	return s.playlistHandle(*p), nil
}

// playlistHandle returns a referenced handle for p, loading it on first use.
func (s *Session) playlistHandle(p library.Playlist) *playlist {
	s.mu.Lock()
	h, ok := s.playlists[p.ID]
	if !ok {
		h = &playlist{id: p.ID, kind: p.Kind, name: p.Name}
		s.playlists[p.ID] = h
	}
	s.mu.Unlock()

	h.AddRef()
	if !ok {
		s.reload(h)
	}
	return h
}

// reload reads the tracks of p from the library and installs them on the
// main goroutine. Only the latest of overlapping reloads is applied.
func (s *Session) reload(p *playlist) {
	p.mu.Lock()
	p.gen++
	gen := p.gen
	p.mu.Unlock()

	s.goAsync(func() {
		rows, err := s.lib.PlaylistTracks(p.id)
		if err != nil {
			s.log.Error().Err(err).Int64("playlist", p.id).Msg("Loading playlist failed")
			return
		}
		s.post(func() {
			p.mu.Lock()
			stale := p.gen != gen
			p.mu.Unlock()
			if stale {
				return
			}

			p.replace(s.trackHandles(rows))
			s.log.Debug().Str("playlist", p.Name()).Int("tracks", len(rows)).Msg("Playlist loaded")

			if p.isMonitored() && s.cb.TracksChanged != nil {
				s.cb.TracksChanged(p)
			}
			if s.cb.MetadataUpdated != nil {
				s.cb.MetadataUpdated()
			}
		})
	})
}

// reloadByID reloads the cached handle of a playlist, if any.
func (s *Session) reloadByID(id int64) {
	s.mu.Lock()
	p := s.playlists[id]
	s.mu.Unlock()
	if p != nil {
		s.reload(p)
	}
}

// trackHandles returns one referenced handle per row, reusing known ones.
func (s *Session) trackHandles(rows []library.Track) []*track {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*track, 0, len(rows))
	for _, r := range rows {
		t, ok := s.tracks[r.ID]
		if !ok {
			t = newTrack(r, s.loadTrack)
			s.tracks[r.ID] = t
		}
		t.AddRef()
		out = append(out, t)
	}
	return out
}

// loadTrack reads t's file in the background and reports MetadataUpdated.
func (s *Session) loadTrack(t *track) {
	s.goAsync(func() {
		info := readTrack(t.path)
		s.post(func() {
			t.apply(info)
			if info.err != nil {
				s.log.Debug().Err(info.err).Str("path", t.path).Msg("Track is not playable")
			}
			if s.cb.MetadataUpdated != nil {
				s.cb.MetadataUpdated()
			}
		})
	})
}

func (s *Session) handle(pl catalog.Playlist) (*playlist, bool) {
	p, ok := pl.(*playlist)
	if !ok {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return p, s.playlists[p.id] == p
}

// MonitorContainer turns container change reports on or off.
func (s *Session) MonitorContainer(on bool) {
	s.mu.Lock()
	s.container = on
	s.mu.Unlock()
}

// MonitorPlaylist turns TracksChanged reports for pl on or off.
func (s *Session) MonitorPlaylist(pl catalog.Playlist, on bool) {
	p, ok := s.handle(pl)
	if !ok {
		return
	}
	p.mu.Lock()
	p.monitored = on
	p.mu.Unlock()
}

// SetOfflineMode marks pl for offline use. Library files are always local,
// so an offline playlist is immediately synced.
func (s *Session) SetOfflineMode(pl catalog.Playlist, on bool) error {
	p, ok := s.handle(pl)
	if !ok {
		return errForeignHandle
	}
	p.mu.Lock()
	p.offline = on
	p.mu.Unlock()
	return nil
}

// OfflineStatus reports the offline state of pl.
func (s *Session) OfflineStatus(pl catalog.Playlist) catalog.OfflineStatus {
	p, ok := s.handle(pl)
	if !ok {
		return catalog.OfflineNo
	}
	return p.offlineStatus()
}

func (p *playlist) offlineStatus() catalog.OfflineStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.offline {
		return catalog.OfflineYes
	}
	return catalog.OfflineNo
}

// OfflineSync reports no synchronisation: there is nothing to download.
func (s *Session) OfflineSync() (session.OfflineSync, bool) {
	return session.OfflineSync{}, false
}

// Playlists lists the library playlists.
func (s *Session) Playlists() []session.PlaylistInfo {
	summaries, err := s.lib.Playlists()
	if err != nil {
		s.log.Error().Err(err).Msg("Listing playlists failed")
		return nil
	}

	out := make([]session.PlaylistInfo, 0, len(summaries))
	for _, sum := range summaries {
		info := session.PlaylistInfo{
			Name:   sum.Name,
			Link:   Link(sum.Playlist),
			Tracks: sum.Tracks,
		}
		s.mu.Lock()
		h := s.playlists[sum.ID]
		s.mu.Unlock()
		if h != nil {
			info.Offline = h.offlineStatus()
		}
		out = append(out, info)
	}
	return out
}
