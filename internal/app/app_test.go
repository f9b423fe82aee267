package app

import (
	"context"
	"math/rand/v2"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/boombox/internal/audioq"
	"github.com/llehouerou/boombox/internal/catalog"
	"github.com/llehouerou/boombox/internal/control"
	"github.com/llehouerou/boombox/internal/event"
	"github.com/llehouerou/boombox/internal/output"
	"github.com/llehouerou/boombox/internal/session"
)

func newTestApp(t *testing.T, fs *fakeSession, opts Options) *App {
	t.Helper()
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(1, 2))
	}
	a, err := New(audioq.New(), fakeOutput{state: output.StatePlaying}, func(cb session.Callbacks) (session.Session, error) {
		fs.cb = cb
		return fs, nil
	}, opts)
	require.NoError(t, err)
	return a
}

// step runs one main loop iteration without waiting.
func step(a *App) bool {
	exit := a.events.Drain(a.handle)
	a.sess.ProcessEvents()
	return exit
}

// loggedIn logs in and runs the LoggedIn handler.
func loggedIn(t *testing.T, a *App, fs *fakeSession) {
	t.Helper()
	require.NoError(t, a.Login())
	step(a) // LoggedIn callback
	step(a) // LoggedIn event
	require.True(t, a.events.Pending(event.WaitInbox))
	require.True(t, a.events.Pending(event.WaitStarred))
	fs.takeCalls()
}

func TestLogin_RequiresCredentials(t *testing.T) {
	a := newTestApp(t, newFakeSession(), Options{})
	assert.ErrorIs(t, a.Login(), session.ErrNoCredentials)
}

func TestLoggedIn_SetsUpReservedPlaylists(t *testing.T) {
	fs := newFakeSession()
	a := newTestApp(t, fs, Options{User: "alice"})

	require.NoError(t, a.Login())
	step(a)
	step(a)

	assert.Contains(t, fs.takeCalls(), "container true")
	assert.True(t, fs.monitored[fs.inbox])
	assert.True(t, fs.monitored[fs.starred])
	assert.True(t, fs.offline[fs.starred])
	assert.False(t, fs.offline[fs.inbox])
	assert.True(t, a.events.Pending(event.WaitInbox))
	assert.True(t, a.events.Pending(event.WaitStarred))
	assert.Equal(t, 1, fs.inbox.refs)
	assert.Equal(t, 1, fs.starred.refs)
}

// Login, Starred loads, its first track loads and plays.
func TestScenario_LoginToPlayback(t *testing.T) {
	fs := newFakeSession()
	song := &fakeTrack{name: "song"}
	fs.starred.tracks = []*fakeTrack{song}
	a := newTestApp(t, fs, Options{User: "alice"})
	loggedIn(t, a, fs)

	// nothing loaded yet: DoMetadata changes nothing
	a.events.Post(event.DoMetadata)
	step(a)
	assert.Nil(t, a.ctrl.ActivePlaylist())

	fs.inbox.loaded = true
	fs.starred.loaded = true
	fs.cb.MetadataUpdated()
	step(a)

	assert.False(t, a.events.Pending(event.WaitInbox))
	assert.False(t, a.events.Pending(event.WaitStarred))
	assert.Equal(t, catalog.Playlist(fs.starred), a.ctrl.ActivePlaylist())
	assert.Equal(t, catalog.Track(song), a.ctrl.CurrentTrack())
	assert.True(t, a.events.Pending(event.WaitPlay), "track not loaded yet")
	assert.Empty(t, fs.takeCalls())

	song.loaded = true
	fs.cb.MetadataUpdated()
	step(a)

	assert.False(t, a.events.Pending(event.WaitPlay))
	assert.Equal(t, []string{"load song", "play false", "play true"}, fs.takeCalls())
}

func TestScenario_ConfiguredPlaylistWaitsUntilLoaded(t *testing.T) {
	fs := newFakeSession()
	road := &fakePlaylist{name: "Road", tracks: []*fakeTrack{{name: "a", loaded: true}}}
	fs.links["boombox:playlist:Road"] = road
	a := newTestApp(t, fs, Options{User: "alice", Playlist: "boombox:playlist:Road"})
	loggedIn(t, a, fs)

	fs.inbox.loaded = true
	fs.starred.loaded = true
	fs.cb.MetadataUpdated()
	step(a)

	assert.Equal(t, catalog.Playlist(road), a.ctrl.ActivePlaylist())
	assert.True(t, fs.monitored[road])
	assert.True(t, a.events.Pending(event.WaitStarred), "waiting for the playlist")
	assert.Nil(t, a.ctrl.CurrentTrack())

	road.loaded = true
	fs.cb.MetadataUpdated()
	step(a)

	assert.False(t, a.events.Pending(event.WaitStarred))
	assert.Equal(t, []string{"load a", "play false", "play true"}, fs.takeCalls())
}

func TestScenario_ConfiguredPlaylistMissingFallsBackToStarred(t *testing.T) {
	fs := newFakeSession()
	fs.starred.tracks = []*fakeTrack{{name: "s", loaded: true}}
	a := newTestApp(t, fs, Options{User: "alice", Playlist: "boombox:playlist:Gone"})
	loggedIn(t, a, fs)

	fs.inbox.loaded = true
	fs.starred.loaded = true
	fs.cb.MetadataUpdated()
	step(a)

	assert.Equal(t, catalog.Playlist(fs.starred), a.ctrl.ActivePlaylist())
	assert.Equal(t, []string{"load s", "play false", "play true"}, fs.takeCalls())
}

// selectWithOrder activates pl through the control plane and arranges
// tracks so they are visited in the given order.
func selectWithOrder(t *testing.T, a *App, fs *fakeSession, pl *fakePlaylist, tracks ...*fakeTrack) {
	t.Helper()
	fs.links["boombox:playlist:"+pl.name] = pl
	pl.tracks = make([]*fakeTrack, len(tracks))
	for i := range tracks {
		pl.tracks[i] = &fakeTrack{}
	}

	reply := make(chan string, 1)
	a.handleCommand(control.Command{Kind: control.Select, URI: "boombox:playlist:" + pl.name, Reply: reply})
	require.Equal(t, "# OK, playlist is now the active playlist\n", <-reply)

	perm, _ := a.ctrl.Order()
	for i, tr := range tracks {
		pl.tracks[perm[i]] = tr
	}
}

func TestScenario_UnplayableTrackIsSkipped(t *testing.T) {
	fs := newFakeSession()
	a := newTestApp(t, fs, Options{User: "alice"})

	bad := &fakeTrack{name: "bad", loaded: true, err: assert.AnError}
	good := &fakeTrack{name: "good", loaded: true}
	selectWithOrder(t, a, fs, &fakePlaylist{name: "mix", loaded: true}, bad, good)

	a.events.Post(event.DoNextTrack)
	step(a)

	assert.Equal(t, catalog.Track(good), a.ctrl.CurrentTrack())
	assert.False(t, a.events.Pending(event.WaitPlay))
	assert.Equal(t, []string{"load good", "play false", "play true"}, fs.takeCalls())
	assert.Zero(t, bad.refs, "skipped track released")
	assert.Equal(t, 1, good.refs)
}

func TestScenario_LoadFailureAdvances(t *testing.T) {
	fs := newFakeSession()
	fs.loadErr = errLoad
	a := newTestApp(t, fs, Options{User: "alice"})

	one := &fakeTrack{name: "one", loaded: true}
	two := &fakeTrack{name: "two", loaded: true}
	selectWithOrder(t, a, fs, &fakePlaylist{name: "mix", loaded: true}, one, two)

	a.events.Post(event.DoNextTrack)
	step(a)

	assert.Equal(t, catalog.Track(two), a.ctrl.CurrentTrack())
	assert.False(t, a.events.Pending(event.WaitPlay))
	assert.Equal(t, []string{"load one", "load two", "play false", "play true"}, fs.takeCalls())
}

func TestScenario_NoPlayableTrackStops(t *testing.T) {
	fs := newFakeSession()
	a := newTestApp(t, fs, Options{User: "alice"})

	one := &fakeTrack{name: "one", loaded: true, err: assert.AnError}
	two := &fakeTrack{name: "two", loaded: true, err: assert.AnError}
	selectWithOrder(t, a, fs, &fakePlaylist{name: "mix", loaded: true}, one, two)

	a.events.Post(event.DoNextTrack)
	assert.False(t, step(a))

	assert.Equal(t, catalog.Track(two), a.ctrl.CurrentTrack())
	assert.False(t, a.events.AnyWaiting())
	assert.Empty(t, fs.takeCalls())

	// another request starts a fresh round
	a.events.Post(event.DoNextTrack)
	assert.False(t, step(a))
	assert.Equal(t, catalog.Track(two), a.ctrl.CurrentTrack())
	assert.False(t, a.events.AnyWaiting())
}

func TestScenario_LoadFailureOnlyTrackStops(t *testing.T) {
	fs := newFakeSession()
	fs.loadErr = errLoad
	a := newTestApp(t, fs, Options{User: "alice"})

	only := &fakeTrack{name: "only", loaded: true}
	selectWithOrder(t, a, fs, &fakePlaylist{name: "mix", loaded: true}, only)

	a.events.Post(event.DoNextTrack)
	assert.False(t, step(a))

	assert.False(t, a.events.Pending(event.WaitPlay))
	assert.Equal(t, []string{"load only"}, fs.takeCalls())
}

func TestScenario_EndOfTrackPlaysNext(t *testing.T) {
	fs := newFakeSession()
	a := newTestApp(t, fs, Options{User: "alice"})

	one := &fakeTrack{name: "one", loaded: true}
	two := &fakeTrack{name: "two", loaded: true}
	selectWithOrder(t, a, fs, &fakePlaylist{name: "mix", loaded: true}, one, two)
	a.events.Post(event.DoNextTrack)
	step(a)
	require.Equal(t, []string{"load one", "play false", "play true"}, fs.takeCalls())

	// frames are buffered, then the track ends
	f := audioq.Format{SampleRate: 44100, Channels: 2}
	require.Equal(t, 10, fs.cb.MusicDelivery(f, make([]int16, 20), 10))
	fs.cb.EndOfTrack()

	assert.Zero(t, a.queue.BufferedFrames(), "queue flushed")
	step(a)
	assert.Equal(t, []string{"unload", "load two", "play false", "play true"}, fs.takeCalls())
}

func TestStartPlayback_Prefetches(t *testing.T) {
	fs := newFakeSession()
	a := newTestApp(t, fs, Options{User: "alice"})

	one := &fakeTrack{name: "one", loaded: true}
	two := &fakeTrack{name: "two", loaded: true}
	selectWithOrder(t, a, fs, &fakePlaylist{name: "mix", loaded: true}, one, two)
	a.events.Post(event.DoNextTrack)
	step(a)
	fs.takeCalls()

	fs.cb.StartPlayback()
	step(a)
	assert.Equal(t, []string{"prefetch two"}, fs.takeCalls())
}

func TestPrefetch_SkipsUnloadedTrack(t *testing.T) {
	fs := newFakeSession()
	a := newTestApp(t, fs, Options{User: "alice"})

	one := &fakeTrack{name: "one", loaded: true}
	two := &fakeTrack{name: "two"}
	selectWithOrder(t, a, fs, &fakePlaylist{name: "mix", loaded: true}, one, two)
	a.events.Post(event.DoNextTrack)
	step(a)
	fs.takeCalls()

	a.events.Post(event.DoPrefetch)
	step(a)
	assert.Empty(t, fs.takeCalls())
}

func TestHandle(t *testing.T) {
	tests := []struct {
		name  string
		event event.Event
		want  []string
	}{
		{name: "stop pauses the player", event: event.DoStop, want: []string{"play false"}},
		{name: "metadata without waits is ignored", event: event.DoMetadata},
		{name: "wait flag is not dispatchable", event: event.WaitPlay},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := newFakeSession()
			a := newTestApp(t, fs, Options{User: "alice"})
			fs.takeCalls()

			a.handle(tt.event)

			if tt.want == nil {
				assert.Empty(t, fs.takeCalls())
			} else {
				assert.Equal(t, tt.want, fs.takeCalls())
			}
			assert.False(t, a.events.AnyWaiting())
			assert.Nil(t, a.ctrl.ActivePlaylist())
			assert.Nil(t, a.ctrl.CurrentTrack())
		})
	}
}

func TestDoMetadata_WithoutCurrentTrackClearsWaitPlay(t *testing.T) {
	fs := newFakeSession()
	a := newTestApp(t, fs, Options{User: "alice"})

	a.events.Post(event.WaitPlay)
	a.events.Post(event.DoMetadata)
	step(a)

	assert.False(t, a.events.Pending(event.WaitPlay))
	assert.Empty(t, fs.takeCalls())
}

func TestTracksChanged_Reshuffles(t *testing.T) {
	fs := newFakeSession()
	a := newTestApp(t, fs, Options{User: "alice"})

	pl := &fakePlaylist{name: "mix", loaded: true}
	selectWithOrder(t, a, fs, pl, &fakeTrack{name: "a"})

	pl.tracks = append(pl.tracks, &fakeTrack{name: "b"}, &fakeTrack{name: "c"})
	fs.cb.TracksChanged(pl)

	perm, _ := a.ctrl.Order()
	assert.Len(t, perm, 3)
}

func TestRun_LogoutOnCancel(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		fs := newFakeSession()
		a := newTestApp(t, fs, Options{User: "alice"})
		require.NoError(t, a.Login())

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- a.Run(ctx, nil) }()

		synctest.Wait()
		assert.True(t, a.events.Pending(event.WaitStarred), "logged in")

		cancel()
		require.NoError(t, <-done)
		assert.Contains(t, fs.takeCalls(), "logout")
	})
}

func TestRun_ExitsAfterLogoutGrace(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		fs := newFakeSession()
		fs.ignoreLogout = true
		a := newTestApp(t, fs, Options{User: "alice", LogoutGrace: 3 * time.Second})

		ctx, cancel := context.WithCancel(context.Background())
		start := time.Now()
		done := make(chan error, 1)
		go func() { done <- a.Run(ctx, nil) }()

		cancel()
		require.NoError(t, <-done)
		assert.Equal(t, 3*time.Second, time.Since(start))
	})
}

func TestRun_LogoutCommand(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		fs := newFakeSession()
		a := newTestApp(t, fs, Options{User: "alice"})

		cmds := make(chan control.Command)
		done := make(chan error, 1)
		go func() { done <- a.Run(context.Background(), cmds) }()

		reply := make(chan string, 1)
		cmds <- control.Command{Kind: control.Logout, Reply: reply}
		assert.Equal(t, "# OK, logging out and exiting\n", <-reply)
		require.NoError(t, <-done)
	})
}

func TestClose_ReleasesReferences(t *testing.T) {
	fs := newFakeSession()
	fs.starred.tracks = []*fakeTrack{{name: "s", loaded: true}}
	a := newTestApp(t, fs, Options{User: "alice"})
	loggedIn(t, a, fs)
	fs.inbox.loaded = true
	fs.starred.loaded = true
	fs.cb.MetadataUpdated()
	step(a)

	require.NoError(t, a.Close())
	assert.Zero(t, fs.inbox.refs)
	assert.Zero(t, fs.starred.refs)
	assert.Zero(t, fs.starred.tracks[0].refs)
}

func TestPlaying(t *testing.T) {
	fs := newFakeSession()
	a, err := New(audioq.New(), nil, func(cb session.Callbacks) (session.Session, error) {
		fs.cb = cb
		return fs, nil
	}, Options{})
	require.NoError(t, err)
	assert.False(t, a.Playing())
	assert.False(t, a.HasPlaylist())
	assert.Nil(t, a.CurrentTrack())

	a.out = fakeOutput{state: output.StatePlaying}
	assert.True(t, a.Playing())
}
