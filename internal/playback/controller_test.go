package playback

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/boombox/internal/catalog"
	"github.com/llehouerou/boombox/internal/event"
	"github.com/llehouerou/boombox/internal/playlist"
)

func newTestController() (*Controller, *recordingPoster, *fakeMonitor) {
	poster := &recordingPoster{}
	mon := newFakeMonitor()
	c := NewController(poster, mon, WithRand(rand.New(rand.NewPCG(7, 11)))) //nolint:gosec // test
	return c, poster, mon
}

func activate(c *Controller, pl *fakePlaylist) {
	c.SetActivePlaylist(catalog.Own[catalog.Playlist](pl))
}

func TestNextTrack_FixedShuffleOrder(t *testing.T) {
	c, _, _ := newTestController()
	pl := newFakePlaylist("three", 3)
	activate(c, pl)
	c.order = playlist.FromPermutation([]int{2, 0, 1})

	var got []catalog.Track
	for range 4 {
		got = append(got, c.NextTrack())
	}

	want := []catalog.Track{pl.tracks[2], pl.tracks[0], pl.tracks[1], pl.tracks[2]}
	for i := range want {
		assert.Same(t, want[i], got[i], "call %d", i+1)
	}
}

func TestNextTrack_FirstCallReturnsShuffleZero(t *testing.T) {
	c, _, _ := newTestController()
	pl := newFakePlaylist("five", 5)
	activate(c, pl)

	perm, pos := c.Order()
	require.Equal(t, 0, pos)
	require.True(t, playlist.IsPermutation(perm))

	for k := range 12 {
		tr := c.NextTrack()
		assert.Same(t, pl.tracks[perm[k%5]], tr, "call %d", k+1)
	}
}

func TestNextTrack_VisitsEveryTrackOncePerCycle(t *testing.T) {
	c, _, _ := newTestController()
	pl := newFakePlaylist("many", 9)
	activate(c, pl)

	seen := make(map[catalog.Track]bool)
	for range 9 {
		tr := c.NextTrack()
		require.NotNil(t, tr)
		assert.False(t, seen[tr], "track %s selected twice in one cycle", tr.Name())
		seen[tr] = true
	}
	assert.Len(t, seen, 9)
}

func TestNextTrack_PostsWaitPlayAndMetadata(t *testing.T) {
	c, poster, _ := newTestController()
	activate(c, newFakePlaylist("one", 1))

	require.NotNil(t, c.NextTrack())
	assert.Equal(t, []event.Event{event.WaitPlay, event.DoMetadata}, poster.posted)
}

func TestNextTrack_ZeroTracks(t *testing.T) {
	c, poster, _ := newTestController()
	activate(c, newFakePlaylist("empty", 0))

	assert.Nil(t, c.NextTrack())
	assert.Empty(t, poster.posted, "no events may be posted for an empty playlist")
	assert.Nil(t, c.CurrentTrack())
}

func TestNextTrack_NoActivePlaylist(t *testing.T) {
	c, poster, _ := newTestController()

	assert.Nil(t, c.NextTrack())
	assert.Empty(t, poster.posted)
}

func TestNextTrack_SingleTrackRepeats(t *testing.T) {
	c, _, _ := newTestController()
	pl := newFakePlaylist("solo", 1)
	activate(c, pl)

	assert.Same(t, pl.tracks[0], c.NextTrack())
	assert.Same(t, pl.tracks[0], c.NextTrack())
}

func TestNextTrack_ReferenceCounting(t *testing.T) {
	c, _, _ := newTestController()
	pl := newFakePlaylist("refs", 2)
	activate(c, pl)

	first := c.NextTrack().(*fakeTrack)
	assert.Equal(t, 1, first.refs)

	second := c.NextTrack().(*fakeTrack)
	assert.Equal(t, 0, first.refs, "previous track must be released")
	assert.Equal(t, 1, second.refs)

	c.Release()
	assert.Equal(t, 0, second.refs)
	assert.Equal(t, 0, pl.refs)
}

func TestSetActivePlaylist_ResetsSelection(t *testing.T) {
	c, _, _ := newTestController()
	first := newFakePlaylist("first", 4)
	activate(c, first)
	c.NextTrack()
	c.NextTrack()

	second := newFakePlaylist("second", 4)
	activate(c, second)
	c.order = playlist.FromPermutation([]int{3, 1, 0, 2})

	// The still-playing track from the previous playlist does not count as
	// a selection in the new one.
	assert.Same(t, second.tracks[3], c.NextTrack())
	assert.Equal(t, 0, first.refs, "previous playlist must be released")
}

func TestSetActivePlaylist_MonitoringAndOffline(t *testing.T) {
	c, _, mon := newTestController()
	starred := newFakePlaylist("starred", 3)
	user := newFakePlaylist("user", 3)
	c.SetReserved(starred)

	c.SetActivePlaylist(catalog.Share[catalog.Playlist](starred))
	assert.NotContains(t, mon.monitored, catalog.Playlist(starred), "reserved playlist monitoring belongs to login")
	assert.NotContains(t, mon.offline, catalog.Playlist(starred))

	activate(c, user)
	assert.True(t, mon.monitored[user])
	assert.True(t, mon.offline[user])
	assert.NotContains(t, mon.monitored, catalog.Playlist(starred), "switching away from a reserved playlist keeps its monitoring")

	activate(c, newFakePlaylist("other", 1))
	assert.False(t, mon.monitored[user], "switching away from a user playlist stops monitoring it")
}

func TestSetActivePlaylist_OfflineFailureIsIgnored(t *testing.T) {
	c, _, mon := newTestController()
	mon.offlineErr = errors.New("offline unavailable")
	pl := newFakePlaylist("user", 2)

	activate(c, pl)

	assert.Same(t, catalog.Playlist(pl), c.ActivePlaylist())
	assert.NotNil(t, c.NextTrack())
}

func TestTracksChanged_RegeneratesForActiveOnly(t *testing.T) {
	c, _, _ := newTestController()
	pl := newFakePlaylist("grow", 2)
	activate(c, pl)

	pl.tracks = append(pl.tracks, &fakeTrack{name: "x", loaded: true}, &fakeTrack{name: "y", loaded: true})
	c.TracksChanged(newFakePlaylist("unrelated", 1))
	perm, _ := c.Order()
	assert.Len(t, perm, 2)

	c.TracksChanged(pl)
	perm, _ = c.Order()
	assert.Len(t, perm, 4)
	assert.True(t, playlist.IsPermutation(perm))
}

func TestNextTrack_ResizesWhenCountChangedSilently(t *testing.T) {
	c, _, _ := newTestController()
	pl := newFakePlaylist("late", 0)
	pl.loaded = false
	activate(c, pl)

	assert.Nil(t, c.NextTrack())

	pl.loaded = true
	pl.tracks = newFakePlaylist("", 3).tracks
	tr := c.NextTrack()
	require.NotNil(t, tr)
	perm, _ := c.Order()
	assert.Len(t, perm, 3)
}

func TestPeekNext(t *testing.T) {
	c, _, _ := newTestController()
	pl := newFakePlaylist("peek", 3)
	activate(c, pl)
	c.order = playlist.FromPermutation([]int{1, 2, 0})

	assert.Same(t, pl.tracks[2], c.PeekNext())
	c.NextTrack()
	assert.Same(t, pl.tracks[2], c.PeekNext(), "first selection stays at position 0")
	c.NextTrack()
	assert.Same(t, pl.tracks[0], c.PeekNext())

	empty, _, _ := newTestController()
	assert.Nil(t, empty.PeekNext())
}

func TestSetTrack(t *testing.T) {
	c, poster, _ := newTestController()
	pl := newFakePlaylist("manual", 3)
	activate(c, pl)

	c.SetTrack(pl.tracks[1])
	assert.Same(t, catalog.Track(pl.tracks[1]), c.CurrentTrack())
	assert.Equal(t, 1, pl.tracks[1].refs)
	assert.Empty(t, poster.posted)

	c.SetTrack(nil)
	assert.Nil(t, c.CurrentTrack())
	assert.Equal(t, 0, pl.tracks[1].refs)
}
