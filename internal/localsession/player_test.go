package localsession

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/boombox/internal/catalog"
	"github.com/llehouerou/boombox/internal/library"
)

// loadedInbox returns the Inbox with every track's metadata loaded.
func loadedInbox(t *testing.T, f *fixture, names ...string) catalog.Playlist {
	t.Helper()
	inboxID := f.reservedID(t, library.KindInbox)
	for _, name := range names {
		f.addTrack(t, inboxID, name, false)
	}
	inbox, err := f.s.Inbox()
	require.NoError(t, err)
	f.loaded(t, inbox)

	for i := range inbox.TrackCount() {
		inbox.TrackAt(i)
	}
	pump(t, f.s, f.rec, func() bool {
		for i := range inbox.TrackCount() {
			if !inbox.TrackAt(i).Loaded() {
				return false
			}
		}
		return true
	})
	return inbox
}

func TestPlayer_DeliversWholeTrack(t *testing.T) {
	f := newFixture(t)
	inbox := loadedInbox(t, f, "a.mp3")
	f.rec.with(func(r *recorder) { r.refuse = 3 })

	require.NoError(t, f.s.PlayerLoad(inbox.TrackAt(0)))
	f.s.PlayerPlay(true)

	pump(t, f.s, f.rec, func() bool {
		var n int
		f.rec.with(func(r *recorder) { n = r.endOfTrack })
		return n == 1
	})

	f.rec.with(func(r *recorder) {
		require.Len(t, r.frames, f.frames*2)
		for i := range f.frames {
			if r.frames[2*i] != int16(i) || r.frames[2*i+1] != int16(i) {
				t.Fatalf("frame %d = %d,%d", i, r.frames[2*i], r.frames[2*i+1])
			}
		}
		assert.Equal(t, 1, r.starts)
		assert.Zero(t, r.refuse, "refused deliveries are retried")
	})

	f.s.PlayerUnload()
	f.rec.with(func(r *recorder) { assert.Equal(t, 1, r.stops) })
}

func TestPlayer_LoadErrors(t *testing.T) {
	f := newFixture(t)
	inboxID := f.reservedID(t, library.KindInbox)
	f.addTrack(t, inboxID, "gone.mp3", true)
	f.addTrack(t, inboxID, "broken.flac", false)

	inbox, err := f.s.Inbox()
	require.NoError(t, err)
	f.loaded(t, inbox)

	gone := inbox.TrackAt(0)
	assert.ErrorIs(t, f.s.PlayerLoad(gone), ErrNotLoaded)
	assert.ErrorIs(t, f.s.PlayerPrefetch(gone), ErrNotLoaded)

	broken := inbox.TrackAt(1)
	pump(t, f.s, f.rec, func() bool { return gone.Loaded() && broken.Loaded() })

	assert.ErrorIs(t, f.s.PlayerLoad(gone), ErrUnplayable)
	assert.ErrorIs(t, f.s.PlayerLoad(broken), ErrUnplayable, "decoder failure")

	// nothing loaded: play and unload are no-ops
	f.s.PlayerPlay(true)
	f.s.PlayerUnload()
}

func TestPlayer_PauseKeepsPosition(t *testing.T) {
	f := newFixture(t)
	f.frames = 100000
	inbox := loadedInbox(t, f, "a.mp3")
	f.rec.with(func(r *recorder) { r.capFrames = 3 * chunkFrames })

	require.NoError(t, f.s.PlayerLoad(inbox.TrackAt(0)))
	f.s.PlayerPlay(true)
	pump(t, f.s, f.rec, func() bool {
		var n int
		f.rec.with(func(r *recorder) { n = len(r.frames) / 2 })
		return n >= 3*chunkFrames
	})
	f.s.PlayerPlay(false)

	var paused int
	f.rec.with(func(r *recorder) {
		paused = len(r.frames)
		r.capFrames = 0
	})

	f.s.PlayerPlay(true)
	pump(t, f.s, f.rec, func() bool {
		var n int
		f.rec.with(func(r *recorder) { n = r.endOfTrack })
		return n == 1
	})

	f.rec.with(func(r *recorder) {
		assert.Len(t, r.frames, f.frames*2, "no frame lost or repeated")
		assert.Greater(t, len(r.frames), paused)
		assert.Equal(t, 2, r.starts)
	})
}

func TestPlayer_PrefetchIsReused(t *testing.T) {
	f := newFixture(t)
	inbox := loadedInbox(t, f, "a.mp3", "b.mp3")
	next := inbox.TrackAt(1)
	path := filepath.Join(f.dir, "b.mp3")

	require.NoError(t, f.s.PlayerPrefetch(next))
	pump(t, f.s, f.rec, func() bool {
		f.s.pmu.Lock()
		defer f.s.pmu.Unlock()
		return f.s.prefetched != nil
	})

	require.NoError(t, f.s.PlayerLoad(next))
	f.opensMu.Lock()
	assert.Equal(t, 1, f.opens[path])
	f.opensMu.Unlock()
}

func TestPlayer_UnloadDropsStaleEndOfTrack(t *testing.T) {
	f := newFixture(t)
	f.frames = 10
	inbox := loadedInbox(t, f, "a.mp3")

	require.NoError(t, f.s.PlayerLoad(inbox.TrackAt(0)))
	f.s.PlayerPlay(true)

	f.s.pmu.Lock()
	lt := f.s.current
	f.s.pmu.Unlock()
	<-lt.done

	dec := lt.dec.(*fakeDecoder)
	f.s.PlayerUnload()
	assert.True(t, dec.isClosed())

	f.s.ProcessEvents()
	f.rec.with(func(r *recorder) { assert.Zero(t, r.endOfTrack) })
}
