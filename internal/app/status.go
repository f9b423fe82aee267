// internal/app/status.go
package app

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/llehouerou/boombox/internal/catalog"
)

// updateStatus rebuilds the report returned by the status command.
func (a *App) updateStatus() {
	var b strings.Builder

	switch pl := a.ctrl.ActivePlaylist(); {
	case pl == nil:
		b.WriteString("Current playlist: <not yet selected>\n")
	case a.ctrl.IsReserved(pl):
		fmt.Fprintf(&b, "Current playlist: <starred or inbox> (%d tracks)\n", pl.TrackCount())
	default:
		fmt.Fprintf(&b, "Current playlist: %s (%d tracks)\n", pl.Name(), pl.TrackCount())
	}

	switch t := a.ctrl.CurrentTrack(); {
	case t == nil:
		b.WriteString("Current track: <not yet selected>\n")
	case t.Loaded():
		fmt.Fprintf(&b, "Current track: %s - %s\n", t.Name(), t.Artist())
	default:
		b.WriteString("Current track: <selected but not loaded>\n")
	}
	fmt.Fprintf(&b, "Playback: %s\n", a.State())

	qs := a.queue.Stats()
	state := "unknown"
	if a.out != nil {
		state = a.out.State().String()
	}
	fmt.Fprintf(&b, "Audio buffer: %s (%s frames in %d chunks, %d dropped), output %s\n",
		humanize.Bytes(uint64(qs.Bytes)), humanize.Comma(int64(qs.Frames)), qs.Chunks, qs.Dropped, state) //nolint:gosec // counters are never negative

	if ps := a.player.Stats(); ps.FramesExpected > 0 {
		fmt.Fprintf(&b, "Track progress: %s of %s frames delivered (%.0f%%)\n",
			humanize.Comma(ps.FramesSunk), humanize.Comma(ps.FramesExpected), 100*ps.Progress())
	}

	if ss, ok := a.sess.OfflineSync(); ok {
		fmt.Fprintf(&b, "Offline status: %d tracks queued, %d tracks downloaded, %d tracks done, %d tracks failed, %d tracks remaining, syncing in progress: %s\n",
			ss.Queued, ss.Copied, ss.Done, ss.Failed, ss.Remaining, yesNo(ss.Syncing))
	} else {
		fmt.Fprintf(&b, "Offline status: No syncing in progress, %d tracks remaining\n", ss.Remaining)
	}

	for _, info := range a.sess.Playlists() {
		if info.Offline == catalog.OfflineNo {
			continue
		}
		fmt.Fprintf(&b, "Offline playlist: %s (%d tracks, offline status: %s)\n",
			info.Name, info.Tracks, info.Offline)
	}

	s := b.String()
	a.status.Store(&s)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
