// internal/app/handlers.go
package app

import (
	"github.com/llehouerou/boombox/internal/catalog"
	"github.com/llehouerou/boombox/internal/event"
)

// handle dispatches one primary event. DoExit never reaches it.
func (a *App) handle(e event.Event) {
	switch e {
	case event.LoggedIn:
		a.handleLoggedIn()
	case event.DoLogout:
		a.sess.MonitorContainer(false)
		if err := a.sess.Logout(); err != nil {
			a.log.Error().Err(err).Msg("Logout failed")
		}
	case event.DoNextTrack:
		a.skipped = 0
		a.ctrl.NextTrack()
	case event.DoPlay:
		a.handlePlay()
	case event.DoPrefetch:
		a.handlePrefetch()
	case event.DoStop:
		a.sess.PlayerPlay(false)
	case event.DoMetadata:
		if !a.events.AnyWaiting() {
			return
		}
		a.reconcileMetadata()
	default:
		a.log.Info().Stringer("event", e).Msg("No handler for event")
	}
}

// handleLoggedIn loads the reserved playlists and waits for them.
func (a *App) handleLoggedIn() {
	a.sess.MonitorContainer(true)
	a.initialActivated = false

	a.inbox.Release()
	a.inbox = nil
	if pl, err := a.sess.Inbox(); err != nil {
		a.log.Error().Err(err).Msg("Opening inbox failed")
	} else {
		a.inbox = catalog.Own(pl)
		a.sess.MonitorPlaylist(pl, true)
		a.events.Post(event.WaitInbox)
	}

	a.starred.Release()
	a.starred = nil
	if pl, err := a.sess.Starred(); err != nil {
		a.log.Error().Err(err).Msg("Opening starred failed")
	} else {
		a.starred = catalog.Own(pl)
		a.sess.MonitorPlaylist(pl, true)
		if err := a.sess.SetOfflineMode(pl, true); err != nil {
			a.log.Warn().Err(err).Msg("Marking starred for offline use failed")
		}
		a.events.Post(event.WaitStarred)
	}

	a.ctrl.SetReserved(a.inbox.Get(), a.starred.Get())
}

func (a *App) handlePlay() {
	a.sess.PlayerPlay(false)
	a.player.ResetStats()
	a.sess.PlayerPlay(true)

	if t := a.ctrl.CurrentTrack(); t != nil {
		a.log.Info().Msgf("Starting playback of track: %02d. %s - %s", t.Index(), t.Name(), t.Artist())
	}
}

func (a *App) handlePrefetch() {
	t := a.ctrl.PeekNext()
	if t == nil || !t.Loaded() || t.Err() != nil {
		return
	}
	if err := a.sess.PlayerPrefetch(t); err != nil {
		a.log.Info().Err(err).Msgf("Prefetching of track '%s' failed", t.Name())
		return
	}
	a.log.Info().Msgf("Prefetching track '%s'", t.Name())
}

// reconcileMetadata advances whatever was waiting for metadata to load.
func (a *App) reconcileMetadata() {
	if a.events.Pending(event.WaitInbox) {
		if pl := a.inbox.Get(); pl == nil || pl.Loaded() {
			a.log.Debug().Msg("Inbox is loaded")
			a.events.Clear(event.WaitInbox)
		}
	}

	if a.events.Pending(event.WaitStarred) {
		if pl := a.starred.Get(); pl == nil || pl.Loaded() {
			if !a.initialActivated {
				a.log.Debug().Msg("Starred is loaded")
				a.initialActivated = true
				a.activateInitial()
			}
			// a configured playlist may still be loading
			if active := a.ctrl.ActivePlaylist(); active == nil || active.Loaded() {
				a.events.Clear(event.WaitStarred)
				a.ctrl.NextTrack()
			}
		}
	}

	if !a.events.Pending(event.WaitPlay) {
		return
	}

	t := a.ctrl.CurrentTrack()
	switch {
	case t == nil:
		a.log.Warn().Msg("Waiting to play but no track selected, call next track first")
		a.events.Clear(event.WaitPlay)
	case !t.Loaded():
		a.log.Info().Msg("Waiting for track to become available")
	case t.Err() != nil:
		a.log.Info().Err(t.Err()).Msgf("Track '%s' loaded but unavailable", t.Name())
		a.events.Clear(event.WaitPlay)
		a.skipTrack()
	default:
		if err := a.sess.PlayerLoad(t); err != nil {
			a.log.Warn().Err(err).Msgf("Loading of track '%s' failed", t.Name())
			a.events.Clear(event.WaitPlay)
			a.skipTrack()
			return
		}
		a.skipped = 0
		a.events.Post(event.DoPlay)
		a.events.Clear(event.WaitPlay)
	}
}

// skipTrack advances past a track that cannot be played. After a full
// round of consecutive skips it stops until the next request.
func (a *App) skipTrack() {
	a.skipped++
	if pl := a.ctrl.ActivePlaylist(); pl != nil && a.skipped >= pl.TrackCount() {
		a.log.Warn().Int("skipped", a.skipped).Msg("No playable track in the active playlist, stopping")
		a.skipped = 0
		return
	}
	a.ctrl.NextTrack()
}

// activateInitial activates the configured playlist, or Starred when none
// is configured or it cannot be opened.
func (a *App) activateInitial() {
	if a.opts.Playlist != "" {
		pl, err := a.sess.PlaylistFromLink(a.opts.Playlist)
		if err == nil {
			a.ctrl.SetActivePlaylist(catalog.Own(pl))
			return
		}
		a.log.Warn().Err(err).Str("link", a.opts.Playlist).Msg("Opening configured playlist failed, using starred")
	}
	if pl := a.starred.Get(); pl != nil {
		a.ctrl.SetActivePlaylist(catalog.Share(pl))
	}
}
