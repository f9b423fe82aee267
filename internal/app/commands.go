// internal/app/commands.go
package app

import (
	"errors"

	"github.com/llehouerou/boombox/internal/catalog"
	"github.com/llehouerou/boombox/internal/control"
	"github.com/llehouerou/boombox/internal/errmsg"
	"github.com/llehouerou/boombox/internal/event"
)

// handleCommand applies a control command and replies to it.
func (a *App) handleCommand(cmd control.Command) {
	a.log.Debug().Stringer("command", cmd.Kind).Stringer("source", cmd.Source).Msg("Received command")

	switch cmd.Kind {
	case control.Select:
		cmd.Respond(a.selectPlaylist(cmd.URI))
	case control.Next:
		a.events.Post(event.DoNextTrack)
		cmd.Respond(errmsg.OK("playing next track"))
	case control.Play:
		a.events.Post(event.DoPlay)
		cmd.Respond(errmsg.OK("starting playback"))
	case control.Stop:
		a.events.Post(event.DoStop)
		cmd.Respond(errmsg.OK("stopping playback"))
	case control.Logout:
		a.events.Post(event.DoLogout)
		cmd.Respond(errmsg.OK("logging out and exiting"))
	case control.Status:
		a.updateStatus()
		cmd.Respond(a.Status())
	default:
		cmd.Respond(errmsg.Error(control.ErrUnsupported.Error()))
	}
}

// selectPlaylist makes the linked playlist active and deselects the
// current track. Playback continues until the next track is requested.
func (a *App) selectPlaylist(link string) string {
	pl, err := a.sess.PlaylistFromLink(link)
	if err != nil {
		a.log.Warn().Err(err).Str("link", link).Msg("Selecting playlist failed")
		if errors.Is(err, catalog.ErrInvalidLink) {
			return errmsg.Error("not a playlist link")
		}
		return errmsg.Reply(errmsg.OpPlaylistSelect, "", err)
	}

	a.ctrl.SetActivePlaylist(catalog.Own(pl))
	a.ctrl.SetTrack(nil)
	return errmsg.OK("playlist is now the active playlist")
}
