// Package session defines the contract of the streaming/catalog service the
// player core drives. The core is written against these interfaces only.
package session

import (
	"errors"
	"time"

	"github.com/llehouerou/boombox/internal/audioq"
	"github.com/llehouerou/boombox/internal/catalog"
)

// ErrNoCredentials is returned by Relogin when no user is remembered.
var ErrNoCredentials = errors.New("no stored credentials")

// ConnectionState is the session's link state.
type ConnectionState int

const (
	ConnectionUndefined ConnectionState = iota
	ConnectionLoggedOut
	ConnectionLoggedIn
	ConnectionDisconnected
	ConnectionOffline
)

func (s ConnectionState) String() string {
	switch s {
	case ConnectionLoggedOut:
		return "logged out"
	case ConnectionLoggedIn:
		return "logged in"
	case ConnectionDisconnected:
		return "disconnected"
	case ConnectionOffline:
		return "offline"
	default:
		return "undefined"
	}
}

// OfflineSync summarises offline synchronisation progress.
type OfflineSync struct {
	Queued    int
	Copied    int
	Done      int
	Failed    int
	Remaining int
	Syncing   bool
}

// PlaylistInfo describes one entry of the playlist container.
type PlaylistInfo struct {
	Name    string
	Link    string
	Tracks  int
	Offline catalog.OfflineStatus
}

// Session is the external service. Unless noted, methods must be called
// from the main goroutine.
type Session interface {
	Login(user, password string) error
	Relogin() error
	RememberedUser() string
	Logout() error

	// ProcessEvents runs pending session work (invoking callbacks on the
	// calling goroutine) and returns how long the caller may wait before
	// calling it again.
	ProcessEvents() time.Duration

	// Inbox and Starred return new references to the reserved playlists.
	Inbox() (catalog.Playlist, error)
	Starred() (catalog.Playlist, error)
	// PlaylistFromLink returns a new reference to the linked playlist.
	PlaylistFromLink(link string) (catalog.Playlist, error)

	MonitorContainer(on bool)
	MonitorPlaylist(pl catalog.Playlist, on bool)
	SetOfflineMode(pl catalog.Playlist, on bool) error
	OfflineStatus(pl catalog.Playlist) catalog.OfflineStatus
	OfflineSync() (OfflineSync, bool)
	Playlists() []PlaylistInfo

	PlayerLoad(t catalog.Track) error
	PlayerPlay(play bool)
	PlayerPrefetch(t catalog.Track) error
	PlayerUnload()

	Close() error
}

// Callbacks are invoked by the session. Callbacks marked foreign may run on
// goroutines owned by the session and must return without blocking; the
// others run inside ProcessEvents.
type Callbacks struct {
	LoggedIn        func(err error)
	LoggedOut       func()
	MetadataUpdated func()
	ConnectionState func(state ConnectionState)
	MessageToUser   func(msg string)

	// NotifyMainThread asks for ProcessEvents to be called soon. Foreign.
	NotifyMainThread func()

	// MusicDelivery hands PCM frames to the player and returns how many
	// frames were consumed; 0 asks the session to retry later. Foreign.
	MusicDelivery func(format audioq.Format, samples []int16, frames int) int
	// BufferStats reports buffered audio so the session can pace delivery.
	// Foreign.
	BufferStats func() audioq.Stats
	// StartPlayback and StopPlayback bracket audio delivery. Foreign.
	StartPlayback func()
	StopPlayback  func()
	// PlayTokenLost reports playback was taken over elsewhere. Foreign.
	PlayTokenLost func()

	EndOfTrack func()

	// TracksChanged reports tracks added to or removed from a monitored
	// playlist.
	TracksChanged func(pl catalog.Playlist)
}
