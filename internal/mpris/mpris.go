//go:build linux

package mpris

import (
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/quarckster/go-mpris-server/pkg/server"
	"github.com/quarckster/go-mpris-server/pkg/types"
	"github.com/rs/zerolog/log"

	"github.com/llehouerou/boombox/internal/catalog"
	"github.com/llehouerou/boombox/internal/control"
)

const sendTimeout = time.Second

// ErrBusy is returned to D-Bus callers when the main loop does not accept a
// command in time.
var ErrBusy = errors.New("player busy")

// Adapter exposes the player on the session bus.
type Adapter struct {
	server *server.Server
}

// New registers name on D-Bus and starts serving. Player methods are
// turned into commands sent on out; properties are read from status.
func New(name string, status Status, out chan<- control.Command) (*Adapter, error) {
	a := &Adapter{}

	root := &rootAdapter{identity: name}
	player := &playerAdapter{status: status, out: out}

	a.server = server.NewServer(name, root, player)

	go func() {
		if err := a.server.Listen(); err != nil {
			log.Warn().Err(err).Str("component", "mpris").Msg("D-Bus server stopped")
		}
	}()

	return a, nil
}

// Close stops the adapter and releases D-Bus resources.
func (a *Adapter) Close() error {
	return a.server.Stop()
}

// rootAdapter implements OrgMprisMediaPlayer2Adapter.
type rootAdapter struct {
	identity string
}

func (r *rootAdapter) Raise() error {
	return nil // headless
}

func (r *rootAdapter) Quit() error {
	return nil // logout goes through the control plane
}

func (r *rootAdapter) CanQuit() (bool, error) {
	return false, nil
}

func (r *rootAdapter) CanRaise() (bool, error) {
	return false, nil
}

func (r *rootAdapter) HasTrackList() (bool, error) {
	return false, nil
}

func (r *rootAdapter) Identity() (string, error) {
	return r.identity, nil
}

//nolint:revive // Method name required by interface.
func (r *rootAdapter) SupportedUriSchemes() ([]string, error) {
	return []string{"file"}, nil
}

func (r *rootAdapter) SupportedMimeTypes() ([]string, error) {
	return []string{"audio/mpeg", "audio/flac", "audio/mp3"}, nil
}

// playerAdapter implements OrgMprisMediaPlayer2PlayerAdapter.
type playerAdapter struct {
	status Status
	out    chan<- control.Command
}

func (p *playerAdapter) send(kind control.Kind) error {
	cmd := control.Command{Kind: kind, Source: control.SourceMPRIS}
	select {
	case p.out <- cmd:
		return nil
	case <-time.After(sendTimeout):
		return ErrBusy
	}
}

func (p *playerAdapter) Next() error {
	return p.send(control.Next)
}

func (p *playerAdapter) Previous() error {
	return nil // shuffle has no history
}

func (p *playerAdapter) Pause() error {
	return p.send(control.Stop)
}

func (p *playerAdapter) PlayPause() error {
	if p.status.Playing() {
		return p.send(control.Stop)
	}
	return p.send(control.Play)
}

func (p *playerAdapter) Stop() error {
	return p.send(control.Stop)
}

func (p *playerAdapter) Play() error {
	return p.send(control.Play)
}

func (p *playerAdapter) Seek(_ types.Microseconds) error {
	return nil // Not supported
}

func (p *playerAdapter) SetPosition(_ string, _ types.Microseconds) error {
	return nil // Not supported
}

//nolint:revive // Method name required by interface.
func (p *playerAdapter) OpenUri(_ string) error {
	return nil // Not supported
}

func (p *playerAdapter) PlaybackStatus() (types.PlaybackStatus, error) {
	return playbackStatus(p.status), nil
}

func (p *playerAdapter) Rate() (float64, error) {
	return 1.0, nil
}

func (p *playerAdapter) SetRate(_ float64) error {
	return nil // Not supported
}

func (p *playerAdapter) Metadata() (types.Metadata, error) {
	return metadata(p.status.CurrentTrack()), nil
}

func (p *playerAdapter) Volume() (float64, error) {
	return 1.0, nil
}

func (p *playerAdapter) SetVolume(_ float64) error {
	return nil // Not supported
}

func (p *playerAdapter) Position() (int64, error) {
	return 0, nil
}

func (p *playerAdapter) MinimumRate() (float64, error) {
	return 1.0, nil
}

func (p *playerAdapter) MaximumRate() (float64, error) {
	return 1.0, nil
}

func (p *playerAdapter) CanGoNext() (bool, error) {
	return p.status.HasPlaylist(), nil
}

func (p *playerAdapter) CanGoPrevious() (bool, error) {
	return false, nil
}

func (p *playerAdapter) CanPlay() (bool, error) {
	return p.status.CurrentTrack() != nil, nil
}

func (p *playerAdapter) CanPause() (bool, error) {
	return true, nil
}

func (p *playerAdapter) CanSeek() (bool, error) {
	return false, nil
}

func (p *playerAdapter) CanControl() (bool, error) {
	return true, nil
}

func playbackStatus(s Status) types.PlaybackStatus {
	if s.Playing() {
		return types.PlaybackStatusPlaying
	}
	return types.PlaybackStatusStopped
}

func metadata(t catalog.Track) types.Metadata {
	if t == nil || !t.Loaded() {
		return types.Metadata{}
	}

	meta := types.Metadata{
		TrackId:     dbus.ObjectPath(formatTrackID(trackKey(t))),
		Length:      types.Microseconds(t.Duration().Microseconds()),
		Title:       t.Name(),
		Artist:      []string{t.Artist()},
		TrackNumber: t.Index(),
	}
	if a, ok := t.(albumTrack); ok {
		meta.Album = a.Album()
	}
	if f, ok := t.(fileTrack); ok {
		if artPath := FindAlbumArt(f.Path()); artPath != "" {
			meta.ArtUrl = "file://" + artPath
		}
	}
	return meta
}

func trackKey(t catalog.Track) string {
	if f, ok := t.(fileTrack); ok {
		return f.Path()
	}
	return t.Artist() + "\x00" + t.Name()
}

func formatTrackID(key string) string {
	h := fnv.New64a()
	h.Write([]byte(key))
	return fmt.Sprintf("/org/mpris/MediaPlayer2/Track/%x", h.Sum64())
}
