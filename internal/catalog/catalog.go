// Package catalog defines the opaque playlist and track handles exposed by
// the session. The core never looks inside a handle beyond these methods.
package catalog

import (
	"errors"
	"time"
)

// ErrInvalidLink is returned for links that do not name a playlist.
var ErrInvalidLink = errors.New("invalid link")

// Handle is a reference-counted object owned by the session.
type Handle interface {
	AddRef()
	Release()
}

// Track is a playable item.
type Track interface {
	Handle
	// Loaded reports whether the metadata for the track is available.
	Loaded() bool
	// Err is non-nil when a loaded track cannot be played.
	Err() error
	Name() string
	Artist() string
	Duration() time.Duration
	// Index is the track number within its album, 0 when unknown.
	Index() int
}

// Playlist is an ordered track collection.
type Playlist interface {
	Handle
	Loaded() bool
	Name() string
	TrackCount() int
	// TrackAt returns a borrowed track handle. Callers that keep it must
	// take their own reference.
	TrackAt(i int) Track
}

// OfflineStatus describes the offline availability of a playlist.
type OfflineStatus int

const (
	OfflineNo OfflineStatus = iota
	OfflineYes
	OfflineDownloading
	OfflineWaiting
)

func (s OfflineStatus) String() string {
	switch s {
	case OfflineNo:
		return "no"
	case OfflineYes:
		return "synced"
	case OfflineDownloading:
		return "downloading"
	case OfflineWaiting:
		return "pending for download"
	default:
		return "unknown"
	}
}
