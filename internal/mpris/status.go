// Package mpris exposes the player as an MPRIS media player on D-Bus so
// desktop media keys and applets can drive it.
package mpris

import "github.com/llehouerou/boombox/internal/catalog"

// Status is the player state shown over D-Bus. Its methods are called from
// D-Bus goroutines.
type Status interface {
	CurrentTrack() catalog.Track
	HasPlaylist() bool
	Playing() bool
}

// Tracks may expose more metadata through these.
type (
	fileTrack  interface{ Path() string }
	albumTrack interface{ Album() string }
)
