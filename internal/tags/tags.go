// Package tags reads metadata from music files and opens them for decoding.
package tags

import (
	"errors"
	"path/filepath"
	"strings"
	"time"
)

// File extensions supported by the tags package.
const (
	ExtMP3  = ".mp3"
	ExtFLAC = ".flac"
)

// id3Magic is the magic bytes for ID3v2 header detection.
const id3Magic = "ID3"

// ErrUnsupported is returned for files that are not MP3 or FLAC.
var ErrUnsupported = errors.New("unsupported format")

// Tag contains the metadata boombox keeps for a file.
type Tag struct {
	Path        string
	Title       string
	Artist      string
	Album       string
	TrackNumber int
}

// FileInfo combines Tag and the decoded stream length.
type FileInfo struct {
	Tag
	Duration   time.Duration
	SampleRate int
	Channels   int
}

// IsMusicFile returns true if the path has a supported music file extension.
func IsMusicFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ExtMP3, ExtFLAC:
		return true
	default:
		return false
	}
}
