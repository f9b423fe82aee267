package tags

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
)

// Read reads tag metadata from a music file.
func Read(path string) (*Tag, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return nil, err
	}

	title := m.Title()
	if title == "" {
		title = fileTitle(path)
	}
	artist := m.Artist()
	if artist == "" {
		artist = m.AlbumArtist()
	}
	track, _ := m.Track()

	return &Tag{
		Path:        path,
		Title:       title,
		Artist:      artist,
		Album:       m.Album(),
		TrackNumber: track,
	}, nil
}

// fileTitle names an untagged file after its base name.
func fileTitle(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ReadWithAudio reads tag metadata and decodes the stream header for its
// length and format. Files without readable tags are named after the file.
func ReadWithAudio(path string) (*FileInfo, error) {
	t, err := Read(path)
	if err != nil {
		t = &Tag{
			Path:  path,
			Title: fileTitle(path),
		}
	}

	s, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	return &FileInfo{
		Tag:        *t,
		Duration:   s.Format.SampleRate.D(s.Len()),
		SampleRate: int(s.Format.SampleRate),
		Channels:   s.Format.NumChannels,
	}, nil
}
