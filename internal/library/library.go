// Package library is the on-disk music catalog: tracks found in the library
// sources and the playlists built from them, stored in SQLite.
package library

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	_ "modernc.org/sqlite" // SQLite driver
)

const (
	appName    = "boombox"
	dbFileName = "library.db"
)

// ErrNotFound is returned when a track or playlist does not exist.
var ErrNotFound = errors.New("not found")

// Kind distinguishes user playlists from the reserved ones.
type Kind string

const (
	KindUser    Kind = "user"
	KindStarred Kind = "starred"
	KindInbox   Kind = "inbox"
)

// Track is a music file known to the library.
type Track struct {
	ID          int64
	Path        string
	Title       string
	Artist      string
	Album       string
	TrackNumber int
	Duration    time.Duration
	AddedAt     int64
}

// Playlist is a named, ordered list of tracks.
type Playlist struct {
	ID   int64
	Name string
	Kind Kind
}

// PlaylistSummary is a playlist with its track count.
type PlaylistSummary struct {
	Playlist
	Tracks int
}

// Library provides database operations on tracks and playlists. It is safe
// for concurrent use.
type Library struct {
	db *sql.DB
}

// DefaultPath returns the database location under the XDG data directory.
func DefaultPath() (string, error) {
	return xdg.DataFile(filepath.Join(appName, dbFileName))
}

// Open opens or creates the database at path. An empty path uses
// DefaultPath.
func Open(path string) (*Library, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	lib, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return lib, nil
}

// New wraps an open database, creating the schema if needed.
func New(db *sql.DB) (*Library, error) {
	// SQLite serialises writers; one connection also keeps :memory:
	// databases shared between goroutines.
	db.SetMaxOpenConns(1)

	if err := initSchema(db); err != nil {
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return &Library{db: db}, nil
}

// Close closes the database.
func (l *Library) Close() error {
	return l.db.Close()
}

// DB returns the underlying database.
func (l *Library) DB() *sql.DB {
	return l.db
}
