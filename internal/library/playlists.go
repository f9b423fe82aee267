package library

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	dbutil "github.com/llehouerou/boombox/internal/db"
)

// CreatePlaylist creates an empty user playlist.
func (l *Library) CreatePlaylist(name string) (int64, error) {
	if name == "" {
		return 0, errors.New("playlist name is empty")
	}
	res, err := l.db.Exec(`
		INSERT INTO playlists (name, kind, created_at) VALUES (?, ?, ?)
	`, name, KindUser, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("creating playlist %q: %w", name, err)
	}
	return res.LastInsertId()
}

func (l *Library) playlistWhere(where string, args ...any) (*Playlist, error) {
	var p Playlist
	err := l.db.QueryRow(`SELECT id, name, kind FROM playlists WHERE `+where, args...).
		Scan(&p.ID, &p.Name, &p.Kind)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// PlaylistByName returns the user playlist called name.
func (l *Library) PlaylistByName(name string) (*Playlist, error) {
	return l.playlistWhere(`name = ? AND kind = ?`, name, KindUser)
}

// PlaylistByID returns the playlist with the given ID.
func (l *Library) PlaylistByID(id int64) (*Playlist, error) {
	return l.playlistWhere(`id = ?`, id)
}

// Reserved returns the Starred or Inbox playlist.
func (l *Library) Reserved(kind Kind) (*Playlist, error) {
	if kind == KindUser {
		return nil, fmt.Errorf("%q is not a reserved playlist kind", kind)
	}
	return l.playlistWhere(`kind = ?`, kind)
}

// Playlists returns every playlist with its track count, reserved ones
// first.
func (l *Library) Playlists() ([]PlaylistSummary, error) {
	rows, err := l.db.Query(`
		SELECT p.id, p.name, p.kind, COUNT(pt.track_id)
		FROM playlists p
		LEFT JOIN playlist_tracks pt ON pt.playlist_id = p.id
		GROUP BY p.id
		ORDER BY p.kind = 'user', p.name COLLATE NOCASE
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PlaylistSummary
	for rows.Next() {
		var s PlaylistSummary
		if err := rows.Scan(&s.ID, &s.Name, &s.Kind, &s.Tracks); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// PlaylistTracks returns the tracks of a playlist in order.
func (l *Library) PlaylistTracks(playlistID int64) ([]Track, error) {
	rows, err := l.db.Query(`
		SELECT t.id, t.path, t.title, t.artist, t.album, t.track_number, t.duration_ms, t.added_at
		FROM playlist_tracks pt
		JOIN tracks t ON pt.track_id = t.id
		WHERE pt.playlist_id = ?
		ORDER BY pt.position
	`, playlistID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tracks []Track
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, *t)
	}
	return tracks, rows.Err()
}

// AppendTracks adds tracks to the end of a playlist.
func (l *Library) AppendTracks(playlistID int64, trackIDs []int64) error {
	if len(trackIDs) == 0 {
		return nil
	}
	return dbutil.WithTx(l.db, func(tx *sql.Tx) error {
		return appendTracks(tx, playlistID, trackIDs)
	})
}

func appendTracks(tx *sql.Tx, playlistID int64, trackIDs []int64) error {
	var maxPos sql.NullInt64
	err := tx.QueryRow(`
		SELECT MAX(position) FROM playlist_tracks WHERE playlist_id = ?
	`, playlistID).Scan(&maxPos)
	if err != nil {
		return err
	}

	nextPos := 0
	if maxPos.Valid {
		nextPos = int(maxPos.Int64) + 1
	}

	stmt, err := tx.Prepare(`
		INSERT INTO playlist_tracks (playlist_id, position, track_id)
		VALUES (?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, trackID := range trackIDs {
		if _, err := stmt.Exec(playlistID, nextPos+i, trackID); err != nil {
			return err
		}
	}
	return nil
}

// RemoveTrack removes the track at position from a playlist.
func (l *Library) RemoveTrack(playlistID int64, position int) error {
	return dbutil.WithTx(l.db, func(tx *sql.Tx) error {
		return removeAt(tx, playlistID, position)
	})
}

func removeAt(tx *sql.Tx, playlistID int64, position int) error {
	res, err := tx.Exec(`
		DELETE FROM playlist_tracks WHERE playlist_id = ? AND position = ?
	`, playlistID, position)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	// Shift positions down one row at a time to keep (playlist, position)
	// unique throughout.
	rows, err := tx.Query(`
		SELECT position FROM playlist_tracks
		WHERE playlist_id = ? AND position > ?
		ORDER BY position
	`, playlistID, position)
	if err != nil {
		return err
	}
	var later []int
	for rows.Next() {
		var p int
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return err
		}
		later = append(later, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, p := range later {
		if _, err := tx.Exec(`
			UPDATE playlist_tracks SET position = position - 1
			WHERE playlist_id = ? AND position = ?
		`, playlistID, p); err != nil {
			return err
		}
	}
	return nil
}

// Star appends a track to the Starred playlist unless it is already there.
// It reports whether the track was added.
func (l *Library) Star(trackID int64) (bool, error) {
	starred, err := l.Reserved(KindStarred)
	if err != nil {
		return false, err
	}
	if _, err := l.TrackByID(trackID); err != nil {
		return false, err
	}

	added := false
	err = dbutil.WithTx(l.db, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRow(`
			SELECT EXISTS (SELECT 1 FROM playlist_tracks WHERE playlist_id = ? AND track_id = ?)
		`, starred.ID, trackID).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return nil
		}
		added = true
		return appendTracks(tx, starred.ID, []int64{trackID})
	})
	return added, err
}
