package library

import (
	"database/sql"
	"errors"
	"time"

	dbutil "github.com/llehouerou/boombox/internal/db"
)

const trackColumns = `id, path, title, artist, album, track_number, duration_ms, added_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrack(r rowScanner) (*Track, error) {
	var t Track
	var trackNum sql.NullInt64
	var durationMS int64
	if err := r.Scan(&t.ID, &t.Path, &t.Title, &t.Artist, &t.Album, &trackNum, &durationMS, &t.AddedAt); err != nil {
		return nil, err
	}
	t.TrackNumber = int(dbutil.NullInt64Value(trackNum))
	t.Duration = time.Duration(durationMS) * time.Millisecond
	return &t, nil
}

// AddTrack inserts t unless its path is already known. It returns the
// track's ID and whether it was created.
func (l *Library) AddTrack(t *Track) (int64, bool, error) {
	return addTrack(l.db, t)
}

type execQuerier interface {
	Exec(query string, args ...any) (sql.Result, error)
	QueryRow(query string, args ...any) *sql.Row
}

func addTrack(db execQuerier, t *Track) (int64, bool, error) {
	addedAt := t.AddedAt
	if addedAt == 0 {
		addedAt = time.Now().Unix()
	}
	var trackNum sql.NullInt64
	if t.TrackNumber > 0 {
		trackNum = sql.NullInt64{Int64: int64(t.TrackNumber), Valid: true}
	}

	res, err := db.Exec(`
		INSERT INTO tracks (path, title, artist, album, track_number, duration_ms, added_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO NOTHING
	`, t.Path, t.Title, t.Artist, t.Album, trackNum, t.Duration.Milliseconds(), addedAt)
	if err != nil {
		return 0, false, err
	}

	if n, _ := res.RowsAffected(); n == 1 {
		id, err := res.LastInsertId()
		return id, true, err
	}

	var id int64
	err = db.QueryRow(`SELECT id FROM tracks WHERE path = ?`, t.Path).Scan(&id)
	return id, false, err
}

// TrackByID returns the track with the given ID.
func (l *Library) TrackByID(id int64) (*Track, error) {
	t, err := scanTrack(l.db.QueryRow(`SELECT `+trackColumns+` FROM tracks WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

// TrackByPath returns the track stored for path.
func (l *Library) TrackByPath(path string) (*Track, error) {
	t, err := scanTrack(l.db.QueryRow(`SELECT `+trackColumns+` FROM tracks WHERE path = ?`, path))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

// TrackCount returns the number of tracks in the library.
func (l *Library) TrackCount() (int, error) {
	var n int
	err := l.db.QueryRow(`SELECT COUNT(*) FROM tracks`).Scan(&n)
	return n, err
}

// DeleteTrackByPath removes a track and its playlist entries. It returns
// the playlists that lost an entry.
func (l *Library) DeleteTrackByPath(path string) ([]int64, error) {
	var affected []int64
	err := dbutil.WithTx(l.db, func(tx *sql.Tx) error {
		var id int64
		if err := tx.QueryRow(`SELECT id FROM tracks WHERE path = ?`, path).Scan(&id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}

		rows, err := tx.Query(`
			SELECT playlist_id, position FROM playlist_tracks
			WHERE track_id = ?
			ORDER BY playlist_id, position DESC
		`, id)
		if err != nil {
			return err
		}
		type entry struct {
			playlist int64
			position int
		}
		var entries []entry
		for rows.Next() {
			var e entry
			if err := rows.Scan(&e.playlist, &e.position); err != nil {
				rows.Close()
				return err
			}
			entries = append(entries, e)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for _, e := range entries {
			if err := removeAt(tx, e.playlist, e.position); err != nil {
				return err
			}
			if len(affected) == 0 || affected[len(affected)-1] != e.playlist {
				affected = append(affected, e.playlist)
			}
		}

		_, err = tx.Exec(`DELETE FROM tracks WHERE id = ?`, id)
		return err
	})
	return affected, err
}
