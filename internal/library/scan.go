package library

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"

	dbutil "github.com/llehouerou/boombox/internal/db"
	"github.com/llehouerou/boombox/internal/tags"
)

const numWorkers = 8

// readFileInfo is replaced in tests.
var readFileInfo = tags.ReadWithAudio

// ScanProgress reports the progress of a library scan.
type ScanProgress struct {
	Phase   string // "scanning", "processing", "done"
	Current int
	Total   int
}

// ScanStats holds statistics for a completed scan.
type ScanStats struct {
	Found  int
	Known  int
	Added  []string
	Failed []string
}

type trackResult struct {
	track *Track
	err   error
}

// Scan walks the source directories for music files, adds the ones not yet
// in the library and appends them to the Inbox. progress may be nil.
func (l *Library) Scan(ctx context.Context, sources []string, progress func(ScanProgress)) (ScanStats, error) {
	if progress == nil {
		progress = func(ScanProgress) {}
	}
	var stats ScanStats

	progress(ScanProgress{Phase: "scanning"})
	files := discoverFiles(ctx, sources)
	stats.Found = len(files)
	if err := ctx.Err(); err != nil {
		return stats, err
	}

	known, err := l.knownPaths()
	if err != nil {
		return stats, err
	}
	var pending []string
	for _, f := range files {
		if _, ok := known[f]; ok {
			stats.Known++
			continue
		}
		pending = append(pending, f)
	}

	results := readAll(ctx, pending, progress)
	if err := ctx.Err(); err != nil {
		return stats, err
	}

	inbox, err := l.Reserved(KindInbox)
	if err != nil {
		return stats, err
	}

	err = dbutil.WithTxContext(ctx, l.db, func(tx *sql.Tx) error {
		var added []int64
		for _, path := range pending {
			r, ok := results[path]
			if !ok {
				continue
			}
			if r.err != nil {
				log.Debug().Err(r.err).Str("path", path).Msg("Skipping unreadable file")
				stats.Failed = append(stats.Failed, path)
				continue
			}
			id, created, err := addTrack(tx, r.track)
			if err != nil {
				return err
			}
			if created {
				added = append(added, id)
				stats.Added = append(stats.Added, path)
			}
		}
		if len(added) == 0 {
			return nil
		}
		return appendTracks(tx, inbox.ID, added)
	})
	if err != nil {
		return stats, err
	}

	progress(ScanProgress{Phase: "done", Current: len(pending), Total: len(pending)})
	return stats, nil
}

// Import adds a single file to the library and the Inbox. It returns the
// track and whether it was new.
func (l *Library) Import(path string) (*Track, bool, error) {
	if t, err := l.TrackByPath(path); err == nil {
		return t, false, nil
	}

	t, err := trackFromFile(path)
	if err != nil {
		return nil, false, err
	}
	inbox, err := l.Reserved(KindInbox)
	if err != nil {
		return nil, false, err
	}

	created := false
	err = dbutil.WithTx(l.db, func(tx *sql.Tx) error {
		id, ok, err := addTrack(tx, t)
		if err != nil {
			return err
		}
		t.ID = id
		if !ok {
			return nil
		}
		created = true
		return appendTracks(tx, inbox.ID, []int64{id})
	})
	if err != nil {
		return nil, false, err
	}
	return t, created, nil
}

func trackFromFile(path string) (*Track, error) {
	info, err := readFileInfo(path)
	if err != nil {
		return nil, err
	}
	return &Track{
		Path:        path,
		Title:       info.Title,
		Artist:      info.Artist,
		Album:       info.Album,
		TrackNumber: info.TrackNumber,
		Duration:    info.Duration,
	}, nil
}

// readAll reads metadata for paths in parallel.
func readAll(ctx context.Context, paths []string, progress func(ScanProgress)) map[string]trackResult {
	total := len(paths)
	processed := 0

	workCh := make(chan string)
	results := make(map[string]trackResult, total)
	var mu sync.Mutex

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Go(func() {
			for path := range workCh {
				t, err := trackFromFile(path)
				mu.Lock()
				results[path] = trackResult{track: t, err: err}
				processed++
				progress(ScanProgress{Phase: "processing", Current: processed, Total: total})
				mu.Unlock()
			}
		})
	}

feed:
	for _, p := range paths {
		select {
		case workCh <- p:
		case <-ctx.Done():
			break feed
		}
	}
	close(workCh)
	wg.Wait()

	return results
}

func (l *Library) knownPaths() (map[string]struct{}, error) {
	rows, err := l.db.Query(`SELECT path FROM tracks`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	known := make(map[string]struct{})
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		known[p] = struct{}{}
	}
	return known, rows.Err()
}

// discoverFiles walks the given source directories and returns all music
// files found.
func discoverFiles(ctx context.Context, sources []string) []string {
	var files []string
	for _, src := range sources {
		_ = filepath.WalkDir(src, func(path string, d os.DirEntry, walkErr error) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			// Skip any walk errors - intentionally continuing to scan other paths
			if walkErr != nil {
				return nil //nolint:nilerr // intentionally skipping errors
			}
			if d.IsDir() || !tags.IsMusicFile(path) {
				return nil
			}
			files = append(files, path)
			return nil
		})
	}
	return files
}
