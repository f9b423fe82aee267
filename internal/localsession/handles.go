package localsession

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/llehouerou/boombox/internal/catalog"
	"github.com/llehouerou/boombox/internal/library"
	"github.com/llehouerou/boombox/internal/tags"
)

var readTag = tags.Read

// playlist is the catalog handle of a library playlist. Tracks are only
// replaced on the main goroutine; the mutex lets other goroutines read the
// name and count.
type playlist struct {
	id   int64
	kind library.Kind
	refs atomic.Int32

	mu        sync.Mutex
	name      string
	loaded    bool
	tracks    []*track
	gen       uint64 // bumped on every reload request
	monitored bool
	offline   bool
}

func (p *playlist) AddRef()  { p.refs.Add(1) }
func (p *playlist) Release() { p.refs.Add(-1) }

func (p *playlist) Loaded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loaded
}

func (p *playlist) Name() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.name
}

func (p *playlist) TrackCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.tracks)
}

// TrackAt returns the borrowed track at i and starts loading its metadata.
func (p *playlist) TrackAt(i int) catalog.Track {
	p.mu.Lock()
	if i < 0 || i >= len(p.tracks) {
		p.mu.Unlock()
		return nil
	}
	t := p.tracks[i]
	p.mu.Unlock()

	t.requestLoad()
	return t
}

func (p *playlist) isMonitored() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.monitored
}

// replace installs tracks, already referenced by the caller, and releases
// the previous ones.
func (p *playlist) replace(tracks []*track) {
	p.mu.Lock()
	old := p.tracks
	p.tracks = tracks
	p.loaded = true
	p.mu.Unlock()

	for _, t := range old {
		t.Release()
	}
}

// track is the catalog handle of a library track. Metadata is read from the
// file the first time the track is handed out.
type track struct {
	id   int64
	path string
	refs atomic.Int32
	load func(*track)

	mu       sync.Mutex
	loading  bool
	loaded   bool
	err      error
	title    string
	artist   string
	album    string
	index    int
	duration time.Duration
}

func newTrack(t library.Track, load func(*track)) *track {
	return &track{
		id:       t.ID,
		path:     t.Path,
		load:     load,
		title:    t.Title,
		artist:   t.Artist,
		album:    t.Album,
		index:    t.TrackNumber,
		duration: t.Duration,
	}
}

func (t *track) AddRef()  { t.refs.Add(1) }
func (t *track) Release() { t.refs.Add(-1) }

func (t *track) Loaded() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.loaded
}

func (t *track) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *track) Name() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.title
}

func (t *track) Artist() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.artist
}

func (t *track) Album() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.album
}

func (t *track) Duration() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.duration
}

func (t *track) Index() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.index
}

// Path is the file backing the track.
func (t *track) Path() string { return t.path }

// ID is the library id of the track.
func (t *track) ID() int64 { return t.id }

func (t *track) requestLoad() {
	t.mu.Lock()
	if t.loading || t.loaded {
		t.mu.Unlock()
		return
	}
	t.loading = true
	t.mu.Unlock()

	t.load(t)
}

// trackInfo is the result of reading a track file.
type trackInfo struct {
	tag *tags.Tag
	err error
}

// readTrack checks that path is playable and reads its tags.
func readTrack(path string) trackInfo {
	fi, err := os.Stat(path)
	if err != nil {
		return trackInfo{err: fmt.Errorf("%w: %w", ErrUnplayable, err)}
	}
	if fi.IsDir() || !tags.IsMusicFile(path) {
		return trackInfo{err: fmt.Errorf("%w: %s", ErrUnplayable, tags.ErrUnsupported)}
	}
	tag, err := readTag(path)
	if err != nil {
		// the stored metadata is still good enough to play
		return trackInfo{}
	}
	return trackInfo{tag: tag}
}

func (t *track) apply(info trackInfo) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.loading = false
	t.loaded = true
	t.err = info.err
	if info.tag == nil {
		return
	}
	if info.tag.Title != "" {
		t.title = info.tag.Title
	}
	if info.tag.Artist != "" {
		t.artist = info.tag.Artist
	}
	if info.tag.Album != "" {
		t.album = info.tag.Album
	}
	if info.tag.TrackNumber > 0 {
		t.index = info.tag.TrackNumber
	}
}

// playable reports why t cannot be handed to the decoder, if it cannot.
func (t *track) playable() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch {
	case !t.loaded:
		return ErrNotLoaded
	case t.err != nil:
		return t.err
	default:
		return nil
	}
}

var errForeignHandle = errors.New("handle does not belong to this session")
