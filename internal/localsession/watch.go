package localsession

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/llehouerou/boombox/internal/library"
	"github.com/llehouerou/boombox/internal/tags"
)

// settleDelay is how long a file must stay unchanged before it is imported.
const settleDelay = 2 * time.Second

// watcher follows the library sources and keeps the library in sync.
type watcher struct {
	fs   *fsnotify.Watcher
	done chan struct{}
	settler
}

// settler delays work on a path until the path stops changing.
type settler struct {
	mu       sync.Mutex
	pending  map[string]*time.Timer
	stopped  bool
	inflight sync.WaitGroup // callbacks past the stopped check
}

func (s *Session) startWatcher() error {
	s.mu.Lock()
	running := s.watcher != nil
	s.mu.Unlock()
	if running {
		return nil
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w := &watcher{
		fs:      fw,
		done:    make(chan struct{}),
		settler: settler{pending: make(map[string]*time.Timer)},
	}
	for _, src := range s.watchSources {
		w.addRecursive(src)
	}

	s.mu.Lock()
	s.watcher = w
	s.mu.Unlock()

	go s.runWatcher(w)
	s.log.Info().Int("sources", len(s.watchSources)).Msg("Watching library sources")
	return nil
}

func (s *Session) stopWatcher() {
	s.mu.Lock()
	w := s.watcher
	s.watcher = nil
	s.mu.Unlock()
	if w == nil {
		return
	}

	w.stop()
	w.fs.Close()
	<-w.done
}

func (w *watcher) addRecursive(root string) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		_ = w.fs.Add(path)
		return nil
	})
}

func (s *Session) runWatcher(w *watcher) {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			s.handleFSEvent(w, ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			s.log.Warn().Err(err).Msg("Watch error")
		}
	}
}

func (s *Session) handleFSEvent(w *watcher, ev fsnotify.Event) {
	if ev.Has(fsnotify.Create) {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			w.addRecursive(ev.Name)
			return
		}
	}
	if !tags.IsMusicFile(ev.Name) {
		return
	}

	switch {
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		w.cancel(ev.Name)
		s.goAsync(func() { s.forget(ev.Name) })
	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
		w.schedule(ev.Name, func() { s.goAsync(func() { s.importFile(ev.Name) }) })
	}
}

// schedule runs fn once path has settled, restarting the delay on every
// change.
func (st *settler) schedule(path string, fn func()) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.stopped {
		return
	}
	if t, ok := st.pending[path]; ok {
		t.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(settleDelay, func() {
		st.mu.Lock()
		if st.pending[path] == t {
			delete(st.pending, path)
		}
		if st.stopped {
			st.mu.Unlock()
			return
		}
		st.inflight.Add(1)
		st.mu.Unlock()
		defer st.inflight.Done()
		fn()
	})
	st.pending[path] = t
}

func (st *settler) cancel(path string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if t, ok := st.pending[path]; ok {
		t.Stop()
		delete(st.pending, path)
	}
}

// stop drops pending work and waits for callbacks already running.
func (st *settler) stop() {
	st.mu.Lock()
	st.stopped = true
	for path, t := range st.pending {
		t.Stop()
		delete(st.pending, path)
	}
	st.mu.Unlock()
	st.inflight.Wait()
}

// importFile adds path to the library and refreshes the Inbox.
func (s *Session) importFile(path string) {
	t, created, err := s.lib.Import(path)
	if err != nil {
		s.log.Warn().Err(err).Str("path", path).Msg("Importing new file failed")
		return
	}
	if !created {
		return
	}
	s.log.Info().Str("path", path).Str("title", t.Title).Msg("Added new file to inbox")

	inbox, err := s.lib.Reserved(library.KindInbox)
	if err != nil {
		s.log.Error().Err(err).Msg("Looking up inbox failed")
		return
	}
	s.reloadByID(inbox.ID)
	s.containerChanged()
}

// forget removes path from the library and refreshes the playlists that
// contained it.
func (s *Session) forget(path string) {
	affected, err := s.lib.DeleteTrackByPath(path)
	if err != nil {
		if !errors.Is(err, library.ErrNotFound) {
			s.log.Warn().Err(err).Str("path", path).Msg("Removing file from library failed")
		}
		return
	}
	s.log.Info().Str("path", path).Int("playlists", len(affected)).Msg("Removed file from library")

	for _, id := range affected {
		s.reloadByID(id)
	}
	s.containerChanged()
}

func (s *Session) containerChanged() {
	s.mu.Lock()
	on := s.container
	s.mu.Unlock()
	if on && s.cb.MetadataUpdated != nil {
		s.post(s.cb.MetadataUpdated)
	}
}
