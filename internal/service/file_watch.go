package service

import (
	"errors"
	"log"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// ── SQLite file watch ──────────────────────────────────────

// fileWatcher watches the directories of open sqlite files, reference
// counted so two sessions in one directory share a watch.
type fileWatcher struct {
	w    *fsnotify.Watcher
	done chan struct{}

	mu     sync.Mutex
	dirs   map[string]int
	closed bool
}

func (s *DatabaseService) startWatcher() {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("[WATCH] failed to create watcher: %v", err)
		return
	}
	fw := &fileWatcher{w: w, done: make(chan struct{}), dirs: make(map[string]int)}
	s.watcher = fw
	go fw.run(s.onFileGone)
}

func (s *DatabaseService) stopWatcher() {
	if s.watcher != nil {
		s.watcher.close()
	}
}

func (s *DatabaseService) watch(sess *Session) {
	if p := watchPath(sess.filePath); p != "" && s.watcher != nil {
		s.watcher.add(p)
	}
}

func (s *DatabaseService) unwatch(sess *Session) {
	if p := watchPath(sess.filePath); p != "" && s.watcher != nil {
		s.watcher.remove(p)
	}
}

// onFileGone evicts every session backed by path.
func (s *DatabaseService) onFileGone(path string) {
	s.mu.Lock()
	var ids []int64
	for id, sess := range s.sessions {
		if watchPath(sess.filePath) == path {
			ids = append(ids, id)
		}
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.locks.Lock(id)
		s.mu.Lock()
		sess, ok := s.sessions[id]
		match := ok && watchPath(sess.filePath) == path
		s.mu.Unlock()
		if match {
			s.evict(id, "file removed")
		}
		s.locks.Unlock(id)
	}
}

// watchPath is the absolute form of a sqlite file, or "" for in-memory
// and networked sessions.
func watchPath(path string) string {
	if path == "" || path == ":memory:" {
		return ""
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return ""
	}
	return abs
}

func (fw *fileWatcher) run(onGone func(path string)) {
	defer close(fw.done)
	for {
		select {
		case event, ok := <-fw.w.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if p := watchPath(event.Name); p != "" {
				onGone(p)
			}
		case err, ok := <-fw.w.Errors:
			if !ok {
				return
			}
			log.Printf("[WATCH] error: %v", err)
		}
	}
}

func (fw *fileWatcher) add(path string) {
	dir := filepath.Dir(path)
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.closed {
		return
	}
	if fw.dirs[dir] == 0 {
		if err := fw.w.Add(dir); err != nil {
			log.Printf("[WATCH] failed to watch dir %q: %v", dir, err)
			return
		}
	}
	fw.dirs[dir]++
}

func (fw *fileWatcher) remove(path string) {
	dir := filepath.Dir(path)
	fw.mu.Lock()
	defer fw.mu.Unlock()
	n := fw.dirs[dir]
	if fw.closed || n == 0 {
		return
	}
	if n > 1 {
		fw.dirs[dir] = n - 1
		return
	}
	delete(fw.dirs, dir)
	// a removed directory drops its watch on its own
	if err := fw.w.Remove(dir); err != nil && !errors.Is(err, fsnotify.ErrNonExistentWatch) {
		log.Printf("[WATCH] failed to unwatch dir %q: %v", dir, err)
	}
}

func (fw *fileWatcher) close() {
	fw.mu.Lock()
	if fw.closed {
		fw.mu.Unlock()
		return
	}
	fw.closed = true
	fw.mu.Unlock()

	if err := fw.w.Close(); err != nil {
		log.Printf("[WATCH] close: %v", err)
	}
	<-fw.done
}
