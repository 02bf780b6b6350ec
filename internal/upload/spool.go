package upload

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"keyvisor/internal/common/fsutil"
	"keyvisor/internal/event"
)

// Publisher is the part of the bus the spool needs.
type Publisher interface {
	Publish(event.Event)
}

// Spool watches an inbox directory. Every regular file that appears becomes
// an upload request; deleting or moving the file away cancels it. Writers
// should move complete files into the inbox rather than writing in place.
type Spool struct {
	dir string
	pub Publisher
	log zerolog.Logger

	mu    sync.Mutex
	known map[string]string // path -> upload id
}

// NewSpool returns a spool for dir. A leading "~" is expanded.
func NewSpool(dir string, pub Publisher, log zerolog.Logger) (*Spool, error) {
	abs, err := fsutil.Resolve(dir)
	if err != nil {
		return nil, err
	}
	return &Spool{
		dir:   abs,
		pub:   pub,
		log:   log.With().Str("component", "spool").Str("dir", abs).Logger(),
		known: make(map[string]string),
	}, nil
}

// Dir returns the absolute inbox directory.
func (s *Spool) Dir() string { return s.dir }

// SpoolID derives the stable upload id for a spooled path.
func SpoolID(path string) string {
	return "spool-" + uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+path)).String()
}

// Run requests every file already in the inbox, then follows changes until
// ctx is done.
func (s *Spool) Run(ctx context.Context) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create spool dir: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(s.dir); err != nil {
		return fmt.Errorf("watch %s: %w", s.dir, err)
	}

	files, err := ScanDir(s.dir)
	if err != nil {
		return err
	}
	for _, p := range files {
		s.request(p)
	}
	s.log.Info().Int("files", len(files)).Msg("spool watching")

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			s.handle(ev)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.log.Warn().Err(err).Msg("watch error")
		}
	}
}

func (s *Spool) handle(ev fsnotify.Event) {
	if ignored(filepath.Base(ev.Name)) {
		return
	}
	switch {
	case ev.Has(fsnotify.Create):
		if _, err := fsutil.RegularFile(ev.Name); err != nil {
			return
		}
		s.request(ev.Name)
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		s.cancel(ev.Name)
	}
}

func (s *Spool) request(path string) {
	s.mu.Lock()
	if _, ok := s.known[path]; ok {
		s.mu.Unlock()
		return
	}
	id := SpoolID(path)
	s.known[path] = id
	s.mu.Unlock()

	s.log.Debug().Str("path", path).Str("upload", id).Msg("spooled file")
	s.pub.Publish(Request(id, path, ""))
}

func (s *Spool) cancel(path string) {
	s.mu.Lock()
	id, ok := s.known[path]
	delete(s.known, path)
	s.mu.Unlock()
	if !ok {
		return
	}
	s.log.Debug().Str("path", path).Str("upload", id).Msg("spooled file removed")
	s.pub.Publish(Cancel(id))
}

// ScanDir lists the regular, non-hidden files directly inside dir.
func ScanDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || ignored(e.Name()) {
			continue
		}
		if !e.Type().IsRegular() {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	return files, nil
}

// ignored skips hidden files and in-progress temporaries.
func ignored(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".tmp") || strings.HasSuffix(name, ".part")
}
