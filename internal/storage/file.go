package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const (
	itemExt   = ".item"
	tmpPrefix = ".tmp-"
)

type selfWrite struct {
	value   string
	removed bool
}

// FileStore keeps one file per key in a profile directory. Writes are atomic
// (temp file + rename) so concurrent processes never see partial values.
type FileStore struct {
	dir string
	log zerolog.Logger
	hub *hub

	mu   sync.Mutex
	self map[string]selfWrite

	watchOnce sync.Once
	watchErr  error
	watcher   *fsnotify.Watcher
	wg        sync.WaitGroup
}

func NewFileStore(dir string, log zerolog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &FileStore{
		dir:  dir,
		log:  log.With().Str("component", "file-storage").Logger(),
		hub:  newHub(),
		self: make(map[string]selfWrite),
	}, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, url.PathEscape(key)+itemExt)
}

func keyFromPath(path string) (string, bool) {
	name := filepath.Base(path)
	if strings.HasPrefix(name, tmpPrefix) || !strings.HasSuffix(name, itemExt) {
		return "", false
	}
	key, err := url.PathUnescape(strings.TrimSuffix(name, itemExt))
	if err != nil {
		return "", false
	}
	return key, true
}

func (s *FileStore) GetItem(_ context.Context, key string) (string, error) {
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("read item %s: %w", key, err)
	}
	return string(data), nil
}

func (s *FileStore) SetItem(_ context.Context, key, value string) error {
	tmp, err := os.CreateTemp(s.dir, tmpPrefix+"*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := tmp.WriteString(value); err != nil {
		tmp.Close()
		return fmt.Errorf("write item %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	s.mu.Lock()
	s.self[key] = selfWrite{value: value}
	s.mu.Unlock()

	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		return fmt.Errorf("replace item %s: %w", key, err)
	}
	return nil
}

func (s *FileStore) RemoveItem(_ context.Context, key string) error {
	s.mu.Lock()
	s.self[key] = selfWrite{removed: true}
	s.mu.Unlock()

	err := os.Remove(s.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove item %s: %w", key, err)
	}
	return nil
}

// Watch starts the fsnotify watcher on first use.
func (s *FileStore) Watch(ctx context.Context) (<-chan Change, error) {
	s.watchOnce.Do(func() {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			s.watchErr = fmt.Errorf("create watcher: %w", err)
			return
		}
		if err := w.Add(s.dir); err != nil {
			w.Close()
			s.watchErr = fmt.Errorf("watch %s: %w", s.dir, err)
			return
		}
		s.watcher = w
		s.wg.Add(1)
		go s.processEvents()
	})
	if s.watchErr != nil {
		return nil, s.watchErr
	}
	return s.hub.subscribe(ctx)
}

func (s *FileStore) processEvents() {
	defer s.wg.Done()
	for {
		select {
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			s.handleEvent(ev)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.log.Warn().Err(err).Msg("storage watch error")
		}
	}
}

func (s *FileStore) handleEvent(ev fsnotify.Event) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return
	}
	key, ok := keyFromPath(ev.Name)
	if !ok || !s.hub.watching() {
		return
	}

	current := selfWrite{removed: true}
	if data, err := os.ReadFile(ev.Name); err == nil {
		current = selfWrite{value: string(data)}
	}

	s.mu.Lock()
	last, wroteIt := s.self[key]
	s.mu.Unlock()
	if wroteIt && last == current {
		return
	}

	s.log.Debug().Str("key", key).Bool("removed", current.removed).Msg("external storage change")
	s.hub.publish(Change{Key: key, Removed: current.removed})
}

func (s *FileStore) Close() error {
	var err error
	if s.watcher != nil {
		err = s.watcher.Close()
		s.wg.Wait()
	}
	s.hub.close()
	return err
}
