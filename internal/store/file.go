package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	appLog "classcal/internal/log"
	"classcal/internal/model"
)

const watchDebounce = 250 * time.Millisecond

// fileStore keeps the definitions as a JSON array in one file.
type fileStore struct {
	path string

	// mu serializes writers within this process; readers go to disk.
	mu sync.Mutex
}

func openFile(cfg Config) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("store.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	return &fileStore{path: path}, nil
}

// Load reads the file. A missing file is an empty list.
func (s *fileStore) Load(_ context.Context) ([]model.EventDefinition, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []model.EventDefinition{}, nil
		}
		return nil, err
	}
	defs, err := DecodeDefinitions(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}
	return defs, nil
}

// Save writes defs atomically via a temp file + rename, with 0600 perms.
func (s *fileStore) Save(_ context.Context, defs []model.EventDefinition) error {
	data, err := EncodeDefinitions(defs)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".classcal-defs-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, s.path)
}

func (s *fileStore) Close() error { return nil }

// Watch calls onChange (debounced) whenever the file is written, created or
// replaced, until ctx is done. The parent directory is watched so atomic
// renames are seen.
func (s *fileStore) Watch(ctx context.Context, onChange func()) error {
	dir := filepath.Dir(s.path)
	target := filepath.Clean(s.path)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return err
	}

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	debounce := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(watchDebounce, onChange)
	}
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				appLog.Debug("store file changed", "path", s.path, "op", ev.Op.String())
				debounce()
			}
		case werr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			appLog.Error("store watch error", werr, "path", s.path)
		}
	}
}
