package store

import (
	"context"
	"errors"
	"strings"

	appLog "classcal/internal/log"
	"classcal/internal/model"
)

var ErrClosed = errors.New("store closed")

// Config configures storage.
//
// If Driver is empty, "file" is used.
type Config struct {
	Driver string `yaml:"driver" json:"driver"`
	Path   string `yaml:"path" json:"path"`
}

// Store loads and saves the full definition snapshot. Load always returns
// a fresh copy; callers may keep it for the duration of one render cycle.
type Store interface {
	Load(ctx context.Context) ([]model.EventDefinition, error)
	Save(ctx context.Context, defs []model.EventDefinition) error
	Close() error
}

// Watcher is implemented by stores that can notify about external changes.
type Watcher interface {
	Watch(ctx context.Context, onChange func()) error
}

// Open initializes the configured store.
func Open(cfg Config) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" {
		driver = "file"
	}

	appLog.Info("opening store", "driver", driver, "path", cfg.Path)

	switch driver {
	case "file", "json":
		return openFile(cfg)
	case "sqlite", "sqlite3":
		return openSQLite(cfg)
	case "memory", "mem":
		return NewMemory(nil), nil
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
