// Package slot stores opaque JSON documents under string keys. Each backend
// satisfies history.Persister.
package slot

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidKey = errors.New("slot: invalid key")

// Store is the common shape of every backend.
type Store interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	Close() error
}

// Config picks a backend. Empty Backend means file.
type Config struct {
	Backend     string
	Path        string
	SQLitePath  string
	PostgresDSN string
}

func Open(ctx context.Context, cfg Config) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "file":
		return NewFileStore(cfg.Path)
	case "sqlite":
		return NewSQLite(ctx, cfg.SQLitePath)
	case "postgres", "pg":
		return NewPostgres(ctx, cfg.PostgresDSN)
	case "memory":
		return NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("slot: unknown backend %q", cfg.Backend)
}

func checkKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" || len(key) > 200 {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return key, nil
}
