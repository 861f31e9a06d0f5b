// Package store is the key-value persistence used for user settings and the
// results of the last scrape. Values are JSON documents addressed by key.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Store keeps JSON documents by key
type Store interface {
	// Get returns the raw document and whether it exists
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Well-known keys
const (
	KeySettings         = "settings"
	KeyLastScrapedJobs  = "lastScrapedJobs"
	KeyLastExternalJobs = "lastExternalJobs"
	KeyLastScrapeTime   = "lastScrapeTime"
	KeySeenJobs         = "seenJobs"
)

// ErrUnknownBackend is returned by Open for an unsupported backend name
var ErrUnknownBackend = errors.New("unknown store backend")

// Load decodes the document at key into a T. A missing key yields the zero T and false.
func Load[T any](ctx context.Context, s Store, key string) (T, bool, error) {
	var v T
	data, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return v, false, err
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, false, fmt.Errorf("decode %s: %w", key, err)
	}
	return v, true, nil
}

// Save encodes value as JSON under key
func Save(ctx context.Context, s Store, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(ctx, key, data)
}

// Config selects and configures a backend
type Config struct {
	Backend     string `yaml:"backend"` // file, memory, redis, postgres
	Path        string `yaml:"path"`    // file backend
	RedisURL    string `yaml:"redis_url"`
	RedisPrefix string `yaml:"redis_prefix"`
	DatabaseURL string `yaml:"database_url"`
}

// Open creates the configured backend
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case "file", "":
		return NewFileStore(cfg.Path)
	case "memory":
		return NewMemoryStore(), nil
	case "redis":
		return NewRedisStore(ctx, cfg.RedisURL, cfg.RedisPrefix)
	case "postgres":
		return NewPostgresStore(ctx, cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}
