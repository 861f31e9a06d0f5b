package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps all documents in a single JSON file. Every operation reads
// the file, and every change rewrites it under an exclusive lock on a sibling
// .lock file, so several processes (the scheduler and the CLI) can share it.
type FileStore struct {
	mu       sync.Mutex
	filePath string
	lockPath string
}

// NewFileStore creates or opens the store at path
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		path = filepath.Join(".cache", "store.json")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	fs := &FileStore{filePath: path, lockPath: path + ".lock"}
	if _, err := fs.read(); err != nil {
		return nil, err
	}
	return fs, nil
}

func (fs *FileStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := fs.read()
	if err != nil {
		return nil, false, err
	}
	v, ok := data[key]
	if !ok {
		return nil, false, nil
	}
	return []byte(v), true, nil
}

func (fs *FileStore) Set(_ context.Context, key string, value []byte) error {
	if !json.Valid(value) {
		return fmt.Errorf("store %s: value is not valid JSON", key)
	}
	return fs.update(func(data map[string]json.RawMessage) bool {
		data[key] = append(json.RawMessage(nil), value...)
		return true
	})
}

func (fs *FileStore) Delete(_ context.Context, key string) error {
	return fs.update(func(data map[string]json.RawMessage) bool {
		if _, ok := data[key]; !ok {
			return false
		}
		delete(data, key)
		return true
	})
}

func (fs *FileStore) Close() error { return nil }

// update re-reads the file under the lock, applies fn and writes the result
// back when fn reports a change. Keys written by other processes survive.
func (fs *FileStore) update(fn func(map[string]json.RawMessage) bool) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	unlock, err := lockFile(fs.lockPath)
	if err != nil {
		return fmt.Errorf("failed to lock store: %w", err)
	}
	defer unlock()

	data, err := fs.read()
	if err != nil {
		return err
	}
	if !fn(data) {
		return nil
	}
	return fs.write(data)
}

// read loads the whole file; a missing or empty file is an empty store
func (fs *FileStore) read() (map[string]json.RawMessage, error) {
	data := make(map[string]json.RawMessage)
	raw, err := os.ReadFile(fs.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return data, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", fs.filePath, err)
	}
	if len(raw) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", fs.filePath, err)
	}
	return data, nil
}

// write goes through a temp file so readers never see a truncated store
func (fs *FileStore) write(data map[string]json.RawMessage) error {
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal store: %w", err)
	}
	tmp := fs.filePath + ".tmp"
	if err := os.WriteFile(tmp, out, 0o644); err != nil {
		return fmt.Errorf("failed to write store: %w", err)
	}
	if err := os.Rename(tmp, fs.filePath); err != nil {
		return fmt.Errorf("failed to replace store: %w", err)
	}
	return nil
}
