package core

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileStore persists values in a single JSON file. It backs the default
// token store for a standalone terminal: one well-known key, read at
// startup, written on login, cleared on logout.
type FileStore struct {
	mu     sync.Mutex
	path   string
	logger Logger
}

type fileEntry struct {
	Value     string     `json:"value"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// NewFileStore creates a file-backed store at the given path.
// Parent directories are created on first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, logger: &NoOpLogger{}}
}

// SetLogger configures the logger for this store
func (f *FileStore) SetLogger(logger Logger) {
	if logger != nil {
		f.logger = logger
	}
}

func (f *FileStore) load() (map[string]fileEntry, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return map[string]fileEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading token file: %w", err)
	}

	entries := map[string]fileEntry{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &entries); err != nil {
			// A corrupt token file means a fresh login, not a crash.
			f.logger.Warn("Discarding unreadable token file", map[string]interface{}{
				"path":  f.path,
				"error": err.Error(),
			})
			return map[string]fileEntry{}, nil
		}
	}
	return entries, nil
}

func (f *FileStore) save(entries map[string]fileEntry) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encoding token file: %w", err)
	}
	if err := os.WriteFile(f.path, data, 0o600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	return nil
}

// Get retrieves a value; expired or missing keys return ""
func (f *FileStore) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.load()
	if err != nil {
		return "", err
	}
	entry, ok := entries[key]
	if !ok {
		return "", nil
	}
	if entry.ExpiresAt != nil && time.Now().After(*entry.ExpiresAt) {
		return "", nil
	}
	return entry.Value, nil
}

// Set stores a value with an optional TTL (zero means no expiry)
func (f *FileStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.load()
	if err != nil {
		return err
	}
	entry := fileEntry{Value: value}
	if ttl > 0 {
		t := time.Now().Add(ttl)
		entry.ExpiresAt = &t
	}
	entries[key] = entry
	return f.save(entries)
}

// Delete removes a key; deleting a missing key is a no-op
func (f *FileStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := entries[key]; !ok {
		return nil
	}
	delete(entries, key)
	return f.save(entries)
}

// Exists reports whether a non-expired value is present
func (f *FileStore) Exists(ctx context.Context, key string) (bool, error) {
	v, err := f.Get(ctx, key)
	if err != nil {
		return false, err
	}
	return v != "", nil
}
