package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/pauljones0/rental-watch-bot/internal/models"
)

// FileStore keeps the seen set as a pretty-printed JSON array of strings.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store backed by path. The file need not exist yet.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file location.
func (s *FileStore) Path() string {
	return s.path
}

// Load never fails: a missing, unreadable or corrupt file yields an empty set.
func (s *FileStore) Load(_ context.Context) (models.SeenSet, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Info("Seen file not found, starting with empty history", "path", s.path)
		} else {
			slog.Warn("Failed to read seen file, starting with empty history", "path", s.path, "error", err)
		}
		return models.NewSeenSet(), nil
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		slog.Warn("Seen file is corrupt, starting with empty history", "path", s.path, "error", err)
		return models.NewSeenSet(), nil
	}

	seen := models.NewSeenSet()
	for _, id := range ids {
		if id != "" {
			seen.Add(id)
		}
	}
	slog.Debug("Loaded seen set", "path", s.path, "count", seen.Len())
	return seen, nil
}

// Save replaces the file contents with seen, sorted. The write goes to a
// temporary file in the same directory which is then renamed over the target.
func (s *FileStore) Save(_ context.Context, seen models.SeenSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(seen.Sorted(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal seen set: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}
