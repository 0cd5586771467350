package checkpoint

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FileStore keeps one state file per thread under dir/checkpoints.
type FileStore struct {
	dir string
	mu  sync.RWMutex
}

func NewFile(dir string) (*FileStore, error) {
	dir = filepath.Join(dir, "checkpoints")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint dir: %w", err)
	}

	return &FileStore{dir: dir}, nil
}

func (s *FileStore) Load(_ context.Context, threadID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path(threadID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	return data, nil
}

func (s *FileStore) Save(_ context.Context, threadID string, state []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.WriteFile(s.path(threadID), state, 0644); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}

	return nil
}

func (s *FileStore) Sweep(_ context.Context, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to list checkpoints: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(olderThan) {
			if err = os.Remove(filepath.Join(s.dir, entry.Name())); err == nil {
				removed++
			}
		}
	}

	return removed, nil
}

func (s *FileStore) path(threadID string) string {
	return filepath.Join(s.dir, url.PathEscape(threadID)+".json")
}
