// Package workspace manages per-session working directories: result
// artifacts, user uploads and the session log, plus the TTL sweep and the
// zip download of a whole session.
package workspace

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"kgbot/app/config"

	"github.com/google/uuid"
	"github.com/samber/do"
)

const (
	inputDirName = "input_files"
	logFileName  = "kgbot.log"
)

type Service struct {
	cfg  *config.Config
	root string
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	if err := os.MkdirAll(cfg.Workspace.Root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create workspace root: %w", err)
	}

	return &Service{
		cfg:  cfg,
		root: cfg.Workspace.Root,
	}, nil
}

// Ensure creates the session directory tree on first contact and returns
// its absolute path.
func (s *Service) Ensure(sessionID string) (string, error) {
	dir, err := s.Dir(sessionID)
	if err != nil {
		return "", err
	}

	if err = os.MkdirAll(filepath.Join(dir, inputDirName), 0755); err != nil {
		return "", fmt.Errorf("failed to create session dir: %w", err)
	}

	return dir, nil
}

func (s *Service) Dir(sessionID string) (string, error) {
	if sessionID == "" {
		return "", fmt.Errorf("empty session id")
	}

	// Session ids come from clients; escaping keeps them inside the root.
	dir, err := filepath.Abs(filepath.Join(s.root, url.PathEscape(sessionID)))
	if err != nil {
		return "", fmt.Errorf("failed to resolve session dir: %w", err)
	}

	root, err := filepath.Abs(s.root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve workspace root: %w", err)
	}

	if !strings.HasPrefix(dir, root+string(filepath.Separator)) {
		return "", fmt.Errorf("session dir escapes workspace root")
	}

	return dir, nil
}

func (s *Service) InputDir(sessionID string) (string, error) {
	dir, err := s.Ensure(sessionID)
	if err != nil {
		return "", err
	}

	return filepath.Join(dir, inputDirName), nil
}

// NewArtifactPath allocates a fresh artifact file name inside the session
// directory, e.g. "<uuid>.csv".
func (s *Service) NewArtifactPath(sessionID, extension string) (string, error) {
	dir, err := s.Ensure(sessionID)
	if err != nil {
		return "", err
	}

	return filepath.Join(dir, uuid.NewString()+"."+strings.TrimPrefix(extension, ".")), nil
}

// LogFile opens the session log for appending.
func (s *Service) LogFile(sessionID string) (*os.File, error) {
	dir, err := s.Ensure(sessionID)
	if err != nil {
		return nil, err
	}

	return os.OpenFile(filepath.Join(dir, logFileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}

// SaveUpload stores an uploaded file under the session input directory.
func (s *Service) SaveUpload(sessionID, filename string, content io.Reader) (string, error) {
	inputDir, err := s.InputDir(sessionID)
	if err != nil {
		return "", err
	}

	target := filepath.Join(inputDir, filepath.Base(filename))

	file, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}
	defer file.Close()

	if _, err = io.Copy(file, content); err != nil {
		return "", fmt.Errorf("failed to write upload file: %w", err)
	}

	return target, nil
}

// Zip streams the whole session directory as a zip archive.
func (s *Service) Zip(sessionID string, w io.Writer) error {
	dir, err := s.Dir(sessionID)
	if err != nil {
		return err
	}

	if _, err = os.Stat(dir); err != nil {
		return fmt.Errorf("session not found: %w", err)
	}

	archive := zip.NewWriter(w)
	defer archive.Close()

	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}

		relative, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}

		entry, err := archive.Create(filepath.ToSlash(relative))
		if err != nil {
			return err
		}

		file, err := os.Open(path)
		if err != nil {
			return err
		}
		defer file.Close()

		_, err = io.Copy(entry, file)
		return err
	})
}

// Remove deletes a session directory and everything in it.
func (s *Service) Remove(sessionID string) error {
	dir, err := s.Dir(sessionID)
	if err != nil {
		return err
	}

	return os.RemoveAll(dir)
}

// RunSweeper removes session directories untouched for longer than the TTL.
func (s *Service) RunSweeper(ctx context.Context) {
	ttl := time.Duration(s.cfg.Workspace.TTLHours) * time.Hour

	ticker := time.NewTicker(ttl / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(time.Now().Add(-ttl))
		}
	}
}

func (s *Service) sweep(olderThan time.Time) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		slog.Error("Workspace sweep failed", "error", err)
		return
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(olderThan) {
			path := filepath.Join(s.root, entry.Name())
			if err = os.RemoveAll(path); err != nil {
				slog.Warn("Failed to remove expired session dir", "path", path, "error", err)
			} else {
				slog.Info("Removed expired session dir", "path", path)
			}
		}
	}
}
