// Package profiles manages the per-session browser profile directories in
// which the automation persists pairing credentials.
package profiles

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/GriffinCanCode/sessiongate/internal/shared/utils"
	"github.com/charlievieth/fastwalk"
	"go.uber.org/zap"
)

// ErrOutsideRoot is returned for session ids that would escape the root
var ErrOutsideRoot = errors.New("profile path escapes profile root")

// Usage describes the disk footprint of one profile
type Usage struct {
	Files int64 `json:"files"`
	Bytes int64 `json:"bytes"`
}

// Store resolves and removes profile directories under one root
type Store struct {
	root   string
	logger *zap.Logger
}

// NewStore creates a store rooted at root, creating it if needed
func NewStore(root string, logger *zap.Logger) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve profile root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create profile root: %w", err)
	}
	return &Store{root: abs, logger: logger.Named("profiles")}, nil
}

// Root returns the absolute profile root
func (s *Store) Root() string {
	return s.root
}

// Path returns the profile directory for sessionID
func (s *Store) Path(sessionID string) (string, error) {
	if err := utils.ValidateSessionID(sessionID); err != nil {
		return "", err
	}
	dir := filepath.Join(s.root, sessionID)
	if !strings.HasPrefix(dir, s.root+string(filepath.Separator)) {
		return "", ErrOutsideRoot
	}
	return dir, nil
}

// Delete removes the profile directory of sessionID. A missing directory is
// not an error.
func (s *Store) Delete(sessionID string) error {
	dir, err := s.Path(sessionID)
	if err != nil {
		return err
	}

	if _, err := os.Lstat(dir); errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	usage, _ := s.Usage(context.Background(), sessionID)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove profile %s: %w", dir, err)
	}

	s.logger.Info("Session folder deleted",
		zap.String("session", sessionID),
		zap.String("path", dir),
		zap.Int64("files", usage.Files),
		zap.Int64("bytes", usage.Bytes))
	return nil
}

// Usage walks a profile and sums its regular files
func (s *Store) Usage(ctx context.Context, sessionID string) (Usage, error) {
	dir, err := s.Path(sessionID)
	if err != nil {
		return Usage{}, err
	}

	var files, bytes atomic.Int64
	conf := fastwalk.Config{Follow: false}

	// fastwalk invokes the callback from several goroutines.
	err = fastwalk.Walk(&conf, dir, func(p string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		files.Add(1)
		bytes.Add(info.Size())
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Usage{}, fmt.Errorf("walk profile %s: %w", dir, err)
	}

	return Usage{Files: files.Load(), Bytes: bytes.Load()}, nil
}

// List returns the session ids that have a profile on disk
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() && utils.ValidateSessionID(e.Name()) == nil {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}
