// Package local persists robots.txt bodies on the local filesystem.
//
// Each key is stored in its own file named by the SHA-256 of the key. The
// first line of the file holds the expiry as Unix nanoseconds (0 when the
// entry never expires); the rest is the stored payload.
package local

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/JakeFAU/redprobe/internal/hash/sha256"
)

// Config captures the parameters for the local filesystem store.
type Config struct {
	// BaseDir is the root directory where entries will be stored.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
}

// Store writes entries to the local filesystem.
type Store struct {
	baseDir string
	hasher  *sha256.Hasher
	now     func() time.Time
}

// New creates a new local filesystem-backed store.
func New(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	info, err := os.Stat(cfg.BaseDir)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat base directory: %w", err)
		}
		if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("failed to create base directory: %w", mkErr)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("base directory path is not a directory")
	}

	testFile := filepath.Join(cfg.BaseDir, ".writable_test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	if err := os.Remove(testFile); err != nil {
		return nil, fmt.Errorf("failed to clean up test file: %w", err)
	}

	return &Store{
		baseDir: cfg.BaseDir,
		hasher:  sha256.New(),
		now:     time.Now,
	}, nil
}

// Read returns the payload stored under key. Expired files are removed.
func (s *Store) Read(_ context.Context, key string) ([]byte, bool, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, false, err
	}
	raw, err := os.ReadFile(path) // #nosec G304 -- path is a hash inside baseDir.
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read entry: %w", err)
	}
	header, payload, found := bytes.Cut(raw, []byte("\n"))
	if !found {
		return nil, false, fmt.Errorf("read entry: malformed file %s", filepath.Base(path))
	}
	expires, err := strconv.ParseInt(string(header), 10, 64)
	if err != nil {
		return nil, false, fmt.Errorf("read entry: bad expiry: %w", err)
	}
	if expires != 0 && s.now().UnixNano() >= expires {
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			return nil, false, fmt.Errorf("remove expired entry: %w", rmErr)
		}
		return nil, false, nil
	}
	return payload, true, nil
}

// Write stores data under key. A non-positive ttl never expires.
func (s *Store) Write(_ context.Context, key string, data []byte, ttl time.Duration) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	var expires int64
	if ttl > 0 {
		expires = s.now().Add(ttl).UnixNano()
	}
	buf := make([]byte, 0, len(data)+20)
	buf = strconv.AppendInt(buf, expires, 10)
	buf = append(buf, '\n')
	buf = append(buf, data...)

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf, 0o600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to move file into place: %w", err)
	}
	return nil
}

// Delete removes the file for key. Missing files are not an error.
func (s *Store) Delete(_ context.Context, key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete entry: %w", err)
	}
	return nil
}

func (s *Store) path(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("key is required")
	}
	name, err := s.hasher.Hash([]byte(key))
	if err != nil {
		return "", fmt.Errorf("hash key: %w", err)
	}
	fullPath := filepath.Join(s.baseDir, name)

	cleanBaseDir := filepath.Clean(s.baseDir)
	if !strings.HasPrefix(filepath.Clean(fullPath), cleanBaseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected")
	}
	return fullPath, nil
}
