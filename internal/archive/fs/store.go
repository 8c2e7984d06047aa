// Package fs archives backups in a local directory.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Veraticus/the-budget-must-balance/internal/archive"
)

// Store implements archive.Store on the local filesystem. Keys map to
// relative file paths under the root.
type Store struct {
	root string
}

// New returns a store rooted at root, creating the directory if needed.
func New(root string) (*Store, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("archive directory required")
	}
	if err := os.MkdirAll(root, 0750); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	return &Store{root: root}, nil
}

func (s *Store) pathFor(key string) (string, string, error) {
	clean, err := archive.CleanKey(key)
	if err != nil {
		return "", "", err
	}
	return clean, filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

// Put writes r under key. Existing keys are never overwritten.
func (s *Store) Put(_ context.Context, key string, r io.Reader) (archive.Info, error) {
	clean, dataPath, err := s.pathFor(key)
	if err != nil {
		return archive.Info{}, err
	}
	if _, err := os.Stat(dataPath); err == nil {
		return archive.Info{}, fmt.Errorf("%s: %w", clean, archive.ErrExists)
	}
	if err := os.MkdirAll(filepath.Dir(dataPath), 0750); err != nil {
		return archive.Info{}, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dataPath), ".tmp-*")
	if err != nil {
		return archive.Info{}, err
	}
	defer func() {
		if rmErr := os.Remove(tmp.Name()); rmErr != nil && !os.IsNotExist(rmErr) {
			slog.Debug("failed to remove temporary archive file", "error", rmErr)
		}
	}()

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return archive.Info{}, err
	}
	if err := tmp.Close(); err != nil {
		return archive.Info{}, err
	}
	if err := os.Rename(tmp.Name(), dataPath); err != nil {
		return archive.Info{}, err
	}

	stat, err := os.Stat(dataPath)
	if err != nil {
		return archive.Info{}, err
	}
	return archive.Info{Key: clean, Size: stat.Size(), LastModified: stat.ModTime().UTC()}, nil
}

// Get opens the backup stored under key.
func (s *Store) Get(_ context.Context, key string) (io.ReadCloser, error) {
	clean, dataPath, err := s.pathFor(key)
	if err != nil {
		return nil, err
	}
	// #nosec G304 - path is confined to the archive root by CleanKey
	f, err := os.Open(dataPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", clean, archive.ErrNotFound)
		}
		return nil, err
	}
	return f, nil
}

// List returns every archived backup whose key starts with prefix, sorted by key.
func (s *Store) List(_ context.Context, prefix string) ([]archive.Info, error) {
	infos := []archive.Info{}
	err := filepath.WalkDir(s.root, func(p string, d iofs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".tmp-") {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if prefix != "" && !strings.HasPrefix(key, prefix) {
			return nil
		}
		stat, err := d.Info()
		if err != nil {
			return err
		}
		infos = append(infos, archive.Info{Key: key, Size: stat.Size(), LastModified: stat.ModTime().UTC()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list archive: %w", err)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}
