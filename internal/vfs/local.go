package vfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/pkg/types"
)

// Local is a filesystem rooted at a directory on disk.
type Local struct {
	root string
}

// NewLocal creates a local filesystem rooted at dir, creating it if needed.
func NewLocal(dir string) (*Local, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", abs, err)
	}
	return &Local{root: abs}, nil
}

func (l *Local) abs(name string) string {
	return filepath.Join(l.root, filepath.FromSlash(Clean(name)))
}

func notExist(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %v", ErrNotExist, err)
	}
	return err
}

// Describe returns the root directory.
func (l *Local) Describe() string { return l.root }

// Walk lists every regular file under root.
func (l *Local) Walk(_ context.Context, root string) ([]types.FileInfo, error) {
	base := l.abs(root)
	if _, err := os.Stat(base); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	var out []types.FileInfo
	err := filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(l.root, p)
		if err != nil {
			return err
		}
		out = append(out, types.FileInfo{Path: filepath.ToSlash(rel), Size: info.Size(), ModTime: info.ModTime().UTC()})
		return nil
	})
	if err != nil {
		return nil, notExist(err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// MkdirAll creates a directory and its parents.
func (l *Local) MkdirAll(_ context.Context, dir string) error {
	return os.MkdirAll(l.abs(dir), 0o755)
}

// Open opens a file for reading.
func (l *Local) Open(_ context.Context, name string) (io.ReadCloser, error) {
	f, err := os.Open(l.abs(name))
	if err != nil {
		return nil, notExist(err)
	}
	return f, nil
}

// Create creates a file, making parent directories as needed.
func (l *Local) Create(_ context.Context, name string) (io.WriteCloser, error) {
	p := l.abs(name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return nil, err
	}
	return os.Create(p)
}

// Exists reports whether a file or directory exists.
func (l *Local) Exists(_ context.Context, name string) (bool, error) {
	_, err := os.Stat(l.abs(name))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Stat describes a file.
func (l *Local) Stat(_ context.Context, name string) (types.FileInfo, error) {
	info, err := os.Stat(l.abs(name))
	if err != nil {
		return types.FileInfo{}, notExist(err)
	}
	return types.FileInfo{Path: Clean(name), Size: info.Size(), ModTime: info.ModTime().UTC()}, nil
}

// ListDir lists a directory's children.
func (l *Local) ListDir(_ context.Context, dir string) ([]string, error) {
	entries, err := os.ReadDir(l.abs(dir))
	if err != nil {
		return nil, notExist(err)
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	sort.Strings(names)
	return names, nil
}

// Remove deletes a single file.
func (l *Local) Remove(_ context.Context, name string) error {
	return notExist(os.Remove(l.abs(name)))
}

// RemoveAll deletes a directory tree.
func (l *Local) RemoveAll(_ context.Context, dir string) error {
	if Clean(dir) == "" {
		return fmt.Errorf("refusing to remove filesystem root")
	}
	return os.RemoveAll(l.abs(dir))
}

// Sub returns a filesystem rooted at dir.
func (l *Local) Sub(dir string) (FS, error) {
	return NewLocal(l.abs(dir))
}
