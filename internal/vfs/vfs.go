// Package vfs defines the filesystem abstraction every pipeline stage reads
// and writes through, with local-disk, in-memory and S3 implementations.
package vfs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/pkg/types"
)

// ErrNotExist is returned when a path does not exist.
var ErrNotExist = errors.New("file does not exist")

// FS is the filesystem interface. Paths are slash-separated and relative to
// the filesystem root; a leading slash is ignored.
type FS interface {
	// Walk returns every regular file under root, sorted by path.
	Walk(ctx context.Context, root string) ([]types.FileInfo, error)
	MkdirAll(ctx context.Context, dir string) error
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// Create truncates or creates a file. Content is committed on Close.
	Create(ctx context.Context, name string) (io.WriteCloser, error)
	Exists(ctx context.Context, name string) (bool, error)
	Stat(ctx context.Context, name string) (types.FileInfo, error)
	// ListDir returns the sorted names of the immediate children of dir.
	ListDir(ctx context.Context, dir string) ([]string, error)
	Remove(ctx context.Context, name string) error
	RemoveAll(ctx context.Context, dir string) error
	Sub(dir string) (FS, error)
	// Describe returns a human-readable location, used in logs.
	Describe() string
}

// Clean normalises a path to the slash-separated, root-relative form.
func Clean(p string) string {
	p = path.Clean("/" + strings.ReplaceAll(p, "\\", "/"))
	return strings.TrimPrefix(p, "/")
}

// Join joins path elements.
func Join(elem ...string) string {
	return Clean(path.Join(elem...))
}

// ReadFile reads a whole file.
func ReadFile(ctx context.Context, fsys FS, name string) ([]byte, error) {
	rc, err := fsys.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return data, nil
}

// WriteFile creates name and streams content into it through fn.
func WriteFile(ctx context.Context, fsys FS, name string, fn func(w io.Writer) error) error {
	wc, err := fsys.Create(ctx, name)
	if err != nil {
		return err
	}
	if err := fn(wc); err != nil {
		_ = wc.Close()
		return err
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", name, err)
	}
	return nil
}

// WriteBytes writes data to name.
func WriteBytes(ctx context.Context, fsys FS, name string, data []byte) error {
	return WriteFile(ctx, fsys, name, func(w io.Writer) error {
		_, err := io.Copy(w, bytes.NewReader(data))
		return err
	})
}

// Move copies a file from one filesystem to another and removes the source.
func Move(ctx context.Context, src FS, srcPath string, dst FS, dstPath string) error {
	rc, err := src.Open(ctx, srcPath)
	if err != nil {
		return err
	}
	err = WriteFile(ctx, dst, dstPath, func(w io.Writer) error {
		_, err := io.Copy(w, rc)
		return err
	})
	_ = rc.Close()
	if err != nil {
		return fmt.Errorf("copying %s: %w", srcPath, err)
	}
	if err := src.Remove(ctx, srcPath); err != nil {
		return fmt.Errorf("removing %s after copy: %w", srcPath, err)
	}
	return nil
}
