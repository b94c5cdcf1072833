package vfs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/pkg/types"
)

type memFile struct {
	data    []byte
	modTime time.Time
}

type memStore struct {
	mu    sync.RWMutex
	files map[string]memFile
	dirs  map[string]bool
}

// Mem is an in-memory filesystem. Sub-filesystems share storage with their parent.
type Mem struct {
	store  *memStore
	prefix string
	now    func() time.Time
}

// NewMem creates an empty in-memory filesystem.
func NewMem() *Mem {
	return &Mem{
		store: &memStore{files: make(map[string]memFile), dirs: make(map[string]bool)},
		now:   time.Now,
	}
}

func (m *Mem) key(name string) string {
	return Join(m.prefix, name)
}

func (m *Mem) rel(key string) string {
	if m.prefix == "" {
		return key
	}
	return strings.TrimPrefix(strings.TrimPrefix(key, m.prefix), "/")
}

func under(key, dir string) bool {
	return dir == "" || strings.HasPrefix(key, dir+"/")
}

// Describe returns the mem:// location.
func (m *Mem) Describe() string { return "mem://" + m.prefix }

// Walk lists every file under root.
func (m *Mem) Walk(_ context.Context, root string) ([]types.FileInfo, error) {
	dir := m.key(root)
	m.store.mu.RLock()
	defer m.store.mu.RUnlock()
	var out []types.FileInfo
	for k, f := range m.store.files {
		if under(k, dir) {
			out = append(out, types.FileInfo{Path: m.rel(k), Size: int64(len(f.data)), ModTime: f.modTime})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// MkdirAll records a directory and its parents.
func (m *Mem) MkdirAll(_ context.Context, dir string) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	m.mkdirLocked(m.key(dir))
	return nil
}

func (m *Mem) mkdirLocked(key string) {
	for key != "" && key != "." {
		m.store.dirs[key] = true
		i := strings.LastIndex(key, "/")
		if i < 0 {
			return
		}
		key = key[:i]
	}
}

// Open returns a reader over a snapshot of the file.
func (m *Mem) Open(_ context.Context, name string) (io.ReadCloser, error) {
	m.store.mu.RLock()
	defer m.store.mu.RUnlock()
	f, ok := m.store.files[m.key(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotExist, name)
	}
	return io.NopCloser(bytes.NewReader(f.data)), nil
}

type memWriter struct {
	bytes.Buffer
	fs   *Mem
	key  string
	done bool
}

func (w *memWriter) Close() error {
	if w.done {
		return nil
	}
	w.done = true
	w.fs.store.mu.Lock()
	defer w.fs.store.mu.Unlock()
	if i := strings.LastIndex(w.key, "/"); i > 0 {
		w.fs.mkdirLocked(w.key[:i])
	}
	w.fs.store.files[w.key] = memFile{data: w.Bytes(), modTime: w.fs.now().UTC()}
	return nil
}

// Create returns a writer committed on Close.
func (m *Mem) Create(_ context.Context, name string) (io.WriteCloser, error) {
	key := m.key(name)
	if key == "" {
		return nil, fmt.Errorf("cannot create filesystem root")
	}
	return &memWriter{fs: m, key: key}, nil
}

// Exists reports whether a file or directory exists.
func (m *Mem) Exists(_ context.Context, name string) (bool, error) {
	key := m.key(name)
	m.store.mu.RLock()
	defer m.store.mu.RUnlock()
	if key == "" {
		return true, nil
	}
	if _, ok := m.store.files[key]; ok {
		return true, nil
	}
	if m.store.dirs[key] {
		return true, nil
	}
	for k := range m.store.files {
		if under(k, key) {
			return true, nil
		}
	}
	return false, nil
}

// Stat describes a file.
func (m *Mem) Stat(_ context.Context, name string) (types.FileInfo, error) {
	m.store.mu.RLock()
	defer m.store.mu.RUnlock()
	f, ok := m.store.files[m.key(name)]
	if !ok {
		return types.FileInfo{}, fmt.Errorf("%w: %s", ErrNotExist, name)
	}
	return types.FileInfo{Path: Clean(name), Size: int64(len(f.data)), ModTime: f.modTime}, nil
}

// ListDir lists the immediate children of dir.
func (m *Mem) ListDir(ctx context.Context, dir string) ([]string, error) {
	ok, err := m.Exists(ctx, dir)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotExist, dir)
	}
	key := m.key(dir)
	m.store.mu.RLock()
	defer m.store.mu.RUnlock()
	seen := make(map[string]bool)
	add := func(k string) {
		if !under(k, key) || k == key {
			return
		}
		rest := k
		if key != "" {
			rest = strings.TrimPrefix(k, key+"/")
		}
		if i := strings.Index(rest, "/"); i >= 0 {
			rest = rest[:i]
		}
		seen[rest] = true
	}
	for k := range m.store.files {
		add(k)
	}
	for k := range m.store.dirs {
		add(k)
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

// Remove deletes a single file.
func (m *Mem) Remove(_ context.Context, name string) error {
	key := m.key(name)
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	if _, ok := m.store.files[key]; !ok {
		return fmt.Errorf("%w: %s", ErrNotExist, name)
	}
	delete(m.store.files, key)
	return nil
}

// RemoveAll deletes a directory tree.
func (m *Mem) RemoveAll(_ context.Context, dir string) error {
	if Clean(dir) == "" {
		return fmt.Errorf("refusing to remove filesystem root")
	}
	key := m.key(dir)
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	for k := range m.store.files {
		if k == key || under(k, key) {
			delete(m.store.files, k)
		}
	}
	for k := range m.store.dirs {
		if k == key || under(k, key) {
			delete(m.store.dirs, k)
		}
	}
	return nil
}

// Sub returns a view rooted at dir.
func (m *Mem) Sub(dir string) (FS, error) {
	key := m.key(dir)
	m.store.mu.Lock()
	m.mkdirLocked(key)
	m.store.mu.Unlock()
	return &Mem{store: m.store, prefix: key, now: m.now}, nil
}
