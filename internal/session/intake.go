package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"

	"gopkg.in/yaml.v3"

	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/vfs"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/pkg/types"
)

// Locator is a file taken into a session.
type Locator struct {
	Path string // inside the session folder
	Meta types.FileMetadata
}

// intake moves every source file into the session's incoming folder under a
// fresh uuid and writes its metadata sidecar next to it.
func (r *Runner) intake(ctx context.Context, folder string) ([]Locator, error) {
	files, err := r.source.Walk(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("listing source %s: %w", r.source.Describe(), err)
	}
	out := make([]Locator, 0, len(files))
	for _, fi := range files {
		data, err := vfs.ReadFile(ctx, r.source, fi.Path)
		if err != nil {
			return nil, err
		}
		sum := sha256.Sum256(data)
		meta := types.FileMetadata{
			UUID:         r.newUUID(),
			SHA256:       hex.EncodeToString(sum[:]),
			OriginalPath: fi.Path,
			Name:         path.Base(fi.Path),
			Size:         fi.Size,
			ModifiedTime: fi.ModTime.UTC(),
		}
		dst := vfs.Join(folder, IncomingDir, meta.UUID)
		if err := vfs.WriteBytes(ctx, r.output, dst, data); err != nil {
			return nil, fmt.Errorf("taking in %s: %w", fi.Path, err)
		}
		if err := r.source.Remove(ctx, fi.Path); err != nil {
			return nil, fmt.Errorf("removing %s after intake: %w", fi.Path, err)
		}
		sidecar, err := yaml.Marshal(meta)
		if err != nil {
			return nil, fmt.Errorf("encoding metadata for %s: %w", fi.Path, err)
		}
		if err := vfs.WriteBytes(ctx, r.output, dst+MetaSuffix, sidecar); err != nil {
			return nil, fmt.Errorf("writing metadata for %s: %w", fi.Path, err)
		}
		r.logger.Debug("file taken in", "uuid", meta.UUID, "filename", meta.Name, "size", meta.Size)
		out = append(out, Locator{Path: dst, Meta: meta})
	}
	return out, nil
}

// Pending returns the number of files waiting in the source.
func (r *Runner) Pending(ctx context.Context) (int, error) {
	files, err := r.source.Walk(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("listing source %s: %w", r.source.Describe(), err)
	}
	return len(files), nil
}

// ReadMetadata reads the sidecar written for an incoming file.
func ReadMetadata(ctx context.Context, fsys vfs.FS, incoming string) (types.FileMetadata, error) {
	var meta types.FileMetadata
	data, err := vfs.ReadFile(ctx, fsys, incoming+MetaSuffix)
	if err != nil {
		return meta, err
	}
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("parsing metadata for %s: %w", incoming, err)
	}
	return meta, nil
}
