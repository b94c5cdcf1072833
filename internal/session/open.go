package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/archive"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/authority"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/dataset"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/transform"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/vfs"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/pkg/types"
)

// Project holds the filesystems of a configured project.
type Project struct {
	Config  *types.ProjectConfig
	Source  vfs.FS
	Output  vfs.FS
	Archive vfs.FS
}

// OpenProject opens the source, output and archive locations of cfg.
func OpenProject(ctx context.Context, cfg *types.ProjectConfig) (*Project, error) {
	src, err := vfs.OpenURL(ctx, cfg.Source, cfg.AWS)
	if err != nil {
		return nil, fmt.Errorf("opening source: %w", err)
	}
	out, err := vfs.OpenURL(ctx, cfg.Output, cfg.AWS)
	if err != nil {
		return nil, fmt.Errorf("opening output: %w", err)
	}
	arch, err := vfs.OpenURL(ctx, cfg.Archive, cfg.AWS)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	return &Project{Config: cfg, Source: src, Output: out, Archive: arch}, nil
}

// DatasetArchive returns the archive of one dataset.
func (p *Project) DatasetArchive(ds *dataset.Dataset, logger *slog.Logger) (*archive.Archive, error) {
	fsys, err := p.Archive.Sub(ds.Name())
	if err != nil {
		return nil, fmt.Errorf("opening %s archive: %w", ds.Name(), err)
	}
	opts := []archive.Option{archive.WithCombineMode(p.Config.CombineMode)}
	if logger != nil {
		opts = append(opts, archive.WithLogger(logger))
	}
	return archive.New(fsys, ds.Pipeline(), opts...), nil
}

// Runner builds the session runner of one dataset. Each dataset writes to
// its own output folder. The source is shared when a single dataset is
// configured and split by dataset name otherwise.
func (p *Project) Runner(ds *dataset.Dataset, secret []byte, logger *slog.Logger, opts ...Option) (*Runner, error) {
	if logger == nil {
		logger = slog.Default()
	}
	src := p.Source
	if len(p.Config.Datasets) > 1 {
		var err error
		if src, err = p.Source.Sub(ds.Name()); err != nil {
			return nil, fmt.Errorf("opening %s source: %w", ds.Name(), err)
		}
	}
	out, err := p.Output.Sub(ds.Name())
	if err != nil {
		return nil, fmt.Errorf("opening %s output: %w", ds.Name(), err)
	}
	arch, err := p.DatasetArchive(ds, logger)
	if err != nil {
		return nil, err
	}

	authorities := authority.Default()
	transforms := transform.NewRegistry(
		transform.WithAuthorities(authorities),
		transform.WithSecret(secret),
		transform.WithLogger(logger),
	)
	base := []Option{
		WithLogger(logger),
		WithAuthorities(authorities),
		WithMinYear(p.Config.MinYear),
		WithProfiles(p.Config.Profiles...),
	}
	if p.Config.Authority != "" {
		base = append(base, WithAuthority(p.Config.Authority))
	}
	return New(ds, src, out, arch, transforms, append(base, opts...)...), nil
}

// Runners builds a runner for every configured dataset, in config order.
func (p *Project) Runners(reg *dataset.Registry, secret []byte, logger *slog.Logger, opts ...Option) ([]*Runner, error) {
	out := make([]*Runner, 0, len(p.Config.Datasets))
	for _, name := range p.Config.Datasets {
		ds, err := reg.Lookup(name)
		if err != nil {
			return nil, err
		}
		r, err := p.Runner(ds, secret, logger, opts...)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}
