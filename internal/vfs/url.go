package vfs

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/pkg/types"
)

var (
	memRegistry   = make(map[string]*Mem)
	memRegistryMu sync.Mutex
)

// OpenURL opens a filesystem from a location string:
//
//	/path/or/relative  local directory
//	file:///path       local directory
//	s3://bucket/prefix S3 prefix
//	mem://name         named in-memory filesystem, shared within the process
func OpenURL(ctx context.Context, location string, awsCfg types.AWSConfig) (FS, error) {
	switch {
	case location == "":
		return nil, fmt.Errorf("empty filesystem location")
	case strings.HasPrefix(location, "s3://"):
		rest := strings.TrimPrefix(location, "s3://")
		bucket, prefix, _ := strings.Cut(rest, "/")
		return NewS3(ctx, bucket, prefix, awsCfg)
	case strings.HasPrefix(location, "mem://"):
		name := strings.TrimPrefix(location, "mem://")
		memRegistryMu.Lock()
		defer memRegistryMu.Unlock()
		m, ok := memRegistry[name]
		if !ok {
			m = NewMem()
			memRegistry[name] = m
		}
		return m, nil
	case strings.HasPrefix(location, "file://"):
		return NewLocal(strings.TrimPrefix(location, "file://"))
	default:
		return NewLocal(location)
	}
}
