// Package testutil provides shared test utilities.
package testutil

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/vfs"
)

// MemFS returns an in-memory filesystem holding files, keyed by path.
func MemFS(t *testing.T, files map[string]string) *vfs.Mem {
	t.Helper()
	m := vfs.NewMem()
	for name, content := range files {
		require.NoError(t, vfs.WriteBytes(context.Background(), m, name, []byte(content)))
	}
	return m
}

// Clock returns a time source fixed at ts.
func Clock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

// Sequence returns a generator of ids prefix-1, prefix-2, and so on.
func Sequence(prefix string) func() string {
	var n atomic.Int64
	return func() string {
		return fmt.Sprintf("%s-%d", prefix, n.Add(1))
	}
}
