package testutil

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/errorlist"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/frame"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/vfs"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/pkg/types"
)

// ReadFrameCSV reads a CSV table written to fsys. Cells come back as strings.
func ReadFrameCSV(t *testing.T, fsys vfs.FS, name string) *frame.Frame {
	t.Helper()
	data, err := vfs.ReadFile(context.Background(), fsys, name)
	require.NoError(t, err, name)
	f, err := frame.ReadCSV(bytes.NewReader(data))
	require.NoError(t, err, name)
	return f
}

// ReadErrorsCSV reads an error summary written to fsys.
func ReadErrorsCSV(t *testing.T, fsys vfs.FS, name string) *errorlist.List {
	t.Helper()
	data, err := vfs.ReadFile(context.Background(), fsys, name)
	require.NoError(t, err, name)
	l, err := errorlist.ReadCSV(bytes.NewReader(data))
	require.NoError(t, err, name)
	return l
}

// AssertExists fails unless name exists in fsys.
func AssertExists(t *testing.T, fsys vfs.FS, name string) bool {
	t.Helper()
	ok, err := fsys.Exists(context.Background(), name)
	require.NoError(t, err)
	return assert.True(t, ok, "%s does not exist in %s", name, fsys.Describe())
}

// AssertNotExists fails if name exists in fsys.
func AssertNotExists(t *testing.T, fsys vfs.FS, name string) bool {
	t.Helper()
	ok, err := fsys.Exists(context.Background(), name)
	require.NoError(t, err)
	return assert.False(t, ok, "%s exists in %s", name, fsys.Describe())
}

// Kinds returns the error kind of every record in order.
func Kinds(l *errorlist.List) []types.ErrorKind {
	recs := l.Records()
	out := make([]types.ErrorKind, len(recs))
	for i, r := range recs {
		out[i] = r.Kind
	}
	return out
}
