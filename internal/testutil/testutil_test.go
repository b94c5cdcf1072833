package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/errorlist"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/vfs"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/pkg/types"
)

func TestSequence(t *testing.T) {
	next := Sequence("file")
	assert.Equal(t, "file-1", next())
	assert.Equal(t, "file-2", next())
}

func TestClock(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, ts, Clock(ts)())
}

func TestMemFSAndReaders(t *testing.T) {
	m := MemFS(t, map[string]string{"a/b.csv": "x,y\n1,2\n"})
	AssertExists(t, m, "a/b.csv")
	AssertNotExists(t, m, "a/c.csv")

	f := ReadFrameCSV(t, m, "a/b.csv")
	assert.Equal(t, []any{"1"}, f.Column("x"))

	l := &errorlist.List{}
	l.Append(errorlist.New(types.ErrBlank, "blank"))
	require.NoError(t, vfs.WriteFile(context.Background(), m, "errors.csv", l.WriteCSV))
	assert.Equal(t, []types.ErrorKind{types.ErrBlank}, Kinds(ReadErrorsCSV(t, m, "errors.csv")))

}
