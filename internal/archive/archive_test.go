package archive

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/frame"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/vfs"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/pkg/types"
)

const peopleConfig = `
table_list:
  - id: people
    columns:
      - id: id
        type: integer
        unique_key: true
      - id: name
        type: string
        sort: 1
  - id: notes
    columns:
      - id: text
        type: string
`

func config(t *testing.T) *types.PipelineConfig {
	t.Helper()
	var cfg types.PipelineConfig
	require.NoError(t, yaml.Unmarshal([]byte(peopleConfig), &cfg))
	return &cfg
}

var fixed = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func newArchive(t *testing.T, opts ...Option) *Archive {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return fixed })}, opts...)
	return New(vfs.NewMem(), config(t), opts...)
}

func people(rows ...frame.Row) *frame.Container {
	c := frame.NewContainer()
	c.Set("people", frame.FromRows([]string{"id", "name"}, rows...))
	return c
}

func p(id int64, name string) frame.Row {
	return frame.Row{"id": id, "name": name}
}

func TestSnapshotID(t *testing.T) {
	id := SnapshotID{Timestamp: "20240301T093000", Index: 7, Session: "01HQ", Rollup: true}
	assert.Equal(t, "20240301T093000-0007-01HQ-rollup", id.String())

	parsed, err := ParseSnapshotID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	ts, err := parsed.Time()
	require.NoError(t, err)
	assert.Equal(t, fixed, ts)

	for _, bad := range []string{"", "notes", "20240301T093000-7-x", "2024-0001-x", "20240301T093000-0001-"} {
		_, err := ParseSnapshotID(bad)
		assert.Error(t, err, bad)
	}
}

func TestAdd_IndexesWithinTimestamp(t *testing.T) {
	ctx := context.Background()
	a := newArchive(t)

	var ids []string
	for range 3 {
		id, err := a.Add(ctx, "BAR", "S1", people(p(1, "x")))
		require.NoError(t, err)
		ids = append(ids, id)
	}
	assert.Equal(t, []string{
		"20240301T093000-0000-S1",
		"20240301T093000-0001-S1",
		"20240301T093000-0002-S1",
	}, ids)

	// A new second restarts the index
	now := fixed.Add(time.Second)
	a.now = func() time.Time { return now }
	id, err := a.Add(ctx, "BAR", "S1", people(p(1, "x")))
	require.NoError(t, err)
	assert.Equal(t, "20240301T093001-0000-S1", id)
}

func TestAdd_Validation(t *testing.T) {
	ctx := context.Background()
	a := newArchive(t)
	_, err := a.Add(ctx, "", "S1", people())
	assert.Error(t, err)
	_, err = a.Add(ctx, "BAR", "", people())
	assert.Error(t, err)
}

func TestAdd_NormalisesTables(t *testing.T) {
	ctx := context.Background()
	a := newArchive(t)
	c := frame.NewContainer()
	c.Set("people", frame.FromRows([]string{"extra", "name"}, frame.Row{"extra": "drop", "name": "n"}))
	c.Set("unconfigured", frame.FromRows([]string{"a"}, frame.Row{"a": "b"}))

	id, err := a.Add(ctx, "BAR", "S1", c)
	require.NoError(t, err)

	got, err := a.Load(ctx, "BAR", id)
	require.NoError(t, err)
	assert.Equal(t, []string{"people"}, got.Names())
	f, _ := got.Get("people")
	assert.Equal(t, []string{"id", "name"}, f.Columns())
	assert.Equal(t, frame.Row{"id": nil, "name": "n"}, f.Row(0))
}

func TestCurrent_Dedup(t *testing.T) {
	ctx := context.Background()
	for _, mode := range []types.CombineMode{types.CombineEager, types.CombineAggregate} {
		t.Run(string(mode), func(t *testing.T) {
			a := newArchive(t, WithCombineMode(mode))
			_, err := a.Add(ctx, "BAR", "S", people(p(1, "foo"), p(2, "bar")))
			require.NoError(t, err)
			_, err = a.Add(ctx, "BAR", "S", people(p(1, "Foo"), p(3, "FooBar")))
			require.NoError(t, err)
			_, err = a.Add(ctx, "BAR", "S", people(p(4, "SNAFU")))
			require.NoError(t, err)

			cur, err := a.Current(ctx, "BAR")
			require.NoError(t, err)
			f, ok := cur.Get("people")
			require.True(t, ok)
			assert.Equal(t, []any{int64(3), int64(4), int64(2), int64(1)}, f.Column("id"))
			assert.Equal(t, []any{"FooBar", "SNAFU", "bar", "foo"}, f.Column("name"))
		})
	}
}

func TestCurrent_NoDedup(t *testing.T) {
	ctx := context.Background()
	a := newArchive(t, WithCombineMode(types.CombineNone))
	_, err := a.Add(ctx, "BAR", "S", people(p(1, "b")))
	require.NoError(t, err)
	_, err = a.Add(ctx, "BAR", "S", people(p(1, "a")))
	require.NoError(t, err)

	cur, err := a.Current(ctx, "BAR")
	require.NoError(t, err)
	f, _ := cur.Get("people")
	assert.Equal(t, []any{"b", "a"}, f.Column("name"))
}

func TestCurrent_EqualsDedupOfConcat(t *testing.T) {
	ctx := context.Background()
	cfg := config(t)
	tc, _ := cfg.Table("people")
	adds := []*frame.Container{
		people(p(5, "e"), p(1, "a"), p(5, "d")),
		people(p(2, "b"), p(1, "z")),
		people(p(3, "c"), p(2, "a")),
		people(p(5, "e")),
	}

	a := newArchive(t)
	var frames []*frame.Frame
	for _, c := range adds {
		_, err := a.Add(ctx, "BAR", "S", c)
		require.NoError(t, err)
		f, _ := c.Get("people")
		frames = append(frames, f)
	}
	want := Dedup(frame.Concat(frames...), tc)

	cur, err := a.Current(ctx, "BAR")
	require.NoError(t, err)
	got, _ := cur.Get("people")
	assert.Equal(t, want.Column("id"), got.Column("id"))
	assert.Equal(t, want.Column("name"), got.Column("name"))
}

func TestRollupThenDelete(t *testing.T) {
	ctx := context.Background()
	a := newArchive(t)

	s1, err := a.Add(ctx, "BAR", "S1", people(p(1, "foo"), p(2, "bar")))
	require.NoError(t, err)
	s2, err := a.Add(ctx, "BAR", "S1", people(p(1, "Foo")))
	require.NoError(t, err)

	rolled, err := a.Rollup(ctx, "S2")
	require.NoError(t, err)
	r := rolled["BAR"]
	assert.True(t, IsRollup(r))

	manifest, err := a.Manifest(ctx, "BAR", r)
	require.NoError(t, err)
	assert.Equal(t, []string{s1, s2}, manifest)

	s3, err := a.Add(ctx, "BAR", "S2", people(p(3, "baz")))
	require.NoError(t, err)

	sessions, err := a.ListCurrentSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{r, s3}, sessions["BAR"])

	before, err := a.Current(ctx, "BAR")
	require.NoError(t, err)

	require.NoError(t, a.Delete(ctx, "BAR", []string{s1, s2}, false))

	after, err := a.Current(ctx, "BAR")
	require.NoError(t, err)
	bf, _ := before.Get("people")
	af, _ := after.Get("people")
	assert.Equal(t, bf.Rows(), af.Rows())
	assert.Equal(t, []any{int64(2), int64(3), int64(1)}, af.Column("id"))

	// Roll-ups are protected by default
	err = a.Delete(ctx, "BAR", []string{s3, r}, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRollupProtected))
	all, err := a.ListSnapshots(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{r, s3}, all["BAR"], "nothing removed")

	require.NoError(t, a.Delete(ctx, "BAR", []string{r}, true))
	all, err = a.ListSnapshots(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{s3}, all["BAR"])
}

func TestListings(t *testing.T) {
	ctx := context.Background()
	a := newArchive(t)

	empty, err := a.ListSnapshots(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = a.Add(ctx, "BAR", "S1", people(p(1, "a")))
	require.NoError(t, err)
	_, err = a.Add(ctx, "CAM", "S1", people(p(1, "a")))
	require.NoError(t, err)
	rolled, err := a.Rollup(ctx, "S1")
	require.NoError(t, err)
	assert.Len(t, rolled, 2)

	rollups, err := a.ListRollups(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"BAR": {rolled["BAR"]}, "CAM": {rolled["CAM"]}}, rollups)

	all, err := a.ListSnapshots(ctx)
	require.NoError(t, err)
	assert.Len(t, all["BAR"], 2)

	cur, err := a.Current(ctx, "NOPE")
	require.NoError(t, err)
	assert.Equal(t, 0, cur.Len())
}

func TestDelete_InvalidID(t *testing.T) {
	a := newArchive(t)
	assert.Error(t, a.Delete(context.Background(), "BAR", []string{"../x"}, true))
}

func TestCombine_MissingTables(t *testing.T) {
	cfg := config(t)
	notes := frame.NewContainer()
	notes.Set("notes", frame.FromRows([]string{"text"}, frame.Row{"text": "hi"}))

	out := Combine(cfg, []*frame.Container{people(p(1, "a")), notes}, types.CombineEager)
	assert.Equal(t, []string{"people", "notes"}, out.Names())

	out = Combine(cfg, nil, types.CombineEager)
	assert.Equal(t, 0, out.Len())
}

func TestRollup_SkipsLoneRollup(t *testing.T) {
	ctx := context.Background()
	a := newArchive(t)
	_, err := a.Add(ctx, "BAR", "S1", people(p(1, "a")))
	require.NoError(t, err)
	first, err := a.Rollup(ctx, "S1")
	require.NoError(t, err)
	require.Len(t, first, 1)

	// nothing new since the last roll-up
	again, err := a.Rollup(ctx, "S2")
	require.NoError(t, err)
	assert.Empty(t, again)

	rollups, err := a.ListRollups(ctx)
	require.NoError(t, err)
	assert.Len(t, rollups["BAR"], 1)
}
