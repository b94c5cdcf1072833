package frame

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/vfs"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/pkg/types"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func episodes() *Frame {
	f := New("CHILD", "DECOM", "RNE")
	f.SetKind("CHILD", KindString)
	f.SetKind("DECOM", KindDate)
	f.Append(
		Row{"CHILD": "101", "DECOM": date(2023, 1, 15), "RNE": "P"},
		Row{"CHILD": "102", "DECOM": nil, "RNE": "S"},
		Row{"CHILD": "101", "DECOM": date(2022, 6, 1), "RNE": "L"},
	)
	return f
}

func TestAppend_AddsUnknownColumnsSorted(t *testing.T) {
	f := New("a")
	f.Append(Row{"a": 1, "z": 2, "m": 3})
	assert.Equal(t, []string{"a", "m", "z"}, f.Columns())
	assert.True(t, f.HasColumn("m"))
}

func TestKindInference(t *testing.T) {
	f := FromRows(nil,
		Row{"i": int64(1), "n": 1, "f": 1.5, "d": date(2024, 1, 1), "s": "x", "e": ""},
		Row{"i": nil, "n": 2.5, "f": nil, "d": nil, "s": nil, "e": nil},
	)
	assert.Equal(t, KindInt, f.Kind("i"))
	assert.Equal(t, KindFloat, f.Kind("n"))
	assert.Equal(t, KindFloat, f.Kind("f"))
	assert.Equal(t, KindDate, f.Kind("d"))
	assert.Equal(t, KindString, f.Kind("s"))
	assert.Equal(t, KindString, f.Kind("e"))

	f.SetKind("e", KindInt)
	assert.Equal(t, KindInt, f.Kind("e"))
}

func TestKindFor(t *testing.T) {
	assert.Equal(t, KindInt, KindFor(types.TypeInteger))
	assert.Equal(t, KindFloat, KindFor(types.TypeFloat))
	assert.Equal(t, KindDate, KindFor(types.TypeDate))
	assert.Equal(t, KindUnknown, KindFor(""))
	assert.Equal(t, "date", KindDate.String())
}

func TestClone_IsDeep(t *testing.T) {
	f := episodes()
	c := f.Clone()
	c.Row(0)["RNE"] = "X"
	assert.Equal(t, "P", f.Row(0)["RNE"])
	assert.Equal(t, KindDate, c.Kind("DECOM"))
}

func TestProject(t *testing.T) {
	p := episodes().Project([]string{"RNE", "MISSING"})
	assert.Equal(t, []string{"RNE", "MISSING"}, p.Columns())
	assert.Equal(t, []any{nil, nil, nil}, p.Column("MISSING"))
	assert.Equal(t, "P", p.Row(0)["RNE"])
}

func TestConcat_UnionOfColumns(t *testing.T) {
	a := FromRows([]string{"x", "y"}, Row{"x": "1", "y": "2"})
	b := FromRows([]string{"y", "z"}, Row{"y": "3", "z": "4"})
	out := Concat(a, nil, b)
	assert.Equal(t, []string{"x", "y", "z"}, out.Columns())
	assert.Equal(t, 2, out.Len())
	assert.Equal(t, []any{"2", "3"}, out.Column("y"))
	assert.Nil(t, out.Row(1)["x"])
}

func TestSortStableAndDropDuplicates(t *testing.T) {
	f := episodes()
	f.SortStable("CHILD", "DECOM")
	assert.Equal(t, []any{"L", "P", "S"}, f.Column("RNE"))

	// keep the last row per key
	d := episodes().DropDuplicates("CHILD")
	assert.Equal(t, []any{"S", "L"}, d.Column("RNE"))

	assert.Equal(t, 3, episodes().DropDuplicates().Len())
}

func TestCompare(t *testing.T) {
	assert.Equal(t, 0, Compare(int64(2), 2.0))
	assert.Equal(t, -1, Compare(1, 1.5))
	assert.Equal(t, 1, Compare(nil, "a"))
	assert.Equal(t, -1, Compare("a", nil))
	assert.Equal(t, 0, Compare(nil, nil))
	assert.Equal(t, -1, Compare(date(2020, 1, 1), date(2021, 1, 1)))
	assert.Equal(t, -1, Compare("a", "b"))
	// numbers before dates before strings
	assert.Equal(t, -1, Compare(int64(5), date(2020, 1, 1)))
	assert.Equal(t, -1, Compare(date(2020, 1, 1), "a"))
}

func TestDropDuplicates_EquivalentNumbers(t *testing.T) {
	f := FromRows([]string{"k", "v"}, Row{"k": 1, "v": "a"}, Row{"k": int64(1), "v": "b"}, Row{"k": 1.0, "v": "c"})
	assert.Equal(t, []any{"c"}, f.DropDuplicates("k").Column("v"))
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "", FormatValue(nil))
	assert.Equal(t, "7", FormatValue(int64(7)))
	assert.Equal(t, "0.25", FormatValue(0.25))
	assert.Equal(t, "3", FormatValue(3.0))
	assert.Equal(t, "2023-01-15", FormatValue(date(2023, 1, 15)))
}

func TestCSVRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, episodes().WriteCSV(&buf))
	assert.Equal(t, "CHILD,DECOM,RNE\n101,2023-01-15,P\n102,,S\n101,2022-06-01,L\n", buf.String())

	f, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, []string{"CHILD", "DECOM", "RNE"}, f.Columns())
	assert.Equal(t, "", f.Row(1)["DECOM"])
}

func TestReadCSV_ShortRowsAndEmpty(t *testing.T) {
	f, err := ReadCSV(strings.NewReader("a,b\n1\n"))
	require.NoError(t, err)
	assert.Equal(t, "", f.Row(0)["b"])

	f, err = ReadCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, 0, f.Len())
}

func TestParquetRoundTrip(t *testing.T) {
	f := New("CHILD", "DECOM", "AGE", "FTE")
	f.SetKind("CHILD", KindString)
	f.SetKind("DECOM", KindDate)
	f.SetKind("AGE", KindInt)
	f.SetKind("FTE", KindFloat)
	f.Append(
		Row{"CHILD": "101", "DECOM": date(1969, 12, 31), "AGE": int64(12), "FTE": 0.5},
		Row{"CHILD": "", "DECOM": nil, "AGE": "", "FTE": 1},
	)

	var buf bytes.Buffer
	require.NoError(t, f.WriteParquet(&buf))
	got, err := ReadParquetBytes(buf.Bytes())
	require.NoError(t, err)

	assert.Equal(t, []string{"CHILD", "DECOM", "AGE", "FTE"}, got.Columns())
	assert.Equal(t, KindDate, got.Kind("DECOM"))
	require.Equal(t, 2, got.Len())
	assert.Equal(t, Row{"CHILD": "101", "DECOM": date(1969, 12, 31), "AGE": int64(12), "FTE": 0.5}, got.Row(0))
	assert.Equal(t, Row{"CHILD": "", "DECOM": nil, "AGE": nil, "FTE": 1.0}, got.Row(1))
}

func TestWriteParquet_Errors(t *testing.T) {
	assert.Error(t, New().WriteParquet(&bytes.Buffer{}))

	f := New("AGE")
	f.SetKind("AGE", KindInt)
	f.Append(Row{"AGE": "twelve"})
	assert.ErrorContains(t, f.WriteParquet(&bytes.Buffer{}), "does not fit a int column")
}

func TestContainer(t *testing.T) {
	c := NewContainer()
	c.Set("b", episodes())
	c.Set("a", New("x"))
	c.Set("b", New("y"))
	assert.Equal(t, []string{"b", "a"}, c.Names())

	got, ok := c.Get("b")
	require.True(t, ok)
	assert.Equal(t, []string{"y"}, got.Columns())

	clone := c.Clone()
	c.Delete("b")
	c.Delete("nope")
	assert.Equal(t, []string{"a"}, c.Names())
	assert.Equal(t, 2, clone.Len())

	var nilC *Container
	assert.Equal(t, 0, nilC.Len())
	_, ok = nilC.Get("a")
	assert.False(t, ok)
}

func TestWriteTables(t *testing.T) {
	ctx := context.Background()
	fsys := vfs.NewMem()
	c := NewContainer()
	c.Set("episodes", episodes())

	require.NoError(t, c.WriteTables(ctx, fsys, FormatCSV, func(n string) string { return "out/" + n + ".csv" }))
	data, err := vfs.ReadFile(ctx, fsys, "out/episodes.csv")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "CHILD,DECOM,RNE\n"))

	require.NoError(t, c.WriteTables(ctx, fsys, FormatParquet, func(n string) string { return n + ".parquet" }))
	data, err = vfs.ReadFile(ctx, fsys, "episodes.parquet")
	require.NoError(t, err)
	back, err := ReadParquetBytes(data)
	require.NoError(t, err)
	assert.Equal(t, 3, back.Len())

	assert.ErrorContains(t, c.WriteTables(ctx, fsys, Format("json"), func(n string) string { return n }), "unsupported format")
}

func TestWriteWorkbook(t *testing.T) {
	c := NewContainer()
	c.Set("episodes", episodes())
	c.Set(strings.Repeat("x", 40), New("only"))

	var buf bytes.Buffer
	require.NoError(t, c.WriteWorkbook(&buf))

	wb, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = wb.Close() }()

	assert.Equal(t, []string{"episodes", strings.Repeat("x", 31)}, wb.GetSheetList())
	rows, err := wb.GetRows("episodes")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"CHILD", "DECOM", "RNE"}, rows[0])
	assert.Equal(t, []string{"101", "2023-01-15", "P"}, rows[1])

	// Dates are stored as serial numbers carrying a date format.
	raw, err := wb.GetCellValue("episodes", "B2", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "44941", raw)
	styleID, err := wb.GetCellStyle("episodes", "B2")
	require.NoError(t, err)
	style, err := wb.GetStyle(styleID)
	require.NoError(t, err)
	require.NotNil(t, style.CustomNumFmt)
	assert.Equal(t, "yyyy-mm-dd", *style.CustomNumFmt)
}
