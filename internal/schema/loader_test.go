package schema

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func closureCodes(n int) string {
	var b strings.Builder
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "      - code: RC%d\n", i)
	}
	return b.String()
}

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"test_schema_2022.yml": {Data: []byte(`
CIN:
  LAchildID:
    string: alphanumeric
    canbeblank: false
  ReasonForClosure:
    category:
` + closureCodes(8) + `
  Gender:
    category:
      - code: "1"
      - code: "2"
`)},
		"test_schema_2023.diff.yml": {Data: []byte(`
CIN.ReasonForClosure.category.8:
  type: add
  value:
    code: RC9
`)},
		"test_schema_2024.diff.yml": {Data: []byte(`
CIN.Gender:
  type: rename
  value: Sex
CIN.Disability:
  type: add
  value:
    string: alphanumeric
`)},
		"test_schema_2024_autumn.diff.yml": {Data: []byte(`
CIN:
  type: remove
  value: [Disability]
`)},
		"test_schema_2025.yml": {Data: []byte(`
CIN:
  LAchildID:
    string: alphanumeric
`)},
		"test_schema_2024_spring.yml": {Data: []byte("ignored: {}")},
		"other_schema_2022.yml":       {Data: []byte("{}")},
		"README.md":                   {Data: []byte("docs")},
	}
}

func TestLoad_DiffAddsCategory(t *testing.T) {
	l := NewLoader(testFS(), "test", nil)

	s22, err := l.Load(2022, "")
	require.NoError(t, err)
	codes22 := s22.Column("CIN", "ReasonForClosure").Codes()
	assert.Len(t, codes22, 8)
	assert.Contains(t, codes22, "RC1")

	s23, err := l.Load(2023, "")
	require.NoError(t, err)
	codes23 := s23.Column("CIN", "ReasonForClosure").Codes()
	assert.Len(t, codes23, 9)
	assert.Contains(t, codes23, "RC1")
	assert.Equal(t, "RC9", codes23[8])
}

func TestLoad_RenamePreservesStructure(t *testing.T) {
	l := NewLoader(testFS(), "test", nil)

	s, err := l.Load(2024, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"LAchildID", "ReasonForClosure", "Sex", "Disability"}, s.Table("CIN").Keys())
	assert.Equal(t, []string{"1", "2"}, s.Column("CIN", "Sex").Codes())
	assert.Len(t, s.Column("CIN", "ReasonForClosure").Codes(), 9)
}

func TestLoad_TermDiff(t *testing.T) {
	l := NewLoader(testFS(), "test", nil)

	s, err := l.Load(2024, "autumn")
	require.NoError(t, err)
	assert.Nil(t, s.Column("CIN", "Disability"))

	// Term diffs do not apply to later years.
	files, err := l.Select(KindSchema, 2025, "autumn")
	require.NoError(t, err)
	assert.Equal(t, []File{{Name: "test_schema_2025.yml", Year: 2025}}, files)
}

func TestLoad_NewBaseResets(t *testing.T) {
	l := NewLoader(testFS(), "test", nil)

	s, err := l.Load(2030, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"LAchildID"}, s.Table("CIN").Keys())
}

func TestLoad_NoSchemaForYear(t *testing.T) {
	l := NewLoader(testFS(), "test", nil)
	_, err := l.Load(2019, "")
	assert.True(t, errors.Is(err, ErrNoSchemaForYear))
}

func TestLoad_Cached(t *testing.T) {
	l := NewLoader(testFS(), "test", nil)
	a, err := l.Load(2023, "")
	require.NoError(t, err)
	b, err := l.Load(2023, "")
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestLoad_Errors(t *testing.T) {
	base := "t:\n  a:\n    string: alphanumeric\n"
	tests := []struct {
		name  string
		diff  string
		check func(error) bool
	}{
		{"unknown type", "t.a:\n  type: replace\n  value: 1\n", func(err error) bool { return errors.Is(err, ErrInvalidSchemaDiff) }},
		{"missing type", "t.a:\n  value: 1\n", func(err error) bool { return errors.Is(err, ErrInvalidSchemaDiff) }},
		{"modify missing", "t.b:\n  type: modify\n  value: {string: alphanumeric}\n", func(err error) bool { return errors.Is(err, ErrSchemaPathMissing) }},
		{"rename missing", "t.b:\n  type: rename\n  value: c\n", func(err error) bool { return errors.Is(err, ErrSchemaPathMissing) }},
		{"remove missing", "t:\n  type: remove\n  value: [b]\n", func(err error) bool { return errors.Is(err, ErrSchemaPathMissing) }},
		{"malformed yaml", "t.a: [\n", func(err error) bool {
			var pe *ParseError
			return errors.As(err, &pe) && pe.File == "x_schema_2021.diff.yml"
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := fstest.MapFS{
				"x_schema_2020.yml":      {Data: []byte(base)},
				"x_schema_2021.diff.yml": {Data: []byte(tt.diff)},
			}
			_, err := NewLoader(fsys, "x", nil).Load(2021, "")
			require.Error(t, err)
			assert.True(t, tt.check(err), err.Error())
		})
	}
}

func TestLoad_ExplicitPathAndModify(t *testing.T) {
	fsys := fstest.MapFS{
		"x_schema_2020.yml": {Data: []byte("t:\n  a.b:\n    string: alphanumeric\n")},
		"x_schema_2021.diff.yml": {Data: []byte(`
dotted-key:
  type: modify
  path: [t, a.b]
  value:
    numeric:
      type: integer
`)},
	}
	s, err := NewLoader(fsys, "x", nil).Load(2021, "")
	require.NoError(t, err)
	c := s.Column("t", "a.b")
	require.NotNil(t, c)
	assert.Equal(t, "integer", string(c.Type()))
}

func TestLoad_InvalidColumnIsParseError(t *testing.T) {
	fsys := fstest.MapFS{
		"x_schema_2020.yml": {Data: []byte("t:\n  a:\n    string: nonsense\n")},
	}
	_, err := NewLoader(fsys, "x", nil).Load(2020, "")
	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "x_schema_2020.yml", pe.File)
}

func TestYears(t *testing.T) {
	years, err := NewLoader(testFS(), "test", nil).Years(KindSchema)
	require.NoError(t, err)
	assert.Equal(t, []int{2022, 2023, 2024, 2025}, years)
}

func TestLoadStructure(t *testing.T) {
	fsys := testFS()
	fsys["test_structure_2022.yml"] = &fstest.MapFile{Data: []byte(`
Message:
  children:
    Header:
      children:
        ReferenceDate:
          date: "%Y-%m-%d"
    Child:
      max_occurs: unbounded
      min_occurs: 0
      children:
        LAchildID:
          column: CIN.LAchildID
        ReasonForClosure:
          column: CIN.ReasonForClosure
          min_occurs: 0
        Note:
`)}
	l := NewLoader(fsys, "test", nil)
	require.True(t, l.HasStructure())

	st, err := l.LoadStructure(2023, "")
	require.NoError(t, err)

	child := st.Lookup([]string{"Message", "Child"})
	require.NotNil(t, child)
	assert.Equal(t, 0, child.MinOccurs)
	assert.Equal(t, Unbounded, child.MaxOccurs)

	rfc := st.Lookup([]string{"Message", "Child", "ReasonForClosure"})
	require.NotNil(t, rfc)
	assert.Len(t, rfc.Column.Codes(), 9)

	ref := st.Lookup([]string{"Message", "Header", "ReferenceDate"})
	require.NotNil(t, ref)
	assert.Equal(t, "2006-01-02", ref.Column.Layout())
	assert.Equal(t, "ReferenceDate", ref.Column.Key)

	note := st.Lookup([]string{"Message", "Child", "Note"})
	require.NotNil(t, note)
	assert.Nil(t, note.Column)
	assert.Equal(t, 1, note.MinOccurs)

	assert.Nil(t, st.Lookup([]string{"Message", "Nope"}))
}

func TestLoadStructure_BadReference(t *testing.T) {
	fsys := testFS()
	fsys["test_structure_2022.yml"] = &fstest.MapFile{Data: []byte("Message:\n  children:\n    X:\n      column: CIN.Missing\n")}
	_, err := NewLoader(fsys, "test", nil).LoadStructure(2022, "")
	assert.True(t, errors.Is(err, ErrSchemaPathMissing))
}
