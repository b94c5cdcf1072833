package filters

import (
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/adapter"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/events"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/schema"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/pkg/types"
)

const workerTables = `
worker:
  SWENo:
    string: alphanumeric
    canbeblank: false
  Gender:
    category:
      - code: "1"
        name: Male
      - code: "2"
        name: Female
  StartDate:
    date: "%Y-%m-%d"
  FTE:
    numeric:
      type: float
      min_value: 0
      max_value: 1
`

const workerStructure = `
Message:
  children:
    Header:
      children:
        CensusYear:
          numeric:
            type: integer
    Worker:
      min_occurs: 0
      max_occurs: unbounded
      children:
        SWENo:
          column: worker.SWENo
        Gender:
          column: worker.Gender
          min_occurs: 0
        StartDate:
          column: worker.StartDate
          min_occurs: 0
        FTE:
          column: worker.FTE
          min_occurs: 0
`

func loadStructure(t *testing.T) (*schema.DataSchema, *schema.Structure) {
	t.Helper()
	ds := loadSchema(t, workerTables)
	var st schema.Structure
	require.NoError(t, yaml.Unmarshal([]byte(workerStructure), &st))
	require.NoError(t, st.Resolve(ds))
	return ds, &st
}

func workerRows(tag string, rec events.Record) []TableRow {
	if tag != "Worker" {
		return nil
	}
	return []TableRow{{Table: "worker", Values: rec.Leaves()}}
}

func runXML(t *testing.T, doc string) Result {
	t.Helper()
	ds, st := loadStructure(t)
	src, err := adapter.Open("csww.xml", []byte(doc))
	require.NoError(t, err)
	res := Run(src.Events(), Hierarchical("csww.xml", ds, st, workerRows, "Worker")...)
	require.NoError(t, src.Err())
	return res
}

func TestHierarchical_CollectsRows(t *testing.T) {
	res := runXML(t, `<Message>
  <Header><CensusYear>2023</CensusYear></Header>
  <Worker><SWENo>SW1</SWENo><Gender>Female</Gender><StartDate>2020-04-01</StartDate><FTE>0.5</FTE></Worker>
  <Worker><SWENo>SW2</SWENo><Gender>1</Gender></Worker>
</Message>`)

	assert.Equal(t, 0, res.Errors.Len())
	f, ok := res.Tables.Get("worker")
	require.True(t, ok)
	assert.Equal(t, []string{"SWENo", "Gender", "StartDate", "FTE"}, f.Columns())
	assert.Equal(t, []any{"SW1", "SW2"}, f.Column("SWENo"))
	assert.Equal(t, []any{"2", "1"}, f.Column("Gender"))
	assert.Equal(t, time.Date(2020, 4, 1, 0, 0, 0, 0, time.UTC), f.Column("StartDate")[0])
	assert.Equal(t, 0.5, f.Column("FTE")[0])
	assert.Nil(t, f.Column("FTE")[1])
}

func TestHierarchical_ValidationErrors(t *testing.T) {
	res := runXML(t, `<Message>
  <Header><CensusYear>2023</CensusYear><Extra>1</Extra></Header>
  <Worker><Gender>9</Gender><FTE>1.5</FTE><StartDate>01/02/2020</StartDate></Worker>
</Message>`)

	byKind := map[types.ErrorKind]int{}
	for _, r := range res.Errors.Records() {
		byKind[r.Kind]++
		assert.NotZero(t, r.Line)
		assert.Equal(t, "csww.xml", r.Filename)
		assert.Nil(t, r.RowIx)
	}
	assert.Equal(t, 1, byKind[types.ErrUnexpectedNode], "Extra")
	assert.Equal(t, 1, byKind[types.ErrMissingField], "SWENo")
	assert.Equal(t, 2, byKind[types.ErrBadValue], "Gender and StartDate")
	assert.Equal(t, 1, byKind[types.ErrOutOfRange], "FTE")
	assert.Zero(t, byKind[types.ErrConversion])

	f, ok := res.Tables.Get("worker")
	require.True(t, ok)
	assert.Equal(t, []any{nil}, f.Column("Gender"))
	assert.Equal(t, []any{nil}, f.Column("FTE"))
}

func TestHierarchical_InvalidRequiredValueIsNotBlank(t *testing.T) {
	ds := loadSchema(t, `
worker:
  SWENo:
    string: alphanumeric
  Gender:
    category:
      - code: "1"
        name: Male
    canbeblank: false
`)
	var st schema.Structure
	require.NoError(t, yaml.Unmarshal([]byte(`
Message:
  children:
    Worker:
      max_occurs: unbounded
      children:
        SWENo:
          column: worker.SWENo
        Gender:
          column: worker.Gender
`), &st))
	require.NoError(t, st.Resolve(ds))

	src, err := adapter.Open("csww.xml", []byte(`<Message><Worker><SWENo>SW1</SWENo><Gender>9</Gender></Worker></Message>`))
	require.NoError(t, err)
	res := Run(src.Events(), Hierarchical("csww.xml", ds, &st, workerRows, "Worker")...)
	require.NoError(t, src.Err())

	require.Equal(t, 1, res.Errors.Len())
	assert.Equal(t, types.ErrBadValue, res.Errors.Records()[0].Kind)
	for _, r := range res.Errors.Records() {
		assert.NotEqual(t, types.ErrBlank, r.Kind)
	}
}

func TestValidateElements_MaxOccurs(t *testing.T) {
	res := runXML(t, `<Message><Header><CensusYear>2023</CensusYear><CensusYear>2024</CensusYear></Header></Message>`)
	require.Equal(t, 1, res.Errors.Len())
	assert.Equal(t, types.ErrUnexpectedNode, res.Errors.Records()[0].Kind)
}

func TestValidateElements_UnknownRoot(t *testing.T) {
	res := runXML(t, `<Other><Worker><SWENo>x</SWENo></Worker></Other>`)
	require.Equal(t, 1, res.Errors.Len())
	assert.Equal(t, types.ErrUnexpectedNode, res.Errors.Records()[0].Kind)
}

func TestAddContext(t *testing.T) {
	in := events.Of(
		events.Event{Kind: events.StartElement, Tag: "a"},
		events.Event{Kind: events.StartElement, Tag: "b"},
		events.Event{Kind: events.TextNode, Value: "x"},
		events.Event{Kind: events.EndElement, Tag: "b"},
		events.Event{Kind: events.EndElement, Tag: "a"},
	)
	out := slices.Collect(AddContext()(in))
	assert.Equal(t, []string{"a"}, out[0].Context)
	assert.Equal(t, []string{"a", "b"}, out[1].Context)
	assert.Equal(t, []string{"a", "b"}, out[2].Context)
	assert.Equal(t, []string{"a", "b"}, out[3].Context)
	assert.Equal(t, []string{"a"}, out[4].Context)
}

func TestMessageCollector_NestedRecords(t *testing.T) {
	doc := `<Message><Child><ID>1</ID><Plan><Start>a</Start></Plan><Plan><Start>b</Start></Plan><Empty/></Child></Message>`
	src, err := adapter.Open("x.xml", []byte(doc))
	require.NoError(t, err)

	var rec events.Record
	for ev := range events.Pipe(src.Events(), StripText(), AddContext(), MessageCollector("Child")) {
		if ev.Kind == events.EndElement && ev.Record != nil {
			rec = ev.Record
		}
	}
	require.NotNil(t, rec)
	assert.Equal(t, "1", rec["ID"])
	assert.Equal(t, "", rec["Empty"])
	plans := rec.Children("Plan")
	require.Len(t, plans, 2)
	assert.Equal(t, "b", plans[1]["Start"])
	assert.Equal(t, map[string]any{"ID": "1", "Empty": ""}, rec.Leaves())
}

func TestMessageCollector_RepeatedLeaves(t *testing.T) {
	doc := `<Child><Disabilities><Disability>HAND</Disability><Disability>VIS</Disability></Disabilities><Single><Disability>NONE</Disability></Single></Child>`
	src, err := adapter.Open("x.xml", []byte(doc))
	require.NoError(t, err)

	var rec events.Record
	for ev := range events.Pipe(src.Events(), StripText(), AddContext(), MessageCollector("Child")) {
		if ev.Record != nil {
			rec = ev.Record
		}
	}
	require.NotNil(t, rec)
	dis := rec.Children("Disabilities")
	require.Len(t, dis, 1)
	assert.Equal(t, []any{"HAND", "VIS"}, dis[0].Values("Disability"))
	assert.Empty(t, dis[0].Leaves())
	assert.Equal(t, []any{"NONE"}, rec.Children("Single")[0].Values("Disability"))
}
