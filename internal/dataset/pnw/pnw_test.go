package pnw

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/adapter"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/dataset"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/frame"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/pkg/types"
)

func load(t *testing.T) *dataset.Dataset {
	t.Helper()
	d, err := dataset.New(Definition(), nil)
	require.NoError(t, err)
	return d
}

var headers2024 = []string{
	"Child ID", "Date of birth", "Gender", "Ethnicity", "Placement start date",
	"Placement type", "Provider type", "Provider name", "Placement postcode",
	"Weekly cost", "Health contribution", "Education contribution",
}

func TestDefinition(t *testing.T) {
	d := load(t)
	assert.False(t, d.Hierarchical())
	assert.Equal(t, []string{Table}, d.Pipeline().TableIDs())

	years, err := d.Loader().Years("schema")
	require.NoError(t, err)
	assert.Equal(t, []int{2024, 2025}, years)

	s24, err := d.Loader().Load(2024, "")
	require.NoError(t, err)
	s25, err := d.Loader().Load(2025, "")
	require.NoError(t, err)
	assert.Nil(t, s24.Column(Table, "SharedCare"))
	assert.NotNil(t, s25.Column(Table, "SharedCare"))
	assert.Contains(t, s25.Column(Table, "PlacementType").Codes(), "KIN")

	// Friendly headers match the 2024 table
	ok, err := s24.Table(Table).MatchHeaders(headers2024)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s25.Table(Table).MatchHeaders(headers2024)
	require.NoError(t, err)
	assert.False(t, ok, "2025 requires SharedCare")
}

func workbook(t *testing.T) []byte {
	t.Helper()
	sheet := frame.FromRows(headers2024,
		frame.Row{
			"Child ID": "A1", "Date of birth": time.Date(2012, 7, 14, 0, 0, 0, 0, time.UTC), "Gender": "F", "Ethnicity": "WBRI",
			"Placement start date": "01/04/2023", "Placement type": "Fostering", "Provider type": "PRIV",
			"Provider name": "Acme Care", "Placement postcode": "e17 4jn", "Weekly cost": "950.5",
			"Health contribution": "0", "Education contribution": "100",
		},
		frame.Row{
			"Child ID": "A2", "Date of birth": "not a date", "Gender": "x",
			"Placement start date": "15/06/2023", "Placement type": "RES", "Weekly cost": "-1",
		},
	)
	c := frame.NewContainer()
	c.Set("Sheet1", sheet)
	var buf bytes.Buffer
	require.NoError(t, c.WriteWorkbook(&buf))
	return buf.Bytes()
}

func TestClean_Workbook(t *testing.T) {
	d := load(t)
	src, err := adapter.Open("BAR_pnw_2024.xlsx", workbook(t))
	require.NoError(t, err)
	assert.Equal(t, adapter.FormatXLSX, src.Format)

	year, _, err := d.DiscoverYear("BAR_pnw_2024.xlsx", src)
	require.NoError(t, err)
	assert.Equal(t, 2024, year)

	res, err := d.Clean(src, "BAR_pnw_2024.xlsx", year, "")
	require.NoError(t, err)

	f, ok := res.Tables.Get(Table)
	require.True(t, ok)
	require.Equal(t, 2, f.Len())
	first := f.Row(0)
	assert.Equal(t, "A1", first["Identifier"])
	assert.Equal(t, time.Date(2012, 7, 14, 0, 0, 0, 0, time.UTC), first["DateOfBirth"])
	assert.Equal(t, "2", first["Gender"])
	assert.Equal(t, "FOS", first["PlacementType"])
	assert.Equal(t, "E17 4JN", first["PlacementPostcode"])
	assert.Equal(t, 950.5, first["WeeklyCost"])

	second := f.Row(1)
	assert.Nil(t, second["DateOfBirth"])
	assert.Nil(t, second["Gender"])
	assert.Nil(t, second["WeeklyCost"])

	byKind := map[types.ErrorKind]int{}
	var costErr string
	for _, r := range res.Errors.Records() {
		byKind[r.Kind]++
		assert.Equal(t, Table, r.TableName)
		if r.Kind == types.ErrConversion && strings.Contains(r.Exception, "WeeklyCost") {
			costErr = r.Exception
		}
	}
	assert.Equal(t, 2, byKind[types.ErrConversion], "date and cost")
	assert.Equal(t, 1, byKind[types.ErrUncategorisedValue], "gender")
	assert.Zero(t, byKind[types.ErrOutOfRange])
	assert.Contains(t, costErr, "below minimum")
}

func TestClean_CSV(t *testing.T) {
	d := load(t)
	csv := "Identifier,DateOfBirth,Gender,Ethnicity,PlacementStartDate,PlacementType,ProviderType,ProviderName,PlacementPostcode,WeeklyCost,HealthContribution,EducationContribution\n" +
		"B7,01/01/2010,m,,02/02/2024,SEC,LA,,,1200,,\n"
	src, err := adapter.Open("pnw_2024.csv", []byte(csv))
	require.NoError(t, err)
	res, err := d.Clean(src, "pnw_2024.csv", 2024, "")
	require.NoError(t, err)
	assert.Equal(t, 0, res.Errors.Len(), "%v", res.Errors.Records())
	f, _ := res.Tables.Get(Table)
	require.Equal(t, 1, f.Len())
	assert.Equal(t, "1", f.Row(0)["Gender"])
	assert.Equal(t, 1200.0, f.Row(0)["WeeklyCost"])
}
