// Package cin defines the children in need census. The census arrives as
// one XML message per authority and is flattened into a long-form table
// with one row per dated event of each child.
package cin

import (
	"embed"
	"io/fs"
	"maps"
	"strings"

	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/dataset"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/events"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/filters"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/frame"
)

// Name is the dataset name.
const Name = "cin"

// Table is the single output table.
const Table = "CIN"

//go:embed files/*.yml
var files embed.FS

// Definition returns the dataset definition.
func Definition() *dataset.Definition {
	sub, err := fs.Sub(files, "files")
	if err != nil {
		panic(err)
	}
	return &dataset.Definition{
		Name:        Name,
		Description: "Children in need census",
		Files:       sub,
		Tags:        []string{"Child"},
		Mapper:      MapChild,
		YearPath:    []string{"Message", "Header", "CollectionDetails", "ReferenceDate"},
	}
}

// MapChild flattens one Child record into event rows. Every row carries the
// child's identifiers and characteristics plus the fields of the module the
// event belongs to, with Date and Type naming the event.
func MapChild(tag string, rec events.Record) []filters.TableRow {
	if tag != "Child" {
		return nil
	}
	child := make(map[string]any)
	for _, ids := range rec.Children("ChildIdentifiers") {
		maps.Copy(child, ids.Leaves())
	}
	for _, ch := range rec.Children("ChildCharacteristics") {
		maps.Copy(child, ch.Leaves())
		var dis []any
		for _, d := range ch.Children("Disabilities") {
			dis = append(dis, d.Values("Disability")...)
		}
		if s := join(dis); s != "" {
			child["Disabilities"] = s
		}
	}

	var rows []filters.TableRow
	emit := func(values map[string]any, typ string, date any) {
		if date == nil || date == "" {
			return
		}
		row := maps.Clone(values)
		row["Date"] = date
		row["Type"] = typ
		rows = append(rows, filters.TableRow{Table: Table, Values: row})
	}
	emitField := func(values map[string]any, typ string) {
		emit(values, typ, values[typ])
	}

	for _, det := range rec.Children("CINdetails") {
		d := merge(child, det.Leaves())
		emitField(d, "CINreferralDate")
		emitField(d, "CINclosureDate")

		for _, a := range det.Children("Assessments") {
			r := merge(d, a.Leaves())
			var factors []any
			for _, f := range a.Children("FactorsIdentifiedAtAssessment") {
				factors = append(factors, f.Values("AssessmentFactors")...)
			}
			if s := join(factors); s != "" {
				r["Factors"] = s
			}
			emitField(r, "AssessmentActualStartDate")
			emitField(r, "AssessmentAuthorisationDate")
		}
		for _, p := range det.Children("CINPlanDates") {
			r := merge(d, p.Leaves())
			emitField(r, "CINPlanStartDate")
			emitField(r, "CINPlanEndDate")
		}
		for _, s := range det.Children("Section47") {
			r := merge(d, s.Leaves())
			emitField(r, "S47ActualStartDate")
			emitField(r, "DateOfInitialCPC")
		}
		for _, c := range det.Children("ChildProtectionPlans") {
			r := merge(d, c.Leaves())
			emitField(r, "CPPstartDate")
			emitField(r, "CPPendDate")
			for _, rv := range c.Children("Reviews") {
				for _, date := range rv.Values("CPPreviewDate") {
					emit(r, "CPPreviewDate", date)
				}
			}
		}
	}
	return rows
}

func merge(base, over map[string]any) map[string]any {
	out := maps.Clone(base)
	maps.Copy(out, over)
	return out
}

func join(vals []any) string {
	parts := make([]string, 0, len(vals))
	for _, v := range vals {
		if s := frame.FormatValue(v); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ",")
}
