// Package csww defines the children's social work workforce census. Each
// XML message holds one authority-level vacancy record and one record per
// worker.
package csww

import (
	"embed"
	"io/fs"

	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/dataset"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/events"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/filters"
)

// Name is the dataset name.
const Name = "csww"

const (
	workerTag  = "CSWWWorker"
	laLevelTag = "LALevelVacancies"
)

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
		Description: "Children's social work workforce census",
		Files:       sub,
		Tags:        []string{workerTag, laLevelTag},
		Mapper:      mapRecord,
		YearPath:    []string{"Message", "Header", "CollectionDetails", "Year"},
	}
}

func mapRecord(tag string, rec events.Record) []filters.TableRow {
	switch tag {
	case workerTag:
		return []filters.TableRow{{Table: "worker", Values: rec.Leaves()}}
	case laLevelTag:
		return []filters.TableRow{{Table: "lalevel", Values: rec.Leaves()}}
	}
	return nil
}
