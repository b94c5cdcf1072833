// Package pnw defines the placement cost return, a single table submitted
// as a workbook or delimited file.
package pnw

import (
	"embed"
	"io/fs"

	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/dataset"
)

// Name is the dataset name.
const Name = "pnw"

// Table is the single output table.
const Table = "pnw_census"

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
		Description: "Placement cost return",
		Files:       sub,
	}
}
