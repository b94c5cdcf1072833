// Package ssda903 defines the looked-after children return: six delimited
// tables keyed by child identifier.
package ssda903

import (
	"embed"
	"io/fs"

	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/dataset"
)

// Name is the dataset name.
const Name = "ssda903"

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
		Description: "SSDA903 looked-after children return",
		Files:       sub,
	}
}
