// Package builtin registers the dataset families shipped with the tool.
package builtin

import (
	"fmt"
	"log/slog"

	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/dataset"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/dataset/cin"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/dataset/csww"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/dataset/pnw"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/dataset/ssda903"
)

// Definitions returns every built-in dataset definition.
func Definitions() []*dataset.Definition {
	return []*dataset.Definition{
		cin.Definition(),
		csww.Definition(),
		pnw.Definition(),
		ssda903.Definition(),
	}
}

// Registry loads every built-in dataset into a new registry.
func Registry(logger *slog.Logger) (*dataset.Registry, error) {
	r := dataset.NewRegistry()
	for _, def := range Definitions() {
		d, err := dataset.New(def, logger)
		if err != nil {
			return nil, fmt.Errorf("loading dataset %s: %w", def.Name, err)
		}
		if err := r.Register(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}
