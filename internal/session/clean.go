package session

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/adapter"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/dataset"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/errorlist"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/filters"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/frame"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/vfs"
)

// CleanRequest describes a single file cleaned outside a session.
type CleanRequest struct {
	Filename string
	Data     []byte
	// Year and Term override discovery when Year is non-zero.
	Year int
	Term string
}

// CleanFile cleans one file and writes <stem>_<table>.csv for every table
// and <stem>_errors.csv to out. Nothing is enriched, degraded or archived.
func CleanFile(ctx context.Context, ds *dataset.Dataset, out vfs.FS, req CleanRequest) (filters.Result, error) {
	src, err := adapter.Open(req.Filename, req.Data)
	if err != nil {
		return filters.Result{}, fmt.Errorf("opening %s: %w", req.Filename, err)
	}
	year, term := req.Year, req.Term
	if year == 0 {
		year, term, err = ds.DiscoverYear(req.Filename, src)
		if err != nil {
			return filters.Result{}, err
		}
	}

	res, err := ds.Clean(src, req.Filename, year, term)
	if err != nil {
		return res, err
	}
	if err := res.Errors.SetDefault(errorlist.PropFilename, req.Filename); err != nil {
		return res, err
	}

	stem := Stem(req.Filename)
	err = res.Tables.WriteTables(ctx, out, frame.FormatCSV, func(table string) string {
		return stem + "_" + table + ".csv"
	})
	if err != nil {
		return res, err
	}
	if err := vfs.WriteFile(ctx, out, stem+"_errors.csv", res.Errors.WriteCSV); err != nil {
		return res, fmt.Errorf("writing errors: %w", err)
	}
	return res, nil
}

// Stem returns the base name of filename without its extension.
func Stem(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	return strings.TrimSuffix(base, path.Ext(base))
}
