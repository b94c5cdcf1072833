// Package schema loads the versioned, per-year data model of a dataset and
// describes each column's type, validation rules and category list.
//
// Schema files are named <dataset>_<kind>_<YYYY>[.diff].yml where kind is
// "schema" for tabular definitions or "structure" for hierarchical element
// trees. The newest base file at or before the requested year is loaded and
// every later diff up to that year is applied in order. Term diffs named
// <dataset>_<kind>_<YYYY>_<term>.diff.yml apply last, and only when that
// year and term are requested.
package schema

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"regexp"
	"slices"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"
)

// File kinds.
const (
	KindSchema    = "schema"
	KindStructure = "structure"
)

// ErrNoSchemaForYear is returned when no base schema exists at or before the requested year.
var ErrNoSchemaForYear = errors.New("no schema for year")

// ParseError reports a schema file that could not be decoded.
type ParseError struct {
	File string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing schema file %s: %v", e.File, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// File is one schema file found by the loader.
type File struct {
	Name string
	Year int
	Term string
	Diff bool
}

// Loader reads and caches the layered schemas of one dataset.
type Loader struct {
	fsys    fs.FS
	dataset string
	logger  *slog.Logger

	group      singleflight.Group
	mu         sync.RWMutex
	schemas    map[string]*DataSchema
	structures map[string]*Structure
}

// NewLoader creates a loader over the schema files in the root of fsys.
func NewLoader(fsys fs.FS, dataset string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		fsys:       fsys,
		dataset:    dataset,
		logger:     logger,
		schemas:    make(map[string]*DataSchema),
		structures: make(map[string]*Structure),
	}
}

// Dataset returns the dataset name files are matched against.
func (l *Loader) Dataset() string { return l.dataset }

// Files lists the files of a kind, ordered by year with each year's base
// first, then its general diff, then term diffs.
func (l *Loader) Files(kind string) ([]File, error) {
	entries, err := fs.ReadDir(l.fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("reading schema dir: %w", err)
	}
	re := regexp.MustCompile(`^` + regexp.QuoteMeta(l.dataset) + `_` + regexp.QuoteMeta(kind) +
		`_(\d{4})(?:_([A-Za-z0-9]+))?(\.diff)?\.ya?ml$`)
	var files []File
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := re.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		year, _ := strconv.Atoi(m[1])
		f := File{Name: e.Name(), Year: year, Term: m[2], Diff: m[3] != ""}
		if f.Term != "" && !f.Diff {
			l.logger.Warn("ignoring term schema that is not a diff", "file", f.Name)
			continue
		}
		files = append(files, f)
	}
	slices.SortFunc(files, func(a, b File) int {
		return cmp.Or(
			cmp.Compare(a.Year, b.Year),
			cmp.Compare(rank(a), rank(b)),
			cmp.Compare(a.Term, b.Term),
			cmp.Compare(a.Name, b.Name),
		)
	})
	return files, nil
}

func rank(f File) int {
	switch {
	case !f.Diff:
		return 0
	case f.Term == "":
		return 1
	default:
		return 2
	}
}

// Years returns the years that have a base or general diff file of the
// given kind, each a distinct schema version.
func (l *Loader) Years(kind string) ([]int, error) {
	files, err := l.Files(kind)
	if err != nil {
		return nil, err
	}
	var years []int
	for _, f := range files {
		if f.Term == "" {
			years = append(years, f.Year)
		}
	}
	return slices.Compact(years), nil
}

// Select returns the files composing the schema for year and term: the
// newest base at or before year followed by the diffs after it.
func (l *Loader) Select(kind string, year int, term string) ([]File, error) {
	files, err := l.Files(kind)
	if err != nil {
		return nil, err
	}
	var eligible []File
	for _, f := range files {
		if f.Year > year {
			continue
		}
		if f.Term != "" && (f.Term != term || f.Year != year) {
			continue
		}
		eligible = append(eligible, f)
	}
	base := -1
	for i, f := range eligible {
		if !f.Diff {
			base = i
		}
	}
	if base < 0 {
		return nil, fmt.Errorf("%w: %s %s %d", ErrNoSchemaForYear, l.dataset, kind, year)
	}
	return eligible[base:], nil
}

// Layered returns the merged YAML document for year and term together with
// the names of the files applied.
func (l *Loader) Layered(kind string, year int, term string) (*yaml.Node, []string, error) {
	files, err := l.Select(kind, year, term)
	if err != nil {
		return nil, nil, err
	}
	names := make([]string, 0, len(files))
	var root *yaml.Node
	for _, f := range files {
		doc, err := l.read(f.Name)
		if err != nil {
			return nil, nil, err
		}
		names = append(names, f.Name)
		if !f.Diff {
			if len(doc.Content) == 0 {
				return nil, nil, &ParseError{File: f.Name, Err: errors.New("empty document")}
			}
			root = doc.Content[0]
			continue
		}
		entries, err := ParseDiff(doc)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", f.Name, err)
		}
		if err := ApplyDiff(root, entries); err != nil {
			return nil, nil, fmt.Errorf("%s: %w", f.Name, err)
		}
	}
	return root, names, nil
}

func (l *Loader) read(name string) (*yaml.Node, error) {
	data, err := fs.ReadFile(l.fsys, name)
	if err != nil {
		return nil, fmt.Errorf("reading schema file %s: %w", name, err)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ParseError{File: name, Err: err}
	}
	return &doc, nil
}

func cacheKey(year int, term string) string {
	return strconv.Itoa(year) + "/" + term
}

// Load returns the tabular schema for year and optional term.
func (l *Loader) Load(year int, term string) (*DataSchema, error) {
	key := cacheKey(year, term)
	l.mu.RLock()
	ds, ok := l.schemas[key]
	l.mu.RUnlock()
	if ok {
		return ds, nil
	}

	v, err, _ := l.group.Do(KindSchema+"/"+key, func() (any, error) {
		root, names, err := l.Layered(KindSchema, year, term)
		if err != nil {
			return nil, err
		}
		ds := &DataSchema{}
		if err := root.Decode(ds); err != nil {
			return nil, &ParseError{File: names[len(names)-1], Err: err}
		}
		l.mu.Lock()
		l.schemas[key] = ds
		l.mu.Unlock()
		l.logger.Debug("schema loaded", "dataset", l.dataset, "year", year, "term", term, "files", names)
		return ds, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*DataSchema), nil
}

// HasStructure reports whether the dataset ships structure files.
func (l *Loader) HasStructure() bool {
	files, err := l.Files(KindStructure)
	return err == nil && len(files) > 0
}

// LoadStructure returns the element tree for year and term with column
// references resolved against the tabular schema of the same year.
func (l *Loader) LoadStructure(year int, term string) (*Structure, error) {
	key := cacheKey(year, term)
	l.mu.RLock()
	st, ok := l.structures[key]
	l.mu.RUnlock()
	if ok {
		return st, nil
	}

	v, err, _ := l.group.Do(KindStructure+"/"+key, func() (any, error) {
		ds, err := l.Load(year, term)
		if err != nil {
			return nil, err
		}
		root, names, err := l.Layered(KindStructure, year, term)
		if err != nil {
			return nil, err
		}
		st := &Structure{}
		if err := root.Decode(st); err != nil {
			return nil, &ParseError{File: names[len(names)-1], Err: err}
		}
		if err := st.Resolve(ds); err != nil {
			return nil, fmt.Errorf("%s: %w", names[len(names)-1], err)
		}
		l.mu.Lock()
		l.structures[key] = st
		l.mu.Unlock()
		l.logger.Debug("structure loaded", "dataset", l.dataset, "year", year, "term", term, "files", names)
		return st, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Structure), nil
}
