// Package dataset binds a dataset family's embedded schemas, pipeline config
// and record mapping to the shared stream pipeline.
package dataset

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/adapter"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/events"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/filters"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/schema"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/transform"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/pkg/types"
)

var (
	// ErrMissingYear is returned when no collection year can be found for a file.
	ErrMissingYear = errors.New("no collection year found")
	// ErrStream is returned when a file cannot be parsed to the end.
	ErrStream = errors.New("stream error")
)

// PipelineFile is the name of the pipeline config inside a definition's files.
const PipelineFile = "pipeline.yml"

// Definition describes one dataset family.
type Definition struct {
	Name        string
	Description string
	// Files holds the schema and structure files plus pipeline.yml.
	Files fs.FS
	// Tags names the elements collected into records in markup inputs.
	Tags []string
	// Mapper fans collected records out into table rows.
	Mapper filters.RecordMapper
	// YearPath is the element path of an in-document collection year or
	// reference date, tried before the file name.
	YearPath []string
	Enrich   map[string]transform.Func
	Degrade  map[string]transform.Func
}

// Dataset is a loaded definition.
type Dataset struct {
	def      *Definition
	loader   *schema.Loader
	pipeline *types.PipelineConfig
	logger   *slog.Logger
}

// New loads a definition's pipeline config and prepares its schema loader.
func New(def *Definition, logger *slog.Logger) (*Dataset, error) {
	if def.Name == "" {
		return nil, fmt.Errorf("dataset has no name")
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("dataset", def.Name)

	data, err := fs.ReadFile(def.Files, PipelineFile)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: reading %s: %w", def.Name, PipelineFile, err)
	}
	var cfg types.PipelineConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("dataset %s: parsing %s: %w", def.Name, PipelineFile, err)
	}
	d := &Dataset{
		def:      def,
		loader:   schema.NewLoader(def.Files, def.Name, logger),
		pipeline: &cfg,
		logger:   logger,
	}
	if d.Hierarchical() && d.def.Mapper == nil {
		return nil, fmt.Errorf("dataset %s: structure files need a record mapper", def.Name)
	}
	return d, nil
}

// Name returns the dataset name.
func (d *Dataset) Name() string { return d.def.Name }

// Description returns the human-readable description.
func (d *Dataset) Description() string { return d.def.Description }

// Loader returns the schema loader.
func (d *Dataset) Loader() *schema.Loader { return d.loader }

// Pipeline returns the pipeline config.
func (d *Dataset) Pipeline() *types.PipelineConfig { return d.pipeline }

// Hierarchical reports whether the dataset is read from markup.
func (d *Dataset) Hierarchical() bool { return d.loader.HasStructure() }

// Register adds the dataset's own transforms to r.
func (d *Dataset) Register(r *transform.Registry) {
	for name, fn := range d.def.Enrich {
		r.RegisterEnrich(name, fn)
	}
	for name, fn := range d.def.Degrade {
		r.RegisterDegrade(name, fn)
	}
}

// Clean runs the stream pipeline over src with the schema of year and term.
// Per-cell problems are returned in the result's error list; a parse failure
// that ends the stream early wraps ErrStream.
func (d *Dataset) Clean(src *adapter.Source, filename string, year int, term string) (filters.Result, error) {
	ds, err := d.loader.Load(year, term)
	if err != nil {
		return filters.Result{}, err
	}
	var chain []events.Filter
	if d.Hierarchical() {
		if src.Format != adapter.FormatXML {
			return filters.Result{}, fmt.Errorf("%w: %s: expected xml, got %s", ErrStream, filename, src.Format)
		}
		st, err := d.loader.LoadStructure(year, term)
		if err != nil {
			return filters.Result{}, err
		}
		chain = filters.Hierarchical(filename, ds, st, d.def.Mapper, d.def.Tags...)
	} else {
		chain = filters.Tabular(filename, ds)
	}

	res := filters.Run(src.Events(), chain...)
	if err := src.Err(); err != nil {
		return res, fmt.Errorf("%w: %v", ErrStream, err)
	}
	d.logger.Debug("file cleaned", "filename", filename, "tables", res.Tables.Len(), "errors", res.Errors.Len())
	return res, nil
}

// DiscoverYear finds the collection year and term of a file, from the
// document itself when the dataset names a year element, else from the
// file name.
func (d *Dataset) DiscoverYear(filename string, src *adapter.Source) (int, string, error) {
	term := TermFromFilename(filename)
	if len(d.def.YearPath) > 0 && src != nil && src.Format == adapter.FormatXML {
		if y, ok := yearFromDocument(src, d.def.YearPath); ok {
			return y, term, nil
		}
	}
	if y, ok := YearFromFilename(filename); ok {
		return y, term, nil
	}
	return 0, "", fmt.Errorf("%w: %s", ErrMissingYear, filename)
}

var (
	yearRx  = regexp.MustCompile(`(?:^|\D)((?:19|20)\d{2})(?:[-_ ]?(\d{2}))?(?:\D|$)`)
	leadRx  = regexp.MustCompile(`^\s*((?:19|20)\d{2})`)
	termSet = []string{"autumn", "spring", "summer"}
)

// YearFromFilename returns the last four-digit year in a file name. A year
// written as a span such as 2022-23 or 2022_23 yields its second year.
func YearFromFilename(name string) (int, bool) {
	matches := yearRx.FindAllStringSubmatch(name, -1)
	if len(matches) == 0 {
		return 0, false
	}
	m := matches[len(matches)-1]
	y, _ := strconv.Atoi(m[1])
	if m[2] != "" {
		next, _ := strconv.Atoi(m[2])
		if next == (y+1)%100 {
			y++
		}
	}
	return y, true
}

// TermFromFilename returns the school term named in a file name, or "".
func TermFromFilename(name string) string {
	tokens := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return (r < 'a' || r > 'z') && (r < '0' || r > '9')
	})
	for _, t := range tokens {
		if slices.Contains(termSet, t) {
			return t
		}
	}
	return ""
}

func yearFromDocument(src *adapter.Source, path []string) (int, bool) {
	for ev := range events.Pipe(src.Events(), filters.StripText(), filters.AddContext()) {
		if ev.Kind != events.TextNode || !slices.Equal(ev.Context, path) {
			continue
		}
		m := leadRx.FindStringSubmatch(ev.Text())
		if m == nil {
			return 0, false
		}
		y, _ := strconv.Atoi(m[1])
		return y, true
	}
	return 0, false
}
