// Package transform enriches, degrades and projects cleaned tables using the
// per-column transform chains declared in a dataset's pipeline config.
package transform

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/authority"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/frame"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/pkg/types"
)

// ErrTransform is returned, wrapped, when a transform cannot be applied.
var ErrTransform = errors.New("transform failed")

// Func computes the new value of one cell. row holds the row's current values.
type Func func(meta types.Metadata, value any, row frame.Row) (any, error)

// Registry holds the named enrich and degrade functions.
type Registry struct {
	enrich      map[string]Func
	degrade     map[string]Func
	authorities *authority.Registry
	secret      []byte
	logger      *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithAuthorities sets the registry used by la_name.
func WithAuthorities(a *authority.Registry) Option {
	return func(r *Registry) { r.authorities = a }
}

// WithSecret sets the key used by hash_swe.
func WithSecret(secret []byte) Option {
	return func(r *Registry) { r.secret = secret }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// NewRegistry creates a registry holding the built-in transforms.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		enrich:  make(map[string]Func),
		degrade: make(map[string]Func),
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	if r.authorities == nil {
		r.authorities = authority.Default()
	}

	r.enrich["la_code"] = laCode
	r.enrich["la_name"] = r.laName
	r.enrich["year"] = year
	r.enrich["add_la_suffix"] = addLASuffix

	r.degrade["first_of_month"] = firstOfMonth
	r.degrade["short_postcode"] = shortPostcode
	r.degrade["hash_swe"] = HashSWE(r.secret)
	return r
}

// RegisterEnrich adds or replaces a named enrich function.
func (r *Registry) RegisterEnrich(name string, fn Func) {
	r.enrich[name] = fn
}

// RegisterDegrade adds or replaces a named degrade function.
func (r *Registry) RegisterDegrade(name string, fn Func) {
	r.degrade[name] = fn
}

// EnrichNames returns the registered enrich function names, sorted.
func (r *Registry) EnrichNames() []string { return names(r.enrich) }

// DegradeNames returns the registered degrade function names, sorted.
func (r *Registry) DegradeNames() []string { return names(r.degrade) }

func names(m map[string]Func) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) lookup(m map[string]Func, name string) (Func, error) {
	fn, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown transform %q", ErrTransform, name)
	}
	return fn, nil
}
