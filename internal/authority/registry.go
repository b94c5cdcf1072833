// Package authority maps local authority codes to their canonical names and
// recognises authorities from file names.
package authority

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/pkg/types"
)

//go:embed authorities.yaml
var builtin []byte

// Registry manages the known authorities.
type Registry struct {
	byCode map[string]*types.Authority
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{byCode: make(map[string]*types.Authority)}
}

// Default returns a registry holding the built-in authority list.
func Default() *Registry {
	r := NewRegistry()
	if err := r.Load(builtin); err != nil {
		panic(fmt.Sprintf("authority: built-in list: %v", err))
	}
	return r
}

// Load adds the authorities in a YAML list, replacing any with the same code.
func (r *Registry) Load(data []byte) error {
	var list []types.Authority
	if err := yaml.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}
	for i := range list {
		if err := r.Register(&list[i]); err != nil {
			return err
		}
	}
	return nil
}

// LoadFile loads an authority list from a YAML file.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}
	if err := r.Load(data); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// Register adds an authority directly to the registry.
func (r *Registry) Register(a *types.Authority) error {
	if a.Code == "" {
		return fmt.Errorf("authority %q has no code", a.Name)
	}
	if a.Name == "" {
		return fmt.Errorf("authority %s has no name", a.Code)
	}
	a.Code = strings.ToUpper(a.Code)
	r.byCode[a.Code] = a
	return nil
}

// Get returns the authority with the given code, or nil if not found.
func (r *Registry) Get(code string) *types.Authority {
	return r.byCode[strings.ToUpper(code)]
}

// Name returns the canonical name for a code, or "" if unknown.
func (r *Registry) Name(code string) string {
	if a := r.Get(code); a != nil {
		return a.Name
	}
	return ""
}

// Codes returns every registered code, sorted.
func (r *Registry) Codes() []string {
	out := make([]string, 0, len(r.byCode))
	for c := range r.byCode {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// FromFilename identifies the authority a file belongs to. Canonical names
// and aliases are tried before bare codes, and a name that matches more than
// one authority identifies none.
func (r *Registry) FromFilename(name string) (*types.Authority, bool) {
	tokens := tokenize(name)
	compact := strings.Join(tokens, "")

	if a, ok := r.unique(func(a *types.Authority) bool {
		if strings.Contains(compact, squash(a.Name)) {
			return true
		}
		for _, alias := range a.Aliases {
			if containsToken(tokens, squash(alias)) {
				return true
			}
		}
		return false
	}); ok {
		return a, true
	}
	return r.unique(func(a *types.Authority) bool {
		return containsToken(tokens, strings.ToLower(a.Code))
	})
}

func (r *Registry) unique(match func(*types.Authority) bool) (*types.Authority, bool) {
	var found *types.Authority
	for _, code := range r.Codes() {
		a := r.byCode[code]
		if !match(a) {
			continue
		}
		if found != nil {
			return nil, false
		}
		found = a
	}
	return found, found != nil
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func squash(s string) string {
	return strings.Join(tokenize(s), "")
}

func containsToken(tokens []string, want string) bool {
	for _, t := range tokens {
		if t == want {
			return true
		}
	}
	return false
}
