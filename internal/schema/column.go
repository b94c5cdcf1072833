package schema

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/pkg/types"
)

// ErrUncategorisedValue is returned when a value matches no category of a column.
var ErrUncategorisedValue = errors.New("uncategorised value")

// Category is one permitted value of a category column.
type Category struct {
	Code      string   `yaml:"code"`
	Name      string   `yaml:"name,omitempty"`
	CellRegex []string `yaml:"cell_regex,omitempty"`

	regexes []*Regex
	members map[string]bool
	numeric bool
}

func (c *Category) compile() error {
	if c.Code == "" {
		return fmt.Errorf("category code required")
	}
	rx, err := compileAll(c.CellRegex)
	if err != nil {
		return fmt.Errorf("category %q: %w", c.Code, err)
	}
	c.regexes = rx
	c.members = map[string]bool{normalise(c.Code): true}
	if c.Name != "" {
		c.members[normalise(c.Name)] = true
	}
	c.numeric = isNumeric(c.Code) || (c.Name != "" && isNumeric(c.Name))
	return nil
}

// Numeric holds the bounds and precision of a numeric column.
type Numeric struct {
	Type          string   `yaml:"type"`
	MinValue      *float64 `yaml:"min_value,omitempty"`
	MaxValue      *float64 `yaml:"max_value,omitempty"`
	DecimalPlaces *int     `yaml:"decimal_places,omitempty"`
}

// Column describes one column of a table: its type, validation rules and
// header aliases. Exactly one of String, Numeric, Date or Category is set.
type Column struct {
	Key         string
	String      string
	Numeric     *Numeric
	Date        string
	Category    []*Category
	CanBeBlank  bool
	HeaderRegex []string
	CellRegex   []string

	colType    types.ColumnType
	layout     string
	headerRx   []*Regex
	cellRx     []*Regex
	anyNumeric bool
}

type columnYAML struct {
	String      string      `yaml:"string,omitempty"`
	Numeric     *Numeric    `yaml:"numeric,omitempty"`
	Date        string      `yaml:"date,omitempty"`
	Category    []*Category `yaml:"category,omitempty"`
	CanBeBlank  *bool       `yaml:"canbeblank,omitempty"`
	HeaderRegex []string    `yaml:"header_regex,omitempty"`
	CellRegex   []string    `yaml:"cell_regex,omitempty"`
}

// UnmarshalYAML decodes a column descriptor. Validation happens once the
// owning table assigns the column key.
func (c *Column) UnmarshalYAML(node *yaml.Node) error {
	var raw columnYAML
	if node.Kind != 0 && node.Tag != "!!null" {
		if err := node.Decode(&raw); err != nil {
			return err
		}
	}
	c.String = raw.String
	c.Numeric = raw.Numeric
	c.Date = raw.Date
	c.Category = raw.Category
	c.CanBeBlank = raw.CanBeBlank == nil || *raw.CanBeBlank
	c.HeaderRegex = raw.HeaderRegex
	c.CellRegex = raw.CellRegex
	return nil
}

// MarshalYAML encodes the column descriptor.
func (c *Column) MarshalYAML() (any, error) {
	raw := columnYAML{
		String:      c.String,
		Numeric:     c.Numeric,
		Date:        c.Date,
		Category:    c.Category,
		HeaderRegex: c.HeaderRegex,
		CellRegex:   c.CellRegex,
	}
	if !c.CanBeBlank {
		f := false
		raw.CanBeBlank = &f
	}
	return raw, nil
}

func (c *Column) compile() error {
	set := 0
	if c.String != "" {
		set++
	}
	if c.Numeric != nil {
		set++
	}
	if c.Date != "" {
		set++
	}
	if len(c.Category) > 0 {
		set++
	}
	if set != 1 {
		return fmt.Errorf("column %q must declare exactly one of string, numeric, date, category", c.Key)
	}

	switch {
	case c.String != "":
		switch c.String {
		case "alphanumeric":
			c.colType = types.TypeString
		case "postcode":
			c.colType = types.TypePostcode
		case "regex":
			c.colType = types.TypeRegex
			if len(c.CellRegex) == 0 {
				return fmt.Errorf("column %q: regex string requires cell_regex", c.Key)
			}
		default:
			return fmt.Errorf("column %q: unknown string type %q", c.Key, c.String)
		}
	case c.Numeric != nil:
		switch c.Numeric.Type {
		case "integer":
			c.colType = types.TypeInteger
		case "float":
			c.colType = types.TypeFloat
		default:
			return fmt.Errorf("column %q: unknown numeric type %q", c.Key, c.Numeric.Type)
		}
	case c.Date != "":
		layout, err := DateLayout(c.Date)
		if err != nil {
			return fmt.Errorf("column %q: %w", c.Key, err)
		}
		c.colType = types.TypeDate
		c.layout = layout
	default:
		c.colType = types.TypeCategory
		seen := make(map[string]bool)
		for _, cat := range c.Category {
			if err := cat.compile(); err != nil {
				return fmt.Errorf("column %q: %w", c.Key, err)
			}
			if seen[cat.Code] {
				return fmt.Errorf("column %q: duplicate category code %q", c.Key, cat.Code)
			}
			seen[cat.Code] = true
			c.anyNumeric = c.anyNumeric || cat.numeric
		}
	}

	var err error
	if c.headerRx, err = compileAll(c.HeaderRegex); err != nil {
		return fmt.Errorf("column %q: %w", c.Key, err)
	}
	if c.cellRx, err = compileAll(c.CellRegex); err != nil {
		return fmt.Errorf("column %q: %w", c.Key, err)
	}
	return nil
}

// Type returns the column's primary type.
func (c *Column) Type() types.ColumnType { return c.colType }

// Layout returns the Go time layout of a date column.
func (c *Column) Layout() string { return c.layout }

// Codes returns the category codes in declaration order.
func (c *Column) Codes() []string {
	out := make([]string, len(c.Category))
	for i, cat := range c.Category {
		out[i] = cat.Code
	}
	return out
}

// MatchCategory returns the canonical code for v. Direct code or name
// comparison is tried first, then the integer form of a numeric value,
// then each category's cell patterns in order.
func (c *Column) MatchCategory(v string) (string, error) {
	n := normalise(v)
	for _, cat := range c.Category {
		if cat.members[n] {
			return cat.Code, nil
		}
	}
	if c.anyNumeric {
		if iv, ok := integerString(n); ok {
			for _, cat := range c.Category {
				if cat.members[iv] {
					return cat.Code, nil
				}
			}
		}
	}
	trimmed := strings.TrimSpace(v)
	for _, cat := range c.Category {
		for _, r := range cat.regexes {
			if r.Match(trimmed) {
				return cat.Code, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %q not in %v", ErrUncategorisedValue, v, c.Codes())
}

// MatchHeader reports whether an actual header refers to this column, by
// exact, trimmed or case-insensitive equality with the key, or by any
// header regex.
func (c *Column) MatchHeader(header string) bool {
	if header == c.Key {
		return true
	}
	if normalise(header) == normalise(c.Key) {
		return true
	}
	trimmed := strings.TrimSpace(header)
	for _, r := range c.headerRx {
		if r.Match(trimmed) {
			return true
		}
	}
	return false
}

func normalise(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func isNumeric(s string) bool {
	_, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return err == nil
}

// integerString returns str(int(float(s))).
func integerString(s string) (string, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return "", false
	}
	return strconv.FormatInt(int64(f), 10), true
}
