package schema

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Unbounded is the MaxOccurs of an element that may repeat without limit.
const Unbounded = -1

// Element is one node of a hierarchical document structure. Leaf elements
// carry the Column their text is coerced with.
type Element struct {
	Name      string
	MinOccurs int
	MaxOccurs int
	Children  []*Element
	Column    *Column
	// Ref is a "table.column" reference resolved against a DataSchema.
	Ref string

	index map[string]*Element
}

type elementYAML struct {
	columnYAML `yaml:",inline"`
	Column     string    `yaml:"column"`
	MinOccurs  *int      `yaml:"min_occurs"`
	MaxOccurs  string    `yaml:"max_occurs"`
	Children   yaml.Node `yaml:"children"`
}

// UnmarshalYAML decodes an element descriptor.
func (e *Element) UnmarshalYAML(node *yaml.Node) error {
	e.MinOccurs, e.MaxOccurs = 1, 1
	if node.Tag == "!!null" {
		return nil
	}
	var raw elementYAML
	if err := node.Decode(&raw); err != nil {
		return err
	}
	if raw.MinOccurs != nil {
		e.MinOccurs = *raw.MinOccurs
	}
	switch raw.MaxOccurs {
	case "":
	case "unbounded":
		e.MaxOccurs = Unbounded
	default:
		n, err := strconv.Atoi(raw.MaxOccurs)
		if err != nil {
			return fmt.Errorf("line %d: max_occurs %q: %w", node.Line, raw.MaxOccurs, err)
		}
		e.MaxOccurs = n
	}
	e.Ref = raw.Column

	if raw.String != "" || raw.Numeric != nil || raw.Date != "" || len(raw.Category) > 0 {
		e.Column = &Column{
			String:      raw.String,
			Numeric:     raw.Numeric,
			Date:        raw.Date,
			Category:    raw.Category,
			CanBeBlank:  raw.CanBeBlank == nil || *raw.CanBeBlank,
			HeaderRegex: raw.HeaderRegex,
			CellRegex:   raw.CellRegex,
		}
	}

	children := &raw.Children
	if children.Kind == 0 || children.Tag == "!!null" {
		return nil
	}
	if children.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: children must be a mapping", children.Line)
	}
	kids, err := decodeElements(children)
	if err != nil {
		return err
	}
	e.Children = kids
	return nil
}

func decodeElements(node *yaml.Node) ([]*Element, error) {
	var out []*Element
	for i := 0; i+1 < len(node.Content); i += 2 {
		child := &Element{}
		if err := node.Content[i+1].Decode(child); err != nil {
			return nil, fmt.Errorf("element %q: %w", node.Content[i].Value, err)
		}
		if node.Content[i+1].Tag == "!!null" {
			child.MinOccurs, child.MaxOccurs = 1, 1
		}
		child.Name = node.Content[i].Value
		out = append(out, child)
	}
	return out, nil
}

// Child returns the named child element, or nil.
func (e *Element) Child(name string) *Element {
	if e == nil {
		return nil
	}
	return e.index[name]
}

// Leaf reports whether the element has no children.
func (e *Element) Leaf() bool { return len(e.Children) == 0 }

func (e *Element) resolve(ds *DataSchema, path []string) error {
	e.index = make(map[string]*Element, len(e.Children))
	here := append(slices.Clip(path), e.Name)
	if e.Ref != "" {
		table, col, ok := strings.Cut(e.Ref, ".")
		c := ds.Column(table, col)
		if !ok || c == nil {
			return fmt.Errorf("%w: element %s references unknown column %q", ErrSchemaPathMissing, strings.Join(here, "/"), e.Ref)
		}
		e.Column = c
	}
	if e.Column != nil && e.Column.colType == "" {
		e.Column.Key = e.Name
		if err := e.Column.compile(); err != nil {
			return fmt.Errorf("element %s: %w", strings.Join(here, "/"), err)
		}
	}
	for _, c := range e.Children {
		if _, dup := e.index[c.Name]; dup {
			return fmt.Errorf("element %s: duplicate child %q", strings.Join(here, "/"), c.Name)
		}
		e.index[c.Name] = c
		if err := c.resolve(ds, here); err != nil {
			return err
		}
	}
	return nil
}

// Structure is the element tree of a hierarchical dataset.
type Structure struct {
	Roots []*Element
	index map[string]*Element
}

// UnmarshalYAML decodes a mapping of root element name to descriptor.
func (s *Structure) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: structure must be a mapping of elements", node.Line)
	}
	roots, err := decodeElements(node)
	if err != nil {
		return err
	}
	s.Roots = roots
	return nil
}

// Resolve links column references to ds and validates every leaf column.
func (s *Structure) Resolve(ds *DataSchema) error {
	s.index = make(map[string]*Element, len(s.Roots))
	for _, r := range s.Roots {
		s.index[r.Name] = r
		if err := r.resolve(ds, nil); err != nil {
			return err
		}
	}
	return nil
}

// Root returns the named root element, or nil.
func (s *Structure) Root(name string) *Element {
	if s == nil {
		return nil
	}
	return s.index[name]
}

// Lookup resolves an element path such as [Message Header CollectionDetails].
func (s *Structure) Lookup(path []string) *Element {
	if len(path) == 0 {
		return nil
	}
	e := s.Root(path[0])
	for _, name := range path[1:] {
		if e = e.Child(name); e == nil {
			return nil
		}
	}
	return e
}
