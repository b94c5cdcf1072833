package schema

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ErrAmbiguousHeader is returned when one actual header matches more than one column.
var ErrAmbiguousHeader = errors.New("header matches more than one column")

// Table is an ordered set of columns.
type Table struct {
	Name    string
	Columns []*Column
	index   map[string]*Column
}

// NewTable builds a table from columns, validating each.
func NewTable(name string, cols ...*Column) (*Table, error) {
	t := &Table{Name: name, index: make(map[string]*Column, len(cols))}
	for _, c := range cols {
		if err := t.add(c); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (t *Table) add(c *Column) error {
	if _, dup := t.index[c.Key]; dup {
		return fmt.Errorf("table %q: duplicate column %q", t.Name, c.Key)
	}
	if err := c.compile(); err != nil {
		return fmt.Errorf("table %q: %w", t.Name, err)
	}
	t.Columns = append(t.Columns, c)
	t.index[c.Key] = c
	return nil
}

// UnmarshalYAML decodes a mapping of column key to descriptor, keeping order.
func (t *Table) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: table must be a mapping", node.Line)
	}
	t.index = make(map[string]*Column, len(node.Content)/2)
	t.Columns = nil
	for i := 0; i+1 < len(node.Content); i += 2 {
		col := &Column{}
		if err := node.Content[i+1].Decode(col); err != nil {
			return fmt.Errorf("column %q: %w", node.Content[i].Value, err)
		}
		col.Key = node.Content[i].Value
		if err := t.add(col); err != nil {
			return fmt.Errorf("line %d: %w", node.Content[i].Line, err)
		}
	}
	return nil
}

// MarshalYAML encodes the table as an ordered mapping.
func (t *Table) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, c := range t.Columns {
		var v yaml.Node
		if err := v.Encode(c); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: c.Key}, &v)
	}
	return node, nil
}

// Column returns the column with the given key, or nil.
func (t *Table) Column(key string) *Column {
	return t.index[key]
}

// Keys returns the column keys in order.
func (t *Table) Keys() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Key
	}
	return out
}

// ColumnForHeader returns the column an actual header refers to. It returns
// ErrAmbiguousHeader when more than one column matches.
func (t *Table) ColumnForHeader(header string) (*Column, error) {
	if c, ok := t.index[header]; ok {
		return c, nil
	}
	var found *Column
	for _, c := range t.Columns {
		if !c.MatchHeader(header) {
			continue
		}
		if found != nil {
			return nil, fmt.Errorf("%w: %q matches %q and %q", ErrAmbiguousHeader, header, found.Key, c.Key)
		}
		found = c
	}
	return found, nil
}

// MatchHeaders reports whether every column matches exactly one of the
// actual headers. A header matching more than one column is an error.
func (t *Table) MatchHeaders(headers []string) (bool, error) {
	counts := make(map[string]int, len(t.Columns))
	for _, h := range headers {
		c, err := t.ColumnForHeader(h)
		if err != nil {
			return false, fmt.Errorf("table %q: %w", t.Name, err)
		}
		if c != nil {
			counts[c.Key]++
		}
	}
	for _, c := range t.Columns {
		if counts[c.Key] != 1 {
			return false, nil
		}
	}
	return true, nil
}

// DataSchema is an ordered set of tables.
type DataSchema struct {
	Tables []*Table
	index  map[string]*Table
}

// NewDataSchema builds a schema from tables.
func NewDataSchema(tables ...*Table) (*DataSchema, error) {
	ds := &DataSchema{index: make(map[string]*Table, len(tables))}
	for _, t := range tables {
		if _, dup := ds.index[t.Name]; dup {
			return nil, fmt.Errorf("duplicate table %q", t.Name)
		}
		ds.Tables = append(ds.Tables, t)
		ds.index[t.Name] = t
	}
	return ds, nil
}

// UnmarshalYAML decodes a mapping of table name to table, keeping order.
func (ds *DataSchema) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: schema must be a mapping of tables", node.Line)
	}
	ds.index = make(map[string]*Table, len(node.Content)/2)
	ds.Tables = nil
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		if _, dup := ds.index[name]; dup {
			return fmt.Errorf("line %d: duplicate table %q", node.Content[i].Line, name)
		}
		t := &Table{Name: name}
		if err := node.Content[i+1].Decode(t); err != nil {
			return fmt.Errorf("table %q: %w", name, err)
		}
		t.Name = name
		ds.Tables = append(ds.Tables, t)
		ds.index[name] = t
	}
	return nil
}

// MarshalYAML encodes the schema as an ordered mapping.
func (ds *DataSchema) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, t := range ds.Tables {
		var v yaml.Node
		if err := v.Encode(t); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: t.Name}, &v)
	}
	return node, nil
}

// Table returns the named table, or nil.
func (ds *DataSchema) Table(name string) *Table {
	if ds == nil {
		return nil
	}
	return ds.index[name]
}

// TableNames returns the table names in order.
func (ds *DataSchema) TableNames() []string {
	out := make([]string, len(ds.Tables))
	for i, t := range ds.Tables {
		out[i] = t.Name
	}
	return out
}

// Column resolves a "table.column" pair.
func (ds *DataSchema) Column(table, column string) *Column {
	t := ds.Table(table)
	if t == nil {
		return nil
	}
	return t.Column(column)
}

// TableFromHeaders returns the first table whose columns are all matched by
// headers. ok is false when no table matches.
func (ds *DataSchema) TableFromHeaders(headers []string) (string, bool, error) {
	for _, t := range ds.Tables {
		ok, err := t.MatchHeaders(headers)
		if err != nil {
			return "", false, err
		}
		if ok {
			return t.Name, true, nil
		}
	}
	return "", false, nil
}
