package frame

import (
	"context"
	"fmt"
	"io"

	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/vfs"
)

// Format selects the on-disk encoding of exported tables.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
	FormatXLSX    Format = "xlsx"
)

// Container is a named collection of frames. Names keep insertion order.
type Container struct {
	names  []string
	tables map[string]*Frame
}

// NewContainer creates an empty container.
func NewContainer() *Container {
	return &Container{tables: make(map[string]*Frame)}
}

// Set stores a frame under name, replacing any previous frame.
func (c *Container) Set(name string, f *Frame) {
	if _, ok := c.tables[name]; !ok {
		c.names = append(c.names, name)
	}
	c.tables[name] = f
}

// Get returns the frame stored under name.
func (c *Container) Get(name string) (*Frame, bool) {
	if c == nil {
		return nil, false
	}
	f, ok := c.tables[name]
	return f, ok
}

// Delete removes a table.
func (c *Container) Delete(name string) {
	if _, ok := c.tables[name]; !ok {
		return
	}
	delete(c.tables, name)
	for i, n := range c.names {
		if n == name {
			c.names = append(c.names[:i], c.names[i+1:]...)
			break
		}
	}
}

// Names returns the table names in insertion order.
func (c *Container) Names() []string {
	if c == nil {
		return nil
	}
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Len returns the number of tables.
func (c *Container) Len() int {
	if c == nil {
		return 0
	}
	return len(c.names)
}

// Clone deep-copies every table.
func (c *Container) Clone() *Container {
	out := NewContainer()
	for _, n := range c.Names() {
		out.Set(n, c.tables[n].Clone())
	}
	return out
}

// WriteTables writes one file per table using the given format. pathFor maps
// a table name to its destination path.
func (c *Container) WriteTables(ctx context.Context, fsys vfs.FS, format Format, pathFor func(table string) string) error {
	for _, name := range c.Names() {
		f := c.tables[name]
		path := pathFor(name)
		err := vfs.WriteFile(ctx, fsys, path, func(w io.Writer) error {
			switch format {
			case FormatCSV:
				return f.WriteCSV(w)
			case FormatParquet:
				return f.WriteParquet(w)
			case FormatXLSX:
				single := NewContainer()
				single.Set(name, f)
				return single.WriteWorkbook(w)
			default:
				return fmt.Errorf("unsupported format %q", format)
			}
		})
		if err != nil {
			return fmt.Errorf("writing table %s to %s: %w", name, path, err)
		}
	}
	return nil
}
