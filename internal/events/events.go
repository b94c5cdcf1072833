// Package events defines the format-neutral parse event stream shared by
// the tabular and hierarchical adapters and every stream filter.
package events

import (
	"iter"
	"slices"

	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/errorlist"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/schema"
)

// Kind identifies an event in the stream alphabet.
type Kind int

// Event kinds.
const (
	StartContainer Kind = iota + 1
	EndContainer
	StartTable
	EndTable
	StartRow
	EndRow
	Cell
	StartElement
	EndElement
	TextNode
	CommentNode
	ProcessingInstructionNode
)

var kindNames = map[Kind]string{
	StartContainer:            "StartContainer",
	EndContainer:              "EndContainer",
	StartTable:                "StartTable",
	EndTable:                  "EndTable",
	StartRow:                  "StartRow",
	EndRow:                    "EndRow",
	Cell:                      "Cell",
	StartElement:              "StartElement",
	EndElement:                "EndElement",
	TextNode:                  "TextNode",
	CommentNode:               "CommentNode",
	ProcessingInstructionNode: "ProcessingInstructionNode",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "Unknown"
}

// Record is the content of a collected element subtree: leaf names map to
// coerced values and container names map to []Record.
type Record map[string]any

// Leaves returns the single-valued leaf entries of r, skipping nested
// records and repeated leaves.
func (r Record) Leaves() map[string]any {
	out := make(map[string]any, len(r))
	for k, v := range r {
		switch v.(type) {
		case []Record, []any:
			continue
		}
		out[k] = v
	}
	return out
}

// Values returns every value of the leaf tag, repeated or not.
func (r Record) Values(tag string) []any {
	switch v := r[tag].(type) {
	case nil:
		return nil
	case []any:
		return v
	case []Record:
		return nil
	default:
		return []any{v}
	}
}

// Children returns the nested records collected under tag.
func (r Record) Children(tag string) []Record {
	list, _ := r[tag].([]Record)
	return list
}

// Ext holds the attributes filters attach to an event as it flows down the
// pipeline. Zero values mean "not set".
type Ext struct {
	Filename   string
	TableName  string
	TableSpec  *schema.Table
	Header     string
	ColumnSpec *schema.Column
	Context    []string
	Element    *schema.Element
	RowValues  map[string]any
	Record     Record
	Errors     []errorlist.Record
	// Invalid marks a value already reported by element validation.
	Invalid bool
}

// Event is one parse event. Tag names the container, sheet or element;
// Value carries cell or text content.
type Event struct {
	Kind    Kind
	Tag     string
	Attrs   map[string]string
	Line    int
	Value   any
	Headers []string
	RowIx   int
	ColIx   int
	Ext
}

// WithError returns a copy of ev with rec appended to its errors.
func (ev Event) WithError(rec errorlist.Record) Event {
	ev.Errors = append(slices.Clip(ev.Errors), rec)
	return ev
}

// Text returns the event value as a string, or "" when it is not one.
func (ev Event) Text() string {
	s, _ := ev.Value.(string)
	return s
}

// Stream is a lazy, single-pass sequence of events.
type Stream = iter.Seq[Event]

// Filter transforms a stream.
type Filter func(Stream) Stream

// Pipe chains filters left to right.
func Pipe(s Stream, filters ...Filter) Stream {
	for _, f := range filters {
		s = f(s)
	}
	return s
}

// Of returns a stream over the given events.
func Of(evs ...Event) Stream {
	return slices.Values(evs)
}

// Drain consumes a stream, discarding every event.
func Drain(s Stream) {
	for range s {
	}
}

// Map returns a filter applying fn to every event.
func Map(fn func(Event) Event) Filter {
	return func(in Stream) Stream {
		return func(yield func(Event) bool) {
			for ev := range in {
				if !yield(fn(ev)) {
					return
				}
			}
		}
	}
}
