package filters

import (
	"errors"
	"slices"
	"strconv"
	"strings"

	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/errorlist"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/events"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/schema"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/pkg/types"
)

// AddContext attaches the current element path to every event. Start and
// end events include their own element.
func AddContext() events.Filter {
	return func(in events.Stream) events.Stream {
		return func(yield func(events.Event) bool) {
			var stack []string
			for ev := range in {
				switch ev.Kind {
				case events.StartElement:
					stack = append(stack, ev.Tag)
					ev.Context = slices.Clone(stack)
				case events.EndElement:
					ev.Context = slices.Clone(stack)
					if len(stack) > 0 {
						stack = stack[:len(stack)-1]
					}
				default:
					ev.Context = slices.Clone(stack)
				}
				if !yield(ev) {
					return
				}
			}
		}
	}
}

// AddSchema resolves each event's context path in the structure and
// attaches the element, its column and its name as the header.
func AddSchema(st *schema.Structure) events.Filter {
	cache := make(map[string]*schema.Element)
	return events.Map(func(ev events.Event) events.Event {
		if len(ev.Context) == 0 {
			return ev
		}
		key := strings.Join(ev.Context, "/")
		el, ok := cache[key]
		if !ok {
			el = st.Lookup(ev.Context)
			cache[key] = el
		}
		if el == nil {
			return ev
		}
		ev.Element = el
		ev.Header = el.Name
		if el.Column != nil {
			ev.ColumnSpec = el.Column
		}
		return ev
	})
}

type occurrence struct {
	el     *schema.Element
	counts map[string]int
}

// ValidateElements checks the document against its structure: unknown
// elements, too many or too few occurrences, and leaf values that break
// their column's type or facets. Each violation carries the source line.
func ValidateElements() events.Filter {
	return func(in events.Stream) events.Stream {
		return func(yield func(events.Event) bool) {
			var stack []occurrence
			unknownDepth := 0
			for ev := range in {
				switch ev.Kind {
				case events.StartElement:
					switch {
					case unknownDepth > 0:
						unknownDepth++
					case ev.Element == nil:
						unknownDepth = 1
						ev = ev.WithError(violation(ev, types.ErrUnexpectedNode, "unexpected element %s", path(ev)))
					default:
						if n := len(stack); n > 0 {
							parent := stack[n-1]
							parent.counts[ev.Tag]++
							if limit := ev.Element.MaxOccurs; limit != schema.Unbounded && parent.counts[ev.Tag] > limit {
								ev = ev.WithError(violation(ev, types.ErrUnexpectedNode,
									"element %s occurs more than %d times", path(ev), limit))
							}
						}
						stack = append(stack, occurrence{el: ev.Element, counts: make(map[string]int)})
					}
				case events.EndElement:
					if unknownDepth > 0 {
						unknownDepth--
						break
					}
					if n := len(stack); n > 0 {
						top := stack[n-1]
						stack = stack[:n-1]
						for _, c := range top.el.Children {
							if top.counts[c.Name] < c.MinOccurs {
								ev = ev.WithError(violation(ev, types.ErrMissingField,
									"element %s is missing required child %s", path(ev), c.Name))
							}
						}
					}
				case events.TextNode:
					if unknownDepth > 0 || ev.ColumnSpec == nil {
						break
					}
					if _, err := ev.ColumnSpec.Convert(ev.Value); err != nil {
						facet := types.ErrOther
						var ve *schema.ValueError
						if errors.As(err, &ve) && ve.Facet != "" {
							facet = ve.Facet
						}
						rec := violation(ev, facet, "invalid value for %s", path(ev))
						rec.Exception = err.Error()
						ev = ev.WithError(rec)
						ev.Invalid = true
					}
				}
				if !yield(ev) {
					return
				}
			}
		}
	}
}

func path(ev events.Event) string {
	if len(ev.Context) == 0 {
		return ev.Tag
	}
	return strings.Join(ev.Context, "/")
}

func violation(ev events.Event, kind types.ErrorKind, format string, args ...any) errorlist.Record {
	rec := errorlist.New(kind, format, args...)
	rec.Line = ev.Line
	if ev.Line > 0 {
		rec.Message += " (line " + strconv.Itoa(ev.Line) + ")"
	}
	return rec
}

type collecting struct {
	tag      string
	record   events.Record
	text     any
	children bool
	known    bool
	leaf     bool
}

func (c *collecting) isLeaf() bool {
	if c.known {
		return c.leaf
	}
	return !c.children
}

// MessageCollector gathers the subtree of every element named in tags into
// an events.Record attached to that element's EndElement. Leaf children map
// to their coerced value, or a []any when repeated, and container children
// to a []events.Record.
func MessageCollector(tags ...string) events.Filter {
	want := make(map[string]bool, len(tags))
	for _, t := range tags {
		want[t] = true
	}
	return func(in events.Stream) events.Stream {
		return func(yield func(events.Event) bool) {
			var stack []*collecting
			for ev := range in {
				switch ev.Kind {
				case events.StartElement:
					if len(stack) > 0 || want[ev.Tag] {
						if n := len(stack); n > 0 {
							stack[n-1].children = true
						}
						c := &collecting{tag: ev.Tag, record: events.Record{}, known: ev.Element != nil}
						c.leaf = c.known && ev.Element.Leaf()
						stack = append(stack, c)
					}
				case events.TextNode:
					if n := len(stack); n > 0 {
						stack[n-1].text = ev.Value
					}
				case events.EndElement:
					n := len(stack)
					if n == 0 {
						break
					}
					top := stack[n-1]
					stack = stack[:n-1]
					if n == 1 {
						ev.Record = top.record
						break
					}
					parent := stack[n-2].record
					if top.isLeaf() {
						v := top.text
						if v == nil {
							v = ""
						}
						switch prev, seen := parent[top.tag]; {
						case !seen:
							parent[top.tag] = v
						case isList(prev):
							parent[top.tag] = append(prev.([]any), v)
						default:
							parent[top.tag] = []any{prev, v}
						}
					} else {
						list, _ := parent[top.tag].([]events.Record)
						parent[top.tag] = append(list, top.record)
					}
				}
				if !yield(ev) {
					return
				}
			}
		}
	}
}

func isList(v any) bool {
	_, ok := v.([]any)
	return ok
}
