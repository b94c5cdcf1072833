package schema

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalidSchemaDiff is returned for a diff entry with an unknown or missing type.
	ErrInvalidSchemaDiff = errors.New("invalid schema diff")
	// ErrSchemaPathMissing is returned when a diff addresses a path that does not exist.
	ErrSchemaPathMissing = errors.New("schema path missing")
)

// DiffType is the operation a diff entry performs.
type DiffType string

// Supported diff operations.
const (
	DiffAdd    DiffType = "add"
	DiffModify DiffType = "modify"
	DiffRename DiffType = "rename"
	DiffRemove DiffType = "remove"
)

// DiffEntry is one schema mutation. Path segments address mapping keys, or
// sequence indexes when the node at that point is a sequence.
type DiffEntry struct {
	Path  []string
	Type  DiffType
	Value *yaml.Node
}

type diffEntryYAML struct {
	Type  string    `yaml:"type"`
	Path  []string  `yaml:"path"`
	Value yaml.Node `yaml:"value"`
}

// ParseDiff decodes a diff document: a mapping of dotted path to
// {type, value}. An explicit path list overrides the dotted key.
func ParseDiff(node *yaml.Node) ([]DiffEntry, error) {
	if node.Kind == yaml.DocumentNode {
		if len(node.Content) == 0 {
			return nil, nil
		}
		node = node.Content[0]
	}
	if node.Kind == 0 || node.Tag == "!!null" {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: line %d: diff must be a mapping", ErrInvalidSchemaDiff, node.Line)
	}
	var out []DiffEntry
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i]
		var raw diffEntryYAML
		if err := node.Content[i+1].Decode(&raw); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidSchemaDiff, key.Value, err)
		}
		if raw.Value.Kind == 0 {
			raw.Value = yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null"}
		}
		entry := DiffEntry{Type: DiffType(raw.Type), Value: &raw.Value, Path: raw.Path}
		if entry.Path == nil {
			entry.Path = strings.Split(key.Value, ".")
		}
		switch entry.Type {
		case DiffAdd, DiffModify, DiffRename, DiffRemove:
		default:
			return nil, fmt.Errorf("%w: %s: unknown type %q", ErrInvalidSchemaDiff, key.Value, raw.Type)
		}
		out = append(out, entry)
	}
	return out, nil
}

// ApplyDiff applies entries in order to the mapping rooted at root.
func ApplyDiff(root *yaml.Node, entries []DiffEntry) error {
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	for _, e := range entries {
		if err := applyEntry(root, e); err != nil {
			return fmt.Errorf("%s %s: %w", e.Type, strings.Join(e.Path, "."), err)
		}
	}
	return nil
}

func applyEntry(root *yaml.Node, e DiffEntry) error {
	switch e.Type {
	case DiffAdd, DiffModify:
		if len(e.Path) == 0 {
			return fmt.Errorf("%w: empty path", ErrInvalidSchemaDiff)
		}
		parent, err := walk(root, e.Path[:len(e.Path)-1], e.Type == DiffAdd)
		if err != nil {
			return err
		}
		return set(parent, e.Path[len(e.Path)-1], cloneNode(e.Value), e.Type == DiffAdd)
	case DiffRename:
		if len(e.Path) == 0 {
			return fmt.Errorf("%w: empty path", ErrInvalidSchemaDiff)
		}
		if e.Value.Kind != yaml.ScalarNode || e.Value.Value == "" {
			return fmt.Errorf("%w: rename value must be a key", ErrInvalidSchemaDiff)
		}
		parent, err := walk(root, e.Path[:len(e.Path)-1], false)
		if err != nil {
			return err
		}
		return rename(parent, e.Path[len(e.Path)-1], e.Value.Value)
	case DiffRemove:
		target, err := walk(root, e.Path, false)
		if err != nil {
			return err
		}
		keys, err := scalarList(e.Value)
		if err != nil {
			return err
		}
		return remove(target, keys)
	}
	return fmt.Errorf("%w: unknown type %q", ErrInvalidSchemaDiff, e.Type)
}

func mappingIndex(node *yaml.Node, key string) int {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return i
		}
	}
	return -1
}

func seqIndex(node *yaml.Node, seg string) (int, error) {
	i, err := strconv.Atoi(seg)
	if err != nil || i < 0 {
		return 0, fmt.Errorf("%w: %q is not a sequence index", ErrSchemaPathMissing, seg)
	}
	return i, nil
}

func walk(node *yaml.Node, path []string, create bool) (*yaml.Node, error) {
	for n, seg := range path {
		if create && node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
			*node = yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		}
		switch node.Kind {
		case yaml.MappingNode:
			i := mappingIndex(node, seg)
			if i < 0 {
				if !create {
					return nil, fmt.Errorf("%w: %s", ErrSchemaPathMissing, strings.Join(path[:n+1], "."))
				}
				node.Content = append(node.Content,
					&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: seg},
					&yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"})
				i = len(node.Content) - 2
			}
			node = node.Content[i+1]
		case yaml.SequenceNode:
			i, err := seqIndex(node, seg)
			if err != nil {
				return nil, err
			}
			if i >= len(node.Content) {
				return nil, fmt.Errorf("%w: %s", ErrSchemaPathMissing, strings.Join(path[:n+1], "."))
			}
			node = node.Content[i]
		default:
			return nil, fmt.Errorf("%w: %s is not a container", ErrSchemaPathMissing, strings.Join(path[:n+1], "."))
		}
	}
	return node, nil
}

func set(parent *yaml.Node, key string, value *yaml.Node, create bool) error {
	if create && parent.Kind == yaml.ScalarNode && parent.Tag == "!!null" {
		*parent = yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	}
	switch parent.Kind {
	case yaml.MappingNode:
		if i := mappingIndex(parent, key); i >= 0 {
			parent.Content[i+1] = value
			return nil
		}
		if !create {
			return fmt.Errorf("%w: %s", ErrSchemaPathMissing, key)
		}
		parent.Content = append(parent.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}, value)
		return nil
	case yaml.SequenceNode:
		i, err := seqIndex(parent, key)
		if err != nil {
			return err
		}
		switch {
		case i < len(parent.Content):
			parent.Content[i] = value
		case i == len(parent.Content) && create:
			parent.Content = append(parent.Content, value)
		default:
			return fmt.Errorf("%w: index %d of %d", ErrSchemaPathMissing, i, len(parent.Content))
		}
		return nil
	}
	return fmt.Errorf("%w: parent of %s is not a container", ErrSchemaPathMissing, key)
}

func rename(parent *yaml.Node, from, to string) error {
	if parent.Kind != yaml.MappingNode {
		return fmt.Errorf("%w: parent of %s is not a mapping", ErrSchemaPathMissing, from)
	}
	i := mappingIndex(parent, from)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrSchemaPathMissing, from)
	}
	if to != from && mappingIndex(parent, to) >= 0 {
		return fmt.Errorf("%w: rename target %q already exists", ErrInvalidSchemaDiff, to)
	}
	parent.Content[i].Value = to
	return nil
}

func remove(target *yaml.Node, keys []string) error {
	switch target.Kind {
	case yaml.MappingNode:
		for _, k := range keys {
			i := mappingIndex(target, k)
			if i < 0 {
				return fmt.Errorf("%w: %s", ErrSchemaPathMissing, k)
			}
			target.Content = slices.Delete(target.Content, i, i+2)
		}
		return nil
	case yaml.SequenceNode:
		idx := make([]int, 0, len(keys))
		for _, k := range keys {
			i, err := seqIndex(target, k)
			if err != nil {
				return err
			}
			if i >= len(target.Content) {
				return fmt.Errorf("%w: index %d of %d", ErrSchemaPathMissing, i, len(target.Content))
			}
			idx = append(idx, i)
		}
		slices.Sort(idx)
		idx = slices.Compact(idx)
		for j := len(idx) - 1; j >= 0; j-- {
			target.Content = slices.Delete(target.Content, idx[j], idx[j]+1)
		}
		return nil
	}
	return fmt.Errorf("%w: remove target is not a container", ErrSchemaPathMissing)
}

func scalarList(n *yaml.Node) ([]string, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		return []string{n.Value}, nil
	case yaml.SequenceNode:
		out := make([]string, 0, len(n.Content))
		for _, c := range n.Content {
			if c.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("%w: remove values must be keys", ErrInvalidSchemaDiff)
			}
			out = append(out, c.Value)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: remove value must be a key or list of keys", ErrInvalidSchemaDiff)
}

func cloneNode(n *yaml.Node) *yaml.Node {
	if n == nil {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null"}
	}
	c := *n
	c.Content = make([]*yaml.Node, len(n.Content))
	for i, child := range n.Content {
		c.Content[i] = cloneNode(child)
	}
	if n.Alias != nil {
		c.Alias = cloneNode(n.Alias)
	}
	return &c
}
