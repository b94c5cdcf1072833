package schema

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidRegex is returned when a configured /pattern/flags regex cannot be parsed.
var ErrInvalidRegex = errors.New("invalid regex")

// Regex is a configured pattern in /pattern/flags form.
type Regex struct {
	Source string
	prefix *regexp.Regexp
	full   *regexp.Regexp
}

// ParseRegex parses a /pattern/flags expression. The delimiter is the first
// character and the flags are a subset of "imsulx". The x flag strips
// unescaped whitespace and # comments; u and l are accepted and ignored.
func ParseRegex(src string) (*Regex, error) {
	if len(src) < 2 {
		return nil, fmt.Errorf("%w: %q is too short", ErrInvalidRegex, src)
	}
	delim := src[:1]
	end := strings.LastIndex(src, delim)
	if end == 0 {
		return nil, fmt.Errorf("%w: %q has no closing delimiter", ErrInvalidRegex, src)
	}
	pattern, flags := src[1:end], src[end+1:]

	var inline strings.Builder
	for _, f := range flags {
		switch f {
		case 'i', 'm', 's':
			if !strings.ContainsRune(inline.String(), f) {
				inline.WriteRune(f)
			}
		case 'x':
			pattern = stripVerbose(pattern)
		case 'u', 'l':
		default:
			return nil, fmt.Errorf("%w: %q has unknown flag %q", ErrInvalidRegex, src, f)
		}
	}
	lead := ""
	if inline.Len() > 0 {
		lead = "(?" + inline.String() + ")"
	}

	prefix, err := regexp.Compile(lead + `^(?:` + pattern + `)`)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidRegex, src, err)
	}
	full, err := regexp.Compile(lead + `^(?:` + pattern + `)$`)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidRegex, src, err)
	}
	return &Regex{Source: src, prefix: prefix, full: full}, nil
}

// MustParseRegex is like ParseRegex but panics on error.
func MustParseRegex(src string) *Regex {
	r, err := ParseRegex(src)
	if err != nil {
		panic(err)
	}
	return r
}

// Match reports whether the pattern matches at the start of s.
func (r *Regex) Match(s string) bool {
	return r.prefix.MatchString(s)
}

// FullMatch reports whether the pattern matches the whole of s.
func (r *Regex) FullMatch(s string) bool {
	return r.full.MatchString(s)
}

func (r *Regex) String() string { return r.Source }

// stripVerbose removes whitespace and comments outside character classes.
func stripVerbose(p string) string {
	var b strings.Builder
	inClass, escaped, comment := false, false, false
	for _, c := range p {
		switch {
		case comment:
			if c == '\n' {
				comment = false
			}
			continue
		case escaped:
			escaped = false
		case c == '\\':
			escaped = true
		case inClass:
			if c == ']' {
				inClass = false
			}
		case c == '[':
			inClass = true
		case c == '#':
			comment = true
			continue
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

func compileAll(srcs []string) ([]*Regex, error) {
	out := make([]*Regex, 0, len(srcs))
	for _, s := range srcs {
		r, err := ParseRegex(s)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}
