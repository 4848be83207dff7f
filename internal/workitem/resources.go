package workitem

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// GlobPrefix marks a resource token as a glob pattern rather than a literal.
// Two items conflict when a pattern of one matches a literal of the other,
// or when they share a literal or an identical pattern.
const GlobPrefix = "glob:"

// ResourceSet is the set of resource tokens a work item will touch.
// Resource identifiers are opaque, comparable tokens (typically path-like
// strings) matched by strict equality. Tokens with the "glob:" prefix are
// compiled as glob patterns and matched against the literals of other sets.
//
// A ResourceSet is immutable once created.
type ResourceSet struct {
	literals map[string]struct{}
	patterns map[string]glob.Glob // raw pattern (prefix stripped) -> compiled
}

// NewResourceSet creates a ResourceSet from the given tokens. Duplicate
// tokens are collapsed. Tokens prefixed with "glob:" must compile as glob
// patterns; a non-compiling pattern is a validation error.
func NewResourceSet(tokens ...string) (ResourceSet, error) {
	s := ResourceSet{
		literals: make(map[string]struct{}),
		patterns: make(map[string]glob.Glob),
	}

	for _, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if pat, ok := strings.CutPrefix(tok, GlobPrefix); ok {
			g, err := glob.Compile(pat, '/')
			if err != nil {
				return ResourceSet{}, fmt.Errorf("invalid resource pattern %q: %w", tok, err)
			}
			s.patterns[pat] = g
			continue
		}
		s.literals[tok] = struct{}{}
	}

	return s, nil
}

// MustResourceSet is NewResourceSet for statically-known tokens; it panics on
// an invalid pattern. Intended for tests.
func MustResourceSet(tokens ...string) ResourceSet {
	s, err := NewResourceSet(tokens...)
	if err != nil {
		panic(err)
	}
	return s
}

// Len returns the number of distinct tokens in the set.
func (s ResourceSet) Len() int {
	return len(s.literals) + len(s.patterns)
}

// IsEmpty reports whether the set contains no tokens.
func (s ResourceSet) IsEmpty() bool {
	return s.Len() == 0
}

// Tokens returns the set's tokens in sorted order, patterns carrying their
// "glob:" prefix. The result is a fresh slice.
func (s ResourceSet) Tokens() []string {
	tokens := make([]string, 0, s.Len())
	for lit := range s.literals {
		tokens = append(tokens, lit)
	}
	for pat := range s.patterns {
		tokens = append(tokens, GlobPrefix+pat)
	}
	sort.Strings(tokens)
	return tokens
}

// Contains reports whether the set declares the exact literal token.
func (s ResourceSet) Contains(token string) bool {
	_, ok := s.literals[token]
	return ok
}

// Matches reports whether the given concrete resource (e.g. a file path that
// was actually written) is covered by the set: an exact literal match or any
// pattern match.
func (s ResourceSet) Matches(resource string) bool {
	if s.Contains(resource) {
		return true
	}
	for _, g := range s.patterns {
		if g.Match(resource) {
			return true
		}
	}
	return false
}

// Conflicts reports whether two resource sets intersect. Literal tokens
// intersect by strict equality. A pattern intersects a literal when it
// matches it. Two patterns intersect only when byte-identical: pattern
// intersection in general is not worth deciding, and exact-path tokens are
// the expected case.
func (s ResourceSet) Conflicts(other ResourceSet) bool {
	// Iterate over the smaller literal set.
	a, b := s, other
	if len(b.literals) < len(a.literals) {
		a, b = b, a
	}
	for lit := range a.literals {
		if _, ok := b.literals[lit]; ok {
			return true
		}
	}

	for lit := range other.literals {
		for _, g := range s.patterns {
			if g.Match(lit) {
				return true
			}
		}
	}
	for lit := range s.literals {
		for _, g := range other.patterns {
			if g.Match(lit) {
				return true
			}
		}
	}

	for pat := range s.patterns {
		if _, ok := other.patterns[pat]; ok {
			return true
		}
	}

	return false
}

// MarshalJSON encodes the set as a sorted JSON array of tokens.
func (s ResourceSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Tokens())
}

// MarshalYAML encodes the set as a sorted list of tokens.
func (s ResourceSet) MarshalYAML() (any, error) {
	return s.Tokens(), nil
}
