// Package options parses the "key: value" option strings accepted by
// observers and suites, e.g.
//
//	result_folder: RS_on_toy algorithm_info: "random search" base_evaluation_triggers: 1,2,5
//
// Keys end with a colon. Values are either a single whitespace-free token or a
// double-quoted string. Separators between pairs are free-form whitespace.
// A list value must therefore be written without blanks ("1,2,5") or quoted
// ("\"1, 2, 5\""): in `base_evaluation_triggers: 1, 2, 5` the value is "1,"
// and the stray "2," and "5" are ignored.
package options

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// Set is a parsed option string. Later occurrences of a key win.
type Set struct {
	values map[string]string
	order  []string
}

// Parse tokenizes s into key/value pairs. A key without a value and an
// unterminated quote are errors; text that is not preceded by a key is
// ignored.
func Parse(s string) (*Set, error) {
	set := &Set{values: make(map[string]string)}
	toks, err := tokenize(s)
	if err != nil {
		return nil, err
	}

	for i := 0; i < len(toks); i++ {
		tok := toks[i]
		if tok.quoted || !strings.HasSuffix(tok.text, ":") {
			// "key:value" written without a blank
			if !tok.quoted {
				if k, v, ok := strings.Cut(tok.text, ":"); ok && k != "" && v != "" {
					set.put(k, v)
				}
			}
			continue
		}
		key := strings.TrimSuffix(tok.text, ":")
		if key == "" {
			continue
		}
		if i+1 >= len(toks) {
			return nil, fmt.Errorf("option %q has no value", key)
		}
		next := toks[i+1]
		if !next.quoted && strings.HasSuffix(next.text, ":") {
			return nil, fmt.Errorf("option %q has no value", key)
		}
		set.put(key, next.text)
		i++
	}
	return set, nil
}

func (s *Set) put(key, value string) {
	if _, ok := s.values[key]; !ok {
		s.order = append(s.order, key)
	}
	s.values[key] = value
}

// Has reports whether key was given.
func (s *Set) Has(key string) bool {
	_, ok := s.values[key]
	return ok
}

// Keys returns the given keys in first-seen order.
func (s *Set) Keys() []string {
	return append([]string(nil), s.order...)
}

// Unknown returns the given keys that are not in known, sorted.
func (s *Set) Unknown(known ...string) []string {
	k := make(map[string]struct{}, len(known))
	for _, name := range known {
		k[name] = struct{}{}
	}
	var out []string
	for _, key := range s.order {
		if _, ok := k[key]; !ok {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}

// String returns the raw value of key, or def when absent.
func (s *Set) String(key, def string) string {
	if v, ok := s.values[key]; ok {
		return v
	}
	return def
}

// Int returns the value of key as an int, or def when absent.
func (s *Set) Int(key string, def int) (int, error) {
	v, ok := s.values[key]
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("option %q: %q is not an integer", key, v)
	}
	return n, nil
}

// Float returns the value of key as a float64, or def when absent.
func (s *Set) Float(key string, def float64) (float64, error) {
	v, ok := s.values[key]
	if !ok {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("option %q: %q is not a number", key, v)
	}
	return f, nil
}

// Ints returns the comma-separated integers of key, or def when absent.
// Blanks around the commas are allowed only inside a quoted value.
func (s *Set) Ints(key string, def []int) ([]int, error) {
	v, ok := s.values[key]
	if !ok {
		return append([]int(nil), def...), nil
	}
	var out []int
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("option %q: %q is not an integer", key, part)
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("option %q: empty list", key)
	}
	return out, nil
}

// Ranges returns the value of key parsed with ParseRanges, or nil when absent.
func (s *Set) Ranges(key string, min, max int) ([]int, error) {
	v, ok := s.values[key]
	if !ok {
		return nil, nil
	}
	out, err := ParseRanges(v, min, max)
	if err != nil {
		return nil, fmt.Errorf("option %q: %w", key, err)
	}
	return out, nil
}

// ParseRanges parses lists such as "1-3,5,8-" into the ascending, distinct
// integers they name. Open ends take min and max.
func ParseRanges(s string, min, max int) ([]int, error) {
	seen := make(map[int]struct{})
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi := min, max
		if a, b, isRange := strings.Cut(part, "-"); isRange {
			var err error
			if a != "" {
				if lo, err = strconv.Atoi(a); err != nil {
					return nil, fmt.Errorf("bad range %q", part)
				}
			}
			if b != "" {
				if hi, err = strconv.Atoi(b); err != nil {
					return nil, fmt.Errorf("bad range %q", part)
				}
			}
		} else {
			n, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("bad number %q", part)
			}
			lo, hi = n, n
		}
		if lo > hi {
			return nil, fmt.Errorf("empty range %q", part)
		}
		if lo < min || hi > max {
			return nil, fmt.Errorf("range %q outside [%d, %d]", part, min, max)
		}
		for n := lo; n <= hi; n++ {
			seen[n] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return nil, fmt.Errorf("no values in %q", s)
	}
	out := make([]int, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Ints(out)
	return out, nil
}

type token struct {
	text   string
	quoted bool
}

func tokenize(s string) ([]token, error) {
	var toks []token
	rs := []rune(s)
	for i := 0; i < len(rs); {
		switch {
		case unicode.IsSpace(rs[i]):
			i++
		case rs[i] == '"':
			j := i + 1
			for j < len(rs) && rs[j] != '"' {
				j++
			}
			if j >= len(rs) {
				return nil, fmt.Errorf("unterminated quote at offset %d", i)
			}
			toks = append(toks, token{text: string(rs[i+1 : j]), quoted: true})
			i = j + 1
		default:
			j := i
			for j < len(rs) && !unicode.IsSpace(rs[j]) {
				j++
			}
			toks = append(toks, token{text: string(rs[i:j])})
			i = j
		}
	}
	return toks, nil
}
