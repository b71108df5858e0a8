// Package pattern compiles exclusion, inclusion and limit specifications into
// anchored regular expressions matched against dotted association paths such
// as "forum.questions.answers".
//
// A specification is one of:
//
//	"parent.children"            literal path, "*" matches one segment, "**" any run
//	"/role(s)?/"                 RE2 regular expression
//	["a", "/b+/"]                union of the elements
//	{parent: {children: true}}   tree; every key is a path of its own and
//	                             nested values continue below it
//
// In a tree a true leaf contributes the key path only, false or nil
// contributes nothing.
package pattern

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// AnyParent is the prefix used for root patterns: a pattern may match any
// trailing run of segments of a path.
const AnyParent = `(?:.*\.)?`

// Pattern is one compiled, fully anchored path matcher.
type Pattern struct {
	re     *regexp.Regexp
	source string
}

// Match reports whether path matches the whole pattern.
func (p *Pattern) Match(path string) bool {
	return p.re.MatchString(path)
}

// String returns the anchored regular expression.
func (p *Pattern) String() string {
	return p.re.String()
}

// Source returns the specification fragment the pattern was compiled from.
func (p *Pattern) Source() string {
	return p.source
}

// CompileError reports a specification that cannot be compiled.
type CompileError struct {
	Spec   interface{}
	Reason string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("invalid path pattern %#v: %s", e.Spec, e.Reason)
}

// Set is a union of patterns.
type Set []*Pattern

// Match reports whether any pattern of the set matches path.
func (s Set) Match(path string) bool {
	for _, p := range s {
		if p.Match(path) {
			return true
		}
	}
	return false
}

// Compile turns spec into anchored patterns. prefix is a regular expression
// placed in front of every pattern; use AnyParent for root patterns and ""
// for patterns that must match from the first segment.
func Compile(spec interface{}, prefix string) (Set, error) {
	var out Set
	if err := compileInto(&out, spec, prefix); err != nil {
		return nil, err
	}
	return out, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(spec interface{}, prefix string) Set {
	s, err := Compile(spec, prefix)
	if err != nil {
		panic(err)
	}
	return s
}

func compileInto(out *Set, spec interface{}, prefix string) error {
	switch v := spec.(type) {
	case nil:
		return nil
	case string:
		body, err := segment(v)
		if err != nil {
			return err
		}
		p, err := anchor(prefix+body, v)
		if err != nil {
			return err
		}
		*out = append(*out, p)
		return nil
	case []string:
		for _, el := range v {
			if err := compileInto(out, el, prefix); err != nil {
				return err
			}
		}
		return nil
	case []interface{}:
		for _, el := range v {
			if err := compileInto(out, el, prefix); err != nil {
				return err
			}
		}
		return nil
	case map[string]interface{}:
		return compileTree(out, v, prefix)
	case map[interface{}]interface{}:
		tree := make(map[string]interface{}, len(v))
		for k, val := range v {
			ks, ok := k.(string)
			if !ok {
				return &CompileError{Spec: k, Reason: "tree keys must be strings"}
			}
			tree[ks] = val
		}
		return compileTree(out, tree, prefix)
	default:
		return &CompileError{Spec: spec, Reason: fmt.Sprintf("unsupported type %T", spec)}
	}
}

func compileTree(out *Set, tree map[string]interface{}, prefix string) error {
	keys := make([]string, 0, len(tree))
	for k := range tree {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		body, err := segment(k)
		if err != nil {
			return err
		}
		here := prefix + body

		switch val := tree[k].(type) {
		case nil:
			continue
		case bool:
			if !val {
				continue
			}
			p, err := anchor(here, k)
			if err != nil {
				return err
			}
			*out = append(*out, p)
		case string, []string, []interface{}, map[string]interface{}, map[interface{}]interface{}:
			p, err := anchor(here, k)
			if err != nil {
				return err
			}
			*out = append(*out, p)
			if err := compileInto(out, val, here+`\.`); err != nil {
				return err
			}
		default:
			return &CompileError{Spec: tree[k], Reason: fmt.Sprintf("unsupported value type %T under %q", val, k)}
		}
	}
	return nil
}

// segment converts one literal or /regex/ fragment into regex source.
func segment(s string) (string, error) {
	if s == "" {
		return "", &CompileError{Spec: s, Reason: "empty pattern"}
	}
	if len(s) >= 2 && strings.HasPrefix(s, "/") && strings.HasSuffix(s, "/") {
		inner := s[1 : len(s)-1]
		if _, err := regexp.Compile(inner); err != nil {
			return "", &CompileError{Spec: s, Reason: err.Error()}
		}
		return "(?:" + inner + ")", nil
	}

	parts := strings.Split(s, ".")
	for i, part := range parts {
		switch part {
		case "":
			return "", &CompileError{Spec: s, Reason: "empty path segment"}
		case "*":
			parts[i] = `[^.]+`
		case "**":
			parts[i] = `.+`
		default:
			parts[i] = regexp.QuoteMeta(part)
		}
	}
	return strings.Join(parts, `\.`), nil
}

func anchor(body, source string) (*Pattern, error) {
	re, err := regexp.Compile("^" + body + "$")
	if err != nil {
		return nil, &CompileError{Spec: source, Reason: err.Error()}
	}
	return &Pattern{re: re, source: source}, nil
}
