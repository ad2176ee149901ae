// Package filter builds predicates for visitor searches.
package filter

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/TFMV/fsvisitor/internal/visitor"
	"github.com/gobwas/glob"
	"golang.org/x/text/unicode/norm"
)

// Options defines criteria for classifying entries. Every criterion that is
// set must match.
type Options struct {
	Extensions  []string // File extensions to accept (e.g. ".txt", "go")
	Pattern     string   // Glob matched against the base name
	PathPattern string   // Glob matched against the slash-separated full path
	Regex       string   // Regular expression matched against the full path
	Contains    string   // Substring of the full path
}

// IsZero reports whether no criterion is set.
func (o Options) IsZero() bool {
	return len(o.Extensions) == 0 && o.Pattern == "" && o.PathPattern == "" &&
		o.Regex == "" && o.Contains == ""
}

// Build compiles opts into a predicate. Zero options build a nil predicate,
// which a Visitor treats as "accept every entry".
func Build(opts Options) (visitor.Predicate, error) {
	if opts.IsZero() {
		return nil, nil
	}

	var preds []visitor.Predicate
	if len(opts.Extensions) > 0 {
		preds = append(preds, Ext(opts.Extensions...))
	}
	if opts.Pattern != "" {
		p, err := Glob(opts.Pattern)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	if opts.PathPattern != "" {
		p, err := PathGlob(opts.PathPattern)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	if opts.Regex != "" {
		p, err := Regex(opts.Regex)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	if opts.Contains != "" {
		preds = append(preds, Contains(opts.Contains))
	}
	return And(preds...), nil
}

// All accepts every path.
func All() visitor.Predicate {
	return func(string) bool { return true }
}

// None rejects every path.
func None() visitor.Predicate {
	return func(string) bool { return false }
}

// Ext accepts paths whose extension is exactly one of exts. A missing
// leading dot is added.
func Ext(exts ...string) visitor.Predicate {
	set := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		ext = strings.TrimSpace(ext)
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[norm.NFC.String(ext)] = struct{}{}
	}
	return func(path string) bool {
		_, ok := set[norm.NFC.String(filepath.Ext(path))]
		return ok
	}
}

// Contains accepts paths containing substr.
func Contains(substr string) visitor.Predicate {
	substr = norm.NFC.String(substr)
	return func(path string) bool {
		return strings.Contains(norm.NFC.String(path), substr)
	}
}

// Glob accepts paths whose base name matches pattern.
func Glob(pattern string) (visitor.Predicate, error) {
	g, err := glob.Compile(norm.NFC.String(pattern))
	if err != nil {
		return nil, fmt.Errorf("invalid glob %q: %w", pattern, err)
	}
	return func(path string) bool {
		return g.Match(norm.NFC.String(filepath.Base(path)))
	}, nil
}

// PathGlob accepts paths matching pattern as a whole. Paths are converted to
// forward slashes first and "*" does not cross a "/".
func PathGlob(pattern string) (visitor.Predicate, error) {
	g, err := glob.Compile(norm.NFC.String(pattern), '/')
	if err != nil {
		return nil, fmt.Errorf("invalid path glob %q: %w", pattern, err)
	}
	return func(path string) bool {
		return g.Match(norm.NFC.String(filepath.ToSlash(path)))
	}, nil
}

// Regex accepts paths matching the regular expression expr.
func Regex(expr string) (visitor.Predicate, error) {
	re, err := regexp.Compile(norm.NFC.String(expr))
	if err != nil {
		return nil, fmt.Errorf("invalid regex %q: %w", expr, err)
	}
	return func(path string) bool {
		return re.MatchString(norm.NFC.String(path))
	}, nil
}

// And accepts paths accepted by every pred. With no predicates it accepts
// everything.
func And(preds ...visitor.Predicate) visitor.Predicate {
	if len(preds) == 1 {
		return preds[0]
	}
	return func(path string) bool {
		for _, p := range preds {
			if !p(path) {
				return false
			}
		}
		return true
	}
}

// Or accepts paths accepted by at least one pred.
func Or(preds ...visitor.Predicate) visitor.Predicate {
	return func(path string) bool {
		for _, p := range preds {
			if p(path) {
				return true
			}
		}
		return false
	}
}

// Not inverts pred.
func Not(pred visitor.Predicate) visitor.Predicate {
	return func(path string) bool { return !pred(path) }
}
