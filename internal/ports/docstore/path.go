package docstore

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPath is returned for empty paths or paths with forbidden characters.
var ErrInvalidPath = errors.New("invalid document path")

// location splits a path into its backend object and the subpath inside it.
type location struct {
	collection string
	key        string
	sub        []string
}

func parsePath(p string) (location, error) {
	p = strings.Trim(p, "/")
	if p == "" {
		return location{}, fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	segs := strings.Split(p, "/")
	for _, s := range segs {
		if s == "" || strings.ContainsAny(s, ".#$[]") {
			return location{}, fmt.Errorf("%w: %q", ErrInvalidPath, p)
		}
	}
	loc := location{collection: segs[0]}
	if len(segs) > 1 {
		loc.key = segs[1]
		loc.sub = segs[2:]
	}
	return loc, nil
}

func (l location) object() string { return l.collection + "/" + l.key }

func (l location) String() string {
	return strings.Join(append([]string{l.collection, l.key}, l.sub...), "/")
}

// overlaps reports whether one location is an ancestor of (or equal to) the other.
func (l location) overlaps(o location) bool {
	if l.object() != o.object() {
		return false
	}
	n := min(len(l.sub), len(o.sub))
	for i := 0; i < n; i++ {
		if l.sub[i] != o.sub[i] {
			return false
		}
	}
	return true
}
