package store

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Path is a parsed store path: collection, optional record key, optional
// field path inside the record.
type Path struct {
	Collection string
	Key        string
	Fields     []string
}

// ParsePath splits a "/"-separated path. Leading and trailing slashes are ignored;
// empty inner segments are rejected.
func ParsePath(p string) (Path, error) {
	trimmed := strings.Trim(p, "/")
	if trimmed == "" {
		return Path{}, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	segs := strings.Split(trimmed, "/")
	for _, s := range segs {
		if s == "" {
			return Path{}, fmt.Errorf("%w: empty segment in %q", ErrInvalidPath, p)
		}
	}

	path := Path{Collection: segs[0]}
	if len(segs) > 1 {
		path.Key = segs[1]
	}
	if len(segs) > 2 {
		path.Fields = segs[2:]
	}
	return path, nil
}

// JoinPath joins segments with "/".
func JoinPath(segs ...string) string {
	return strings.Join(segs, "/")
}

// IsCollection reports whether the path addresses a whole collection.
func (p Path) IsCollection() bool { return p.Key == "" }

// IsRecord reports whether the path addresses exactly one record.
func (p Path) IsRecord() bool { return p.Key != "" && len(p.Fields) == 0 }

// Segments returns the path as its individual segments.
func (p Path) Segments() []string {
	segs := []string{p.Collection}
	if p.Key != "" {
		segs = append(segs, p.Key)
	}
	return append(segs, p.Fields...)
}

// Name returns the last segment.
func (p Path) Name() string {
	segs := p.Segments()
	return segs[len(segs)-1]
}

func (p Path) String() string {
	return JoinPath(p.Segments()...)
}

// recordID identifies the record a path falls into.
func (p Path) recordID() string {
	return p.Collection + "/" + p.Key
}

// contains reports whether q is p itself or lies beneath it.
func (p Path) contains(q Path) bool {
	a, b := p.Segments(), q.Segments()
	if len(a) > len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// NewKey returns a generated child key. Keys are UUIDv7 strings, so their
// lexical order follows creation time.
func NewKey() string {
	return uuid.Must(uuid.NewV7()).String()
}
