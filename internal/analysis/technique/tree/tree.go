// Package tree edits recursive slices addressed by index paths.
//
// A node type T exposes its children through a Children accessor, so the
// same helpers serve Ishikawa causes, 5 Whys becauses and CTM causes. A Path
// lists the index at each level starting from the roots; its textual form
// joins the indices with dots, e.g. "0.2.1". The empty path addresses the
// root slice itself and is only meaningful as an Insert parent.
package tree

import (
	"slices"
	"strconv"
	"strings"

	dErrors "rcaflow/pkg/domain-errors"
)

type Path []int

// Children returns a pointer to the child slice of n.
type Children[T any] func(n *T) *[]T

func ParsePath(s string) (Path, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Path{}, nil
	}
	parts := strings.Split(s, ".")
	p := make(Path, 0, len(parts))
	for _, part := range parts {
		i, err := strconv.Atoi(part)
		if err != nil || i < 0 {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid path "+strconv.Quote(s))
		}
		p = append(p, i)
	}
	return p, nil
}

func (p Path) String() string {
	parts := make([]string, len(p))
	for i, v := range p {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ".")
}

func (p Path) IsRoot() bool { return len(p) == 0 }

// Parent drops the last index. The parent of a root-level node is the
// empty path.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return p
	}
	return p[: len(p)-1 : len(p)-1]
}

// Child appends i to a copy of p.
func (p Path) Child(i int) Path {
	return append(slices.Clip(p), i)
}

func outOfRange(p Path) error {
	return dErrors.New(dErrors.CodeInvalidInput, "path "+strconv.Quote(p.String())+" is out of range")
}

// container resolves the slice that holds the last element of p.
func container[T any](roots *[]T, p Path, kids Children[T]) (*[]T, error) {
	level := roots
	for depth, i := range p[:len(p)-1] {
		if i >= len(*level) {
			return nil, outOfRange(p[:depth+1])
		}
		level = kids(&(*level)[i])
	}
	return level, nil
}

// Get returns the node at p.
func Get[T any](roots *[]T, p Path, kids Children[T]) (*T, error) {
	if p.IsRoot() {
		return nil, outOfRange(p)
	}
	level, err := container(roots, p, kids)
	if err != nil {
		return nil, err
	}
	i := p[len(p)-1]
	if i >= len(*level) {
		return nil, outOfRange(p)
	}
	return &(*level)[i], nil
}

// Insert appends node under parent and returns its path. The empty parent
// appends at root level.
func Insert[T any](roots *[]T, parent Path, node T, kids Children[T]) (Path, error) {
	level := roots
	if !parent.IsRoot() {
		n, err := Get(roots, parent, kids)
		if err != nil {
			return nil, err
		}
		level = kids(n)
	}
	*level = append(*level, node)
	return parent.Child(len(*level) - 1), nil
}

// Replace lets fn mutate the node at p in place.
func Replace[T any](roots *[]T, p Path, kids Children[T], fn func(n *T)) error {
	n, err := Get(roots, p, kids)
	if err != nil {
		return err
	}
	fn(n)
	return nil
}

// Remove deletes the node at p together with its subtree and returns it.
// Later siblings shift down by one.
func Remove[T any](roots *[]T, p Path, kids Children[T]) (T, error) {
	var zero T
	if p.IsRoot() {
		return zero, outOfRange(p)
	}
	level, err := container(roots, p, kids)
	if err != nil {
		return zero, err
	}
	i := p[len(p)-1]
	if i >= len(*level) {
		return zero, outOfRange(p)
	}
	removed := (*level)[i]
	*level = slices.Delete(*level, i, i+1)
	return removed, nil
}

// Walk visits every node depth-first, parents before children. Returning
// false from fn skips the node's subtree.
func Walk[T any](roots *[]T, kids Children[T], fn func(p Path, n *T) bool) {
	walk(roots, Path{}, kids, fn)
}

func walk[T any](level *[]T, prefix Path, kids Children[T], fn func(Path, *T) bool) {
	for i := range *level {
		p := prefix.Child(i)
		n := &(*level)[i]
		if fn(p, n) {
			walk(kids(n), p, kids, fn)
		}
	}
}

// Count returns the number of nodes in the forest.
func Count[T any](roots *[]T, kids Children[T]) int {
	n := 0
	Walk(roots, kids, func(Path, *T) bool {
		n++
		return true
	})
	return n
}

// IsLeaf reports whether n has no children.
func IsLeaf[T any](n *T, kids Children[T]) bool {
	return len(*kids(n)) == 0
}
