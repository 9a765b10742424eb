// Package mpath encodes and compares materialized paths.
//
// A materialized path is the chain of sibling orders from a tree root down to
// a node, joined by Separator ("1.3.2"). Paths answer ancestor and descendant
// questions by prefix matching, so every prefix test here is bounded by the
// separator: "1" is an ancestor of "1.4" but not of "10".
package mpath

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Separator joins the order segments of a path.
const Separator = "."

var (
	// ErrEmptyPath is returned when a path would have no segments
	ErrEmptyPath = errors.New("mpath: empty path")
	// ErrInvalidSegment is returned when a segment is not a non-negative integer
	ErrInvalidSegment = errors.New("mpath: invalid path segment")
	// ErrNotDescendant is returned by Rebase when the path is outside the subtree
	ErrNotDescendant = errors.New("mpath: path is not inside the subtree")
)

// Render joins a root-to-node sequence of orders into a path.
func Render(orders []int) (string, error) {
	if len(orders) == 0 {
		return "", ErrEmptyPath
	}
	parts := make([]string, len(orders))
	for i, o := range orders {
		if o < 0 {
			return "", fmt.Errorf("%w: %d", ErrInvalidSegment, o)
		}
		parts[i] = strconv.Itoa(o)
	}
	return strings.Join(parts, Separator), nil
}

// Append returns the path of a child with the given order under parentPath.
// An empty parentPath yields a root path. The parent path is parsed and the
// result rendered, so a garbled parent or a negative order is an error.
func Append(parentPath string, order int) (string, error) {
	var orders []int
	if parentPath != "" {
		parsed, err := Parse(parentPath)
		if err != nil {
			return "", err
		}
		orders = parsed
	}
	return Render(append(orders, order))
}

// Parse splits a path back into its orders.
func Parse(path string) ([]int, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	parts := strings.Split(path, Separator)
	orders := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || p != strconv.Itoa(n) {
			return nil, fmt.Errorf("%w: %q in %q", ErrInvalidSegment, p, path)
		}
		orders[i] = n
	}
	return orders, nil
}

// SegmentCount returns the number of separator-delimited segments.
func SegmentCount(path string) int {
	if path == "" {
		return 0
	}
	return strings.Count(path, Separator) + 1
}

// IsAncestorPathOf reports whether other equals candidate or lies below it.
func IsAncestorPathOf(candidate, other string) bool {
	if candidate == "" {
		return false
	}
	return other == candidate || strings.HasPrefix(other, candidate+Separator)
}

// IsStrictAncestorPathOf is IsAncestorPathOf without the equality case.
func IsStrictAncestorPathOf(candidate, other string) bool {
	return candidate != "" && strings.HasPrefix(other, candidate+Separator)
}

// Prefixes returns the strict ancestor paths of path, shortest first.
func Prefixes(path string) []string {
	n := SegmentCount(path)
	if n < 2 {
		return nil
	}
	prefixes := make([]string, 0, n-1)
	for i := 0; i < len(path); i++ {
		if path[i] == Separator[0] {
			prefixes = append(prefixes, path[:i])
		}
	}
	return prefixes
}

// Parent returns the path of the direct parent, or "" for a root path.
func Parent(path string) string {
	i := strings.LastIndex(path, Separator)
	if i < 0 {
		return ""
	}
	return path[:i]
}

// Rebase moves descendant from under oldRoot to under newRoot. The segments
// that locate descendant relative to oldRoot are kept as they are, so the
// relative position inside the moved subtree never changes.
func Rebase(oldRoot, newRoot, descendant string) (string, error) {
	if !IsAncestorPathOf(oldRoot, descendant) {
		return "", fmt.Errorf("%w: %q under %q", ErrNotDescendant, descendant, oldRoot)
	}
	if newRoot == "" {
		return "", ErrEmptyPath
	}
	oldSegs := strings.Split(oldRoot, Separator)
	segs := strings.Split(descendant, Separator)
	suffix := segs[len(oldSegs):]
	if len(suffix) == 0 {
		return newRoot, nil
	}
	return newRoot + Separator + strings.Join(suffix, Separator), nil
}

// Compare orders paths segment by segment numerically, which is a pre-order
// walk of the tree: "1" < "1.2" < "1.10" < "2". Malformed segments fall back
// to string comparison.
func Compare(a, b string) int {
	as := strings.Split(a, Separator)
	bs := strings.Split(b, Separator)
	for i := 0; i < len(as) && i < len(bs); i++ {
		if as[i] == bs[i] {
			continue
		}
		an, aerr := strconv.Atoi(as[i])
		bn, berr := strconv.Atoi(bs[i])
		if aerr != nil || berr != nil {
			return strings.Compare(as[i], bs[i])
		}
		if an < bn {
			return -1
		}
		if an > bn {
			return 1
		}
	}
	switch {
	case len(as) < len(bs):
		return -1
	case len(as) > len(bs):
		return 1
	}
	return 0
}
