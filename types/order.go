package types

import (
	"sort"

	typecodec "github.com/reoring/typecodec"
)

// Hierarchy exposes class inheritance for union ordering.
type Hierarchy interface {
	// Depth is the number of ancestors of class (0 for a root class).
	Depth(class string) int
	// IsSubclassOf reports whether class extends ancestor, directly or not.
	IsSubclassOf(class, ancestor string) bool
}

// OrderMembers returns the members of u in the order serialize branches are
// tried: non-class members first in declaration order, then class members
// with deeper subclasses ahead of their ancestors. Two unrelated classes at
// the same depth make the union ambiguous.
func OrderMembers(u Type, h Hierarchy) ([]Type, error) {
	if !u.IsUnion() {
		return []Type{u}, nil
	}
	var plain, classes []Type
	for _, m := range u.members {
		if m.IsObject() {
			classes = append(classes, m)
			continue
		}
		plain = append(plain, m)
	}
	if len(classes) < 2 || h == nil {
		return append(plain, classes...), nil
	}
	sort.SliceStable(classes, func(i, j int) bool {
		return h.Depth(classes[i].class) > h.Depth(classes[j].class)
	})
	for i := 0; i < len(classes); i++ {
		for j := i + 1; j < len(classes); j++ {
			a, b := classes[i].class, classes[j].class
			if a == b || h.Depth(a) != h.Depth(b) {
				continue
			}
			if !h.IsSubclassOf(a, b) && !h.IsSubclassOf(b, a) {
				it := typecodec.Errorf(typecodec.CodeAmbiguousUnion,
					"ambiguous hierarchical level: %s and %s", a, b)
				it.Hint = u.String()
				return nil, it
			}
		}
	}
	return append(plain, classes...), nil
}
