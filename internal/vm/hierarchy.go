package vm

import "fmt"

// DefaultMaxHierarchyDepth bounds superclass walks when no limit is configured.
const DefaultMaxHierarchyDepth = 64

// IsAncestor reports whether sup is sub or one of its superclasses.
//
// The walk issues one GetSuperclass query per step and stops on a match, at
// the root, or with ErrHierarchyTooDeep after maxDepth steps. A non-positive
// maxDepth selects DefaultMaxHierarchyDepth.
func IsAncestor(rt Runtime, sup, sub Ref, maxDepth int) (bool, error) {
	if sup.IsNull() || sub.IsNull() {
		return false, nil
	}
	if maxDepth <= 0 {
		maxDepth = DefaultMaxHierarchyDepth
	}
	cur := sub
	for steps := 0; ; steps++ {
		if rt.IsSameObject(cur, sup) {
			return true, nil
		}
		if steps == maxDepth {
			return false, fmt.Errorf("%w: walking from %s (limit %d)", ErrHierarchyTooDeep, sub, maxDepth)
		}
		cur = rt.GetSuperclass(cur)
		if cur.IsNull() {
			return false, nil
		}
	}
}
