package graph

import (
	"fmt"
	"maps"
	"slices"
)

// OutputSet is an immutable set of output slot indices. A nil *OutputSet
// means "unknown": no expectation was recorded, so every output must be
// treated as needed. An empty, non-nil set is the opposite statement, that
// nothing downstream consumes any output. The two are never interchangeable.
type OutputSet struct {
	slots map[int]struct{}
}

// NewOutputSet builds a set from the given slot indices. Duplicates collapse.
func NewOutputSet(slots ...int) *OutputSet {
	set := make(map[int]struct{}, len(slots))
	for _, s := range slots {
		set[s] = struct{}{}
	}
	return &OutputSet{slots: set}
}

// Contains reports whether the slot is in the set. On a nil set it returns
// false; callers that care about the "unknown means everything" rule must
// check for nil first, as execctx.IsOutputNeeded does.
func (s *OutputSet) Contains(slot int) bool {
	if s == nil {
		return false
	}
	_, ok := s.slots[slot]
	return ok
}

// Len returns the number of slots in the set, 0 for nil.
func (s *OutputSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.slots)
}

// Slots returns the slot indices in sorted order, nil for a nil set.
func (s *OutputSet) Slots() []int {
	if s == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(s.slots))
}

// Equal reports whether both sets hold the same slots. A nil set only
// equals another nil set; in particular nil is not equal to an empty set.
func (s *OutputSet) Equal(other *OutputSet) bool {
	if s == nil || other == nil {
		return s == nil && other == nil
	}
	return maps.Equal(s.slots, other.slots)
}

// String renders the set for logs, "all" for nil.
func (s *OutputSet) String() string {
	if s == nil {
		return "all"
	}
	return fmt.Sprintf("%v", s.Slots())
}
