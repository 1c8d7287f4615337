/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package route implements the Route Cursor: per-mobile
// traversal state over a composite cyclic route, with look-ahead/behind
// offsets and day-cycle segment transitions, including the `target < 0`
// formula below preserved verbatim from its derivation. The cursor does
// not check its invariants at run time: SetPosition accepts any tag and
// index.
package route

import "github.com/cityflow/actorcity/internal/step"

// SegmentTag names which of a route's segments is currently active,
// compared by value rather than by identity against each named segment.
type SegmentTag int

const (
	HouseToWork SegmentTag = iota
	WorkToFun
	FunToHome
	Single
)

// Route is the tagged variant over the two route shapes: a
// cyclic triple (pedestrian/car) or a cyclic single segment (bus/tram).
type Route struct {
	isTriple bool
	s0       []step.Step
	s1       []step.Step
	s2       []step.Step
	single   []step.Step
}

// NewTriple builds a pedestrian/car route: houseToWork, workToFun,
// funToHome, traversed cyclically in that order.
func NewTriple(houseToWork, workToFun, funToHome []step.Step) Route {
	return Route{isTriple: true, s0: houseToWork, s1: workToFun, s2: funToHome}
}

// NewSingle builds a bus/tram route: one segment traversed cyclically.
func NewSingle(segment []step.Step) Route {
	return Route{isTriple: false, single: segment}
}

// IsTriple reports whether this is a cyclic-triple route.
func (r Route) IsTriple() bool { return r.isTriple }

func (r Route) segment(tag SegmentTag) []step.Step {
	switch tag {
	case HouseToWork:
		return r.s0
	case WorkToFun:
		return r.s1
	case FunToHome:
		return r.s2
	default:
		return r.single
	}
}

// concatenated returns the full logical sequence C used by stepAt: the
// three segments joined in order for a triple, or the single segment.
func (r Route) concatenated() []step.Step {
	if !r.isTriple {
		return r.single
	}
	c := make([]step.Step, 0, len(r.s0)+len(r.s1)+len(r.s2))
	c = append(c, r.s0...)
	c = append(c, r.s1...)
	c = append(c, r.s2...)
	return c
}

// baseOffset returns the prefix length (within the concatenated
// sequence) of every segment preceding tag.
func (r Route) baseOffset(tag SegmentTag) int {
	if !r.isTriple {
		return 0
	}
	switch tag {
	case HouseToWork:
		return 0
	case WorkToFun:
		return len(r.s0)
	case FunToHome:
		return len(r.s0) + len(r.s1)
	default:
		return 0
	}
}

// initialTag returns the cursor's starting segment for this route shape.
func (r Route) initialTag() SegmentTag {
	if r.isTriple {
		return HouseToWork
	}
	return Single
}

// Cursor is the per-mobile traversal state: (currentRoute, index) with
// the invariant 0 <= index < len(currentRoute) holding between steps.
type Cursor struct {
	route Route
	tag   SegmentTag
	index int
}

// NewCursor starts a cursor at the beginning of route.
func NewCursor(r Route) *Cursor {
	return &Cursor{route: r, tag: r.initialTag(), index: 0}
}

// CurrentRoute returns the active segment, always one of the
// descriptor's segments per the cursor invariant.
func (c *Cursor) CurrentRoute() []step.Step {
	return c.route.segment(c.tag)
}

// Route returns the underlying route descriptor, used to rebuild a
// Cursor from a snapshot.
func (c *Cursor) Route() Route {
	return c.route
}

// Tag reports which segment is currently active.
func (c *Cursor) Tag() SegmentTag {
	return c.tag
}

// Index reports the cursor's position within CurrentRoute().
func (c *Cursor) Index() int {
	return c.index
}

// CurrentStep returns currentRoute[index].
func (c *Cursor) CurrentStep() step.Step {
	return c.route.segment(c.tag)[c.index]
}

// StepAt returns the step at signed logical offset from the cursor. The
// `target < 0 => target = len(C) + offset` branch below is intentionally
// NOT a general modular wrap: it is only equivalent to a true modulo
// when base == 0, i.e. when standing at index 0 of the first segment --
// do not "fix" this to ((target % len(C)) + len(C)) % len(C).
func (c *Cursor) StepAt(offset int) step.Step {
	concatenated := c.route.concatenated()
	n := len(concatenated)

	base := c.route.baseOffset(c.tag)
	target := base + c.index + offset
	if target < 0 {
		target = n + offset
	} else {
		target = target % n
	}
	return concatenated[target]
}

// PreviousStep returns StepAt(-1). When index == 0 this returns the last
// element of the previous segment (for triples) or of the same segment
// (for singles); StepAt already produces that element at index 0 (by its
// target < 0 branch on the first segment and on single routes, by the
// plain modulo on the later segments), so no special case is needed here.
func (c *Cursor) PreviousStep() step.Step {
	return c.StepAt(-1)
}

// StepSequence returns the six-step scanning window at offsets -2, -1,
// 0, +1, +2, +3 used by domain logic for look-ahead coordination.
func (c *Cursor) StepSequence() [6]step.Step {
	var seq [6]step.Step
	offsets := [6]int{-2, -1, 0, 1, 2, 3}
	for i, o := range offsets {
		seq[i] = c.StepAt(o)
	}
	return seq
}

// Advance moves the cursor one position forward and, on overrun past the
// end of the current segment, performs the day-cycle segment transition.
// Single-segment routes (bus/tram) only ever reset index to 0, falling
// into the same "reset, don't advance a segment" branch as the Single
// case.
func (c *Cursor) Advance() {
	c.index++
	current := c.route.segment(c.tag)
	if c.index <= len(current)-1 {
		return
	}

	if !c.route.isTriple {
		c.index = 0
		return
	}

	switch c.tag {
	case HouseToWork:
		c.tag = WorkToFun
	case WorkToFun:
		c.tag = FunToHome
	default:
		c.tag = HouseToWork
	}
	c.index = 0
}

// SetPosition forces the cursor to an explicit (tag, index) pair, used
// when restoring a mobile entity's state from a snapshot or replayed
// events.
func (c *Cursor) SetPosition(tag SegmentTag, index int) {
	c.tag = tag
	c.index = index
}
