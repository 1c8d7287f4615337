/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package step defines the Step tagged variant: one kind-tagged
// waypoint in a route. Static entity handles embedded in steps are
// referenced by ID, not by direct reference, so that routes remain
// persistable.
package step

// Kind identifies which static entity protocol a Step traverses.
type Kind int

const (
	Road Kind = iota
	Lane
	Crossroad
	PedestrianCrossroad
	BusStopKind
	TramStopKind
	Zone
)

func (k Kind) String() string {
	switch k {
	case Road:
		return "road_step"
	case Lane:
		return "lane_step"
	case Crossroad:
		return "crossroad_step"
	case PedestrianCrossroad:
		return "pedestrian_crossroad_step"
	case BusStopKind:
		return "bus_stop_step"
	case TramStopKind:
		return "tram_stop_step"
	case Zone:
		return "zone_step"
	default:
		return "unknown_step"
	}
}

// Step is one waypoint: the kind tag, the ID of the static entity it
// traverses, and optional kind-specific data (e.g. a lane direction, a
// crossroad approach index).
type Step struct {
	Kind     Kind
	EntityID string
	Data     map[string]interface{}
}

// New builds a Step for entityID with no extra data.
func New(kind Kind, entityID string) Step {
	return Step{Kind: kind, EntityID: entityID}
}

// WithData returns a copy of s carrying the given kind-specific data.
func (s Step) WithData(data map[string]interface{}) Step {
	s.Data = data
	return s
}

// ID returns the underlying entity ID this step traverses.
func (s Step) ID() string {
	return s.EntityID
}

// Equal compares two steps by identity (kind + entity ID). Step carries
// a map field for kind-specific data, which makes the struct
// non-comparable with ==/!= in Go, so callers that need value equality
// (tests, dedup of look-ahead windows) use Equal instead.
func (s Step) Equal(other Step) bool {
	return s.Kind == other.Kind && s.EntityID == other.EntityID
}
