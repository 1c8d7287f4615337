/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package immovable

// PassThrough is sent by a mobile entering a Road or Zone step. These
// kinds have no arbitration of their own: they are plain pass-through
// coordinators that just record passage for the visualization feed and
// the handled-mobile set.
type PassThrough struct {
	VehicleID string
}

// PassThroughRecorded is the only domain event a Road or Zone ever
// journals beyond the shared lifecycle events in Base.
type PassThroughRecorded struct {
	VehicleID string
}

// RoadZone implements entity.Handler for both the Road and Zone kinds:
// the protocol is identical, so one type serves both, distinguished only
// by the Kind carried in Base.
type RoadZone struct {
	*Base

	lastPass string
}

// NewRoadZone constructs a RoadZone handler for either KindRoad or
// KindZone.
func NewRoadZone(base *Base) *RoadZone {
	return &RoadZone{Base: base}
}

func (rz *RoadZone) HandleCommand(cmd interface{}) ([]interface{}, error) {
	switch c := cmd.(type) {
	case PassThrough:
		return []interface{}{PassThroughRecorded{VehicleID: c.VehicleID}}, nil
	default:
		return rz.Base.HandleCommand(cmd)
	}
}

func (rz *RoadZone) Apply(event interface{}) {
	rz.Base.Apply(event)
	if ev, ok := event.(PassThroughRecorded); ok {
		rz.lastPass = ev.VehicleID
	}
}

type roadZoneSnapshot struct {
	Base     snapshot `json:"base"`
	LastPass string   `json:"lastPass"`
}

func (rz *RoadZone) Snapshot() interface{} {
	return roadZoneSnapshot{Base: rz.Base.Snapshot(), LastPass: rz.lastPass}
}

func (rz *RoadZone) Restore(blob interface{}) {
	s, ok := blob.(roadZoneSnapshot)
	if !ok {
		return
	}
	rz.Base.Restore(s.Base)
	rz.lastPass = s.LastPass
}
