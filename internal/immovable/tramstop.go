/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package immovable

// TramStop implements entity.Handler with the same schedule-and-dwell
// protocol as BusStop, kept as a
// distinct type since its entity kind tag (KindTramStop) and map record
// shape differ from a bus stop's.
type TramStop struct {
	*Base
	outbox *Outbox

	dwelling map[string]uint64
}

// NewTramStop constructs a TramStop handler.
func NewTramStop(base *Base, outbox *Outbox) *TramStop {
	return &TramStop{Base: base, outbox: outbox, dwelling: map[string]uint64{}}
}

func (s *TramStop) HandleCommand(cmd interface{}) ([]interface{}, error) {
	switch c := cmd.(type) {
	case ArriveAtStop:
		return []interface{}{VehicleDwelling{VehicleID: c.VehicleID, DepartureAfter: c.DepartureAfter}}, nil

	case DepartStop:
		after, ok := s.dwelling[c.VehicleID]
		if !ok || c.Now < after {
			return nil, nil
		}
		return []interface{}{VehicleDeparted{VehicleID: c.VehicleID}}, nil

	default:
		return s.Base.HandleCommand(cmd)
	}
}

func (s *TramStop) Apply(event interface{}) {
	s.Base.Apply(event)
	switch ev := event.(type) {
	case VehicleDwelling:
		s.dwelling[ev.VehicleID] = ev.DepartureAfter
	case VehicleDeparted:
		delete(s.dwelling, ev.VehicleID)
	}
}

func (s *TramStop) Snapshot() interface{} {
	return busStopSnapshot{Base: s.Base.Snapshot(), Dwelling: s.dwelling}
}

func (s *TramStop) Restore(blob interface{}) {
	v, ok := blob.(busStopSnapshot)
	if !ok {
		return
	}
	s.Base.Restore(v.Base)
	s.dwelling = v.Dwelling
	if s.dwelling == nil {
		s.dwelling = map[string]uint64{}
	}
}
