/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package immovable

// ArriveAtStop is sent by a mobile (bus or tram) reaching a dwell point.
type ArriveAtStop struct {
	VehicleID      string
	DepartureAfter uint64 // earliest TimeValue at which this vehicle may leave
}

// DepartStop asks the stop whether vehicleID may now leave.
type DepartStop struct {
	VehicleID string
	Now       uint64
}

// VehicleDwelling records a vehicle being held at the stop.
type VehicleDwelling struct {
	VehicleID      string
	DepartureAfter uint64
}

// VehicleDeparted records a vehicle having left the stop.
type VehicleDeparted struct {
	VehicleID string
}

// BusStop implements entity.Handler for a schedule-and-dwell point: it
// holds an arriving vehicle until its departure-time condition is met.
type BusStop struct {
	*Base
	outbox *Outbox

	dwelling map[string]uint64 // vehicleId -> earliest departure TimeValue
}

// NewBusStop constructs a BusStop handler.
func NewBusStop(base *Base, outbox *Outbox) *BusStop {
	return &BusStop{Base: base, outbox: outbox, dwelling: map[string]uint64{}}
}

func (s *BusStop) HandleCommand(cmd interface{}) ([]interface{}, error) {
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

func (s *BusStop) Apply(event interface{}) {
	s.Base.Apply(event)
	switch ev := event.(type) {
	case VehicleDwelling:
		s.dwelling[ev.VehicleID] = ev.DepartureAfter
	case VehicleDeparted:
		delete(s.dwelling, ev.VehicleID)
	}
}

type busStopSnapshot struct {
	Base     snapshot          `json:"base"`
	Dwelling map[string]uint64 `json:"dwelling"`
}

func (s *BusStop) Snapshot() interface{} {
	return busStopSnapshot{Base: s.Base.Snapshot(), Dwelling: s.dwelling}
}

func (s *BusStop) Restore(blob interface{}) {
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
