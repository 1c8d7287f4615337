/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package immovable

import (
	"github.com/cityflow/actorcity/entity"
)

// LaneAdmit requests admission of a vehicle at the tail of the lane,
// admitted in arrival order.
type LaneAdmit struct {
	VehicleID string
}

// HandleLastVehicle asks the lane to clear its "last vehicle entered"
// pointer if it still names vehicleID.
type HandleLastVehicle struct {
	VehicleID string
}

// PredecessorLinked / SuccessorLinked are the notifications a lane sends
// to its road-graph neighbors on admission.
type PredecessorLinked struct {
	VehicleID string
}
type SuccessorLinked struct {
	VehicleID string
}

// VehicleAdmitted records one vehicle entering the lane at the tail.
type VehicleAdmitted struct {
	VehicleID string
}

// LastVehicleCleared records the last-vehicle pointer being released.
type LastVehicleCleared struct {
	VehicleID string
}

// VehicleFreeMarked records a change to vehicleFreeMap[vehicleID]
// observed from a neighbor lane's admission notification.
type VehicleFreeMarked struct {
	VehicleID string
	Free      bool
}

// Lane implements entity.Handler for a road lane: FIFO admission plus
// the vehicleFreeMap tracking whether the slot behind each known
// vehicle is currently free.
type Lane struct {
	*Base
	outbox *Outbox

	order           []string
	vehicleFree     map[string]bool
	lastVehicle     string
	predecessorAddr string
	successorAddr   string
}

// NewLane constructs a Lane handler.
func NewLane(base *Base, outbox *Outbox) *Lane {
	return &Lane{Base: base, outbox: outbox, vehicleFree: map[string]bool{}}
}

func (l *Lane) HandleCommand(cmd interface{}) ([]interface{}, error) {
	switch c := cmd.(type) {
	case LaneAdmit:
		if l.predecessorAddr != "" {
			l.outbox.Request(l.predecessorAddr, l.ID, SuccessorLinked{VehicleID: c.VehicleID})
		}
		if l.successorAddr != "" {
			l.outbox.Request(l.successorAddr, l.ID, PredecessorLinked{VehicleID: c.VehicleID})
		}
		return []interface{}{VehicleAdmitted{VehicleID: c.VehicleID}}, nil

	case HandleLastVehicle:
		if l.lastVehicle == c.VehicleID {
			return []interface{}{LastVehicleCleared{VehicleID: c.VehicleID}}, nil
		}
		return nil, nil

	case PredecessorLinked:
		return []interface{}{VehicleFreeMarked{VehicleID: c.VehicleID, Free: false}}, nil

	case SuccessorLinked:
		return []interface{}{VehicleFreeMarked{VehicleID: c.VehicleID, Free: false}}, nil

	default:
		return l.Base.HandleCommand(cmd)
	}
}

func (l *Lane) Apply(event interface{}) {
	l.Base.Apply(event)
	switch ev := event.(type) {
	case entity.IdentityArrived:
		if addr, ok := l.Record.Extra["predecessorAddr"].(string); ok {
			l.predecessorAddr = addr
		}
		if addr, ok := l.Record.Extra["successorAddr"].(string); ok {
			l.successorAddr = addr
		}
	case VehicleAdmitted:
		l.order = append(l.order, ev.VehicleID)
		l.vehicleFree[ev.VehicleID] = true
		l.lastVehicle = ev.VehicleID
	case LastVehicleCleared:
		if l.lastVehicle == ev.VehicleID {
			l.lastVehicle = ""
		}
	case VehicleFreeMarked:
		l.vehicleFree[ev.VehicleID] = ev.Free
	}
}

type laneSnapshot struct {
	Base            snapshot        `json:"base"`
	Order           []string        `json:"order"`
	VehicleFree     map[string]bool `json:"vehicleFree"`
	LastVehicle     string          `json:"lastVehicle"`
	PredecessorAddr string          `json:"predecessorAddr"`
	SuccessorAddr   string          `json:"successorAddr"`
}

func (l *Lane) Snapshot() interface{} {
	return laneSnapshot{
		Base:            l.Base.Snapshot(),
		Order:           append([]string(nil), l.order...),
		VehicleFree:     l.vehicleFree,
		LastVehicle:     l.lastVehicle,
		PredecessorAddr: l.predecessorAddr,
		SuccessorAddr:   l.successorAddr,
	}
}

func (l *Lane) Restore(blob interface{}) {
	s, ok := blob.(laneSnapshot)
	if !ok {
		return
	}
	l.Base.Restore(s.Base)
	l.order = s.Order
	l.vehicleFree = s.VehicleFree
	if l.vehicleFree == nil {
		l.vehicleFree = map[string]bool{}
	}
	l.lastVehicle = s.LastVehicle
	l.predecessorAddr = s.PredecessorAddr
	l.successorAddr = s.SuccessorAddr
}
