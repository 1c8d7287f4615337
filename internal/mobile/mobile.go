/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package mobile implements the Mobile Entity Logic: a
// pedestrian, car, bus, or tram stepping its internal/route Cursor one
// static entity at a time, coordinating with the predecessor/successor
// vehicles sharing its lane, and parking itself via PauseExecution when
// asked to sleep.
package mobile

import (
	"github.com/pkg/errors"

	"github.com/cityflow/actorcity/entity"
	"github.com/cityflow/actorcity/internal/immovable"
	"github.com/cityflow/actorcity/internal/route"
	"github.com/cityflow/actorcity/internal/step"
)

// StepForward asks the mobile to advance its cursor by one position and
// act on the resulting step (request lane admission, cross an
// intersection, dwell at a stop, ...).
type StepForward struct{}

// PredecessorGone is sent by a mobile to its successor once it has fully
// left a shared step, so the successor can stop waiting on it.
type PredecessorGone struct {
	FromID string
}

// Sleep asks the mobile to pause until wakeupTime, parking itself via
// a PauseExecution to its current host immovable.
type Sleep struct {
	WakeupTime uint64
}

// RouteAssigned records a route being bound to this mobile -- the
// live-path effect of receiving immovable.AssignRoute.
type RouteAssigned struct {
	Route route.Route
}

// Advanced records the cursor moving to a new position.
type Advanced struct {
	Tag   route.SegmentTag
	Index int
}

// PredecessorGoneRecorded tracks that the successor notification for the
// current predecessor departure has already been sent, so it is not
// repeated.
type PredecessorGoneRecorded struct{}

// VehicleIDsUpdated records the chain links discovered while stepping:
// the vehicle now directly ahead of and behind this one.
type VehicleIDsUpdated struct {
	NextVehicleID     string
	PreviousVehicleID string
}

// Outbox abstracts the at-least-once send used to talk to the host
// immovable and to neighboring mobiles, mirroring
// immovable.Outbox without importing package immovable's concrete type
// (avoids a cycle: immovable never needs to call back into mobile).
type Outbox interface {
	Request(destAddr, senderID string, command interface{})
}

// Mobile implements entity.Handler for a pedestrian, car, bus, or tram.
type Mobile struct {
	id     string
	outbox Outbox

	cursor *route.Cursor
	bound  bool

	nextVehicleID       string
	previousVehicleID   string
	predecessorGoneSent bool
}

// NewMobile constructs a Mobile handler for id (kind KindMobile),
// wired to send Requests via outbox.
func NewMobile(id string, outbox Outbox) *Mobile {
	return &Mobile{id: id, outbox: outbox}
}

// hostIDFor returns the entity ID of the static entity hosting the
// cursor's current step -- the destination for admission/crossing
// requests.
func (m *Mobile) hostIDFor(s step.Step) string {
	return s.ID()
}

func (m *Mobile) HandleCommand(cmd interface{}) ([]interface{}, error) {
	switch c := cmd.(type) {
	case immovable.AssignRoute:
		r, ok := c.Route.(route.Route)
		if !ok {
			return nil, errors.Errorf("mobile %q received non-route payload %T", m.id, c.Route)
		}
		return []interface{}{RouteAssigned{Route: r}}, nil

	case immovable.ResumeExecution:
		if !m.bound {
			return nil, errors.Errorf("mobile %q asked to resume before receiving a route", m.id)
		}
		return m.requestAdmissionAt(m.cursor.CurrentStep())

	case StepForward:
		if !m.bound {
			return nil, nil
		}
		next := *m.cursor
		next.Advance()
		events := []interface{}{Advanced{Tag: next.Tag(), Index: next.Index()}}
		more, err := m.requestAdmissionAt(next.CurrentStep())
		if err != nil {
			return nil, err
		}
		return append(events, more...), nil

	case PredecessorGone:
		return []interface{}{VehicleIDsUpdated{NextVehicleID: m.nextVehicleID, PreviousVehicleID: ""}}, nil

	case Sleep:
		host := m.hostIDFor(m.cursor.CurrentStep())
		m.outbox.Request(host, m.id, immovable.PauseExecution{ID: m.id, WakeupTime: c.WakeupTime})
		return nil, nil

	default:
		return nil, errors.Errorf("unknown command %T", cmd)
	}
}

// requestAdmissionAt sends the appropriate domain request to the static
// entity hosting s, and -- once it is no longer the predecessor's
// step -- notifies the successor that the predecessor has gone, exactly
// once per departure.
func (m *Mobile) requestAdmissionAt(s step.Step) ([]interface{}, error) {
	switch s.Kind {
	case step.Lane:
		m.outbox.Request(s.ID(), m.id, immovable.LaneAdmit{VehicleID: m.id})
	case step.Crossroad:
		m.outbox.Request(s.ID(), m.id, immovable.RequestCrossing{RequesterID: m.id})
	case step.PedestrianCrossroad:
		m.outbox.Request(s.ID(), m.id, immovable.RequestPedestrianCrossing{RequesterID: m.id})
	case step.BusStopKind, step.TramStopKind:
		m.outbox.Request(s.ID(), m.id, immovable.ArriveAtStop{VehicleID: m.id})
	case step.Road, step.Zone:
		m.outbox.Request(s.ID(), m.id, immovable.PassThrough{VehicleID: m.id})
	}

	var events []interface{}
	if !m.predecessorGoneSent && m.previousVehicleID != "" {
		m.outbox.Request(m.previousVehicleID, m.id, PredecessorGone{FromID: m.id})
		events = append(events, PredecessorGoneRecorded{})
	}
	return events, nil
}

func (m *Mobile) Apply(event interface{}) {
	switch ev := event.(type) {
	case entity.IdentityArrived:
		m.bound = true
	case RouteAssigned:
		m.cursor = route.NewCursor(ev.Route)
		m.bound = true
	case Advanced:
		m.cursor.SetPosition(ev.Tag, ev.Index)
	case VehicleIDsUpdated:
		m.nextVehicleID = ev.NextVehicleID
		m.previousVehicleID = ev.PreviousVehicleID
		m.predecessorGoneSent = false
	case PredecessorGoneRecorded:
		m.predecessorGoneSent = true
	}
}

type mobileSnapshot struct {
	Route               *route.Route     `json:"route"`
	Tag                 route.SegmentTag `json:"tag"`
	Index               int              `json:"index"`
	NextVehicleID       string           `json:"nextVehicleId"`
	PreviousVehicleID   string           `json:"previousVehicleId"`
	PredecessorGoneSent bool             `json:"predecessorGoneSent"`
	Bound               bool             `json:"bound"`
}

func (m *Mobile) Snapshot() interface{} {
	s := mobileSnapshot{
		NextVehicleID:       m.nextVehicleID,
		PreviousVehicleID:   m.previousVehicleID,
		PredecessorGoneSent: m.predecessorGoneSent,
		Bound:               m.bound,
	}
	if m.cursor != nil {
		rt := m.cursor.Route()
		s.Route = &rt
		s.Tag = m.cursor.Tag()
		s.Index = m.cursor.Index()
	}
	return s
}

func (m *Mobile) Restore(blob interface{}) {
	s, ok := blob.(mobileSnapshot)
	if !ok {
		return
	}
	m.nextVehicleID = s.NextVehicleID
	m.previousVehicleID = s.PreviousVehicleID
	m.predecessorGoneSent = s.PredecessorGoneSent
	m.bound = s.Bound
	if s.Route != nil {
		m.cursor = route.NewCursor(*s.Route)
		m.cursor.SetPosition(s.Tag, s.Index)
	}
}
