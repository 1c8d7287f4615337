/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package immovable

import (
	"testing"

	"github.com/cityflow/actorcity/entity"
)

func newTestBusStop(t *testing.T, id string) *BusStop {
	t.Helper()
	m := testMap(t, `{"entities":[{"id":"`+id+`","kind":"bus_stop"}]}`)
	base := newTestBase(t, id, entity.KindBusStop, m)
	outbox := NewOutbox(func(destAddr string, payload interface{}) error { return nil })
	return NewBusStop(base, outbox)
}

func TestBusStop_ArriveRecordsDwelling(t *testing.T) {
	s := newTestBusStop(t, "B1")

	events, err := s.HandleCommand(ArriveAtStop{VehicleID: "bus1", DepartureAfter: 100})
	if err != nil {
		t.Fatalf("HandleCommand(ArriveAtStop): %v", err)
	}
	for _, ev := range events {
		s.Apply(ev)
	}

	if s.dwelling["bus1"] != 100 {
		t.Fatalf("dwelling[bus1] = %d, want 100", s.dwelling["bus1"])
	}
}

func TestBusStop_DepartBeforeDepartureAfterIsRefused(t *testing.T) {
	s := newTestBusStop(t, "B1")
	events, _ := s.HandleCommand(ArriveAtStop{VehicleID: "bus1", DepartureAfter: 100})
	for _, ev := range events {
		s.Apply(ev)
	}

	events, err := s.HandleCommand(DepartStop{VehicleID: "bus1", Now: 50})
	if err != nil {
		t.Fatalf("HandleCommand(DepartStop early): %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("DepartStop before DepartureAfter produced %d events, want 0", len(events))
	}
}

func TestBusStop_DepartAfterDepartureAfterIsGranted(t *testing.T) {
	s := newTestBusStop(t, "B1")
	events, _ := s.HandleCommand(ArriveAtStop{VehicleID: "bus1", DepartureAfter: 100})
	for _, ev := range events {
		s.Apply(ev)
	}

	events, err := s.HandleCommand(DepartStop{VehicleID: "bus1", Now: 150})
	if err != nil {
		t.Fatalf("HandleCommand(DepartStop): %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if _, ok := events[0].(VehicleDeparted); !ok {
		t.Fatalf("event = %T, want VehicleDeparted", events[0])
	}
	s.Apply(events[0])
	if _, still := s.dwelling["bus1"]; still {
		t.Fatalf("bus1 still dwelling after VehicleDeparted applied")
	}
}

func TestBusStop_DepartUnknownVehicleIsNoOp(t *testing.T) {
	s := newTestBusStop(t, "B1")
	events, err := s.HandleCommand(DepartStop{VehicleID: "ghost", Now: 1000})
	if err != nil {
		t.Fatalf("HandleCommand(DepartStop unknown): %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("DepartStop for a vehicle never arrived produced %d events, want 0", len(events))
	}
}

func TestRoadZone_PassThroughRecordsLastPass(t *testing.T) {
	m := testMap(t, `{"entities":[{"id":"R1","kind":"road"}]}`)
	base := newTestBase(t, "R1", entity.KindRoad, m)
	rz := NewRoadZone(base)

	events, err := rz.HandleCommand(PassThrough{VehicleID: "v1"})
	if err != nil {
		t.Fatalf("HandleCommand(PassThrough): %v", err)
	}
	rz.Apply(events[0])

	if rz.lastPass != "v1" {
		t.Fatalf("lastPass = %q, want v1", rz.lastPass)
	}
}
