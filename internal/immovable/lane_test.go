/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package immovable

import (
	"testing"

	"github.com/cityflow/actorcity/entity"
)

func newTestLane(t *testing.T, id string) *Lane {
	t.Helper()
	m := testMap(t, `{"entities":[{"id":"`+id+`","kind":"lane"}]}`)
	base := newTestBase(t, id, entity.KindLane, m)
	outbox := NewOutbox(func(destAddr string, payload interface{}) error { return nil })
	return NewLane(base, outbox)
}

func TestLane_AdmitAppendsToOrderAndMarksFree(t *testing.T) {
	l := newTestLane(t, "L1")

	events, err := l.HandleCommand(LaneAdmit{VehicleID: "v1"})
	if err != nil {
		t.Fatalf("HandleCommand(LaneAdmit): %v", err)
	}
	for _, ev := range events {
		l.Apply(ev)
	}

	if len(l.order) != 1 || l.order[0] != "v1" {
		t.Fatalf("order = %v, want [v1]", l.order)
	}
	if !l.vehicleFree["v1"] {
		t.Fatalf("vehicleFree[v1] = false, want true right after admission")
	}
	if l.lastVehicle != "v1" {
		t.Fatalf("lastVehicle = %q, want v1", l.lastVehicle)
	}
}

func TestLane_AdmitFIFOOrder(t *testing.T) {
	l := newTestLane(t, "L1")

	for _, id := range []string{"v1", "v2", "v3"} {
		events, err := l.HandleCommand(LaneAdmit{VehicleID: id})
		if err != nil {
			t.Fatalf("HandleCommand(LaneAdmit %s): %v", id, err)
		}
		for _, ev := range events {
			l.Apply(ev)
		}
	}

	want := []string{"v1", "v2", "v3"}
	if len(l.order) != len(want) {
		t.Fatalf("order = %v, want %v", l.order, want)
	}
	for i, id := range want {
		if l.order[i] != id {
			t.Fatalf("order[%d] = %q, want %q", i, l.order[i], id)
		}
	}
}

func TestLane_HandleLastVehicleClearsOnlyIfStillLast(t *testing.T) {
	l := newTestLane(t, "L1")
	events, _ := l.HandleCommand(LaneAdmit{VehicleID: "v1"})
	for _, ev := range events {
		l.Apply(ev)
	}

	// v2 arrives after v1, displacing it as lastVehicle.
	events, _ = l.HandleCommand(LaneAdmit{VehicleID: "v2"})
	for _, ev := range events {
		l.Apply(ev)
	}

	events, err := l.HandleCommand(HandleLastVehicle{VehicleID: "v1"})
	if err != nil {
		t.Fatalf("HandleCommand(HandleLastVehicle v1): %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("HandleLastVehicle for a stale vehicle produced %d events, want 0", len(events))
	}

	events, err = l.HandleCommand(HandleLastVehicle{VehicleID: "v2"})
	if err != nil {
		t.Fatalf("HandleCommand(HandleLastVehicle v2): %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("HandleLastVehicle for the current last vehicle produced %d events, want 1", len(events))
	}
	l.Apply(events[0])
	if l.lastVehicle != "" {
		t.Fatalf("lastVehicle = %q after clearing, want empty", l.lastVehicle)
	}
}

func TestLane_PredecessorSuccessorLinkedMarksNotFree(t *testing.T) {
	l := newTestLane(t, "L1")

	events, err := l.HandleCommand(PredecessorLinked{VehicleID: "v1"})
	if err != nil {
		t.Fatalf("HandleCommand(PredecessorLinked): %v", err)
	}
	for _, ev := range events {
		l.Apply(ev)
	}
	if l.vehicleFree["v1"] {
		t.Fatalf("vehicleFree[v1] = true after PredecessorLinked, want false")
	}

	events, err = l.HandleCommand(SuccessorLinked{VehicleID: "v2"})
	if err != nil {
		t.Fatalf("HandleCommand(SuccessorLinked): %v", err)
	}
	for _, ev := range events {
		l.Apply(ev)
	}
	if l.vehicleFree["v2"] {
		t.Fatalf("vehicleFree[v2] = true after SuccessorLinked, want false")
	}
}

func TestLane_SnapshotRestoreRoundTrip(t *testing.T) {
	l := newTestLane(t, "L1")
	events, _ := l.HandleCommand(LaneAdmit{VehicleID: "v1"})
	for _, ev := range events {
		l.Apply(ev)
	}

	snap := l.Snapshot()

	l2 := newTestLane(t, "L1")
	l2.Restore(snap)

	if len(l2.order) != 1 || l2.order[0] != "v1" {
		t.Fatalf("restored order = %v, want [v1]", l2.order)
	}
	if !l2.vehicleFree["v1"] {
		t.Fatalf("restored vehicleFree[v1] = false, want true")
	}
}
