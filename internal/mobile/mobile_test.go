/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package mobile

import (
	"testing"

	"github.com/cityflow/actorcity/entity"
	"github.com/cityflow/actorcity/internal/immovable"
	"github.com/cityflow/actorcity/internal/route"
	"github.com/cityflow/actorcity/internal/step"
)

// recordingOutbox captures every Request call so tests can assert on
// what a Mobile asked its host/neighbors to do.
type recordingOutbox struct {
	sent []sentRequest
}

type sentRequest struct {
	destAddr string
	senderID string
	command  interface{}
}

func (o *recordingOutbox) Request(destAddr, senderID string, command interface{}) {
	o.sent = append(o.sent, sentRequest{destAddr: destAddr, senderID: senderID, command: command})
}

func singleLaneRoute(laneID string) route.Route {
	return route.NewSingle([]step.Step{step.New(step.Lane, laneID)})
}

func TestMobile_ResumeExecutionRequestsAdmissionAtCurrentStep(t *testing.T) {
	outbox := &recordingOutbox{}
	m := NewMobile("M1", outbox)

	m.Apply(RouteAssigned{Route: singleLaneRoute("L1")})

	events, err := m.HandleCommand(immovable.ResumeExecution{})
	if err != nil {
		t.Fatalf("HandleCommand(ResumeExecution): %v", err)
	}
	for _, ev := range events {
		m.Apply(ev)
	}

	if len(outbox.sent) != 1 {
		t.Fatalf("got %d outbound requests, want 1", len(outbox.sent))
	}
	req := outbox.sent[0]
	if req.destAddr != "L1" {
		t.Fatalf("request sent to %q, want L1", req.destAddr)
	}
	if _, ok := req.command.(immovable.LaneAdmit); !ok {
		t.Fatalf("command = %T, want immovable.LaneAdmit", req.command)
	}
}

func TestMobile_ResumeExecutionBeforeRouteAssignedErrors(t *testing.T) {
	outbox := &recordingOutbox{}
	m := NewMobile("M1", outbox)

	if _, err := m.HandleCommand(immovable.ResumeExecution{}); err == nil {
		t.Fatalf("ResumeExecution before a route was assigned must error")
	}
}

func TestMobile_StepForwardAdvancesCursorAndRequestsNextStep(t *testing.T) {
	outbox := &recordingOutbox{}
	m := NewMobile("M1", outbox)

	r := route.NewTriple(
		[]step.Step{step.New(step.Road, "r0")},
		[]step.Step{step.New(step.Lane, "l0")},
		[]step.Step{step.New(step.Crossroad, "c0")},
	)
	m.Apply(RouteAssigned{Route: r})

	events, err := m.HandleCommand(StepForward{})
	if err != nil {
		t.Fatalf("HandleCommand(StepForward): %v", err)
	}
	if len(events) == 0 {
		t.Fatalf("StepForward produced no events")
	}
	advanced, ok := events[0].(Advanced)
	if !ok {
		t.Fatalf("first event = %T, want Advanced", events[0])
	}
	if advanced.Tag != route.WorkToFun || advanced.Index != 0 {
		t.Fatalf("Advanced = %+v, want tag=WorkToFun index=0", advanced)
	}
	for _, ev := range events {
		m.Apply(ev)
	}

	if len(outbox.sent) != 1 {
		t.Fatalf("got %d outbound requests after StepForward, want 1", len(outbox.sent))
	}
	// Advancing from the single-step houseToWork segment (road) lands on
	// the single-step workToFun segment, whose step is the lane.
	if _, ok := outbox.sent[0].command.(immovable.LaneAdmit); !ok {
		t.Fatalf("command = %T, want immovable.LaneAdmit", outbox.sent[0].command)
	}
}

func TestMobile_StepForwardWhenNotBoundIsNoOp(t *testing.T) {
	outbox := &recordingOutbox{}
	m := NewMobile("M1", outbox)

	events, err := m.HandleCommand(StepForward{})
	if err != nil {
		t.Fatalf("HandleCommand(StepForward unbound): %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("StepForward on an unbound mobile produced %d events, want 0", len(events))
	}
}

func TestMobile_SleepSendsPauseExecutionToCurrentHost(t *testing.T) {
	outbox := &recordingOutbox{}
	m := NewMobile("M1", outbox)
	m.Apply(RouteAssigned{Route: singleLaneRoute("L1")})

	_, err := m.HandleCommand(Sleep{WakeupTime: 42})
	if err != nil {
		t.Fatalf("HandleCommand(Sleep): %v", err)
	}

	if len(outbox.sent) != 1 {
		t.Fatalf("got %d outbound requests, want 1", len(outbox.sent))
	}
	pause, ok := outbox.sent[0].command.(immovable.PauseExecution)
	if !ok {
		t.Fatalf("command = %T, want immovable.PauseExecution", outbox.sent[0].command)
	}
	if pause.WakeupTime != 42 || pause.ID != "M1" {
		t.Fatalf("PauseExecution = %+v, want ID=M1 WakeupTime=42", pause)
	}
}

func TestMobile_PredecessorGoneClearsPreviousVehicleID(t *testing.T) {
	outbox := &recordingOutbox{}
	m := NewMobile("M1", outbox)
	m.Apply(VehicleIDsUpdated{NextVehicleID: "next", PreviousVehicleID: "prev"})

	events, err := m.HandleCommand(PredecessorGone{FromID: "prev"})
	if err != nil {
		t.Fatalf("HandleCommand(PredecessorGone): %v", err)
	}
	updated, ok := events[0].(VehicleIDsUpdated)
	if !ok {
		t.Fatalf("event = %T, want VehicleIDsUpdated", events[0])
	}
	if updated.PreviousVehicleID != "" {
		t.Fatalf("PreviousVehicleID = %q after PredecessorGone, want empty", updated.PreviousVehicleID)
	}
	if updated.NextVehicleID != "next" {
		t.Fatalf("NextVehicleID = %q, want unchanged next", updated.NextVehicleID)
	}
}

func TestMobile_PredecessorGoneNotificationSentOncePerDeparture(t *testing.T) {
	outbox := &recordingOutbox{}
	m := NewMobile("M1", outbox)
	m.Apply(RouteAssigned{Route: singleLaneRoute("L1")})
	m.Apply(VehicleIDsUpdated{NextVehicleID: "", PreviousVehicleID: "prev1"})

	events, err := m.HandleCommand(StepForward{})
	if err != nil {
		t.Fatalf("HandleCommand(StepForward): %v", err)
	}
	for _, ev := range events {
		m.Apply(ev)
	}

	notified := 0
	for _, s := range outbox.sent {
		if _, ok := s.command.(PredecessorGone); ok {
			notified++
		}
	}
	if notified != 1 {
		t.Fatalf("PredecessorGone sent %d times on first StepForward after a predecessor link, want 1", notified)
	}

	outbox.sent = nil
	events, err = m.HandleCommand(StepForward{})
	if err != nil {
		t.Fatalf("HandleCommand(StepForward again): %v", err)
	}
	for _, ev := range events {
		m.Apply(ev)
	}
	for _, s := range outbox.sent {
		if _, ok := s.command.(PredecessorGone); ok {
			t.Fatalf("PredecessorGone sent again on a later StepForward without a new predecessor link")
		}
	}
}

func TestMobile_SnapshotRestoreRoundTrip(t *testing.T) {
	m1 := NewMobile("M1", &recordingOutbox{})
	r := route.NewTriple(
		[]step.Step{step.New(step.Road, "r0")},
		[]step.Step{step.New(step.Lane, "l0")},
		[]step.Step{step.New(step.Crossroad, "c0")},
	)
	m1.Apply(RouteAssigned{Route: r})
	m1.Apply(entity.IdentityArrived{ID: "M1"})
	if events, err := m1.HandleCommand(StepForward{}); err == nil {
		for _, ev := range events {
			m1.Apply(ev)
		}
	}

	snap := m1.Snapshot()

	m2 := NewMobile("M1", &recordingOutbox{})
	m2.Restore(snap)

	if !m2.bound {
		t.Fatalf("restored mobile not bound")
	}
	if m2.cursor == nil {
		t.Fatalf("restored mobile has no cursor")
	}
	if m2.cursor.Tag() != route.WorkToFun || m2.cursor.Index() != 0 {
		t.Fatalf("restored cursor at tag=%v index=%d, want WorkToFun/0", m2.cursor.Tag(), m2.cursor.Index())
	}
}
