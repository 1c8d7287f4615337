/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package entity

import (
	"testing"

	"go.uber.org/zap"

	"github.com/cityflow/actorcity/internal/journal"
	"github.com/cityflow/actorcity/internal/snapshot"
)

// testCmd/testEv are the minimal command/event pair a recordingHandler
// turns commands into, so tests can assert on applied state directly.
type testCmd struct{ N int }
type testEv struct{ N int }

// recordingHandler is the simplest possible Handler: HandleCommand turns
// every testCmd into a matching testEv, Apply adds N to Sum and appends
// it to Applied.
type recordingHandler struct {
	Sum     int
	Applied []int
}

func (h *recordingHandler) HandleCommand(cmd interface{}) ([]interface{}, error) {
	c, ok := cmd.(testCmd)
	if !ok {
		return nil, nil
	}
	return []interface{}{testEv{N: c.N}}, nil
}

func (h *recordingHandler) Apply(event interface{}) {
	if ev, ok := event.(testEv); ok {
		h.Sum += ev.N
		h.Applied = append(h.Applied, ev.N)
	}
}

func (h *recordingHandler) Snapshot() interface{} {
	applied := make([]int, len(h.Applied))
	copy(applied, h.Applied)
	return recordingHandlerSnapshot{Sum: h.Sum, Applied: applied}
}

func (h *recordingHandler) Restore(blob interface{}) {
	snap := blob.(recordingHandlerSnapshot)
	h.Sum = snap.Sum
	h.Applied = append([]int(nil), snap.Applied...)
}

type recordingHandlerSnapshot struct {
	Sum     int
	Applied []int
}

func newTestRuntime(id string, j journal.Journal, s snapshot.Store, h Handler) *Runtime {
	return New(id, KindMobile, j, s, h, nil, zap.NewNop().Sugar())
}

func sendRequest(t *testing.T, rt *Runtime, senderID string, deliveryID uint64, cmd interface{}) {
	t.Helper()
	if err := rt.HandleEnvelope("sender-addr", Request{SenderID: senderID, DeliveryID: deliveryID, Command: cmd}); err != nil {
		t.Fatalf("HandleEnvelope: %v", err)
	}
}

func TestRuntime_CommandAppliesEvent(t *testing.T) {
	j := journal.NewMemory()
	s := snapshot.NewMemory()
	h := &recordingHandler{}
	rt := newTestRuntime("m1", j, s, h)

	if err := rt.Recover(); err != nil {
		t.Fatalf("Recover: %v", err)
	}
	sendRequest(t, rt, "sender1", 1, testCmd{N: 5})

	if h.Sum != 5 {
		t.Fatalf("Sum = %d, want 5", h.Sum)
	}
}

func TestRuntime_DuplicateDeliveryIsIgnored(t *testing.T) {
	j := journal.NewMemory()
	s := snapshot.NewMemory()
	h := &recordingHandler{}
	rt := newTestRuntime("m1", j, s, h)

	if err := rt.Recover(); err != nil {
		t.Fatalf("Recover: %v", err)
	}
	sendRequest(t, rt, "sender1", 1, testCmd{N: 5})
	sendRequest(t, rt, "sender1", 1, testCmd{N: 5}) // redelivered, same deliveryId

	if h.Sum != 5 {
		t.Fatalf("Sum = %d after duplicate redelivery, want 5 (must apply only once)", h.Sum)
	}
	if len(h.Applied) != 1 {
		t.Fatalf("Applied has %d entries, want 1", len(h.Applied))
	}
}

func TestRuntime_AckConfirmsOutboundDelivery(t *testing.T) {
	j := journal.NewMemory()
	s := snapshot.NewMemory()
	h := &recordingHandler{}
	rt := newTestRuntime("m1", j, s, h)
	if err := rt.Recover(); err != nil {
		t.Fatalf("Recover: %v", err)
	}

	send := func(destAddr string, payload interface{}) error { return nil }
	id, err := rt.DeliveryTracker().Deliver("dest", func(deliveryID uint64) interface{} { return deliveryID }, send)
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	if err := rt.HandleEnvelope("dest", Ack{DeliveryID: id}); err != nil {
		t.Fatalf("HandleEnvelope(Ack): %v", err)
	}

	for _, o := range rt.DeliveryTracker().Outstanding() {
		if o == id {
			t.Fatalf("delivery %d still outstanding after Ack", id)
		}
	}
}

func TestRuntime_RecoverTwiceIsRejected(t *testing.T) {
	j := journal.NewMemory()
	s := snapshot.NewMemory()
	h := &recordingHandler{}
	rt := newTestRuntime("m1", j, s, h)

	if err := rt.Recover(); err != nil {
		t.Fatalf("Recover: %v", err)
	}

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("second Recover call must panic on the double-recovery invariant")
		}
	}()
	rt.Recover()
}

func TestRuntime_ReplayRebuildsHandlerState(t *testing.T) {
	j := journal.NewMemory()
	s := snapshot.NewMemory()
	h1 := &recordingHandler{}
	rt1 := newTestRuntime("m1", j, s, h1)
	if err := rt1.Recover(); err != nil {
		t.Fatalf("Recover: %v", err)
	}
	sendRequest(t, rt1, "sender1", 1, testCmd{N: 3})
	sendRequest(t, rt1, "sender1", 2, testCmd{N: 4})

	// A fresh Runtime over the same journal must replay to the same state.
	h2 := &recordingHandler{}
	rt2 := newTestRuntime("m1", j, s, h2)
	if err := rt2.Recover(); err != nil {
		t.Fatalf("Recover (replay): %v", err)
	}

	if h2.Sum != 7 {
		t.Fatalf("replayed Sum = %d, want 7", h2.Sum)
	}
}

func TestRuntime_ReplayAfterDuplicateDoesNotReapply(t *testing.T) {
	j := journal.NewMemory()
	s := snapshot.NewMemory()
	h1 := &recordingHandler{}
	rt1 := newTestRuntime("m1", j, s, h1)
	if err := rt1.Recover(); err != nil {
		t.Fatalf("Recover: %v", err)
	}
	sendRequest(t, rt1, "sender1", 1, testCmd{N: 5})
	sendRequest(t, rt1, "sender1", 1, testCmd{N: 5}) // duplicate: acked, nothing journaled

	h2 := &recordingHandler{}
	rt2 := newTestRuntime("m1", j, s, h2)
	if err := rt2.Recover(); err != nil {
		t.Fatalf("Recover (replay): %v", err)
	}
	if h2.Sum != 5 {
		t.Fatalf("replayed Sum = %d after a duplicate delivery, want 5", h2.Sum)
	}
}

func TestRuntime_TakeSnapshotThenRecoverSkipsReplayedJournal(t *testing.T) {
	j := journal.NewMemory()
	s := snapshot.NewMemory()
	h1 := &recordingHandler{}
	rt1 := newTestRuntime("m1", j, s, h1)
	if err := rt1.Recover(); err != nil {
		t.Fatalf("Recover: %v", err)
	}
	sendRequest(t, rt1, "sender1", 1, testCmd{N: 2})
	rt1.TakeSnapshot()
	sendRequest(t, rt1, "sender1", 2, testCmd{N: 9})

	h2 := &recordingHandler{}
	rt2 := newTestRuntime("m1", j, s, h2)
	if err := rt2.Recover(); err != nil {
		t.Fatalf("Recover (from snapshot): %v", err)
	}
	if h2.Sum != 11 {
		t.Fatalf("Sum after recovering from snapshot + tail replay = %d, want 11", h2.Sum)
	}
}

func TestRuntime_IdentityArrivedBindsEntity(t *testing.T) {
	j := journal.NewMemory()
	s := snapshot.NewMemory()
	h := &recordingHandler{}
	rt := newTestRuntime("m1", j, s, h)
	if err := rt.Recover(); err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if rt.Bound() {
		t.Fatalf("Bound() true before IdentityArrived was ever applied")
	}

	if err := rt.InjectEvent(IdentityArrived{ID: "m1"}); err != nil {
		t.Fatalf("InjectEvent: %v", err)
	}
	if !rt.Bound() {
		t.Fatalf("Bound() false after IdentityArrived was applied")
	}
}

func TestRuntime_SnapshotPersistsOutstandingDeliveryAcrossRecover(t *testing.T) {
	j := journal.NewMemory()
	s := snapshot.NewMemory()
	h1 := &recordingHandler{}
	rt1 := newTestRuntime("m1", j, s, h1)
	if err := rt1.Recover(); err != nil {
		t.Fatalf("Recover: %v", err)
	}

	var sent []interface{}
	send := func(destAddr string, payload interface{}) error {
		sent = append(sent, payload)
		return nil
	}
	id, err := rt1.DeliveryTracker().Deliver("dest", func(deliveryID uint64) interface{} { return deliveryID }, send)
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	rt1.TakeSnapshot()

	h2 := &recordingHandler{}
	rt2 := newTestRuntime("m1", j, s, h2)
	if err := rt2.Recover(); err != nil {
		t.Fatalf("Recover (from snapshot): %v", err)
	}

	found := false
	for _, o := range rt2.DeliveryTracker().Outstanding() {
		if o == id {
			found = true
		}
	}
	if !found {
		t.Fatalf("delivery %d not outstanding after recovery, want it restored from the snapshot", id)
	}

	// The restored delivery ID must never be reissued.
	nextID, err := rt2.DeliveryTracker().Deliver("dest", func(deliveryID uint64) interface{} { return deliveryID }, send)
	if err != nil {
		t.Fatalf("Deliver (post-recovery): %v", err)
	}
	if nextID == id {
		t.Fatalf("recovered tracker reissued delivery id %d", id)
	}
}

func TestRuntime_OnRecoveryCompletedFiresOnce(t *testing.T) {
	j := journal.NewMemory()
	s := snapshot.NewMemory()
	h := &recordingHandler{}
	rt := newTestRuntime("m1", j, s, h)

	fired := 0
	rt.OnRecoveryCompleted(func() { fired++ })
	if err := rt.Recover(); err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if fired != 1 {
		t.Fatalf("OnRecoveryCompleted callback fired %d times, want 1", fired)
	}
}
