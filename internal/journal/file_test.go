/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package journal

import "testing"

type fileWidgetEvent struct {
	Name  string
	Count int
}

func init() {
	Register(fileWidgetEvent{})
}

func TestFile_AppendAndReplayRoundTripsConcreteType(t *testing.T) {
	dir := t.TempDir()
	f, err := NewFile(dir)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := f.Append("e1", fileWidgetEvent{Name: "w", Count: i}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	recs, err := f.Replay("e1", 0)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("Replay returned %d records, want 3", len(recs))
	}
	for i, r := range recs {
		ev, ok := r.Event.(fileWidgetEvent)
		if !ok {
			t.Fatalf("record %d decoded as %T, want fileWidgetEvent (type registry failed)", i, r.Event)
		}
		if ev.Count != i {
			t.Fatalf("record %d Count = %d, want %d", i, ev.Count, i)
		}
	}
}

func TestFile_ReplaySurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	f1, err := NewFile(dir)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	for i := 0; i < 4; i++ {
		if _, err := f1.Append("e1", fileWidgetEvent{Count: i}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	f2, err := NewFile(dir)
	if err != nil {
		t.Fatalf("NewFile (reopen): %v", err)
	}
	recs, err := f2.Replay("e1", 0)
	if err != nil {
		t.Fatalf("Replay after reopen: %v", err)
	}
	if len(recs) != 4 {
		t.Fatalf("Replay after reopen returned %d records, want 4", len(recs))
	}

	seq, err := f2.Append("e1", fileWidgetEvent{Count: 4})
	if err != nil {
		t.Fatalf("Append after reopen: %v", err)
	}
	if seq != 4 {
		t.Fatalf("Append after reopen got seq %d, want 4 (must recover next seq from file)", seq)
	}
}

func TestFile_UnregisteredTypeDecodesAsGenericValue(t *testing.T) {
	dir := t.TempDir()
	f, err := NewFile(dir)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}

	type unregisteredEvent struct{ X int }
	if _, err := f.Append("e1", unregisteredEvent{X: 7}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	recs, err := f.Replay("e1", 0)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("Replay returned %d records, want 1", len(recs))
	}
	if _, ok := recs[0].Event.(unregisteredEvent); ok {
		t.Fatalf("unregistered type decoded back to concrete type unexpectedly")
	}
	if _, ok := recs[0].Event.(map[string]interface{}); !ok {
		t.Fatalf("unregistered type decoded as %T, want generic map", recs[0].Event)
	}
}

func TestFile_TruncateDropsUpToAndIncluding(t *testing.T) {
	dir := t.TempDir()
	f, err := NewFile(dir)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	for i := 0; i < 5; i++ {
		if _, err := f.Append("e1", fileWidgetEvent{Count: i}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	if err := f.Truncate("e1", 2); err != nil {
		t.Fatalf("Truncate: %v", err)
	}

	recs, err := f.Replay("e1", 0)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("after Truncate(2), got %d records, want 2", len(recs))
	}
	if recs[0].SeqNr != 3 || recs[1].SeqNr != 4 {
		t.Fatalf("remaining records have seqs %d,%d, want 3,4", recs[0].SeqNr, recs[1].SeqNr)
	}
}
