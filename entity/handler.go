/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package entity

// Handler is the per-kind protocol plugged into a Runtime: lane
// admission, crossroad arbitration, pedestrian-crossing turn-taking, or
// mobile-entity step advancement. Runtime owns journaling, snapshotting,
// dedup and delivery; Handler owns only the domain rules, dispatching
// into its own per-kind sub-state while staying out of persistence and
// replay concerns.
type Handler interface {
	// HandleCommand computes the events a command should produce. It
	// MUST NOT mutate any state Snapshot()/Restore() can observe --
	// mutation only happens inside Apply, called by Runtime only after
	// the event is durable, per the persist-then-apply discipline.
	HandleCommand(cmd interface{}) (events []interface{}, err error)

	// Apply mutates the handler's state for one event. It is called
	// both on the live persist-then-apply path and during recovery
	// replay, and must be side-effect free with respect to the outside
	// world (recovery must not re-send messages already sent live).
	Apply(event interface{})

	// Snapshot returns a serializable blob of the handler's current
	// state, written when Runtime.TakeSnapshot is called (cityd calls it
	// from a periodic timer).
	Snapshot() interface{}

	// Restore replaces the handler's state with a previously-saved
	// snapshot blob, called once during recovery before event replay.
	Restore(blob interface{})
}
