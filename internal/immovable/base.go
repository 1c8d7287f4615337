/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package immovable implements the Static Entity Logic and
// the common immovable-entity lifecycle: binding to
// map data, tracking handled mobiles and sleepers, and the
// spawn-on-recovery bootstrap. Per-kind protocols (lane, crossroad,
// pedestrian crossing, bus/tram stop, road, zone) embed Base and extend
// its command dispatch.
package immovable

import (
	"github.com/pkg/errors"

	"github.com/cityflow/actorcity/entity"
	"github.com/cityflow/actorcity/internal/mapdata"
)

// Identity binds this immovable to its map record. It is the injector's
// first command to a freshly spawned entity.
type Identity struct {
	ID string
}

// CreateMobileEntity spawns a mobile child, delivers its route, and
// resumes it. It is the injector's command for introducing a new
// vehicle or pedestrian into the simulation.
type CreateMobileEntity struct {
	ID    string
	Route interface{} // a route.Route, opaque to the framework layer
}

// AssignRoute carries a newly-created mobile's route to it. Defined here
// rather than in package mobile so that immovable has no import-cycle
// dependency on its own children's package.
type AssignRoute struct {
	Route interface{}
}

// ResumeExecution asks a mobile (freshly spawned or woken from sleep) to
// resume stepping its route.
type ResumeExecution struct{}

// MobileEntityAdd/Remove mark membership in handledMobileEntities.
type MobileEntityAdd struct{ ID string }
type MobileEntityRemove struct{ ID string }

// PauseExecution is sent by a mobile to its host, asking to be
// registered as sleeping until WakeupTime.
type PauseExecution struct {
	ID         string // the sleeping mobile's own ID (sender)
	WakeupTime uint64
}

// ReCreateMobileEntities is the post-recovery bootstrap action: respawn
// every mobile still listed in handledMobileEntities and resume it.
type ReCreateMobileEntities struct{}

// SpawnFunc (re)creates a mobile child entity and wires its runtime.
// Base never holds actor handles directly, since they are not
// persistable; it only remembers IDs and asks the host process to spawn
// via this callback, rebuilt fresh every time.
type SpawnFunc func(id string) error

// ResumeFunc sends ResumeExecution to an already-spawned mobile.
type ResumeFunc func(id string) error

// Base is embedded by every per-kind immovable Handler. It owns the
// state common to all static entities: bound
// map record, the handled-mobile set, and the sleepers map.
type Base struct {
	ID        string
	Kind      entity.Kind
	MapLookup *mapdata.Map
	Outbox    *Outbox

	Record mapdata.Record
	bound  bool

	handled  map[string]struct{}
	sleepers map[string]uint64

	spawn  SpawnFunc
	resume ResumeFunc
}

// NewBase constructs a Base for id, wired to spawn/resume callbacks the
// host process supplies and the Outbox it uses for every outbound
// at-least-once send a per-kind handler initiates.
func NewBase(id string, kind entity.Kind, lookup *mapdata.Map, outbox *Outbox, spawn SpawnFunc, resume ResumeFunc) *Base {
	return &Base{
		ID:        id,
		Kind:      kind,
		MapLookup: lookup,
		Outbox:    outbox,
		handled:   map[string]struct{}{},
		sleepers:  map[string]uint64{},
		spawn:     spawn,
		resume:    resume,
	}
}

// Bound reports whether Identity has been processed.
func (b *Base) Bound() bool { return b.bound }

// Handled reports whether mobileID is currently tracked as present.
func (b *Base) Handled(mobileID string) bool {
	_, ok := b.handled[mobileID]
	return ok
}

// HandledIDs returns a snapshot of the currently-handled mobile IDs.
func (b *Base) HandledIDs() []string {
	out := make([]string, 0, len(b.handled))
	for id := range b.handled {
		out = append(out, id)
	}
	return out
}

// Sleepers returns a copy of the sleepers map for snapshotting or the
// time-tick wakeup scan.
func (b *Base) Sleepers() map[string]uint64 {
	out := make(map[string]uint64, len(b.sleepers))
	for k, v := range b.sleepers {
		out[k] = v
	}
	return out
}

// HandleCommand implements the generic lifecycle commands shared by
// every immovable kind. Per-kind handlers call this as a fallback after
// handling their own domain commands.
func (b *Base) HandleCommand(cmd interface{}) ([]interface{}, error) {
	switch c := cmd.(type) {
	case Identity:
		if b.bound {
			return nil, nil
		}
		if _, ok := b.MapLookup.Lookup(c.ID); !ok {
			// Unknown entity ID in map is a data error, logged
			// by the caller; the entity stays unbound (fail-slow).
			return nil, errors.Errorf("unknown map entity id %q", c.ID)
		}
		return []interface{}{entity.IdentityArrived{ID: c.ID}}, nil

	case CreateMobileEntity:
		if err := b.spawn(c.ID); err != nil {
			return nil, errors.WithMessagef(err, "could not spawn mobile %q", c.ID)
		}
		b.Outbox.Request(c.ID, b.ID, AssignRoute{Route: c.Route})
		b.Outbox.Request(c.ID, b.ID, ResumeExecution{})
		return []interface{}{entity.MobileEntityArrived{ID: c.ID}}, nil

	case MobileEntityAdd:
		return []interface{}{entity.MobileEntityArrived{ID: c.ID}}, nil

	case MobileEntityRemove:
		return []interface{}{entity.MobileEntityGone{ID: c.ID}}, nil

	case PauseExecution:
		return []interface{}{
			entity.MobileEntitySleeping{ID: c.ID, WakeupTime: c.WakeupTime},
			entity.MobileEntityGone{ID: c.ID},
		}, nil

	case ReCreateMobileEntities:
		// Pure bootstrap signal, no event of its own. The runtime's
		// recovery-completed callback invokes this directly against the
		// already-replayed handled set, not through HandleCommand.
		return nil, nil

	default:
		return nil, errors.Errorf("unknown command %T", cmd)
	}
}

// Apply mutates Base's own state for the framework events it owns.
func (b *Base) Apply(event interface{}) {
	switch ev := event.(type) {
	case entity.IdentityArrived:
		b.bound = true
		if rec, ok := b.MapLookup.Lookup(ev.ID); ok {
			b.Record = rec
		}
	case entity.MobileEntityArrived:
		b.handled[ev.ID] = struct{}{}
	case entity.MobileEntityGone:
		delete(b.handled, ev.ID)
	case entity.MobileEntitySleeping:
		b.sleepers[ev.ID] = ev.WakeupTime
		delete(b.handled, ev.ID)
	case entity.MobileEntityWakingUp:
		delete(b.sleepers, ev.ID)
		b.handled[ev.ID] = struct{}{}
	}
}

// snapshot is Base's serializable state.
type snapshot struct {
	Bound    bool              `json:"bound"`
	RecordID string            `json:"recordId"`
	Handled  []string          `json:"handled"`
	Sleepers map[string]uint64 `json:"sleepers"`
}

// Snapshot returns Base's portion of a handler's saved state.
func (b *Base) Snapshot() snapshot {
	return snapshot{
		Bound:    b.bound,
		RecordID: b.Record.ID,
		Handled:  b.HandledIDs(),
		Sleepers: b.Sleepers(),
	}
}

// Restore replaces Base's state from a previously-saved snapshot.
func (b *Base) Restore(s snapshot) {
	b.bound = s.Bound
	if s.RecordID != "" {
		if rec, ok := b.MapLookup.Lookup(s.RecordID); ok {
			b.Record = rec
		}
	}
	b.handled = map[string]struct{}{}
	for _, id := range s.Handled {
		b.handled[id] = struct{}{}
	}
	b.sleepers = map[string]uint64{}
	for id, t := range s.Sleepers {
		b.sleepers[id] = t
	}
}

// ReCreateChildren respawns every currently-handled mobile and resumes
// it, the post-recovery bootstrap action. It is invoked by the runtime's
// OnRecoveryCompleted hook after replay has populated handled/sleepers,
// so it observes every queued MobileEntityRemove first.
func (b *Base) ReCreateChildren() {
	for id := range b.handled {
		if err := b.spawn(id); err != nil {
			continue
		}
		_ = b.resume(id)
	}
}

// ActorsToWakeUp handles one time tick: every sleeper whose WakeupTime <= t is
// woken. It returns the IDs woken so the caller can journal
// MobileEntityWakingUp for each before calling Apply. Ticks are
// idempotent: a sleeper already removed by an earlier identical tick is
// simply absent from the map and produces no further events.
func (b *Base) ActorsToWakeUp(t uint64) []string {
	var ids []string
	for id, wake := range b.sleepers {
		if wake <= t {
			ids = append(ids, id)
		}
	}
	return ids
}

// SpawnAndResume respawns mobileID and resumes it -- used for
// tick-driven wakeups once MobileEntityWakingUp is durable.
func (b *Base) SpawnAndResume(mobileID string) error {
	if err := b.spawn(mobileID); err != nil {
		return err
	}
	return b.resume(mobileID)
}
