/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package entity

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/cityflow/actorcity/internal/dedup"
	"github.com/cityflow/actorcity/internal/delivery"
	"github.com/cityflow/actorcity/internal/journal"
	"github.com/cityflow/actorcity/internal/snapshot"
)

// Acker sends an Ack back to the entity identified by destAddr. It is
// supplied by the transport layer (the shard router / NATS binding in a
// clustered run, or a direct call in tests).
type Acker func(destAddr string, ack Ack) error

// snapshotBlob is the combined state Runtime persists: the dedup
// watermarks and outstanding-delivery set it owns directly, plus
// whatever the Handler wants saved.
type snapshotBlob struct {
	Dedup          map[string]uint64          `json:"dedup"`
	Pending        []delivery.PendingDelivery `json:"pending"`
	NextDeliveryID uint64                     `json:"nextDeliveryId"`
	HandlerData    interface{}                `json:"handler"`
}

// Runtime is the Persistent Entity Runtime: the generic
// command/recovery loop hosting journaling, snapshotting, dedup and
// delivery for one entity, with a pluggable
// Handler supplying the per-kind domain rules.
type Runtime struct {
	id   string
	kind Kind

	mu sync.Mutex // serializes command processing: a single-threaded cooperative executor

	journal   journal.Journal
	snapStore snapshot.Store
	dedup     *dedup.Filter
	tracker   *delivery.Tracker
	handler   Handler
	logger    *zap.SugaredLogger
	ack       Acker

	bound        bool
	recovered    bool
	nextSeq      uint64
	prevSnapshot *snapshot.Snapshot

	onRecoveryCompleted func()
}

// New constructs a Runtime for entity id of the given kind. The Handler
// must already be constructed (with its dependencies injected) but
// holds no state yet: Recover populates it.
func New(id string, kind Kind, j journal.Journal, s snapshot.Store, h Handler, ack Acker, logger *zap.SugaredLogger) *Runtime {
	return &Runtime{
		id:        id,
		kind:      kind,
		journal:   j,
		snapStore: s,
		dedup:     dedup.New(),
		tracker:   delivery.NewTracker(delivery.DefaultConfig()),
		handler:   h,
		ack:       ack,
		logger:    logger,
	}
}

// OnRecoveryCompleted registers the one bootstrap action to run once
// recovery finishes loading persisted state. For immovable entities
// cityd registers immovable.Base.ReCreateChildren here, which respawns
// and resumes every handled mobile directly, not through a command.
func (r *Runtime) OnRecoveryCompleted(fn func()) {
	r.onRecoveryCompleted = fn
}

// ID returns this runtime's entity ID.
func (r *Runtime) ID() string { return r.id }

// Kind returns this runtime's entity kind.
func (r *Runtime) Kind() Kind { return r.kind }

// DeliveryTracker exposes the outbound at-least-once tracker so the
// Handler can initiate Request sends that Runtime will retry.
func (r *Runtime) DeliveryTracker() *delivery.Tracker { return r.tracker }

// Handler exposes the underlying Handler so a host process can reach
// kind-specific operations a generic envelope can't carry, e.g. the time
// tick wakeup sweep walking immovable.Base.ActorsToWakeUp.
func (r *Runtime) Handler() Handler { return r.handler }

// InjectEvent persists and applies an event generated outside the
// envelope-dispatch path, the time tick wakeup sweep's
// MobileEntityWakingUp being the one case. It follows the same
// persist-then-apply discipline as appendAndApply inside HandleEnvelope.
func (r *Runtime) InjectEvent(event interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.appendAndApply(event)
}

// Recover loads the latest snapshot (if any) and replays every event
// journaled after it, in order, applying framework events (NoDuplicate)
// to the dedup filter and everything else to the Handler. On completion
// it invokes the registered bootstrap action. A storage failure here is
// fatal to the entity: it cannot safely run without its persisted history.
func (r *Runtime) Recover() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	assertTruef(!r.recovered, "Recover called twice for %q", r.id)
	r.recovered = true

	fromSeq := uint64(0)
	if snap, ok, err := r.snapStore.Latest(r.id); err != nil {
		return errors.WithMessagef(err, "could not load snapshot for %q", r.id)
	} else if ok {
		blob, ok := snap.State.(snapshotBlob)
		if !ok {
			return errors.Errorf("corrupt snapshot for %q: unexpected type %T", r.id, snap.State)
		}
		r.dedup = dedup.NewFromSnapshot(blob.Dedup)
		r.tracker.Restore(blob.Pending)
		r.tracker.RestoreNextID(blob.NextDeliveryID)
		r.handler.Restore(blob.HandlerData)
		fromSeq = snap.SeqNr + 1
		r.nextSeq = fromSeq
		prev := snap
		r.prevSnapshot = &prev
	}

	records, err := r.journal.Replay(r.id, fromSeq)
	if err != nil {
		return errors.WithMessagef(err, "could not replay journal for %q", r.id)
	}

	for _, rec := range records {
		r.applyRecord(rec.Event)
		if rec.SeqNr+1 > r.nextSeq {
			r.nextSeq = rec.SeqNr + 1
		}
	}

	if r.onRecoveryCompleted != nil {
		r.onRecoveryCompleted()
	}
	return nil
}

func (r *Runtime) applyRecord(event interface{}) {
	switch ev := event.(type) {
	case NoDuplicate:
		r.dedup.Accept(ev.SenderID, ev.DeliveryID)
	case IdentityArrived:
		r.bound = true
		r.handler.Apply(ev)
	default:
		r.handler.Apply(event)
	}
}

func (r *Runtime) appendAndApply(event interface{}) error {
	seq, err := r.journal.Append(r.id, event)
	if err != nil {
		return err
	}
	assertTruef(seq >= r.nextSeq, "journal returned non-monotonic sequence %d for %q, expected >= %d", seq, r.id, r.nextSeq)
	r.nextSeq = seq + 1
	r.applyRecord(event)
	return nil
}

// HandleEnvelope is the single entry point per incoming message:
//  1. unwrap Request or Ack
//  2. Ack -> confirmDelivery
//  3. Request -> ack first, then dedup check, then persist-then-apply
//     dispatch
//
// senderAddr is the transport address to send the immediate Ack to; it
// may differ from cmd-level SenderID (a shard forwarding hop vs. the
// logical sender entity ID).
func (r *Runtime) HandleEnvelope(senderAddr string, env interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch v := env.(type) {
	case Ack:
		r.tracker.ConfirmDelivery(v.DeliveryID)
		return nil

	case Request:
		if r.ack != nil {
			if err := r.ack(senderAddr, Ack{DeliveryID: v.DeliveryID}); err != nil {
				r.logger.Warnw("could not send ack, sender will retry", "to", senderAddr, "deliveryId", v.DeliveryID, "err", err)
			}
		}

		if !r.dedup.IsNew(v.SenderID, v.DeliveryID) {
			// Duplicate: already acked above, no further effect.
			return nil
		}

		if err := r.appendAndApply(NoDuplicate{SenderID: v.SenderID, DeliveryID: v.DeliveryID}); err != nil {
			r.logger.Errorw("journal append failed for dedup marker, aborting command", "entity", r.id, "err", err)
			return errors.WithMessage(err, "journal append failed, command aborted")
		}

		events, err := r.handler.HandleCommand(v.Command)
		if err != nil {
			r.logger.Warnw("handler rejected command, ignoring defensively", "entity", r.id, "cmd", v.Command, "err", err)
			return nil
		}

		for _, ev := range events {
			if err := r.appendAndApply(ev); err != nil {
				r.logger.Errorw("journal append failed mid-command, aborting remaining effects", "entity", r.id, "err", err)
				return errors.WithMessage(err, "journal append failed, command aborted")
			}
		}
		return nil

	default:
		r.logger.Warnw("We should not be here", "entity", r.id, "envelope", env)
		return nil
	}
}

// TakeSnapshot is invoked by a periodic (~10s) external timer. On
// success it schedules deletion of the *previous* snapshot; on failure
// the existing snapshot is left intact and the error is logged non-fatally.
func (r *Runtime) TakeSnapshot() {
	r.mu.Lock()
	blob := snapshotBlob{
		Dedup:          r.dedup.Snapshot(),
		Pending:        r.tracker.Pending(),
		NextDeliveryID: r.tracker.NextID(),
		HandlerData:    r.handler.Snapshot(),
	}
	// The snapshot is tagged with the sequence number of the last event it
	// includes. With nothing journaled yet that number is one below 0: it
	// wraps, so Recover's SeqNr+1 still resumes replay at 0, and there is
	// nothing to truncate.
	seq := r.nextSeq - 1
	empty := r.nextSeq == 0
	prev := r.prevSnapshot
	r.mu.Unlock()

	now := time.Now()
	if err := r.snapStore.Save(r.id, seq, now, blob); err != nil {
		r.logger.Errorw("snapshot save failed, previous snapshot left intact", "entity", r.id, "err", err)
		return
	}

	saved := snapshot.Snapshot{SeqNr: seq, Timestamp: now, State: blob}
	r.mu.Lock()
	r.prevSnapshot = &saved
	r.mu.Unlock()

	if prev != nil {
		if err := r.snapStore.Delete(r.id, prev.SeqNr, prev.Timestamp); err != nil {
			r.logger.Warnw("could not delete superseded snapshot", "entity", r.id, "seq", prev.SeqNr, "err", err)
			return
		}
	}

	if !empty {
		if err := r.journal.Truncate(r.id, seq); err != nil {
			r.logger.Warnw("journal truncation failed, log will carry extra entries", "entity", r.id, "err", err)
		}
	}
}

// Bound reports whether this entity has received its Identity command.
func (r *Runtime) Bound() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bound
}
