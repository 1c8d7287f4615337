/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package delivery implements the Delivery Tracker: the
// at-least-once sender side. It assigns strictly increasing per-sender
// deliveryIds, stores the outbound envelope, and retries with capped
// exponential backoff until the destination acknowledges: store and
// retry until ack, rather than store then wait for inclusion in a batch.
package delivery

import (
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Sender delivers an already-built envelope to destAddr. Tracker calls it
// once on first send and again on every retry.
type Sender func(destAddr string, payload interface{}) error

// pending is one outbound delivery awaiting acknowledgement.
type pending struct {
	deliveryID uint64
	destAddr   string
	payload    interface{}
	attempts   int
	nextRetry  time.Time
}

// Config bounds the tracker's retry behavior.
type Config struct {
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	MaxAttempts int // 0 means retry forever
}

// DefaultConfig matches a conservative capped-exponential schedule.
func DefaultConfig() Config {
	return Config{
		BaseBackoff: 100 * time.Millisecond,
		MaxBackoff:  30 * time.Second,
		MaxAttempts: 0,
	}
}

// Tracker is the per-sender outbound registry of unacknowledged messages.
type Tracker struct {
	cfg Config

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]*pending
}

// NewTracker constructs an empty Tracker. Delivery IDs start at 1: a
// receiver's dedup filter treats 0 as already seen.
func NewTracker(cfg Config) *Tracker {
	return &Tracker{cfg: cfg, nextID: 1, pending: map[uint64]*pending{}}
}

// RestoreHighWater fast-forwards the delivery-ID counter on recovery so
// IDs already journaled are never reused.
func (t *Tracker) RestoreHighWater(highestIssued uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.restoreHighWaterLocked(highestIssued)
}

func (t *Tracker) restoreHighWaterLocked(highestIssued uint64) {
	if highestIssued+1 > t.nextID {
		t.nextID = highestIssued + 1
	}
}

// NextID reports the delivery ID that will be assigned to the next
// Deliver call, persisted in a snapshot so a restored Tracker picks up
// exactly where the live one left off even if nothing is outstanding.
func (t *Tracker) NextID() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.nextID
}

// RestoreNextID fast-forwards the delivery-ID counter to at least next,
// the restore-side counterpart to NextID; it never rewinds the counter.
func (t *Tracker) RestoreNextID(next uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if next > t.nextID {
		t.nextID = next
	}
}

// PendingDelivery is one outstanding delivery's durable state: enough to
// rebuild a retry after a restart without the original mkEnvelope
// closure, since the envelope (with its deliveryID already baked in) was
// built once at first send and never changes across retries.
type PendingDelivery struct {
	DeliveryID uint64
	DestAddr   string
	Payload    interface{}
}

// Pending returns every delivery currently awaiting acknowledgement, for
// persisting alongside a snapshot so a restart can reconstruct the
// outstanding set.
func (t *Tracker) Pending() []PendingDelivery {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]PendingDelivery, 0, len(t.pending))
	for _, p := range t.pending {
		out = append(out, PendingDelivery{DeliveryID: p.deliveryID, DestAddr: p.destAddr, Payload: p.payload})
	}
	return out
}

// Restore repopulates the outstanding-delivery set from records persisted
// in a snapshot and fast-forwards the delivery-ID counter past every
// restored ID. It does not send anything itself: redelivery resumes on
// the next RetryDue tick exactly like any other pending delivery, which
// is how "on restart the tracker's state is reconstructed... and resumes
// retries" is satisfied without a recovery-time side effect.
func (t *Tracker) Restore(records []PendingDelivery) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	for _, rec := range records {
		t.pending[rec.DeliveryID] = &pending{
			deliveryID: rec.DeliveryID,
			destAddr:   rec.DestAddr,
			payload:    rec.Payload,
			attempts:   1,
			nextRetry:  now,
		}
		t.restoreHighWaterLocked(rec.DeliveryID)
	}
}

// Deliver assigns a deliveryID, builds the envelope via mkEnvelope (so
// the ID is visible inside the wire payload), and hands it to send. The
// delivery is tracked for retry until ConfirmDelivery is called.
func (t *Tracker) Deliver(destAddr string, mkEnvelope func(deliveryID uint64) interface{}, send Sender) (uint64, error) {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	payload := mkEnvelope(id)
	p := &pending{
		deliveryID: id,
		destAddr:   destAddr,
		payload:    payload,
		attempts:   1,
		nextRetry:  time.Now().Add(t.cfg.BaseBackoff),
	}
	t.pending[id] = p
	t.mu.Unlock()

	if err := send(destAddr, payload); err != nil {
		return id, errors.WithMessagef(err, "initial delivery %d to %s failed, will retry", id, destAddr)
	}
	return id, nil
}

// ConfirmDelivery stops retrying deliveryID. A confirmation for an
// unknown or already-confirmed ID is a harmless no-op, since duplicate
// acks from retried sends are expected.
func (t *Tracker) ConfirmDelivery(deliveryID uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pending, deliveryID)
}

// RetryDue returns the deliveries whose backoff has elapsed, advances
// their schedule, and drops any that exceeded MaxAttempts. The caller is
// expected to invoke this from a periodic timer and re-send each result
// via the same Sender used in Deliver.
func (t *Tracker) RetryDue(now time.Time, send Sender) {
	t.mu.Lock()
	due := make([]*pending, 0)
	for _, p := range t.pending {
		if !now.Before(p.nextRetry) {
			due = append(due, p)
		}
	}
	t.mu.Unlock()

	for _, p := range due {
		t.mu.Lock()
		if t.cfg.MaxAttempts > 0 && p.attempts >= t.cfg.MaxAttempts {
			delete(t.pending, p.deliveryID)
			t.mu.Unlock()
			continue
		}
		p.attempts++
		backoff := t.cfg.BaseBackoff << uint(p.attempts-1)
		if backoff > t.cfg.MaxBackoff || backoff <= 0 {
			backoff = t.cfg.MaxBackoff
		}
		p.nextRetry = now.Add(backoff)
		destAddr, payload := p.destAddr, p.payload
		t.mu.Unlock()

		_ = send(destAddr, payload)
	}
}

// Outstanding returns the deliveryIDs currently awaiting acknowledgement,
// used to reconstruct tracker state after an entity restart from its
// journaled deliveries.
func (t *Tracker) Outstanding() []uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]uint64, 0, len(t.pending))
	for id := range t.pending {
		out = append(out, id)
	}
	return out
}
