/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package dedup implements the Dedup Filter: a per-receiver
// map {senderId -> highest accepted deliveryId}, persisted as
// NoDuplicate events before being applied in memory, keyed by sender
// rather than one watermark per client.
package dedup

import "sync"

// Filter is the in-memory half of the dedup contract. Persisting the
// NoDuplicate event that backs a call to Accept is the runtime's
// responsibility: it journals NoDuplicate(senderId, deliveryId) before
// applying the command, then updates the in-memory map. Filter itself
// only tracks the watermark once durable.
type Filter struct {
	mu   sync.Mutex
	high map[string]uint64
}

// New constructs an empty Filter.
func New() *Filter {
	return &Filter{high: map[string]uint64{}}
}

// NewFromSnapshot rebuilds a Filter from a persisted watermark map, e.g.
// loaded from a snapshot or replayed from NoDuplicate events.
func NewFromSnapshot(watermarks map[string]uint64) *Filter {
	f := New()
	for sender, d := range watermarks {
		f.high[sender] = d
	}
	return f
}

// IsNew reports whether deliveryId is strictly greater than the highest
// deliveryId ever accepted from sender.
func (f *Filter) IsNew(senderID string, deliveryID uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return deliveryID > f.high[senderID]
}

// Accept records deliveryID as the new high-water mark for sender. The
// filter is monotonic: a call with a deliveryID not greater than the
// current watermark is a no-op, so acceptance can never move the
// watermark backwards even under replay or command re-ordering.
func (f *Filter) Accept(senderID string, deliveryID uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if deliveryID > f.high[senderID] {
		f.high[senderID] = deliveryID
	}
}

// Snapshot returns a copy of the current watermark map, suitable for
// inclusion in an entity's state snapshot.
func (f *Filter) Snapshot() map[string]uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]uint64, len(f.high))
	for k, v := range f.high {
		out[k] = v
	}
	return out
}
