/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package journal implements the Event Journal: an append-only
// per-entity log of events, supporting ordered replay and
// snapshot-driven truncation, one log per entity key.
package journal

import (
	"reflect"
	"sync"

	"github.com/pkg/errors"
)

// typeRegistry maps an event's type name to its concrete Go type, so a
// file-backed journal can reconstruct the right struct on replay instead
// of handing callers back a bag of map[string]interface{}. The Memory
// backend needs no registry: it already stores the original interface{}
// value.
var (
	registryMu sync.RWMutex
	registry   = map[string]reflect.Type{}
)

// Register associates an event value's concrete type with its type name
// for replay decoding. Every event type journaled through a File backend
// must be registered once at program startup.
func Register(event interface{}) {
	t := reflect.TypeOf(event)
	registryMu.Lock()
	registry[t.Name()] = t
	registryMu.Unlock()
}

func typeByName(name string) (reflect.Type, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	t, ok := registry[name]
	return t, ok
}

// Record is one journaled event, tagged with its dense per-entity
// sequence number.
type Record struct {
	SeqNr uint64
	Event interface{}
}

// Journal is the Event Journal contract. Storage unavailability is fatal
// to the hosting entity: Append returns an error only when
// the record could not be made durable, and the caller must abort command
// processing rather than apply the effect.
type Journal interface {
	// Append durably stores event for entityID and returns the sequence
	// number assigned to it. It returns only once durable.
	Append(entityID string, event interface{}) (uint64, error)

	// Replay yields, in append order, every record with SeqNr >= fromSeq.
	Replay(entityID string, fromSeq uint64) ([]Record, error)

	// Truncate removes records superseded by a snapshot: every record
	// with SeqNr <= upToSeq. A failed append must never be visible to a
	// later replay, and truncate must never remove a record still
	// referenced by an unacknowledged outbound delivery. Callers are
	// responsible for only truncating up to a durable snapshot's SeqNr.
	Truncate(entityID string, upToSeq uint64) error
}

// ErrEntityUnknown names the condition of an entity with no journal yet.
// Neither backend in this package returns it: Memory's Replay returns no
// records and no error, and File creates the entity's log on first use.
var ErrEntityUnknown = errors.New("journal: no such entity")

// perEntityLog is one entity key's in-memory slice of records and the
// next sequence number to assign.
type perEntityLog struct {
	mu      sync.Mutex
	next    uint64
	records []Record
}

// Memory is an in-process Journal backend: a map of per-entity logs
// guarded by independent locks so concurrent writes to different entity
// IDs never contend.
type Memory struct {
	mu   sync.RWMutex
	logs map[string]*perEntityLog
}

// NewMemory constructs an empty in-memory Journal.
func NewMemory() *Memory {
	return &Memory{logs: map[string]*perEntityLog{}}
}

func (m *Memory) logFor(entityID string) *perEntityLog {
	m.mu.RLock()
	l, ok := m.logs[entityID]
	m.mu.RUnlock()
	if ok {
		return l
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok = m.logs[entityID]; ok {
		return l
	}
	l = &perEntityLog{}
	m.logs[entityID] = l
	return l
}

func (m *Memory) Append(entityID string, event interface{}) (uint64, error) {
	l := m.logFor(entityID)
	l.mu.Lock()
	defer l.mu.Unlock()

	seq := l.next
	l.records = append(l.records, Record{SeqNr: seq, Event: event})
	l.next++
	return seq, nil
}

func (m *Memory) Replay(entityID string, fromSeq uint64) ([]Record, error) {
	m.mu.RLock()
	l, ok := m.logs[entityID]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Record, 0, len(l.records))
	for _, r := range l.records {
		if r.SeqNr >= fromSeq {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *Memory) Truncate(entityID string, upToSeq uint64) error {
	l := m.logFor(entityID)
	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.records[:0]
	for _, r := range l.records {
		if r.SeqNr > upToSeq {
			kept = append(kept, r)
		}
	}
	l.records = kept
	return nil
}
