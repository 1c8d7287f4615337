/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package mapdata loads the external map JSON document: roads,
// lanes, crossroads, pedestrian crossings, bus stops, tram stops and
// zones, keyed by stable string IDs whose first character encodes kind.
// It is consumed as an opaque lookup service, out of core scope, so this
// package only loads and indexes: it never interprets the records.
package mapdata

import (
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

var api = jsoniter.ConfigCompatibleWithStandardLibrary

// Record is one static map entity's raw data. Fields beyond ID/Kind are
// kind-specific and left as a raw map so immovable.Handler
// implementations can decode only what they need.
type Record struct {
	ID     string                 `json:"id"`
	Kind   string                 `json:"kind"`
	Length float64                `json:"length,omitempty"`
	Extra  map[string]interface{} `json:"-"`
}

// document mirrors the on-disk shape: a flat list of records plus
// whatever extra fields each kind carries, captured into Extra via a
// second decode pass.
type document struct {
	Entities []jsoniter.RawMessage `json:"entities"`
}

// Map is the opaque lookup service over loaded static records.
type Map struct {
	records map[string]Record
}

// Load reads and indexes a map JSON document from path.
func Load(path string) (*Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithMessagef(err, "could not read map data file %q", path)
	}
	return Parse(data)
}

// Parse indexes a map JSON document already in memory.
func Parse(data []byte) (*Map, error) {
	var doc document
	if err := api.Unmarshal(data, &doc); err != nil {
		return nil, errors.WithMessage(err, "could not decode map document")
	}

	m := &Map{records: map[string]Record{}}
	for _, raw := range doc.Entities {
		var rec Record
		if err := api.Unmarshal(raw, &rec); err != nil {
			return nil, errors.WithMessage(err, "could not decode map entity record")
		}
		var extra map[string]interface{}
		if err := api.Unmarshal(raw, &extra); err == nil {
			rec.Extra = extra
		}
		if rec.ID == "" {
			return nil, errors.New("map entity record missing id")
		}
		m.records[rec.ID] = rec
	}
	return m, nil
}

// Lookup handles the "unknown entity ID in map" case: ok is
// false when id has no static record, and callers must leave the entity
// unbound rather than fabricate data.
func (m *Map) Lookup(id string) (Record, bool) {
	rec, ok := m.records[id]
	return rec, ok
}

// Len reports how many static records are indexed.
func (m *Map) Len() int {
	return len(m.records)
}
