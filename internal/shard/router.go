/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package shard implements the Shard Router: it maps a
// logical entity ID to a shard via a stable hash, resolves the shard's
// owning node, and forwards envelopes; on the owning node it finds or
// spawns the local entity instance. The hashing is grounded on
// rockstar-0000-aistore's fs/hrw.go use of xxhash for stable placement,
// simplified from "highest random weight" rendezvous hashing to a flat
// modulo, since a shard key is just a stable hash of the ID
// modulo shard count here, not full consistent hashing.
package shard

import (
	"sync"

	"github.com/OneOfOne/xxhash"
	"github.com/pkg/errors"
)

// seed mirrors aistore's cos.MLCG32 constant seed choice: any fixed seed
// works, it only needs to be stable across the cluster's lifetime.
const seed = 0x2f6e1a3b

// ID is a shard identifier in [0, ShardCount).
type ID uint64

// Of returns the shard owning entityID for a cluster with shardCount
// shards.
func Of(entityID string, shardCount uint64) ID {
	if shardCount == 0 {
		return 0
	}
	h := xxhash.Checksum64S([]byte(entityID), seed)
	return ID(h % shardCount)
}

// Assignment answers which node currently owns a shard. It is the
// generalized substitute for a reliable group communication layer,
// assumed external here -- a real deployment backs this with a
// cluster-membership component; Static below is the single-node/test
// stand-in.
type Assignment interface {
	NodeFor(s ID) (node string, ok bool)
}

// Static is a fixed shard -> node table, suitable for single-node runs
// and tests. A clustered deployment swaps this for a membership-aware
// implementation without changing Router.
type Static struct {
	mu    sync.RWMutex
	table map[ID]string
}

// NewStatic builds a Static assignment with every shard on self.
func NewStatic(shardCount uint64, self string) *Static {
	t := make(map[ID]string, shardCount)
	for i := uint64(0); i < shardCount; i++ {
		t[ID(i)] = self
	}
	return &Static{table: t}
}

func (s *Static) NodeFor(shardID ID) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.table[shardID]
	return n, ok
}

// Reassign moves a shard to a different node, e.g. during a simulated
// failover. Nothing buffers envelopes during the handoff: Router.Route
// dispatches or forwards each one at once and returns that call's error
// to its caller.
func (s *Static) Reassign(shardID ID, node string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.table[shardID] = node
}

// Forwarder delivers an envelope payload to a remote node hosting shard
// owner. Implementations live in the transport layer (e.g. NATS).
type Forwarder func(node string, entityID string, payload interface{}) error

// Local finds or spawns a local entity instance for an ID whose shard is
// owned by this node.
type Local func(entityID string) (dispatch func(payload interface{}) error, err error)

// Router implements route(envelope): it computes the shard key, asks the
// Assignment who owns it, and either dispatches locally or forwards.
type Router struct {
	shardCount uint64
	self       string
	assign     Assignment
	forward    Forwarder
	local      Local
}

// New constructs a Router for a node identified by self.
func New(shardCount uint64, self string, assign Assignment, forward Forwarder, local Local) *Router {
	return &Router{shardCount: shardCount, self: self, assign: assign, forward: forward, local: local}
}

// Route extracts entityID's shard, and either dispatches the payload to
// the locally-hosted entity instance or forwards it to the owning node.
// Exactly one live instance per entity ID exists cluster-wide at any
// time (the shard-singleton property), guaranteed by Assignment never
// mapping one shard to two nodes simultaneously.
func (r *Router) Route(entityID string, payload interface{}) error {
	sid := Of(entityID, r.shardCount)
	node, ok := r.assign.NodeFor(sid)
	if !ok {
		return errors.Errorf("shard %d has no assigned node", sid)
	}

	if node == r.self {
		dispatch, err := r.local(entityID)
		if err != nil {
			return errors.WithMessagef(err, "could not resolve local entity %q", entityID)
		}
		return dispatch(payload)
	}

	return r.forward(node, entityID, payload)
}
