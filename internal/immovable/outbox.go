/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package immovable

import (
	"github.com/cityflow/actorcity/entity"
	"github.com/cityflow/actorcity/internal/delivery"
)

// Outbox lets a per-kind handler initiate at-least-once Requests to
// other entities during HandleCommand. It is never touched from Apply:
// recovery mode must skip outbound side-effects, and replay only
// ever calls Apply, so routing sends exclusively through HandleCommand
// keeps them live-path-only for free.
type Outbox struct {
	tracker *delivery.Tracker
	send    delivery.Sender
}

// NewOutbox wires an Outbox to the transport-level Sender. The delivery
// tracker is bound afterwards via Bind, once the owning entity.Runtime
// (which owns the tracker) has been constructed -- Handler construction
// necessarily precedes Runtime construction, since Runtime.New takes the
// already-built Handler.
func NewOutbox(send delivery.Sender) *Outbox {
	return &Outbox{send: send}
}

// Bind attaches the entity's delivery tracker, completing the Outbox's
// wiring. Calls to Request before Bind are silently dropped, matching
// the nil-tracker no-op already in place for a zero-value Outbox.
func (o *Outbox) Bind(tracker *delivery.Tracker) {
	o.tracker = tracker
}

// Request sends command to destAddr wrapped in an at-least-once
// envelope tagged with senderID, and returns immediately -- the delivery
// stays pending in the tracker until acknowledged, and is re-sent only
// when the host calls Tracker.RetryDue (cityd does so on a timer).
func (o *Outbox) Request(destAddr, senderID string, command interface{}) {
	if o == nil || o.tracker == nil {
		return
	}
	_, _ = o.tracker.Deliver(destAddr, func(deliveryID uint64) interface{} {
		return entity.Request{SenderID: senderID, DeliveryID: deliveryID, Command: command}
	}, o.send)
}
