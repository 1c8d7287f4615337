/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package entity

// Request wraps a domain Command with the at-least-once delivery
// envelope: a monotonic per-sender DeliveryID plus the sender's own
// entity ID so the receiver's Dedup Filter can be keyed.
type Request struct {
	SenderID   string
	DeliveryID uint64
	Command    interface{}
}

// Ack acknowledges receipt (not processing) of a Request. The receiver
// sends Ack immediately upon receipt, before the dedup check, so a
// duplicate Request still produces an Ack, just no new effect.
type Ack struct {
	DeliveryID uint64
}
