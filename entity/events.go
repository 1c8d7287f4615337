/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package entity

// The framework-level events below are understood by Runtime itself
// rather than passed down to a Handler's Apply. Per-kind domain events
// are defined by the immovable and mobile packages and flow through
// Handler.Apply unchanged.

// IdentityArrived is journaled once, the first time an entity binds to
// its map record.
type IdentityArrived struct {
	ID string
}

// NoDuplicate is journaled before a Request's command effect is applied,
// recording that (SenderID, DeliveryID) has now been seen.
type NoDuplicate struct {
	SenderID   string
	DeliveryID uint64
}

// MobileEntityArrived records that an immovable began handling a mobile.
type MobileEntityArrived struct {
	ID string
}

// MobileEntityGone records that an immovable stopped handling a mobile.
type MobileEntityGone struct {
	ID string
}

// MobileEntitySleeping records that a mobile asked to be parked until
// WakeupTime.
type MobileEntitySleeping struct {
	ID         string
	WakeupTime uint64
}

// MobileEntityWakingUp records that a sleeping mobile was revived by a
// time tick.
type MobileEntityWakingUp struct {
	ID string
}
