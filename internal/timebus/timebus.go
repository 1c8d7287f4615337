/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package timebus implements the Time Broadcaster: a
// publish/subscribe topic named "timeMessage" carrying a monotonic
// TimeValue tick. SubscribeAck is declared as the subscriber's
// acknowledgement, but Subscribe neither sends nor expects one. It is
// grounded on wessley-mvp's pkg/natsutil generic Publish/Subscribe
// helpers, adapted from JSON+OTel request/reply to a plain broadcast
// topic.
package timebus

import (
	jsoniter "github.com/json-iterator/go"
	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
)

// Subject is the broadcast topic name.
const Subject = "timeMessage"

// TimeValue is the tick payload.
type TimeValue struct {
	Value uint64 `json:"value"`
}

// SubscribeAck is the subscriber's acknowledgement of having observed a
// tick; it carries no data of its own, only its existence matters.
type SubscribeAck struct{}

var api = jsoniter.ConfigCompatibleWithStandardLibrary

// Broadcaster publishes time ticks and lets entities subscribe to them.
type Broadcaster struct {
	nc *nats.Conn
}

// New wraps an existing NATS connection as a Broadcaster.
func New(nc *nats.Conn) *Broadcaster {
	return &Broadcaster{nc: nc}
}

// Tick publishes one TimeCommand(TimeValue) to every subscriber. Ticks
// are idempotent on the receiving end: an entity must derive "wake
// everyone sleeping at or before t" without relying on tick delivery
// being exactly-once.
func (b *Broadcaster) Tick(t TimeValue) error {
	data, err := api.Marshal(t)
	if err != nil {
		return errors.WithMessage(err, "could not encode time tick")
	}
	return b.nc.Publish(Subject, data)
}

// Subscribe registers handler to be invoked on every tick. Every node
// subscribes at startup.
func (b *Broadcaster) Subscribe(handler func(TimeValue)) (*nats.Subscription, error) {
	return b.nc.Subscribe(Subject, func(msg *nats.Msg) {
		var t TimeValue
		if err := api.Unmarshal(msg.Data, &t); err != nil {
			return
		}
		handler(t)
	})
}

// InProcess is a dependency-free stand-in for Broadcaster used by tests
// and single-process runs that do not want to stand up a NATS server.
// It implements the identical fan-out semantics synchronously.
type InProcess struct {
	subscribers []func(TimeValue)
}

// NewInProcess constructs an empty InProcess broadcaster.
func NewInProcess() *InProcess {
	return &InProcess{}
}

func (ip *InProcess) Subscribe(handler func(TimeValue)) {
	ip.subscribers = append(ip.subscribers, handler)
}

func (ip *InProcess) Tick(t TimeValue) {
	for _, h := range ip.subscribers {
		h(t)
	}
}
