/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package metrics exposes Prometheus instrumentation for the runtime's
// core mechanisms: journal append latency, snapshot outcomes, delivery
// retries, and dedup hit rate. Grounded on
// rockstar-0000-aistore's direct github.com/prometheus/client_golang
// dependency.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles every metric this module records.
type Registry struct {
	JournalAppendSeconds prometheus.Histogram
	SnapshotSaveTotal    *prometheus.CounterVec
	DeliveryRetryTotal   prometheus.Counter
	DedupDuplicateTotal  prometheus.Counter
	DedupAcceptedTotal   prometheus.Counter
	MobileWakeupsTotal   prometheus.Counter
}

// New registers and returns a fresh Registry against reg.
func New(reg *prometheus.Registry) *Registry {
	r := &Registry{
		JournalAppendSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "citysim",
			Subsystem: "journal",
			Name:      "append_seconds",
			Help:      "Latency of durable journal appends.",
			Buckets:   prometheus.DefBuckets,
		}),
		SnapshotSaveTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "citysim",
			Subsystem: "snapshot",
			Name:      "save_total",
			Help:      "Snapshot save attempts by outcome.",
		}, []string{"outcome"}),
		DeliveryRetryTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "citysim",
			Subsystem: "delivery",
			Name:      "retry_total",
			Help:      "Outbound delivery retries issued by the at-least-once sender.",
		}),
		DedupDuplicateTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "citysim",
			Subsystem: "dedup",
			Name:      "duplicate_total",
			Help:      "Requests rejected as duplicates by the Dedup Filter.",
		}),
		DedupAcceptedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "citysim",
			Subsystem: "dedup",
			Name:      "accepted_total",
			Help:      "Requests accepted as novel by the Dedup Filter.",
		}),
		MobileWakeupsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "citysim",
			Subsystem: "time",
			Name:      "mobile_wakeups_total",
			Help:      "Mobiles woken up by a time tick.",
		}),
	}

	reg.MustRegister(
		r.JournalAppendSeconds,
		r.SnapshotSaveTotal,
		r.DeliveryRetryTotal,
		r.DedupDuplicateTotal,
		r.DedupAcceptedTotal,
		r.MobileWakeupsTotal,
	)
	return r
}

// Handler returns the HTTP handler to mount for Prometheus scraping.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
