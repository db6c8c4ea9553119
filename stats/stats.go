// Package stats declares the process-wide Prometheus metrics: announcements
// published, transfers requested, request latency, requester jam state and
// deferred-delete queue depth. Only RequestDuration and RequesterJammed are
// updated, by the requester package; nothing updates the other three.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package stats

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AnnouncementsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "movefabric",
		Name:      "announcements_published_total",
		Help:      "Announcements published, by chain and message type.",
	}, []string{"chain", "type"})

	TransfersRequested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "movefabric",
		Name:      "transfers_requested_total",
		Help:      "Push requests sent to a peer, by chain and outcome.",
	}, []string{"chain", "outcome"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "movefabric",
		Name:      "request_duration_seconds",
		Help:      "send_and_recv latency, by peer and request type.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"peer", "request_type"})

	RequesterJammed = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "movefabric",
		Name:      "requester_jammed",
		Help:      "1 if the requester for this peer has hit 5 consecutive failures, else 0.",
	}, []string{"peer"})

	DeferredQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "movefabric",
		Name:      "deferred_delete_queue_depth",
		Help:      "Pending deferred deletions, by chain.",
	}, []string{"chain"})
)

// ObserveJammed mirrors a requester.Requester's jammed flag into the gauge.
func ObserveJammed(peer string, jammed bool) {
	v := 0.0
	if jammed {
		v = 1.0
	}
	RequesterJammed.WithLabelValues(peer).Set(v)
}
