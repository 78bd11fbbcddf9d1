// Package metrics exposes Prometheus counters for the mutation and
// notification paths.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MutationsTotal counts ledger mutations by movement kind and outcome
	// (committed, rejected, failed).
	MutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storeledger",
		Name:      "mutations_total",
		Help:      "Ledger mutations by movement kind and outcome.",
	}, []string{"kind", "outcome"})

	// EventsPublished counts notification events handed to the bus.
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storeledger",
		Name:      "events_published_total",
		Help:      "Notification events published to the bus.",
	}, []string{"kind"})

	// EventsDropped counts per-observer deliveries lost to full buffers.
	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "storeledger",
		Name:      "events_dropped_total",
		Help:      "Events evicted from observer buffers.",
	})

	// ObserversConnected tracks live websocket observers.
	ObserversConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "storeledger",
		Name:      "observers_connected",
		Help:      "Currently connected notification observers.",
	})

	// TransfersTotal counts transfer outcomes (completed, failed,
	// compensated, compensation_failed).
	TransfersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storeledger",
		Name:      "transfers_total",
		Help:      "Transfer coordinator outcomes.",
	}, []string{"outcome"})
)
