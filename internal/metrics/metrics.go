// Package metrics holds the Prometheus collectors shared by the ingestion
// and sync components.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const Namespace = "dexingest"

// Metrics contains the collectors exposed by the service.
type Metrics struct {
	ListenerLogs       *prometheus.CounterVec
	ListenerReconnects *prometheus.CounterVec
	ListenerState      *prometheus.GaugeVec
	DeriveRecords      *prometheus.CounterVec
	SyncRows           *prometheus.CounterVec
	SyncPages          *prometheus.CounterVec
	SyncFailures       *prometheus.CounterVec
	SyncRuns           *prometheus.CounterVec
	SyncRunSeconds     prometheus.Histogram
}

// New builds the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ListenerLogs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "listener",
			Name:      "logs_total",
			Help:      "Logs received per chain by outcome (inserted, duplicate, decode_error, persist_error).",
		}, []string{"chain", "outcome"}),
		ListenerReconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "listener",
			Name:      "reconnects_total",
			Help:      "Reconnect attempts per chain.",
		}, []string{"chain"}),
		ListenerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "listener",
			Name:      "streaming",
			Help:      "1 while the chain subscription is streaming.",
		}, []string{"chain"}),
		DeriveRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "derive",
			Name:      "records_total",
			Help:      "Transaction records derived by status.",
		}, []string{"status"}),
		SyncRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "sync",
			Name:      "rows_total",
			Help:      "Mirrored rows upserted per chain and entity type.",
		}, []string{"chain", "entity"}),
		SyncPages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "sync",
			Name:      "pages_total",
			Help:      "Pages committed per chain and entity type.",
		}, []string{"chain", "entity"}),
		SyncFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "sync",
			Name:      "failures_total",
			Help:      "Failed entity syncs per chain and entity type.",
		}, []string{"chain", "entity"}),
		SyncRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "sync",
			Name:      "runs_total",
			Help:      "Sync passes by mode.",
		}, []string{"mode"}),
		SyncRunSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "sync",
			Name:      "run_seconds",
			Help:      "Duration of a full sync pass.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.ListenerLogs,
			m.ListenerReconnects,
			m.ListenerState,
			m.DeriveRecords,
			m.SyncRows,
			m.SyncPages,
			m.SyncFailures,
			m.SyncRuns,
			m.SyncRunSeconds,
		)
	}
	return m
}

// Nop returns collectors that are not registered anywhere.
func Nop() *Metrics {
	return New(nil)
}
