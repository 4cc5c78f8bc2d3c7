// Package metrics provides Prometheus metrics for every ssmd core
// component: the hot-path transport/ring/flusher/journal and the CDC
// replication engine.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var registerOnce sync.Once

const (
	// Namespace is the Prometheus namespace for all ssmd metrics.
	Namespace = "ssmd"

	SubsystemTransport = "transport"
	SubsystemRing      = "ring"
	SubsystemFlusher   = "flusher"
	SubsystemJournal   = "journal"
	SubsystemCDC       = "cdc"
)

// Label constants for consistent labeling across metrics.
const (
	LabelSubject = "subject"
	LabelFeed    = "feed"
	LabelTable   = "table"
	LabelOp      = "op"
	LabelErrType = "error_type"
)

var (
	// Hot path

	// TransportPublishTotal counts publishes per subject.
	TransportPublishTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: SubsystemTransport,
			Name:      "publish_total",
			Help:      "Total number of messages published on the in-memory transport",
		},
		[]string{LabelSubject},
	)

	// TransportSubscriberDropsTotal counts messages dropped because a
	// subscriber's bounded buffer was full.
	TransportSubscriberDropsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: SubsystemTransport,
			Name:      "subscriber_drops_total",
			Help:      "Total number of messages dropped for a slow subscriber",
		},
		[]string{LabelSubject},
	)

	// RingWriteRejectedTotal counts TryWrite calls that returned false
	// (ring full or payload too large).
	RingWriteRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: SubsystemRing,
			Name:      "write_rejected_total",
			Help:      "Total number of rejected ring writes (backpressure)",
		},
		[]string{LabelFeed},
	)

	// RingDepth tracks the current unread slot count (write_pos - read_pos).
	RingDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: SubsystemRing,
			Name:      "depth",
			Help:      "Current number of unconsumed ring slots",
		},
		[]string{LabelFeed},
	)

	// FlusherRecordsWrittenTotal counts records written to disk.
	FlusherRecordsWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: SubsystemFlusher,
			Name:      "records_written_total",
			Help:      "Total number of JSONL records written by the disk flusher",
		},
		[]string{LabelFeed},
	)

	// FlusherRotationsTotal counts date-boundary file rotations.
	FlusherRotationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: SubsystemFlusher,
			Name:      "rotations_total",
			Help:      "Total number of output file rotations",
		},
		[]string{LabelFeed},
	)

	// FlusherRotateErrorsTotal counts failed rotation attempts.
	FlusherRotateErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: SubsystemFlusher,
			Name:      "rotate_errors_total",
			Help:      "Total number of failed output file rotations",
		},
		[]string{LabelFeed},
	)

	// JournalAppendsTotal counts journal appends per topic.
	JournalAppendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: SubsystemJournal,
			Name:      "appends_total",
			Help:      "Total number of entries appended to the journal",
		},
		[]string{LabelSubject},
	)

	// CDC replication engine

	// CDCEventsPublishedTotal counts CDC events published to the durable
	// stream, by table and operation.
	CDCEventsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: SubsystemCDC,
			Name:      "events_published_total",
			Help:      "Total number of CDC events published to the durable stream",
		},
		[]string{LabelTable, LabelOp},
	)

	// CDCEventsAppliedTotal counts CDC events applied to the secmaster
	// cache, by table and operation.
	CDCEventsAppliedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: SubsystemCDC,
			Name:      "events_applied_total",
			Help:      "Total number of CDC events applied to the secmaster cache",
		},
		[]string{LabelTable, LabelOp},
	)

	// CDCEventsSuppressedTotal counts events skipped because their LSN
	// predated the cache warmer's snapshot LSN.
	CDCEventsSuppressedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: SubsystemCDC,
			Name:      "events_suppressed_total",
			Help:      "Total number of CDC events suppressed as pre-snapshot",
		},
		[]string{LabelTable},
	)

	// CDCErrorsTotal counts CDC pipeline errors by kind.
	CDCErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: SubsystemCDC,
			Name:      "errors_total",
			Help:      "Total number of CDC pipeline errors",
		},
		[]string{LabelErrType},
	)

	// CDCWarmedRowsTotal counts rows copied by the cache warmer, by
	// table.
	CDCWarmedRowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: SubsystemCDC,
			Name:      "warmed_rows_total",
			Help:      "Total number of rows copied into the cache during warming",
		},
		[]string{LabelTable},
	)

	allMetrics = []prometheus.Collector{
		TransportPublishTotal,
		TransportSubscriberDropsTotal,
		RingWriteRejectedTotal,
		RingDepth,
		FlusherRecordsWrittenTotal,
		FlusherRotationsTotal,
		FlusherRotateErrorsTotal,
		JournalAppendsTotal,
		CDCEventsPublishedTotal,
		CDCEventsAppliedTotal,
		CDCEventsSuppressedTotal,
		CDCErrorsTotal,
		CDCWarmedRowsTotal,
	}
)

// Register registers all ssmd metrics with the default Prometheus
// registry. Safe to call multiple times; subsequent calls are no-ops.
func Register() {
	registerOnce.Do(func() {
		for _, m := range allMetrics {
			prometheus.MustRegister(m)
		}
	})
}

// RegisterWith registers all ssmd metrics with the given registry.
func RegisterWith(reg prometheus.Registerer) {
	for _, m := range allMetrics {
		reg.MustRegister(m)
	}
}

// NewRegistry creates a new Prometheus registry with all ssmd metrics and
// the standard Go runtime/process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	RegisterWith(reg)
	return reg
}
