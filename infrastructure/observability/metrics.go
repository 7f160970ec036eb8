package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"familytree/application/ports"
	"familytree/domain/core/valueobjects"
)

var _ ports.Metrics = (*Collector)(nil)

// Collector holds all Prometheus metrics for the tree core
type Collector struct {
	// Registry for this collector instance
	registry *prometheus.Registry

	// Persistence metrics
	Saves         *prometheus.CounterVec
	Loads         *prometheus.CounterVec
	SnapshotBytes prometheus.Histogram
	SaveDuration  prometheus.Histogram
	Repairs       *prometheus.CounterVec

	// Graph metrics
	Regenerations prometheus.Counter
	Connections   *prometheus.GaugeVec
	Persons       prometheus.Gauge

	// History metrics
	UndoDepth  prometheus.Gauge
	UndoEvents *prometheus.CounterVec
}

// NewCollector creates a new metrics collector with its own registry.
// A nil *Collector is valid and records nothing.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		Saves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "snapshot_saves_total",
				Help:      "Total number of snapshot saves by outcome",
			},
			[]string{"format", "status"},
		),
		Loads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "snapshot_loads_total",
				Help:      "Total number of snapshot loads by detected format and outcome",
			},
			[]string{"format", "status"},
		),
		SnapshotBytes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "snapshot_bytes",
				Help:      "Size of written snapshots in bytes",
				Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
			},
		),
		SaveDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "snapshot_save_duration_seconds",
				Help:      "Snapshot save duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
		Repairs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "snapshot_repairs_total",
				Help:      "Total number of integrity repairs by stage",
			},
			[]string{"stage"},
		),
		Regenerations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "connection_regenerations_total",
				Help:      "Total number of connection regenerations",
			},
		),
		Connections: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "connections",
				Help:      "Connections currently on the renderer by kind",
			},
			[]string{"kind"},
		),
		Persons: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "persons",
				Help:      "Persons currently in the tree",
			},
		),
		UndoDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "undo_depth",
				Help:      "Entries on the undo stack",
			},
		),
		UndoEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "history_operations_total",
				Help:      "Total number of history operations by action",
			},
			[]string{"action"},
		),
	}

	registry.MustRegister(
		c.Saves,
		c.Loads,
		c.SnapshotBytes,
		c.SaveDuration,
		c.Repairs,
		c.Regenerations,
		c.Connections,
		c.Persons,
		c.UndoDepth,
		c.UndoEvents,
	)
	return c
}

// Registry returns the registry for this collector
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordSave records one save attempt
func (c *Collector) RecordSave(format string, ok bool, bytes int, took time.Duration) {
	if c == nil {
		return
	}
	c.Saves.WithLabelValues(format, status(ok)).Inc()
	if ok {
		c.SnapshotBytes.Observe(float64(bytes))
	}
	c.SaveDuration.Observe(took.Seconds())
}

// RecordLoad records one load attempt
func (c *Collector) RecordLoad(format string, ok bool) {
	if c == nil {
		return
	}
	if format == "" {
		format = "unknown"
	}
	c.Loads.WithLabelValues(format, status(ok)).Inc()
}

// RecordRepair records an integrity repair
func (c *Collector) RecordRepair(stage string) {
	if c == nil {
		return
	}
	c.Repairs.WithLabelValues(stage).Inc()
}

// RecordRegeneration records one synthesizer pass
func (c *Collector) RecordRegeneration(parent, spouse, lineOnly, persons int) {
	if c == nil {
		return
	}
	c.Regenerations.Inc()
	c.Connections.WithLabelValues(string(valueobjects.ConnectionParent)).Set(float64(parent))
	c.Connections.WithLabelValues(string(valueobjects.ConnectionSpouse)).Set(float64(spouse))
	c.Connections.WithLabelValues(string(valueobjects.ConnectionLineOnly)).Set(float64(lineOnly))
	c.Persons.Set(float64(persons))
}

// RecordHistory records an undo stack change
func (c *Collector) RecordHistory(action string, depth int) {
	if c == nil {
		return
	}
	c.UndoEvents.WithLabelValues(action).Inc()
	c.UndoDepth.Set(float64(depth))
}

func status(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
