// internal/metrics/metrics.go
package metrics

import (
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "annovcf"

// Metrics holds the per-run counters. Each run owns its registry so tests
// and repeated runs never collide on the default one.
type Metrics struct {
	Registry *prometheus.Registry

	RecordsRead        prometheus.Counter
	RecordsSpilled     prometheus.Counter
	RecordsSkipped     prometheus.Counter
	AnnotationFailures prometheus.Counter
	RecordsEmitted     prometheus.Counter
	SortChunks         prometheus.Counter
	MergePasses        prometheus.Counter
	Workers            prometheus.Gauge
	AnnotateSeconds    prometheus.Histogram
	PhaseSeconds       *prometheus.GaugeVec
}

func New() *Metrics {
	counter := func(subsystem, name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem, Name: name, Help: help,
		})
	}
	m := &Metrics{
		Registry:           prometheus.NewRegistry(),
		RecordsRead:        counter("pipeline", "records_read_total", "Data lines read from the input."),
		RecordsSpilled:     counter("pipeline", "records_spilled_total", "Records written to the spill file."),
		RecordsSkipped:     counter("pipeline", "records_skipped_total", "Malformed records dropped."),
		AnnotationFailures: counter("pipeline", "annotation_failures_total", "Records spilled unannotated after an annotator error."),
		RecordsEmitted:     counter("output", "records_emitted_total", "Records written to the output."),
		SortChunks:         counter("sort", "chunks_total", "Sorted chunk files written."),
		MergePasses:        counter("sort", "merge_passes_total", "K-way merge passes."),
		Workers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "pipeline", Name: "workers", Help: "Annotation workers in use.",
		}),
		AnnotateSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "pipeline", Name: "annotate_seconds",
			Help:    "Time spent annotating one record.",
			Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10),
		}),
		PhaseSeconds: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "phase_seconds", Help: "Wall time per run phase.",
		}, []string{"phase"}),
	}
	m.Registry.MustRegister(
		m.RecordsRead, m.RecordsSpilled, m.RecordsSkipped, m.AnnotationFailures, m.RecordsEmitted,
		m.SortChunks, m.MergePasses, m.Workers, m.AnnotateSeconds, m.PhaseSeconds,
	)
	return m
}

// ObservePhase records how long a phase took since start.
func (m *Metrics) ObservePhase(phase string, start time.Time) {
	m.PhaseSeconds.WithLabelValues(phase).Set(time.Since(start).Seconds())
}

// WriteTextfile writes every metric in the node_exporter textfile format.
// The file is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return errors.Wrapf(err, "write metrics to %s", path)
	}
	return nil
}
