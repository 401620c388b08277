// internal/pipeline/pipeline.go
package pipeline

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"annovcf/internal/annotate"
	"annovcf/internal/metrics"
	"annovcf/internal/sortkey"
)

// Source yields raw data lines until io.EOF. *vcf.Reader satisfies it.
type Source interface {
	Next() (string, error)
}

// Config controls the annotation stage.
type Config struct {
	Workers   int // annotation goroutines (>=1)
	QueueSize int // WorkQueue capacity (<=0: DefaultQueueSize)
	Log       logrus.FieldLogger
	Metrics   *metrics.Metrics
}

// Run feeds every line of src through the workers and spills the results to
// sink, which it closes. It returns once all workers and the collector have
// stopped. Records are spilled in arbitrary order.
//
// On cancellation it stops reading, lets in-flight jobs drain and returns the
// cancellation cause. A sink failure cancels the run and is returned as is.
func Run(
	ctx context.Context,
	cfg Config,
	src Source,
	ann annotate.Annotator,
	keys sortkey.Extractor,
	sink Sink,
) (Summary, error) {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		cfg.Log = l
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}
	cfg.Metrics.Workers.Set(float64(cfg.Workers))

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	jobs := NewWorkQueue(cfg.QueueSize)
	results := NewResultQueue()

	var g errgroup.Group
	for id := 0; id < cfg.Workers; id++ {
		w := &Worker{
			ID:        id,
			Jobs:      jobs,
			Results:   results,
			Annotator: ann,
			Keys:      keys,
			Log:       cfg.Log.WithField("worker", id),
			Metrics:   cfg.Metrics,
		}
		g.Go(func() error {
			w.Run(ctx)
			return nil
		})
	}

	var sum Summary
	col := &Collector{
		Results: results,
		Sink:    sink,
		Workers: cfg.Workers,
		Cancel:  cancel,
		Log:     cfg.Log,
		Metrics: cfg.Metrics,
	}
	g.Go(func() error {
		var err error
		sum, err = col.Run()
		return err
	})

	read, ferr := feed(ctx, src, jobs, cfg.Metrics)
	if ferr != nil && ctx.Err() == nil {
		cancel(ferr)
	}
	jobs.PushEnd(cfg.Workers)
	werr := g.Wait()
	sum.Read = read

	cfg.Log.WithFields(logrus.Fields{
		"read":    sum.Read,
		"spilled": sum.Spilled,
		"failed":  sum.Failed,
		"skipped": sum.Skipped,
	}).Debug("annotation stage finished")

	switch {
	case werr != nil:
		return sum, werr
	case ctx.Err() != nil:
		return sum, context.Cause(ctx)
	}
	return sum, nil
}

// feed pushes every line of src as a job, numbering them from 0.
func feed(ctx context.Context, src Source, jobs *WorkQueue, m *metrics.Metrics) (int, error) {
	var n uint64
	for {
		line, err := src.Next()
		if err == io.EOF {
			return int(n), nil
		}
		if err != nil {
			return int(n), errors.Wrap(err, "read input")
		}
		if err := jobs.Push(ctx, Job{Ordinal: n, Line: line}); err != nil {
			return int(n), err
		}
		n++
		m.RecordsRead.Inc()
	}
}
