// internal/pipeline/collector.go
package pipeline

import (
	"context"

	"github.com/sirupsen/logrus"

	"annovcf/internal/metrics"
	"annovcf/internal/sortkey"
)

// Sink receives spilled lines. *spill.Writer satisfies it.
type Sink interface {
	Append(k sortkey.Key, line string) error
	Close() error
}

// Summary counts what happened to the records of one run.
type Summary struct {
	Read    int // data lines fed to the workers
	Spilled int // records written to the spill file
	Failed  int // spilled unannotated after an annotation failure
	Skipped int // malformed records dropped
}

// Collector is the single consumer of the result queue and the only writer
// of the spill sink.
type Collector struct {
	Results *ResultQueue
	Sink    Sink
	Workers int
	// Cancel stops the run when the sink fails; the error becomes the cause.
	Cancel  context.CancelCauseFunc
	Log     logrus.FieldLogger
	Metrics *metrics.Metrics
}

// Run consumes results until every worker has acknowledged the end of work,
// then closes the sink. After a sink error it keeps draining, discarding
// results, so no worker is left behind; the error is returned at the end.
func (c *Collector) Run() (Summary, error) {
	var (
		sum  Summary
		werr error
	)
	for done := 0; done < c.Workers; {
		r := c.Results.Pop()
		switch r.Kind {
		case KindDone:
			done++
		case KindSkipped:
			sum.Skipped++
			c.Metrics.RecordsSkipped.Inc()
		case KindRecord:
			if werr != nil {
				continue
			}
			if err := c.Sink.Append(r.Key, r.Record.String()); err != nil {
				werr = err
				c.Log.WithError(err).Error("spill write failed; cancelling run")
				c.Cancel(err)
				continue
			}
			sum.Spilled++
			c.Metrics.RecordsSpilled.Inc()
			if r.Failed {
				sum.Failed++
				c.Metrics.AnnotationFailures.Inc()
			}
		}
	}
	if err := c.Sink.Close(); err != nil && werr == nil {
		werr = err
		c.Cancel(err)
	}
	return sum, werr
}
