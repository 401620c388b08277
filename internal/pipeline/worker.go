// internal/pipeline/worker.go
package pipeline

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"annovcf/internal/annotate"
	"annovcf/internal/metrics"
	"annovcf/internal/sortkey"
	"annovcf/internal/vcf"
)

// ResultKind tells the collector what a Result carries.
type ResultKind uint8

const (
	KindRecord  ResultKind = iota // a record to spill
	KindSkipped                   // a malformed record was dropped
	KindDone                      // the sending worker has stopped
)

// Result is what a worker hands to the collector.
type Result struct {
	Kind    ResultKind
	Key     sortkey.Key
	Record  vcf.Record
	Failed  bool // annotation failed; Record is the input unchanged
	Worker  int
	Ordinal uint64
}

// Worker pops jobs until it sees an end-of-work marker. It keeps no state
// between jobs.
type Worker struct {
	ID        int
	Jobs      *WorkQueue
	Results   *ResultQueue
	Annotator annotate.Annotator
	Keys      sortkey.Extractor
	Log       logrus.FieldLogger
	Metrics   *metrics.Metrics
}

// Run processes jobs until the end marker. Once ctx is done, popped jobs are
// dropped without annotation so the queue still drains.
func (w *Worker) Run(ctx context.Context) {
	defer w.Results.Push(Result{Kind: KindDone, Worker: w.ID})
	for {
		job := w.Jobs.Pop()
		if job.IsEnd() {
			return
		}
		if ctx.Err() != nil {
			continue
		}
		w.Results.Push(w.process(job))
	}
}

func (w *Worker) process(job Job) Result {
	rec, err := vcf.ParseRecord(job.Line)
	if err != nil {
		return w.skip(job.Ordinal, err)
	}

	out := rec
	failed := false
	start := time.Now()
	ann, err := w.annotate(rec)
	w.Metrics.AnnotateSeconds.Observe(time.Since(start).Seconds())
	switch {
	case err != nil:
		w.Log.WithError(err).WithField("ordinal", job.Ordinal).Warn("annotation failed; keeping record unannotated")
		failed = true
	case len(ann.Fields) != len(rec.Fields):
		w.Log.WithField("ordinal", job.Ordinal).Warnf("annotator changed the field count from %d to %d; keeping record unannotated",
			len(rec.Fields), len(ann.Fields))
		failed = true
	default:
		out = ann
	}

	key, err := w.Keys.Extract(out, job.Ordinal)
	if err != nil {
		return w.skip(job.Ordinal, err)
	}
	return Result{Kind: KindRecord, Key: key, Record: out, Failed: failed, Worker: w.ID, Ordinal: job.Ordinal}
}

// annotate runs the annotator on a private copy and turns a panic into an error.
func (w *Worker) annotate(rec vcf.Record) (out vcf.Record, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.Errorf("annotator panic: %v", p)
		}
	}()
	return w.Annotator.Annotate(rec.Clone())
}

func (w *Worker) skip(ordinal uint64, err error) Result {
	w.Log.WithField("ordinal", ordinal).Warnf("skipping malformed record: %v", err)
	return Result{Kind: KindSkipped, Worker: w.ID, Ordinal: ordinal}
}
