// internal/appcore/core.go
package appcore

import (
	"context"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"annovcf/internal/annotate"
	"annovcf/internal/extsort"
	"annovcf/internal/metrics"
	"annovcf/internal/pipeline"
	"annovcf/internal/runutil"
	"annovcf/internal/sortkey"
	"annovcf/internal/spill"
	"annovcf/internal/vcf"
	"annovcf/internal/writers"
)

// Exit codes.
const (
	ExitOK       = 0
	ExitUsage    = 2
	ExitFailure  = 3
	ExitCanceled = 130
)

// SpillPrefix starts the name of every spill file.
const SpillPrefix = "annovcf-"

type Options struct {
	Input   string
	OutFile string
	Silent  bool

	Processes    int
	QueueSize    int
	ChunkRecords int
	FanIn        int
	ChunkCodec   spill.Codec
	TempDir      string

	Sort     sortkey.Mode
	FamilyID string
	Sources  annotate.Sources

	MetricsFile string
}

// Summary reports one finished run.
type Summary struct {
	pipeline.Summary
	Emitted int
	Workers int
	Sort    extsort.Stats
}

// usageError marks failures caused by the invocation rather than the data.
type usageError struct{ error }

func (e usageError) Unwrap() error { return e.error }

// Usage marks err as a usage or configuration error (exit code 2).
func Usage(err error) error { return usageError{err} }

// ExitCode maps a run error to the process exit code.
func ExitCode(err error) int {
	var ue usageError
	switch {
	case err == nil, writers.IsBrokenPipe(err):
		return ExitOK
	case errors.Is(err, context.Canceled):
		return ExitCanceled
	case errors.As(err, &ue):
		return ExitUsage
	}
	return ExitFailure
}

// Run annotates one VCF and returns the exit code. Errors are logged to log.
func Run(parent context.Context, stdout io.Writer, o Options, log *logrus.Logger) int {
	start := time.Now()
	runLog := log.WithField("run", uuid.NewString())
	m := metrics.New()

	sum, err := Execute(parent, stdout, o, runLog, m)
	if o.MetricsFile != "" {
		if merr := m.WriteTextfile(o.MetricsFile); merr != nil {
			runLog.WithError(merr).Warn("could not write metrics")
		}
	}
	code := ExitCode(err)
	switch code {
	case ExitOK:
		if err != nil {
			runLog.Debug("output closed early (broken pipe)")
		}
		runLog.WithFields(logrus.Fields{
			"read":    sum.Read,
			"emitted": sum.Emitted,
			"skipped": sum.Skipped,
			"failed":  sum.Failed,
		}).Infof("Time for whole analysis: %s", time.Since(start).Round(time.Millisecond))
	case ExitCanceled:
		runLog.Warn("interrupted; partial results discarded")
	default:
		runLog.WithError(err).Error("annotation failed")
	}
	return code
}

// removeFile is swapped in tests.
var removeFile = os.Remove

// Execute runs the whole annotation: header, sources, concurrent annotation
// into a spill file, external sort, then emission to the selected sink.
// The spill file and chunk files are removed before it returns, whatever the
// outcome, and a file sink is only committed on success.
func Execute(ctx context.Context, stdout io.Writer, o Options, log logrus.FieldLogger, m *metrics.Metrics) (sum Summary, err error) {
	tempDir, err := runutil.ResolveTempDir(o.TempDir)
	if err != nil {
		return sum, Usage(err)
	}

	log.WithField("input", o.Input).Info("Parsing variants")
	rd, err := vcf.Open(o.Input)
	if err != nil {
		return sum, err
	}
	defer rd.Close()
	hdr := rd.Header

	phase := time.Now()
	ann, err := annotate.Build(o.Sources, hdr, log)
	if err != nil {
		return sum, Usage(err)
	}
	m.ObservePhase("load_sources", phase)
	keys := sortkey.New(o.Sort, o.FamilyID, hdr)

	sink, err := NewSink(o.OutFile, o.Silent, stdout)
	if err != nil {
		return sum, err
	}
	defer func() {
		if err != nil {
			err = withCleanup(err, sink.Abort())
		}
	}()

	sw, err := spill.Create(tempDir, SpillPrefix, spill.CodecNone)
	if err != nil {
		return sum, err
	}
	committed := false
	defer func() {
		log.WithField("path", sw.Path()).Info("Removing temp file")
		_ = sw.Close()
		rerr := removeFile(sw.Path())
		switch {
		case rerr == nil || os.IsNotExist(rerr):
		case committed:
			// the output is already in place
			log.WithError(rerr).WithField("path", sw.Path()).Warn("could not remove temp file")
		default:
			err = withCleanup(err, errors.Wrap(rerr, "remove spill file"))
		}
	}()

	sum.Workers = runutil.EffectiveWorkers(o.Processes, o.Sources.AnyCADD(), runtime.NumCPU())
	log.Infof("Annotating variants with %d workers", sum.Workers)
	phase = time.Now()
	sum.Summary, err = pipeline.Run(ctx, pipeline.Config{
		Workers:   sum.Workers,
		QueueSize: o.QueueSize,
		Log:       log,
		Metrics:   m,
	}, rd, ann, keys, sw)
	if err != nil {
		return sum, err
	}
	m.ObservePhase("annotate", phase)

	log.WithField("sort", o.Sort).Info("Start sorting the variants")
	phase = time.Now()
	stream, err := extsort.Sort(ctx, extsort.Config{
		Mode:         o.Sort,
		ChunkRecords: o.ChunkRecords,
		FanIn:        o.FanIn,
		TempDir:      tempDir,
		SpillCodec:   spill.CodecNone,
		ChunkCodec:   o.ChunkCodec,
		Logger:       log,
	}, sw.Path())
	if err != nil {
		return sum, err
	}
	defer func() { err = withCleanup(err, stream.Close()) }()
	sum.Sort = stream.Stats
	m.SortChunks.Add(float64(stream.Stats.Chunks))
	m.MergePasses.Add(float64(stream.Stats.MergePasses))
	m.ObservePhase("sort", phase)
	log.Info("Sorting done")

	log.Info("Printing the header and variants")
	phase = time.Now()
	sum.Emitted, err = writers.Emit(sink, hdr, &ctxStream{ctx: ctx, RecordStream: stream})
	m.RecordsEmitted.Add(float64(sum.Emitted))
	if err != nil {
		return sum, err
	}
	if err = stream.Close(); err != nil {
		return sum, err
	}
	if err = sink.Commit(); err != nil {
		return sum, err
	}
	committed = true
	m.ObservePhase("emit", phase)
	return sum, nil
}

// ctxStream ends a record stream early once ctx is done.
type ctxStream struct {
	ctx context.Context
	writers.RecordStream
	err error
}

func (s *ctxStream) Next() bool {
	if s.err = context.Cause(s.ctx); s.err != nil {
		return false
	}
	return s.RecordStream.Next()
}

func (s *ctxStream) Err() error {
	if s.err != nil {
		return s.err
	}
	return s.RecordStream.Err()
}

// withCleanup keeps err primary and appends a cleanup failure, if any.
func withCleanup(err, cleanup error) error {
	switch {
	case cleanup == nil:
		return err
	case err == nil:
		return cleanup
	}
	return multierror.Append(err, cleanup)
}
