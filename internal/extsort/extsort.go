// internal/extsort/extsort.go
package extsort

import (
	"container/heap"
	"context"
	"io"
	"os"
	"slices"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"annovcf/internal/sortkey"
	"annovcf/internal/spill"
	"annovcf/internal/vcf"
)

const (
	DefaultChunkRecords = 100_000
	DefaultFanIn        = 64
)

// Config controls the sort.
type Config struct {
	Mode         sortkey.Mode
	ChunkRecords int         // entries held in memory per chunk (<=0: DefaultChunkRecords)
	FanIn        int         // max chunk files merged at once (<2: DefaultFanIn)
	TempDir      string      // where chunk files go ("" = os.TempDir())
	SpillCodec   spill.Codec // codec of the input spill file
	ChunkCodec   spill.Codec // codec of chunk files
	Logger       logrus.FieldLogger
}

func (c Config) withDefaults() Config {
	if c.ChunkRecords <= 0 {
		c.ChunkRecords = DefaultChunkRecords
	}
	if c.FanIn < 2 {
		c.FanIn = DefaultFanIn
	}
	if c.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		c.Logger = l
	}
	return c
}

// Stats describes how a sort was carried out.
type Stats struct {
	Records     int
	Chunks      int
	MergePasses int
	InMemory    bool
}

// Sort reads the closed spill file at spillPath and returns its entries as a
// stream ordered by sortkey.Less. An input that fits in one chunk is sorted in
// memory; larger inputs are split into sorted chunk files and merged.
// The spill file itself is left in place for the caller to remove.
func Sort(ctx context.Context, cfg Config, spillPath string) (*Stream, error) {
	cfg = cfg.withDefaults()
	r, err := spill.Open(spillPath, cfg.SpillCodec, cfg.Mode)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var (
		stats  Stats
		chunks []string
		buf    = make([]spill.Entry, 0, min(cfg.ChunkRecords, 4096))
	)
	fail := func(err error) (*Stream, error) {
		return nil, withCleanup(err, removeAll(chunks))
	}

	for {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		e, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fail(err)
		}
		buf = append(buf, e)
		stats.Records++
		if len(buf) == cfg.ChunkRecords {
			path, err := writeChunk(cfg, buf)
			if err != nil {
				return fail(err)
			}
			chunks = append(chunks, path)
			clear(buf)
			buf = buf[:0]
		}
	}

	if len(chunks) == 0 {
		sortEntries(buf)
		stats.InMemory = true
		cfg.Logger.WithField("records", stats.Records).Debug("sorted in memory")
		return &Stream{mem: buf, Stats: stats}, nil
	}
	if len(buf) > 0 {
		path, err := writeChunk(cfg, buf)
		if err != nil {
			return fail(err)
		}
		chunks = append(chunks, path)
	}
	stats.Chunks = len(chunks)
	buf = nil

	// Reduce until one merge can take every chunk.
	for len(chunks) > cfg.FanIn {
		var next []string
		for i := 0; i < len(chunks); i += cfg.FanIn {
			if err := ctx.Err(); err != nil {
				return fail(withCleanup(err, removeAll(next)))
			}
			group := chunks[i:min(i+cfg.FanIn, len(chunks))]
			if len(group) == 1 {
				next = append(next, group[0])
				continue
			}
			out, err := mergeToChunk(cfg, group)
			if err != nil {
				return fail(withCleanup(err, removeAll(next)))
			}
			next = append(next, out)
		}
		chunks = next
		stats.MergePasses++
	}

	s, err := openMerge(cfg, chunks)
	if err != nil {
		return fail(err)
	}
	stats.MergePasses++
	s.Stats = stats
	cfg.Logger.WithFields(logrus.Fields{
		"records": stats.Records,
		"chunks":  stats.Chunks,
		"passes":  stats.MergePasses,
	}).Debug("external sort ready")
	return s, nil
}

func sortEntries(es []spill.Entry) {
	// Keys carry the input ordinal, so they are unique and any sort is stable.
	slices.SortFunc(es, func(a, b spill.Entry) int { return sortkey.Compare(a.Key, b.Key) })
}

func writeChunk(cfg Config, es []spill.Entry) (string, error) {
	sortEntries(es)
	w, err := spill.Create(cfg.TempDir, "annovcf-chunk-", cfg.ChunkCodec)
	if err != nil {
		return "", err
	}
	for _, e := range es {
		if err := w.Append(e.Key, e.Line); err != nil {
			_ = w.Close()
			_ = os.Remove(w.Path())
			return "", errors.Wrap(err, "write sort chunk")
		}
	}
	if err := w.Close(); err != nil {
		_ = os.Remove(w.Path())
		return "", errors.Wrap(err, "write sort chunk")
	}
	return w.Path(), nil
}

// mergeToChunk merges group into a new chunk file and removes the inputs.
func mergeToChunk(cfg Config, group []string) (string, error) {
	s, err := openMerge(cfg, group)
	if err != nil {
		return "", err
	}
	w, err := spill.Create(cfg.TempDir, "annovcf-chunk-", cfg.ChunkCodec)
	if err != nil {
		_ = s.closeReaders()
		return "", err
	}
	for s.Next() {
		e := s.Entry()
		if err := w.Append(e.Key, e.Line); err != nil {
			_ = s.closeReaders()
			_ = w.Close()
			_ = os.Remove(w.Path())
			return "", errors.Wrap(err, "write merged chunk")
		}
	}
	if err := s.Err(); err != nil {
		_ = s.closeReaders()
		_ = w.Close()
		_ = os.Remove(w.Path())
		return "", err
	}
	if err := w.Close(); err != nil {
		_ = s.closeReaders()
		_ = os.Remove(w.Path())
		return "", errors.Wrap(err, "write merged chunk")
	}
	if err := s.Close(); err != nil {
		_ = os.Remove(w.Path())
		return "", err
	}
	return w.Path(), nil
}

func openMerge(cfg Config, paths []string) (*Stream, error) {
	s := &Stream{chunks: paths}
	for i, p := range paths {
		r, err := spill.Open(p, cfg.ChunkCodec, cfg.Mode)
		if err != nil {
			_ = s.closeReaders()
			return nil, err
		}
		s.readers = append(s.readers, r)
		e, err := r.Next()
		if err == io.EOF {
			continue
		}
		if err != nil {
			_ = s.closeReaders()
			return nil, err
		}
		s.heap = append(s.heap, heapItem{entry: e, src: i})
	}
	heap.Init(&s.heap)
	s.merging = true
	return s, nil
}

// withCleanup attaches a cleanup failure to err without hiding err.
func withCleanup(err, cleanup error) error {
	if cleanup == nil {
		return err
	}
	return multierror.Append(err, cleanup)
}

func removeAll(paths []string) error {
	var result *multierror.Error
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			result = multierror.Append(result, errors.WithStack(err))
		}
	}
	return result.ErrorOrNil()
}

// Stream yields sorted entries. It is a single forward pass and cannot be
// restarted; Close releases readers and removes chunk files.
type Stream struct {
	Stats Stats

	mem []spill.Entry
	pos int

	merging bool
	heap    entryHeap
	readers []*spill.Reader
	chunks  []string

	cur    spill.Entry
	err    error
	closed bool
}

// Next advances to the next entry.
func (s *Stream) Next() bool {
	if s.closed || s.err != nil {
		return false
	}
	if !s.merging {
		if s.pos >= len(s.mem) {
			return false
		}
		s.cur = s.mem[s.pos]
		s.mem[s.pos] = spill.Entry{}
		s.pos++
		return true
	}
	if len(s.heap) == 0 {
		return false
	}
	top := s.heap[0]
	s.cur = top.entry
	e, err := s.readers[top.src].Next()
	switch {
	case err == io.EOF:
		heap.Pop(&s.heap)
	case err != nil:
		s.err = err
		return false
	default:
		s.heap[0].entry = e
		heap.Fix(&s.heap, 0)
	}
	return true
}

func (s *Stream) Entry() spill.Entry  { return s.cur }
func (s *Stream) Record() vcf.Record { return s.cur.Record() }
func (s *Stream) Err() error         { return s.err }

// Close is safe to call more than once.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.mem = nil
	var result *multierror.Error
	if err := s.closeReaders(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := removeAll(s.chunks); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

func (s *Stream) closeReaders() error {
	var result *multierror.Error
	for _, r := range s.readers {
		if err := r.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	s.readers = nil
	return result.ErrorOrNil()
}

type heapItem struct {
	entry spill.Entry
	src   int
}

type entryHeap []heapItem

func (h entryHeap) Len() int           { return len(h) }
func (h entryHeap) Less(i, j int) bool { return sortkey.Less(h[i].entry.Key, h[j].entry.Key) }
func (h entryHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *entryHeap) Push(x any)        { *h = append(*h, x.(heapItem)) }
func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}
