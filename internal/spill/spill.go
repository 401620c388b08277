// internal/spill/spill.go
package spill

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"annovcf/internal/sortkey"
	"annovcf/internal/vcf"
)

// Entry is one spilled line: the encoded sort key and the record text.
type Entry struct {
	Key  sortkey.Key
	Line string
}

// Record splits the stored line back into fields.
func (e Entry) Record() vcf.Record {
	return vcf.Record{Fields: strings.Split(e.Line, "\t")}
}

// Writer appends "key TAB record" lines. It is not safe for concurrent use;
// a spill file has exactly one writer.
type Writer struct {
	path   string
	file   *os.File
	enc    io.WriteCloser
	bw     *bufio.Writer
	count  int
	err    error
	closed bool
}

// Create makes a new, uniquely named file in dir ("" means os.TempDir()).
// The caller owns the path and must remove it.
func Create(dir, prefix string, codec Codec) (*Writer, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, prefix+uuid.NewString()+".spill")
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, errors.Wrap(err, "create spill file")
	}
	w, err := NewWriter(f, codec)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, err
	}
	w.path = path
	w.file = f
	return w, nil
}

// NewWriter writes spill lines to dst. Close does not close dst.
func NewWriter(dst io.Writer, codec Codec) (*Writer, error) {
	enc, err := codec.wrapWriter(dst)
	if err != nil {
		return nil, err
	}
	return &Writer{enc: enc, bw: bufio.NewWriterSize(enc, 256*1024)}, nil
}

func (w *Writer) Path() string { return w.path }

// Count is the number of lines appended so far.
func (w *Writer) Count() int { return w.count }

// Append writes one entry. After the first error every call returns it.
func (w *Writer) Append(k sortkey.Key, line string) error {
	if w.err != nil {
		return w.err
	}
	if strings.ContainsRune(line, '\n') {
		return errors.Errorf("spill line contains a newline (ordinal %d)", k.Ordinal)
	}
	if _, err := w.bw.WriteString(k.Encode()); err != nil {
		return w.fail(err)
	}
	if err := w.bw.WriteByte('\t'); err != nil {
		return w.fail(err)
	}
	if _, err := w.bw.WriteString(line); err != nil {
		return w.fail(err)
	}
	if err := w.bw.WriteByte('\n'); err != nil {
		return w.fail(err)
	}
	w.count++
	return nil
}

func (w *Writer) fail(err error) error {
	w.err = errors.Wrap(err, "write spill")
	return w.err
}

// Close flushes buffered lines, finishes the codec stream and closes the file.
func (w *Writer) Close() error {
	if w.closed {
		return w.err
	}
	w.closed = true
	var first error
	keep := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}
	if w.err == nil {
		keep(w.bw.Flush())
	}
	keep(w.enc.Close())
	if w.file != nil {
		if first == nil {
			keep(w.file.Sync())
		}
		keep(w.file.Close())
		w.file = nil
	}
	if first != nil && w.err == nil {
		w.err = errors.Wrap(first, "close spill")
	}
	return w.err
}

// Reader streams entries back from a spill or chunk file.
type Reader struct {
	file    *os.File
	br      *bufio.Reader
	mode    sortkey.Mode
	release func()
	line    int
}

// Open opens a file written with the same codec; keys are decoded for mode.
func Open(path string, codec Codec, mode sortkey.Mode) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open spill file")
	}
	dec, release, err := codec.wrapReader(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Reader{file: f, br: bufio.NewReaderSize(dec, 256*1024), mode: mode, release: release}, nil
}

// Next returns the next entry or io.EOF.
func (r *Reader) Next() (Entry, error) {
	s, err := r.br.ReadString('\n')
	if err == io.EOF && s == "" {
		return Entry{}, io.EOF
	}
	if err != nil && err != io.EOF {
		return Entry{}, errors.Wrapf(err, "read spill line %d", r.line+1)
	}
	r.line++
	s = strings.TrimSuffix(s, "\n")
	col, rest, ok := strings.Cut(s, "\t")
	if !ok {
		return Entry{}, errors.Errorf("spill line %d has no key column", r.line)
	}
	k, kerr := sortkey.Decode(r.mode, col)
	if kerr != nil {
		return Entry{}, errors.Wrapf(kerr, "spill line %d", r.line)
	}
	return Entry{Key: k, Line: rest}, nil
}

func (r *Reader) Close() error {
	r.release()
	return errors.WithStack(r.file.Close())
}
