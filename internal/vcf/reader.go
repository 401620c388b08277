// internal/vcf/reader.go
package vcf

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// Reader yields the data lines of a VCF after its header has been consumed.
type Reader struct {
	Header *Header

	br     *bufio.Reader
	closer io.Closer
	line   int
}

// Open opens path ("-" is stdin), transparently decompressing gzip/BGZF input,
// and reads the header.
func Open(path string) (*Reader, error) {
	rc, err := OpenFile(path)
	if err != nil {
		return nil, err
	}
	r, err := NewReader(rc)
	if err != nil {
		_ = rc.Close()
		return nil, errors.Wrapf(err, "read header of %s", path)
	}
	return r, nil
}

// NewReader reads the header from src. If src is an io.Closer, Close closes it.
func NewReader(src io.Reader) (*Reader, error) {
	r := &Reader{br: bufio.NewReaderSize(src, 256*1024), Header: NewHeader()}
	if c, ok := src.(io.Closer); ok {
		r.closer = c
	}
	for {
		b, err := r.br.Peek(1)
		if err == io.EOF {
			return r, nil
		}
		if err != nil {
			return nil, errors.WithStack(err)
		}
		if b[0] != '#' {
			return r, nil
		}
		line, err := r.readLine()
		if err != nil && err != io.EOF {
			return nil, err
		}
		if strings.HasPrefix(line, "##") {
			if perr := r.Header.ParseMeta(line); perr != nil {
				return nil, perr
			}
		} else if perr := r.Header.ParseColumns(line); perr != nil {
			return nil, errors.Wrapf(perr, "line %d", r.line)
		}
		if err == io.EOF {
			return r, nil
		}
	}
}

// Next returns the next non-empty data line without its newline, or io.EOF.
func (r *Reader) Next() (string, error) {
	for {
		line, err := r.readLine()
		if line != "" {
			return line, nil
		}
		if err != nil {
			return "", err
		}
	}
}

func (r *Reader) readLine() (string, error) {
	s, err := r.br.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", errors.Wrapf(err, "read line %d", r.line+1)
	}
	if s != "" {
		r.line++
	}
	return strings.TrimRight(s, "\r\n"), err
}

func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// multiReadCloser closes multiple io.Closers when Close() is called.
type multiReadCloser struct {
	io.Reader
	closers []io.Closer
}

func (m *multiReadCloser) Close() error {
	var err error
	for _, c := range m.closers {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// OpenFile opens a plain or gzip/BGZF compressed text file. "-" means stdin.
// Compression is detected by the gzip magic number or a .gz/.bgz suffix.
func OpenFile(path string) (io.ReadCloser, error) {
	if path == "-" {
		return decompress("stdin", os.Stdin, io.NopCloser(os.Stdin), false)
	}
	fh, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return decompress(path, fh, fh, strings.HasSuffix(path, ".gz") || strings.HasSuffix(path, ".bgz"))
}

// decompress wraps src in a gzip reader when it starts with the gzip magic
// number or gz is set. c is closed with the returned reader.
func decompress(name string, src io.Reader, c io.Closer, gz bool) (io.ReadCloser, error) {
	br := bufio.NewReader(src)
	if sig, _ := br.Peek(2); len(sig) == 2 && sig[0] == 0x1f && sig[1] == 0x8b {
		gz = true
	}
	if !gz {
		return &multiReadCloser{Reader: br, closers: []io.Closer{c}}, nil
	}
	gr, err := gzip.NewReader(br)
	if err != nil {
		_ = c.Close()
		return nil, errors.Wrapf(err, "open gzip %s", name)
	}
	return &multiReadCloser{Reader: gr, closers: []io.Closer{gr, c}}, nil
}
