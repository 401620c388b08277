// internal/writers/sink.go
package writers

import (
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Sink is where the final VCF goes. Exactly one of Commit or Abort ends it.
type Sink interface {
	io.Writer
	Commit() error
	Abort() error
}

// FileSink writes to a hidden temp file in the target's directory and
// renames it over the target on Commit. A new file gets 0666 less the umask;
// a replaced file keeps its mode.
type FileSink struct {
	path string
	tmp  *os.File
	done bool
}

func CreateFileSink(path string) (*FileSink, error) {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	name := filepath.Join(dir, "."+base+"."+uuid.NewString()+".tmp")
	tmp, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o666)
	if err != nil {
		return nil, errors.Wrap(err, "create output")
	}
	return &FileSink{path: path, tmp: tmp}, nil
}

func (s *FileSink) Write(p []byte) (int, error) { return s.tmp.Write(p) }

// Path is the final destination.
func (s *FileSink) Path() string { return s.path }

// Commit syncs the temp file and moves it into place, replacing any
// existing file.
func (s *FileSink) Commit() error {
	if s.done {
		return nil
	}
	s.done = true
	if err := s.tmp.Sync(); err != nil {
		_ = s.tmp.Close()
		_ = os.Remove(s.tmp.Name())
		return errors.Wrap(err, "sync output")
	}
	if err := s.tmp.Close(); err != nil {
		_ = os.Remove(s.tmp.Name())
		return errors.Wrap(err, "close output")
	}
	if fi, err := os.Stat(s.path); err == nil {
		if err := os.Chmod(s.tmp.Name(), fi.Mode().Perm()); err != nil {
			_ = os.Remove(s.tmp.Name())
			return errors.Wrap(err, "chmod output")
		}
	}
	if err := os.Rename(s.tmp.Name(), s.path); err != nil {
		_ = os.Remove(s.tmp.Name())
		return errors.Wrapf(err, "move output to %s", s.path)
	}
	return nil
}

// Abort discards what was written. The target is left untouched.
func (s *FileSink) Abort() error {
	if s.done {
		return nil
	}
	s.done = true
	_ = s.tmp.Close()
	if err := os.Remove(s.tmp.Name()); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove partial output")
	}
	return nil
}

// StreamSink passes writes through to an already open stream such as stdout.
// Commit and Abort do nothing; the caller flushes through Emit.
type StreamSink struct{ io.Writer }

func (StreamSink) Commit() error { return nil }
func (StreamSink) Abort() error  { return nil }

// Discard is the sink of a silent run without an output file.
var Discard Sink = StreamSink{io.Discard}
