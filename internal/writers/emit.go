// internal/writers/emit.go
package writers

import (
	"bufio"
	"io"

	"github.com/pkg/errors"

	"annovcf/internal/vcf"
)

// RecordStream is a single forward pass over sorted records.
// *extsort.Stream satisfies it.
type RecordStream interface {
	Next() bool
	Record() vcf.Record
	Err() error
}

// Emit writes the header lines of hdr, then every record of stream in stream
// order. It returns the number of records written.
func Emit(w io.Writer, hdr *vcf.Header, stream RecordStream) (int, error) {
	bw := bufio.NewWriterSize(w, 256*1024)
	for _, line := range hdr.Lines() {
		if _, err := bw.WriteString(line); err != nil {
			return 0, errors.Wrap(err, "write header")
		}
		if err := bw.WriteByte('\n'); err != nil {
			return 0, errors.Wrap(err, "write header")
		}
	}
	n := 0
	for stream.Next() {
		if _, err := bw.WriteString(stream.Record().String()); err != nil {
			return n, errors.Wrap(err, "write record")
		}
		if err := bw.WriteByte('\n'); err != nil {
			return n, errors.Wrap(err, "write record")
		}
		n++
	}
	if err := stream.Err(); err != nil {
		return n, err
	}
	if err := bw.Flush(); err != nil {
		return n, errors.Wrap(err, "flush output")
	}
	return n, nil
}
