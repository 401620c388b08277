package appcore

import (
	"io"

	"annovcf/internal/writers"
)

// NewSink picks where the annotated VCF goes. An explicit output file always
// wins (silent is ignored); otherwise stdout, or nothing when silent.
func NewSink(outFile string, silent bool, stdout io.Writer) (writers.Sink, error) {
	switch {
	case outFile != "":
		return writers.CreateFileSink(outFile)
	case silent:
		return writers.Discard, nil
	}
	return writers.StreamSink{Writer: stdout}, nil
}
