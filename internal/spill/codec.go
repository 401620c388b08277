package spill

import (
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"
)

// Codec is the stream compression applied to spill and chunk files.
type Codec uint8

const (
	// CodecNone stores lines as plain text.
	CodecNone Codec = iota
	// CodecLZ4 uses LZ4 frames (fast, good for short-lived chunk files).
	CodecLZ4
	// CodecZSTD uses zstd streams (better ratio when temp space is tight).
	CodecZSTD
)

func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecLZ4:
		return "lz4"
	case CodecZSTD:
		return "zstd"
	}
	return "unknown"
}

// ParseCodec maps a CLI value to a Codec.
func ParseCodec(s string) (Codec, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return CodecNone, nil
	case "lz4":
		return CodecLZ4, nil
	case "zstd", "zst":
		return CodecZSTD, nil
	}
	return 0, errors.Errorf("unknown codec %q (want none | lz4 | zstd)", s)
}

// nopWriteCloser flushes nothing on Close; the file is closed by the owner.
type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func (c Codec) wrapWriter(w io.Writer) (io.WriteCloser, error) {
	switch c {
	case CodecNone:
		return nopWriteCloser{w}, nil
	case CodecLZ4:
		return lz4.NewWriter(w), nil
	case CodecZSTD:
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedFastest), zstd.WithEncoderConcurrency(1))
		if err != nil {
			return nil, errors.WithStack(err)
		}
		return enc, nil
	}
	return nil, errors.Errorf("unknown codec %d", c)
}

func (c Codec) wrapReader(r io.Reader) (io.Reader, func(), error) {
	switch c {
	case CodecNone:
		return r, func() {}, nil
	case CodecLZ4:
		return lz4.NewReader(r), func() {}, nil
	case CodecZSTD:
		dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, nil, errors.WithStack(err)
		}
		return dec, dec.Close, nil
	}
	return nil, nil, errors.Errorf("unknown codec %d", c)
}
