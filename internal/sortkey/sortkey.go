// internal/sortkey/sortkey.go
package sortkey

import (
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"annovcf/internal/vcf"
)

// Mode selects which comparator orders the final output.
type Mode int

const (
	// ModeRank orders by descending rank score.
	ModeRank Mode = iota
	// ModeCoordinate orders by contig, then position.
	ModeCoordinate
	// ModeInput restores the input order.
	ModeInput
)

func (m Mode) String() string {
	switch m {
	case ModeRank:
		return "rank"
	case ModeCoordinate:
		return "coordinate"
	case ModeInput:
		return "input"
	}
	return "unknown"
}

// ParseMode maps a CLI value to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "rank", "":
		return ModeRank, nil
	case "coordinate", "chromosome":
		return ModeCoordinate, nil
	case "input", "none":
		return ModeInput, nil
	}
	return 0, errors.Errorf("unknown sort mode %q (want rank | coordinate | input)", s)
}

// Key orders one record. Ordinal is the record's position in the input and
// makes every key unique, which keeps equal-score records in input order.
type Key struct {
	Mode    Mode
	Score   float64
	Contig  int
	Chrom   string
	Pos     int64
	Ordinal uint64
}

// Compare returns -1, 0 or +1. Keys of different modes are never compared.
func Compare(a, b Key) int {
	switch a.Mode {
	case ModeRank:
		if a.Score != b.Score {
			if a.Score > b.Score {
				return -1
			}
			return 1
		}
	case ModeCoordinate:
		if a.Contig != b.Contig {
			return cmpInt(a.Contig, b.Contig)
		}
		if ca, cb := vcf.NormalizeChrom(a.Chrom), vcf.NormalizeChrom(b.Chrom); ca != cb {
			return strings.Compare(ca, cb)
		}
		if a.Pos != b.Pos {
			return cmpInt(a.Pos, b.Pos)
		}
	}
	return cmpInt(a.Ordinal, b.Ordinal)
}

// Less defines the output order (for sort and heap use).
func Less(a, b Key) bool { return Compare(a, b) < 0 }

func cmpInt[T int | int64 | uint64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Encode serializes k as one tab-free column.
//
//	rank:       score:ordinal
//	coordinate: contig:pos:ordinal:chrom
//	input:      ordinal
func (k Key) Encode() string {
	ord := strconv.FormatUint(k.Ordinal, 10)
	switch k.Mode {
	case ModeRank:
		return strconv.FormatFloat(k.Score, 'g', -1, 64) + ":" + ord
	case ModeCoordinate:
		return strconv.Itoa(k.Contig) + ":" + strconv.FormatInt(k.Pos, 10) + ":" + ord + ":" + k.Chrom
	}
	return ord
}

// Decode parses a column written by Encode for mode m.
func Decode(m Mode, s string) (Key, error) {
	k := Key{Mode: m}
	var err error
	switch m {
	case ModeRank:
		score, ord, ok := strings.Cut(s, ":")
		if !ok {
			return k, errors.Errorf("bad rank key %q", s)
		}
		if k.Score, err = strconv.ParseFloat(score, 64); err != nil {
			return k, errors.Wrapf(err, "bad rank key %q", s)
		}
		if k.Ordinal, err = strconv.ParseUint(ord, 10, 64); err != nil {
			return k, errors.Wrapf(err, "bad rank key %q", s)
		}
	case ModeCoordinate:
		parts := strings.SplitN(s, ":", 4)
		if len(parts) != 4 {
			return k, errors.Errorf("bad coordinate key %q", s)
		}
		if k.Contig, err = strconv.Atoi(parts[0]); err != nil {
			return k, errors.Wrapf(err, "bad coordinate key %q", s)
		}
		if k.Pos, err = strconv.ParseInt(parts[1], 10, 64); err != nil {
			return k, errors.Wrapf(err, "bad coordinate key %q", s)
		}
		if k.Ordinal, err = strconv.ParseUint(parts[2], 10, 64); err != nil {
			return k, errors.Wrapf(err, "bad coordinate key %q", s)
		}
		k.Chrom = parts[3]
	case ModeInput:
		if k.Ordinal, err = strconv.ParseUint(s, 10, 64); err != nil {
			return k, errors.Wrapf(err, "bad input key %q", s)
		}
	default:
		return k, errors.Errorf("unknown sort mode %d", m)
	}
	return k, nil
}

func validScore(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }
