// internal/vcf/record.go
package vcf

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Fixed column positions of a VCF data line.
const (
	ColChrom = iota
	ColPos
	ColID
	ColRef
	ColAlt
	ColQual
	ColFilter
	ColInfo

	MinFields = ColInfo + 1
)

// ErrMalformed marks a data line that cannot be treated as a record.
var ErrMalformed = errors.New("malformed record")

// Record is one tab-delimited variant line. Fields past INFO are opaque.
type Record struct {
	Fields []string
}

// ParseRecord splits a data line. Lines with fewer than MinFields columns or a
// non-integer POS are rejected with an error wrapping ErrMalformed.
func ParseRecord(line string) (Record, error) {
	line = strings.TrimRight(line, "\r\n")
	fields := strings.Split(line, "\t")
	if len(fields) < MinFields {
		return Record{}, errors.Wrapf(ErrMalformed, "want at least %d fields, got %d", MinFields, len(fields))
	}
	if _, err := strconv.ParseInt(fields[ColPos], 10, 64); err != nil {
		return Record{}, errors.Wrapf(ErrMalformed, "bad position %q", fields[ColPos])
	}
	return Record{Fields: fields}, nil
}

func (r Record) Chrom() string { return r.Fields[ColChrom] }
func (r Record) Ref() string   { return r.Fields[ColRef] }

// Pos returns the 1-based position. ParseRecord already validated it.
func (r Record) Pos() int64 {
	p, _ := strconv.ParseInt(r.Fields[ColPos], 10, 64)
	return p
}

// Alts returns the comma separated ALT alleles.
func (r Record) Alts() []string {
	return strings.Split(r.Fields[ColAlt], ",")
}

// Info parses the INFO column. The result is a copy; use WithInfo to store it.
func (r Record) Info() *Info { return ParseInfo(r.Fields[ColInfo]) }

// WithInfo returns a copy of r whose INFO column is info. r is not modified.
func (r Record) WithInfo(info *Info) Record {
	out := r.Clone()
	out.Fields[ColInfo] = info.String()
	return out
}

// Clone copies the field slice so the copy can be edited independently.
func (r Record) Clone() Record {
	return Record{Fields: append([]string(nil), r.Fields...)}
}

// String renders the record as a data line without the trailing newline.
func (r Record) String() string { return strings.Join(r.Fields, "\t") }

// NormalizeChrom strips a leading "chr" so that "chr1" and "1" compare equal.
func NormalizeChrom(c string) string {
	if len(c) > 3 && strings.EqualFold(c[:3], "chr") {
		return c[3:]
	}
	return c
}
