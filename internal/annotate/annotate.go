// Package annotate holds the per-record annotation contract and the concrete
// sources (CADD tables, frequency VCFs, gene/exon regions) behind it.
//
// The only contract the pipeline needs is Annotator. Implementations must be
// pure: the returned record differs from the input only in its INFO column,
// and the input record is never modified. They are called concurrently.
package annotate

import (
	"strings"

	"annovcf/internal/vcf"
)

// Annotator augments one record.
type Annotator interface {
	Annotate(rec vcf.Record) (vcf.Record, error)
}

// Func adapts a plain function to Annotator.
type Func func(rec vcf.Record) (vcf.Record, error)

func (f Func) Annotate(rec vcf.Record) (vcf.Record, error) { return f(rec) }

// Identity returns records unchanged.
var Identity Annotator = Func(func(rec vcf.Record) (vcf.Record, error) { return rec, nil })

// Chain applies annotators in order; the first error aborts the chain.
type Chain []Annotator

func (c Chain) Annotate(rec vcf.Record) (vcf.Record, error) {
	var err error
	for _, a := range c {
		if rec, err = a.Annotate(rec); err != nil {
			return rec, err
		}
	}
	return rec, nil
}

// variantKey identifies an allele across sources; chromosome names are
// compared without a "chr" prefix.
func variantKey(chrom, pos, ref, alt string) string {
	var b strings.Builder
	b.Grow(len(chrom) + len(pos) + len(ref) + len(alt) + 3)
	b.WriteString(vcf.NormalizeChrom(chrom))
	b.WriteByte('\t')
	b.WriteString(pos)
	b.WriteByte('\t')
	b.WriteString(ref)
	b.WriteByte('\t')
	b.WriteString(alt)
	return b.String()
}

// perAlt looks up every ALT of rec and joins the hits Number=A style.
// Missing alleles render as "."; ok is false when nothing matched.
func perAlt(rec vcf.Record, lookup func(key string) (string, bool)) (string, bool) {
	alts := rec.Alts()
	vals := make([]string, len(alts))
	hit := false
	for i, alt := range alts {
		v, found := lookup(variantKey(rec.Chrom(), rec.Fields[vcf.ColPos], rec.Ref(), alt))
		if found {
			vals[i] = v
			hit = true
		} else {
			vals[i] = "."
		}
	}
	return strings.Join(vals, ","), hit
}
