package sortkey

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"annovcf/internal/vcf"
)

// DefaultRankScore is used for records without a RankScore entry.
const DefaultRankScore = -100

// RankScoreKey is the INFO key holding "family:score[,family:score...]".
const RankScoreKey = "RankScore"

// Extractor derives the sort key of an annotated record.
// Implementations must be safe for concurrent use.
type Extractor interface {
	Mode() Mode
	Extract(rec vcf.Record, ordinal uint64) (Key, error)
}

// New returns the extractor for mode. familyID only matters for ModeRank,
// hdr only for ModeCoordinate (its ##contig lines fix the contig order).
func New(mode Mode, familyID string, hdr *vcf.Header) Extractor {
	switch mode {
	case ModeCoordinate:
		var contigs []string
		if hdr != nil {
			contigs = hdr.Contigs()
		}
		return Coordinate{Order: NewContigOrder(contigs)}
	case ModeInput:
		return InputOrder{}
	}
	return RankScore{FamilyID: familyID}
}

// RankScore keys records by the rank score of one family.
// With an empty FamilyID the first family listed wins.
type RankScore struct {
	FamilyID string
}

func (RankScore) Mode() Mode { return ModeRank }

func (e RankScore) Extract(rec vcf.Record, ordinal uint64) (Key, error) {
	k := Key{Mode: ModeRank, Score: DefaultRankScore, Ordinal: ordinal}
	raw, ok := rec.Info().Get(RankScoreKey)
	if !ok {
		return k, nil
	}
	for _, entry := range strings.Split(raw, ",") {
		fam, score, hasFam := strings.Cut(entry, ":")
		if !hasFam {
			// bare score without a family id
			score, fam = fam, ""
		}
		if e.FamilyID != "" && fam != e.FamilyID {
			continue
		}
		f, err := strconv.ParseFloat(score, 64)
		if err != nil || !validScore(f) {
			return k, errors.Wrapf(vcf.ErrMalformed, "bad %s %q", RankScoreKey, raw)
		}
		k.Score = f
		return k, nil
	}
	return k, nil
}

// Coordinate keys records by contig rank and position.
type Coordinate struct {
	Order *ContigOrder
}

func (Coordinate) Mode() Mode { return ModeCoordinate }

func (e Coordinate) Extract(rec vcf.Record, ordinal uint64) (Key, error) {
	chrom := rec.Chrom()
	return Key{
		Mode:    ModeCoordinate,
		Contig:  e.Order.Rank(chrom),
		Chrom:   chrom,
		Pos:     rec.Pos(),
		Ordinal: ordinal,
	}, nil
}

// InputOrder keys records by their input position only.
type InputOrder struct{}

func (InputOrder) Mode() Mode { return ModeInput }

func (InputOrder) Extract(_ vcf.Record, ordinal uint64) (Key, error) {
	return Key{Mode: ModeInput, Ordinal: ordinal}, nil
}

// ContigOrder ranks contigs: header ##contig order first, then the natural
// chromosome order 1..22, X, Y, MT, then everything else.
type ContigOrder struct {
	declared map[string]int
}

func NewContigOrder(contigs []string) *ContigOrder {
	o := &ContigOrder{declared: make(map[string]int, len(contigs))}
	for i, c := range contigs {
		n := vcf.NormalizeChrom(c)
		if _, dup := o.declared[n]; !dup {
			o.declared[n] = i
		}
	}
	return o
}

// Rank returns the sort rank of chrom. Undeclared contigs sort after all
// declared ones; unknown names share the last rank and sort by name.
func (o *ContigOrder) Rank(chrom string) int {
	n := vcf.NormalizeChrom(chrom)
	if i, ok := o.declared[n]; ok {
		return i
	}
	return len(o.declared) + naturalRank(n)
}

func naturalRank(c string) int {
	if n, err := strconv.Atoi(c); err == nil && n >= 1 && n <= 22 {
		return n
	}
	switch strings.ToUpper(c) {
	case "X":
		return 23
	case "Y":
		return 24
	case "M", "MT":
		return 25
	}
	return 26
}
