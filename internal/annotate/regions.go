package annotate

import (
	"bufio"
	"cmp"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"annovcf/internal/vcf"
)

// Region file names looked up in the annotation directory.
const (
	GenesFile = "genes.bed"
	ExonsFile = "exons.bed"
)

// Interval is a closed, 1-based genomic interval.
type Interval struct {
	Start, End int64
	Name       string
}

type chromIntervals struct {
	ivs    []Interval // sorted by Start
	maxEnd []int64    // maxEnd[i] = max(ivs[0..i].End)
}

// IntervalIndex answers overlap queries per chromosome.
type IntervalIndex struct {
	byChrom map[string]*chromIntervals
}

// NewIntervalIndex builds an index; chromosome keys are normalized, so
// "chr1" and "1" land in the same bucket.
func NewIntervalIndex(byChrom map[string][]Interval) *IntervalIndex {
	norm := make(map[string][]Interval, len(byChrom))
	for chrom, ivs := range byChrom {
		k := vcf.NormalizeChrom(chrom)
		norm[k] = append(norm[k], ivs...)
	}
	ix := &IntervalIndex{byChrom: make(map[string]*chromIntervals, len(norm))}
	for chrom, ivs := range norm {
		slices.SortFunc(ivs, func(a, b Interval) int {
			if a.Start != b.Start {
				return cmp.Compare(a.Start, b.Start)
			}
			if a.End != b.End {
				return cmp.Compare(a.End, b.End)
			}
			return strings.Compare(a.Name, b.Name)
		})
		ci := &chromIntervals{ivs: ivs, maxEnd: make([]int64, len(ivs))}
		var m int64
		for i, iv := range ivs {
			m = max(m, iv.End)
			ci.maxEnd[i] = m
		}
		ix.byChrom[chrom] = ci
	}
	return ix
}

// Overlapping returns the intervals intersecting [start, end], in start order.
func (ix *IntervalIndex) Overlapping(chrom string, start, end int64) []Interval {
	ci, ok := ix.byChrom[vcf.NormalizeChrom(chrom)]
	if !ok {
		return nil
	}
	// first interval starting after end; nothing at or past it can overlap
	hi := sort.Search(len(ci.ivs), func(i int) bool { return ci.ivs[i].Start > end })
	var out []Interval
	for i := hi - 1; i >= 0 && ci.maxEnd[i] >= start; i-- {
		if ci.ivs[i].End >= start {
			out = append(out, ci.ivs[i])
		}
	}
	slices.Reverse(out)
	return out
}

// LoadBED reads chrom, 0-based start, exclusive end and an optional name.
// Header lines (#, track, browser) are skipped.
func LoadBED(name string, r io.Reader) (*IntervalIndex, error) {
	byChrom := map[string][]Interval{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" || line[0] == '#' || strings.HasPrefix(line, "track") || strings.HasPrefix(line, "browser") {
			continue
		}
		f := strings.Split(line, "\t")
		if len(f) < 3 {
			return nil, errors.Errorf("%s line %d: want at least 3 columns, got %d", name, n, len(f))
		}
		start, err := strconv.ParseInt(f[1], 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "%s line %d: start", name, n)
		}
		end, err := strconv.ParseInt(f[2], 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "%s line %d: end", name, n)
		}
		iv := Interval{Start: start + 1, End: end}
		if len(f) > 3 {
			iv.Name = f[3]
		}
		byChrom[f[0]] = append(byChrom[f[0]], iv)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrapf(err, "read %s", name)
	}
	return NewIntervalIndex(byChrom), nil
}

// LoadBEDFile opens a plain or bgzipped BED file.
func LoadBEDFile(path string) (*IntervalIndex, error) {
	rc, err := vcf.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return LoadBED(path, rc)
}

// FindRegionFile returns dir/base or dir/base.gz, whichever exists.
func FindRegionFile(dir, base string) (string, error) {
	for _, cand := range []string{base, base + ".gz"} {
		p := filepath.Join(dir, cand)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", errors.Errorf("no %s(.gz) in %s", base, dir)
}

// LoadRegions reads the gene and exon files of an annotation directory.
func LoadRegions(dir string) (*Regions, error) {
	genesPath, err := FindRegionFile(dir, GenesFile)
	if err != nil {
		return nil, err
	}
	exonsPath, err := FindRegionFile(dir, ExonsFile)
	if err != nil {
		return nil, err
	}
	genes, err := LoadBEDFile(genesPath)
	if err != nil {
		return nil, errors.Wrap(err, "load genes")
	}
	exons, err := LoadBEDFile(exonsPath)
	if err != nil {
		return nil, errors.Wrap(err, "load exons")
	}
	return &Regions{Genes: genes, Exons: exons}, nil
}

// Regions names the overlapping genes and flags exonic variants.
// A variant spans POS .. POS+len(longest ALT)-1.
type Regions struct {
	Genes *IntervalIndex
	Exons *IntervalIndex
}

func (g *Regions) Annotate(rec vcf.Record) (vcf.Record, error) {
	start := rec.Pos()
	longest := 1
	for _, a := range rec.Alts() {
		longest = max(longest, len(a))
	}
	stop := start + int64(longest) - 1

	var genes []string
	if g.Genes != nil {
		for _, iv := range g.Genes.Overlapping(rec.Chrom(), start, stop) {
			if iv.Name != "" {
				genes = append(genes, iv.Name)
			}
		}
	}
	exonic := g.Exons != nil && len(g.Exons.Overlapping(rec.Chrom(), start, stop)) > 0
	if len(genes) == 0 && !exonic {
		return rec, nil
	}

	info := rec.Info()
	if len(genes) > 0 {
		slices.Sort(genes)
		info.Set(KeyAnnotation, strings.Join(slices.Compact(genes), ","))
	}
	if exonic {
		info.SetFlag(KeyExonic)
	}
	return rec.WithInfo(info), nil
}
