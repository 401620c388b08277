package annotate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"annovcf/internal/vcf"
)

func mustRecord(t *testing.T, line string) vcf.Record {
	t.Helper()
	rec, err := vcf.ParseRecord(line)
	require.NoError(t, err)
	return rec
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestChain_OrderAndError(t *testing.T) {
	tag := func(k string) Annotator {
		return Func(func(rec vcf.Record) (vcf.Record, error) {
			in := rec.Info()
			in.SetFlag(k)
			return rec.WithInfo(in), nil
		})
	}
	rec := mustRecord(t, "1\t10\t.\tA\tC\t.\t.\t.")

	out, err := Chain{tag("A"), tag("B")}.Annotate(rec)
	require.NoError(t, err)
	assert.Equal(t, "A;B", out.Fields[vcf.ColInfo])
	assert.Equal(t, ".", rec.Fields[vcf.ColInfo], "input must not change")

	boom := errors.New("boom")
	_, err = Chain{tag("A"), Func(func(r vcf.Record) (vcf.Record, error) { return r, boom }), tag("B")}.Annotate(rec)
	assert.Same(t, boom, err)
}

func TestCADD_PerAltAndRaw(t *testing.T) {
	t1, err := LoadCADD("t1", strings.NewReader("## CADD v1.3\n#Chrom\tPos\tRef\tAlt\tRawScore\tPHRED\n1\t100\tA\tC\t0.5\t12.1\n"))
	require.NoError(t, err)
	t2, err := LoadCADD("t2", strings.NewReader("1\t100\tA\tC\t9\t99\n1\t100\tA\tG\t-0.2\t3.4\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, t1.Len())

	c := &CADD{Tables: []*CADDTable{t1, t2}, Raw: true}
	out, err := c.Annotate(mustRecord(t, "chr1\t100\t.\tA\tC,G,T\t.\t.\tDP=4"))
	require.NoError(t, err)
	assert.Equal(t, "DP=4;CADD=12.1,3.4,.;CADD_raw=0.5,-0.2,.", out.Fields[vcf.ColInfo])

	miss, err := c.Annotate(mustRecord(t, "2\t100\t.\tA\tC\t.\t.\tDP=4"))
	require.NoError(t, err)
	assert.Equal(t, "DP=4", miss.Fields[vcf.ColInfo])
}

func TestLoadCADD_ShortLine(t *testing.T) {
	_, err := LoadCADD("bad", strings.NewReader("1\t100\tA\tC\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad line 1")
}

func TestFrequency(t *testing.T) {
	src := "##fileformat=VCFv4.2\n#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n" +
		"1\t100\t.\tA\tC,G\t.\t.\tAF=0.1,0.02\n" +
		"1\t200\t.\tT\tA\t.\t.\tDP=3\n"
	tbl, err := LoadFrequencies("exac", strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.Len())

	f := &Frequency{Key: KeyExACAF, Table: tbl}
	out, err := f.Annotate(mustRecord(t, "1\t100\t.\tA\tG,T\t.\t.\t."))
	require.NoError(t, err)
	assert.Equal(t, "ExACAF=0.02,.", out.Fields[vcf.ColInfo])

	out, err = f.Annotate(mustRecord(t, "1\t200\t.\tT\tA\t.\t.\t."))
	require.NoError(t, err)
	assert.Equal(t, ".", out.Fields[vcf.ColInfo])
}

func TestIntervalIndex_Overlapping(t *testing.T) {
	ix := NewIntervalIndex(map[string][]Interval{
		"chr1": {{Start: 100, End: 1000, Name: "BIG"}, {Start: 150, End: 160, Name: "B"}},
		"1":    {{Start: 10, End: 20, Name: "A"}, {Start: 300, End: 400, Name: "C"}},
	})
	names := func(ivs []Interval) []string {
		var out []string
		for _, iv := range ivs {
			out = append(out, iv.Name)
		}
		return out
	}
	assert.Equal(t, []string{"A"}, names(ix.Overlapping("1", 20, 20)))
	assert.Equal(t, []string{"BIG", "B"}, names(ix.Overlapping("chr1", 155, 155)))
	assert.Equal(t, []string{"BIG", "C"}, names(ix.Overlapping("1", 350, 350)))
	assert.Empty(t, ix.Overlapping("1", 21, 99))
	assert.Empty(t, ix.Overlapping("2", 1, 1<<40))
}

func TestRegions_Annotate(t *testing.T) {
	genes, err := LoadBED("genes", strings.NewReader("track name=g\n1\t99\t200\tGENE2\n1\t149\t300\tGENE1\n1\t99\t200\tGENE2\n"))
	require.NoError(t, err)
	exons, err := LoadBED("exons", strings.NewReader("1\t159\t170\n"))
	require.NoError(t, err)
	g := &Regions{Genes: genes, Exons: exons}

	// BED start 99 is POS 100
	out, err := g.Annotate(mustRecord(t, "1\t100\t.\tA\tC\t.\t.\t."))
	require.NoError(t, err)
	assert.Equal(t, "Annotation=GENE2", out.Fields[vcf.ColInfo])

	// the longest ALT reaches into the exon
	out, err = g.Annotate(mustRecord(t, "1\t155\t.\tA\tC,ACGTACG\t.\t.\t."))
	require.NoError(t, err)
	assert.Equal(t, "Annotation=GENE1,GENE2;Exonic", out.Fields[vcf.ColInfo])

	out, err = g.Annotate(mustRecord(t, "1\t5000\t.\tA\tC\t.\t.\tDP=1"))
	require.NoError(t, err)
	assert.Equal(t, "DP=1", out.Fields[vcf.ColInfo])
}

func TestBuild_DeclaresInOrderOnce(t *testing.T) {
	dir := t.TempDir()
	cadd := writeFile(t, dir, "cadd.tsv", "1\t100\tA\tC\t0.5\t12.1\n")
	exac := writeFile(t, dir, "exac.vcf", "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n1\t100\t.\tA\tC\t.\t.\tAF=0.3\n")
	kg := writeFile(t, dir, "1000g.vcf", "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n1\t100\t.\tA\tC\t.\t.\tAF=0.4\n")
	writeFile(t, dir, GenesFile, "1\t0\t500\tG1\n")
	writeFile(t, dir, ExonsFile, "1\t90\t110\n")

	hdr := vcf.NewHeader()
	require.NoError(t, hdr.ParseMeta("##fileformat=VCFv4.2"))
	require.NoError(t, hdr.ParseColumns("#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO"))

	src := Sources{
		CADDFiles:       []string{"", cadd},
		CADDRaw:         true,
		ThousandG:       kg,
		ExAC:            exac,
		AnnotateRegions: true,
		AnnotationDir:   dir,
	}
	log, _ := test.NewNullLogger()
	ann, err := Build(src, hdr, log)
	require.NoError(t, err)
	src.Declare(hdr)

	var ids []string
	for _, d := range hdr.Declarations() {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []string{KeyAnnotation, KeyExonic, KeyExACAF, Key1000GAF, KeyCADD, KeyCADDRaw}, ids)
	lines := hdr.Lines()
	assert.Equal(t, "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO", lines[len(lines)-1])

	out, err := ann.Annotate(mustRecord(t, "chr1\t100\t.\tA\tC\t.\t.\t."))
	require.NoError(t, err)
	assert.Equal(t, "Annotation=G1;Exonic;ExACAF=0.3;1000GAF=0.4;CADD=12.1;CADD_raw=0.5", out.Fields[vcf.ColInfo])
}

func TestBuild_NothingConfigured(t *testing.T) {
	hdr := vcf.NewHeader()
	log, _ := test.NewNullLogger()
	ann, err := Build(Sources{}, hdr, log)
	require.NoError(t, err)
	assert.Empty(t, hdr.Declarations())

	rec := mustRecord(t, "1\t1\t.\tA\tC\t.\t.\tX=1")
	out, err := ann.Annotate(rec)
	require.NoError(t, err)
	assert.Equal(t, rec, out)
}

func TestBuild_MissingRegionFiles(t *testing.T) {
	log, _ := test.NewNullLogger()
	_, err := Build(Sources{AnnotateRegions: true, AnnotationDir: t.TempDir()}, vcf.NewHeader(), log)
	require.Error(t, err)
	assert.Contains(t, err.Error(), GenesFile)
}
