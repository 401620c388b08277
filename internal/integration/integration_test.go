// internal/integration/integration_test.go
package integration

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/gzip"

	"annovcf/internal/app"
)

const vcfHeader = "##fileformat=VCFv4.2\n" +
	"##contig=<ID=2>\n" +
	"##contig=<ID=1>\n" +
	"##INFO=<ID=RankScore,Number=.,Type=String,Description=\"Rank score per family\">\n" +
	"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tproband\n"

func write(t *testing.T, dir, name, data string) string {
	t.Helper()
	fn := filepath.Join(dir, name)
	if err := os.WriteFile(fn, []byte(data), 0644); err != nil {
		t.Fatalf("write %s: %v", fn, err)
	}
	return fn
}

func run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var out, errBuf bytes.Buffer
	code := app.Run(args, &out, &errBuf)
	return code, out.String(), errBuf.String()
}

// body returns the data lines of a VCF.
func body(vcf string) []string {
	var out []string
	for _, l := range strings.Split(strings.TrimSuffix(vcf, "\n"), "\n") {
		if l != "" && !strings.HasPrefix(l, "#") {
			out = append(out, l)
		}
	}
	return out
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("temp dir not cleaned up: %v", entries)
	}
}

func TestEndToEnd_CADDAndRank(t *testing.T) {
	dir := t.TempDir()
	tmp := t.TempDir()
	in := write(t, dir, "in.vcf", vcfHeader+
		"1\t100\t.\tA\tC\t.\tPASS\tRankScore=fam:5\tGT\t0/1\n"+
		"1\t200\t.\tG\tT\t.\tPASS\tRankScore=fam:12\tGT\t0/1\n"+
		"2\t50\t.\tC\tA\t.\tPASS\t.\tGT\t1/1\n")
	cadd := write(t, dir, "cadd.tsv", "#Chrom\tPos\tRef\tAlt\tRawScore\tPHRED\n1\t100\tA\tC\t0.41\t3.2\n")

	code, out, stderr := run(t, "--cadd-file", cadd, "--temp-dir", tmp, "-q", in)
	if code != 0 {
		t.Fatalf("exit %d, stderr=%s", code, stderr)
	}
	if !strings.Contains(out, "##INFO=<ID=CADD,Number=A,Type=Float,Description=\"The CADD relative score for this alternative.\">\n#CHROM") {
		t.Fatalf("CADD declaration missing or misplaced:\n%s", out)
	}
	want := []string{
		"1\t200\t.\tG\tT\t.\tPASS\tRankScore=fam:12\tGT\t0/1",
		"1\t100\t.\tA\tC\t.\tPASS\tRankScore=fam:5;CADD=3.2\tGT\t0/1",
		"2\t50\t.\tC\tA\t.\tPASS\t.\tGT\t1/1",
	}
	if diff := cmp.Diff(want, body(out)); diff != "" {
		t.Fatalf("body mismatch (-want +got):\n%s", diff)
	}
	assertEmptyDir(t, tmp)
}

func TestEndToEnd_EmptyInput(t *testing.T) {
	dir := t.TempDir()
	tmp := t.TempDir()
	in := write(t, dir, "empty.vcf", vcfHeader)
	code, out, stderr := run(t, "--temp-dir", tmp, in)
	if code != 0 {
		t.Fatalf("exit %d, stderr=%s", code, stderr)
	}
	if out != vcfHeader {
		t.Fatalf("want header only, got:\n%s", out)
	}
	if !strings.Contains(stderr, "Removing temp file") {
		t.Fatalf("spill file removal not logged:\n%s", stderr)
	}
	assertEmptyDir(t, tmp)
}

func TestEndToEnd_TiesKeepInputOrder(t *testing.T) {
	dir := t.TempDir()
	in := write(t, dir, "tie.vcf", vcfHeader+
		"1\t10\tA\tA\tC\t.\t.\tRankScore=f:7\tGT\t0/1\n"+
		"1\t20\tB\tA\tC\t.\t.\tRankScore=f:7\tGT\t0/1\n")
	for _, chunk := range []string{"1", "100"} {
		code, out, stderr := run(t, "--chunk-records", chunk, "-p", "4", "-q", in)
		if code != 0 {
			t.Fatalf("exit %d, stderr=%s", code, stderr)
		}
		got := body(out)
		if len(got) != 2 || !strings.Contains(got[0], "\tA\t") || !strings.Contains(got[1], "\tB\t") {
			t.Fatalf("chunk=%s: ties reordered: %v", chunk, got)
		}
	}
}

func bigInput(n int) string {
	var b strings.Builder
	b.WriteString(vcfHeader)
	for i := 0; i < n; i++ {
		chrom := []string{"1", "2", "X", "chrGL"}[i%4]
		fmt.Fprintf(&b, "%s\t%d\trs%d\tA\tC\t.\tPASS\tRankScore=fam:%d\tGT\t0/1\n", chrom, 1000-i%97, i, i%13)
	}
	return b.String()
}

func TestParallelMatchesSerial(t *testing.T) {
	dir := t.TempDir()
	in := write(t, dir, "big.vcf", bigInput(2000))
	for _, mode := range []string{"rank", "coordinate", "input"} {
		runWith := func(workers string) string {
			code, out, stderr := run(t, "-p", workers, "--sort", mode, "--chunk-records", "53", "--fan-in", "3",
				"--chunk-codec", "lz4", "-q", in)
			if code != 0 {
				t.Fatalf("exit %d, stderr=%s", code, stderr)
			}
			return out
		}
		serial, parallel := runWith("1"), runWith("8")
		if diff := cmp.Diff(serial, parallel); diff != "" {
			t.Fatalf("%s: parallel output differs from serial (-serial +parallel):\n%s", mode, diff)
		}
		if n := len(body(serial)); n != 2000 {
			t.Fatalf("%s: want 2000 records, got %d", mode, n)
		}
	}
}

func TestInputOrderRoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := bigInput(500)
	in := write(t, dir, "big.vcf", src)
	code, out, stderr := run(t, "--sort", "input", "-p", "8", "--chunk-records", "10", "-q", in)
	if code != 0 {
		t.Fatalf("exit %d, stderr=%s", code, stderr)
	}
	if out != src {
		t.Fatal("input order must reproduce the input exactly")
	}
}

func TestCoordinateOrder(t *testing.T) {
	dir := t.TempDir()
	in := write(t, dir, "coord.vcf", vcfHeader+
		"X\t5\t.\tA\tC\t.\t.\t.\tGT\t0/1\n"+
		"1\t300\t.\tA\tC\t.\t.\t.\tGT\t0/1\n"+
		"chr2\t7\t.\tA\tC\t.\t.\t.\tGT\t0/1\n"+
		"1\t20\t.\tA\tC\t.\t.\t.\tGT\t0/1\n")
	code, out, stderr := run(t, "--sort", "coordinate", "-q", in)
	if code != 0 {
		t.Fatalf("exit %d, stderr=%s", code, stderr)
	}
	var got []string
	for _, l := range body(out) {
		f := strings.SplitN(l, "\t", 3)
		got = append(got, f[0]+":"+f[1])
	}
	// ##contig order puts 2 before 1
	if diff := cmp.Diff([]string{"chr2:7", "1:20", "1:300", "X:5"}, got); diff != "" {
		t.Fatalf("coordinate order (-want +got):\n%s", diff)
	}
}

func TestGzipInputAndOutfile(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, _ = zw.Write([]byte(vcfHeader + "1\t1\t.\tA\tC\t.\t.\tRankScore=f:1\tGT\t0/1\n"))
	_ = zw.Close()
	in := write(t, dir, "in.vcf.gz", buf.String())
	outFile := filepath.Join(dir, "out.vcf")
	metricsFile := filepath.Join(dir, "run.prom")

	code, out, stderr := run(t, "-o", outFile, "--metrics-file", metricsFile, "-q", in)
	if code != 0 {
		t.Fatalf("exit %d, stderr=%s", code, stderr)
	}
	if out != "" {
		t.Fatalf("stdout must stay empty with --outfile, got %q", out)
	}
	got, err := os.ReadFile(outFile)
	if err != nil {
		t.Fatal(err)
	}
	if len(body(string(got))) != 1 {
		t.Fatalf("bad output file:\n%s", got)
	}
	prom, err := os.ReadFile(metricsFile)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(prom), "annovcf_output_records_emitted_total 1") {
		t.Fatalf("metrics missing emitted count:\n%s", prom)
	}
}

func TestSilent(t *testing.T) {
	dir := t.TempDir()
	in := write(t, dir, "in.vcf", vcfHeader+"1\t1\t.\tA\tC\t.\t.\t.\tGT\t0/1\n")
	code, out, stderr := run(t, "-s", "-q", in)
	if code != 0 || out != "" {
		t.Fatalf("silent: exit %d out=%q stderr=%s", code, out, stderr)
	}
}

func TestMalformedRecordsSkipped(t *testing.T) {
	dir := t.TempDir()
	in := write(t, dir, "in.vcf", vcfHeader+
		"1\t1\t.\tA\tC\t.\t.\t.\tGT\t0/1\n"+
		"1\tNaN\t.\tA\tC\t.\t.\t.\tGT\t0/1\n"+
		"1\t3\t.\tA\tC\t.\t.\tRankScore=f:high\tGT\t0/1\n")
	code, out, stderr := run(t, in)
	if code != 0 {
		t.Fatalf("exit %d, stderr=%s", code, stderr)
	}
	if n := len(body(out)); n != 1 {
		t.Fatalf("want 1 record, got %d", n)
	}
	if strings.Count(stderr, "skipping malformed record") != 2 {
		t.Fatalf("expected two skip warnings:\n%s", stderr)
	}
}

func TestTruncatedInputLeavesNoOutput(t *testing.T) {
	dir := t.TempDir()
	tmp := t.TempDir()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, _ = zw.Write([]byte(bigInput(60_000)))
	_ = zw.Close()
	data := buf.Bytes()
	in := write(t, dir, "cut.vcf.gz", string(data[:len(data)/2]))
	outFile := write(t, dir, "out.vcf", "previous run\n")

	code, _, stderr := run(t, "-o", outFile, "--temp-dir", tmp, in)
	if code != 3 {
		t.Fatalf("want exit 3 on a truncated input, got %d\n%s", code, stderr)
	}
	got, err := os.ReadFile(outFile)
	if err != nil || string(got) != "previous run\n" {
		t.Fatalf("output file must be left untouched, got %q %v", got, err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 2 {
		t.Fatalf("stray files next to the output: %v", entries)
	}
	assertEmptyDir(t, tmp)
}

func TestVersionAndUsageErrors(t *testing.T) {
	code, out, _ := run(t, "--version")
	if code != 0 || !strings.HasPrefix(out, "annovcf version ") {
		t.Fatalf("version: exit %d out=%q", code, out)
	}
	code, out, _ = run(t)
	if code != 0 || !strings.Contains(out, "Usage:") {
		t.Fatalf("no args should print usage: exit %d out=%q", code, out)
	}
	code, _, stderr := run(t, filepath.Join(t.TempDir(), "missing.vcf"))
	if code != 2 || !strings.Contains(stderr, "does not exist") {
		t.Fatalf("missing input: exit %d stderr=%s", code, stderr)
	}
	code, _, _ = run(t, "--no-such-flag", "-")
	if code != 2 {
		t.Fatalf("unknown flag: want exit 2, got %d", code)
	}
}

func TestSingleRecordSingleWorker(t *testing.T) {
	dir := t.TempDir()
	rec := "1\t879537\t.\tT\tC\t100\tPASS\tRankScore=1:12.5\tGT\t0/1"
	in := write(t, dir, "one.vcf", vcfHeader+rec+"\n")
	cadd := write(t, dir, "cadd.tsv", "1\t879537\tT\tC\t0.2\t3.2\n")

	code, out, stderr := run(t, "-p", "1", "--cadd-file", cadd, "-q", in)
	if code != 0 {
		t.Fatalf("exit %d, stderr=%s", code, stderr)
	}
	got := body(out)
	if len(got) != 1 || got[0] != strings.Replace(rec, "RankScore=1:12.5", "RankScore=1:12.5;CADD=3.2", 1) {
		t.Fatalf("unexpected body %q", got)
	}
	if strings.Count(out, "CADD=") != 1 {
		t.Fatalf("CADD must appear exactly once:\n%s", out)
	}
}

func TestUnknownConfigKeyWarns(t *testing.T) {
	dir := t.TempDir()
	in := write(t, dir, "in.vcf", vcfHeader+"1\t100\t.\tA\tC\t.\tPASS\t.\tGT\t0/1\n")
	cfg := write(t, dir, "annovcf.yaml", "sort: input\nproceses: 2\n")

	code, out, stderr := run(t, "--config", cfg, "--temp-dir", t.TempDir(), in)
	if code != 0 {
		t.Fatalf("exit %d, stderr=%s", code, stderr)
	}
	if !strings.Contains(stderr, "warning: config key \"proceses\" matches no flag; ignored\n") {
		t.Fatalf("missing warning, stderr=%s", stderr)
	}
	if len(body(out)) != 1 {
		t.Fatalf("want 1 record, got %q", out)
	}

	code, _, stderr = run(t, "--config", cfg, "--temp-dir", t.TempDir(), "-q", in)
	if code != 0 || strings.Contains(stderr, "warning:") {
		t.Fatalf("quiet run: exit %d, stderr=%s", code, stderr)
	}
}
