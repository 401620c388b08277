package integration

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"annovcf/internal/app"
)

func TestCancel_Exit130(t *testing.T) {
	dir := t.TempDir()
	tmp := t.TempDir()
	in := write(t, dir, "big.vcf", bigInput(20_000))
	outFile := filepath.Join(dir, "out.vcf")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	code := app.RunContext(ctx, []string{"-o", outFile, "--temp-dir", tmp, in}, io.Discard, io.Discard)
	if code != 130 {
		t.Fatalf("expected exit 130 on cancel, got %d", code)
	}
	if _, err := os.Stat(outFile); !os.IsNotExist(err) {
		t.Fatalf("no output file expected after cancel, stat err=%v", err)
	}
	assertEmptyDir(t, tmp)
}
