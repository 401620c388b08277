// internal/runutil/runutil.go
package runutil

import (
	"os"

	"github.com/pkg/errors"
)

// Worker caps applied when --processes is 0 (auto).
const (
	AutoWorkers     = 4
	AutoWorkersCADD = 8
)

// EffectiveWorkers returns the number of annotation workers.
// If processes > 0, that value is used as-is. Otherwise: min(4, ncpu), or
// min(8, ncpu) when a CADD table is loaded, since CADD lookups dominate.
func EffectiveWorkers(processes int, anyCADD bool, ncpu int) int {
	if processes > 0 {
		return processes
	}
	limit := AutoWorkers
	if anyCADD {
		limit = AutoWorkersCADD
	}
	return max(1, min(limit, ncpu))
}

// ResolveTempDir returns the directory for spill and chunk files.
// An empty value means os.TempDir(); anything else must be an existing dir.
func ResolveTempDir(dir string) (string, error) {
	if dir == "" {
		return os.TempDir(), nil
	}
	fi, err := os.Stat(dir)
	if err != nil {
		return "", errors.Wrap(err, "--temp-dir")
	}
	if !fi.IsDir() {
		return "", errors.Errorf("--temp-dir %s is not a directory", dir)
	}
	return dir, nil
}
