// internal/cmdutil/log.go
package cmdutil

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// NewLogger builds the run logger: text lines with full timestamps on dst.
// quiet caps verbosity at error.
func NewLogger(dst io.Writer, level string, quiet bool) (*logrus.Logger, error) {
	lvl := logrus.InfoLevel
	if level != "" {
		var err error
		if lvl, err = logrus.ParseLevel(strings.ToLower(level)); err != nil {
			return nil, errors.Errorf("invalid --log-level %q (want debug, info, warn or error)", level)
		}
	}
	if quiet && lvl > logrus.ErrorLevel {
		lvl = logrus.ErrorLevel
	}
	l := logrus.New()
	l.SetOutput(dst)
	l.SetLevel(lvl)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})
	return l, nil
}

// Warnf reports a problem found before the run logger is built, prefixed like
// the "error: " lines of the command. quiet drops it.
func Warnf(dst io.Writer, quiet bool, format string, a ...any) {
	if quiet {
		return
	}
	_, _ = fmt.Fprintf(dst, "warning: "+format+"\n", a...)
}
