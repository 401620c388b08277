package cmdutil

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_Levels(t *testing.T) {
	for _, tc := range []struct {
		level string
		quiet bool
		want  logrus.Level
	}{
		{"", false, logrus.InfoLevel},
		{"DEBUG", false, logrus.DebugLevel},
		{"warn", false, logrus.WarnLevel},
		{"debug", true, logrus.ErrorLevel},
		{"fatal", true, logrus.FatalLevel},
	} {
		l, err := NewLogger(&bytes.Buffer{}, tc.level, tc.quiet)
		require.NoError(t, err)
		assert.Equal(t, tc.want, l.GetLevel(), "level=%q quiet=%v", tc.level, tc.quiet)
	}
	_, err := NewLogger(&bytes.Buffer{}, "loud", false)
	require.Error(t, err)
}

func TestNewLogger_Writes(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewLogger(&buf, "info", false)
	require.NoError(t, err)
	l.WithField("run", "abc").Info("Parsing variants")
	l.Debug("hidden")
	assert.Contains(t, buf.String(), `msg="Parsing variants" run=abc`)
	assert.NotContains(t, buf.String(), "hidden")
}

func TestWarnf(t *testing.T) {
	var buf bytes.Buffer
	Warnf(&buf, false, "config key %q matches no flag", "proceses")
	Warnf(&buf, true, "dropped")
	assert.Equal(t, "warning: config key \"proceses\" matches no flag\n", buf.String())
}
