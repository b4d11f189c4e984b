package log

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimpleFormatter(t *testing.T) {
	entry := &logrus.Entry{
		Time:    time.Date(2025, 4, 6, 17, 30, 0, 0, time.UTC),
		Level:   logrus.WarnLevel,
		Message: "scene updated",
		Data:    logrus.Fields{"id": "brick", "count": 4},
	}

	out, err := (&SimpleFormatter{}).Format(entry)
	require.NoError(t, err)
	assert.Equal(t, "2025/04/06 17:30:00.000000 [WAR] scene updated count=4 id=brick\n", string(out))
}

func TestConsoleLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewConsoleLogger("info", &buf)

	logger.Infof("Running %s...", "lint")
	logger.Warnf("careful")
	logger.Debugf("hidden")
	logger.WithField("task", "release").Infof("done")

	assert.Equal(t, "[INFO] Running lint...\n[WARN] careful\n[INFO] done task=release\n", buf.String())
}

func TestNewLogrusLoggerWritesFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")

	logger, err := NewLogrusLogger("debug", dir)
	require.NoError(t, err)
	logger.Debugf("hello %d", 1)

	data, err := os.ReadFile(filepath.Join(dir, LogFileName))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(data), "[DEB] hello 1\n"), "unexpected log line: %q", data)
}
