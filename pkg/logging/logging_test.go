package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	require.Equal(t, logrus.PanicLevel, ParseLevel("silent"))
	require.Equal(t, logrus.TraceLevel, ParseLevel("trace"))
	require.Equal(t, logrus.InfoLevel, ParseLevel("info"))
	require.Equal(t, logrus.ErrorLevel, ParseLevel("loud"))
}

func TestFileLogger_AppendsToFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "app.log")
	f, logger, err := FileLogger(logrus.InfoLevel, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	logger.WithField("org_id", "org1").Info("bulk started")
	logger.Debug("hidden")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(raw), `"org_id":"org1"`)
	require.NotContains(t, string(raw), "hidden")
}
