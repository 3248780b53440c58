package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInit_WritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lms.log")

	l, err := Init("debug", "prod", path)
	require.NoError(t, err)
	l.Base.Info("hello")
	l.Closer()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"msg":"hello"`)
}

func TestInit_BadLevelFallsBackToInfo(t *testing.T) {
	l, err := Init("loud", "dev", "")
	require.NoError(t, err)
	require.Equal(t, "info", l.Level.String())
}
