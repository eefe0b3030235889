package log

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerInvalidLevel(t *testing.T) {
	_, err := NewLogger(WithLogLevel("loud"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "level=loud")
}

func TestNewLoggerWritesJSONWithApp(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.log")
	zl, err := NewLogger(WithLogLevel("debug"), WithOutputPaths(out), WithApp("visitor-counter"))
	require.NoError(t, err)

	zl.Sugar().Infof("count=%d", 3)
	_ = zl.Sync()

	b, err := os.ReadFile(out)
	require.NoError(t, err)
	line := strings.TrimSpace(string(b))
	assert.Contains(t, line, `"msg":"count=3"`)
	assert.Contains(t, line, `"app":"visitor-counter"`)
}

func TestMustPanics(t *testing.T) {
	assert.Panics(t, func() {
		Must(NewLogger(WithLogLevel("nope")))
	})
}
