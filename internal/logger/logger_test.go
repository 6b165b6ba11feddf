package logger

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	prev := GetLevel()
	SetWriter(buf)
	t.Cleanup(func() {
		SetLevel(prev)
		SetWriter(os.Stdout)
	})
	return buf
}

func TestLevelFiltering(t *testing.T) {
	buf := capture(t)
	SetLevel(WARN)

	Info("hidden")
	Warn("shown", 3)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN]")
	assert.Contains(t, out, "shown 3")
	assert.Contains(t, out, "logger_test.go")
}

func TestObjectsRenderedAsJSON(t *testing.T) {
	buf := capture(t)
	SetLevel(DEBUG)

	Debug("payload", map[string]int{"iterations": 10}, errors.New("boom"), 1.5)

	out := buf.String()
	assert.Contains(t, out, "[Object of type map[string]int]")
	assert.Contains(t, out, `"iterations": 10`)
	assert.Contains(t, out, "boom")
	assert.Contains(t, out, "1.50")
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("warning")
	require.NoError(t, err)
	assert.Equal(t, WARN, lvl)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestFileOutput(t *testing.T) {
	prev := GetLevel()
	path := filepath.Join(t.TempDir(), "out.log")
	SetLogFile(path)
	t.Cleanup(func() {
		SetLogOutput('c')
		SetLogFile("/tmp/leaguesim.log")
		SetLevel(prev)
	})

	require.NoError(t, SetLogOutput('f'))
	SetLevel(INFO)
	Info("written to file")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "written to file"))

	assert.Error(t, SetLogOutput('x'))
}
