package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, "json")
	SetLevel("WARN")
	defer func() {
		SetLevel("INFO")
		SetOutput(&bytes.Buffer{}, "text")
	}()

	Info("hidden %d", 1)
	Warn("shown %d", 2)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "warn", rec["level"])
	assert.Equal(t, "shown 2", rec["message"])
}

func TestSetLevel_IgnoresUnknown(t *testing.T) {
	SetLevel("DEBUG")
	SetLevel("chatty")
	assert.Equal(t, LevelDebug, GetLevel())
	SetLevel("info")
	assert.Equal(t, LevelInfo, GetLevel())
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug": LevelDebug,
		"INFO":  LevelInfo,
		"Warn":  LevelWarn,
		"error": LevelError,
		"":      LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func countLines(t *testing.T, path string) int {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Count(string(data), "\n")
}

func TestInit_ReopenKeepsEveryLine(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.log")
	second := filepath.Join(dir, "second.log")
	defer SetOutput(&bytes.Buffer{}, "text")

	require.NoError(t, Init("INFO", "json", first))

	const writers, perWriter = 8, 200
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				Info("writer %d line %d", id, j)
			}
		}(i)
	}

	require.NoError(t, Init("INFO", "json", second))
	wg.Wait()
	SetOutput(&bytes.Buffer{}, "text")

	assert.Equal(t, writers*perWriter, countLines(t, first)+countLines(t, second))
}

func TestSetOutput_ClosesLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, Init("INFO", "json", path))

	mu.RLock()
	f, ok := closer.(*os.File)
	mu.RUnlock()
	require.True(t, ok)

	SetOutput(&bytes.Buffer{}, "text")

	mu.RLock()
	assert.Nil(t, closer)
	mu.RUnlock()
	_, err := f.Write([]byte("late"))
	assert.ErrorIs(t, err, os.ErrClosed)
}
