package common

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteCrashFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	now := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)

	path, err := WriteCrashFile(dir, errors.New("boom"), "main.go:12", now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "crash-2025-03-04T05-06-07.log"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "panic: boom")
	assert.Contains(t, string(data), "main.go:12")
	assert.Contains(t, string(data), "--- goroutines")
}
