package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rover-control/rover/internal/auth"
)

func readEntries(t *testing.T, path string) []Entry {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Entry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e), "each line is one JSON entry")
		entries = append(entries, e)
	}
	require.NoError(t, scanner.Err())
	return entries
}

func TestLogActionWritesJSONL(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir)
	require.NoError(t, err)
	defer logger.Close()

	logger.LogAction(context.Background(), "drive", "SUCCESS", 3*time.Millisecond)
	logger.LogAction(context.Background(), "stop", "ERROR", 12*time.Millisecond)

	entries := readEntries(t, logger.FilePath())
	require.Len(t, entries, 2)

	assert.Equal(t, "drive", entries[0].Action)
	assert.Equal(t, "SUCCESS", entries[0].Outcome)
	assert.Equal(t, int64(3), entries[0].LatencyMS)
	assert.Equal(t, "unknown", entries[0].User, "no claims in context")
	assert.False(t, entries[0].Timestamp.IsZero())

	assert.Equal(t, "stop", entries[1].Action)
	assert.Equal(t, "ERROR", entries[1].Outcome)
}

func TestLogActionRecordsAuthenticatedUser(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir)
	require.NoError(t, err)
	defer logger.Close()

	ctx := context.WithValue(context.Background(), auth.ClaimsKey,
		&auth.Claims{Subject: "operator-1", Scopes: []string{"control"}})
	logger.LogAction(ctx, "set_trim", "SUCCESS", time.Millisecond)

	entries := readEntries(t, logger.FilePath())
	require.Len(t, entries, 1)
	assert.Equal(t, "operator-1", entries[0].User)
}

func TestLogControlActionIncludesParams(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir)
	require.NoError(t, err)
	defer logger.Close()

	logger.LogControlAction(context.Background(), "drive",
		map[string]interface{}{"left": 0.5, "right": -0.5}, "SUCCESS", time.Millisecond)

	entries := readEntries(t, logger.FilePath())
	require.Len(t, entries, 1)
	assert.Equal(t, 0.5, entries[0].Params["left"])
	assert.Equal(t, -0.5, entries[0].Params["right"])
}

func TestNewLoggerCreatesDirectory(t *testing.T) {
	dir := t.TempDir() + "/nested/logs"
	logger, err := NewLogger(dir)
	require.NoError(t, err)
	defer logger.Close()

	logger.LogAction(context.Background(), "drive", "SUCCESS", 0)
	_, err = os.Stat(logger.FilePath())
	assert.NoError(t, err)
}
