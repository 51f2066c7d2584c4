// Package audit writes one JSON line per control action to a rotated log
// file. Every command is recorded regardless of outcome; telemetry reads
// are not audited.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/rover-control/rover/internal/auth"
)

// Entry represents a single audit log entry.
type Entry struct {
	Timestamp time.Time              `json:"ts"`
	User      string                 `json:"user"`
	Action    string                 `json:"action"`
	Params    map[string]interface{} `json:"params,omitempty"`
	Outcome   string                 `json:"outcome"`
	LatencyMS int64                  `json:"latencyMs"`
}

// Logger appends audit entries to logDir/audit.jsonl with size-based
// rotation.
type Logger struct {
	mu  sync.Mutex
	out *lumberjack.Logger
}

// NewLogger creates an audit logger writing under logDir.
func NewLogger(logDir string) (*Logger, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	return &Logger{
		out: &lumberjack.Logger{
			Filename:   filepath.Join(logDir, "audit.jsonl"),
			MaxSize:    20, // megabytes
			MaxBackups: 5,
			Compress:   true,
		},
	}, nil
}

// LogAction records a command action and its outcome.
func (l *Logger) LogAction(ctx context.Context, action, outcome string, latency time.Duration) {
	l.writeEntry(Entry{
		Timestamp: time.Now().UTC(),
		User:      auth.SubjectFromContext(ctx),
		Action:    action,
		Outcome:   outcome,
		LatencyMS: latency.Milliseconds(),
	})
}

// LogControlAction records a command action with its parameters.
func (l *Logger) LogControlAction(ctx context.Context, action string, params map[string]interface{}, outcome string, latency time.Duration) {
	l.writeEntry(Entry{
		Timestamp: time.Now().UTC(),
		User:      auth.SubjectFromContext(ctx),
		Action:    action,
		Params:    params,
		Outcome:   outcome,
		LatencyMS: latency.Milliseconds(),
	})
}

// writeEntry serializes and appends one entry. Failures go to stderr; audit
// logging never fails a command.
func (l *Logger) writeEntry(entry Entry) {
	jsonData, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal audit entry: %v\n", err)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.out.Write(append(jsonData, '\n')); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write audit entry: %v\n", err)
	}
}

// FilePath returns the path of the active audit log file.
func (l *Logger) FilePath() string {
	return l.out.Filename
}

// Close closes the underlying log file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.out.Close()
}
