// Package runlog provides the per-run append-only log sink. Every entry
// is dual-written: to the process slog stream (best-effort) and to the
// durable logs table. Logging is never allowed to raise and interrupt
// caller control flow.
package runlog

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/agentworkbench/workbench/internal/core"
)

// Logger writes structured per-run log entries tagged with a fixed
// source label.
type Logger struct {
	runID  core.RunID
	source string
	slog   *slog.Logger
	store  core.Store
}

// New creates a logger for one run.
func New(runID core.RunID, source string, logger *slog.Logger, store core.Store) *Logger {
	return &Logger{
		runID:  runID,
		source: source,
		slog:   logger.With("run_id", string(runID), "source", source),
		store:  store,
	}
}

// Info logs at info level.
func (l *Logger) Info(ctx context.Context, msg string, data map[string]any) {
	l.slog.Info(msg, slog.Any("data", data))
	l.persist(ctx, core.LogLevelInfo, msg, data)
}

// Warn logs at warn level.
func (l *Logger) Warn(ctx context.Context, msg string, data map[string]any) {
	l.slog.Warn(msg, slog.Any("data", data))
	l.persist(ctx, core.LogLevelWarn, msg, data)
}

// Error logs at error level.
func (l *Logger) Error(ctx context.Context, msg string, data map[string]any) {
	l.slog.Error(msg, slog.Any("data", data))
	l.persist(ctx, core.LogLevelError, msg, data)
}

// Debug logs at debug level.
func (l *Logger) Debug(ctx context.Context, msg string, data map[string]any) {
	l.slog.Debug(msg, slog.Any("data", data))
	l.persist(ctx, core.LogLevelDebug, msg, data)
}

// persist appends the entry to the store. Failures are reported to the
// process stream only.
func (l *Logger) persist(ctx context.Context, level core.LogLevel, msg string, data map[string]any) {
	rounded, err := roundTrip(data)
	if err != nil {
		// A non-serializable payload is a caller bug; surface it as a
		// serialization fault and persist the entry without the payload.
		l.slog.Error("log payload not serializable", "error", err)
		rounded = nil
	}

	entry := &core.LogEntry{
		RunID:   l.runID,
		Level:   level,
		Source:  l.source,
		Message: msg,
		Data:    rounded,
	}
	if err := l.store.AppendLog(ctx, entry); err != nil {
		l.slog.Error("failed to persist log entry", "error", err)
	}
}

// roundTrip forces the payload through a marshal/unmarshal cycle so that
// whatever reaches the store is exactly representable in the persisted
// JSON format.
func roundTrip(data map[string]any) (map[string]any, error) {
	if data == nil {
		return nil, nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
