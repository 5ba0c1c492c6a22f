// Package logging includes tests for the zap logger helpers.
package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

// TestNewDevelopmentLogger confirms the development logger builds and logs.
func TestNewDevelopmentLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(true, nil)
	if err != nil {
		t.Fatalf("New(true, nil) error = %v", err)
	}
	if logger == nil {
		t.Fatal("expected logger to be non-nil")
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush
	logger.Info("development logger ready")
}

// TestNewProductionLogger ensures the production logger configuration succeeds.
func TestNewProductionLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(false, nil)
	if err != nil {
		t.Fatalf("New(false, nil) error = %v", err)
	}
	if logger == nil {
		t.Fatal("expected logger to be non-nil")
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush
	logger.Info("production logger ready")
}

// TestNewTeesIntoPipelineCore confirms logged entries reach a supplied core.
func TestNewTeesIntoPipelineCore(t *testing.T) {
	t.Parallel()

	var captured []string
	core := &captureCore{fn: func(entry zapcore.Entry) { captured = append(captured, entry.Message) }}

	logger, err := New(false, core)
	if err != nil {
		t.Fatalf("New(false, core) error = %v", err)
	}
	logger.Info("teed line")
	_ = logger.Sync()

	if len(captured) != 1 || captured[0] != "teed line" {
		t.Fatalf("expected pipeline core to capture the log line, got %v", captured)
	}
}

type captureCore struct {
	fn func(zapcore.Entry)
}

func (c *captureCore) Enabled(zapcore.Level) bool { return true }
func (c *captureCore) With([]zapcore.Field) zapcore.Core { return c }
func (c *captureCore) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	return ce.AddCore(entry, c)
}
func (c *captureCore) Write(entry zapcore.Entry, _ []zapcore.Field) error {
	c.fn(entry)
	return nil
}
func (c *captureCore) Sync() error { return nil }
