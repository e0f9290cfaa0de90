// Package logging builds the process logger. Stdout carries command output and the
// TUI owns the terminal, so logs only go to a file when one is configured.
package logging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const EnvDebugLog = "TREEGRID_DEBUG_LOG"

// New returns a JSON logger appending to path, or a no-op logger when path is empty.
func New(path string) (*zap.Logger, error) {
	if path == "" {
		return zap.NewNop(), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{path}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Sampling = nil
	return cfg.Build()
}

// Resolve picks the log path: the environment wins over the config value.
func Resolve(configured string) string {
	if v := os.Getenv(EnvDebugLog); v != "" {
		return v
	}
	return configured
}
