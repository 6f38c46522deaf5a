// Package logging builds the zap logger used across the tool.
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	appLogName   = "app.log"
	errorLogName = "error.log"
)

// Config selects level, console format, and the directory for log files.
// An empty Dir disables file output.
type Config struct {
	Level  string
	Format string
	Dir    string
}

// New returns a logger that writes to console plus, when cfg.Dir is set,
// JSON lines in app.log (all levels) and error.log (errors only). The returned
// func flushes and closes the files.
func New(cfg Config, console io.Writer) (*zap.Logger, func(), error) {
	level, err := zapcore.ParseLevel(orDefault(cfg.Level, "info"))
	if err != nil {
		return nil, nil, fmt.Errorf("parse log level: %w", err)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(newEncoder(orDefault(cfg.Format, "console")), zapcore.AddSync(console), level),
	}
	var files []*os.File
	closeAll := func() {
		for _, f := range files {
			f.Close()
		}
	}

	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
		for _, spec := range []struct {
			name  string
			level zapcore.LevelEnabler
		}{
			{appLogName, level},
			{errorLogName, zapcore.ErrorLevel},
		} {
			f, err := os.OpenFile(filepath.Join(cfg.Dir, spec.name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
			if err != nil {
				closeAll()
				return nil, nil, fmt.Errorf("open %s: %w", spec.name, err)
			}
			files = append(files, f)
			cores = append(cores, zapcore.NewCore(newEncoder("json"), zapcore.AddSync(f), spec.level))
		}
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddStacktrace(zapcore.ErrorLevel))
	cleanup := func() {
		if err := logger.Sync(); err != nil && !isStdioSyncError(err) {
			fmt.Fprintf(os.Stderr, "sync logger: %v\n", err)
		}
		closeAll()
	}
	return logger, cleanup, nil
}

// Nop returns a logger that discards everything.
func Nop() *zap.Logger {
	return zap.NewNop()
}

func newEncoder(format string) zapcore.Encoder {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	if format == "console" {
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(encoderCfg)
	}
	return zapcore.NewJSONEncoder(encoderCfg)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// Syncing a terminal returns EINVAL or ENOTTY on Linux.
func isStdioSyncError(err error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.EINVAL || errno == syscall.ENOTTY
	}
	return false
}
