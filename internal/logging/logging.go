package logging

import (
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewDiagnostic builds the zap logger used for diagnostics. It writes
// console-encoded entries to w at warn level, or debug level when debug is set.
func NewDiagnostic(w io.Writer, debug bool) *zap.Logger {
	level := zapcore.WarnLevel
	if debug {
		level = zapcore.DebugLevel
	}

	encoderCfg := zap.NewDevelopmentEncoderConfig()
	encoderCfg.EncodeTime = zapcore.TimeEncoderOfLayout(time.TimeOnly)

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderCfg),
		zapcore.AddSync(w),
		zap.NewAtomicLevelAt(level),
	)
	return zap.New(core)
}

// Summary holds the totals printed after a run
type Summary struct {
	Archived    int64
	Copied      int64
	BytesCopied int64
	Deleted     int64
	DirsCreated int64
	DirsRemoved int64
	Errors      int64
	Duration    time.Duration
}

// PrintSummary prints a summary of the reconciliation
func PrintSummary(w io.Writer, quiet bool, s Summary) {
	if quiet && s.Errors == 0 {
		return
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Summary ===")
	fmt.Fprintf(w, "Archived: %d files\n", s.Archived)
	fmt.Fprintf(w, "Copied: %d files (%s)\n", s.Copied, formatBytes(s.BytesCopied))
	fmt.Fprintf(w, "Deleted: %d files\n", s.Deleted)
	fmt.Fprintf(w, "Directories: %d created, %d removed\n", s.DirsCreated, s.DirsRemoved)
	if s.Errors > 0 {
		fmt.Fprintf(w, "Errors: %d\n", s.Errors)
	}
	fmt.Fprintf(w, "Duration: %s\n", s.Duration.Round(time.Millisecond))
}

// formatBytes formats bytes in human readable format
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
