package logger

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
)

type Logger interface {
	Phase(phase string, message string)
	Archive(from, to string)
	Copy(src, dst string)
	Mkdir(path string)
	Delete(path string)
	Prune(path string)
	Error(operation, path string, err error)
	Debug(message string)
}

// SyncLogger prints one line per operation in verbose or dry-run mode and
// phase summaries unless quiet. Errors always go to ErrOut.
type SyncLogger struct {
	IsDryRun  bool
	IsQuiet   bool
	IsVerbose bool

	Out    io.Writer
	ErrOut io.Writer
	Diag   *zap.Logger
}

func (l *SyncLogger) Phase(phase string, message string) {
	if l.IsQuiet {
		return
	}
	l.printf("%s%s\n", l.prefix(), message)
}

func (l *SyncLogger) Archive(from, to string) {
	l.operation("archive: %s to %s", from, to)
}

func (l *SyncLogger) Copy(src, dst string) {
	l.operation("copy: %s to %s", src, dst)
}

func (l *SyncLogger) Mkdir(path string) {
	l.operation("mkdir: %s", path)
}

func (l *SyncLogger) Delete(path string) {
	l.operation("delete: %s", path)
}

func (l *SyncLogger) Prune(path string) {
	l.operation("prune: %s", path)
}

func (l *SyncLogger) Error(operation, path string, err error) {
	w := l.ErrOut
	if w == nil {
		w = os.Stderr
	}
	fmt.Fprintf(w, "ERROR: %s %s: %v\n", operation, path, err)
	l.diag().Debug("operation failed",
		zap.String("operation", operation),
		zap.String("path", path),
		zap.Error(err))
}

func (l *SyncLogger) Debug(message string) {
	l.diag().Debug(message)
}

func (l *SyncLogger) operation(format string, args ...interface{}) {
	if l.IsQuiet || (!l.IsVerbose && !l.IsDryRun) {
		return
	}
	l.printf(l.prefix()+format+"\n", args...)
}

func (l *SyncLogger) prefix() string {
	if l.IsDryRun {
		return "(dryrun) "
	}
	return ""
}

func (l *SyncLogger) printf(format string, args ...interface{}) {
	w := l.Out
	if w == nil {
		w = os.Stdout
	}
	fmt.Fprintf(w, format, args...)
}

func (l *SyncLogger) diag() *zap.Logger {
	if l.Diag == nil {
		return zap.NewNop()
	}
	return l.Diag
}
