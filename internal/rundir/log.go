package rundir

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Logger appends timestamped lines to the per-run log. The log is the only
// human-facing timeline of a run; every stage writes start and end markers
// through it.
type Logger struct {
	mu  sync.Mutex
	f   *os.File
	now func() time.Time
}

// OpenLogger opens run.log in append mode, creating it if absent.
func OpenLogger(runDir string) (*Logger, error) {
	f, err := os.OpenFile(filepath.Join(runDir, LogFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open run log: %w", err)
	}
	return &Logger{f: f, now: time.Now}, nil
}

func (l *Logger) Info(format string, args ...any)  { l.write("INFO", format, args...) }
func (l *Logger) Warn(format string, args ...any)  { l.write("WARNING", format, args...) }
func (l *Logger) Error(format string, args ...any) { l.write("ERROR", format, args...) }

func (l *Logger) write(level, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ts := l.now().UTC().Format(time.RFC3339)
	fmt.Fprintf(l.f, "[%s] [%s] %s\n", ts, level, fmt.Sprintf(format, args...))
}

// Close flushes and closes the underlying file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}
