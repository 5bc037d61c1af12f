// Package logger provides the rolling plain-text debug log shared by all
// sync components.
package logger

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"aspos-sync/internal/config"
)

const timestampFormat = "2006-01-02 15:04:05"

// LineFormatter renders entries as "[timestamp][LEVEL] message key=value".
type LineFormatter struct{}

// Format implements logrus.Formatter.
func (LineFormatter) Format(e *logrus.Entry) ([]byte, error) {
	var b bytes.Buffer
	fmt.Fprintf(&b, "[%s][%s] %s", e.Time.Format(timestampFormat), strings.ToUpper(e.Level.String()), e.Message)

	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := e.Data[k]
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		fmt.Fprintf(&b, " %s=%v", k, v)
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

// DebugLog owns the logrus logger and the rolling file behind it.
type DebugLog struct {
	*logrus.Logger

	mu   sync.Mutex
	path string
	file *lumberjack.Logger
}

// New creates the debug log. An empty cfg.Path disables the file sink.
func New(cfg config.LogConfig) (*DebugLog, error) {
	l := logrus.New()
	l.SetFormatter(LineFormatter{})

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	d := &DebugLog{Logger: l, path: cfg.Path}

	var writers []io.Writer
	if cfg.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		d.file = &lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		}
		writers = append(writers, d.file)
	}
	if cfg.Stdout {
		writers = append(writers, os.Stdout)
	}

	switch len(writers) {
	case 0:
		l.SetOutput(io.Discard)
	case 1:
		l.SetOutput(writers[0])
	default:
		l.SetOutput(io.MultiWriter(writers...))
	}
	return d, nil
}

// Nop returns a logger that discards everything. Used by tests and by
// components constructed without a logger.
func Nop() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// Tail returns up to n of the most recent lines of the current log file.
func (d *DebugLog) Tail(n int) ([]string, error) {
	if d.path == "" {
		return nil, nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	f, err := os.Open(d.path)
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open log: %w", err)
	}
	defer f.Close()

	lines := make([]string, 0, n)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
		if n > 0 && len(lines) > n {
			lines = lines[1:]
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log: %w", err)
	}
	return lines, nil
}

// Clear empties the current log file. Rotated backups are left alone.
func (d *DebugLog) Clear() error {
	if d.file == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	// lumberjack reopens the file on the next write
	if err := d.file.Close(); err != nil {
		return fmt.Errorf("failed to close log: %w", err)
	}
	if err := os.Truncate(d.path, 0); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to truncate log: %w", err)
	}
	return nil
}

// Close flushes and closes the file sink.
func (d *DebugLog) Close() error {
	if d.file == nil {
		return nil
	}
	return d.file.Close()
}
