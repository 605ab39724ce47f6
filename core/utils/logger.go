package utils

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Log file categories. Each category is a newline-delimited JSON file under
// the configured logs directory; the logs service reads them back verbatim.
const (
	LogFileApp        = "app"
	LogFileError      = "error"
	LogFileSecurity   = "security"
	LogFileExceptions = "exceptions"
	LogFileRejections = "rejections"
)

type Logger struct {
	mu      sync.Mutex
	console *log.Logger
	dir     string
	files   map[string]*os.File
}

// NewLogger returns a console-only logger, used in tests.
func NewLogger() *Logger {
	return &Logger{console: log.New(os.Stdout, "", log.LstdFlags)}
}

// NewFileLogger additionally mirrors every entry into the per-category
// NDJSON files under dir.
func NewFileLogger(dir string) (*Logger, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return &Logger{
		console: log.New(os.Stdout, "", log.LstdFlags),
		dir:     dir,
		files:   map[string]*os.File{},
	}, nil
}

func (l *Logger) Printf(format string, args ...any) {
	l.write(LogFileApp, "info", fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...any) {
	l.write(LogFileError, "error", fmt.Sprintf(format, args...))
}

func (l *Logger) Securityf(format string, args ...any) {
	l.write(LogFileSecurity, "warn", fmt.Sprintf(format, args...))
}

func (l *Logger) Exceptionf(format string, args ...any) {
	l.write(LogFileExceptions, "error", fmt.Sprintf(format, args...))
}

func (l *Logger) Rejectf(format string, args ...any) {
	l.write(LogFileRejections, "warn", fmt.Sprintf(format, args...))
}

type logLine struct {
	Time    string `json:"time"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

func (l *Logger) write(category, level, msg string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.console != nil {
		l.console.Printf("[%s] %s", level, msg)
	}
	if l.dir == "" {
		return
	}
	f, err := l.file(category)
	if err != nil {
		return
	}
	line, err := json.Marshal(logLine{
		Time:    time.Now().UTC().Format(time.RFC3339Nano),
		Level:   level,
		Message: msg,
	})
	if err != nil {
		return
	}
	_, _ = f.Write(append(line, '\n'))
}

func (l *Logger) file(category string) (*os.File, error) {
	if f, ok := l.files[category]; ok {
		return f, nil
	}
	f, err := os.OpenFile(filepath.Join(l.dir, category+".log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	l.files[category] = f
	return f, nil
}

func (l *Logger) Close() {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, f := range l.files {
		_ = f.Close()
	}
	l.files = map[string]*os.File{}
}
