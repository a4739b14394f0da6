package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Level is the minimum severity a Logger writes.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the tag written into each log line.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// ParseLevel converts a config string ("debug", "info", "warn", "error") to a Level.
// Unknown values map to LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger writes component-tagged log lines for Letterboxio.
// All loggers created with NewLogger in one process share a run ID and a log
// file under the log directory (default ~/.letterboxio/logs).
type Logger struct {
	runID     string
	component string
	file      *os.File
	logger    *log.Logger
	mu        *sync.Mutex
	logPath   string
	closeOnce *sync.Once
	level     *levelHolder
}

type levelHolder struct {
	mu    sync.RWMutex
	level Level
}

var (
	runID     string
	runIDOnce sync.Once

	// logDir is the directory where log files are stored
	logDir string

	initOnce sync.Once
	initErr  error

	// sharedFiles keeps one open handle per log path so components append to the same file
	sharedFiles   = map[string]*os.File{}
	sharedFilesMu sync.Mutex
)

func getRunID() string {
	runIDOnce.Do(func() {
		runID = uuid.New().String()
	})
	return runID
}

// SetDirectory overrides the log directory. It must be called before the
// first NewLogger call to take effect.
func SetDirectory(dir string) {
	if dir == "" {
		return
	}
	logDir = dir
}

func initLogDirectory() error {
	initOnce.Do(func() {
		if logDir == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				initErr = fmt.Errorf("failed to get home directory: %w", err)
				return
			}
			logDir = filepath.Join(homeDir, ".letterboxio", "logs")
		}
		if err := os.MkdirAll(logDir, 0750); err != nil {
			initErr = fmt.Errorf("failed to create log directory: %w", err)
			return
		}
	})
	return initErr
}

// NewLogger creates a logger for a component, writing to
// <log dir>/<run-id>-letterboxio.log.
//
// If the log file cannot be opened it returns a logger writing to stderr
// together with the error, so callers can keep going and report the fallback.
func NewLogger(component string) (*Logger, error) {
	if err := initLogDirectory(); err != nil {
		return newFallbackLogger(component, err), err
	}

	id := getRunID()
	logPath := filepath.Join(logDir, fmt.Sprintf("%s-letterboxio.log", id))

	file, err := openShared(logPath)
	if err != nil {
		err = fmt.Errorf("failed to open log file: %w", err)
		return newFallbackLogger(component, err), err
	}

	return &Logger{
		runID:     id,
		component: component,
		file:      file,
		logger:    log.New(file, "", 0),
		mu:        &sync.Mutex{},
		logPath:   logPath,
		closeOnce: &sync.Once{},
		level:     &levelHolder{level: LevelDebug},
	}, nil
}

func openShared(path string) (*os.File, error) {
	sharedFilesMu.Lock()
	defer sharedFilesMu.Unlock()

	if f, ok := sharedFiles[path]; ok {
		return f, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, err
	}
	sharedFiles[path] = f
	return f, nil
}

// NewWriterLogger creates a logger that writes to w instead of a file.
func NewWriterLogger(component string, w io.Writer) *Logger {
	return &Logger{
		runID:     getRunID(),
		component: component,
		logger:    log.New(w, "", 0),
		mu:        &sync.Mutex{},
		closeOnce: &sync.Once{},
		level:     &levelHolder{level: LevelDebug},
	}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return NewWriterLogger("discard", io.Discard)
}

func newFallbackLogger(component string, err error) *Logger {
	l := NewWriterLogger(component, os.Stderr)
	l.Warnf("failed to initialize file logging: %v", err)
	l.Warnf("falling back to stderr logging")
	return l
}

// With returns a logger for another component sharing this logger's output and level.
func (l *Logger) With(component string) *Logger {
	clone := *l
	clone.component = component
	return &clone
}

// SetLevel sets the minimum level for this logger and every logger derived with With.
func (l *Logger) SetLevel(level Level) {
	l.level.mu.Lock()
	defer l.level.mu.Unlock()
	l.level.level = level
}

func (l *Logger) enabled(level Level) bool {
	l.level.mu.RLock()
	defer l.level.mu.RUnlock()
	return level >= l.level.level
}

func (l *Logger) formatLogEntry(level Level, message string) string {
	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	return fmt.Sprintf("[%s] [%s] [%s] %s", timestamp, l.component, level, message)
}

func (l *Logger) write(level Level, format string, v ...interface{}) {
	if l == nil || !l.enabled(level) {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.logger.Println(l.formatLogEntry(level, fmt.Sprintf(format, v...)))
}

// Printf logs a formatted message at info level
func (l *Logger) Printf(format string, v ...interface{}) {
	l.write(LevelInfo, format, v...)
}

// Debugf logs a debug-level message
func (l *Logger) Debugf(format string, v ...interface{}) {
	l.write(LevelDebug, format, v...)
}

// Infof logs an info-level message
func (l *Logger) Infof(format string, v ...interface{}) {
	l.write(LevelInfo, format, v...)
}

// Warnf logs a warning-level message
func (l *Logger) Warnf(format string, v ...interface{}) {
	l.write(LevelWarn, format, v...)
}

// Errorf logs an error-level message
func (l *Logger) Errorf(format string, v ...interface{}) {
	l.write(LevelError, format, v...)
}

// RunID returns the ID shared by all loggers of this process.
func (l *Logger) RunID() string {
	return l.runID
}

// LogPath returns the path to the log file, or "" for writer loggers.
func (l *Logger) LogPath() string {
	return l.logPath
}

// Close closes the shared log file. Safe to call multiple times.
func (l *Logger) Close() error {
	var err error
	l.closeOnce.Do(func() {
		if l.file == nil {
			return
		}
		sharedFilesMu.Lock()
		if sharedFiles[l.logPath] == l.file {
			delete(sharedFiles, l.logPath)
		}
		sharedFilesMu.Unlock()
		err = l.file.Close()
	})
	return err
}

// GetRunID returns the process-wide run ID
func GetRunID() string {
	return getRunID()
}

// GetLogDirectory returns the directory where logs are stored
func GetLogDirectory() (string, error) {
	if err := initLogDirectory(); err != nil {
		return "", err
	}
	return logDir, nil
}
