// Package logger provides structured JSON logging with PII redaction.
//
// Every log line is a single JSON object on stderr. Because this service
// handles raw recipient addresses on every request, redaction is on by
// default and must be disabled explicitly (local debugging only).
package logger

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Level represents the severity of a log entry.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var levelNames = map[Level]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
}

// ParseLevel maps a config string to a Level. Unknown values default to INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

// settings holds the level and redaction state shared by every logger.
// Named loggers created at package init (before main configures logging)
// read these at log time, so SetLevel/SetRedactPII apply to all of them.
type settings struct {
	mu        sync.RWMutex
	level     Level
	redactPII bool
}

func (s *settings) snapshot() (Level, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.level, s.redactPII
}

var shared = &settings{level: INFO, redactPII: true}

// Logger emits structured JSON log entries with optional PII redaction.
type Logger struct {
	component string
	mu        sync.Mutex
}

var defaultLogger = &Logger{}

// SetLevel sets the minimum log level for all loggers.
func SetLevel(l Level) {
	shared.mu.Lock()
	shared.level = l
	shared.mu.Unlock()
}

// SetRedactPII enables or disables PII redaction for all loggers.
func SetRedactPII(r bool) {
	shared.mu.Lock()
	shared.redactPII = r
	shared.mu.Unlock()
}

// Named returns a logger that tags every entry with the given component.
func Named(component string) *Logger {
	return &Logger{component: component}
}

// Debug emits a DEBUG-level structured log entry.
func Debug(msg string, fields ...interface{}) { defaultLogger.log(DEBUG, msg, fields...) }

// Info emits an INFO-level structured log entry.
func Info(msg string, fields ...interface{}) { defaultLogger.log(INFO, msg, fields...) }

// Warn emits a WARN-level structured log entry.
func Warn(msg string, fields ...interface{}) { defaultLogger.log(WARN, msg, fields...) }

// Error emits an ERROR-level structured log entry.
func Error(msg string, fields ...interface{}) { defaultLogger.log(ERROR, msg, fields...) }

// Debug emits a DEBUG-level entry tagged with the logger's component.
func (l *Logger) Debug(msg string, fields ...interface{}) { l.log(DEBUG, msg, fields...) }

// Info emits an INFO-level entry tagged with the logger's component.
func (l *Logger) Info(msg string, fields ...interface{}) { l.log(INFO, msg, fields...) }

// Warn emits a WARN-level entry tagged with the logger's component.
func (l *Logger) Warn(msg string, fields ...interface{}) { l.log(WARN, msg, fields...) }

// Error emits an ERROR-level entry tagged with the logger's component.
func (l *Logger) Error(msg string, fields ...interface{}) { l.log(ERROR, msg, fields...) }

// enabled reports whether entries at the given level are emitted.
func (l *Logger) enabled(level Level) bool {
	minLevel, _ := shared.snapshot()
	return level >= minLevel
}

func (l *Logger) log(level Level, msg string, fields ...interface{}) {
	minLevel, redactPII := shared.snapshot()
	if level < minLevel {
		return
	}

	entry := map[string]interface{}{
		"time":  time.Now().UTC().Format(time.RFC3339),
		"level": levelNames[level],
		"msg":   msg,
	}
	if l.component != "" {
		entry["component"] = l.component
	}

	// Fields arrive as alternating key/value pairs; a trailing key
	// without a value is dropped.
	for i := 0; i < len(fields)-1; i += 2 {
		key := fmt.Sprintf("%v", fields[i])
		val := fmt.Sprintf("%v", fields[i+1])
		if redactPII {
			val = redactPIIValue(key, val)
		}
		entry[key] = val
	}

	data, _ := json.Marshal(entry)
	l.mu.Lock()
	fmt.Fprintln(os.Stderr, string(data))
	l.mu.Unlock()
}

var emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

func redactPIIValue(key, val string) string {
	key = strings.ToLower(key)
	// Field names that always carry addresses in this service.
	if strings.Contains(key, "email") || strings.Contains(key, "recipient") {
		return RedactEmail(val)
	}
	// Catch addresses embedded in generic fields (error strings etc).
	return emailRegex.ReplaceAllStringFunc(val, RedactEmail)
}
