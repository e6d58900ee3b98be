// Package logger provides structured JSON logging with PII redaction.
// Submission payloads carry visitor emails and IP addresses, so redaction
// is on by default and must be explicitly disabled for local debugging.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
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

// Logger writes structured JSON log entries.
type Logger struct {
	mu        sync.Mutex
	out       io.Writer
	level     Level
	redactPII bool
	component string
}

var defaultLogger = &Logger{out: os.Stderr, level: INFO, redactPII: true}

// SetLevel sets the minimum log level for the default logger.
func SetLevel(l Level) { defaultLogger.level = l }

// SetRedactPII enables or disables PII redaction for the default logger.
func SetRedactPII(r bool) { defaultLogger.redactPII = r }

// SetOutput redirects the default logger, mainly for tests.
func SetOutput(w io.Writer) { defaultLogger.out = w }

// Component returns a logger that stamps every entry with a component name.
func Component(name string) *Logger {
	return &Logger{
		out:       defaultLogger.out,
		level:     defaultLogger.level,
		redactPII: defaultLogger.redactPII,
		component: name,
	}
}

// Debug emits a DEBUG-level structured log entry.
func Debug(msg string, fields ...interface{}) { defaultLogger.log(DEBUG, msg, fields...) }

// Info emits an INFO-level structured log entry.
func Info(msg string, fields ...interface{}) { defaultLogger.log(INFO, msg, fields...) }

// Warn emits a WARN-level structured log entry.
func Warn(msg string, fields ...interface{}) { defaultLogger.log(WARN, msg, fields...) }

// Error emits an ERROR-level structured log entry.
func Error(msg string, fields ...interface{}) { defaultLogger.log(ERROR, msg, fields...) }

// Debug emits a DEBUG-level entry through a component logger.
func (l *Logger) Debug(msg string, fields ...interface{}) { l.log(DEBUG, msg, fields...) }

// Info emits an INFO-level entry through a component logger.
func (l *Logger) Info(msg string, fields ...interface{}) { l.log(INFO, msg, fields...) }

// Warn emits a WARN-level entry through a component logger.
func (l *Logger) Warn(msg string, fields ...interface{}) { l.log(WARN, msg, fields...) }

// Error emits an ERROR-level entry through a component logger.
func (l *Logger) Error(msg string, fields ...interface{}) { l.log(ERROR, msg, fields...) }

func (l *Logger) log(level Level, msg string, fields ...interface{}) {
	if level < l.level {
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

	// Fields come as key-value pairs; a trailing odd value is dropped.
	for i := 0; i+1 < len(fields); i += 2 {
		key := fmt.Sprintf("%v", fields[i])
		val := fmt.Sprintf("%v", fields[i+1])
		if l.redactPII {
			val = redactValue(key, val)
		}
		entry[key] = val
	}

	data, _ := json.Marshal(entry)
	l.mu.Lock()
	fmt.Fprintln(l.out, string(data))
	l.mu.Unlock()
}
