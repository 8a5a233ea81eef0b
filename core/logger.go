package core

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Logger interface - minimal logging interface
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Debug(msg string, fields map[string]interface{})
}

// NoOpLogger provides a no-op logger implementation
type NoOpLogger struct{}

func (n *NoOpLogger) Info(msg string, fields map[string]interface{})  {}
func (n *NoOpLogger) Error(msg string, fields map[string]interface{}) {}
func (n *NoOpLogger) Warn(msg string, fields map[string]interface{})  {}
func (n *NoOpLogger) Debug(msg string, fields map[string]interface{}) {}

// LogLevel controls which messages a ConsoleLogger emits
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// ParseLogLevel converts a level name to a LogLevel, defaulting to info
func ParseLogLevel(level string) LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// ConsoleLogger is a level-filtered structured logger writing text or JSON
// lines. It is safe for concurrent use.
type ConsoleLogger struct {
	mu     sync.Mutex
	out    io.Writer
	level  LogLevel
	json   bool
	fields map[string]interface{}
}

// NewConsoleLogger creates a logger from the logging configuration.
// Format "json" emits one JSON object per line; anything else emits
// human-readable text.
func NewConsoleLogger(cfg LoggingConfig) *ConsoleLogger {
	return &ConsoleLogger{
		out:    os.Stdout,
		level:  ParseLogLevel(cfg.Level),
		json:   strings.ToLower(cfg.Format) == "json",
		fields: map[string]interface{}{},
	}
}

// SetOutput redirects log output, mainly for tests
func (l *ConsoleLogger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out = w
}

// With returns a child logger carrying persistent fields
func (l *ConsoleLogger) With(fields map[string]interface{}) *ConsoleLogger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &ConsoleLogger{out: l.out, level: l.level, json: l.json, fields: merged}
}

func (l *ConsoleLogger) Debug(msg string, fields map[string]interface{}) {
	l.log(DebugLevel, "DEBUG", msg, fields)
}

func (l *ConsoleLogger) Info(msg string, fields map[string]interface{}) {
	l.log(InfoLevel, "INFO", msg, fields)
}

func (l *ConsoleLogger) Warn(msg string, fields map[string]interface{}) {
	l.log(WarnLevel, "WARN", msg, fields)
}

func (l *ConsoleLogger) Error(msg string, fields map[string]interface{}) {
	l.log(ErrorLevel, "ERROR", msg, fields)
}

func (l *ConsoleLogger) log(level LogLevel, name, msg string, fields map[string]interface{}) {
	if level < l.level {
		return
	}

	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.json {
		entry := map[string]interface{}{
			"time":  time.Now().UTC().Format(time.RFC3339Nano),
			"level": name,
			"msg":   msg,
		}
		for k, v := range merged {
			entry[k] = v
		}
		if data, err := json.Marshal(entry); err == nil {
			fmt.Fprintln(l.out, string(data))
		}
		return
	}

	parts := []string{fmt.Sprintf("[%s]", name), msg}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, merged[k]))
	}
	fmt.Fprintln(l.out, strings.Join(parts, " "))
}
