// Package logger provides the leveled, field-carrying logger used for all
// operational output of relpack.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level represents the severity level of log messages.
type Level int

const (
	TraceLevel Level = iota
	DebugLevel
	InfoLevel
	WarnLevel
	ErrorLevel
)

// String returns the string representation of the level.
func (l Level) String() string {
	switch l {
	case TraceLevel:
		return "TRACE"
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a level name into a [Level], defaulting to [InfoLevel].
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return TraceLevel
	case "DEBUG":
		return DebugLevel
	case "WARN", "WARNING":
		return WarnLevel
	case "ERROR":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Config holds the logger configuration.
type Config struct {
	Level     Level
	UseColor  bool
	JSON      bool
	Component string
}

// Field represents a structured field in a log entry.
type Field struct {
	Key   string
	Value any
}

// String creates a string field.
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Int creates an int field.
func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// Err creates an error field.
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}

	return Field{Key: "error", Value: err.Error()}
}

// Entry is a single rendered log record.
type Entry struct {
	Time      time.Time      `json:"time"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Component string         `json:"component,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Logger writes leveled messages to a writer. It is safe for concurrent use.
type Logger struct {
	config Config
	mu     *sync.Mutex
	out    io.Writer
	now    func() time.Time
}

// New returns a [Logger] writing to out. A nil writer discards everything.
func New(out io.Writer, config Config) *Logger {
	if out == nil {
		out = io.Discard
	}

	return &Logger{config: config, mu: &sync.Mutex{}, out: out, now: time.Now}
}

// Nop returns a logger that discards all output.
func Nop() *Logger {
	return New(io.Discard, Config{Level: ErrorLevel + 1})
}

// With returns a copy of the logger tagged with another component name.
// Both loggers share one output lock.
func (l *Logger) With(component string) *Logger {
	cfg := l.config
	cfg.Component = component

	return &Logger{config: cfg, mu: l.mu, out: l.out, now: l.now}
}

// Enabled reports whether messages at level would be written.
func (l *Logger) Enabled(level Level) bool {
	return level >= l.config.Level
}

// Log writes a log message.
func (l *Logger) Log(level Level, message string, fields ...Field) {
	if l == nil || !l.Enabled(level) {
		return
	}

	entry := Entry{
		Time:      l.now(),
		Level:     level.String(),
		Message:   message,
		Component: l.config.Component,
	}

	if len(fields) > 0 {
		entry.Fields = make(map[string]any, len(fields))
		for _, f := range fields {
			entry.Fields[f.Key] = f.Value
		}
	}

	var output string
	if l.config.JSON {
		b, _ := json.Marshal(entry)
		output = string(b)
	} else {
		output = l.formatPretty(entry)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	fmt.Fprintln(l.out, output)
}

func (l *Logger) formatPretty(entry Entry) string {
	var b strings.Builder

	b.WriteString(entry.Time.Format("2006-01-02 15:04:05"))

	level := entry.Level
	if l.config.UseColor {
		switch entry.Level {
		case "TRACE":
			level = "\033[37mTRACE\033[0m"
		case "DEBUG":
			level = "\033[36mDEBUG\033[0m"
		case "INFO":
			level = "\033[32mINFO\033[0m"
		case "WARN":
			level = "\033[33mWARN\033[0m"
		case "ERROR":
			level = "\033[31mERROR\033[0m"
		}
	}
	fmt.Fprintf(&b, " [%s]", level)

	if entry.Component != "" {
		fmt.Fprintf(&b, " %s:", entry.Component)
	}

	fmt.Fprintf(&b, " %s", entry.Message)

	if len(entry.Fields) > 0 {
		keys := make([]string, 0, len(entry.Fields))
		for k := range entry.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		b.WriteString(" {")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s=%v", k, entry.Fields[k])
		}
		b.WriteString("}")
	}

	return b.String()
}

func (l *Logger) Trace(message string, fields ...Field) { l.Log(TraceLevel, message, fields...) }
func (l *Logger) Debug(message string, fields ...Field) { l.Log(DebugLevel, message, fields...) }
func (l *Logger) Info(message string, fields ...Field)  { l.Log(InfoLevel, message, fields...) }
func (l *Logger) Warn(message string, fields ...Field)  { l.Log(WarnLevel, message, fields...) }
func (l *Logger) Error(message string, fields ...Field) { l.Log(ErrorLevel, message, fields...) }
