package logging

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

// Level represents the logging level.
type Level int

const (
	// LevelDebug is the most verbose level.
	LevelDebug Level = iota
	// LevelInfo is for informational messages.
	LevelInfo
	// LevelWarn is for warning messages.
	LevelWarn
	// LevelError is for error messages.
	LevelError
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseLevel parses a string into a Level. Unknown names map to LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Format represents the log output format.
type Format int

const (
	// FormatText outputs logs as "ts [level] msg k=v ...".
	FormatText Format = iota
	// FormatJSON outputs one JSON object per line.
	FormatJSON
)

// ParseFormat parses a string into a Format.
func ParseFormat(s string) Format {
	if strings.ToLower(s) == "json" {
		return FormatJSON
	}
	return FormatText
}

// Logger is the interface for structured logging.
type Logger interface {
	// Debug logs a debug message with optional key-value pairs.
	Debug(msg string, keysAndValues ...interface{})
	// Info logs an info message with optional key-value pairs.
	Info(msg string, keysAndValues ...interface{})
	// Warn logs a warning message with optional key-value pairs.
	Warn(msg string, keysAndValues ...interface{})
	// Error logs an error message with optional key-value pairs.
	Error(msg string, keysAndValues ...interface{})
	// WithSession returns a new logger that tags entries with a session ID.
	WithSession(id uint64) Logger
	// WithFields returns a new logger with the given fields.
	WithFields(keysAndValues ...interface{}) Logger
}

// sink is shared by a logger and all loggers derived from it.
type sink struct {
	mu  sync.Mutex
	out io.Writer
}

type logger struct {
	level   Level
	format  Format
	sink    *sink
	fields  map[string]interface{}
	session uint64
}

// Config holds the logger configuration.
type Config struct {
	Level  string
	Format string
	// Output is "stdout", "stderr" or a file path. Ignored when Writer is set.
	Output string
	Writer io.Writer
}

// New creates a new Logger with the given configuration. A file output that
// cannot be opened is an error.
func New(cfg Config) (Logger, error) {
	out := cfg.Writer
	if out == nil {
		switch cfg.Output {
		case "", "stdout":
			out = os.Stdout
		case "stderr":
			out = os.Stderr
		default:
			f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
			if err != nil {
				return nil, fmt.Errorf("open log output: %w", err)
			}
			out = f
		}
	}

	return &logger{
		level:  ParseLevel(cfg.Level),
		format: ParseFormat(cfg.Format),
		sink:   &sink{out: out},
		fields: make(map[string]interface{}),
	}, nil
}

// NewDefault creates a Logger at info level writing text to stderr.
func NewDefault() Logger {
	return &logger{
		level:  LevelInfo,
		format: FormatText,
		sink:   &sink{out: os.Stderr},
		fields: make(map[string]interface{}),
	}
}

// NewNop creates a no-op logger that discards all output.
func NewNop() Logger {
	return nopLogger{}
}

func (l *logger) Debug(msg string, keysAndValues ...interface{}) {
	l.log(LevelDebug, msg, keysAndValues)
}

func (l *logger) Info(msg string, keysAndValues ...interface{}) {
	l.log(LevelInfo, msg, keysAndValues)
}

func (l *logger) Warn(msg string, keysAndValues ...interface{}) {
	l.log(LevelWarn, msg, keysAndValues)
}

func (l *logger) Error(msg string, keysAndValues ...interface{}) {
	l.log(LevelError, msg, keysAndValues)
}

func (l *logger) WithSession(id uint64) Logger {
	c := l.clone()
	c.session = id
	return c
}

func (l *logger) WithFields(keysAndValues ...interface{}) Logger {
	c := l.clone()
	addPairs(c.fields, keysAndValues)
	return c
}

func (l *logger) clone() *logger {
	fields := make(map[string]interface{}, len(l.fields))
	for k, v := range l.fields {
		fields[k] = v
	}
	return &logger{
		level:   l.level,
		format:  l.format,
		sink:    l.sink,
		fields:  fields,
		session: l.session,
	}
}

// addPairs copies string-keyed pairs into dst. A trailing key without a
// value is dropped.
func addPairs(dst map[string]interface{}, keysAndValues []interface{}) {
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if key, ok := keysAndValues[i].(string); ok {
			v := keysAndValues[i+1]
			if err, ok := v.(error); ok {
				v = err.Error()
			}
			dst[key] = v
		}
	}
}

func (l *logger) log(level Level, msg string, keysAndValues []interface{}) {
	if level < l.level {
		return
	}

	entry := make(map[string]interface{}, len(l.fields)+len(keysAndValues)/2+4)
	for k, v := range l.fields {
		entry[k] = v
	}
	addPairs(entry, keysAndValues)
	if l.session != 0 {
		entry["session"] = l.session
	}
	ts := time.Now().UTC().Format(time.RFC3339)

	var line string
	if l.format == FormatJSON {
		entry["ts"] = ts
		entry["level"] = level.String()
		entry["msg"] = msg
		data, err := json.Marshal(entry)
		if err != nil {
			data, _ = json.Marshal(map[string]string{"ts": ts, "level": "error", "msg": "failed to marshal log entry"})
		}
		line = string(data)
	} else {
		line = formatText(ts, level, msg, entry)
	}

	l.sink.mu.Lock()
	fmt.Fprintln(l.sink.out, line)
	l.sink.mu.Unlock()
}

// formatText renders fields in key order so lines are stable.
func formatText(ts string, level Level, msg string, fields map[string]interface{}) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] %s", ts, level, msg)

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, fields[k])
	}
	return b.String()
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{})       {}
func (nopLogger) Info(string, ...interface{})        {}
func (nopLogger) Warn(string, ...interface{})        {}
func (nopLogger) Error(string, ...interface{})       {}
func (n nopLogger) WithSession(uint64) Logger        { return n }
func (n nopLogger) WithFields(...interface{}) Logger { return n }
