package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Level is the severity of a log line
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

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "LEVEL(" + strconv.Itoa(int(l)) + ")"
}

// ParseLevel maps a case-insensitive level name to a Level. "warning" is
// accepted as an alias of warn.
func ParseLevel(name string) (Level, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "WARNING" {
		return WARN, nil
	}
	for level, n := range levelNames {
		if n == name {
			return level, nil
		}
	}
	return INFO, fmt.Errorf("unknown log level %q", name)
}

// Format selects how lines are encoded
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Fields are key/value pairs attached to a line
type Fields map[string]interface{}

// sink is shared by a logger and every logger derived from it, so lines
// from different components never interleave.
type sink struct {
	mu sync.Mutex
	w  io.Writer
}

// Logger writes leveled lines with context fields. Diagnostics go to
// stderr; stdout is left to the preview subcommands.
type Logger struct {
	level  Level
	format Format
	sink   *sink
	fields Fields
}

// NewLogger creates a logger writing to stderr
func NewLogger(level Level, format Format) *Logger {
	return &Logger{
		level:  level,
		format: format,
		sink:   &sink{w: os.Stderr},
	}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return &Logger{level: ERROR + 1, format: FormatText, sink: &sink{w: io.Discard}}
}

// SetOutput redirects this logger and all loggers derived from it
func (l *Logger) SetOutput(w io.Writer) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.w = w
}

// WithField returns a child logger that adds key to every line
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.WithFields(Fields{key: value})
}

// WithFields returns a child logger that adds fields to every line.
// The parent is not modified.
func (l *Logger) WithFields(fields Fields) *Logger {
	child := *l
	child.fields = merge(l.fields, fields)
	return &child
}

func (l *Logger) Debug(msg string, fields ...Fields) { l.write(DEBUG, msg, fields) }
func (l *Logger) Info(msg string, fields ...Fields)  { l.write(INFO, msg, fields) }
func (l *Logger) Warn(msg string, fields ...Fields)  { l.write(WARN, msg, fields) }
func (l *Logger) Error(msg string, fields ...Fields) { l.write(ERROR, msg, fields) }

// Entry is the JSON shape of one line
type Entry struct {
	Time    string `json:"time"`
	Level   string `json:"level"`
	Message string `json:"msg"`
	Fields  Fields `json:"fields,omitempty"`
}

func (l *Logger) write(level Level, msg string, extra []Fields) {
	if level < l.level {
		return
	}

	fields := l.fields
	for _, f := range extra {
		fields = merge(fields, f)
	}

	now := time.Now()
	var line string
	if l.format == FormatJSON {
		line = encodeJSON(now, level, msg, fields)
	} else {
		line = encodeText(now, level, msg, fields)
	}

	l.sink.mu.Lock()
	io.WriteString(l.sink.w, line)
	l.sink.mu.Unlock()
}

// merge copies a and b into a new map; errors become their message
func merge(a, b Fields) Fields {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make(Fields, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		out[k] = v
	}
	return out
}

func encodeJSON(t time.Time, level Level, msg string, fields Fields) string {
	data, err := json.Marshal(Entry{
		Time:    t.Format(time.RFC3339),
		Level:   level.String(),
		Message: msg,
		Fields:  fields,
	})
	if err != nil {
		// Fall back to text rather than dropping the line
		return encodeText(t, level, msg, Fields{"marshal_error": err.Error()})
	}
	return string(data) + "\n"
}

// encodeText renders "<time> LEVEL: msg k=v ..." with keys sorted
func encodeText(t time.Time, level Level, msg string, fields Fields) string {
	var b strings.Builder
	b.WriteString(t.Format("2006-01-02 15:04:05"))
	b.WriteByte(' ')
	b.WriteString(level.String())
	b.WriteString(": ")
	b.WriteString(msg)

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%s", k, quote(fmt.Sprint(fields[k])))
	}
	b.WriteByte('\n')
	return b.String()
}

func quote(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\"=") {
		return strconv.Quote(s)
	}
	return s
}
