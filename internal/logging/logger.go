package logging

import (
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
)

// Level controls which messages a Logger emits.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Logger is a leveled logger with optional structured fields.
type Logger struct {
	level Level
	out   *log.Logger
}

// Fields carries structured context for a single log entry.
type Fields map[string]interface{}

// New creates a logger that writes to stderr at the given level.
func New(level Level) *Logger {
	return &Logger{
		level: level,
		out:   log.New(os.Stderr, "", log.LstdFlags),
	}
}

// WithField wraps a single key/value pair as Fields.
func WithField(key string, value interface{}) Fields {
	return Fields{key: value}
}

// WithFields wraps a map as Fields.
func WithFields(fields map[string]interface{}) Fields {
	return Fields(fields)
}

func (l *Logger) Debug(msg string, fields ...Fields) {
	l.write(LevelDebug, "DEBUG", msg, fields)
}

func (l *Logger) Info(msg string, fields ...Fields) {
	l.write(LevelInfo, "INFO", msg, fields)
}

func (l *Logger) Warn(msg string, fields ...Fields) {
	l.write(LevelWarn, "WARN", msg, fields)
}

func (l *Logger) Error(msg string, fields ...Fields) {
	l.write(LevelError, "ERROR", msg, fields)
}

func (l *Logger) write(level Level, tag, msg string, fields []Fields) {
	if level < l.level {
		return
	}

	var b strings.Builder
	b.WriteString("[")
	b.WriteString(tag)
	b.WriteString("] ")
	b.WriteString(msg)

	merged := make(Fields)
	for _, f := range fields {
		for k, v := range f {
			merged[k] = v
		}
	}
	if len(merged) > 0 {
		keys := make([]string, 0, len(merged))
		for k := range merged {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, merged[k])
		}
	}

	l.out.Println(b.String())
}

// ParseLevel maps a config string to a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}
