package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

var levelNames = [...]string{Debug: "debug", Info: "info", Warn: "warn", Error: "error"}

func (l Level) String() string {
	if l < Debug || l > Error {
		return "info"
	}
	return levelNames[l]
}

// UnmarshalText accepts the names ParseLevel does, so a Level can sit
// directly in a config struct.
func (l *Level) UnmarshalText(text []byte) error {
	*l = ParseLevel(string(text))
	return nil
}

// ParseLevel maps a level name to a Level; unknown names mean Info.
func ParseLevel(raw string) Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return Debug
	case "warn", "warning":
		return Warn
	case "error":
		return Error
	default:
		return Info
	}
}

type Field struct {
	Key   string
	Value any
}

func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

func Err(err error) Field {
	return Field{Key: "error", Value: err}
}

type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
	Enabled(level Level) bool
}

// maxValueLen caps a single rendered value. Message text and raw stream
// frames end up in fields and can be arbitrarily long.
const maxValueLen = 512

// sink is shared by a logger and everything derived from it with With.
type sink struct {
	mu  sync.Mutex
	out io.Writer
	now func() time.Time
}

func (s *sink) write(line []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.out.Write(line)
}

type logfmtLogger struct {
	sink   *sink
	level  Level
	prefix string
}

// New returns a logfmt logger writing one line per entry to out, which
// defaults to stdout.
func New(out io.Writer, level Level) Logger {
	return newLogger(out, level, time.Now)
}

func newLogger(out io.Writer, level Level, now func() time.Time) *logfmtLogger {
	if out == nil {
		out = os.Stdout
	}
	return &logfmtLogger{sink: &sink{out: out, now: now}, level: level}
}

// OpenFile returns a logger appending to path. The caller closes the returned
// file when the process exits.
func OpenFile(path string, level Level) (Logger, io.Closer, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil, fmt.Errorf("log path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, nil, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, err
	}
	return New(file, level), file, nil
}

func (l *logfmtLogger) Enabled(level Level) bool {
	return l != nil && level >= l.level
}

// With pre-renders fields once; every entry of the child repeats them after
// the message.
func (l *logfmtLogger) With(fields ...Field) Logger {
	if l == nil {
		return Nop()
	}
	if len(fields) == 0 {
		return l
	}
	var b strings.Builder
	b.WriteString(l.prefix)
	appendFields(&b, fields)
	return &logfmtLogger{sink: l.sink, level: l.level, prefix: b.String()}
}

func (l *logfmtLogger) Debug(msg string, fields ...Field) { l.log(Debug, msg, fields) }
func (l *logfmtLogger) Info(msg string, fields ...Field)  { l.log(Info, msg, fields) }
func (l *logfmtLogger) Warn(msg string, fields ...Field)  { l.log(Warn, msg, fields) }
func (l *logfmtLogger) Error(msg string, fields ...Field) { l.log(Error, msg, fields) }

func (l *logfmtLogger) log(level Level, msg string, fields []Field) {
	if !l.Enabled(level) {
		return
	}
	var b strings.Builder
	b.WriteString("ts=")
	b.WriteString(l.sink.now().UTC().Format(time.RFC3339Nano))
	b.WriteString(" level=")
	b.WriteString(level.String())
	b.WriteString(" msg=")
	b.WriteString(formatValue(msg))
	b.WriteString(l.prefix)
	appendFields(&b, fields)
	b.WriteByte('\n')
	l.sink.write([]byte(b.String()))
}

func appendFields(b *strings.Builder, fields []Field) {
	for _, field := range fields {
		b.WriteByte(' ')
		b.WriteString(formatKey(field.Key))
		b.WriteByte('=')
		b.WriteString(formatValue(field.Value))
	}
}

// formatKey keeps a key a single logfmt token.
func formatKey(key string) string {
	if key == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		if r <= ' ' || r == '=' || r == '"' {
			return '_'
		}
		return r
	}, key)
}

func formatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case error:
		return quoteIfNeeded(v.Error())
	case string:
		return quoteIfNeeded(v)
	case []byte:
		return quoteIfNeeded(string(v))
	case fmt.Stringer:
		return quoteIfNeeded(v.String())
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case int32, uint, uint32, uint64, float32:
		return fmt.Sprint(v)
	default:
		return quoteIfNeeded(fmt.Sprintf("%+v", v))
	}
}

func quoteIfNeeded(value string) string {
	value = truncate(value)
	if value == "" {
		return `""`
	}
	if strings.ContainsAny(value, " \t\n\r\"=") {
		return strconv.Quote(value)
	}
	return value
}

func truncate(value string) string {
	if len(value) <= maxValueLen {
		return value
	}
	cut := maxValueLen
	for cut > 0 && !utf8.RuneStart(value[cut]) {
		cut--
	}
	return value[:cut] + "...(" + strconv.Itoa(len(value)) + " bytes)"
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...Field)   {}
func (nopLogger) Info(string, ...Field)    {}
func (nopLogger) Warn(string, ...Field)    {}
func (nopLogger) Error(string, ...Field)   {}
func (n nopLogger) With(...Field) Logger   { return n }
func (nopLogger) Enabled(level Level) bool { return false }

func Nop() Logger {
	return nopLogger{}
}

// OrNop lets components accept a nil logger.
func OrNop(logger Logger) Logger {
	if logger == nil {
		return Nop()
	}
	return logger
}
