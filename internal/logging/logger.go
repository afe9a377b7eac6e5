package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// LogLevel represents the severity level of a log message
type LogLevel string

const (
	LevelDebug   LogLevel = "debug"
	LevelInfo    LogLevel = "info"
	LevelSuccess LogLevel = "success"
	LevelWarn    LogLevel = "warn"
	LevelError   LogLevel = "error"
)

// maxEntryLen caps stored messages so the dashboard log pane stays readable.
const maxEntryLen = 100

// Entry is a single structured log record. Entries are what subscribers
// (the dashboard log pane) receive and what the in-memory ring retains.
type Entry struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     LogLevel               `json:"level"`
	Service   string                 `json:"service"`
	Account   string                 `json:"account,omitempty"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Subscriber receives every entry the logger accepts.
type Subscriber func(Entry)

// Logger provides structured JSON logging with an account tag, a bounded
// in-memory ring of recent entries, and per-entry subscriber fan-out.
// A subscriber's panic is isolated and never reaches the logging caller.
type Logger struct {
	mu      sync.Mutex
	output  io.Writer
	level   LogLevel
	service string

	ring    []Entry
	ringCap int

	subMu  sync.Mutex
	subs   map[int]Subscriber
	nextID int
}

// LoggerOption is a function that configures a Logger
type LoggerOption func(*Logger)

// WithOutput sets the output writer for the logger
func WithOutput(w io.Writer) LoggerOption {
	return func(l *Logger) {
		l.output = w
	}
}

// WithLevel sets the minimum log level
func WithLevel(level LogLevel) LoggerOption {
	return func(l *Logger) {
		l.level = level
	}
}

// WithService sets the service name for logs
func WithService(service string) LoggerOption {
	return func(l *Logger) {
		l.service = service
	}
}

// WithRingSize sets how many recent entries are retained in memory
func WithRingSize(n int) LoggerOption {
	return func(l *Logger) {
		if n > 0 {
			l.ringCap = n
		}
	}
}

// NewLogger creates a new Logger with the specified options
func NewLogger(opts ...LoggerOption) *Logger {
	logger := &Logger{
		output:  os.Stdout,
		level:   LevelInfo,
		service: "dawnkeeper",
		ringCap: 500,
		subs:    make(map[int]Subscriber),
	}

	for _, opt := range opts {
		opt(logger)
	}

	return logger
}

// Subscribe registers a subscriber and returns its id for Unsubscribe.
func (l *Logger) Subscribe(fn Subscriber) int {
	l.subMu.Lock()
	defer l.subMu.Unlock()

	l.nextID++
	l.subs[l.nextID] = fn
	return l.nextID
}

// Unsubscribe removes a previously registered subscriber.
func (l *Logger) Unsubscribe(id int) {
	l.subMu.Lock()
	defer l.subMu.Unlock()

	delete(l.subs, id)
}

// Recent returns a copy of the retained entries, oldest first.
func (l *Logger) Recent() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Entry, len(l.ring))
	copy(out, l.ring)
	return out
}

// Clear drops all retained entries.
func (l *Logger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.ring = nil
}

func (l *Logger) shouldLog(level LogLevel) bool {
	levels := map[LogLevel]int{
		LevelDebug:   0,
		LevelInfo:    1,
		LevelSuccess: 1,
		LevelWarn:    2,
		LevelError:   3,
	}

	return levels[level] >= levels[l.level]
}

// log records a message with the specified level and fields
func (l *Logger) log(level LogLevel, message, account string, fields map[string]interface{}) {
	if !l.shouldLog(level) {
		return
	}

	entry := Entry{
		Timestamp: time.Now().UTC(),
		Level:     level,
		Service:   l.service,
		Account:   account,
		Message:   normalizeMessage(message),
		Fields:    fields,
	}

	l.mu.Lock()
	l.ring = append(l.ring, entry)
	if len(l.ring) > l.ringCap {
		l.ring = l.ring[len(l.ring)-l.ringCap:]
	}
	if l.output != nil && l.output != io.Discard {
		if data, err := json.Marshal(entry); err == nil {
			fmt.Fprintln(l.output, string(data))
		} else {
			log.Printf("failed to marshal log entry: %v", err)
		}
	}
	l.mu.Unlock()

	l.fanOut(entry)
}

func (l *Logger) fanOut(entry Entry) {
	l.subMu.Lock()
	subs := make([]Subscriber, 0, len(l.subs))
	for _, fn := range l.subs {
		subs = append(subs, fn)
	}
	l.subMu.Unlock()

	for _, fn := range subs {
		func() {
			defer func() {
				_ = recover()
			}()
			fn(entry)
		}()
	}
}

// Debug logs a debug message
func (l *Logger) Debug(message string, fields ...interface{}) {
	account, fieldMap := parseFields(fields)
	l.log(LevelDebug, message, account, fieldMap)
}

// Info logs an info message
func (l *Logger) Info(message string, fields ...interface{}) {
	account, fieldMap := parseFields(fields)
	l.log(LevelInfo, message, account, fieldMap)
}

// Success logs a success message
func (l *Logger) Success(message string, fields ...interface{}) {
	account, fieldMap := parseFields(fields)
	l.log(LevelSuccess, message, account, fieldMap)
}

// Warn logs a warning message
func (l *Logger) Warn(message string, fields ...interface{}) {
	account, fieldMap := parseFields(fields)
	l.log(LevelWarn, message, account, fieldMap)
}

// Error logs an error message
func (l *Logger) Error(message string, fields ...interface{}) {
	account, fieldMap := parseFields(fields)
	l.log(LevelError, message, account, fieldMap)
}

// normalizeMessage collapses whitespace and truncates long messages so the
// dashboard log pane renders one line per entry.
func normalizeMessage(message string) string {
	message = strings.Join(strings.Fields(message), " ")
	if len(message) > maxEntryLen {
		message = message[:maxEntryLen-3] + "..."
	}
	return message
}

// parseFields parses variable number of key-value pairs into a map.
// The "account" key is extracted into the entry's account tag.
// Expected format: key1, value1, key2, value2, ...
func parseFields(fields []interface{}) (string, map[string]interface{}) {
	account := ""
	var fieldMap map[string]interface{}

	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}

		if key == "account" {
			if v, ok := fields[i+1].(string); ok {
				account = v
			}
			continue
		}

		if fieldMap == nil {
			fieldMap = make(map[string]interface{})
		}
		fieldMap[key] = fields[i+1]
	}

	return account, fieldMap
}

// FormatFields renders a field map as a stable "k=v" suffix for plain-text
// rendering in the dashboard.
func FormatFields(fields map[string]interface{}) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, fields[k]))
	}
	return strings.Join(parts, " ")
}
