// jsonlog.go - Structured JSON logging for production environments
package server

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"
	"time"
)

// LogLevel represents the severity of a log entry
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

var levelRank = map[LogLevel]int{
	LogLevelDebug: 0,
	LogLevelInfo:  1,
	LogLevelWarn:  2,
	LogLevelError: 3,
}

// Logger writes structured entries as JSON in production and as readable
// key=value lines in development. Writes are serialized so concurrent
// handlers never interleave lines.
type Logger struct {
	mu       sync.Mutex
	output   io.Writer
	minLevel LogLevel
	asJSON   bool
}

// LogEntry is the wire shape of one log line.
type LogEntry struct {
	Level     LogLevel               `json:"level"`
	Time      string                 `json:"time"`
	Message   string                 `json:"msg"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Caller    string                 `json:"caller,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// DefaultLogger is the global logger instance
var DefaultLogger *Logger

func init() {
	asJSON := os.Getenv("LECSY_LOG_FORMAT") == "json" ||
		os.Getenv("LECSY_ENV") == "production"

	DefaultLogger = &Logger{
		output:   os.Stdout,
		minLevel: logLevelFromEnv(),
		asJSON:   asJSON,
	}
}

func logLevelFromEnv() LogLevel {
	if lvl := LogLevel(os.Getenv("LECSY_LOG_LEVEL")); levelRank[lvl] > 0 || lvl == LogLevelDebug {
		return lvl
	}
	return LogLevelInfo
}

// getCaller returns the file and line number of the caller
func getCaller(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return ""
	}

	for i := len(file) - 1; i > 0; i-- {
		if file[i] == '/' {
			file = file[i+1:]
			break
		}
	}

	return fmt.Sprintf("%s:%d", file, line)
}

func (l *Logger) emit(entry LogEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.asJSON {
		data, _ := json.Marshal(entry)
		fmt.Fprintln(l.output, string(data))
		return
	}

	fmt.Fprintf(l.output, "[%s] %s %s", entry.Level, entry.Time, entry.Message)
	if entry.RequestID != "" {
		fmt.Fprintf(l.output, " request_id=%s", entry.RequestID)
	}
	for k, v := range entry.Fields {
		fmt.Fprintf(l.output, " %s=%v", k, v)
	}
	if entry.Error != "" {
		fmt.Fprintf(l.output, " error=%s", entry.Error)
	}
	fmt.Fprintln(l.output)
}

func (l *Logger) log(level LogLevel, msg string, fields map[string]interface{}, err error) {
	if levelRank[level] < levelRank[l.minLevel] {
		return
	}

	entry := LogEntry{
		Level:   level,
		Time:    time.Now().UTC().Format(time.RFC3339),
		Message: msg,
		Fields:  fields,
		Caller:  getCaller(3),
	}
	if err != nil {
		entry.Error = err.Error()
	}
	l.emit(entry)
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, fields map[string]interface{}) {
	l.log(LogLevelDebug, msg, fields, nil)
}

// Info logs an info message
func (l *Logger) Info(msg string, fields map[string]interface{}) {
	l.log(LogLevelInfo, msg, fields, nil)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, fields map[string]interface{}) {
	l.log(LogLevelWarn, msg, fields, nil)
}

// Error logs an error message
func (l *Logger) Error(msg string, fields map[string]interface{}, err error) {
	l.log(LogLevelError, msg, fields, err)
}

// logRequest writes an entry carrying the request id, used by the access
// log middleware so every request line is correlatable.
func (l *Logger) logRequest(level LogLevel, msg, requestID string, fields map[string]interface{}) {
	if levelRank[level] < levelRank[l.minLevel] {
		return
	}

	l.emit(LogEntry{
		Level:     level,
		Time:      time.Now().UTC().Format(time.RFC3339),
		Message:   msg,
		Fields:    fields,
		RequestID: requestID,
	})
}

// Global logging functions

// Debug logs a debug message
func Debug(msg string, fields map[string]interface{}) {
	DefaultLogger.Debug(msg, fields)
}

// Info logs an info message
func Info(msg string, fields map[string]interface{}) {
	DefaultLogger.Info(msg, fields)
}

// Warn logs a warning message
func Warn(msg string, fields map[string]interface{}) {
	DefaultLogger.Warn(msg, fields)
}

// Error logs an error message
func Error(msg string, fields map[string]interface{}, err error) {
	DefaultLogger.Error(msg, fields, err)
}
