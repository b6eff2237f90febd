// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package logger

import (
	"encoding/json"
	"log"
	"os"
	"strings"
	"time"
)

// LogLevel represents the severity of a log entry
type LogLevel string

const (
	DEBUG LogLevel = "DEBUG"
	INFO  LogLevel = "INFO"
	WARN  LogLevel = "WARN"
	ERROR LogLevel = "ERROR"
)

var levelWeight = map[LogLevel]int{
	DEBUG: 0,
	INFO:  1,
	WARN:  2,
	ERROR: 3,
}

// Logger provides structured logging with per-account context
type Logger struct {
	Component  string
	InstanceID string
	Container  string
	MinLevel   LogLevel
}

// LogEntry represents a structured log entry written as single-line JSON
type LogEntry struct {
	Timestamp  string                 `json:"timestamp"`
	Level      LogLevel               `json:"level"`
	Component  string                 `json:"component"`
	InstanceID string                 `json:"instance_id"`
	Container  string                 `json:"container"`
	AccountID  string                 `json:"account_id"`
	RequestID  string                 `json:"request_id,omitempty"`
	Message    string                 `json:"message"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
}

// New creates a new Logger for the specified component. The minimum level
// is taken from LOG_LEVEL (default INFO).
func New(component string) *Logger {
	instanceID := os.Getenv("INSTANCE_ID")
	if instanceID == "" {
		instanceID = "unknown"
	}

	container, err := os.Hostname()
	if err != nil {
		container = "unknown"
	}

	minLevel := LogLevel(strings.ToUpper(os.Getenv("LOG_LEVEL")))
	if _, ok := levelWeight[minLevel]; !ok {
		minLevel = INFO
	}

	return &Logger{
		Component:  component,
		InstanceID: instanceID,
		Container:  container,
		MinLevel:   minLevel,
	}
}

// Log creates a structured log entry and writes it to stdout. Entries below
// the configured minimum level are dropped.
func (l *Logger) Log(level LogLevel, accountID, requestID, message string, fields map[string]interface{}) {
	if levelWeight[level] < levelWeight[l.MinLevel] {
		return
	}

	entry := LogEntry{
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		Level:      level,
		Component:  l.Component,
		InstanceID: l.InstanceID,
		Container:  l.Container,
		AccountID:  accountID,
		RequestID:  requestID,
		Message:    message,
		Fields:     fields,
	}

	jsonBytes, err := json.Marshal(entry)
	if err != nil {
		// Fallback to plain text if JSON marshaling fails
		log.Printf("ERROR: Failed to marshal log entry: %v", err)
		return
	}

	log.Println(string(jsonBytes))
}

// Info logs an informational message
func (l *Logger) Info(accountID, requestID, message string, fields map[string]interface{}) {
	l.Log(INFO, accountID, requestID, message, fields)
}

// Error logs an error message
func (l *Logger) Error(accountID, requestID, message string, fields map[string]interface{}) {
	l.Log(ERROR, accountID, requestID, message, fields)
}

// Warn logs a warning message
func (l *Logger) Warn(accountID, requestID, message string, fields map[string]interface{}) {
	l.Log(WARN, accountID, requestID, message, fields)
}

// Debug logs a debug message
func (l *Logger) Debug(accountID, requestID, message string, fields map[string]interface{}) {
	l.Log(DEBUG, accountID, requestID, message, fields)
}

// InfoWithDuration logs an info message with duration field
func (l *Logger) InfoWithDuration(accountID, requestID, message string, durationMS float64, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["duration_ms"] = durationMS
	l.Info(accountID, requestID, message, fields)
}

// ErrorWithCode logs an error with status code
func (l *Logger) ErrorWithCode(accountID, requestID, message string, statusCode int, err error, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["status_code"] = statusCode
	if err != nil {
		fields["error"] = err.Error()
	}
	l.Error(accountID, requestID, message, fields)
}
