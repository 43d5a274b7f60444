// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
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

// Logger provides structured logging with per-registration context
type Logger struct {
	Component  string
	InstanceID string
	Container  string

	redactor *Redactor
	out      *log.Logger
}

// LogEntry represents a structured log entry
type LogEntry struct {
	Timestamp     string                 `json:"timestamp"`
	Level         LogLevel               `json:"level"`
	Component     string                 `json:"component"`
	InstanceID    string                 `json:"instance_id"`
	Container     string                 `json:"container"`
	Registration  string                 `json:"registration"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	Message       string                 `json:"message"`
	Fields        map[string]interface{} `json:"fields,omitempty"`
}

// New creates a new Logger for the specified component writing to stdout
func New(component string) *Logger {
	return NewWithWriter(component, os.Stdout)
}

// NewWithWriter creates a Logger that writes JSON lines to w
func NewWithWriter(component string, w io.Writer) *Logger {
	// Get instance ID from environment (set during deployment)
	instanceID := os.Getenv("INSTANCE_ID")
	if instanceID == "" {
		instanceID = "unknown"
	}

	container, err := os.Hostname()
	if err != nil {
		container = "unknown"
	}

	return &Logger{
		Component:  component,
		InstanceID: instanceID,
		Container:  container,
		redactor:   NewRedactor(),
		out:        log.New(w, "", 0),
	}
}

// WithSecrets returns a copy of the logger whose redactor also masks the
// given literal values. The receiver is not modified.
func (l *Logger) WithSecrets(secrets ...string) *Logger {
	clone := *l
	clone.redactor = l.redactor.With(secrets...)
	return &clone
}

// Redact applies the logger's redaction rules to s, for text that leaves
// through a sink other than the logger itself.
func (l *Logger) Redact(s string) string {
	return l.redactor.Redact(s)
}

// Log creates a structured log entry and writes it as one JSON line.
// Every string in the entry passes through the redactor first.
func (l *Logger) Log(level LogLevel, registration, correlationID, message string, fields map[string]interface{}) {
	entry := LogEntry{
		Timestamp:     time.Now().UTC().Format(time.RFC3339Nano),
		Level:         level,
		Component:     l.Component,
		InstanceID:    l.InstanceID,
		Container:     l.Container,
		Registration:  registration,
		CorrelationID: correlationID,
		Message:       l.redactor.Redact(message),
		Fields:        l.redactFields(fields),
	}

	jsonBytes, err := json.Marshal(entry)
	if err != nil {
		l.out.Printf("ERROR: Failed to marshal log entry: %v", err)
		return
	}

	l.out.Println(string(jsonBytes))
}

func (l *Logger) redactFields(fields map[string]interface{}) map[string]interface{} {
	if len(fields) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		switch val := v.(type) {
		case string:
			out[k] = l.redactor.Redact(val)
		case error:
			out[k] = l.redactor.Redact(val.Error())
		case fmt.Stringer:
			out[k] = l.redactor.Redact(val.String())
		default:
			out[k] = v
		}
	}
	return out
}

// Info logs an informational message
func (l *Logger) Info(registration, correlationID, message string, fields map[string]interface{}) {
	l.Log(INFO, registration, correlationID, message, fields)
}

// Error logs an error message
func (l *Logger) Error(registration, correlationID, message string, fields map[string]interface{}) {
	l.Log(ERROR, registration, correlationID, message, fields)
}

// Warn logs a warning message
func (l *Logger) Warn(registration, correlationID, message string, fields map[string]interface{}) {
	l.Log(WARN, registration, correlationID, message, fields)
}

// Debug logs a debug message
func (l *Logger) Debug(registration, correlationID, message string, fields map[string]interface{}) {
	l.Log(DEBUG, registration, correlationID, message, fields)
}

// InfoWithDuration logs an info message with duration field
func (l *Logger) InfoWithDuration(registration, correlationID, message string, durationMS float64, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["duration_ms"] = durationMS
	l.Info(registration, correlationID, message, fields)
}

// ErrorWithCode logs an error with status code
func (l *Logger) ErrorWithCode(registration, correlationID, message string, statusCode int, err error, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["status_code"] = statusCode
	if err != nil {
		fields["error"] = err.Error()
	}
	l.Error(registration, correlationID, message, fields)
}

// TraceSink adapts a Logger to the write-only tracing interface the
// provisioning workflow expects.
type TraceSink struct {
	Logger        *Logger
	Registration  string
	CorrelationID string
}

// Trace formats and logs a message at INFO level.
func (s *TraceSink) Trace(format string, args ...interface{}) {
	s.Logger.Info(s.Registration, s.CorrelationID, fmt.Sprintf(format, args...), nil)
}
