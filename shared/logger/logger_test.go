// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
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
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []LogEntry {
	t.Helper()
	var entries []LogEntry
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var e LogEntry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			t.Fatalf("log line is not JSON: %q: %v", line, err)
		}
		entries = append(entries, e)
	}
	return entries
}

// TestNew tests logger initialization
func TestNew(t *testing.T) {
	tests := []struct {
		name           string
		component      string
		instanceID     string
		expectedInstID string
	}{
		{
			name:           "with instance ID set",
			component:      "provisioner",
			instanceID:     "instance-123",
			expectedInstID: "instance-123",
		},
		{
			name:           "without instance ID",
			component:      "agent",
			instanceID:     "",
			expectedInstID: "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("INSTANCE_ID", tt.instanceID)

			logger := New(tt.component)

			if logger.Component != tt.component {
				t.Errorf("Expected component %s, got %s", tt.component, logger.Component)
			}
			if logger.InstanceID != tt.expectedInstID {
				t.Errorf("Expected instance ID %s, got %s", tt.expectedInstID, logger.InstanceID)
			}
			if logger.Container == "" {
				t.Error("Expected container to be set from hostname")
			}
		})
	}
}

func TestLog_WritesStructuredEntry(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("provisioner", &buf)

	l.Info("case-folders", "corr-1", "Folder created", map[string]interface{}{
		"blob_path": "11111111-1111-1111-1111-111111111111/.keep",
		"attempt":   1,
	})

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]

	if e.Level != INFO {
		t.Errorf("expected INFO, got %s", e.Level)
	}
	if e.Registration != "case-folders" || e.CorrelationID != "corr-1" {
		t.Errorf("unexpected context: %+v", e)
	}
	if e.Message != "Folder created" {
		t.Errorf("unexpected message %q", e.Message)
	}
	if e.Fields["blob_path"] != "11111111-1111-1111-1111-111111111111/.keep" {
		t.Errorf("unexpected blob_path field %v", e.Fields["blob_path"])
	}
	if _, err := time.Parse(time.RFC3339Nano, e.Timestamp); err != nil {
		t.Errorf("timestamp not RFC3339Nano: %v", err)
	}
}

func TestLogLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("agent", &buf)

	l.Debug("r", "", "debug", nil)
	l.Info("r", "", "info", nil)
	l.Warn("r", "", "warn", nil)
	l.Error("r", "", "error", nil)

	entries := decodeLines(t, &buf)
	want := []LogLevel{DEBUG, INFO, WARN, ERROR}
	if len(entries) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(entries))
	}
	for i, lvl := range want {
		if entries[i].Level != lvl {
			t.Errorf("entry %d: expected %s, got %s", i, lvl, entries[i].Level)
		}
	}
}

func TestInfoWithDuration(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("agent", &buf)

	l.InfoWithDuration("r", "c", "done", 12.5, nil)

	e := decodeLines(t, &buf)[0]
	if e.Fields["duration_ms"] != 12.5 {
		t.Errorf("expected duration_ms 12.5, got %v", e.Fields["duration_ms"])
	}
}

func TestErrorWithCode(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("agent", &buf)

	l.ErrorWithCode("r", "c", "placeholder failed", 403, errors.New("Forbidden"), nil)

	e := decodeLines(t, &buf)[0]
	if e.Level != ERROR {
		t.Errorf("expected ERROR, got %s", e.Level)
	}
	if e.Fields["status_code"] != float64(403) {
		t.Errorf("expected status_code 403, got %v", e.Fields["status_code"])
	}
	if e.Fields["error"] != "Forbidden" {
		t.Errorf("expected error Forbidden, got %v", e.Fields["error"])
	}
}

func TestLog_RedactsCredentials(t *testing.T) {
	var buf bytes.Buffer
	secret := "?sv=2023-11-03&sig=abc"
	l := NewWithWriter("provisioner", &buf).WithSecrets(secret)

	l.Info("r", "c",
		"Creating blob at URL: https://contosostore.blob.core.windows.net/case-folders/x/.keep?sv=2023-11-03&sig=abc",
		map[string]interface{}{
			"credential": "sv=2023-11-03&sig=abc",
			"cause":      errors.New("PUT failed for sv=2023-11-03&sig=abc"),
		})

	out := buf.String()
	if strings.Contains(out, "sig=abc") {
		t.Fatalf("credential leaked into log output: %s", out)
	}

	e := decodeLines(t, &buf)[0]
	if !strings.Contains(e.Message, "https://contosostore.blob.core.windows.net/case-folders/x/.keep?"+Redacted) {
		t.Errorf("expected blob URL with redacted query, got %q", e.Message)
	}
	if e.Fields["credential"] != Redacted {
		t.Errorf("expected credential field redacted, got %v", e.Fields["credential"])
	}
}

func TestWithSecrets_DoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := NewWithWriter("agent", &buf)
	_ = parent.WithSecrets("topsecret")

	parent.Info("r", "", "value topsecret", nil)

	if !strings.Contains(buf.String(), "topsecret") {
		t.Error("parent logger should not have inherited child secrets")
	}
}

func TestTraceSink(t *testing.T) {
	var buf bytes.Buffer
	sink := &TraceSink{Logger: NewWithWriter("provisioner", &buf), Registration: "case-folders", CorrelationID: "abc"}

	sink.Trace("Record ID: %s", "11111111-1111-1111-1111-111111111111")

	e := decodeLines(t, &buf)[0]
	if e.Message != "Record ID: 11111111-1111-1111-1111-111111111111" {
		t.Errorf("unexpected trace message %q", e.Message)
	}
	if e.Registration != "case-folders" || e.CorrelationID != "abc" {
		t.Errorf("unexpected trace context %+v", e)
	}
}

func TestLogger_Redact(t *testing.T) {
	l := NewWithWriter("provisioner", io.Discard).WithSecrets("sv=2023&sig=abc")

	got := l.Redact("PUT https://acct.blob.core.windows.net/c/id/.keep?sv=2023&sig=abc")
	if strings.Contains(got, "sig=abc") {
		t.Errorf("credential leaked: %q", got)
	}
	if !strings.Contains(got, "https://acct.blob.core.windows.net/c/id/.keep") {
		t.Errorf("path should survive redaction: %q", got)
	}
}
