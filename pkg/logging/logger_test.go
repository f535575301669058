package logging

import (
	"bytes"
	"encoding/json"
	"errors"
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
			t.Fatalf("invalid JSON line %q: %v", line, err)
		}
		entries = append(entries, e)
	}
	return entries
}

func TestLevelString(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{DebugLevel, "DEBUG"},
		{InfoLevel, "INFO"},
		{WarnLevel, "WARN"},
		{ErrorLevel, "ERROR"},
		{Level(42), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.level.String(); got != tt.expected {
				t.Errorf("Level.String() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
		ok       bool
	}{
		{"debug", DebugLevel, true},
		{"INFO", InfoLevel, true},
		{"", InfoLevel, true},
		{"warning", WarnLevel, true},
		{"ERROR", ErrorLevel, true},
		{"verbose", InfoLevel, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseLevel(tt.input)
			if got != tt.expected || ok != tt.ok {
				t.Errorf("ParseLevel(%q) = %v, %v; want %v, %v", tt.input, got, ok, tt.expected, tt.ok)
			}
		})
	}
}

func TestDomainFields(t *testing.T) {
	tests := []struct {
		name  string
		field Field
		key   string
		value any
	}{
		{"rank", Rank(2), "rank", uint64(2)},
		{"peer rank", PeerRank(0), "peer_rank", uint64(0)},
		{"address", Address("tcp://10.0.0.1:7000"), "address", "tcp://10.0.0.1:7000"},
		{"term", Term(7), "term", uint64(7)},
		{"message type", MessageType("MsgApp"), "msg_type", "MsgApp"},
		{"latency", Latency(1500 * time.Millisecond), "latency", "1.5s"},
		{"nil error", Error(nil), "error", nil},
		{"error", Error(errors.New("boom")), "error", "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.field.Key != tt.key || tt.field.Value != tt.value {
				t.Errorf("got %+v, want {Key:%s Value:%v}", tt.field, tt.key, tt.value)
			}
		})
	}
}

func TestJSONLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, WarnLevel)

	logger.Debug("tick")
	logger.Info("ready cycle")
	logger.Warn("peer unknown", PeerRank(3))
	logger.Error("persist failed")

	entries := decodeLines(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Level != "WARN" || entries[0].Message != "peer unknown" {
		t.Errorf("unexpected first entry: %+v", entries[0])
	}
	if entries[0].Fields["peer_rank"] != float64(3) {
		t.Errorf("peer_rank = %v, want 3", entries[0].Fields["peer_rank"])
	}
	if entries[1].Level != "ERROR" {
		t.Errorf("second entry level = %s", entries[1].Level)
	}
}

func TestJSONLogger_WithAndNamed(t *testing.T) {
	var buf bytes.Buffer
	root := NewJSONLogger(&buf, DebugLevel)

	child := root.Named("coordinator").With(Rank(1)).Named("dispatch")
	child.Info("sent", PeerRank(2))
	root.Info("plain")

	entries := decodeLines(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Component != "coordinator.dispatch" {
		t.Errorf("component = %q", entries[0].Component)
	}
	if entries[0].Fields["rank"] != float64(1) || entries[0].Fields["peer_rank"] != float64(2) {
		t.Errorf("fields = %v", entries[0].Fields)
	}
	if entries[1].Component != "" || entries[1].Fields != nil {
		t.Errorf("parent logger picked up child state: %+v", entries[1])
	}
}

func TestJSONLogger_SetLevelSharedWithChildren(t *testing.T) {
	var buf bytes.Buffer
	root := NewJSONLogger(&buf, InfoLevel)
	child := root.With(Rank(0))

	child.Debug("hidden")
	root.SetLevel(DebugLevel)
	child.Debug("visible")

	entries := decodeLines(t, &buf)
	if len(entries) != 1 || entries[0].Message != "visible" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
	if child.GetLevel() != DebugLevel {
		t.Errorf("child level = %v", child.GetLevel())
	}
}

func TestTimedOperation(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, InfoLevel)

	timer := StartTimer(logger, "bootstrap", Count(2))
	timer.End(Count(3))
	StartTimer(logger, "bootstrap").EndError(errors.New("refused"))

	entries := decodeLines(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if _, ok := entries[0].Fields["latency"]; !ok {
		t.Error("missing latency field")
	}
	if entries[0].Fields["count"] != float64(3) {
		t.Errorf("later field should win, count = %v", entries[0].Fields["count"])
	}
	if entries[1].Level != "ERROR" || entries[1].Fields["error"] != "refused" {
		t.Errorf("unexpected failure entry: %+v", entries[1])
	}
}

func TestNopLogger(t *testing.T) {
	logger := NewNopLogger()
	logger.Info("nothing")
	if logger.With(Rank(1)).Named("x") == nil {
		t.Fatal("NopLogger children must not be nil")
	}
}

func TestOrDefault(t *testing.T) {
	custom := NewNopLogger()
	if OrDefault(custom) != custom {
		t.Error("OrDefault replaced a non-nil logger")
	}

	SetDefaultLogger(custom)
	if OrDefault(nil) != custom {
		t.Error("OrDefault(nil) should return the default logger")
	}
}
