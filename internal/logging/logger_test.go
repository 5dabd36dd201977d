package logging

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoggerWritesJSONLinesToFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "osparc-tables.log")

	var console bytes.Buffer
	l := NewLogger(Options{Console: &console, File: path, Component: "table"})
	l.Info().Str("resource", "usage").Msg("count loaded")
	l.Component("export").Warn().Msg("slow sink")
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open log file: %v", err)
	}
	defer f.Close()

	var lines []map[string]interface{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry map[string]interface{}
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			t.Fatalf("log line is not JSON: %q", scanner.Text())
		}
		lines = append(lines, entry)
	}

	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if lines[0]["source"] != "table" || lines[0]["resource"] != "usage" {
		t.Errorf("first line = %v, want source=table resource=usage", lines[0])
	}
	if lines[1]["level"] != "warn" {
		t.Errorf("second line level = %v, want warn", lines[1]["level"])
	}

	if !strings.Contains(console.String(), "count loaded") {
		t.Errorf("console output missing message: %q", console.String())
	}
}

func TestComponentReplacesSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "osparc-tables.log")

	var console bytes.Buffer
	l := NewLogger(Options{Console: &console, File: path, Component: "cli"})
	l.Component("api").Component("table").Info().Msg("loaded")
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := strings.TrimSpace(string(data))
	if n := strings.Count(line, `"source"`); n != 1 {
		t.Fatalf("got %d source keys in %s, want 1", n, line)
	}
	if !strings.Contains(line, `"source":"table"`) {
		t.Errorf("line = %s, want source=table", line)
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	l := Nop()
	l.Error().Msg("ignored")
	if err := l.Close(); err != nil {
		t.Errorf("Close() on nop logger = %v, want nil", err)
	}
}
