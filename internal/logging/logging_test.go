package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestComponentTagsRecords(t *testing.T) {
	var buf bytes.Buffer
	log := Component(New(&buf, false), "engine")
	log.Info("grain dropped", "active", 32)
	out := buf.String()
	if !strings.Contains(out, "component=engine") || !strings.Contains(out, "active=32") {
		t.Fatalf("unexpected log line: %q", out)
	}
}

func TestDebugLevel(t *testing.T) {
	var quiet, loud bytes.Buffer
	New(&quiet, false).Debug("hidden")
	New(&loud, true).Debug("shown")
	if quiet.Len() != 0 {
		t.Fatalf("debug record written at info level: %q", quiet.String())
	}
	if !strings.Contains(loud.String(), "shown") {
		t.Fatalf("debug record missing at debug level")
	}
}

func TestOpenFileCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	f, err := OpenFile(dir, "grainscope.log")
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer f.Close()
	if _, err := os.Stat(filepath.Join(dir, "grainscope.log")); err != nil {
		t.Fatalf("log file not created: %v", err)
	}
}
