package logger

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInitWritesJSONAndAudit(t *testing.T) {
	dir := t.TempDir()
	appPath := filepath.Join(dir, "app.log")
	auditPath := filepath.Join(dir, "audit", "audit.log")

	if err := Init(Config{
		Level:       "debug",
		OutputPaths: []string{appPath},
		Audit:       AuditConfig{Enabled: true, Path: auditPath},
	}); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() { _ = Init(Config{OutputPaths: []string{"discard"}}) })

	Named("session").Debug("step", "tick", 3)
	Audit().Info("session.verified", "session_id", "s-1")
	if err := Sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}

	line := firstLine(t, appPath)
	var record map[string]any
	if err := json.Unmarshal([]byte(line), &record); err != nil {
		t.Fatalf("app log is not json: %v (%s)", err, line)
	}
	if record["component"] != "session" || record["msg"] != "step" {
		t.Fatalf("unexpected app record: %v", record)
	}

	auditLine := firstLine(t, auditPath)
	if !strings.Contains(auditLine, `"session_id":"s-1"`) {
		t.Fatalf("audit record missing session id: %s", auditLine)
	}
}

func TestRotatingWriterShiftsBackups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	w, err := newRotatingWriter(AuditConfig{Path: path, MaxSizeMB: 1, MaxBackups: 2})
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	w.maxSize = 8
	defer w.Close()

	for _, chunk := range []string{"aaaaaa\n", "bbbbbb\n", "cccccc\n", "dddddd\n"} {
		if _, err := w.Write([]byte(chunk)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	if got := readAll(t, path); got != "dddddd\n" {
		t.Fatalf("current file = %q", got)
	}
	if got := readAll(t, path+".1"); got != "cccccc\n" {
		t.Fatalf("backup 1 = %q", got)
	}
	if got := readAll(t, path+".2"); got != "bbbbbb\n" {
		t.Fatalf("backup 2 = %q", got)
	}
	if _, err := os.Stat(path + ".3"); !os.IsNotExist(err) {
		t.Fatalf("backup 3 should not exist")
	}
}

func TestParseLevel(t *testing.T) {
	if parseLevel(" WARNING ").String() != "WARN" {
		t.Fatalf("warning should map to WARN")
	}
	if parseLevel("bogus").String() != "INFO" {
		t.Fatalf("unknown levels default to INFO")
	}
}

func firstLine(t *testing.T, path string) string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		t.Fatalf("%s is empty", path)
	}
	return scanner.Text()
}

func readAll(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}
