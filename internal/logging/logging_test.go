package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestNew_EmptyPathIsNop(t *testing.T) {
	l, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if l.Core().Enabled(zap.ErrorLevel) {
		t.Fatalf("expected a no-op logger")
	}
}

func TestNew_WritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "debug.log")
	l, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Debug("applied op", zap.String("kind", "add-node"))
	_ = l.Sync()

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(b), `"msg":"applied op"`) || !strings.Contains(string(b), `"kind":"add-node"`) {
		t.Fatalf("unexpected log content: %s", b)
	}
}

func TestResolve_EnvWins(t *testing.T) {
	t.Setenv(EnvDebugLog, "")
	if got := Resolve("/from/config"); got != "/from/config" {
		t.Fatalf("Resolve = %q", got)
	}
	t.Setenv(EnvDebugLog, "/from/env")
	if got := Resolve("/from/config"); got != "/from/env" {
		t.Fatalf("Resolve = %q", got)
	}
}
