package llm

import (
	"context"
	"os/exec"
	"strings"
	"testing"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestParseCommand(t *testing.T) {
	rt, err := ParseCommand("  llama-cli -m {model} --temp {temperature}  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rt.Path != "llama-cli" {
		t.Errorf("expected path llama-cli, got %q", rt.Path)
	}
	if len(rt.Args) != 4 || rt.Args[1] != "{model}" {
		t.Errorf("unexpected args %v", rt.Args)
	}

	if _, err := ParseCommand("   "); err == nil {
		t.Error("expected error for empty command")
	}
}

func TestCommandRuntime_ThroughLocal(t *testing.T) {
	requireShell(t)
	rt := CommandRuntime{Path: "sh", Args: []string{"-c", "cat; echo ' {model} {temperature} {max_tokens}'"}}

	got, err := NewLocal(rt).Invoke(context.Background(), "PROMPT", "small", Options{Temperature: 0.1, MaxTokens: 64})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "PROMPT small 0.1 64\n" {
		t.Errorf("unexpected output %q", got)
	}
}

func TestCommandRuntime_Failure(t *testing.T) {
	requireShell(t)
	rt := CommandRuntime{Path: "sh", Args: []string{"-c", "echo 'model file missing' >&2; exit 3"}}

	_, err := NewLocal(rt).Invoke(context.Background(), "p", "small", Options{})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "model file missing") {
		t.Errorf("expected stderr in error, got %v", err)
	}
	if !IsKind(err, KindUnknown) {
		t.Errorf("expected KindUnknown, got %v", err)
	}
}
