package trunc

import (
	"strings"
	"testing"
)

func TestResultTruncatesLargeFields(t *testing.T) {
	v := map[string]any{
		"stdout": strings.Repeat("x", 2000),
		"body":   strings.Repeat("y", 2000),
	}
	out := Result(v)
	if len(out) > MaxResultLength {
		t.Fatalf("expected output <= %d chars, got %d", MaxResultLength, len(out))
	}
	if !strings.Contains(out, "[truncated") {
		t.Fatalf("expected a truncation marker in output: %s", out)
	}
}

func TestResultPassesThroughSmallPayload(t *testing.T) {
	v := map[string]any{"ok": true}
	out := Result(v)
	if strings.Contains(out, "truncated") {
		t.Fatalf("small payload should not be marked truncated: %s", out)
	}
}

func TestResultDoesNotTruncateFieldsUnderOverallCap(t *testing.T) {
	v := map[string]any{"stdout": strings.Repeat("z", 600)}
	out := Result(v)
	if len(out) > MaxResultLength {
		t.Fatalf("expected output <= %d chars, got %d", MaxResultLength, len(out))
	}
	if strings.Contains(out, "[truncated") {
		t.Fatalf("field truncation should only apply once the overall envelope exceeds MaxResultLength: %s", out)
	}
	if !strings.Contains(out, strings.Repeat("z", 600)) {
		t.Fatalf("expected the 600-char field to survive intact: %s", out)
	}
}

func TestResultStringPassthrough(t *testing.T) {
	out := Result("plain string result")
	if out != "plain string result" {
		t.Fatalf("expected string passthrough, got %q", out)
	}
}
