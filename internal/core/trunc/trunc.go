// Package trunc implements the tool-result truncation rule shared by
// the Worker Runtime and the Orchestrator Loop: when a serialized
// result exceeds MaxResultLength, recognized large fields are trimmed
// first, then the whole envelope is hard-truncated if still oversized.
package trunc

import (
	"fmt"

	"github.com/bytedance/sonic"
)

// MaxResultLength is the hard cap on a serialized tool result.
const MaxResultLength = 3000

// fieldCap is how much of a recognized large field survives before the
// "[truncated N chars]" marker is appended.
const fieldCap = 500

// largeFields are the envelope keys eligible for per-field truncation.
var largeFields = []string{
	"stdout", "stderr", "content", "diff", "output", "body", "html", "text", "log", "logs",
}

// Result serializes v to a string. A result within MaxResultLength is
// returned unchanged; a longer one gets the two-stage truncation rule:
// first each recognized large field is capped to its first 500 chars
// with a trailing "[truncated N chars]" note, then — if the whole
// envelope is still over MaxResultLength — it is hard-truncated.
func Result(v any) string {
	serialized := serialize(v)
	if len(serialized) <= MaxResultLength {
		return serialized
	}

	if m, ok := v.(map[string]any); ok {
		truncatedAny := false
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[k] = val
		}
		for _, field := range largeFields {
			s, ok := out[field].(string)
			if !ok || len(s) <= fieldCap {
				continue
			}
			remaining := len(s) - fieldCap
			out[field] = fmt.Sprintf("%s[truncated %d chars]", s[:fieldCap], remaining)
			truncatedAny = true
		}
		if truncatedAny {
			serialized = serialize(out)
		}
	}

	if len(serialized) <= MaxResultLength {
		return serialized
	}
	return serialized[:MaxResultLength]
}

func serialize(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := sonic.MarshalString(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return b
}
