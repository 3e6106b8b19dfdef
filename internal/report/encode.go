package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// VolatileFields lists per-finding fields that vary between otherwise identical
// runs. Stable encoding drops them.
var VolatileFields = []string{
	"checkedAt",
	"fromCache",
	"attempts",
}

// attemptHistory matches an external detail such as
// "2 attempts: 503 Service Unavailable, 200 OK".
var attemptHistory = regexp.MustCompile(`^\d+ attempts?: (.*)$`)

// finalOutcome reduces an attempt history to its last entry, so a verdict
// reached on a retry reads the same as one reached first time.
func finalOutcome(detail string) string {
	m := attemptHistory.FindStringSubmatch(detail)
	if m == nil {
		return detail
	}
	history := m[1]
	if i := strings.LastIndex(history, ", "); i >= 0 {
		return history[i+2:]
	}
	return history
}

// EncodeOptions controls JSON output.
type EncodeOptions struct {
	Indent string // Empty for compact output
	Stable bool   // Drop VolatileFields and attempt histories so identical verdicts give identical bytes
}

// Encode writes rep as JSON followed by a newline.
func Encode(w io.Writer, rep *Report, opts EncodeOptions) error {
	data, err := Marshal(rep, opts)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// Marshal encodes rep as JSON. HTML characters are not escaped so URLs stay
// readable.
func Marshal(rep *Report, opts EncodeOptions) ([]byte, error) {
	var v any = rep
	if opts.Stable {
		normalized, err := stripVolatile(rep)
		if err != nil {
			return nil, err
		}
		v = normalized
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if opts.Indent != "" {
		enc.SetIndent("", opts.Indent)
	}
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}

	// Remove the trailing newline added by Encode
	out := buf.Bytes()
	if len(out) > 0 && out[len(out)-1] == '\n' {
		out = out[:len(out)-1]
	}
	return out, nil
}

// stripVolatile round-trips rep through a generic map so keys come out sorted,
// then removes VolatileFields from every finding and reduces external details
// to the final outcome.
func stripVolatile(rep *Report) (map[string]any, error) {
	raw, err := json.Marshal(rep)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var parsed map[string]any
	if err := dec.Decode(&parsed); err != nil {
		return nil, err
	}

	if findings, ok := parsed["findings"].([]any); ok {
		for _, f := range findings {
			obj, ok := f.(map[string]any)
			if !ok {
				continue
			}
			for _, field := range VolatileFields {
				removeNestedField(obj, field)
			}
			if detail, ok := obj["detail"].(string); ok && obj["kind"] == "external" {
				obj["detail"] = finalOutcome(detail)
			}
		}
	}
	return parsed, nil
}

// removeNestedField removes a field from a map using dot notation
// e.g., "location.slug" removes "slug" from the "location" object
func removeNestedField(data map[string]any, path string) {
	parts := strings.Split(path, ".")
	current := data
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			return
		}
		current = next
	}
	delete(current, parts[len(parts)-1])
}

// CompareStable reports whether two reports are identical once volatile
// fields are removed.
func CompareStable(a, b *Report) (bool, error) {
	ja, err := Marshal(a, EncodeOptions{Stable: true})
	if err != nil {
		return false, err
	}
	jb, err := Marshal(b, EncodeOptions{Stable: true})
	if err != nil {
		return false, err
	}
	return bytes.Equal(ja, jb), nil
}
