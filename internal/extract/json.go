package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// extractJSON flattens a JSON document into text. A top-level object becomes one
// "key: value" line per key in file order, with nested objects and arrays
// pretty-printed. A top-level array becomes one pretty-printed item per line.
// A top-level scalar is returned as is.
func extractJSON(content []byte) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(content))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return "", fmt.Errorf("parse JSON: %w", err)
	}

	var parts []string
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return "", fmt.Errorf("parse JSON: %w", err)
				}
				key, _ := keyTok.(string)
				var raw json.RawMessage
				if err := dec.Decode(&raw); err != nil {
					return "", fmt.Errorf("parse JSON value for %q: %w", key, err)
				}
				value, err := renderValue(raw)
				if err != nil {
					return "", err
				}
				parts = append(parts, key+": "+value)
			}
		case '[':
			for dec.More() {
				var raw json.RawMessage
				if err := dec.Decode(&raw); err != nil {
					return "", fmt.Errorf("parse JSON array item: %w", err)
				}
				item, err := indentJSON(raw)
				if err != nil {
					return "", err
				}
				parts = append(parts, item)
			}
		}
		if _, err := dec.Token(); err != nil {
			return "", fmt.Errorf("parse JSON: %w", err)
		}
	case string:
		return t, nil
	case nil:
		return "null", nil
	default:
		return fmt.Sprint(t), nil
	}
	return strings.Join(parts, "\n"), nil
}

// renderValue prints strings without quotes, containers indented, and other scalars verbatim.
func renderValue(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "", nil
	}
	switch trimmed[0] {
	case '{', '[':
		return indentJSON(trimmed)
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", fmt.Errorf("parse JSON string: %w", err)
		}
		return s, nil
	default:
		return string(trimmed), nil
	}
}

func indentJSON(raw json.RawMessage) (string, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return "", fmt.Errorf("format JSON: %w", err)
	}
	return buf.String(), nil
}
