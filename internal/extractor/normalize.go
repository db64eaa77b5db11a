package extractor

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Normalize repairs, parses and normalizes a raw model reply into a Record.
func Normalize(raw string) (Record, error) {
	obj, err := decodeReply(raw)
	if err != nil {
		return Record{}, err
	}
	return normalizeObject(obj), nil
}

func decodeReply(raw string) (map[string]any, error) {
	v, err := parseReply(raw)
	if err != nil {
		return nil, err
	}
	if err := replySchema.Validate(v); err != nil {
		return nil, fmt.Errorf("reply is not a JSON object: got %s", jsonKind(v))
	}
	return v.(map[string]any), nil
}

func jsonKind(v any) string {
	switch v.(type) {
	case []any:
		return "array"
	case string:
		return "string"
	case json.Number:
		return "number"
	case bool:
		return "boolean"
	case nil:
		return "null"
	}
	return "object"
}

// normalizeObject looks each field up by exact key. Absent or null fields
// become NotAvailable, lists stay lists and everything else becomes text.
func normalizeObject(obj map[string]any) Record {
	var rec Record
	for _, f := range Fields {
		v, ok := obj[f]
		if !ok || v == nil {
			rec.set(f, TextValue(NotAvailable))
			continue
		}
		if items, isList := v.([]any); isList {
			out := make([]string, 0, len(items))
			for _, item := range items {
				if item == nil {
					continue
				}
				out = append(out, stringify(item))
			}
			rec.set(f, ListValue(out...))
			continue
		}
		rec.set(f, TextValue(stringify(v)))
	}
	return rec
}

// stringify coerces a decoded JSON value to text. Objects and nested lists
// are rendered as compact JSON.
func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}
