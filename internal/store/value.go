package store

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"shelf/internal/errs"
)

// Type tags a value crossing the adapter boundary. The tagged union
// replaces loosely-typed values so encode/decode logic is exhaustive
// rather than probed at runtime.
type Type string

const (
	TypeJSON   Type = "json"
	TypeText   Type = "text"
	TypeBinary Type = "binary"
)

// Value is a tagged payload: exactly one of the three fields matching
// Type is meaningful.
type Value struct {
	Type   Type
	JSON   json.RawMessage
	Text   string
	Binary []byte
}

// JSONValue wraps a raw JSON document.
func JSONValue(raw json.RawMessage) Value {
	return Value{Type: TypeJSON, JSON: raw}
}

// TextValue wraps a plain string.
func TextValue(s string) Value {
	return Value{Type: TypeText, Text: s}
}

// BinaryValue wraps raw bytes.
func BinaryValue(b []byte) Value {
	return Value{Type: TypeBinary, Binary: b}
}

// ParseBinaryInput accepts either a data-URL-style string
// ("data:<mime>;base64,<payload>") or raw bytes passed through as-is,
// returning the decoded bytes and the content type when the input
// carried one.
func ParseBinaryInput(input []byte) ([]byte, string, error) {
	s := string(input)
	if !strings.HasPrefix(s, "data:") {
		return input, "", nil
	}

	comma := strings.IndexByte(s, ',')
	if comma < 0 {
		return nil, "", errs.Invalid("data url missing payload separator")
	}

	header := s[len("data:"):comma]
	payload := s[comma+1:]

	contentType, _, _ := strings.Cut(header, ";")
	if !strings.Contains(header, "base64") {
		return []byte(payload), contentType, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", errs.Invalid("data url payload is not valid base64: %v", err)
	}
	return decoded, contentType, nil
}

// encode serializes a value to the bytes and content type that get
// persisted. JSON values force application/json; the caller's content
// type wins for text and binary when provided.
func encode(v Value, contentType string) ([]byte, string, error) {
	switch v.Type {
	case TypeJSON:
		if !json.Valid(v.JSON) {
			return nil, "", errs.Invalid("value is not valid JSON")
		}
		return []byte(v.JSON), "application/json", nil
	case TypeText:
		if contentType == "" {
			contentType = "text/plain; charset=utf-8"
		}
		return []byte(v.Text), contentType, nil
	case TypeBinary:
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		return v.Binary, contentType, nil
	default:
		return nil, "", errs.Invalid("unknown value type %q", v.Type)
	}
}

// decode rebuilds a value from persisted bytes using the recorded
// content type. A JSON-typed object that no longer parses degrades to
// its binary form instead of failing the whole read: the payload may
// have been mislabeled, and refusing to return it is worse than
// returning it untyped.
func decode(data []byte, contentType string) Value {
	mime, _, _ := strings.Cut(contentType, ";")
	mime = strings.TrimSpace(mime)

	switch {
	case mime == "application/json":
		if json.Valid(data) {
			return JSONValue(json.RawMessage(data))
		}
		return BinaryValue(data)
	case strings.HasPrefix(mime, "text/"):
		return TextValue(string(data))
	default:
		return BinaryValue(data)
	}
}

// Preview returns a short human-readable rendering of the value for
// listings and substring search. Binary values render as a base64
// prefix.
func (v Value) Preview(limit int) string {
	if limit <= 0 {
		limit = 100
	}

	var s string
	switch v.Type {
	case TypeJSON:
		s = string(v.JSON)
	case TypeText:
		s = v.Text
	default:
		s = base64.StdEncoding.EncodeToString(v.Binary)
	}

	if len(s) > limit {
		return s[:limit]
	}
	return s
}
