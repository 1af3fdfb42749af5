package llm

import (
	"encoding/json"
	"reflect"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrNoJSON is returned when no JSON object can be decoded from model output.
var ErrNoJSON = eris.New("llm: no json object in model output")

// CleanJSONBlock strips a surrounding markdown code fence, with or without
// a language tag.
func CleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if idx := strings.Index(text, "\n"); idx >= 0 {
		first := text[:idx]
		if len(first) < 20 && !strings.ContainsAny(first, " {[") {
			text = text[idx+1:]
		}
	}
	if idx := strings.LastIndex(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}

// DecodeJSON decodes a JSON object from raw model output into v, which must
// be a non-nil pointer. It tries the whole (fence-stripped) text, then the
// first balanced {...} substring. Each attempt decodes into a fresh value, so
// v is only written when an attempt succeeds completely.
func DecodeJSON(raw string, v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return eris.New("llm: decode target must be a non-nil pointer")
	}

	for _, candidate := range jsonCandidates(CleanJSONBlock(raw)) {
		fresh := reflect.New(rv.Type().Elem())
		if err := json.Unmarshal([]byte(candidate), fresh.Interface()); err != nil {
			continue
		}
		rv.Elem().Set(fresh.Elem())
		return nil
	}
	return ErrNoJSON
}

// jsonCandidates returns the texts worth decoding: the whole text when it is
// an object, then the balanced object starting at the first brace.
func jsonCandidates(text string) []string {
	var out []string
	if strings.HasPrefix(text, "{") {
		out = append(out, text)
	}
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return out
	}
	if end := matchBrace(text, start); end > start {
		if obj := text[start : end+1]; len(out) == 0 || obj != out[0] {
			out = append(out, obj)
		}
	}
	return out
}

// DecodeOr decodes raw into a T, returning fallback and false when nothing
// decodes.
func DecodeOr[T any](raw string, fallback T) (T, bool) {
	var v T
	if err := DecodeJSON(raw, &v); err != nil {
		return fallback, false
	}
	return v, true
}

// matchBrace returns the index of the brace closing the one at start, or -1.
// Braces inside JSON strings are ignored.
func matchBrace(s string, start int) int {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
