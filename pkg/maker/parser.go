package maker

import (
	"encoding/json"

	"github.com/nnmtech/verisynthos/pkg/apperrors"
)

// ExtractLastJSONObject locates the final complete top-level brace-matched
// object in text by scanning from the end, the way samplers frequently
// trail commentary after the payload and the parser must still find it.
// It returns the substring of the matched object, or false if none is
// found.
func ExtractLastJSONObject(text string) (string, bool) {
	depth := 0
	end := -1
	for i := len(text) - 1; i >= 0; i-- {
		switch text[i] {
		case '}':
			if depth == 0 {
				end = i + 1
			}
			depth++
		case '{':
			depth--
			if depth == 0 && end != -1 {
				return text[i:end], true
			}
		}
	}
	return "", false
}

// StrictJSONParser builds a Parser[T] that extracts the last complete
// top-level JSON object from raw sampler output and unmarshals it into T,
// red-flagging on any failure (no repair, no partial acceptance) — the
// same strict-parse-or-discard contract as the original MAKER
// implementation this engine is modeled on.
func StrictJSONParser[T any]() Parser[T] {
	return func(raw string) (T, error) {
		var zero T
		obj, ok := ExtractLastJSONObject(raw)
		if !ok {
			return zero, apperrors.New(apperrors.RedFlag, "no complete JSON object found in sampler output")
		}
		var value T
		if err := json.Unmarshal([]byte(obj), &value); err != nil {
			return zero, apperrors.Wrap(apperrors.RedFlag, "invalid JSON/schema", err)
		}
		return value, nil
	}
}
