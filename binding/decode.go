package binding

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// maxDecodeDepth bounds how many layers of JSON-in-a-string are unwrapped.
const maxDecodeDepth = 4

// ErrMalformed is returned when dataset headers or rows cannot be decoded.
var ErrMalformed = errors.New("binding: malformed dataset")

// DecodeHeaders accepts headers as a []string, a []any of strings, or their
// JSON encoding as string, []byte or json.RawMessage. A JSON string whose
// content is itself JSON is unwrapped too, since datasets stored in a text
// column may have been encoded twice on the way in.
func DecodeHeaders(raw any) ([]string, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case []string:
		return v, nil
	case []any:
		out := make([]string, len(v))
		for i, h := range v {
			s, ok := h.(string)
			if !ok {
				return nil, fmt.Errorf("%w: header %d is %T, not a string", ErrMalformed, i, h)
			}
			out[i] = s
		}
		return out, nil
	}

	data, err := unwrapJSON(raw)
	if err != nil {
		return nil, err
	}
	var out []string
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: decoding headers: %v", ErrMalformed, err)
	}
	return out, nil
}

// DecodeRows accepts rows as [][]any, [][]string, []any of []any, or their
// JSON encoding (possibly double encoded) as string, []byte or json.RawMessage.
// Numbers decoded from JSON keep their literal text via json.Number.
func DecodeRows(raw any) ([][]any, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case [][]any:
		return v, nil
	case [][]string:
		out := make([][]any, len(v))
		for i, row := range v {
			cells := make([]any, len(row))
			for j, c := range row {
				cells[j] = c
			}
			out[i] = cells
		}
		return out, nil
	case []any:
		out := make([][]any, len(v))
		for i, row := range v {
			switch r := row.(type) {
			case []any:
				out[i] = r
			case []string:
				cells := make([]any, len(r))
				for j, c := range r {
					cells[j] = c
				}
				out[i] = cells
			default:
				return nil, fmt.Errorf("%w: row %d is %T, not an array", ErrMalformed, i, row)
			}
		}
		return out, nil
	}

	data, err := unwrapJSON(raw)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out [][]any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decoding rows: %v", ErrMalformed, err)
	}
	return out, nil
}

// unwrapJSON returns the JSON array text held by raw, peeling off layers of
// JSON string encoding.
func unwrapJSON(raw any) ([]byte, error) {
	var data []byte
	switch v := raw.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		return nil, fmt.Errorf("%w: unsupported type %T", ErrMalformed, raw)
	}

	for depth := 0; ; depth++ {
		trimmed := bytes.TrimSpace(data)
		if len(trimmed) == 0 {
			return nil, fmt.Errorf("%w: empty input", ErrMalformed)
		}
		if trimmed[0] != '"' {
			return trimmed, nil
		}
		if depth >= maxDecodeDepth {
			return nil, fmt.Errorf("%w: too many levels of string encoding", ErrMalformed)
		}
		var inner string
		if err := json.Unmarshal(trimmed, &inner); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		data = []byte(strings.TrimSpace(inner))
	}
}
