package source

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// parseJSON accepts one object or an array of objects. Scalars keep their
// JSON text, null becomes "" and nested values become compact JSON.
func parseJSON(text string) ([]Record, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, malformed(err)
	}

	var out []Record
	switch tok {
	case json.Delim('{'):
		rec, err := readObject(dec)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	case json.Delim('['):
		for i := 0; dec.More(); i++ {
			tok, err := dec.Token()
			if err != nil {
				return nil, malformed(err)
			}
			if tok != json.Delim('{') {
				return nil, fmt.Errorf("%w: element %d is not an object", ErrMalformedJSON, i)
			}
			rec, err := readObject(dec)
			if err != nil {
				return nil, err
			}
			out = append(out, rec)
		}
		if _, err := dec.Token(); err != nil {
			return nil, malformed(err)
		}
	default:
		return nil, fmt.Errorf("%w: top-level value must be an object or an array of objects", ErrMalformedJSON)
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: unexpected data after top-level value", ErrMalformedJSON)
	}
	return out, nil
}

func readObject(dec *json.Decoder) (Record, error) {
	var rec Record
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return Record{}, malformed(err)
		}
		key, ok := tok.(string)
		if !ok {
			return Record{}, fmt.Errorf("%w: object key is not a string", ErrMalformedJSON)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return Record{}, malformed(err)
		}
		value, err := flattenValue(raw)
		if err != nil {
			return Record{}, err
		}
		rec.set(key, value)
	}
	if _, err := dec.Token(); err != nil {
		return Record{}, malformed(err)
	}
	if rec.values == nil {
		rec.values = map[string]string{}
	}
	return rec, nil
}

func flattenValue(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "", nil
	}
	switch trimmed[0] {
	case 'n':
		return "", nil
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", malformed(err)
		}
		return s, nil
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, trimmed); err != nil {
			return "", malformed(err)
		}
		return buf.String(), nil
	default:
		return string(trimmed), nil
	}
}

func malformed(err error) error {
	return fmt.Errorf("%w: %v", ErrMalformedJSON, err)
}
