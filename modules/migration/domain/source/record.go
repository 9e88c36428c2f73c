package source

import (
	"bytes"
	"encoding/json"
)

// Record is one source row. Keys keep their header or document order.
type Record struct {
	keys   []string
	values map[string]string
}

// NewRecord pairs keys with values by position. A repeated key keeps its
// first position and its last value.
func NewRecord(keys, values []string) Record {
	r := Record{
		keys:   make([]string, 0, len(keys)),
		values: make(map[string]string, len(keys)),
	}
	for i, k := range keys {
		v := ""
		if i < len(values) {
			v = values[i]
		}
		r.set(k, v)
	}
	return r
}

func (r *Record) set(key, value string) {
	if r.values == nil {
		r.values = make(map[string]string)
	}
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

// Get returns "" for absent keys.
func (r Record) Get(key string) string {
	return r.values[key]
}

func (r Record) Lookup(key string) (string, bool) {
	v, ok := r.values[key]
	return v, ok
}

func (r Record) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

func (r Record) Len() int {
	return len(r.keys)
}

func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(r.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
