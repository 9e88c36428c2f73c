package mapping

import (
	"bytes"
	"encoding/csv"
)

// RequiredColumns lists the source columns of required mappings in order.
func RequiredColumns(cfg Config) []string {
	out := make([]string, 0, len(cfg.FieldMappings))
	for _, m := range cfg.FieldMappings {
		if m.Required {
			out = append(out, m.Source)
		}
	}
	return out
}

// TemplateCSV renders the required columns as one CSV header line.
func TemplateCSV(cfg Config) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(RequiredColumns(cfg)); err != nil {
		return nil, err
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
