package mapping

import (
	"fmt"
	"strings"

	"github.com/shipos/shipos/modules/migration/domain/source"
)

// Row maps target field names to string or float64 values.
type Row map[string]any

func (r Row) String(field string) string {
	return KeyString(r[field])
}

func (r Row) Has(field string) bool {
	_, ok := r[field]
	return ok
}

type ValidationError struct {
	Row     int    `json:"row"`
	Field   string `json:"field"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

// MapRow applies cfg's mappings in declared order. A whitespace-only value
// is empty; the default replaces it before the required check, and an empty
// optional field is left out of the row.
func MapRow(rec source.Record, cfg Config, row int) (Row, []ValidationError) {
	mapped := make(Row, len(cfg.FieldMappings))
	var errs []ValidationError
	for _, m := range cfg.FieldMappings {
		value := strings.TrimSpace(rec.Get(m.Source))
		if value == "" && m.Default != "" {
			value = m.Default
		}
		if value == "" {
			if m.Required {
				errs = append(errs, ValidationError{
					Row:     row,
					Field:   m.Source,
					Value:   "",
					Message: fmt.Sprintf(`Required field "%s" is empty`, m.Source),
				})
			}
			continue
		}
		mapped[m.Target] = ApplyTransform(value, m.Transform)
	}
	return mapped, errs
}
