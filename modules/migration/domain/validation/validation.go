// Package validation runs the mapping over a batch and suppresses duplicate
// rows.
package validation

import (
	"strings"

	"github.com/shipos/shipos/modules/migration/domain/mapping"
	"github.com/shipos/shipos/modules/migration/domain/source"
)

// Item is a valid mapped row with its 1-based source row number.
type Item struct {
	Row    int
	Fields mapping.Row
	// Existing marks a row whose natural key is already in the target store.
	Existing bool
}

type Report struct {
	TotalRows     int                       `json:"totalRows"`
	ValidRows     int                       `json:"validRows"`
	SkippedRows   int                       `json:"skippedRows"`
	DuplicateRows int                       `json:"duplicateRows"`
	ExistingRows  int                       `json:"existingRows"`
	Errors        []mapping.ValidationError `json:"errors"`

	Items []Item `json:"-"`
}

// DedupKey is the lowercased natural key of row, "" when cfg has none or the
// field is unmapped.
func DedupKey(row mapping.Row, cfg mapping.Config) string {
	if cfg.DeduplicateOn == "" {
		return ""
	}
	return strings.ToLower(mapping.KeyString(row[cfg.DeduplicateOn]))
}

// ValidateBatch maps every record. A row with any failing required field is
// skipped whole. Among rows sharing a dedup key the first wins and the rest
// count as duplicates. Rows whose key is in existingKeys (lowercased) stay
// valid and are flagged Existing. existingKeys may be nil.
func ValidateBatch(records []source.Record, cfg mapping.Config, existingKeys map[string]struct{}) Report {
	rep := Report{
		TotalRows: len(records),
		Errors:    []mapping.ValidationError{},
		Items:     make([]Item, 0, len(records)),
	}
	seen := make(map[string]struct{})

	for i, rec := range records {
		row, errs := mapping.MapRow(rec, cfg, i+1)
		if len(errs) > 0 {
			rep.Errors = append(rep.Errors, errs...)
			rep.SkippedRows++
			continue
		}

		item := Item{Row: i + 1, Fields: row}
		if key := DedupKey(row, cfg); key != "" {
			if _, dup := seen[key]; dup {
				rep.DuplicateRows++
				continue
			}
			seen[key] = struct{}{}
			if _, ok := existingKeys[key]; ok {
				item.Existing = true
				rep.ExistingRows++
			}
		}
		rep.Items = append(rep.Items, item)
	}
	rep.ValidRows = len(rep.Items)
	return rep
}
