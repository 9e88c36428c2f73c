// Package source turns raw legacy exports into ordered flat records.
package source

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

type Format string

const (
	CSV  Format = "csv"
	TSV  Format = "tsv"
	JSON Format = "json"
	XLSX Format = "xlsx"
	// Auto is resolved with Detect before parsing.
	Auto Format = "auto"
)

var (
	ErrMalformedJSON      = errors.New("malformed JSON source")
	ErrUnsupportedFormat  = errors.New("unsupported source format")
	ErrUnreadableWorkbook = errors.New("unreadable workbook")
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case CSV, TSV, JSON, XLSX, Auto:
		return f, nil
	case "":
		return Auto, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// Parse reads raw in the given format. Only malformed JSON and unreadable
// workbooks fail; delimited input always degrades to empty cells.
func Parse(raw []byte, format Format) ([]Record, error) {
	if format == Auto || format == "" {
		format = Detect(raw, "")
	}
	switch format {
	case XLSX:
		return parseWorkbook(raw)
	case CSV:
		return parseDelimited(decodeText(raw), ','), nil
	case TSV:
		return parseDelimited(decodeText(raw), '\t'), nil
	case JSON:
		return parseJSON(decodeText(raw))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// decodeText strips a UTF-8 BOM and reads non UTF-8 input as Windows-1252.
func decodeText(raw []byte) string {
	raw = bytes.TrimPrefix(raw, utf8BOM)
	if utf8.Valid(raw) {
		return string(raw)
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(raw)
	if err != nil {
		return strings.ToValidUTF8(string(raw), "�")
	}
	return string(decoded)
}

// recordsFromTable uses the first row as header and fills short rows with "".
func recordsFromTable(table [][]string) []Record {
	if len(table) == 0 {
		return nil
	}
	header := table[0]
	out := make([]Record, 0, len(table)-1)
	for _, cells := range table[1:] {
		values := make([]string, len(header))
		copy(values, cells)
		out = append(out, NewRecord(header, values))
	}
	return out
}

func trimCell(s string) string {
	return strings.TrimSpace(s)
}

func blankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
