package source

import "strings"

// parseDelimited tokenizes CSV or TSV text. Quotes may open anywhere in a
// cell, "" inside quotes is a literal quote, and delimiters or line breaks
// inside quotes are kept. An unterminated quote runs to the end of input.
func parseDelimited(text string, delim rune) []Record {
	var (
		table    [][]string
		cells    []string
		cell     strings.Builder
		inQuotes bool
		content  bool
	)

	endCell := func() {
		cells = append(cells, strings.TrimSpace(cell.String()))
		cell.Reset()
	}
	endRecord := func() {
		endCell()
		if content && !blankLine(cells) {
			table = append(table, cells)
		}
		cells = nil
		content = false
	}

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		switch {
		case ch == '"':
			content = true
			if inQuotes && i+1 < len(runes) && runes[i+1] == '"' {
				cell.WriteRune('"')
				i++
				continue
			}
			inQuotes = !inQuotes
		case inQuotes:
			cell.WriteRune(ch)
		case ch == delim:
			if !isSpace(delim) {
				content = true
			}
			endCell()
		case ch == '\r' || ch == '\n':
			if ch == '\r' && i+1 < len(runes) && runes[i+1] == '\n' {
				i++
			}
			endRecord()
		default:
			if !isSpace(ch) {
				content = true
			}
			cell.WriteRune(ch)
		}
	}
	if content || cell.Len() > 0 {
		endRecord()
	}
	return recordsFromTable(table)
}

func isSpace(ch rune) bool {
	return ch == ' ' || ch == '\t'
}

// blankLine reports a physical record with a single whitespace-only cell.
// Rows made only of non-whitespace delimiters are kept as rows of empty cells.
func blankLine(cells []string) bool {
	return len(cells) == 1 && cells[0] == ""
}
