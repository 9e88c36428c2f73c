package source

import (
	"bufio"
	"bytes"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Detect resolves the format of raw from the file extension, then from its
// content. Anything unrecognised is read as delimited text.
func Detect(raw []byte, filename string) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		return XLSX
	case ".json":
		return JSON
	case ".tsv", ".tab":
		return TSV
	case ".csv":
		return CSV
	}

	mtype := mimetype.Detect(raw)
	switch {
	case mtype.Is("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"), mtype.Is("application/zip"):
		return XLSX
	case mtype.Is("application/json"):
		return JSON
	}

	text := bytes.TrimPrefix(raw, utf8BOM)
	if trimmed := bytes.TrimSpace(text); len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return JSON
	}
	if firstLine := firstNonBlankLine(text); strings.Count(firstLine, "\t") > strings.Count(firstLine, ",") {
		return TSV
	}
	return CSV
}

func firstNonBlankLine(text []byte) string {
	sc := bufio.NewScanner(bytes.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if line := sc.Text(); strings.TrimSpace(line) != "" {
			return line
		}
	}
	return ""
}
