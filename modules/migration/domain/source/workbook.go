package source

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// parseWorkbook reads the first worksheet with the delimited fill rules.
func parseWorkbook(raw []byte) ([]Record, error) {
	f, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableWorkbook, err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: no worksheets", ErrUnreadableWorkbook)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableWorkbook, err)
	}

	table := make([][]string, 0, len(rows))
	for _, row := range rows {
		if blankRow(row) {
			continue
		}
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = trimCell(c)
		}
		table = append(table, cells)
	}
	return recordsFromTable(table), nil
}
