package core

// parse.go decodes an uploaded xlsx workbook into row maps keyed by the
// dataset's target field names.
//
// Two hard limits apply before any validation: the data row count must not
// exceed the dataset's cap, and a sheet with no data rows is rejected. Any
// decode failure is reported as a single generic unreadable-file error so the
// user can simply pick another file.

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ParseWorkbook reads the first sheet of an xlsx workbook into one RowData
// per data row. Cells are matched to columns by header text,
// case-insensitively; headers with no matching column are ignored.
func ParseWorkbook(r io.Reader, def DatasetDefinition) ([]RowData, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableFile, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrUnreadableFile
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableFile, err)
	}
	if len(rows) == 0 {
		return nil, ErrEmptySheet
	}

	idx := makeHeaderIndex(rows[0])
	data := trimTrailingEmpty(rows[1:])

	if len(data) == 0 {
		return nil, ErrEmptySheet
	}

	maxRows := def.MaxRows
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	if len(data) > maxRows {
		return nil, &RowLimitError{Count: len(data), Max: maxRows}
	}

	out := make([]RowData, len(data))
	for i, cells := range data {
		row := make(RowData, len(def.Columns))
		for _, col := range def.Columns {
			pos, ok := idx[strings.ToLower(CleanCell(col.Header))]
			if ok && pos < len(cells) {
				row[col.Field] = cells[pos]
			}
		}
		out[i] = row
	}

	return out, nil
}

// trimTrailingEmpty drops fully-empty rows from the end of the sheet.
// Interior empty rows are kept so reported row numbers keep matching the
// spreadsheet.
func trimTrailingEmpty(rows [][]string) [][]string {
	end := len(rows)
	for end > 0 && isEmptyRow(rows[end-1]) {
		end--
	}
	return rows[:end]
}

func isEmptyRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
