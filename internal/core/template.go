package core

// template.go builds downloadable xlsx templates for a dataset: a styled
// header row, one sample row, header-sized column widths, and list-type data
// validation for enum columns.
//
// Dropdown constraints cover the fixed block of data rows 2-1000. Excel caps
// inline drop lists at 255 characters; longer option lists are written to a
// hidden sheet and referenced by range instead.

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/xuri/excelize/v2"
)

// dropdownLastRow is the last data row covered by list validation.
const dropdownLastRow = 1000

// inlineListLimit is Excel's character budget for an inline drop list.
const inlineListLimit = 255

// optionSheet holds out-of-line dropdown values, hidden from the user.
const optionSheet = "_options"

// WriteTemplate generates the dataset's upload template and writes the
// workbook to w. Dropdown generators are invoked before assembly; a failing
// generator only costs that column its dropdown.
func WriteTemplate(ctx context.Context, def DatasetDefinition, w io.Writer) error {
	f, err := BuildTemplate(ctx, def)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

// BuildTemplate assembles the template workbook in memory.
func BuildTemplate(ctx context.Context, def DatasetDefinition) (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := def.SheetName
	if sheet == "" {
		sheet = def.Key
	}
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	headers := make([]interface{}, len(def.Columns))
	samples := make([]interface{}, len(def.Columns))
	for i, col := range def.Columns {
		headers[i] = col.Header
		samples[i] = col.Sample
	}

	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return nil, fmt.Errorf("write header row: %w", err)
	}
	if err := f.SetSheetRow(sheet, "A2", &samples); err != nil {
		return nil, fmt.Errorf("write sample row: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#FFFFFF", Size: 11},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#2F5496"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "#000000", Style: 1},
			{Type: "top", Color: "#000000", Style: 1},
			{Type: "bottom", Color: "#000000", Style: 1},
			{Type: "right", Color: "#000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}

	lastCol, err := excelize.ColumnNumberToName(len(def.Columns))
	if err != nil {
		return nil, fmt.Errorf("column name: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", lastCol+"1", headerStyle); err != nil {
		return nil, fmt.Errorf("apply header style: %w", err)
	}

	optionCol := 0
	for i, col := range def.Columns {
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, fmt.Errorf("column name: %w", err)
		}

		width := col.Width
		if width == 0 {
			width = float64(len(col.Header)) + 4
			if width < 10 {
				width = 10
			}
		}
		if err := f.SetColWidth(sheet, name, name, width); err != nil {
			return nil, fmt.Errorf("column width: %w", err)
		}

		values := dropdownValues(ctx, def, col)
		if len(values) == 0 {
			continue
		}

		dv := excelize.NewDataValidation(true)
		dv.AllowBlank = !col.Rules.Required
		dv.Sqref = fmt.Sprintf("%s2:%s%d", name, name, dropdownLastRow)
		dv.SetInput(col.Header, "Select a value from the list")
		dv.SetError(excelize.DataValidationErrorStyleStop, "Invalid value",
			fmt.Sprintf("%s must be one of the listed values", col.Header))

		if inlineListLength(values) <= inlineListLimit {
			if err := dv.SetDropList(values); err != nil {
				return nil, fmt.Errorf("drop list for %s: %w", col.Header, err)
			}
		} else {
			optionCol++
			ref, err := writeOptionColumn(f, optionCol, values)
			if err != nil {
				return nil, fmt.Errorf("option sheet for %s: %w", col.Header, err)
			}
			dv.SetSqrefDropList(ref)
		}

		if err := f.AddDataValidation(sheet, dv); err != nil {
			return nil, fmt.Errorf("data validation for %s: %w", col.Header, err)
		}
	}

	return f, nil
}

// dropdownValues resolves a column's dropdown list. A generator takes
// precedence over the static list; generator failure means no dropdown.
func dropdownValues(ctx context.Context, def DatasetDefinition, col ColumnDefinition) []string {
	if col.Options != nil {
		values, err := col.Options(ctx)
		if err != nil {
			slog.Warn("dropdown generator failed, column gets no dropdown",
				"dataset", def.Key,
				"column", col.Header,
				"error", err,
			)
			return nil
		}
		return values
	}
	return col.OneOf
}

// inlineListLength returns the character count of the comma-joined list form
// Excel stores for an inline drop list.
func inlineListLength(values []string) int {
	n := 0
	for _, v := range values {
		n += len(v) + 1
	}
	return n
}

// writeOptionColumn writes values into the hidden option sheet's nth column
// and returns the absolute range reference for SetSqrefDropList.
func writeOptionColumn(f *excelize.File, n int, values []string) (string, error) {
	if idx, err := f.GetSheetIndex(optionSheet); err != nil {
		return "", err
	} else if idx == -1 {
		if _, err := f.NewSheet(optionSheet); err != nil {
			return "", err
		}
		if err := f.SetSheetVisible(optionSheet, false); err != nil {
			return "", err
		}
	}

	name, err := excelize.ColumnNumberToName(n)
	if err != nil {
		return "", err
	}

	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	if err := f.SetSheetCol(optionSheet, name+"1", &cells); err != nil {
		return "", err
	}

	return fmt.Sprintf("%s!$%s$1:$%s$%d", optionSheet, name, name, len(values)), nil
}
