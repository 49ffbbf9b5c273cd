package core

// validate.go applies per-column rules and the whole-row validator to parsed
// spreadsheet rows.
//
// Rules run in a fixed order and stop at the first failure, so a cell never
// carries more than one error at a time:
//
//	required -> number -> positive -> non-negative -> min -> max
//	         -> min length -> max length -> enum -> custom predicate
//
// Validation is sequential, row by row and column by column, so custom
// validators with side effects run in a deterministic order and error lists
// come out stable.

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"
)

// headerOffset converts a zero-based data row index to the row's position in
// the spreadsheet (1-based, after the header row).
func headerOffset(index int) int {
	return index + 2
}

// ValidateRows validates every parsed row against the dataset definition.
// The returned slice parallels rows; each element's Data holds the coerced
// and transformed values.
func ValidateRows(ctx context.Context, def DatasetDefinition, rows []RowData) []*ValidatedRow {
	out := make([]*ValidatedRow, len(rows))
	for i, row := range rows {
		out[i] = validateRow(ctx, def, row, i)
	}
	return out
}

// validateRow runs the full pipeline for one row.
func validateRow(ctx context.Context, def DatasetDefinition, data RowData, index int) *ValidatedRow {
	row := &ValidatedRow{
		Row:  headerOffset(index),
		Data: make(RowData, len(def.Columns)),
	}

	for _, col := range def.Columns {
		clean, msg := checkCell(ctx, def, col, data[col.Field], data)
		row.Data[col.Field] = clean
		if msg != "" {
			row.Errors = append(row.Errors, ValidationError{
				Row:     row.Row,
				Field:   col.Field,
				Message: msg,
			})
		}
	}

	if def.ValidateRow != nil {
		for _, e := range def.ValidateRow(row.Data, index) {
			if e.Row == 0 {
				e.Row = row.Row
			}
			row.Errors = append(row.Errors, e)
		}
	}

	row.Valid = len(row.Errors) == 0
	return row
}

// checkCell coerces one cell value and evaluates the column's rules in
// order, short-circuiting at the first failure. It returns the retained
// value and the error message ("" when the cell passed).
//
// Image columns are exempt when the dataset's interactive editor is enabled:
// presence is checked separately against the image overlay so the user gets a
// chance to attach the file before an error is raised.
func checkCell(ctx context.Context, def DatasetDefinition, col ColumnDefinition, raw string, rowData RowData) (string, string) {
	value := CleanCell(raw)

	if isImageColumn(col) && def.Editable {
		return value, ""
	}

	if value == "" {
		if col.Rules.Required {
			return value, "required field is empty"
		}
		// Nothing further to check on an empty optional cell.
		return value, ""
	}

	var num float64
	switch col.Kind {
	case KindNumber:
		f, canonical, ok := ParseNumber(value)
		if !ok {
			return value, "invalid number format"
		}
		num = f
		value = canonical
	case KindBoolean:
		b, ok := ParseBool(value)
		if !ok {
			return value, "must be yes/no, true/false, or 1/0"
		}
		if b {
			value = "true"
		} else {
			value = "false"
		}
	}

	if col.Transform != nil {
		value = col.Transform(value)
	}

	if col.Kind == KindNumber {
		r := col.Rules
		switch {
		case r.Positive && num <= 0:
			return value, "must be greater than zero"
		case r.NonNegative && num < 0:
			return value, "must not be negative"
		case r.Min != nil && num < *r.Min:
			return value, fmt.Sprintf("must be at least %v", *r.Min)
		case r.Max != nil && num > *r.Max:
			return value, fmt.Sprintf("must be at most %v", *r.Max)
		}
	}

	n := utf8.RuneCountInString(value)
	if col.Rules.MinLen > 0 && n < col.Rules.MinLen {
		return value, fmt.Sprintf("must be at least %d characters", col.Rules.MinLen)
	}
	if col.Rules.MaxLen > 0 && n > col.Rules.MaxLen {
		return value, fmt.Sprintf("must be at most %d characters", col.Rules.MaxLen)
	}

	if col.Kind == KindEnum && len(col.OneOf) > 0 {
		if !containsFold(col.OneOf, value) {
			return value, fmt.Sprintf("value must be one of: %s", strings.Join(col.OneOf, ", "))
		}
	}

	if col.Validate != nil {
		msg, err := col.Validate(ctx, value, rowData)
		if err != nil {
			return value, err.Error()
		}
		if msg != "" {
			return value, msg
		}
	}

	return value, ""
}

// revalidateField re-runs the pipeline for a single field of an already
// validated row and patches the row's error list in place: a new error for
// the field replaces any existing one, a pass removes it. Errors for other
// fields and row-level errors are untouched.
func revalidateField(ctx context.Context, def DatasetDefinition, row *ValidatedRow, field, value string) {
	col, ok := def.columnByField(field)
	if !ok {
		return
	}

	clean, msg := checkCell(ctx, def, col, value, row.Data)
	row.Data[field] = clean

	filtered := row.Errors[:0]
	for _, e := range row.Errors {
		if e.Field != field {
			filtered = append(filtered, e)
		}
	}
	row.Errors = filtered

	if msg != "" {
		row.Errors = append(row.Errors, ValidationError{
			Row:     row.Row,
			Field:   field,
			Message: msg,
		})
	}

	row.Valid = len(row.Errors) == 0
}
