package core

// clean.go provides cell cleanup and type coercion for spreadsheet data.
//
// User-exported spreadsheets carry artifacts that have nothing to do with the
// data: formula prefixes (="value"), stray quotes, currency symbols, thousand
// separators, and a zoo of boolean spellings. Coercion normalizes all of that
// so validation and upload see canonical values.

import (
	"regexp"
	"strconv"
	"strings"
)

// numberPattern accepts integers, decimals, and scientific notation after
// cleanup.
var numberPattern = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// CleanCell strips common spreadsheet artifacts from a cell value:
// whitespace, Excel formula prefixes (="..."), and surrounding quotes.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, `="`) && strings.HasSuffix(s, `"`) {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	s = strings.Trim(s, `"'`)
	return strings.TrimSpace(s)
}

// ParseNumber coerces a cell value to a float. It tolerates currency symbols,
// thousand separators, and accounting-style negatives ("(123.45)").
// The second return is the canonical string form retained in row data.
func ParseNumber(s string) (float64, string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, "", false
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, "€", "") // euro
	s = strings.ReplaceAll(s, "£", "") // pound
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	if negative {
		s = "-" + s
	}

	if !numberPattern.MatchString(s) {
		return 0, "", false
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, "", false
	}
	return f, s, true
}

// ParseBool coerces a cell value to a boolean. Accepts true/false, t/f,
// yes/no, y/n, and 1/0 in any case.
func ParseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "t", "yes", "y", "1":
		return true, true
	case "false", "f", "no", "n", "0":
		return false, true
	default:
		return false, false
	}
}

// containsFold reports whether values contains target, case-insensitively.
func containsFold(values []string, target string) bool {
	for _, v := range values {
		if strings.EqualFold(v, target) {
			return true
		}
	}
	return false
}

// headerIndex maps cleaned, lowercased header text to column position.
type headerIndex map[string]int

// makeHeaderIndex builds a headerIndex from the sheet's header row.
func makeHeaderIndex(header []string) headerIndex {
	idx := make(headerIndex, len(header))
	for i, h := range header {
		key := strings.ToLower(CleanCell(h))
		if _, seen := idx[key]; key != "" && !seen {
			idx[key] = i
		}
	}
	return idx
}
