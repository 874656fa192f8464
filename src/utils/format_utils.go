package utils

import (
	"strconv"
	"strings"
)

// FormatDecimalComma renders a number with a comma decimal separator for the
// es-ES CSV export (e.g. 1234.56 -> "1234,56").
func FormatDecimalComma(val float64, precision int) string {
	return strings.Replace(strconv.FormatFloat(val, 'f', precision, 64), ".", ",", 1)
}

// ParseFlexibleFloat parses a number that may use either a comma or a dot as
// decimal separator, as found in broker spreadsheet exports. Thousands
// separators are not supported; "1.234,56" style values are rejected.
func ParseFlexibleFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	return strconv.ParseFloat(s, 64)
}
