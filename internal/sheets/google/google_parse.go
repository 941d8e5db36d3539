package google

import (
	"fmt"
	"strings"
)

// rowOf returns the 1-based sheet row whose first cell equals id, or 0.
func rowOf(values [][]interface{}, id string) int {
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) == id {
			return i + 1
		}
	}
	return 0
}

// columnName converts a 1-based column index to its A1 letter form.
func columnName(n int) string {
	name := ""
	for n > 0 {
		n--
		name = string(rune('A'+n%26)) + name
		n /= 26
	}
	return name
}

func rowRange(sheet string, row, columns int) string {
	return fmt.Sprintf("%s!A%d:%s%d", sheet, row, columnName(columns), row)
}
