package exporter

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// formatFloat formats a float64 value for tables and statistics with 16 significant decimals
func formatFloat(f float64) string {
	return fmt.Sprintf("%.16E", f)
}

// formatCell formats row i of a column, leaving absent columns and missing samples empty
func formatCell(values []float64, i int) string {
	if values == nil || math.IsNaN(values[i]) {
		return ""
	}
	return formatFloat(values[i])
}

// formatInt formats an int value for CSV output
func formatInt(i int) string {
	return strconv.Itoa(i)
}

// parseFloat parses a cell written by this package. Empty cells are NaN.
func parseFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}
