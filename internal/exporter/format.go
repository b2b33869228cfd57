package exporter

import (
	"math"
	"strconv"
	"strings"
)

// formatFloat formats a value with the given precision. Negative precision
// uses the shortest representation that round-trips.
func formatFloat(v float64, precision int) string {
	switch {
	case math.IsNaN(v):
		return ""
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	return strconv.FormatFloat(v, 'f', precision, 64)
}

// formatMoney renders v as $1,234.56
func formatMoney(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	s := groupThousands(strconv.FormatFloat(math.Abs(v), 'f', 2, 64))
	if v < 0 {
		return "-$" + s
	}
	return "$" + s
}

// formatPercent renders a ratio as a percentage with one decimal
func formatPercent(ratio float64) string {
	if math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		return "n/a"
	}
	return strconv.FormatFloat(ratio*100, 'f', 1, 64) + "%"
}

// groupThousands inserts commas into the integer part of a formatted number
func groupThousands(s string) string {
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String() + frac
}
