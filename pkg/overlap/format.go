package overlap

import (
	"strconv"
	"strings"
)

// FormatSigFigs renders v with n significant figures. Fixed-point results
// always carry at least one fractional digit: 20 -> "20.0", 33.33 -> "33.3".
func FormatSigFigs(v float64, n int) string {
	s := strconv.FormatFloat(v, 'g', n, 64)
	if strings.ContainsAny(s, ".eIN") {
		return s
	}
	return s + ".0"
}

// RoundSigFigs rounds v to n significant figures.
func RoundSigFigs(v float64, n int) float64 {
	rounded, err := strconv.ParseFloat(strconv.FormatFloat(v, 'g', n, 64), 64)
	if err != nil {
		return v
	}
	return rounded
}
