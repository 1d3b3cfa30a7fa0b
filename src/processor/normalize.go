package processor

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// yearPattern matches the first four consecutive digits, so "CY 2019" and
// "2019 est" both give 2019.
var yearPattern = regexp.MustCompile(`[0-9]{4}`)

var numericCleaner = strings.NewReplacer(",", "", `"`, "")

// Missing is the marker stored for a count that could not be parsed.
func Missing() float64 { return math.NaN() }

// IsMissing reports whether v is the missing marker (or otherwise not finite).
func IsMissing(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}

// NormalizeNumeric turns text like `"12,345"` into 12345. Anything that does
// not parse to a finite number gives Missing().
func NormalizeNumeric(raw string) float64 {
	s := strings.TrimSpace(numericCleaner.Replace(raw))
	if s == "" {
		return Missing()
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || IsMissing(f) {
		return Missing()
	}
	return f
}

// ExtractYear returns the first four digit run in raw.
func ExtractYear(raw string) (int, bool) {
	m := yearPattern.FindString(raw)
	if m == "" {
		return 0, false
	}
	year, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return year, true
}

// sumPresent adds v to sum unless it is missing.
func sumPresent(sum, v float64) float64 {
	if IsMissing(v) {
		return sum
	}
	return sum + v
}
