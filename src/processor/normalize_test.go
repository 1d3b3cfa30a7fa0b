package processor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeNumeric(t *testing.T) {
	cases := map[string]float64{
		"12,345":      12345,
		`"1,000"`:     1000,
		" 7 ":         7,
		"1,234,567.5": 1234567.5,
		`"12,"345"`:   12345,
		"0":           0,
		"-3":          -3,
	}
	for raw, want := range cases {
		assert.Equal(t, want, NormalizeNumeric(raw), raw)
	}

	for _, raw := range []string{"N/A", "", "  ", "abc", "NaN", "Inf", "12 345"} {
		assert.True(t, IsMissing(NormalizeNumeric(raw)), raw)
	}
}

func TestExtractYear(t *testing.T) {
	for raw, want := range map[string]int{
		"2019":      2019,
		"CY 2019":   2019,
		"2019 est":  2019,
		"FY2020/21": 2020,
		"20190":     2019,
	} {
		year, ok := ExtractYear(raw)
		assert.True(t, ok, raw)
		assert.Equal(t, want, year, raw)
	}

	for _, raw := range []string{"unknown", "", "19", "201"} {
		_, ok := ExtractYear(raw)
		assert.False(t, ok, raw)
	}
}
