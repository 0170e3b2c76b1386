package autoria

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var decimalRe = regexp.MustCompile(`\d+[.,]?\d*`)

// keepDigits strips everything but ASCII digits.
func keepDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// parsePrice reads a displayed price like "250 000 $" as whole dollars.
// No digits means zero.
func parsePrice(raw string) int {
	digits := keepDigits(raw)
	if digits == "" {
		return 0
	}
	v, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return v
}

// parseThousandKm converts odometer text like "95 тис. км" to kilometers:
// the first decimal number is read as thousands of km. Figures that do not
// fit the odometer column count as unparsable.
func parseThousandKm(raw string) int {
	m := decimalRe.FindString(raw)
	if m == "" {
		return 0
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", "."), 64)
	if err != nil {
		return 0
	}
	km := f * 1000
	if km < 0 || km > math.MaxInt32 {
		return 0
	}
	return int(km)
}

// parsePhone normalizes a free-form phone like "+38 (067) 123-45-67" to the
// integer value of its digit string.
func parsePhone(raw string) int64 {
	digits := keepDigits(raw)
	if digits == "" {
		return 0
	}
	v, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// parseCount reads a photo total out of text like "з 22".
func parseCount(raw string) int {
	digits := keepDigits(raw)
	if digits == "" {
		return 0
	}
	v, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return v
}
