package collector

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DeriveTwoD computes the two-digit code from the index level and the traded value.
// The first digit is the last digit of the index rounded to two decimals, the second
// is the last digit of the integer part of the traded value. An empty or "-" value counts as zero.
func DeriveTwoD(set, value string) (string, error) {
	index, err := parseNumber(set)
	if err != nil {
		return "", fmt.Errorf("%w: parse set %q: %w", ErrQuote, set, err)
	}
	top := strconv.FormatFloat(index, 'f', 2, 64)

	v := strings.TrimSpace(value)
	if v == "" || v == "-" {
		v = "0.00"
	}
	traded, err := parseNumber(v)
	if err != nil {
		return "", fmt.Errorf("%w: parse value %q: %w", ErrQuote, value, err)
	}
	whole := strconv.FormatInt(int64(traded), 10)

	return top[len(top)-1:] + whole[len(whole)-1:], nil
}

func parseNumber(s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", ""), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not a finite number")
	}
	return f, nil
}
