package model

import (
	"math"
	"strconv"
)

// ParseAmount coerces a loosely-typed backend value into a finite float64.
// The catalog backend is inconsistent about numeric fields: the same field may
// arrive as a JSON number, a quoted string, or be absent entirely.
// Returns (0, false) for nil, non-numeric, NaN and infinite values.
// Examples: 3990 → (3990, true), "3990.5" → (3990.5, true), "" → (0, false)
func ParseAmount(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		if !isFinite(n) {
			return 0, false
		}
		return n, true
	case float32:
		return ParseAmount(float64(n))
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		if n == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(n, 64)
		if err != nil || !isFinite(f) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// FirstAmount resolves a prioritized list of candidate values to the first one
// that parses as a finite number. Used to collapse the backend's competing
// stock field spellings into one canonical figure.
func FirstAmount(candidates ...any) (float64, bool) {
	for _, c := range candidates {
		if f, ok := ParseAmount(c); ok {
			return f, true
		}
	}
	return 0, false
}

// CoerceQuantity converts an arbitrary quantity value to a non-negative
// integer. Fractional quantities are floored; negative, non-numeric and
// non-finite values become 0.
func CoerceQuantity(v any) int {
	f, ok := ParseAmount(v)
	if !ok || f <= 0 {
		return 0
	}
	return int(math.Floor(f))
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// IsFiniteNumber reports whether f is a usable price or total: neither NaN
// nor infinite.
func IsFiniteNumber(f float64) bool {
	return isFinite(f)
}
