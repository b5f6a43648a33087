package params

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FloatOrInt is either a fraction in (0, 1] of a reference count that is
// only known after data load, or an absolute non-negative count.
type FloatOrInt struct {
	fraction   float64
	count      int
	isFraction bool
}

// Fraction returns the fraction variant. f must lie in (0, 1].
func Fraction(f float64) (FloatOrInt, error) {
	if math.IsNaN(f) || f <= 0 || f > 1 {
		return FloatOrInt{}, fmt.Errorf("fraction %v outside (0, 1]", f)
	}

	return FloatOrInt{fraction: f, isFraction: true}, nil
}

// Count returns the absolute count variant. n must be non-negative.
func Count(n int) (FloatOrInt, error) {
	if n < 0 {
		return FloatOrInt{}, fmt.Errorf("count %d is negative", n)
	}

	return FloatOrInt{count: n}, nil
}

// ParseFloatOrInt reads s as a fraction when it looks like a float
// (contains '.', 'e' or 'E') and as a count otherwise.
func ParseFloatOrInt(s string) (FloatOrInt, error) {
	s = strings.TrimSpace(s)

	if strings.ContainsAny(s, ".eE") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return FloatOrInt{}, fmt.Errorf("parse %q as float: %w", s, err)
		}

		return Fraction(f)
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return FloatOrInt{}, fmt.Errorf("parse %q as integer: %w", s, err)
	}

	return Count(n)
}

// IsFraction reports whether v is the fraction variant.
func (v FloatOrInt) IsFraction() bool {
	return v.isFraction
}

// Ratio returns the fraction of a fraction variant, zero for a count.
func (v FloatOrInt) Ratio() float64 {
	return v.fraction
}

// Resolve returns the absolute count v stands for given the reference
// count. A fraction resolves to max(1, floor(f * reference)).
func (v FloatOrInt) Resolve(reference int) int {
	if !v.isFraction {
		return v.count
	}

	return max(1, int(v.fraction*float64(reference)))
}

// String returns v as it would be written on the command line.
func (v FloatOrInt) String() string {
	if v.isFraction {
		return strconv.FormatFloat(v.fraction, 'g', -1, 64)
	}

	return strconv.Itoa(v.count)
}

// MarshalJSON encodes v as a bare JSON number.
func (v FloatOrInt) MarshalJSON() ([]byte, error) {
	if v.isFraction {
		return json.Marshal(v.fraction)
	}

	return json.Marshal(v.count)
}
