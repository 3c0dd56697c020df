// Package value normalizes Home Assistant state strings into a single numeric representation.
package value

import (
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrParse is returned when a state string has no numeric interpretation.
var ErrParse = errors.New("failed to parse value")

// Parse converts a raw state string into a finite float64. The forms are tried in a fixed order and the first
// success wins: floating point, signed integer, the boolean literals true/false, then the tokens on/off.
// Numeric forms therefore always take precedence over the boolean-like ones.
func Parse(state string) (float64, error) {
	if !hasHexPrefix(state) {
		if v, err := strconv.ParseFloat(state, 64); err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
			return v, nil
		}
	}

	if v, err := strconv.ParseInt(state, 10, 64); err == nil {
		return float64(v), nil
	}

	switch state {
	case "true":
		return 1, nil
	case "false":
		return 0, nil
	case "on":
		return 1, nil
	case "off":
		return 0, nil
	}

	return 0, ErrParse
}

// hasHexPrefix reports whether state is a 0x literal, which ParseFloat would otherwise accept as a hex float.
func hasHexPrefix(state string) bool {
	unsigned := strings.TrimLeft(state, "+-")
	return strings.HasPrefix(unsigned, "0x") || strings.HasPrefix(unsigned, "0X")
}
