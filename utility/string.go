package utility

import (
	"math"
	"strconv"

	"github.com/google/uuid"
)

// Round2 rounds to two decimals, half away from zero
func Round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// FormatDecimal prints a value with two fixed decimals like 1234.5 to 1234.50
func FormatDecimal(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}

func NewUUID() string {
	return uuid.New().String()
}
