package domain

import "math"

const (
	MinRating = 0.5
	MaxRating = 5.0
)

// ValidRating reports whether value is within [0.5, 5.0] on a half-star step.
func ValidRating(value float64) bool {
	if math.IsNaN(value) || value < MinRating || value > MaxRating {
		return false
	}
	doubled := value * 2
	return doubled == math.Trunc(doubled)
}
