package utils

import "math"

// MinFloat returns the smaller of two floats.
func MinFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// AbsFloat returns the absolute value of a float.
func AbsFloat(x float64) float64 {
	return math.Abs(x)
}

// RoundFloat rounds a float64 to a specified number of decimal places.
func RoundFloat(val float64, precision uint) float64 {
	ratio := math.Pow(10, float64(precision))
	return math.Round(val*ratio) / ratio
}
