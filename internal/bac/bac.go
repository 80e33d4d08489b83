// Package bac implements the Widmark blood-alcohol estimate and its unit
// conversions. All functions are pure; the session monitor is the only
// caller that feeds them live data.
package bac

import (
	"fmt"
	"math"
	"time"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	mlPerFluidOunce = 29.5735
	ethanolDensity  = 0.789 // g/ml
	gramsPerPound   = 453.592

	// Widmark body-water constants.
	rMale   = 0.68
	rFemale = 0.55

	// Metabolic elimination rate, %BAC per hour.
	burnOffPerHour = 0.015
)

// Gender is a closed enum validated at the API edge.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// --------------------------------------------------------------------------
// Conversions
// --------------------------------------------------------------------------

// GramsOfAlcohol returns the grams of pure ethanol in a drink of the given
// size (fluid ounces) and ABV (fraction, e.g. 0.05 for 5%).
func GramsOfAlcohol(volumeOunces, abvFraction float64) float64 {
	return volumeOunces * mlPerFluidOunce * abvFraction * ethanolDensity
}

// PoundsToGrams converts body weight from pounds to grams.
func PoundsToGrams(pounds float64) float64 {
	return pounds * gramsPerPound
}

// GenderConstant returns the Widmark r constant for a gender. The gender
// enum is validated when users are created, so an unknown value here is a
// programmer error, not a user-facing condition.
func GenderConstant(g Gender) float64 {
	switch g {
	case GenderMale:
		return rMale
	case GenderFemale:
		return rFemale
	default:
		panic(fmt.Sprintf("bac: unknown gender %q", g))
	}
}

// DurationHours returns the exact fractional hours between start and end.
func DurationHours(start, end time.Time) (float64, error) {
	if end.Before(start) {
		return 0, fmt.Errorf("invalid interval: end %s before start %s", end, start)
	}
	return end.Sub(start).Hours(), nil
}

// --------------------------------------------------------------------------
// Widmark estimate
// --------------------------------------------------------------------------

// Estimate returns the blood-alcohol percentage for the given total grams
// of ethanol, body weight in grams, Widmark constant, and elapsed hours.
// The result is clamped at zero: metabolism never drives the estimate
// negative.
func Estimate(totalGrams, bodyWeightGrams, genderConstant, hours float64) float64 {
	value := totalGrams/(bodyWeightGrams*genderConstant)*100 - hours*burnOffPerHour
	return math.Max(0, value)
}

// Round3 rounds a BAC value to three decimals, the precision persisted in
// samples and shown to users.
func Round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
