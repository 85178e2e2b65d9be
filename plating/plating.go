// Package plating computes the recommended current band and process
// duration for electroplating a part.
package plating

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// ErrInvalidInput is returned when the inputs cannot yield a duration.
var ErrInvalidInput = errors.New("invalid plating input")

type Mode string

const (
	Fast Mode = "fast"
	Fine Mode = "fine"
)

// maxSeconds caps a duration at about 68 years.
const maxSeconds = math.MaxInt32

// baseMinutes is the reference process time at the mean current.
const baseMinutes = 60.0

const (
	minDensity     = 0.05 // A per cm²
	maxDensityFast = 0.15
	maxDensityFine = 0.10
)

var timeFactors = map[Mode]float64{
	Fast: 1.0,
	Fine: 1.5,
}

var materialFactors = map[string]float64{
	"aluminium": 1.0,
	"steel":     1.2,
	"brass":     1.1,
	"silver":    0.9,
	"copper":    1.0,
}

// ParseMode accepts "fast"/"fine" and the French "rapide"/"fin".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fast", "rapide":
		return Fast, nil
	case "fine", "fin":
		return Fine, nil
	}
	return "", fmt.Errorf("%w: unknown mode %q", ErrInvalidInput, s)
}

// Materials returns the known material names in alphabetical order.
func Materials() []string {
	names := make([]string, 0, len(materialFactors))
	for name := range materialFactors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MaterialFactor returns the current multiplier for a material.
// Unknown materials use 1.0.
func MaterialFactor(material string) float64 {
	if f, ok := materialFactors[strings.ToLower(material)]; ok {
		return f
	}
	return 1.0
}

type Input struct {
	Area     float64 // cm²
	Mode     Mode
	Material string
	Current  float64 // available current, A
}

type Recommendation struct {
	MinCurrent  float64
	MaxCurrent  float64
	MeanCurrent float64
	Current     float64
	Minutes     float64
	// Seconds is the whole-second duration used to arm a countdown.
	Seconds int
}

// Calculate returns the current band for the part and the time needed
// at the available current.
func Calculate(in Input) (Recommendation, error) {
	if math.IsNaN(in.Area) || math.IsInf(in.Area, 0) || math.IsNaN(in.Current) || math.IsInf(in.Current, 0) {
		return Recommendation{}, fmt.Errorf("%w: area and current must be finite", ErrInvalidInput)
	}
	if in.Area < 0 {
		return Recommendation{}, fmt.Errorf("%w: area must not be negative, got %v", ErrInvalidInput, in.Area)
	}
	if in.Current <= 0 {
		return Recommendation{}, fmt.Errorf("%w: current must be positive, got %v", ErrInvalidInput, in.Current)
	}
	timeFactor, ok := timeFactors[in.Mode]
	if !ok {
		return Recommendation{}, fmt.Errorf("%w: unknown mode %q", ErrInvalidInput, in.Mode)
	}

	factor := MaterialFactor(in.Material)
	maxDensity := maxDensityFast
	if in.Mode == Fine {
		maxDensity = maxDensityFine
	}

	r := Recommendation{
		MinCurrent: minDensity * in.Area * factor,
		MaxCurrent: maxDensity * in.Area * factor,
		Current:    in.Current,
	}
	r.MeanCurrent = (r.MinCurrent + r.MaxCurrent) / 2
	r.Minutes = r.MeanCurrent / in.Current * baseMinutes * timeFactor
	seconds := r.Minutes * 60
	if math.IsNaN(seconds) || seconds > maxSeconds {
		return Recommendation{}, fmt.Errorf("%w: duration of %.0f minutes is out of range", ErrInvalidInput, r.Minutes)
	}
	r.Seconds = int(seconds)
	return r, nil
}

// Summary renders the recommendation as the three lines shown to the user.
func (r Recommendation) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Recommended current: %.2f - %.2f A\n", r.MinCurrent, r.MaxCurrent)
	fmt.Fprintf(&b, "Mean current: %.2f A\n", r.MeanCurrent)
	fmt.Fprintf(&b, "Estimated time at %.2f A: %.1f min\n", r.Current, r.Minutes)
	return b.String()
}
