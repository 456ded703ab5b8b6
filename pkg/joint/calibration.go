package joint

import (
	"fmt"
	"math"
)

// Calibration maps a continuous sensor angle onto the joint.
type Calibration struct {
	GearRatio     float64 `json:"gear_ratio"`
	OffsetDegrees float64 `json:"offset_degrees"`
	Invert        bool    `json:"invert"`
}

// Validate checks the calibration once at startup.
func (c Calibration) Validate() error {
	if !(c.GearRatio > 0) || math.IsInf(c.GearRatio, 0) {
		return fmt.Errorf("gear ratio must be a positive finite number, got %v", c.GearRatio)
	}
	if math.IsNaN(c.OffsetDegrees) || math.IsInf(c.OffsetDegrees, 0) {
		return fmt.Errorf("offset must be finite, got %v", c.OffsetDegrees)
	}
	return nil
}

// Apply converts a continuous sensor angle into a joint angle in [0, 360).
func (c Calibration) Apply(continuousDegrees float64) float64 {
	shifted := continuousDegrees/c.GearRatio - c.OffsetDegrees
	if c.Invert {
		shifted = -shifted
	}
	return FloorMod(shifted, 360)
}

// SensorAngle is the inverse of Apply: it returns the continuous sensor
// angle that reads as jointDegrees, with no wrapping applied.
func (c Calibration) SensorAngle(jointDegrees float64) float64 {
	shifted := jointDegrees
	if c.Invert {
		shifted = -shifted
	}
	return (shifted + c.OffsetDegrees) * c.GearRatio
}

// Home returns a copy of c whose offset makes the joint read 0 at the given
// continuous sensor angle.
func (c Calibration) Home(continuousDegrees float64) Calibration {
	c.OffsetDegrees = FloorMod(continuousDegrees/c.GearRatio, 360)
	return c
}

// FloorMod returns x modulo m in [0, m) for any sign of x, i.e.
// ((x mod m) + m) mod m. Non-negative x is returned bit-exact when already
// in range.
func FloorMod(x, m float64) float64 {
	r := math.Mod(x, m)
	if r < 0 {
		r += m
	}
	// Tiny negative r rounds up to exactly m.
	if r >= m {
		return 0
	}
	return r
}
