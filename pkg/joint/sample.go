// Package joint turns wrapped absolute-angle sensor codes into calibrated
// joint angles.
package joint

import "fmt"

// DefaultResolution is the code count of a 12-bit magnetic angle sensor.
const DefaultResolution = 4096

// Sample is one raw angle code read from a sensor.
// A Sample with OK == false carries no reading.
type Sample struct {
	Code int
	OK   bool
}

// Unavailable is returned by sensor collaborators when no reading could be taken.
var Unavailable = Sample{}

// Code wraps a raw sensor code into an available Sample.
func Code(code int) Sample {
	return Sample{Code: code, OK: true}
}

// Sensor describes the code range of a single angle sensor.
type Sensor struct {
	// Resolution is the number of codes per revolution, e.g. 4096 or 4095.
	Resolution int `json:"resolution"`
}

// Validate checks that the resolution is usable.
func (s Sensor) Validate() error {
	if s.Resolution <= 0 {
		return fmt.Errorf("resolution must be positive, got %d", s.Resolution)
	}
	return nil
}

// Degrees converts a raw code to degrees in [0, 360).
// Codes outside [0, Resolution-1] are folded back into range.
func (s Sensor) Degrees(code int) float64 {
	return FloorMod(float64(code)*360/float64(s.Resolution), 360)
}
