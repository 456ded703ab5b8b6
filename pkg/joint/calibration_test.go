package joint

import (
	"math"
	"testing"
)

func TestCalibration_Apply(t *testing.T) {
	tests := []struct {
		name       string
		cal        Calibration
		continuous float64
		expected   float64
	}{
		{"inverted with offset", Calibration{GearRatio: 4, OffsetDegrees: 62.4, Invert: true}, 100, 37.4},
		{"identity", Calibration{GearRatio: 1}, 45, 45},
		{"negative continuous", Calibration{GearRatio: 1}, -10, 350},
		{"many turns", Calibration{GearRatio: 1}, 3*360 + 12, 12},
		{"gear reduction", Calibration{GearRatio: 3}, 540, 180},
		{"offset below zero", Calibration{GearRatio: 1, OffsetDegrees: 62.4}, 0, 297.6},
		{"inverted zero", Calibration{GearRatio: 2, Invert: true}, 0, 0},
	}

	for _, tt := range tests {
		got := tt.cal.Apply(tt.continuous)
		if math.Abs(got-tt.expected) > 1e-9 {
			t.Errorf("%s: Apply(%f) = %f, want %f", tt.name, tt.continuous, got, tt.expected)
		}
		if got < 0 || got >= 360 {
			t.Errorf("%s: Apply(%f) = %f, outside [0, 360)", tt.name, tt.continuous, got)
		}
	}
}

func TestCalibration_ApplyIdempotent(t *testing.T) {
	cal := Calibration{GearRatio: 1}
	for x := -1000.0; x <= 1000; x += 7.3 {
		once := cal.Apply(x)
		twice := cal.Apply(once)
		if once != twice {
			t.Errorf("Apply(Apply(%f)) = %f, want %f", x, twice, once)
		}
	}
}

func TestCalibration_SensorAngleRoundTrip(t *testing.T) {
	cals := []Calibration{
		{GearRatio: 1},
		{GearRatio: 4, OffsetDegrees: 62.4, Invert: true},
		{GearRatio: 2.5, OffsetDegrees: -15},
	}

	for _, cal := range cals {
		for j := 0.0; j < 360; j += 22.5 {
			got := cal.Apply(cal.SensorAngle(j))
			d := math.Abs(got - j)
			if d > 1e-9 && math.Abs(d-360) > 1e-9 {
				t.Errorf("%+v: Apply(SensorAngle(%f)) = %f", cal, j, got)
			}
		}
	}
}

func TestCalibration_Home(t *testing.T) {
	tests := []struct {
		cal        Calibration
		continuous float64
		offset     float64
	}{
		{Calibration{GearRatio: 1}, 45, 45},
		{Calibration{GearRatio: 4, Invert: true}, 249.6, 62.4},
		{Calibration{GearRatio: 2, OffsetDegrees: 10}, -90, 315},
		{Calibration{GearRatio: 1}, 3*360 + 5, 5},
	}

	for _, tt := range tests {
		homed := tt.cal.Home(tt.continuous)
		if math.Abs(homed.OffsetDegrees-tt.offset) > 1e-9 {
			t.Errorf("%+v: Home(%f) offset = %f, want %f", tt.cal, tt.continuous, homed.OffsetDegrees, tt.offset)
		}
		if homed.GearRatio != tt.cal.GearRatio || homed.Invert != tt.cal.Invert {
			t.Errorf("%+v: Home changed gear ratio or direction", tt.cal)
		}
		got := homed.Apply(tt.continuous)
		if got > 1e-9 && got < 360-1e-9 {
			t.Errorf("%+v: Apply at home = %f, want 0", tt.cal, got)
		}
	}
}

func TestCalibration_Validate(t *testing.T) {
	tests := []struct {
		cal   Calibration
		valid bool
	}{
		{Calibration{GearRatio: 1}, true},
		{Calibration{GearRatio: 4, OffsetDegrees: 62.4, Invert: true}, true},
		{Calibration{GearRatio: 0}, false},
		{Calibration{GearRatio: -2}, false},
		{Calibration{GearRatio: math.NaN()}, false},
		{Calibration{GearRatio: math.Inf(1)}, false},
		{Calibration{GearRatio: 1, OffsetDegrees: math.Inf(-1)}, false},
	}

	for _, tt := range tests {
		err := tt.cal.Validate()
		if (err == nil) != tt.valid {
			t.Errorf("Validate(%+v) = %v, want valid=%v", tt.cal, err, tt.valid)
		}
	}
}

func TestFloorMod(t *testing.T) {
	tests := []struct {
		x        float64
		expected float64
	}{
		{-62.4, 297.6},
		{0, 0},
		{360, 0},
		{-360, 0},
		{725, 5},
		{-725, 355},
		{-1e-20, 0},
	}

	for _, tt := range tests {
		got := FloorMod(tt.x, 360)
		if math.Abs(got-tt.expected) > 1e-9 {
			t.Errorf("FloorMod(%v, 360) = %v, want %v", tt.x, got, tt.expected)
		}
	}
}

func TestFloorMod_Periodic(t *testing.T) {
	for _, x := range []float64{-725.5, -62.4, -0.25, 0, 13.75, 359.5, 1000} {
		base := FloorMod(x, 360)
		for k := -5; k <= 5; k++ {
			got := FloorMod(x+360*float64(k), 360)
			if math.Abs(got-base) > 1e-9 {
				t.Errorf("FloorMod(%v + 360*%d) = %v, want %v", x, k, got, base)
			}
		}
	}
}
