package joint

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
)

func TestTracker_Rollover(t *testing.T) {
	sensor := Sensor{Resolution: 360}
	var tr Tracker

	tests := []struct {
		code     int
		expected float64
	}{
		{10, 10},   // first sample seeds state
		{350, -10}, // backward wrap through zero
		{340, -20}, // no wrap
	}

	for _, tt := range tests {
		got := tr.UpdateSample(Code(tt.code), sensor)
		if got != tt.expected {
			t.Errorf("UpdateSample(%d) = %f, want %f", tt.code, got, tt.expected)
		}
	}
	if tr.Turns() != -1 {
		t.Errorf("Turns() = %d, want -1", tr.Turns())
	}
}

func TestTracker_FirstSampleNoWrap(t *testing.T) {
	var tr Tracker
	if tr.Initialized() {
		t.Fatal("zero Tracker should not be initialized")
	}
	if got := tr.Update(359); got != 359 {
		t.Errorf("first Update(359) = %f, want 359", got)
	}
	if tr.Turns() != 0 {
		t.Errorf("Turns() = %d after first sample, want 0", tr.Turns())
	}
}

func TestTracker_ForwardWrap(t *testing.T) {
	var tr Tracker
	tr.Update(350)
	if got := tr.Update(5); got != 365 {
		t.Errorf("Update(5) after 350 = %f, want 365", got)
	}
	if got := tr.Update(20); got != 380 {
		t.Errorf("Update(20) = %f, want 380", got)
	}
}

func TestTracker_Unavailable(t *testing.T) {
	sensor := Sensor{Resolution: 360}
	var tr Tracker

	// Before any valid sample the tracker stays unseeded.
	if got := tr.UpdateSample(Unavailable, sensor); got != 0 {
		t.Errorf("UpdateSample(Unavailable) before seed = %f, want 0", got)
	}
	if tr.Initialized() {
		t.Fatal("unavailable sample must not seed the tracker")
	}

	tr.UpdateSample(Code(10), sensor)
	tr.UpdateSample(Code(350), sensor) // -10

	for i := 0; i < 3; i++ {
		if got := tr.UpdateSample(Unavailable, sensor); got != -10 {
			t.Errorf("UpdateSample(Unavailable) = %f, want held value -10", got)
		}
	}
	if tr.Turns() != -1 {
		t.Errorf("Turns() = %d after dropouts, want -1", tr.Turns())
	}

	// The diff is evaluated against the last real sample, 350.
	if got := tr.UpdateSample(Code(5), sensor); got != 5 {
		t.Errorf("UpdateSample(5) = %f, want 5", got)
	}
}

func TestTracker_ContinuityBelowHalfTurn(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	var tr Tracker

	raw := 123.0
	prev := tr.Update(raw)
	for i := 0; i < 5000; i++ {
		step := rng.Float64()*358 - 179 // (-179, 179)
		next := FloorMod(raw+step, 360)
		wrapped := FloorMod(next-raw+180, 360) - 180
		raw = next

		got := tr.Update(raw)
		if !scalar.EqualWithinAbs(got-prev, wrapped, 1e-6) {
			t.Fatalf("step %d: continuous delta = %f, want %f", i, got-prev, wrapped)
		}
		prev = got
	}
}

func TestTracker_FullRevolutions(t *testing.T) {
	sensor := Sensor{Resolution: 360}

	for _, n := range []int{1, 2, 5} {
		var tr Tracker
		start := tr.UpdateSample(Code(30), sensor)
		var got float64
		for k := 1; k <= n*36; k++ {
			got = tr.UpdateSample(Code((30+10*k)%360), sensor)
		}
		if got-start != float64(n*360) {
			t.Errorf("%d revolutions: continuous delta = %f, want %d", n, got-start, n*360)
		}
		if tr.Turns() != n {
			t.Errorf("%d revolutions: Turns() = %d", n, tr.Turns())
		}
	}
}

func TestTracker_TurnCountStepsByOne(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	var tr Tracker
	tr.Update(0)
	for i := 0; i < 2000; i++ {
		before := tr.Turns()
		tr.Update(rng.Float64() * 360)
		if d := tr.Turns() - before; d < -1 || d > 1 {
			t.Fatalf("turn count changed by %d in one update", d)
		}
	}
}

// A true rotation of 180 degrees or more between samples is read as a wrap
// the other way. This pins the documented limitation.
func TestTracker_FastRotationMisdetected(t *testing.T) {
	var tr Tracker
	tr.Update(0)
	got := tr.Update(200) // true motion: +200
	if got != -160 {
		t.Errorf("Update(200) after 0 = %f, want -160 (opposite-direction wrap)", got)
	}
}

func TestSensor_Degrees(t *testing.T) {
	tests := []struct {
		resolution int
		code       int
		expected   float64
	}{
		{4096, 0, 0},
		{4096, 1024, 90},
		{4096, 2048, 180},
		{4095, 4095, 0},
		{4095, 2730, 240},
		{360, 361, 1},
		{360, -10, 350},
	}

	for _, tt := range tests {
		got := Sensor{Resolution: tt.resolution}.Degrees(tt.code)
		if math.Abs(got-tt.expected) > 1e-9 {
			t.Errorf("Sensor{%d}.Degrees(%d) = %f, want %f", tt.resolution, tt.code, got, tt.expected)
		}
	}
}

func TestSensor_Validate(t *testing.T) {
	if err := (Sensor{Resolution: 4095}).Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
	if err := (Sensor{}).Validate(); err == nil {
		t.Error("zero resolution should not validate")
	}
}
