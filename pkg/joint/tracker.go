package joint

// Tracker unwraps a cyclic angle into a continuous one by counting turns.
//
// Consecutive samples must differ by less than 180 degrees of true rotation.
// A faster rotation is read as a wrap in the opposite direction and the
// continuous angle silently loses a full turn. Callers keep the sampling
// interval short enough; see cycle.Config.MaxSampleStep.
//
// A Tracker is not safe for concurrent use. It is meant to be owned by a
// single control loop for the life of the process.
type Tracker struct {
	lastRaw     float64
	turns       int
	initialized bool
	continuous  float64
}

// Update feeds one wrapped reading in degrees [0, 360) and returns the
// continuous angle.
func (t *Tracker) Update(rawDegrees float64) float64 {
	if !t.initialized {
		t.lastRaw = rawDegrees
		t.turns = 0
		t.initialized = true
		t.continuous = rawDegrees
		return rawDegrees
	}

	diff := rawDegrees - t.lastRaw
	switch {
	case diff > 180:
		t.turns--
	case diff < -180:
		t.turns++
	}

	t.lastRaw = rawDegrees
	t.continuous = rawDegrees + float64(t.turns)*360
	return t.continuous
}

// UpdateSample converts s with the sensor's resolution and feeds it to Update.
// An unavailable sample leaves the tracker untouched and returns the last
// continuous angle (0 before the first valid sample).
func (t *Tracker) UpdateSample(s Sample, sensor Sensor) float64 {
	if !s.OK {
		return t.continuous
	}
	return t.Update(sensor.Degrees(s.Code))
}

// Continuous returns the last continuous angle produced.
func (t *Tracker) Continuous() float64 {
	return t.continuous
}

// Turns returns the current revolution count.
func (t *Tracker) Turns() int {
	return t.turns
}

// Initialized reports whether the tracker has seen a valid sample.
func (t *Tracker) Initialized() bool {
	return t.initialized
}
