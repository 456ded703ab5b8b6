package robot

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"go.uber.org/multierr"

	"github.com/gwillem/armpose/pkg/joint"
)

// JointCalibration holds sensor, calibration and actuation data for a
// single sensorized joint.
type JointCalibration struct {
	ServoID    int `json:"servo_id,omitempty"`    // feetech bus
	MuxChannel int `json:"mux_channel,omitempty"` // as5600 behind an I2C mux

	joint.Sensor
	joint.Calibration

	// Actuated joints accept commanded angles. StepsPerDegree scales a joint
	// angle into actuator steps.
	Actuated       bool    `json:"actuated,omitempty"`
	StepsPerDegree float64 `json:"steps_per_degree,omitempty"`
}

// NewJointCalibration returns a calibration with unit gear ratio and the
// default sensor resolution.
func NewJointCalibration() JointCalibration {
	return JointCalibration{
		Sensor:      joint.Sensor{Resolution: joint.DefaultResolution},
		Calibration: joint.Calibration{GearRatio: 1},
	}
}

// Validate checks the joint once at startup.
func (c JointCalibration) Validate() error {
	var errs error
	errs = multierr.Append(errs, c.Sensor.Validate())
	errs = multierr.Append(errs, c.Calibration.Validate())
	if c.Actuated && (!(c.StepsPerDegree > 0) || math.IsInf(c.StepsPerDegree, 0)) {
		errs = multierr.Append(errs, fmt.Errorf("actuated joint needs positive steps_per_degree, got %v", c.StepsPerDegree))
	}
	return errs
}

// Steps converts a joint angle to actuator steps.
func (c JointCalibration) Steps(degrees float64) int {
	return int(math.Round(degrees * c.StepsPerDegree))
}

// Target converts a commanded joint angle to a servo position in
// [0, Resolution). 360 degrees lands on the same position as 0.
func (c JointCalibration) Target(degrees float64) int {
	res := c.Resolution
	if res <= 0 {
		res = joint.DefaultResolution
	}
	return ((c.Steps(degrees) % res) + res) % res
}

// Calibration holds calibration data for all sensorized joints, keyed by joint name.
type Calibration map[JointName]JointCalibration

// LoadCalibration loads calibration data from a JSON file.
func LoadCalibration(path string) (Calibration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read calibration file: %w", err)
	}

	// Parse into a map with string keys first
	var raw map[string]JointCalibration
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse calibration JSON: %w", err)
	}

	cal := make(Calibration, len(raw))
	for name, jc := range raw {
		cal[JointName(name)] = jc
	}

	return cal, nil
}

// Joints returns the calibrated joints in chain order.
func (c Calibration) Joints() []JointName {
	names := make([]JointName, 0, len(c))
	for _, name := range AllJoints() {
		if _, ok := c[name]; ok {
			names = append(names, name)
		}
	}
	return names
}

// Actuated returns the actuated joints in chain order.
func (c Calibration) Actuated() []JointName {
	var names []JointName
	for _, name := range c.Joints() {
		if c[name].Actuated {
			names = append(names, name)
		}
	}
	return names
}

// ServoIDs returns the servo IDs for all joints in chain order.
func (c Calibration) ServoIDs() []int {
	ids := make([]int, 0, len(c))
	for _, name := range c.Joints() {
		ids = append(ids, c[name].ServoID)
	}
	return ids
}

// ByID returns joint name and calibration for a given servo ID.
func (c Calibration) ByID(id int) (JointName, JointCalibration, bool) {
	for name, jc := range c {
		if jc.ServoID == id {
			return name, jc, true
		}
	}
	return "", JointCalibration{}, false
}

// Validate checks every joint and reports all problems at once.
func (c Calibration) Validate() error {
	if len(c) == 0 {
		return fmt.Errorf("no joints configured")
	}
	var errs error
	for name, jc := range c {
		if name.Index() < 0 {
			errs = multierr.Append(errs, fmt.Errorf("unknown joint %q", name))
			continue
		}
		if err := jc.Validate(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("joint %s: %w", name, err))
		}
	}
	return errs
}
