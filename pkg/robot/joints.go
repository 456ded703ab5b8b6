// Package robot provides configuration and hardware collaborators for the arm.
package robot

import (
	"context"

	"github.com/gwillem/armpose/pkg/joint"
)

// JointName identifies a joint in the chain.
type JointName string

// Joint names, base first.
const (
	Base       JointName = "base"
	Shoulder   JointName = "shoulder"
	Elbow      JointName = "elbow"
	WristPitch JointName = "wrist_pitch"
	WristYaw   JointName = "wrist_yaw"
	WristRoll  JointName = "wrist_roll"
)

// AllJoints returns all joint names in chain order (matching links 1-6).
func AllJoints() []JointName {
	return []JointName{
		Base,
		Shoulder,
		Elbow,
		WristPitch,
		WristYaw,
		WristRoll,
	}
}

// Index returns the 0-based chain position of n, or -1 for unknown names.
func (n JointName) Index() int {
	for i, name := range AllJoints() {
		if name == n {
			return i
		}
	}
	return -1
}

// SampleSource reads one raw angle code per sensorized joint.
// Joints that could not be read map to joint.Unavailable.
type SampleSource interface {
	Samples(ctx context.Context) map[JointName]joint.Sample
}

// Actuator moves one joint to a target angle in degrees. MoveTo returns
// only once the move is complete.
type Actuator interface {
	MoveTo(ctx context.Context, name JointName, degrees float64) error
}

// CommandSource supplies commanded joint angles in degrees. It returns only
// the joints that received a new command since the last call.
type CommandSource interface {
	Commands(ctx context.Context) (map[JointName]float64, error)
}

// StaticCommands is a CommandSource that repeats a fixed set of targets.
type StaticCommands map[JointName]float64

// Commands returns the fixed targets.
func (s StaticCommands) Commands(ctx context.Context) (map[JointName]float64, error) {
	return s, nil
}
