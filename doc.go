// Package armpose estimates the joint angles and end-effector position of a
// six-link robot arm whose joints are sensed by absolute rotary encoders.
//
// Each encoder reading is unwrapped into a continuous angle, mapped through
// the joint's gear ratio, zero offset and direction, and fed to a
// Denavit-Hartenberg chain. Joints with an actuator follow commanded angles
// from a touch panel; moves are split so the encoder is sampled often enough
// to keep its turn count.
//
// # Installation
//
//	go install github.com/gwillem/armpose/cmd/armpose@latest
//
// # Usage
//
// First, run setup to select the sensors and record the home pose:
//
//	armpose setup
//
// Then start the control cycle:
//
//	armpose monitor
//
// Compute a pose offline:
//
//	armpose pose -- 30 45 -20
//
// # Packages
//
// The module is organized into the following packages:
//
//   - cmd/armpose: CLI with setup, monitor, pose and ports commands
//   - pkg/joint: Turn tracking and joint calibration
//   - pkg/kinematics: Link table and forward kinematics
//   - pkg/robot: Sensor and actuator drivers, calibration, and configuration
//   - pkg/cycle: Control cycle
//   - pkg/posefilter: Position smoothing and CSV recording
package armpose
