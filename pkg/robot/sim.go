package robot

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/gwillem/armpose/pkg/joint"
)

// Sim is an in-memory arm. Moves complete instantly and each sensor reports
// the wrapped angle its joint would produce through the configured gear
// ratio, offset and direction.
type Sim struct {
	mu          sync.Mutex
	calibration Calibration
	angles      map[JointName]float64 // continuous joint angles in degrees
	dropouts    map[JointName]int
	moves       []SimMove
}

// SimMove records one completed MoveTo call.
type SimMove struct {
	Joint   JointName
	Degrees float64
}

// NewSim returns a simulated arm with every joint at 0 degrees.
func NewSim(cal Calibration) *Sim {
	return &Sim{
		calibration: cal,
		angles:      make(map[JointName]float64, len(cal)),
		dropouts:    make(map[JointName]int),
	}
}

// SetAngle places a joint at an angle without recording a move.
func (s *Sim) SetAngle(name JointName, degrees float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.angles[name] = degrees
}

// Angle returns the joint's current continuous angle.
func (s *Sim) Angle(name JointName) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.angles[name]
}

// Drop makes the next n samples of a joint unavailable.
func (s *Sim) Drop(name JointName, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropouts[name] += n
}

// Moves returns the moves made so far.
func (s *Sim) Moves() []SimMove {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SimMove(nil), s.moves...)
}

// MoveTo sets the joint angle and records the move.
func (s *Sim) MoveTo(ctx context.Context, name JointName, degrees float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.calibration[name]; !ok {
		return fmt.Errorf("joint %s is not simulated", name)
	}
	s.angles[name] = degrees
	s.moves = append(s.moves, SimMove{Joint: name, Degrees: degrees})
	return nil
}

// Samples returns the raw code each joint's sensor would read.
func (s *Sim) Samples(ctx context.Context) map[JointName]joint.Sample {
	s.mu.Lock()
	defer s.mu.Unlock()

	samples := make(map[JointName]joint.Sample, len(s.calibration))
	for name, jc := range s.calibration {
		if s.dropouts[name] > 0 {
			s.dropouts[name]--
			samples[name] = joint.Unavailable
			continue
		}
		sensor := joint.FloorMod(jc.SensorAngle(s.angles[name]), 360)
		code := int(math.Round(sensor*float64(jc.Resolution)/360)) % jc.Resolution
		samples[name] = joint.Code(code)
	}
	return samples
}
