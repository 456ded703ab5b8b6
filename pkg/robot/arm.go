package robot

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/hipsterbrown/feetech-servo/feetech"

	"github.com/gwillem/armpose/pkg/joint"
)

const (
	// moveTolerance is how close, in servo steps, a move must land.
	moveTolerance = 8
	movePoll      = 20 * time.Millisecond
	moveTimeout   = 10 * time.Second
)

// Arm is a feetech servo bus used both as the joint sensors (the servos'
// absolute position register) and as the actuator.
type Arm struct {
	bus         *feetech.Bus
	group       *feetech.ServoGroup
	servos      map[JointName]*feetech.Servo
	calibration Calibration
}

// NewArm creates and initializes an arm connection.
func NewArm(cfg BusConfig, cal Calibration) (*Arm, error) {
	baud := cfg.BaudRate
	if baud == 0 {
		baud = 1_000_000
	}

	// Open serial bus
	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     cfg.Port,
		BaudRate: baud,
		Protocol: feetech.ProtocolSTS,
		Timeout:  100 * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("open bus: %w", err)
	}

	// Create servo group from calibration IDs
	ids := cal.ServoIDs()
	if len(ids) == 0 {
		bus.Close()
		return nil, fmt.Errorf("no joints configured")
	}
	group := feetech.NewServoGroupByIDs(bus, ids...)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	lo, hi := slices.Min(ids), slices.Max(ids)
	found, err := bus.Scan(ctx, lo, hi)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("scan bus: %w", err)
	}

	servos := make(map[JointName]*feetech.Servo, len(cal))
	for _, s := range found {
		if name, _, ok := cal.ByID(s.ID); ok {
			servos[name] = feetech.NewServo(bus, s.ID, s.Model)
		}
	}
	for _, name := range cal.Joints() {
		if _, ok := servos[name]; !ok {
			bus.Close()
			return nil, fmt.Errorf("servo %d for joint %s not found on %s", cal[name].ServoID, name, cfg.Port)
		}
	}

	return &Arm{
		bus:         bus,
		group:       group,
		servos:      servos,
		calibration: cal,
	}, nil
}

// Close closes the arm's bus connection.
func (a *Arm) Close() error {
	return a.bus.Close()
}

// Enable enables torque on all servos.
func (a *Arm) Enable(ctx context.Context) error {
	return a.group.EnableAll(ctx)
}

// Disable disables torque on all servos.
func (a *Arm) Disable(ctx context.Context) error {
	return a.group.DisableAll(ctx)
}

// Samples reads the raw position code of every joint with one sync read.
// If the read fails every joint is unavailable for this cycle.
func (a *Arm) Samples(ctx context.Context) map[JointName]joint.Sample {
	samples := make(map[JointName]joint.Sample, len(a.calibration))
	for _, name := range a.calibration.Joints() {
		samples[name] = joint.Unavailable
	}

	rawPositions, err := a.group.Positions(ctx)
	if err != nil {
		return samples
	}

	for id, raw := range rawPositions {
		name, _, ok := a.calibration.ByID(id)
		if !ok {
			continue
		}
		samples[name] = joint.Code(raw)
	}

	return samples
}

// MoveTo drives one joint to the target angle and waits until the servo
// reports it has arrived.
func (a *Arm) MoveTo(ctx context.Context, name JointName, degrees float64) error {
	servo, ok := a.servos[name]
	if !ok {
		return fmt.Errorf("joint %s has no servo", name)
	}
	jc := a.calibration[name]
	target := jc.Target(degrees)

	if err := servo.SetPosition(ctx, target); err != nil {
		return fmt.Errorf("write position: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, moveTimeout)
	defer cancel()
	ticker := time.NewTicker(movePoll)
	defer ticker.Stop()

	for {
		pos, err := servo.Position(ctx)
		if err == nil && abs(pos-target) <= moveTolerance {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("joint %s: move to %d steps: %w", name, target, ctx.Err())
		case <-ticker.C:
		}
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
