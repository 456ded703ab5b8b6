// Package cycle runs the arm's sequential control cycle: command, actuate,
// sample, track, calibrate and solve.
package cycle

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gwillem/armpose/pkg/joint"
	"github.com/gwillem/armpose/pkg/kinematics"
	"github.com/gwillem/armpose/pkg/posefilter"
	"github.com/gwillem/armpose/pkg/robot"
)

// DefaultMaxSampleStep is the default sensor-side rotation allowed between
// two samples of a moving joint, in degrees.
const DefaultMaxSampleStep = 90

// State is the output of one cycle.
type State struct {
	// Degrees holds every joint angle in chain order. Sensorized joints are
	// normalized to [0, 360); the others carry their fixed angle.
	Degrees    [kinematics.Links]float64
	Continuous map[robot.JointName]float64
	Available  map[robot.JointName]bool

	Transform kinematics.Transform
	Pose      kinematics.Pose

	// Smoothed is the filtered position; Accepted is false when the filter
	// rejected this cycle's pose as a jump.
	Smoothed mgl64.Vec3
	Accepted bool

	Timestamp time.Time
	Error     error
}

type syncState int

const (
	unsynced syncState = iota
	synced
)

// actuated tracks one actuated joint. The first command only syncs the
// target so the arm does not jump at boot.
type actuated struct {
	state  syncState
	target float64
}

// Controller manages the control cycle. Step and Run must be called from a
// single goroutine.
type Controller struct {
	sensors  robot.SampleSource
	actuator robot.Actuator
	commands robot.CommandSource
	joints   robot.Calibration
	chain    kinematics.Chain
	fixed    map[robot.JointName]float64
	hz       int
	maxStep  float64
	filter   *posefilter.Filter
	recorder *posefilter.Recorder
	logger   *zap.Logger

	trackers  map[robot.JointName]*joint.Tracker
	angles    map[robot.JointName]float64
	available map[robot.JointName]bool
	actuated  map[robot.JointName]*actuated

	mu      sync.RWMutex
	running bool
	stateCh chan State
	logCh   chan string
}

// Config holds configuration for the controller.
type Config struct {
	Sensors  robot.SampleSource
	Actuator robot.Actuator      // optional when Commands is nil
	Commands robot.CommandSource // optional
	Joints   robot.Calibration
	Chain    kinematics.Chain
	Fixed    map[robot.JointName]float64
	Hz       int

	// MaxSampleStep bounds the sensor-side rotation between samples while
	// a joint moves. Moves are split into segments and every sensor is
	// sampled after each one. Must be below 180; 0 selects the default.
	MaxSampleStep float64

	Filter   *posefilter.Filter   // optional
	Recorder *posefilter.Recorder // optional, closed by Close
	Logger   *zap.Logger          // optional
}

// NewController validates cfg and creates a controller with fresh joint trackers.
func NewController(cfg Config) (*Controller, error) {
	var errs error
	if cfg.Sensors == nil {
		errs = multierr.Append(errs, errors.New("no sample source"))
	}
	if err := cfg.Joints.Validate(); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("joints: %w", err))
	}
	if err := cfg.Chain.Validate(); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("chain: %w", err))
	}
	if cfg.MaxSampleStep == 0 {
		cfg.MaxSampleStep = DefaultMaxSampleStep
	}
	if !(cfg.MaxSampleStep > 0 && cfg.MaxSampleStep < 180) {
		errs = multierr.Append(errs, fmt.Errorf("max sample step must be in (0, 180), got %v", cfg.MaxSampleStep))
	}
	if cfg.Commands != nil && cfg.Actuator == nil && len(cfg.Joints.Actuated()) > 0 {
		errs = multierr.Append(errs, errors.New("commands configured without an actuator"))
	}
	if errs != nil {
		return nil, errs
	}

	if cfg.Hz <= 0 {
		cfg.Hz = 10
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	c := &Controller{
		sensors:   cfg.Sensors,
		actuator:  cfg.Actuator,
		commands:  cfg.Commands,
		joints:    cfg.Joints,
		chain:     cfg.Chain,
		fixed:     cfg.Fixed,
		hz:        cfg.Hz,
		maxStep:   cfg.MaxSampleStep,
		filter:    cfg.Filter,
		recorder:  cfg.Recorder,
		trackers:  make(map[robot.JointName]*joint.Tracker, len(cfg.Joints)),
		angles:    make(map[robot.JointName]float64, len(cfg.Joints)),
		available: make(map[robot.JointName]bool, len(cfg.Joints)),
		actuated:  make(map[robot.JointName]*actuated),
		stateCh:   make(chan State, 1),
		logCh:     make(chan string, 10),
	}
	c.logger = cfg.Logger.WithOptions(zap.Hooks(c.forwardLog))

	for _, name := range cfg.Joints.Joints() {
		c.trackers[name] = &joint.Tracker{}
	}
	for _, name := range cfg.Joints.Actuated() {
		c.actuated[name] = &actuated{}
	}

	return c, nil
}

// Close stops the controller and closes the recorder.
func (c *Controller) Close() error {
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()

	_ = c.logger.Sync()
	if c.recorder != nil {
		return c.recorder.Close()
	}
	return nil
}

// States returns a channel that receives state updates.
func (c *Controller) States() <-chan State {
	return c.stateCh
}

// Logs returns a channel that receives log messages.
func (c *Controller) Logs() <-chan string {
	return c.logCh
}

// Hz returns the control frequency.
func (c *Controller) Hz() int {
	return c.hz
}

func (c *Controller) forwardLog(e zapcore.Entry) error {
	msg := fmt.Sprintf("[%s] %s", e.Time.Format("15:04:05"), e.Message)
	select {
	case c.logCh <- msg:
	default:
		// Drop if channel full
	}
	return nil
}

// Run executes the control cycle at the configured rate until ctx is done.
func (c *Controller) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("already running")
	}
	c.running = true
	c.mu.Unlock()

	c.logger.Info(fmt.Sprintf("Control cycle started at %d Hz", c.hz),
		zap.Int("joints", len(c.joints)),
		zap.Float64("max_sample_step", c.maxStep))

	ticker := time.NewTicker(time.Second / time.Duration(c.hz))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return ctx.Err()
		case <-ticker.C:
			c.sendState(c.Step(ctx))
		}
	}
}

// Step runs one full cycle and returns its state.
func (c *Controller) Step(ctx context.Context) State {
	var errs error
	if c.commands != nil {
		cmds, err := c.commands.Commands(ctx)
		if err != nil {
			c.logger.Warn("Command input error", zap.Error(err))
			errs = multierr.Append(errs, err)
		}
		for name := range cmds {
			if _, ok := c.actuated[name]; !ok {
				c.logger.Debug("Ignoring command for joint without actuator", zap.String("joint", string(name)))
			}
		}
		for _, name := range c.joints.Actuated() {
			if deg, ok := cmds[name]; ok {
				errs = multierr.Append(errs, c.command(ctx, name, deg))
			}
		}
	}

	c.sample(ctx)
	return c.solve(errs)
}

func (c *Controller) command(ctx context.Context, name robot.JointName, degrees float64) error {
	a := c.actuated[name]
	if a.state == unsynced {
		a.state = synced
		a.target = degrees
		c.logger.Info(fmt.Sprintf("Joint %s synced at %.1f°", name, degrees),
			zap.String("joint", string(name)), zap.Float64("degrees", degrees))
		return nil
	}
	if degrees == a.target {
		return nil
	}

	from := a.target
	// The target moves on even if the move fails; the core never retries.
	a.target = degrees
	return c.move(ctx, name, from, degrees)
}

// move drives a joint from one target to another in segments small enough
// that the sensor turns less than maxStep between samples.
func (c *Controller) move(ctx context.Context, name robot.JointName, from, to float64) error {
	jc := c.joints[name]
	delta := to - from
	n := int(math.Ceil(math.Abs(delta) * jc.GearRatio / c.maxStep))
	if n < 1 {
		n = 1
	}

	for i := 1; i <= n; i++ {
		pos := from + delta*float64(i)/float64(n)
		if err := c.actuator.MoveTo(ctx, name, pos); err != nil {
			c.logger.Error("Move failed", zap.String("joint", string(name)),
				zap.Float64("target", pos), zap.Error(err))
			return fmt.Errorf("move %s to %.1f: %w", name, pos, err)
		}
		c.sample(ctx)
	}

	c.logger.Debug("Move complete", zap.String("joint", string(name)),
		zap.Float64("degrees", to), zap.Int("segments", n))
	return nil
}

// sample reads every sensor once and advances the trackers.
func (c *Controller) sample(ctx context.Context) {
	samples := c.sensors.Samples(ctx)
	for _, name := range c.joints.Joints() {
		jc := c.joints[name]
		s := samples[name] // missing entries are Unavailable

		if !s.OK {
			if c.available[name] {
				c.logger.Warn(fmt.Sprintf("Sensor %s unavailable, holding last angle", name),
					zap.String("joint", string(name)))
			}
			c.available[name] = false
			continue
		}

		tr := c.trackers[name]
		if !c.available[name] && tr.Initialized() {
			c.logger.Info(fmt.Sprintf("Sensor %s restored", name), zap.String("joint", string(name)))
		}
		c.angles[name] = jc.Apply(tr.UpdateSample(s, jc.Sensor))
		c.available[name] = true
	}
}

func (c *Controller) solve(err error) State {
	var degrees [kinematics.Links]float64
	for i, name := range robot.AllJoints() {
		if _, ok := c.joints[name]; ok {
			degrees[i] = c.angles[name]
		} else {
			degrees[i] = c.fixed[name]
		}
	}

	t, pose := c.chain.Solve(degrees)
	st := State{
		Degrees:    degrees,
		Continuous: make(map[robot.JointName]float64, len(c.trackers)),
		Available:  make(map[robot.JointName]bool, len(c.trackers)),
		Transform:  t,
		Pose:       pose,
		Smoothed:   pose.Position(),
		Accepted:   true,
		Timestamp:  time.Now(),
		Error:      err,
	}
	for name, tr := range c.trackers {
		st.Continuous[name] = tr.Continuous()
		st.Available[name] = c.available[name]
	}

	if c.filter != nil {
		st.Smoothed, st.Accepted = c.filter.Add(pose.Position())
		if !st.Accepted {
			c.logger.Debug("Pose rejected as a jump", zap.Float64("x", pose.X),
				zap.Float64("y", pose.Y), zap.Float64("z", pose.Z))
		}
	}
	if c.recorder != nil && st.Accepted {
		if _, err := c.recorder.Record(st.Smoothed); err != nil {
			c.logger.Error("Record failed", zap.Error(err))
		}
	}

	return st
}

func (c *Controller) sendState(s State) {
	select {
	case c.stateCh <- s:
	default:
		// Drop old state if channel full, replace with new
		select {
		case <-c.stateCh:
		default:
		}
		c.stateCh <- s
	}
}

func (c *Controller) shutdown() {
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()

	c.logger.Info("Control cycle stopped")
}
