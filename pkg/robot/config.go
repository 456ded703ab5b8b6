package robot

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"go.uber.org/multierr"

	"github.com/gwillem/armpose/pkg/joint"
	"github.com/gwillem/armpose/pkg/kinematics"
)

const DefaultConfigFile = "armpose.json"

// Sensor bus drivers.
const (
	DriverFeetech = "feetech"
	DriverAS5600  = "as5600"
	DriverSim     = "sim"
)

// Config holds the robot configuration
type Config struct {
	Bus    BusConfig   `json:"bus"`
	Panel  PanelConfig `json:"panel"`
	Joints Calibration `json:"joints"`

	// CalibrationFile names a separate joints file, relative to the config
	// file. It is read only when Joints is empty.
	CalibrationFile string `json:"calibration_file,omitempty"`

	// Chain defaults to kinematics.DefaultChain when absent from the file.
	Chain kinematics.Chain `json:"chain"`

	// FixedDegrees holds the angle of every joint without a sensor.
	// Missing entries are 0.
	FixedDegrees map[JointName]float64 `json:"fixed_degrees,omitempty"`
}

// BusConfig selects and addresses the sensor and actuator hardware.
type BusConfig struct {
	Driver   string `json:"driver"`
	Port     string `json:"port,omitempty"`      // feetech serial port
	BaudRate int    `json:"baud_rate,omitempty"` // feetech serial speed
	I2CBus   string `json:"i2c_bus,omitempty"`   // as5600, "" for the first bus
	MuxAddr  uint16 `json:"mux_addr,omitempty"`  // as5600 TCA9548A address
}

// PanelConfig addresses the touch panel that supplies commanded angles.
type PanelConfig struct {
	Port     string `json:"port,omitempty"`
	BaudRate int    `json:"baud_rate,omitempty"`
}

// Enabled reports whether a panel port is configured.
func (p PanelConfig) Enabled() bool {
	return p.Port != ""
}

// DefaultConfig returns the reference arm: three sensorized, actuated joints
// on the simulator and the default link table.
func DefaultConfig() *Config {
	joints := make(Calibration, 3)
	for _, name := range []JointName{Base, Shoulder, Elbow} {
		jc := NewJointCalibration()
		jc.ServoID = name.Index() + 1
		jc.MuxChannel = name.Index()
		jc.Actuated = true
		jc.StepsPerDegree = float64(joint.DefaultResolution) / 360
		joints[name] = jc
	}
	return &Config{
		Bus:    BusConfig{Driver: DriverSim, BaudRate: 1_000_000, MuxAddr: 0x70},
		Panel:  PanelConfig{BaudRate: 9600},
		Joints: joints,
		Chain:  kinematics.DefaultChain(),
	}
}

// Fixed returns the configured angle of a joint without a sensor.
func (c *Config) Fixed(name JointName) float64 {
	return c.FixedDegrees[name]
}

// Validate checks the configuration once at startup. A config that fails
// validation must not be used to run the control cycle.
func (c *Config) Validate() error {
	var errs error

	switch c.Bus.Driver {
	case DriverFeetech:
		if c.Bus.Port == "" {
			errs = multierr.Append(errs, fmt.Errorf("bus: feetech driver needs a port"))
		}
		seen := make(map[int]JointName)
		for _, name := range c.Joints.Joints() {
			id := c.Joints[name].ServoID
			if id < 1 || id > 253 {
				errs = multierr.Append(errs, fmt.Errorf("joint %s: servo id %d out of range 1-253", name, id))
			}
			if other, dup := seen[id]; dup {
				errs = multierr.Append(errs, fmt.Errorf("joint %s: servo id %d already used by %s", name, id, other))
			}
			seen[id] = name
		}
	case DriverAS5600:
		seen := make(map[int]JointName)
		for _, name := range c.Joints.Joints() {
			ch := c.Joints[name].MuxChannel
			if ch < 0 || ch > 7 {
				errs = multierr.Append(errs, fmt.Errorf("joint %s: mux channel %d out of range 0-7", name, ch))
			}
			if other, dup := seen[ch]; dup {
				errs = multierr.Append(errs, fmt.Errorf("joint %s: mux channel %d already used by %s", name, ch, other))
			}
			seen[ch] = name
		}
	case DriverSim:
	default:
		errs = multierr.Append(errs, fmt.Errorf("bus: unknown driver %q", c.Bus.Driver))
	}

	errs = multierr.Append(errs, c.Joints.Validate())
	if err := c.Chain.Validate(); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("chain: %w", err))
	}

	for name, deg := range c.FixedDegrees {
		if name.Index() < 0 {
			errs = multierr.Append(errs, fmt.Errorf("fixed_degrees: unknown joint %q", name))
		}
		if _, sensorized := c.Joints[name]; sensorized {
			errs = multierr.Append(errs, fmt.Errorf("fixed_degrees: joint %s has a sensor", name))
		}
		if math.IsNaN(deg) || math.IsInf(deg, 0) {
			errs = multierr.Append(errs, fmt.Errorf("fixed_degrees: joint %s is not finite", name))
		}
	}

	return errs
}

// LoadConfig loads configuration from the default config file
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(DefaultConfigFile)
}

// LoadConfigFrom loads configuration from a specific file
func LoadConfigFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{Chain: kinematics.DefaultChain()}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(cfg.Joints) == 0 && cfg.CalibrationFile != "" {
		calPath := cfg.CalibrationFile
		if !filepath.IsAbs(calPath) {
			calPath = filepath.Join(filepath.Dir(path), calPath)
		}
		joints, err := LoadCalibration(calPath)
		if err != nil {
			return nil, err
		}
		cfg.Joints = joints
	}
	return cfg, nil
}

// Save saves configuration to the default config file
func (c *Config) Save() error {
	return c.SaveTo(DefaultConfigFile)
}

// SaveTo saves configuration to a specific file
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ConfigExists returns true if the default config file exists
func ConfigExists() bool {
	_, err := os.Stat(DefaultConfigFile)
	return err == nil
}
