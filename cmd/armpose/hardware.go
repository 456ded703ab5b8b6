package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/multierr"

	"github.com/gwillem/armpose/pkg/robot"
)

// hardware bundles the collaborators selected by the configuration.
type hardware struct {
	sensors  robot.SampleSource
	actuator robot.Actuator
	commands robot.CommandSource
	closers  []io.Closer
	onClose  func(context.Context) error
}

func openHardware(cfg *robot.Config) (*hardware, error) {
	hw := &hardware{}

	switch cfg.Bus.Driver {
	case robot.DriverFeetech:
		arm, err := robot.NewArm(cfg.Bus, cfg.Joints)
		if err != nil {
			return nil, fmt.Errorf("open feetech arm: %w", err)
		}
		hw.sensors, hw.actuator = arm, arm
		hw.closers = append(hw.closers, arm)
		if len(cfg.Joints.Actuated()) > 0 {
			if err := arm.Enable(context.Background()); err != nil {
				arm.Close()
				return nil, fmt.Errorf("enable torque: %w", err)
			}
			hw.onClose = arm.Disable
		}
	case robot.DriverAS5600:
		mux, err := robot.OpenMux(cfg.Bus, cfg.Joints)
		if err != nil {
			return nil, fmt.Errorf("open sensor mux: %w", err)
		}
		hw.sensors = mux
		hw.closers = append(hw.closers, mux)
	case robot.DriverSim:
		sim := robot.NewSim(cfg.Joints)
		hw.sensors, hw.actuator = sim, sim
	default:
		return nil, fmt.Errorf("unknown driver %q", cfg.Bus.Driver)
	}

	if cfg.Panel.Enabled() {
		panel, err := robot.OpenPanel(cfg.Panel)
		if err != nil {
			hw.Close()
			return nil, err
		}
		hw.commands = panel
		hw.closers = append(hw.closers, panel)
	}

	return hw, nil
}

func (h *hardware) Close() error {
	var errs error
	if h.onClose != nil {
		errs = multierr.Append(errs, h.onClose(context.Background()))
	}
	for _, c := range h.closers {
		errs = multierr.Append(errs, c.Close())
	}
	return errs
}

// loadConfig loads and validates the configuration, exiting on failure.
func loadConfig(path string) *robot.Config {
	cfg, err := robot.LoadConfigFrom(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "No usable configuration in %s: %v\nRun 'armpose setup' first.\n", path, err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration in %s:\n", path)
		for _, e := range multierr.Errors(err) {
			fmt.Fprintf(os.Stderr, "  - %v\n", e)
		}
		os.Exit(1)
	}
	return cfg
}
