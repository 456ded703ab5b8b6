package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/gwillem/armpose/pkg/cycle"
	"github.com/gwillem/armpose/pkg/robot"
)

func TestStartController_StopWaitsForRun(t *testing.T) {
	cfg := robot.DefaultConfig()
	logger := zaptest.NewLogger(t)
	ctrl, err := cycle.NewController(cycle.Config{
		Sensors: robot.NewSim(cfg.Joints),
		Joints:  cfg.Joints,
		Chain:   cfg.Chain,
		Hz:      100,
		Logger:  logger,
	})
	if err != nil {
		t.Fatalf("NewController() = %v", err)
	}

	stop := startController(ctrl, logger)
	select {
	case <-ctrl.States():
	case <-time.After(2 * time.Second):
		t.Fatal("no state received")
	}
	stop()

	// Run has returned, so a new Run is accepted and ends on its own context.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := ctrl.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() after stop = %v, want context.Canceled", err)
	}
	if err := ctrl.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
}
