package main

import (
	"os"

	"github.com/jessevdk/go-flags"
)

type Options struct {
	Config string `short:"c" long:"config" default:"armpose.json" description:"Configuration file"`

	Setup   SetupCommand   `command:"setup" description:"Configure sensors and record the home pose"`
	Monitor MonitorCommand `command:"monitor" alias:"run" description:"Run the control cycle and display joint angles and position"`
	Pose    PoseCommand    `command:"pose" description:"Compute the end-effector pose for given joint angles"`
	Ports   PortsCommand   `command:"ports" description:"List serial ports"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	parser.LongDescription = "armpose - joint angle and end-effector position for a partially actuated arm"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}
