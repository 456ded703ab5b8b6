package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/gwillem/armpose/pkg/kinematics"
	"github.com/gwillem/armpose/pkg/robot"
)

type PoseCommand struct {
	Frames bool `long:"frames" description:"Print the position of every link frame"`
	Args   struct {
		// Negative angles need a preceding "--".
		Degrees []string `positional-arg-name:"DEGREES" description:"Joint angles in chain order, missing joints are 0"`
	} `positional-args:"yes"`
}

// parseDegrees reads up to six joint angles in chain order.
func parseDegrees(args []string) ([kinematics.Links]float64, error) {
	var degrees [kinematics.Links]float64
	if len(args) > kinematics.Links {
		return degrees, fmt.Errorf("expected at most %d angles, got %d", kinematics.Links, len(args))
	}
	for i, arg := range args {
		v, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return degrees, fmt.Errorf("angle %d: %w", i+1, err)
		}
		degrees[i] = v
	}
	return degrees, nil
}

// loadChain returns the chain configured in path, or the default chain when
// there is no config file.
func loadChain(path string) (kinematics.Chain, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return kinematics.DefaultChain(), nil
	}
	cfg, err := robot.LoadConfigFrom(path)
	if err != nil {
		return kinematics.Chain{}, fmt.Errorf("load %s: %w", path, err)
	}
	if err := cfg.Chain.Validate(); err != nil {
		return kinematics.Chain{}, fmt.Errorf("chain in %s: %w", path, err)
	}
	return cfg.Chain, nil
}

func (c *PoseCommand) Execute(args []string) error {
	degrees, err := parseDegrees(append(c.Args.Degrees, args...))
	if err != nil {
		return err
	}

	chain, err := loadChain(opts.Config)
	if err != nil {
		return err
	}

	t, pose := chain.Solve(degrees)

	cell := lipgloss.NewStyle().Padding(0, 1)
	head := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	style := func(row, col int) lipgloss.Style {
		if row == table.HeaderRow {
			return head
		}
		return cell
	}

	angles := make([]string, 0, kinematics.Links)
	for _, d := range degrees {
		angles = append(angles, fmt.Sprintf("%.1f", d))
	}
	fmt.Println(headerStyle.Render("Joint angles (°)"))
	fmt.Println(table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers(jointHeaders()...).
		Row(angles...).
		StyleFunc(style).
		Render())

	rows := make([][]string, 0, 4)
	for r := 0; r < 4; r++ {
		row := make([]string, 0, 4)
		for col := 0; col < 4; col++ {
			row = append(row, fmt.Sprintf("%.6f", t.At(r, col)))
		}
		rows = append(rows, row)
	}
	fmt.Println(headerStyle.Render("Base to end-effector transform"))
	fmt.Println(table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Rows(rows...).
		StyleFunc(style).
		Render())

	q := pose.Orientation()
	fmt.Printf("Position (m):  x=%.3f  y=%.3f  z=%.3f\n", pose.X, pose.Y, pose.Z)
	fmt.Printf("Orientation:   w=%.4f  x=%.4f  y=%.4f  z=%.4f\n", q.W, q.V[0], q.V[1], q.V[2])

	if c.Frames {
		frames := chain.Frames(degrees)
		rows := make([][]string, 0, len(frames))
		for i, f := range frames {
			p := f.Translation()
			rows = append(rows, []string{
				string(robot.AllJoints()[i]),
				fmt.Sprintf("%.3f", p.X()),
				fmt.Sprintf("%.3f", p.Y()),
				fmt.Sprintf("%.3f", p.Z()),
			})
		}
		fmt.Println()
		fmt.Println(headerStyle.Render("Link frames"))
		fmt.Println(table.New().
			Border(lipgloss.RoundedBorder()).
			BorderStyle(dimStyle).
			Headers("Frame", "x (m)", "y (m)", "z (m)").
			Rows(rows...).
			StyleFunc(style).
			Render())
	}

	return nil
}

func jointHeaders() []string {
	headers := make([]string, 0, kinematics.Links)
	for _, name := range robot.AllJoints() {
		headers = append(headers, string(name))
	}
	return headers
}
