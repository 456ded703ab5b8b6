package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"go.uber.org/zap"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"github.com/gwillem/armpose/pkg/cycle"
	"github.com/gwillem/armpose/pkg/posefilter"
	"github.com/gwillem/armpose/pkg/robot"
)

type MonitorCommand struct {
	Hz       int           `long:"hz" default:"10" description:"Control cycle frequency"`
	Sim      bool          `long:"sim" description:"Use the simulator instead of the configured hardware"`
	MaxStep  float64       `long:"max-step" default:"90" description:"Largest sensor rotation between samples during a move, degrees (< 180)"`
	Record   string        `long:"record" description:"Append smoothed positions to this CSV file"`
	Interval time.Duration `long:"interval" default:"1s" description:"Minimum time between recorded rows"`
	Window   int           `long:"window" default:"10" description:"Moving average window, cycles"`
	Jump     float64       `long:"jump" default:"0.2" description:"Reject positions jumping further than this, meters"`
	LogFile  string        `long:"log-file" default:"armpose.log" description:"Structured log output"`
}

const (
	headerHeight = 2  // title + blank line
	tableHeight  = 12 // joint and position tables
	footerHeight = 7  // log box height
	maxLogs      = 5  // number of log messages to show
	borderSize   = 2  // chart border
	chartRange   = 1.5
)

// Axis colors - distinct colors for x, y, z
var axisColors = map[string]string{
	"x": "196", // red
	"y": "46",  // green
	"z": "51",  // cyan
}

var axes = []string{"x", "y", "z"}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	staleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	headStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
)

type monitorModel struct {
	ctrl     *cycle.Controller
	joints   robot.Calibration
	chart    *streamlinechart.Model
	width    int      // terminal width
	height   int      // terminal height
	logs     []string // last N log messages
	state    *cycle.State
	quitting bool
}

func (m *monitorModel) addLog(msg string) {
	m.logs = append(m.logs, msg)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

// Messages from the controller
type stateMsg cycle.State
type logMsg string

func waitForState(ctrl *cycle.Controller) tea.Cmd {
	return func() tea.Msg {
		return stateMsg(<-ctrl.States())
	}
}

func waitForLog(ctrl *cycle.Controller) tea.Cmd {
	return func() tea.Msg {
		return logMsg(<-ctrl.Logs())
	}
}

// chartSize calculates the size of the chart based on terminal dimensions
func (m *monitorModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 12 // default size before we know terminal size
	}
	width = m.width - borderSize - 2
	if width < 40 {
		width = 40
	}
	height = m.height - headerHeight - tableHeight - footerHeight - borderSize
	if height < 6 {
		height = 6
	}
	return width, height
}

func (m *monitorModel) resizeChart() {
	w, h := m.chartSize()
	m.chart.Resize(w, h)
}

func initialMonitorModel(ctrl *cycle.Controller, joints robot.Calibration) monitorModel {
	chart := streamlinechart.New(80, 12,
		streamlinechart.WithYRange(-chartRange, chartRange),
	)

	for _, axis := range axes {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(axisColors[axis]))
		chart.SetDataSetStyles(axis, runes.ThinLineStyle, style)
	}

	return monitorModel{
		ctrl:   ctrl,
		joints: joints,
		chart:  &chart,
	}
}

func (m monitorModel) Init() tea.Cmd {
	// Start listening for state and log updates
	return tea.Batch(
		waitForState(m.ctrl),
		waitForLog(m.ctrl),
	)
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeChart()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case stateMsg:
		state := cycle.State(msg)
		m.state = &state
		p := state.Smoothed
		m.chart.PushDataSet("x", p.X())
		m.chart.PushDataSet("y", p.Y())
		m.chart.PushDataSet("z", p.Z())
		m.chart.DrawAll()
		return m, waitForState(m.ctrl)

	case logMsg:
		m.addLog(string(msg))
		return m, waitForLog(m.ctrl)
	}

	return m, nil
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Monitor stopped.\n"
	}

	var sb strings.Builder

	// Header
	sb.WriteString(titleStyle.Render("armpose monitor"))
	sb.WriteString(fmt.Sprintf(" - %d Hz", m.ctrl.Hz()))
	if m.width > 0 {
		sb.WriteString(statusStyle.Render(fmt.Sprintf("  [%dx%d]", m.width, m.height)))
	}
	sb.WriteString("\n\n")

	sb.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, m.renderJoints(), "  ", m.renderPosition()))
	sb.WriteString("\n")

	// Chart
	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")
	sb.WriteString(renderLegend())
	sb.WriteString("\n")

	// Log box
	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(max(m.width-4, 20)).
		Foreground(lipgloss.Color("9")) // bright red

	var logLines string
	if len(m.logs) == 0 {
		logLines = statusStyle.Render("Press 'q' to quit")
	} else {
		logLines = strings.Join(m.logs, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")

	return sb.String()
}

// renderJoints shows every joint angle with one decimal.
func (m monitorModel) renderJoints() string {
	rows := make([][]string, 0, len(robot.AllJoints()))
	stale := make([]bool, 0, len(robot.AllJoints()))
	for i, name := range robot.AllJoints() {
		source := "fixed"
		available := true
		if _, ok := m.joints[name]; ok {
			source = "sensor"
			if m.state != nil {
				available = m.state.Available[name]
			}
		}
		angle := "-"
		if m.state != nil {
			angle = fmt.Sprintf("%.1f°", m.state.Degrees[i])
		}
		rows = append(rows, []string{string(name), angle, source})
		stale = append(stale, !available)
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(statusStyle).
		Headers("Joint", "Angle", "Source").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headStyle
			}
			if row >= 0 && row < len(stale) && stale[row] {
				return staleStyle
			}
			return cellStyle
		}).
		Render()
}

// renderPosition shows the end-effector position with three decimals.
func (m monitorModel) renderPosition() string {
	rows := [][]string{{"x", "-", "-"}, {"y", "-", "-"}, {"z", "-", "-"}}
	if m.state != nil {
		raw := m.state.Pose.Position()
		for i := range rows {
			rows[i][1] = fmt.Sprintf("%.3f", raw[i])
			rows[i][2] = fmt.Sprintf("%.3f", m.state.Smoothed[i])
		}
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(statusStyle).
		Headers("Axis", "Pose (m)", "Smoothed (m)").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headStyle
			}
			if col == 0 && row >= 0 && row < len(axes) {
				return cellStyle.Foreground(lipgloss.Color(axisColors[axes[row]]))
			}
			return cellStyle
		}).
		Render()
}

func renderLegend() string {
	var items []string
	for _, axis := range axes {
		colorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(axisColors[axis])).Bold(true)
		item := colorStyle.Render("━━") + " " + axis
		items = append(items, item)
	}
	return strings.Join(items, "  ")
}

func newFileLogger(path string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{path}
	return cfg.Build()
}

func (c *MonitorCommand) Execute(args []string) error {
	var cfg *robot.Config
	if c.Sim && !robot.ConfigExists() && opts.Config == robot.DefaultConfigFile {
		cfg = robot.DefaultConfig()
	} else {
		cfg = loadConfig(opts.Config)
	}
	if c.Sim {
		cfg.Bus.Driver = robot.DriverSim
	}

	logger, err := newFileLogger(c.LogFile)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logger.Sync()

	hw, err := openHardware(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer hw.Close()

	var recorder *posefilter.Recorder
	if c.Record != "" {
		recorder, err = posefilter.OpenRecorder(c.Record, c.Interval, nil)
		if err != nil {
			return err
		}
		fmt.Printf("Recording positions to %s\n", c.Record)
	}

	ctrl, err := cycle.NewController(cycle.Config{
		Sensors:       hw.sensors,
		Actuator:      hw.actuator,
		Commands:      hw.commands,
		Joints:        cfg.Joints,
		Chain:         cfg.Chain,
		Fixed:         cfg.FixedDegrees,
		Hz:            c.Hz,
		MaxSampleStep: c.MaxStep,
		Filter:        posefilter.NewFilter(c.Window, c.Jump),
		Recorder:      recorder,
		Logger:        logger.With(zap.String("driver", cfg.Bus.Driver)),
	})
	if err != nil {
		log.Fatalf("Failed to create controller: %v", err)
	}
	defer ctrl.Close()

	// Start controller in background
	stop := startController(ctrl, logger)

	// Run TUI
	p := tea.NewProgram(initialMonitorModel(ctrl, cfg.Joints), tea.WithAltScreen())
	_, err = p.Run()

	// The cycle must be idle before the recorder and torque are shut off.
	stop()
	if err != nil {
		log.Fatalf("Error running program: %v", err)
	}

	return nil
}

// startController runs ctrl in the background. The returned stop cancels
// the cycle and waits for Run to return.
func startController(ctrl *cycle.Controller, logger *zap.Logger) (stop func()) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		if err := ctrl.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Controller error", zap.Error(err))
		}
	}()

	return func() {
		cancel()
		<-done
	}
}
