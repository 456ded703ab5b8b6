package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/hipsterbrown/feetech-servo/feetech"
	"go.bug.st/serial"

	"github.com/gwillem/armpose/pkg/joint"
	"github.com/gwillem/armpose/pkg/robot"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	subHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// Servo IDs probed when looking for sensors on a feetech bus.
const (
	scanFirstID = 1
	scanLastID  = 12
)

const unassigned = "none"

type SetupCommand struct {
	Driver string `long:"driver" choice:"feetech" choice:"as5600" choice:"sim" description:"Skip the driver prompt"`
}

func (c *SetupCommand) Execute(args []string) error {
	fmt.Println(headerStyle.Render("armpose setup"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━"))
	fmt.Println()

	cfg := robot.DefaultConfig()
	if existing, err := robot.LoadConfigFrom(opts.Config); err == nil {
		fmt.Printf("Updating existing configuration %s\n\n", opts.Config)
		cfg = existing
	}
	if cfg.Joints == nil {
		cfg.Joints = make(robot.Calibration)
	}

	// Step 1: Sensor bus
	driver := c.Driver
	if driver == "" {
		driver = askDriver(cfg.Bus.Driver)
	}
	cfg.Bus.Driver = driver

	switch driver {
	case robot.DriverFeetech:
		setupFeetech(cfg)
	case robot.DriverAS5600:
		setupAS5600(cfg)
	}

	// Step 2: Gearing and direction per joint
	fmt.Println()
	fmt.Println(subHeaderStyle.Render("━━━ Joint gearing ━━━"))
	fmt.Println()
	for _, name := range cfg.Joints.Joints() {
		cfg.Joints[name] = askGearing(name, cfg.Joints[name], cfg.Bus.Driver != robot.DriverAS5600)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}

	// Step 3: Home pose
	fmt.Println()
	fmt.Println(subHeaderStyle.Render("━━━ Home pose ━━━"))
	fmt.Println()
	if err := homeJoints(cfg); err != nil {
		return err
	}

	if err := cfg.SaveTo(opts.Config); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"))
	fmt.Println(successStyle.Render("Setup complete!"))
	fmt.Printf("Configuration saved to %s\n", opts.Config)
	fmt.Println()
	fmt.Println("Start monitoring with: " + headerStyle.Render("armpose monitor"))

	return nil
}

func runForm(form *huh.Form) {
	if err := form.Run(); err != nil {
		fmt.Println()
		os.Exit(0)
	}
}

func askDriver(current string) string {
	driver := current
	runForm(huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("How are the joint sensors connected?").
				Options(
					huh.NewOption("Feetech servo bus (servo position register)", robot.DriverFeetech),
					huh.NewOption("AS5600 encoders behind an I2C mux", robot.DriverAS5600),
					huh.NewOption("Simulator", robot.DriverSim),
				).
				Value(&driver),
		),
	))
	return driver
}

func setupFeetech(cfg *robot.Config) {
	ports := usablePorts()
	if len(ports) == 0 {
		fmt.Println("No serial ports found.")
		fmt.Println("Make sure the servo bus adapter is connected.")
		os.Exit(1)
	}

	port := cfg.Bus.Port
	options := make([]huh.Option[string], 0, len(ports))
	for _, p := range ports {
		options = append(options, huh.NewOption(p, p))
	}
	runForm(huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Which port is the servo bus on?").
				Options(options...).
				Value(&port),
		),
	))
	cfg.Bus.Port = port

	fmt.Printf("Scanning %s for servos %d-%d...\n", port, scanFirstID, scanLastID)
	found, err := scanServos(port, cfg.Bus.BaudRate)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error scanning bus: %v\n", err)
		os.Exit(1)
	}
	if len(found) == 0 {
		fmt.Println("No servos found. Make sure the arm is powered on.")
		os.Exit(1)
	}
	for _, s := range found {
		fmt.Printf("  Found servo %d (model %v)\n", s.ID, s.Model)
	}
	fmt.Println()

	assignJoints(cfg, found)
}

func usablePorts() []string {
	ports, err := serial.GetPortsList()
	if err != nil {
		fmt.Printf("Error listing ports: %v\n", err)
		return nil
	}
	var usable []string
	for _, port := range ports {
		// Skip Bluetooth ports on macOS
		if strings.Contains(port, "Bluetooth") {
			continue
		}
		usable = append(usable, port)
	}
	return usable
}

func scanServos(port string, baud int) ([]feetech.FoundServo, error) {
	if baud == 0 {
		baud = 1_000_000
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     port,
		BaudRate: baud,
		Protocol: feetech.ProtocolSTS,
		Timeout:  100 * time.Millisecond,
	})
	if err != nil {
		return nil, err
	}
	defer bus.Close()

	return bus.Scan(ctx, scanFirstID, scanLastID)
}

// assignJoints asks which servo senses each joint. Joints left unassigned
// are dropped from the sensorized set and keep a fixed angle.
func assignJoints(cfg *robot.Config, found []feetech.FoundServo) {
	for _, name := range robot.AllJoints() {
		choice := unassigned
		if jc, ok := cfg.Joints[name]; ok {
			choice = strconv.Itoa(jc.ServoID)
		}

		options := []huh.Option[string]{huh.NewOption("No sensor (fixed angle)", unassigned)}
		for _, s := range found {
			id := strconv.Itoa(s.ID)
			options = append(options, huh.NewOption("Servo "+id, id))
		}

		runForm(huh.NewForm(
			huh.NewGroup(
				huh.NewSelect[string]().
					Title(fmt.Sprintf("Which servo is on the %s joint?", name)).
					Options(options...).
					Value(&choice),
			),
		))

		if choice == unassigned {
			delete(cfg.Joints, name)
			continue
		}
		id, _ := strconv.Atoi(choice)
		jc, ok := cfg.Joints[name]
		if !ok {
			jc = robot.NewJointCalibration()
			jc.StepsPerDegree = float64(jc.Resolution) / 360
		}
		jc.ServoID = id
		cfg.Joints[name] = jc
	}
}

func setupAS5600(cfg *robot.Config) {
	busName := cfg.Bus.I2CBus
	addr := fmt.Sprintf("0x%02x", cfg.Bus.MuxAddr)
	runForm(huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("I2C bus").
				Description("Leave empty for the first bus").
				Value(&busName),
			huh.NewInput().
				Title("Mux address").
				Value(&addr).
				Validate(func(s string) error {
					_, err := strconv.ParseUint(s, 0, 7)
					return err
				}),
		),
	))
	a, _ := strconv.ParseUint(addr, 0, 7)
	cfg.Bus.I2CBus = busName
	cfg.Bus.MuxAddr = uint16(a)

	for _, name := range robot.AllJoints() {
		channel := unassigned
		if jc, ok := cfg.Joints[name]; ok {
			channel = strconv.Itoa(jc.MuxChannel)
		}

		options := []huh.Option[string]{huh.NewOption("No sensor (fixed angle)", unassigned)}
		for ch := 0; ch < 8; ch++ {
			options = append(options, huh.NewOption(fmt.Sprintf("Channel %d", ch), strconv.Itoa(ch)))
		}
		runForm(huh.NewForm(
			huh.NewGroup(
				huh.NewSelect[string]().
					Title(fmt.Sprintf("Which mux channel is the %s encoder on?", name)).
					Options(options...).
					Value(&channel),
			),
		))

		if channel == unassigned {
			delete(cfg.Joints, name)
			continue
		}
		ch, _ := strconv.Atoi(channel)
		jc, ok := cfg.Joints[name]
		if !ok {
			jc = robot.NewJointCalibration()
		}
		jc.MuxChannel = ch
		// Encoders are passive.
		jc.Actuated = false
		cfg.Joints[name] = jc
	}
}

// askGearing asks for a joint's gear ratio and direction, and whether it
// follows panel commands when the bus can drive it.
func askGearing(name robot.JointName, jc robot.JointCalibration, actuatable bool) robot.JointCalibration {
	gear := strconv.FormatFloat(jc.GearRatio, 'f', -1, 64)
	invert := jc.Invert
	actuated := jc.Actuated && actuatable

	fields := []huh.Field{
		huh.NewInput().
			Title(fmt.Sprintf("%s: sensor turns per joint turn", name)).
			Value(&gear).
			Validate(func(s string) error {
				v, err := strconv.ParseFloat(s, 64)
				if err != nil {
					return err
				}
				if !(v > 0) {
					return errors.New("must be positive")
				}
				return nil
			}),
		huh.NewConfirm().
			Title(fmt.Sprintf("%s: does the sensor turn against the joint?", name)).
			Value(&invert),
	}
	if actuatable {
		fields = append(fields, huh.NewConfirm().
			Title(fmt.Sprintf("%s: should the servo follow panel commands?", name)).
			Value(&actuated))
	}
	runForm(huh.NewForm(huh.NewGroup(fields...)))

	jc.GearRatio, _ = strconv.ParseFloat(gear, 64)
	jc.Invert = invert
	return setActuated(jc, actuated)
}

// setActuated marks a joint as driven by commands, giving it the default
// step scale when it has none.
func setActuated(jc robot.JointCalibration, actuated bool) robot.JointCalibration {
	jc.Actuated = actuated
	if actuated && !(jc.StepsPerDegree > 0) {
		jc.StepsPerDegree = float64(jc.Resolution) / 360
	}
	return jc
}

// openSensors opens the configured sensors with torque off so joints can be
// moved by hand.
func openSensors(cfg *robot.Config) (robot.SampleSource, func() error, error) {
	switch cfg.Bus.Driver {
	case robot.DriverFeetech:
		arm, err := robot.NewArm(cfg.Bus, cfg.Joints)
		if err != nil {
			return nil, nil, err
		}
		arm.Disable(context.Background())
		return arm, arm.Close, nil
	case robot.DriverAS5600:
		mux, err := robot.OpenMux(cfg.Bus, cfg.Joints)
		if err != nil {
			return nil, nil, err
		}
		return mux, mux.Close, nil
	default:
		return robot.NewSim(cfg.Joints), func() error { return nil }, nil
	}
}

func homeJoints(cfg *robot.Config) error {
	source, closeFn, err := openSensors(cfg)
	if err != nil {
		return fmt.Errorf("open sensors: %w", err)
	}
	defer closeFn()

	fmt.Println("Move every sensorized joint to its zero position.")
	fmt.Println("The current pose becomes 0° for each joint.")
	fmt.Println()

	p := tea.NewProgram(newHomingModel(source, cfg.Joints))
	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("run homing: %w", err)
	}

	hm := finalModel.(homingModel)
	if !hm.confirmed {
		fmt.Println("Homing aborted, configuration not saved.")
		os.Exit(0)
	}

	for _, name := range cfg.Joints.Joints() {
		tr := hm.trackers[name]
		if !tr.Initialized() {
			return fmt.Errorf("joint %s: no sensor reading, check the wiring", name)
		}
		jc := cfg.Joints[name]
		jc.Calibration = jc.Calibration.Home(tr.Continuous())
		cfg.Joints[name] = jc
		fmt.Printf("  %-12s offset %.2f°\n", name, jc.OffsetDegrees)
	}
	return nil
}

// Homing TUI model
type homingModel struct {
	source    robot.SampleSource
	joints    robot.Calibration
	trackers  map[robot.JointName]*joint.Tracker
	samples   map[robot.JointName]joint.Sample
	confirmed bool
	quitting  bool
}

type tickMsg time.Time

func newHomingModel(source robot.SampleSource, joints robot.Calibration) homingModel {
	trackers := make(map[robot.JointName]*joint.Tracker, len(joints))
	for name := range joints {
		trackers[name] = &joint.Tracker{}
	}
	return homingModel{
		source:   source,
		joints:   joints,
		trackers: trackers,
		samples:  make(map[robot.JointName]joint.Sample),
	}
}

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m homingModel) Init() tea.Cmd {
	return tick()
}

func (m homingModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			m.confirmed = true
			m.quitting = true
			return m, tea.Quit
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tickMsg:
		samples := m.source.Samples(context.Background())
		for name, jc := range m.joints {
			s := samples[name]
			m.samples[name] = s
			m.trackers[name].UpdateSample(s, jc.Sensor)
		}
		return m, tick()
	}

	return m, nil
}

func (m homingModel) View() string {
	if m.quitting {
		return ""
	}

	var sb strings.Builder

	// Table styles
	tableHeaderStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	tableJointStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Padding(0, 1)
	tableCellStyle := lipgloss.NewStyle().Padding(0, 1)
	tableCurrentStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Padding(0, 1)
	tableMissingStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Padding(0, 1)

	names := m.joints.Joints()
	rows := make([][]string, 0, len(names))
	missing := make([]bool, 0, len(names))
	for _, name := range names {
		s := m.samples[name]
		tr := m.trackers[name]
		code, raw := "-", "-"
		if s.OK {
			code = strconv.Itoa(s.Code)
			raw = fmt.Sprintf("%.1f°", m.joints[name].Degrees(s.Code))
		}
		cont := "-"
		if tr.Initialized() {
			cont = fmt.Sprintf("%.1f°", tr.Continuous())
		}
		rows = append(rows, []string{string(name), code, raw, cont, strconv.Itoa(tr.Turns())})
		missing = append(missing, !s.OK)
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Joint", "Code", "Sensor", "Continuous", "Turns").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			if row >= 0 && row < len(missing) && missing[row] {
				return tableMissingStyle
			}
			switch col {
			case 0:
				return tableJointStyle
			case 3:
				return tableCurrentStyle
			default:
				return tableCellStyle
			}
		})

	sb.WriteString(t.Render())
	sb.WriteString("\n\n")
	sb.WriteString(dimStyle.Render("Press Enter to record the home pose, q to abort"))

	return sb.String()
}
