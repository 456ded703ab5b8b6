package robot

import (
	"context"
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/gwillem/armpose/pkg/joint"
)

const (
	as5600Addr     = 0x36
	as5600RawAngle = 0x0C // RAW ANGLE, 12 bits across 0x0C..0x0D
	defaultMuxAddr = 0x70
)

// Mux is a set of AS5600 magnetic angle sensors behind a TCA9548A I2C
// multiplexer, one per mux channel.
type Mux struct {
	bus         i2c.BusCloser
	mux         i2c.Dev
	sensor      i2c.Dev
	calibration Calibration
	selected    int
}

// OpenMux initializes the host drivers and opens the I2C bus.
func OpenMux(cfg BusConfig, cal Calibration) (*Mux, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init host: %w", err)
	}
	bus, err := i2creg.Open(cfg.I2CBus)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", cfg.I2CBus, err)
	}
	return newMux(bus, cfg.MuxAddr, cal), nil
}

func newMux(bus i2c.BusCloser, muxAddr uint16, cal Calibration) *Mux {
	if muxAddr == 0 {
		muxAddr = defaultMuxAddr
	}
	return &Mux{
		bus:         bus,
		mux:         i2c.Dev{Bus: bus, Addr: muxAddr},
		sensor:      i2c.Dev{Bus: bus, Addr: as5600Addr},
		calibration: cal,
		selected:    -1,
	}
}

// Close closes the I2C bus.
func (m *Mux) Close() error {
	return m.bus.Close()
}

// Samples selects each joint's mux channel in turn and reads its sensor.
// A joint whose channel or sensor does not answer is unavailable.
func (m *Mux) Samples(ctx context.Context) map[JointName]joint.Sample {
	samples := make(map[JointName]joint.Sample, len(m.calibration))
	for _, name := range m.calibration.Joints() {
		code, err := m.read(m.calibration[name].MuxChannel)
		if err != nil {
			samples[name] = joint.Unavailable
			continue
		}
		samples[name] = joint.Code(code)
	}
	return samples
}

func (m *Mux) read(channel int) (int, error) {
	if channel != m.selected {
		if err := m.mux.Tx([]byte{1 << uint(channel)}, nil); err != nil {
			m.selected = -1
			return 0, fmt.Errorf("select mux channel %d: %w", channel, err)
		}
		m.selected = channel
	}
	buf := make([]byte, 2)
	if err := m.sensor.Tx([]byte{as5600RawAngle}, buf); err != nil {
		return 0, fmt.Errorf("read raw angle on channel %d: %w", channel, err)
	}
	return int(buf[0]&0x0F)<<8 | int(buf[1]), nil
}
