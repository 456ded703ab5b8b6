package robot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.bug.st/serial"
)

const (
	panelReadTimeout = 20 * time.Millisecond
	// maxPending bounds an unterminated record; older bytes are dropped.
	maxPending = 256
)

// Panel reads commanded joint angles from a touch panel on a serial port.
// Each record is one line "j<n>=<degrees>" where n is the 1-based chain
// position of the joint, e.g. "j2=135.5".
type Panel struct {
	r       io.ReadCloser
	pending []byte
	buf     []byte
}

// OpenPanel opens the panel's serial port.
func OpenPanel(cfg PanelConfig) (*Panel, error) {
	baud := cfg.BaudRate
	if baud == 0 {
		baud = 9600
	}
	port, err := serial.Open(cfg.Port, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open panel port %s: %w", cfg.Port, err)
	}
	// Reads return empty after the timeout so a poll never blocks the cycle.
	if err := port.SetReadTimeout(panelReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set panel read timeout: %w", err)
	}
	return NewPanel(port), nil
}

// NewPanel reads panel records from r.
func NewPanel(r io.ReadCloser) *Panel {
	return &Panel{r: r, buf: make([]byte, 256)}
}

// Close closes the underlying port.
func (p *Panel) Close() error {
	return p.r.Close()
}

// Commands drains what the panel has sent and returns the latest angle
// per joint. Malformed records are skipped and reported in the error
// together with the valid commands.
func (p *Panel) Commands(ctx context.Context) (map[JointName]float64, error) {
	for {
		n, err := p.r.Read(p.buf)
		p.pending = append(p.pending, p.buf[:n]...)
		if n == 0 || err != nil {
			if err != nil && !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("read panel: %w", err)
			}
			break
		}
		if ctx.Err() != nil {
			break
		}
	}

	cmds := make(map[JointName]float64)
	var errs []error
	for {
		i := bytes.IndexByte(p.pending, '\n')
		if i < 0 {
			break
		}
		line := strings.TrimSpace(string(p.pending[:i]))
		p.pending = p.pending[i+1:]
		if line == "" {
			continue
		}
		name, deg, err := ParseCommand(line)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		cmds[name] = deg
	}
	if len(p.pending) > maxPending {
		errs = append(errs, fmt.Errorf("panel record longer than %d bytes, dropped %d bytes", maxPending, len(p.pending)-maxPending))
		p.pending = append([]byte(nil), p.pending[len(p.pending)-maxPending:]...)
	}
	return cmds, errors.Join(errs...)
}

// ParseCommand parses one "j<n>=<degrees>" record.
func ParseCommand(line string) (JointName, float64, error) {
	key, value, ok := strings.Cut(line, "=")
	if !ok || !strings.HasPrefix(key, "j") {
		return "", 0, fmt.Errorf("malformed panel record %q", line)
	}
	n, err := strconv.Atoi(key[1:])
	joints := AllJoints()
	if err != nil || n < 1 || n > len(joints) {
		return "", 0, fmt.Errorf("panel record %q: bad joint number", line)
	}
	deg, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return "", 0, fmt.Errorf("panel record %q: bad angle", line)
	}
	if deg < 0 || deg > 360 {
		return "", 0, fmt.Errorf("panel record %q: angle outside 0-360", line)
	}
	return joints[n-1], deg, nil
}
