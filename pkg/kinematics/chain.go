// Package kinematics computes the end-effector pose of a six-link arm from
// Denavit-Hartenberg link parameters.
package kinematics

import (
	"encoding/json"
	"fmt"
	"math"

	"go.uber.org/multierr"
)

// Links is the number of links in the chain.
const Links = 6

// LinkParams holds the DH parameters of one link. Angles are radians,
// lengths meters.
type LinkParams struct {
	ThetaOffset float64 `json:"theta_offset_rad"`
	D           float64 `json:"d_m"`
	A           float64 `json:"a_m"`
	Alpha       float64 `json:"alpha_rad"`
}

func (l LinkParams) validate() error {
	for _, v := range []float64{l.ThetaOffset, l.D, l.A, l.Alpha} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("non-finite parameter in %+v", l)
		}
	}
	return nil
}

// Chain is the fixed link table of an arm, base link first.
// It is a value type; a Chain is never modified after it is built.
type Chain [Links]LinkParams

// DefaultChain returns the link table of the reference arm.
func DefaultChain() Chain {
	return Chain{
		{ThetaOffset: 0, D: 0.3991, A: 0, Alpha: Radians(-90)},
		{ThetaOffset: Radians(-90), D: 0, A: 0.448, Alpha: 0},
		{ThetaOffset: 0, D: 0, A: 0.042, Alpha: Radians(-90)},
		{ThetaOffset: 0, D: 0.451, A: 0, Alpha: Radians(90)},
		{ThetaOffset: 0, D: 0, A: 0, Alpha: Radians(-90)},
		{ThetaOffset: Radians(180), D: 0.082, A: 0, Alpha: 0},
	}
}

// UnmarshalJSON decodes a link table, which must list exactly Links links.
func (c *Chain) UnmarshalJSON(data []byte) error {
	var links []LinkParams
	if err := json.Unmarshal(data, &links); err != nil {
		return err
	}
	if len(links) != Links {
		return fmt.Errorf("chain has %d links, want %d", len(links), Links)
	}
	copy(c[:], links)
	return nil
}

// Validate reports every link with a non-finite parameter.
func (c Chain) Validate() error {
	var errs error
	for i, l := range c {
		if err := l.validate(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("link %d: %w", i+1, err))
		}
	}
	return errs
}

// Radians converts degrees to radians.
func Radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Degrees converts radians to degrees.
func Degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}
