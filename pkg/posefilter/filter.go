// Package posefilter smooths and records end-effector positions.
package posefilter

import (
	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/stat"
)

// Defaults for NewFilter.
const (
	DefaultWindow    = 10
	DefaultJumpLimit = 0.20 // meters
)

// Filter rejects positions that jump too far from the last accepted one and
// returns the moving average of the accepted positions.
type Filter struct {
	jumpLimit float64
	window    int

	xs, ys, zs []float64
	last       mgl64.Vec3
	seeded     bool
	rejected   int
}

// NewFilter returns a filter averaging over window positions that rejects
// jumps larger than jumpLimit meters. Non-positive arguments select the
// defaults.
func NewFilter(window int, jumpLimit float64) *Filter {
	if window <= 0 {
		window = DefaultWindow
	}
	if jumpLimit <= 0 {
		jumpLimit = DefaultJumpLimit
	}
	return &Filter{jumpLimit: jumpLimit, window: window}
}

// Add offers a new position. It returns the smoothed position and whether p
// was accepted. A rejected position leaves the average unchanged.
func (f *Filter) Add(p mgl64.Vec3) (mgl64.Vec3, bool) {
	if f.seeded && p.Sub(f.last).Len() > f.jumpLimit {
		f.rejected++
		return f.Mean(), false
	}

	f.last = p
	f.seeded = true
	f.xs = push(f.xs, p.X(), f.window)
	f.ys = push(f.ys, p.Y(), f.window)
	f.zs = push(f.zs, p.Z(), f.window)
	return f.Mean(), true
}

// Mean returns the average of the accepted positions in the window, or the
// origin before any position was accepted.
func (f *Filter) Mean() mgl64.Vec3 {
	if len(f.xs) == 0 {
		return mgl64.Vec3{}
	}
	return mgl64.Vec3{
		stat.Mean(f.xs, nil),
		stat.Mean(f.ys, nil),
		stat.Mean(f.zs, nil),
	}
}

// Rejected returns how many positions were rejected so far.
func (f *Filter) Rejected() int {
	return f.rejected
}

// Reset forgets all accepted positions.
func (f *Filter) Reset() {
	f.xs, f.ys, f.zs = f.xs[:0], f.ys[:0], f.zs[:0]
	f.seeded = false
}

func push(s []float64, v float64, n int) []float64 {
	s = append(s, v)
	if len(s) > n {
		s = s[len(s)-n:]
	}
	return s
}
