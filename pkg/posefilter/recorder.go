package posefilter

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-gl/mathgl/mgl64"
)

// DefaultInterval is the minimum time between two recorded rows.
const DefaultInterval = time.Second

var header = []string{"time", "point", "x_m", "y_m", "z_m"}

// Recorder appends positions to a CSV log, at most one row per interval.
type Recorder struct {
	w        *csv.Writer
	closer   io.Closer
	clock    clock.Clock
	interval time.Duration
	next     time.Time
	point    int
}

// OpenRecorder opens path for appending. The header is written only when the
// file is new or empty.
func OpenRecorder(path string, interval time.Duration, clk clock.Clock) (*Recorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open record file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat record file: %w", err)
	}

	r := NewRecorder(f, interval, clk)
	r.closer = f
	if info.Size() == 0 {
		if err := r.writeRow(header); err != nil {
			f.Close()
			return nil, err
		}
	}
	return r, nil
}

// NewRecorder writes rows to w without a header.
// A zero interval selects DefaultInterval and a nil clock the wall clock.
func NewRecorder(w io.Writer, interval time.Duration, clk clock.Clock) *Recorder {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Recorder{
		w:        csv.NewWriter(w),
		clock:    clk,
		interval: interval,
	}
}

// Record writes p if the interval since the last row has elapsed and
// reports whether a row was written.
func (r *Recorder) Record(p mgl64.Vec3) (bool, error) {
	now := r.clock.Now()
	if now.Before(r.next) {
		return false, nil
	}
	r.point++
	row := []string{
		now.Format("15:04:05"),
		fmt.Sprintf("P_%d", r.point),
		strconv.FormatFloat(p.X(), 'f', 3, 64),
		strconv.FormatFloat(p.Y(), 'f', 3, 64),
		strconv.FormatFloat(p.Z(), 'f', 3, 64),
	}
	if err := r.writeRow(row); err != nil {
		return false, err
	}
	r.next = now.Add(r.interval)
	return true, nil
}

func (r *Recorder) writeRow(row []string) error {
	if err := r.w.Write(row); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	r.w.Flush()
	if err := r.w.Error(); err != nil {
		return fmt.Errorf("flush record: %w", err)
	}
	return nil
}

// Close flushes and closes the file opened by OpenRecorder.
func (r *Recorder) Close() error {
	r.w.Flush()
	if r.closer == nil {
		return r.w.Error()
	}
	return r.closer.Close()
}
