package posefilter

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-gl/mathgl/mgl64"
)

func TestFilter_Average(t *testing.T) {
	f := NewFilter(3, 1)

	tests := []struct {
		in       mgl64.Vec3
		expected mgl64.Vec3
	}{
		{mgl64.Vec3{0.3, 0, 0}, mgl64.Vec3{0.3, 0, 0}},
		{mgl64.Vec3{0.6, 0.3, 0}, mgl64.Vec3{0.45, 0.15, 0}},
		{mgl64.Vec3{0.9, 0.6, 0.3}, mgl64.Vec3{0.6, 0.3, 0.1}},
		{mgl64.Vec3{1.2, 0.9, 0.6}, mgl64.Vec3{0.9, 0.6, 0.3}}, // window drops the first
	}

	for _, tt := range tests {
		got, ok := f.Add(tt.in)
		if !ok {
			t.Fatalf("Add(%v) rejected", tt.in)
		}
		if !got.ApproxEqualThreshold(tt.expected, 1e-9) {
			t.Errorf("Add(%v) = %v, want %v", tt.in, got, tt.expected)
		}
	}
}

func TestFilter_RejectsJumps(t *testing.T) {
	f := NewFilter(0, 0) // defaults: 10 samples, 0.2 m

	f.Add(mgl64.Vec3{0.5, 0, 0.8})
	got, ok := f.Add(mgl64.Vec3{0.5, 0.5, 0.8})
	if ok {
		t.Error("a 0.5 m jump should be rejected")
	}
	if !got.ApproxEqualThreshold(mgl64.Vec3{0.5, 0, 0.8}, 1e-12) {
		t.Errorf("rejected Add() = %v, want unchanged mean", got)
	}
	if f.Rejected() != 1 {
		t.Errorf("Rejected() = %d, want 1", f.Rejected())
	}

	// Jumps are measured from the last accepted position.
	if _, ok := f.Add(mgl64.Vec3{0.5, 0.1, 0.8}); !ok {
		t.Error("a 0.1 m step should be accepted")
	}

	f.Reset()
	if _, ok := f.Add(mgl64.Vec3{5, 5, 5}); !ok {
		t.Error("first position after Reset should be accepted")
	}
}

func TestRecorder_Interval(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(time.Date(2026, 1, 2, 10, 30, 0, 0, time.UTC))

	var buf bytes.Buffer
	r := NewRecorder(&buf, time.Second, mock)

	p := mgl64.Vec3{0.5331, -0.00049, 0.8891}
	if ok, err := r.Record(p); !ok || err != nil {
		t.Fatalf("first Record() = %v, %v", ok, err)
	}
	mock.Add(500 * time.Millisecond)
	if ok, _ := r.Record(p); ok {
		t.Error("Record() within the interval should be skipped")
	}
	mock.Add(500 * time.Millisecond)
	if ok, err := r.Record(mgl64.Vec3{1, 2, 3}); !ok || err != nil {
		t.Fatalf("Record() after the interval = %v, %v", ok, err)
	}

	want := "10:30:00,P_1,0.533,-0.000,0.889\n10:30:01,P_2,1.000,2.000,3.000\n"
	if buf.String() != want {
		t.Errorf("recorded:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestOpenRecorder_HeaderOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "poses.csv")
	mock := clock.NewMock()

	for i := 0; i < 2; i++ {
		r, err := OpenRecorder(path, time.Second, mock)
		if err != nil {
			t.Fatalf("OpenRecorder() = %v", err)
		}
		if _, err := r.Record(mgl64.Vec3{}); err != nil {
			t.Fatalf("Record() = %v", err)
		}
		if err := r.Close(); err != nil {
			t.Fatalf("Close() = %v", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("file has %d lines, want header + 2 rows:\n%s", len(lines), data)
	}
	if lines[0] != "time,point,x_m,y_m,z_m" {
		t.Errorf("header = %q", lines[0])
	}
	if strings.Count(string(data), "time,point") != 1 {
		t.Error("header written more than once")
	}
}
