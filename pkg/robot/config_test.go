package robot

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gwillem/armpose/pkg/kinematics"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() = %v", err)
	}
	if len(cfg.Joints.Actuated()) != 3 {
		t.Errorf("default config has %d actuated joints, want 3", len(cfg.Joints.Actuated()))
	}
	if cfg.Chain != kinematics.DefaultChain() {
		t.Error("default config should use the default chain")
	}
	if cfg.Fixed(WristRoll) != 0 {
		t.Errorf("Fixed(wrist_roll) = %f, want 0", cfg.Fixed(WristRoll))
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "armpose.json")

	cfg := DefaultConfig()
	cfg.Bus = BusConfig{Driver: DriverFeetech, Port: "/dev/ttyACM0", BaudRate: 1_000_000}
	base := cfg.Joints[Base]
	base.Resolution = 4095
	base.GearRatio = 4
	base.OffsetDegrees = 62.4
	base.Invert = true
	cfg.Joints[Base] = base
	cfg.FixedDegrees = map[JointName]float64{WristYaw: 15}

	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo() = %v", err)
	}
	loaded, err := LoadConfigFrom(path)
	if err != nil {
		t.Fatalf("LoadConfigFrom() = %v", err)
	}

	if loaded.Bus != cfg.Bus {
		t.Errorf("bus = %+v, want %+v", loaded.Bus, cfg.Bus)
	}
	if loaded.Joints[Base] != base {
		t.Errorf("base = %+v, want %+v", loaded.Joints[Base], base)
	}
	if loaded.Fixed(WristYaw) != 15 {
		t.Errorf("Fixed(wrist_yaw) = %f, want 15", loaded.Fixed(WristYaw))
	}
	for i := range loaded.Chain {
		if math.Abs(loaded.Chain[i].Alpha-cfg.Chain[i].Alpha) > 1e-12 {
			t.Errorf("chain[%d] = %+v, want %+v", i, loaded.Chain[i], cfg.Chain[i])
		}
	}
	if err := loaded.Validate(); err != nil {
		t.Errorf("loaded config does not validate: %v", err)
	}
}

func TestLoadConfigFrom_DefaultChain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "armpose.json")
	data := `{"bus": {"driver": "sim"}, "joints": {"base": {"resolution": 4096, "gear_ratio": 1}}}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigFrom(path)
	if err != nil {
		t.Fatalf("LoadConfigFrom() = %v", err)
	}
	if cfg.Chain != kinematics.DefaultChain() {
		t.Error("missing chain should fall back to the default chain")
	}
}

func TestLoadConfigFrom_ChainLength(t *testing.T) {
	six := `{}, {}, {}, {}, {}, {}`
	tests := []struct {
		name  string
		chain string
		ok    bool
	}{
		{"one link", `[{"d_m": 0.4}]`, false},
		{"seven links", `[` + six + `, {"d_m": 0.1}]`, false},
		{"six links", `[` + six + `]`, true},
	}

	for _, tt := range tests {
		path := filepath.Join(t.TempDir(), "armpose.json")
		data := `{"bus": {"driver": "sim"}, "chain": ` + tt.chain + `}`
		if err := os.WriteFile(path, []byte(data), 0644); err != nil {
			t.Fatal(err)
		}
		_, err := LoadConfigFrom(path)
		if (err == nil) != tt.ok {
			t.Errorf("%s: LoadConfigFrom() error = %v, want ok=%v", tt.name, err, tt.ok)
		}
	}
}

func TestLoadConfigFrom_CalibrationFile(t *testing.T) {
	dir := t.TempDir()
	joints := `{"elbow": {"servo_id": 3, "resolution": 4096, "gear_ratio": 2, "offset_degrees": 10}}`
	if err := os.WriteFile(filepath.Join(dir, "joints.json"), []byte(joints), 0644); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "armpose.json")
	data := `{"bus": {"driver": "sim"}, "calibration_file": "joints.json"}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigFrom(path)
	if err != nil {
		t.Fatalf("LoadConfigFrom() = %v", err)
	}
	elbow, ok := cfg.Joints[Elbow]
	if !ok || elbow.ServoID != 3 || elbow.GearRatio != 2 || elbow.OffsetDegrees != 10 {
		t.Errorf("elbow = %+v, want servo 3 with gear 2 and offset 10", elbow)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}

	if err := os.Remove(filepath.Join(dir, "joints.json")); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfigFrom(path); err == nil {
		t.Error("LoadConfigFrom() with a missing calibration file should fail")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"unknown driver", func(c *Config) { c.Bus.Driver = "can" }, "unknown driver"},
		{"feetech without port", func(c *Config) { c.Bus.Driver = DriverFeetech }, "needs a port"},
		{"duplicate servo id", func(c *Config) {
			c.Bus = BusConfig{Driver: DriverFeetech, Port: "/dev/null"}
			jc := c.Joints[Elbow]
			jc.ServoID = 1
			c.Joints[Elbow] = jc
		}, "already used"},
		{"mux channel range", func(c *Config) {
			c.Bus.Driver = DriverAS5600
			jc := c.Joints[Elbow]
			jc.MuxChannel = 8
			c.Joints[Elbow] = jc
		}, "out of range 0-7"},
		{"zero gear ratio", func(c *Config) {
			jc := c.Joints[Shoulder]
			jc.GearRatio = 0
			c.Joints[Shoulder] = jc
		}, "gear ratio"},
		{"malformed chain", func(c *Config) { c.Chain[3].D = math.NaN() }, "link 4"},
		{"fixed angle on sensorized joint", func(c *Config) {
			c.FixedDegrees = map[JointName]float64{Base: 10}
		}, "has a sensor"},
	}

	for _, tt := range tests {
		cfg := DefaultConfig()
		tt.modify(cfg)
		err := cfg.Validate()
		if err == nil {
			t.Errorf("%s: Validate() = nil, want error", tt.name)
			continue
		}
		if !strings.Contains(err.Error(), tt.want) {
			t.Errorf("%s: Validate() = %q, want it to mention %q", tt.name, err, tt.want)
		}
	}
}
