package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"periph.io/x/conn/v3/physic"

	"github.com/AndreRenaud/waveshare_epd/convert"
	"github.com/AndreRenaud/waveshare_epd/epd"
)

func TestLoadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "epd.yaml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if *cfg != *DefaultConfig() {
		t.Errorf("Load() = %+v, want defaults", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Load should not create the file")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "epd.yaml")
	want := &Config{
		Model:       "2in9d",
		Bus:         BusFTDI,
		SPISpeed:    "2MHz",
		Pins:        DefaultPins(BusFTDI),
		Crop:        "fit",
		Rotation:    "portrait",
		FontSize:    16,
		BusyTimeout: 30 * time.Second,
	}
	if err := want.Save(path); err != nil {
		t.Fatal(err)
	}

	fi, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := fi.Mode().Perm(); perm != 0o600 {
		t.Errorf("permissions = %o, want 600", perm)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if *got != *want {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}
}

func TestNormalize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "epd.yaml")
	if err := os.WriteFile(path, []byte("bus: ftdi\nmodel: 1in54_m09\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Model != "1in54_m09" {
		t.Errorf("Model = %q", cfg.Model)
	}
	if cfg.Pins != DefaultPins(BusFTDI) {
		t.Errorf("Pins = %+v, want the FT232H defaults", cfg.Pins)
	}
	if cfg.Crop != "center" || cfg.Rotation != "auto" || cfg.FontSize != 24 || cfg.SPISpeed != "4MHz" {
		t.Errorf("defaults not filled in: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Error(err)
	}
}

func TestLoadBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "epd.yaml")
	if err := os.WriteFile(path, []byte("model: [unterminated\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() of malformed YAML should fail")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"model", func(c *Config) { c.Model = "13in3k" }},
		{"bus", func(c *Config) { c.Bus = "i2c" }},
		{"speed", func(c *Config) { c.SPISpeed = "fast" }},
		{"dc", func(c *Config) { c.Pins.DC = "" }},
		{"busy", func(c *Config) { c.Pins.Busy = "" }},
		{"crop", func(c *Config) { c.Crop = "stretch" }},
		{"rotation", func(c *Config) { c.Rotation = "sideways" }},
		{"font size", func(c *Config) { c.FontSize = -3 }},
		{"busy timeout", func(c *Config) { c.BusyTimeout = -time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("Validate() accepted %+v", cfg)
			}
		})
	}
}

func TestDerived(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Crop = "fit"
	cfg.Rotation = "landscape"

	f, err := cfg.Speed()
	if err != nil {
		t.Fatal(err)
	}
	if f != 4*physic.MegaHertz {
		t.Errorf("Speed() = %s, want 4MHz", f)
	}

	p, err := cfg.Profile()
	if err != nil {
		t.Fatal(err)
	}
	if p != epd.EPD7in5V2 {
		t.Errorf("Profile() = %s", p)
	}

	o, err := cfg.Options(p)
	if err != nil {
		t.Fatal(err)
	}
	want := convert.Options{Crop: convert.CropToFit, Rotation: convert.ForceLandscape, Width: 800, Height: 480}
	if o != want {
		t.Errorf("Options() = %+v, want %+v", o, want)
	}
}
