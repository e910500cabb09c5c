// Package config holds the YAML configuration of the epd command.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
	"periph.io/x/conn/v3/physic"

	"github.com/AndreRenaud/waveshare_epd/convert"
	"github.com/AndreRenaud/waveshare_epd/epd"
)

const (
	BusSPI  = "spi"
	BusFTDI = "ftdi"
)

// Pins names the GPIO lines wired to the panel. Names are resolved with
// gpioreg on the spi bus and against the FT232H header on the ftdi bus.
// CS and PWR may be left empty.
type Pins struct {
	DC   string `yaml:"dc"`
	CS   string `yaml:"cs,omitempty"`
	RST  string `yaml:"rst"`
	Busy string `yaml:"busy"`
	PWR  string `yaml:"pwr,omitempty"`
}

// Config is the top-level configuration.
type Config struct {
	// Model is a name accepted by epd.Lookup.
	Model string `yaml:"model"`

	// Bus is "spi" for Linux spidev or "ftdi" for an FT232H adapter.
	Bus string `yaml:"bus"`

	// SPIPort is the spireg port name, empty for the first one. Ignored on
	// the ftdi bus.
	SPIPort string `yaml:"spi_port,omitempty"`

	// SPISpeed is the bus clock, e.g. "4MHz".
	SPISpeed string `yaml:"spi_speed"`

	Pins Pins `yaml:"pins"`

	// Crop is "center" or "fit".
	Crop string `yaml:"crop"`

	// Rotation is "auto", "landscape" or "portrait".
	Rotation string `yaml:"rotation"`

	FontSize float64 `yaml:"font_size"`

	// BusyTimeout bounds every wait on the BUSY line. Zero waits forever.
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// DefaultPins returns the usual wiring for bus: a Waveshare HAT on a
// Raspberry Pi header, or the C0-C3 lines of an FT232H.
func DefaultPins(bus string) Pins {
	if bus == BusFTDI {
		return Pins{DC: "FT232H.C0", CS: "FT232H.C1", RST: "FT232H.C2", Busy: "FT232H.C3"}
	}
	return Pins{DC: "GPIO25", RST: "GPIO17", Busy: "GPIO24"}
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Model:    "7in5_v2",
		Bus:      BusSPI,
		SPISpeed: "4MHz",
		Pins:     DefaultPins(BusSPI),
		Crop:     convert.Center.String(),
		Rotation: convert.Automatic.String(),
		FontSize: 24,
	}
}

// Normalize fills in missing values with defaults so that partially filled
// files still work.
func (c *Config) Normalize() {
	d := DefaultConfig()
	if c.Model == "" {
		c.Model = d.Model
	}
	if c.Bus == "" {
		c.Bus = d.Bus
	}
	if c.SPISpeed == "" {
		c.SPISpeed = d.SPISpeed
	}
	if c.Pins == (Pins{}) {
		c.Pins = DefaultPins(c.Bus)
	}
	if c.Crop == "" {
		c.Crop = d.Crop
	}
	if c.Rotation == "" {
		c.Rotation = d.Rotation
	}
	if c.FontSize == 0 {
		c.FontSize = d.FontSize
	}
}

// Validate reports every invalid field, joined.
func (c *Config) Validate() error {
	var errs []error
	if _, err := epd.Lookup(c.Model); err != nil {
		errs = append(errs, err)
	}
	if c.Bus != BusSPI && c.Bus != BusFTDI {
		errs = append(errs, fmt.Errorf("config: unknown bus %q (want %s or %s)", c.Bus, BusSPI, BusFTDI))
	}
	if _, err := c.Speed(); err != nil {
		errs = append(errs, err)
	}
	if c.Pins.DC == "" || c.Pins.RST == "" || c.Pins.Busy == "" {
		errs = append(errs, errors.New("config: pins dc, rst and busy are required"))
	}
	if _, err := convert.ParseCropMode(c.Crop); err != nil {
		errs = append(errs, err)
	}
	if _, err := convert.ParseRotationMode(c.Rotation); err != nil {
		errs = append(errs, err)
	}
	if !(c.FontSize > 0) {
		errs = append(errs, fmt.Errorf("config: font_size must be positive, got %v", c.FontSize))
	}
	if c.BusyTimeout < 0 {
		errs = append(errs, fmt.Errorf("config: busy_timeout must not be negative, got %s", c.BusyTimeout))
	}
	return errors.Join(errs...)
}

// Speed parses SPISpeed.
func (c *Config) Speed() (physic.Frequency, error) {
	var f physic.Frequency
	if err := f.Set(c.SPISpeed); err != nil {
		return 0, fmt.Errorf("config: spi_speed %q: %w", c.SPISpeed, err)
	}
	if f <= 0 {
		return 0, fmt.Errorf("config: spi_speed %q must be positive", c.SPISpeed)
	}
	return f, nil
}

// Profile returns the panel profile for Model.
func (c *Config) Profile() (*epd.Profile, error) {
	return epd.Lookup(c.Model)
}

// Options returns conversion options for p using the configured crop and
// rotation modes.
func (c *Config) Options(p *epd.Profile) (convert.Options, error) {
	o := convert.OptionsFor(p)
	var err error
	if o.Crop, err = convert.ParseCropMode(c.Crop); err != nil {
		return o, err
	}
	if o.Rotation, err = convert.ParseRotationMode(c.Rotation); err != nil {
		return o, err
	}
	return o, nil
}

// Load reads the YAML file at path and normalizes it. A missing file yields
// the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config: path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically via a temp file and rename, with 0600
// permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config: path is empty")
	}
	if cfg == nil {
		return errors.New("config: nil config")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".epd-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
