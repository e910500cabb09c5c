package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
	"periph.io/x/host/v3/ftdi"

	"github.com/AndreRenaud/waveshare_epd/config"
	"github.com/AndreRenaud/waveshare_epd/convert"
	"github.com/AndreRenaud/waveshare_epd/epd"
)

const usageHint = "nothing to do: pass -image <path>, -text <string> or -clear (see -h)"

type action int

const (
	actionNone action = iota
	actionImage
	actionText
	actionClear
)

// pickAction applies the flag precedence: image, then text, then clear.
func pickAction(imagePath, text string, clear bool) action {
	switch {
	case imagePath != "":
		return actionImage
	case text != "":
		return actionText
	case clear:
		return actionClear
	}
	return actionNone
}

func findGPIO(ft232h *ftdi.FT232H, name string) (gpio.PinIO, error) {
	headers := ft232h.Header()
	for _, h := range headers {
		if h.Name() == name {
			return h, nil
		}
	}
	return nil, fmt.Errorf("no such gpio %s", name)
}

func findHostGPIO(name string) (gpio.PinIO, error) {
	if p := gpioreg.ByName(name); p != nil {
		return p, nil
	}
	return nil, fmt.Errorf("no such gpio %s", name)
}

// resolvePins looks up every configured pin name. Empty names stay nil.
func resolvePins(names config.Pins, find func(string) (gpio.PinIO, error)) (epd.Pins, error) {
	var pins epd.Pins
	for _, p := range []struct {
		name string
		set  func(gpio.PinIO)
	}{
		{names.DC, func(g gpio.PinIO) { pins.DC = g }},
		{names.CS, func(g gpio.PinIO) { pins.CS = g }},
		{names.RST, func(g gpio.PinIO) { pins.RST = g }},
		{names.Busy, func(g gpio.PinIO) { pins.Busy = g }},
		{names.PWR, func(g gpio.PinIO) { pins.PWR = g }},
	} {
		if p.name == "" {
			continue
		}
		g, err := find(p.name)
		if err != nil {
			return epd.Pins{}, err
		}
		p.set(g)
	}
	return pins, nil
}

// ftdiTransport also closes the FT232H SPI port it was built on.
type ftdiTransport struct {
	*epd.SPI
	port io.Closer
}

func (t *ftdiTransport) Close() error {
	return errors.Join(t.SPI.Close(), t.port.Close())
}

func openFTDI(cfg *config.Config) (epd.Transport, error) {
	if _, err := host.Init(); err != nil {
		return nil, err
	}

	all := ftdi.All()
	if len(all) == 0 {
		return nil, errors.New("found no FTDI device on the USB bus")
	}

	// Use channel A.
	ft232h, ok := all[0].(*ftdi.FT232H)
	if !ok {
		return nil, errors.New("not FTDI device on the USB bus")
	}

	pins, err := resolvePins(cfg.Pins, func(name string) (gpio.PinIO, error) {
		return findGPIO(ft232h, name)
	})
	if err != nil {
		return nil, err
	}

	f, err := cfg.Speed()
	if err != nil {
		return nil, err
	}

	s, err := ft232h.SPI()
	if err != nil {
		return nil, fmt.Errorf("spi: %w", err)
	}
	t, err := epd.NewSPI(s, f, pins)
	if err != nil {
		s.Close()
		return nil, err
	}
	return &ftdiTransport{SPI: t, port: s}, nil
}

func openSPI(cfg *config.Config) (epd.Transport, error) {
	if _, err := host.Init(); err != nil {
		return nil, err
	}
	pins, err := resolvePins(cfg.Pins, findHostGPIO)
	if err != nil {
		return nil, err
	}
	f, err := cfg.Speed()
	if err != nil {
		return nil, err
	}
	return epd.OpenSPI(cfg.SPIPort, f, pins)
}

func openTransport(cfg *config.Config) (epd.Transport, error) {
	if cfg.Bus == config.BusFTDI {
		return openFTDI(cfg)
	}
	return openSPI(cfg)
}

// dump writes the packed frame and a PNG preview of it to dir.
func dump(dir string, frame []byte, p *epd.Profile) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "frame.bin"), frame, 0o644); err != nil {
		return err
	}
	preview, err := convert.Unpack(frame, p.Width, p.Height)
	if err != nil {
		return err
	}
	return imaging.Save(preview, filepath.Join(dir, "preview.png"))
}

func run(args []string, stdout io.Writer) (err error) {
	fs := flag.NewFlagSet("epd", flag.ContinueOnError)
	configPath := fs.String("config", "", "YAML configuration file")
	saveConfig := fs.Bool("save-config", false, "Write the effective configuration back to -config")
	model := fs.String("model", "", "Panel model")
	bus := fs.String("bus", "", "Bus to the panel: spi or ftdi")
	crop := fs.String("crop", "", "How images are fitted: center or fit")
	rotate := fs.String("rotate", "", "Image rotation: auto, landscape or portrait")
	fontSize := fs.Float64("font-size", 0, "Font size in points for -text")
	busyTimeout := fs.Duration("busy-timeout", 0, "Give up waiting on BUSY after this long (0 waits forever)")
	imageFilename := fs.String("image", "", "Image to draw on the EInk")
	text := fs.String("text", "", "Text to draw on the EInk")
	clear := fs.Bool("clear", false, "Clear the EInk")
	dumpDir := fs.String("dump", "", "Write frame.bin and preview.png to this directory instead of driving the panel")
	verbose := fs.Bool("v", false, "Log panel protocol progress")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := config.DefaultConfig()
	if *configPath != "" {
		if cfg, err = config.Load(*configPath); err != nil {
			return err
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "model":
			cfg.Model = *model
		case "bus":
			if cfg.Pins == config.DefaultPins(cfg.Bus) {
				cfg.Pins = config.DefaultPins(*bus)
			}
			cfg.Bus = *bus
		case "crop":
			cfg.Crop = *crop
		case "rotate":
			cfg.Rotation = *rotate
		case "font-size":
			cfg.FontSize = *fontSize
		case "busy-timeout":
			cfg.BusyTimeout = *busyTimeout
		}
	})
	if err := cfg.Validate(); err != nil {
		return err
	}

	if *saveConfig {
		if *configPath == "" {
			return errors.New("-save-config needs -config")
		}
		if err := cfg.Save(*configPath); err != nil {
			return err
		}
		log.Printf("saved configuration to %s", *configPath)
	}

	act := pickAction(*imageFilename, *text, *clear)
	if act == actionNone {
		fmt.Fprintln(stdout, usageHint)
		return nil
	}

	p, err := cfg.Profile()
	if err != nil {
		return err
	}

	var frame []byte
	switch act {
	case actionImage:
		o, err := cfg.Options(p)
		if err != nil {
			return err
		}
		if frame, err = convert.FromFile(*imageFilename, o); err != nil {
			return err
		}
	case actionText:
		if frame, err = convert.FromText(*text, cfg.FontSize, p.Width, p.Height); err != nil {
			return err
		}
	case actionClear:
		frame = make([]byte, p.FrameSize())
	}

	if *dumpDir != "" {
		return dump(*dumpDir, frame, p)
	}

	t, err := openTransport(cfg)
	if err != nil {
		return err
	}

	opts := &epd.Opts{BusyTimeout: cfg.BusyTimeout}
	if *verbose {
		opts.Logger = log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds)
	}

	start := time.Now()
	sess, err := epd.Open(t, p, opts)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, sess.Close())
	}()

	if act == actionClear {
		err = sess.Clear()
	} else {
		err = sess.Display(frame)
	}
	if err == nil {
		log.Printf("updated %s in %s", p, time.Since(start).Round(time.Millisecond))
	}
	return err
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Fatal(err)
	}
}
