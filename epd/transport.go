package epd

import (
	"errors"
	"fmt"
	"io"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// Transport is the half-duplex command/data bus a panel hangs off, plus its
// control lines. Implementations own the physical bus and pin state.
type Transport interface {
	// SendCommand writes one command byte with DC low.
	SendCommand(cmd byte) error
	// SendData writes data with DC high in a single transfer.
	SendData(data []byte) error
	// ReadBusy returns the raw level of the BUSY line.
	ReadBusy() gpio.Level
	SetReset(l gpio.Level) error
	SetPower(l gpio.Level) error
	// Close deasserts the control lines and releases the bus.
	Close() error
}

// SPIFrequency is the bus clock used when none is given.
const SPIFrequency = 4 * physic.MegaHertz

// Pins groups the GPIO lines of a Waveshare e-paper HAT. CS may be nil when
// the SPI controller drives chip select itself, and PWR may be nil on boards
// without a power switch.
type Pins struct {
	DC   gpio.PinOut
	CS   gpio.PinOut
	RST  gpio.PinOut
	PWR  gpio.PinOut
	Busy gpio.PinIn
}

// SPI is a Transport over a periph.io SPI connection.
type SPI struct {
	c    spi.Conn
	dc   gpio.PinOut
	cs   gpio.PinOut
	rst  gpio.PinOut
	pwr  gpio.PinOut
	busy gpio.PinIn

	port io.Closer // set when the port was opened by OpenSPI
}

// OpenSPI opens the SPI port called name ("" for the first one available)
// and returns a Transport that closes the port on Close.
func OpenSPI(name string, f physic.Frequency, pins Pins) (*SPI, error) {
	// Make sure periph is initialized.
	if _, err := host.Init(); err != nil {
		return nil, err
	}

	b, err := spireg.Open(name)
	if err != nil {
		return nil, err
	}

	s, err := NewSPI(b, f, pins)
	if err != nil {
		b.Close()
		return nil, err
	}
	s.port = b
	return s, nil
}

// NewSPI connects to p at f, or SPIFrequency when f is 0, and configures the
// control lines. The caller keeps ownership of p.
func NewSPI(p spi.Port, f physic.Frequency, pins Pins) (*SPI, error) {
	if pins.DC == nil || pins.DC == gpio.INVALID {
		return nil, errors.New("epd: a DC pin is required, 3-wire mode is not supported")
	}
	if pins.RST == nil || pins.Busy == nil {
		return nil, errors.New("epd: RST and BUSY pins are required")
	}

	if f == 0 {
		f = SPIFrequency
	}
	c, err := p.Connect(f, spi.Mode0, 8)
	if err != nil {
		return nil, fmt.Errorf("epd: connect spi: %w", err)
	}

	s := &SPI{
		c:    c,
		dc:   pins.DC,
		cs:   pins.CS,
		rst:  pins.RST,
		pwr:  pins.PWR,
		busy: pins.Busy,
	}

	if err := s.dc.Out(gpio.Low); err != nil {
		return nil, err
	}
	if err := s.rst.Out(gpio.High); err != nil {
		return nil, err
	}
	if s.cs != nil {
		if err := s.cs.Out(gpio.High); err != nil {
			return nil, err
		}
	}
	if err := s.busy.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SPI) SendCommand(cmd byte) error {
	return s.tx(gpio.Low, []byte{cmd})
}

func (s *SPI) SendData(data []byte) error {
	return s.tx(gpio.High, data)
}

// tx frames one transfer: DC selects command or data, CS is held low for
// the duration and always released.
func (s *SPI) tx(dc gpio.Level, w []byte) error {
	if err := s.dc.Out(dc); err != nil {
		return err
	}
	if s.cs != nil {
		if err := s.cs.Out(gpio.Low); err != nil {
			return err
		}
	}
	err := s.c.Tx(w, nil)
	if s.cs != nil {
		if csErr := s.cs.Out(gpio.High); err == nil {
			err = csErr
		}
	}
	return err
}

func (s *SPI) ReadBusy() gpio.Level {
	return s.busy.Read()
}

func (s *SPI) SetReset(l gpio.Level) error {
	return s.rst.Out(l)
}

func (s *SPI) SetPower(l gpio.Level) error {
	if s.pwr == nil {
		return nil
	}
	return s.pwr.Out(l)
}

// Close drives RST, DC and PWR low and closes the SPI port if OpenSPI
// opened it.
func (s *SPI) Close() error {
	var errs []error
	errs = append(errs, s.rst.Out(gpio.Low), s.dc.Out(gpio.Low))
	if s.pwr != nil {
		errs = append(errs, s.pwr.Out(gpio.Low))
	}
	if s.port != nil {
		errs = append(errs, s.port.Close())
		s.port = nil
	}
	return errors.Join(errs...)
}

func (s *SPI) String() string {
	return fmt.Sprintf("epd.SPI{%s}", s.c)
}
