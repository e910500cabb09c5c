// Package epd drives monochrome Waveshare style e-paper panels.
//
// A panel model is described entirely by data: a Profile holds its
// dimensions and the list of Actions that bring it out of reset. A single
// Sequencer interprets those lists over a Transport, and a Session owns one
// Transport for the lifetime of the panel.
package epd

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Op identifies the kind of an Action.
type Op uint8

const (
	// OpCommand writes a single command byte (DC low).
	OpCommand Op = iota
	// OpData writes a payload (DC high), chunked by the sequencer.
	OpData
	// OpReadBusy polls the panel until it stops being busy.
	OpReadBusy
	// OpDelay blocks for a fixed duration.
	OpDelay
)

// Action is one step of a panel protocol sequence. Build them with Command,
// Data, ReadBusy and Delay rather than by hand.
type Action struct {
	Op    Op
	Cmd   byte
	Data  []byte
	Delay time.Duration
}

// Command returns an action sending the opcode cmd.
func Command(cmd byte) Action {
	return Action{Op: OpCommand, Cmd: cmd}
}

// Data returns an action sending payload as-is.
func Data(payload ...byte) Action {
	return Action{Op: OpData, Data: payload}
}

// ReadBusy returns an action waiting for the panel to become idle.
func ReadBusy() Action {
	return Action{Op: OpReadBusy}
}

// Delay returns an action sleeping for ms milliseconds.
func Delay(ms uint) Action {
	return Action{Op: OpDelay, Delay: time.Duration(ms) * time.Millisecond}
}

func (a Action) String() string {
	switch a.Op {
	case OpCommand:
		return fmt.Sprintf("command(0x%02x)", a.Cmd)
	case OpData:
		if len(a.Data) > 8 {
			return fmt.Sprintf("data(% x ... %d bytes)", a.Data[:8], len(a.Data))
		}
		return fmt.Sprintf("data(% x)", a.Data)
	case OpReadBusy:
		return "readbusy"
	case OpDelay:
		return fmt.Sprintf("delay(%s)", a.Delay)
	}
	return fmt.Sprintf("op(%d)", a.Op)
}

// Profile describes one panel model. Profiles are shared read-only by every
// Session using that model and must not be modified.
type Profile struct {
	Name   string
	Width  int
	Height int

	// BusyHigh is set when the controller drives BUSY high while working.
	// Waveshare HATs with UC8179 style controllers drive it low.
	BusyHigh bool

	// Init is replayed in order after the hardware reset pulse.
	Init []Action
}

// ErrInvalidProfile is returned for profiles whose geometry cannot be packed.
var ErrInvalidProfile = errors.New("epd: invalid profile")

// Validate checks that the profile dimensions describe a packable frame.
func (p *Profile) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: nil profile", ErrInvalidProfile)
	}
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("%w: %s has dimensions %dx%d", ErrInvalidProfile, p.Name, p.Width, p.Height)
	}
	if (p.Width*p.Height)%8 != 0 {
		return fmt.Errorf("%w: %s pixel count %d is not a multiple of 8", ErrInvalidProfile, p.Name, p.Width*p.Height)
	}
	return nil
}

// FrameSize is the number of bytes in one packed 1bpp frame.
func (p *Profile) FrameSize() int {
	return p.Width * p.Height / 8
}

func (p *Profile) String() string {
	return fmt.Sprintf("%s(%dx%d)", p.Name, p.Width, p.Height)
}

var profiles = map[string]*Profile{
	EPD7in5V2.Name:   EPD7in5V2,
	EPD5in83V2.Name:  EPD5in83V2,
	EPD2in9D.Name:    EPD2in9D,
	EPD1in54M09.Name: EPD1in54M09,
}

// SupportedModels returns the registered model names, sorted.
func SupportedModels() []string {
	retval := make([]string, 0, len(profiles))
	for k := range profiles {
		retval = append(retval, k)
	}
	sort.Strings(retval)
	return retval
}

// Lookup returns the profile registered under name.
func Lookup(name string) (*Profile, error) {
	if p, ok := profiles[strings.ToLower(name)]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("epd: unknown model %q (supported: %s)", name, strings.Join(SupportedModels(), ", "))
}
