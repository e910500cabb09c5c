package epd

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/gpio"
)

// Session binds one Profile to one exclusively owned Transport. Opening a
// session initializes the panel; closing it puts the panel to sleep and
// releases the transport. Always defer Close right after a successful Open.
type Session struct {
	t      Transport
	p      *Profile
	seq    *Sequencer
	closed bool
}

// Open powers the panel on and runs its initialization sequence. On failure
// the transport is released and closed.
func Open(t Transport, p *Profile, opts *Opts) (*Session, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	s := &Session{
		t:   t,
		p:   p,
		seq: NewSequencer(t, p, opts),
	}
	if err := t.SetPower(gpio.High); err != nil {
		return nil, errors.Join(fmt.Errorf("epd: power on: %w", err), s.release())
	}
	if err := s.seq.Initialize(); err != nil {
		return nil, errors.Join(err, s.release())
	}
	return s, nil
}

// Profile returns the panel profile the session was opened with.
func (s *Session) Profile() *Profile {
	return s.p
}

// FrameSize is the exact length Display expects.
func (s *Session) FrameSize() int {
	return s.p.FrameSize()
}

// Init re-runs the initialization sequence, typically to wake the panel
// after Sleep.
func (s *Session) Init() error {
	if s.closed {
		return fmt.Errorf("%w: session closed", ErrNotReady)
	}
	return s.seq.Initialize()
}

// Clear blanks the panel.
func (s *Session) Clear() error {
	return s.seq.Clear()
}

// Display shows a packed frame as produced by package convert. The frame
// must be exactly FrameSize bytes long.
func (s *Session) Display(frame []byte) error {
	return s.seq.Display(frame)
}

// Sleep puts the panel into deep sleep without releasing the transport.
func (s *Session) Sleep() error {
	if !s.seq.Ready() {
		return nil
	}
	return s.seq.Sleep()
}

// Close puts the panel to sleep if it is awake, deasserts the control
// lines and closes the transport. Calling Close more than once is a no-op.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	err := s.Sleep()
	return errors.Join(err, s.release())
}

func (s *Session) release() error {
	s.closed = true
	return s.t.Close()
}
