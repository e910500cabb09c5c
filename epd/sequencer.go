package epd

import (
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// Command set shared by the UC8179 style controllers of every built-in
// profile.
const (
	cmdPowerOff       = 0x02
	cmdPowerOn        = 0x04
	cmdDeepSleep      = 0x07
	cmdDataStart1     = 0x10
	cmdDisplayRefresh = 0x12
	cmdDataStart2     = 0x13
	cmdGetStatus      = 0x71

	deepSleepCheck = 0xA5
)

const (
	// ChunkSize bounds a single data transfer; spidev refuses larger ones
	// by default.
	ChunkSize = 4096

	busyPollInterval = 100 * time.Millisecond
	refreshSettle    = 100 * time.Millisecond
	sleepLatch       = 1500 * time.Millisecond
)

var (
	// ErrSizeMismatch is returned when a frame does not match the profile.
	ErrSizeMismatch = errors.New("epd: frame size mismatch")
	// ErrNotReady is returned for refresh operations on a panel that is
	// asleep or was never initialized.
	ErrNotReady = errors.New("epd: panel not initialized")
	// ErrBusyTimeout is returned when Opts.BusyTimeout elapses while the
	// panel still reports busy.
	ErrBusyTimeout = errors.New("epd: timed out waiting for busy")
)

// Logger receives progress messages. *log.Logger satisfies it.
type Logger interface {
	Printf(format string, v ...any)
}

// Opts tunes a Sequencer. The zero value logs nothing and waits forever.
type Opts struct {
	// Logger defaults to discarding everything.
	Logger Logger

	// BusyTimeout bounds every busy poll. Zero waits forever.
	BusyTimeout time.Duration

	// Sleep implements Delay actions and poll intervals. Defaults to
	// time.Sleep.
	Sleep func(time.Duration)
}

type state int

const (
	stateReset state = iota
	stateReady
	stateAsleep
)

func (s state) String() string {
	switch s {
	case stateReady:
		return "ready"
	case stateAsleep:
		return "asleep"
	}
	return "reset"
}

// Sequencer runs the panel protocol described by a Profile over a
// Transport. It is not safe for concurrent use.
type Sequencer struct {
	t       Transport
	p       *Profile
	log     Logger
	timeout time.Duration
	sleep   func(time.Duration)
	state   state
}

// NewSequencer binds p to t. No bus traffic happens until Initialize.
func NewSequencer(t Transport, p *Profile, opts *Opts) *Sequencer {
	if opts == nil {
		opts = &Opts{}
	}
	s := &Sequencer{
		t:       t,
		p:       p,
		log:     opts.Logger,
		timeout: opts.BusyTimeout,
		sleep:   opts.Sleep,
	}
	if s.log == nil {
		s.log = log.New(io.Discard, "", 0)
	}
	if s.sleep == nil {
		s.sleep = time.Sleep
	}
	return s
}

// Ready reports whether Clear and Display may be called.
func (s *Sequencer) Ready() bool {
	return s.state == stateReady
}

// Initialize pulses reset and replays the profile's init list.
func (s *Sequencer) Initialize() error {
	s.log.Printf("epd: initializing %s", s.p)
	if err := s.reset(); err != nil {
		return err
	}
	if err := s.Run(s.p.Init); err != nil {
		return err
	}
	s.state = stateReady
	return nil
}

// Run interprets actions in order, stopping at the first error.
func (s *Sequencer) Run(actions []Action) error {
	for _, a := range actions {
		var err error
		switch a.Op {
		case OpCommand:
			err = s.command(a.Cmd)
		case OpData:
			err = s.data(a.Data)
		case OpReadBusy:
			err = s.readBusy()
		case OpDelay:
			s.sleep(a.Delay)
		default:
			err = fmt.Errorf("epd: unknown action %s", a)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Clear blanks both RAM planes and refreshes.
func (s *Sequencer) Clear() error {
	if !s.Ready() {
		return fmt.Errorf("%w: %s", ErrNotReady, s.state)
	}
	s.log.Printf("epd: clearing %s", s.p)
	blank := make([]byte, s.p.FrameSize())
	return s.Run([]Action{
		Command(cmdDataStart1),
		Data(blank...),
		Command(cmdDataStart2),
		Data(blank...),
		Command(cmdDisplayRefresh),
		{Op: OpDelay, Delay: refreshSettle},
		ReadBusy(),
	})
}

// Display sends frame as the new image and refreshes. A frame of the wrong
// size is rejected before anything is written.
func (s *Sequencer) Display(frame []byte) error {
	if len(frame) != s.p.FrameSize() {
		return fmt.Errorf("%w: got %d bytes, %s needs %d", ErrSizeMismatch, len(frame), s.p, s.p.FrameSize())
	}
	if !s.Ready() {
		return fmt.Errorf("%w: %s", ErrNotReady, s.state)
	}
	s.log.Printf("epd: displaying %d bytes on %s", len(frame), s.p)
	return s.Run([]Action{
		Command(cmdDataStart2),
		Data(frame...),
		Command(cmdDisplayRefresh),
		{Op: OpDelay, Delay: refreshSettle},
		ReadBusy(),
	})
}

// Sleep powers the panel down into deep sleep. Initialize must be called
// again before the next refresh.
func (s *Sequencer) Sleep() error {
	s.log.Printf("epd: sleeping %s", s.p)
	// Whatever happens next the controller state is unknown.
	s.state = stateAsleep
	return s.Run([]Action{
		Command(cmdPowerOff),
		ReadBusy(),
		Command(cmdDeepSleep),
		Data(deepSleepCheck),
		{Op: OpDelay, Delay: sleepLatch},
	})
}

func (s *Sequencer) reset() error {
	for _, step := range []struct {
		l gpio.Level
		d time.Duration
	}{
		{gpio.High, 20 * time.Millisecond},
		{gpio.Low, 2 * time.Millisecond},
		{gpio.High, 20 * time.Millisecond},
	} {
		if err := s.t.SetReset(step.l); err != nil {
			return fmt.Errorf("epd: reset: %w", err)
		}
		s.sleep(step.d)
	}
	return nil
}

func (s *Sequencer) command(cmd byte) error {
	if err := s.t.SendCommand(cmd); err != nil {
		return fmt.Errorf("epd: command 0x%02x: %w", cmd, err)
	}
	return nil
}

func (s *Sequencer) data(payload []byte) error {
	for off := 0; off < len(payload); off += ChunkSize {
		end := min(off+ChunkSize, len(payload))
		if err := s.t.SendData(payload[off:end]); err != nil {
			return fmt.Errorf("epd: data [%d:%d]: %w", off, end, err)
		}
	}
	return nil
}

// readBusy asks for the status and waits until the BUSY line reads idle.
func (s *Sequencer) readBusy() error {
	s.log.Printf("epd: waiting until panel is no longer busy")
	if err := s.command(cmdGetStatus); err != nil {
		return err
	}
	busy := gpio.Low
	if s.p.BusyHigh {
		busy = gpio.High
	}
	var waited time.Duration
	for s.t.ReadBusy() == busy {
		if s.timeout > 0 && waited >= s.timeout {
			return fmt.Errorf("%w after %s", ErrBusyTimeout, waited)
		}
		s.sleep(busyPollInterval)
		waited += busyPollInterval
	}
	s.log.Printf("epd: panel is no longer busy")
	return nil
}
