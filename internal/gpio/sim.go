package gpio

import "time"

// SimWinch models a winch and its load for running without hardware.
// Position is the load's distance below the top, measured in full-speed
// travel time. It implements both Motor and LimitSensor.
// Not safe for concurrent use.
type SimWinch struct {
	now  func() time.Time
	last time.Time
	pos  time.Duration
	dir  int // -1 up, +1 down, 0 stopped

	// Slowdown scales upward travel time; 1.2 means 20% slower than
	// nominal. Values <= 0 are treated as 1.
	Slowdown float64

	// LimitBand is the distance below the top within which the limit
	// sensor reads triggered.
	LimitBand time.Duration

	// SensorFault suppresses the limit signal.
	SensorFault bool
}

// NewSimWinch places the load start below the top. now supplies the clock;
// nil means time.Now.
func NewSimWinch(start time.Duration, now func() time.Time) *SimWinch {
	if now == nil {
		now = time.Now
	}
	return &SimWinch{
		now:      now,
		last:     now(),
		pos:      start,
		Slowdown: 1,
	}
}

// Position returns the physical distance below the top.
func (s *SimWinch) Position() time.Duration {
	s.advance()
	return s.pos
}

// Moving reports the current drive direction: -1 up, +1 down, 0 stopped.
func (s *SimWinch) Moving() int {
	return s.dir
}

func (s *SimWinch) DriveUp(uint8) {
	s.advance()
	s.dir = -1
}

func (s *SimWinch) DriveDown(uint8) {
	s.advance()
	s.dir = 1
}

func (s *SimWinch) Stop() {
	s.advance()
	s.dir = 0
}

func (s *SimWinch) IsTopTriggered() bool {
	s.advance()
	return !s.SensorFault && s.pos <= s.LimitBand
}

// Close stops the simulated motor.
func (s *SimWinch) Close() error {
	s.Stop()
	return nil
}

func (s *SimWinch) advance() {
	now := s.now()
	elapsed := now.Sub(s.last)
	s.last = now
	if elapsed <= 0 {
		return
	}

	switch s.dir {
	case -1:
		slow := s.Slowdown
		if slow <= 0 {
			slow = 1
		}
		s.pos -= time.Duration(float64(elapsed) / slow)
		// The top is a hard stop.
		if s.pos < 0 {
			s.pos = 0
		}
	case 1:
		s.pos += elapsed
	}
}
