//go:build !linux

package gpio

import (
	"errors"

	"github.com/rs/zerolog"
)

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealMotor is not available on non-Linux platforms.
type RealMotor struct{}

// NewRealMotor returns an error on non-Linux platforms.
func NewRealMotor(MotorConfig, zerolog.Logger) (*RealMotor, error) {
	return nil, errUnsupported
}

func (m *RealMotor) DriveUp(uint8)   {}
func (m *RealMotor) DriveDown(uint8) {}
func (m *RealMotor) Stop()           {}
func (m *RealMotor) Close() error    { return nil }

// SwitchSensor is not available on non-Linux platforms.
type SwitchSensor struct{}

// NewSwitchSensor returns an error on non-Linux platforms.
func NewSwitchSensor(string, int, zerolog.Logger) (*SwitchSensor, error) {
	return nil, errUnsupported
}

func (s *SwitchSensor) IsTopTriggered() bool { return false }
func (s *SwitchSensor) Close() error         { return nil }

// UltrasonicSensor is not available on non-Linux platforms.
type UltrasonicSensor struct{}

// NewUltrasonicSensor returns an error on non-Linux platforms.
func NewUltrasonicSensor(UltrasonicConfig, zerolog.Logger) (*UltrasonicSensor, error) {
	return nil, errUnsupported
}

func (s *UltrasonicSensor) IsTopTriggered() bool { return false }
func (s *UltrasonicSensor) Close() error         { return nil }
