// Package gpio drives the winch motor and reads the top limit sensor.
// The real implementations use the Linux GPIO character device and sysfs PWM.
// The fake and simulated implementations allow testing without hardware.
package gpio

import "time"

// Motor drives a BTS7960-style H-bridge.
type Motor interface {
	DriveUp(speed uint8)
	DriveDown(speed uint8)
	Stop()

	// Close stops the motor and releases hardware resources.
	Close() error
}

// LimitSensor reports whether the hoist is at the top limit.
// A missing or timed-out reading is reported as false.
type LimitSensor interface {
	IsTopTriggered() bool

	// Close releases hardware resources.
	Close() error
}

// Pin definitions (BCM numbering)
const (
	DefaultPinREN     = 18 // right (down) enable
	DefaultPinLEN     = 19 // left (up) enable
	DefaultPinLimit   = 21 // limit switch
	DefaultPinTrig    = 23 // ultrasonic trigger
	DefaultPinEcho    = 24 // ultrasonic echo
	DefaultPWMDown    = 0  // sysfs PWM channel for RPWM
	DefaultPWMUp      = 1  // sysfs PWM channel for LPWM
	DefaultChip       = "gpiochip0"
	DefaultPWMChip    = "/sys/class/pwm/pwmchip0"
	DefaultPWMPeriod  = 50 * time.Microsecond // 20kHz, above audible range
	DefaultLimitCM    = 42.5
	DefaultEchoWindow = 6 * time.Millisecond // ~100cm round trip
)

// speedOfSoundCMPerSec at ~20°C.
const speedOfSoundCMPerSec = 34300.0

// MotorConfig wires the motor driver.
type MotorConfig struct {
	Chip      string
	PinREN    int
	PinLEN    int
	PWMChip   string
	PWMDown   int
	PWMUp     int
	PWMPeriod time.Duration
}

// DefaultMotorConfig returns the reference wiring.
func DefaultMotorConfig() MotorConfig {
	return MotorConfig{
		Chip:      DefaultChip,
		PinREN:    DefaultPinREN,
		PinLEN:    DefaultPinLEN,
		PWMChip:   DefaultPWMChip,
		PWMDown:   DefaultPWMDown,
		PWMUp:     DefaultPWMUp,
		PWMPeriod: DefaultPWMPeriod,
	}
}

// UltrasonicConfig wires an HC-SR04 used as the top limit.
type UltrasonicConfig struct {
	Chip       string
	PinTrig    int
	PinEcho    int
	LimitCM    float64       // triggered at or below this distance
	EchoWindow time.Duration // no echo within this window reads as not triggered
}

// DefaultUltrasonicConfig returns the reference wiring.
func DefaultUltrasonicConfig() UltrasonicConfig {
	return UltrasonicConfig{
		Chip:       DefaultChip,
		PinTrig:    DefaultPinTrig,
		PinEcho:    DefaultPinEcho,
		LimitCM:    DefaultLimitCM,
		EchoWindow: DefaultEchoWindow,
	}
}

// EchoDistanceCM converts an echo pulse width to a distance.
func EchoDistanceCM(width time.Duration) float64 {
	return width.Seconds() * speedOfSoundCMPerSec / 2
}

// EchoTriggered reports whether an echo pulse means the load is at the top.
func EchoTriggered(width time.Duration, limitCM float64) bool {
	d := EchoDistanceCM(width)
	return d > 0 && d <= limitCM
}

// DutyNanos scales an 8-bit speed to a PWM duty cycle for the given period.
func DutyNanos(period time.Duration, speed uint8) int64 {
	return period.Nanoseconds() * int64(speed) / 255
}
