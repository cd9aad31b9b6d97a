// Package logic contains the hoist position/safety state machine.
// It has no hardware or transport dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters; the motor, the limit
// sensor and the maintenance engine are reached through the interfaces below.
package logic

import (
	"errors"
	"fmt"
	"time"
)

// State is the controller's system state. The string value is the name
// published in telemetry.
type State string

const (
	StatePositionUnknown State = "UNKNOWN"
	StateCalibrating     State = "CALIB"
	StateMovingUp        State = "UP"
	StateMovingDown      State = "DOWN"
	StateIdle            State = "IDLE"
	StateError           State = "ERROR"
)

// Fault records why the controller entered StateError.
type Fault string

const (
	FaultNone               Fault = ""
	FaultUnexpectedContact  Fault = "UNEXPECTED_CONTACT"
	FaultCalibrationTimeout Fault = "CALIBRATION_TIMEOUT"
	FaultOverrun            Fault = "OVERRUN"
	FaultAcuteAnomaly       Fault = "ACUTE_ANOMALY"
	FaultEmergencyStop      Fault = "EMERGENCY_STOP"
)

// CommandType identifies an inbound command.
type CommandType string

const (
	CmdGoTop            CommandType = "go_top"
	CmdGoMiddle         CommandType = "go_middle"
	CmdGoBottom         CommandType = "go_bottom"
	CmdEmergencyStop    CommandType = "emergency_stop"
	CmdAcknowledgeFault CommandType = "acknowledge_fault"
	CmdScheduleUp       CommandType = "schedule_up"
	CmdScheduleDown     CommandType = "schedule_down"
)

// Command is a single request from the remote channel, the web UI or the
// scheduler. Value carries seconds-of-day for schedule commands.
type Command struct {
	Type   CommandType
	Value  int
	Source string
}

// IsSchedule reports whether the command configures the scheduler rather
// than the controller.
func (c Command) IsSchedule() bool {
	return c.Type == CmdScheduleUp || c.Type == CmdScheduleDown
}

// ParseCommandType maps a wire name to a CommandType.
func ParseCommandType(s string) (CommandType, error) {
	switch t := CommandType(s); t {
	case CmdGoTop, CmdGoMiddle, CmdGoBottom, CmdEmergencyStop, CmdAcknowledgeFault, CmdScheduleUp, CmdScheduleDown:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCommand, s)
}

// FloorCommand maps the floor selector (1=bottom, 2=middle, 3=top) to a command type.
func FloorCommand(floor int) (CommandType, error) {
	switch floor {
	case 1:
		return CmdGoBottom, nil
	case 2:
		return CmdGoMiddle, nil
	case 3:
		return CmdGoTop, nil
	}
	return "", fmt.Errorf("%w: floor %d", ErrUnknownCommand, floor)
}

var (
	// ErrPositionUnknown is returned by moves that need a calibrated position.
	ErrPositionUnknown = errors.New("position unknown: calibrate first")
	// ErrFaultLatched is returned when a move is requested while in StateError.
	ErrFaultLatched = errors.New("fault latched: acknowledge fault to re-home")
	// ErrNoFault is returned by AcknowledgeFault outside StateError.
	ErrNoFault = errors.New("no fault to acknowledge")
	// ErrUnknownCommand is returned for unrecognised commands.
	ErrUnknownCommand = errors.New("unknown command")
)

// Motor drives the winch. Stop must be idempotent and safe every tick.
type Motor interface {
	DriveUp(speed uint8)
	DriveDown(speed uint8)
	Stop()
}

// LimitSensor reports the top limit. A timed-out or missing reading must
// be reported as false.
type LimitSensor interface {
	IsTopTriggered() bool
}

// Maintenance is the part of the maintenance engine the controller uses.
type Maintenance interface {
	CheckAcuteAnomaly(elapsed time.Duration) bool
	RecordRun(duration time.Duration)
}

// Config holds the mechanical constants. Positions are expressed as
// full-speed travel time from the top.
type Config struct {
	TimeToMiddle    time.Duration
	TimeToBottom    time.Duration // virtual soft limit
	MaxSafePosition time.Duration // hard ceiling, also the calibration timeout
	SpeedUp         uint8
	SpeedDown       uint8
	// BottomTolerance qualifies a go-top as a full run when the estimate is
	// within this distance of TimeToBottom.
	BottomTolerance time.Duration
	// DirectionTolerance is the distance below which a move is not started.
	DirectionTolerance time.Duration
	// AllowGoTopFromError lets GoTop leave StateError without AcknowledgeFault.
	AllowGoTopFromError bool
}

// DefaultConfig returns the factory mechanical constants.
func DefaultConfig() Config {
	return Config{
		TimeToMiddle:       4000 * time.Millisecond,
		TimeToBottom:       8000 * time.Millisecond,
		MaxSafePosition:    10000 * time.Millisecond,
		SpeedUp:            200,
		SpeedDown:          150,
		BottomTolerance:    500 * time.Millisecond,
		DirectionTolerance: 200 * time.Millisecond,
	}
}

// Validate checks that the constants are ordered top < middle < bottom <= max.
func (c Config) Validate() error {
	if c.TimeToMiddle <= 0 || c.TimeToBottom <= 0 || c.MaxSafePosition <= 0 {
		return errors.New("travel times must be positive")
	}
	if c.TimeToMiddle >= c.TimeToBottom {
		return fmt.Errorf("time to middle %v must be less than time to bottom %v", c.TimeToMiddle, c.TimeToBottom)
	}
	if c.TimeToBottom > c.MaxSafePosition {
		return fmt.Errorf("time to bottom %v exceeds max safe position %v", c.TimeToBottom, c.MaxSafePosition)
	}
	if c.BottomTolerance < 0 || c.DirectionTolerance < 0 {
		return errors.New("tolerances must not be negative")
	}
	return nil
}

// Snapshot is a point-in-time view of the controller for telemetry.
type Snapshot struct {
	State            State
	PositionMs       int64 // -1 while the position is unknown
	TargetMs         int64
	FullRunMeasuring bool
	Fault            Fault
}
