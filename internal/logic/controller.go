package logic

import (
	"time"

	"github.com/rs/zerolog"
)

// unknownPosition is the estimate while no reference has been established.
// It reports as -1 ms.
const unknownPosition = -time.Millisecond

// contactLogInterval throttles the unexpected-contact warning.
const contactLogInterval = time.Second

// Controller tracks the estimated position of the hoist, enforces the
// software limits and reacts to the top limit sensor.
// Not safe for concurrent use: Tick and the command methods must be called
// from a single goroutine.
type Controller struct {
	cfg    Config
	motor  Motor
	sensor LimitSensor
	maint  Maintenance
	log    zerolog.Logger

	state    State
	position time.Duration
	target   time.Duration
	lastTick time.Time
	runStart time.Time
	fullRun  bool
	fault    Fault
	lastSeen Fault // survives acknowledgement

	lastContactLog time.Time
}

// NewController creates a controller and initializes it at now.
func NewController(cfg Config, motor Motor, sensor LimitSensor, maint Maintenance, log zerolog.Logger, now time.Time) *Controller {
	c := &Controller{
		cfg:    cfg,
		motor:  motor,
		sensor: sensor,
		maint:  maint,
		log:    log,
	}
	c.Initialize(now)
	return c
}

// Initialize puts the controller in StatePositionUnknown and stops the motor.
// NewController calls it; calling it again is the external re-initialization.
func (c *Controller) Initialize(now time.Time) {
	c.state = StatePositionUnknown
	c.position = unknownPosition
	c.target = 0
	c.fullRun = false
	c.fault = FaultNone
	c.lastTick = now
	c.motor.Stop()
	c.log.Info().Msg("initialized, position unknown")
}

// Tick advances the controller by one control step.
func (c *Controller) Tick(now time.Time) {
	delta := now.Sub(c.lastTick)
	if delta < 0 {
		delta = 0
	}
	c.lastTick = now

	triggered := c.sensor.IsTopTriggered()

	// Safety interlock runs before any per-state decision.
	if triggered && c.state != StateMovingDown {
		if !contactExpected(c.state) {
			c.motor.Stop()
			if c.state != StateError {
				c.setFault(FaultUnexpectedContact)
			}
			if now.Sub(c.lastContactLog) >= contactLogInterval {
				c.log.Warn().Str("state", string(c.state)).Msg("limit hit unexpectedly, force stop")
				c.lastContactLog = now
			}
		}
		c.position = Reconcile(c.position, triggered)
	}

	switch c.state {
	case StatePositionUnknown:
		// Waiting for a calibration command.

	case StateCalibrating:
		elapsed := now.Sub(c.runStart)
		if elapsed > c.cfg.MaxSafePosition {
			c.motor.Stop()
			c.setFault(FaultCalibrationTimeout)
			c.log.Error().Dur("elapsed", elapsed).Msg("calibration timeout, sensor failure likely")
			return
		}
		if c.fullRun && c.maint.CheckAcuteAnomaly(elapsed) {
			c.motor.Stop()
			c.setFault(FaultAcuteAnomaly)
			c.log.Error().Dur("elapsed", elapsed).Msg("acute anomaly during calibration")
			return
		}
		if triggered {
			c.motor.Stop()
			if c.fullRun {
				c.maint.RecordRun(elapsed)
				c.log.Info().Dur("duration", elapsed).Msg("full run recorded")
			} else {
				c.log.Info().Msg("calibration done (partial run, not recorded)")
			}
			c.fullRun = false
			c.state = StateIdle
			c.position = 0
			return
		}
		c.motor.DriveUp(c.cfg.SpeedUp)

	case StateMovingDown:
		switch {
		case c.position >= c.cfg.MaxSafePosition:
			c.motor.Stop()
			c.setFault(FaultOverrun)
			c.log.Error().Int64("position_ms", c.position.Milliseconds()).Msg("max safe position exceeded")
		case c.position >= c.cfg.TimeToBottom:
			c.motor.Stop()
			c.state = StateIdle
			c.log.Info().Int64("position_ms", c.position.Milliseconds()).Msg("virtual bottom reached")
		case c.position >= c.target:
			c.motor.Stop()
			c.state = StateIdle
			c.log.Info().Int64("position_ms", c.position.Milliseconds()).Msg("target reached (down)")
		default:
			c.motor.DriveDown(c.cfg.SpeedDown)
			c.position += delta
		}

	case StateMovingUp:
		if c.fullRun {
			elapsed := now.Sub(c.runStart)
			if c.maint.CheckAcuteAnomaly(elapsed) {
				c.motor.Stop()
				c.setFault(FaultAcuteAnomaly)
				c.log.Error().Dur("elapsed", elapsed).Msg("acute anomaly while moving up")
				return
			}
		}
		if c.position <= c.target {
			c.motor.Stop()
			c.state = StateIdle
			c.log.Info().Int64("position_ms", c.position.Milliseconds()).Msg("target reached (up)")
			return
		}
		c.motor.DriveUp(c.cfg.SpeedUp)
		c.position -= delta
		if c.position < 0 {
			c.position = 0
		}

	case StateIdle, StateError:
		c.motor.Stop()
	}
}

// contactExpected reports whether top limit contact is normal in s.
// Contact during calibration is how calibration completes.
func contactExpected(s State) bool {
	return s == StateIdle || s == StateCalibrating
}

func (c *Controller) setFault(f Fault) {
	c.state = StateError
	c.fault = f
	c.lastSeen = f
	c.fullRun = false
}

// GoTop starts a calibration run towards the top limit. The run counts as a
// full run when it starts from the bottom reference.
func (c *Controller) GoTop(now time.Time) error {
	if c.state == StateError && !c.cfg.AllowGoTopFromError {
		return ErrFaultLatched
	}
	full := c.atBottom()
	c.startCalibration(now, full)
	if full {
		c.log.Info().Msg("cmd: go top (full run, stats enabled)")
	} else {
		c.log.Info().Msg("cmd: go top (partial run, stats ignored)")
	}
	return nil
}

// GoMiddle moves to the middle position.
func (c *Controller) GoMiddle() error {
	return c.goTo(c.cfg.TimeToMiddle, "middle")
}

// GoBottom moves to the virtual bottom.
func (c *Controller) GoBottom() error {
	return c.goTo(c.cfg.TimeToBottom, "bottom")
}

// EmergencyStop cuts the motor and latches StateError from any state.
func (c *Controller) EmergencyStop() {
	c.motor.Stop()
	c.setFault(FaultEmergencyStop)
	c.log.Warn().Msg("emergency stop")
}

// AcknowledgeFault clears a latched fault and re-homes the hoist.
func (c *Controller) AcknowledgeFault(now time.Time) error {
	if c.state != StateError {
		return ErrNoFault
	}
	c.log.Warn().Str("fault", string(c.fault)).Msg("fault acknowledged, re-homing")
	c.startCalibration(now, false)
	return nil
}

// Apply dispatches a controller command. Schedule commands are rejected
// with ErrUnknownCommand; they belong to the scheduler.
func (c *Controller) Apply(cmd Command, now time.Time) error {
	switch cmd.Type {
	case CmdGoTop:
		return c.GoTop(now)
	case CmdGoMiddle:
		return c.GoMiddle()
	case CmdGoBottom:
		return c.GoBottom()
	case CmdEmergencyStop:
		c.EmergencyStop()
		return nil
	case CmdAcknowledgeFault:
		return c.AcknowledgeFault(now)
	}
	return ErrUnknownCommand
}

func (c *Controller) atBottom() bool {
	if c.position < 0 {
		return false
	}
	return c.position >= c.cfg.TimeToBottom-c.cfg.BottomTolerance
}

func (c *Controller) startCalibration(now time.Time, fullRun bool) {
	c.target = 0
	c.state = StateCalibrating
	c.runStart = now
	c.fullRun = fullRun
	c.fault = FaultNone
}

func (c *Controller) goTo(target time.Duration, name string) error {
	if c.state == StatePositionUnknown || c.position < 0 {
		return ErrPositionUnknown
	}
	if c.state == StateError {
		return ErrFaultLatched
	}
	c.target = target
	c.fullRun = false

	diff := target - c.position
	if diff < 0 {
		diff = -diff
	}
	switch {
	case diff < c.cfg.DirectionTolerance:
		c.state = StateIdle
	case target > c.position:
		c.state = StateMovingDown
	default:
		c.state = StateMovingUp
	}
	c.log.Info().Str("target", name).Str("state", string(c.state)).Msg("cmd: move")
	return nil
}

// State returns the current state.
func (c *Controller) State() State {
	return c.state
}

// StateName returns the human-readable state name.
func (c *Controller) StateName() string {
	return string(c.state)
}

// PositionMs returns the estimated position in milliseconds, or -1 when unknown.
func (c *Controller) PositionMs() int64 {
	return c.position.Milliseconds()
}

// Position returns the estimated position as travel time from the top.
func (c *Controller) Position() time.Duration {
	return c.position
}

// Target returns the current target position.
func (c *Controller) Target() time.Duration {
	return c.target
}

// FullRunMeasuring reports whether the current calibration is a full run.
func (c *Controller) FullRunMeasuring() bool {
	return c.fullRun
}

// Fault returns the active fault, or FaultNone.
func (c *Controller) Fault() Fault {
	return c.fault
}

// LastFault returns the most recent fault, including one already
// acknowledged. FaultNone means no fault since start.
func (c *Controller) LastFault() Fault {
	return c.lastSeen
}

// Snapshot returns a copy of the controller state for telemetry.
func (c *Controller) Snapshot() Snapshot {
	return Snapshot{
		State:            c.state,
		PositionMs:       c.PositionMs(),
		TargetMs:         c.target.Milliseconds(),
		FullRunMeasuring: c.fullRun,
		Fault:            c.fault,
	}
}
