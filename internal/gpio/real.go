//go:build linux

package gpio

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/warthog618/go-gpiocdev"
)

// RealMotor drives a BTS7960 H-bridge. The enable lines are held high
// through the GPIO character device; direction and speed come from two
// sysfs PWM channels (RPWM for down, LPWM for up).
type RealMotor struct {
	chip *gpiocdev.Chip
	enR  *gpiocdev.Line
	enL  *gpiocdev.Line
	down *pwmChannel
	up   *pwmChannel
	log  zerolog.Logger
}

// NewRealMotor opens the motor driver with both PWM outputs at zero.
func NewRealMotor(cfg MotorConfig, log zerolog.Logger) (*RealMotor, error) {
	chip, err := gpiocdev.NewChip(cfg.Chip)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	m := &RealMotor{chip: chip, log: log}

	m.enR, err = chip.RequestLine(cfg.PinREN, gpiocdev.AsOutput(1))
	if err != nil {
		m.Close()
		return nil, fmt.Errorf("request R_EN pin %d: %w", cfg.PinREN, err)
	}
	m.enL, err = chip.RequestLine(cfg.PinLEN, gpiocdev.AsOutput(1))
	if err != nil {
		m.Close()
		return nil, fmt.Errorf("request L_EN pin %d: %w", cfg.PinLEN, err)
	}

	m.down, err = openPWM(cfg.PWMChip, cfg.PWMDown, cfg.PWMPeriod)
	if err != nil {
		m.Close()
		return nil, fmt.Errorf("open RPWM: %w", err)
	}
	m.up, err = openPWM(cfg.PWMChip, cfg.PWMUp, cfg.PWMPeriod)
	if err != nil {
		m.Close()
		return nil, fmt.Errorf("open LPWM: %w", err)
	}

	return m, nil
}

// DriveUp winds the rope in. The opposing channel is zeroed first.
func (m *RealMotor) DriveUp(speed uint8) {
	m.set(0, speed)
}

// DriveDown pays the rope out. The opposing channel is zeroed first.
func (m *RealMotor) DriveDown(speed uint8) {
	m.set(speed, 0)
}

// Stop zeroes both PWM channels. Repeated calls write nothing.
func (m *RealMotor) Stop() {
	m.set(0, 0)
}

func (m *RealMotor) set(down, up uint8) {
	// Zero whichever side is being released before raising the other, so
	// the bridge never sees both halves driven.
	if down == 0 {
		if err := m.down.setSpeed(0); err != nil {
			m.log.Error().Err(err).Msg("motor write failed")
		}
	}
	if up == 0 {
		if err := m.up.setSpeed(0); err != nil {
			m.log.Error().Err(err).Msg("motor write failed")
		}
	}
	if down > 0 {
		if err := m.down.setSpeed(down); err != nil {
			m.log.Error().Err(err).Msg("motor write failed")
		}
	}
	if up > 0 {
		if err := m.up.setSpeed(up); err != nil {
			m.log.Error().Err(err).Msg("motor write failed")
		}
	}
}

// Close stops the motor, releases the PWM channels, and returns the enable
// lines to input with pull-down (Pi boot default).
func (m *RealMotor) Close() error {
	var errs []error

	for _, p := range []*pwmChannel{m.down, m.up} {
		if p == nil {
			continue
		}
		if err := p.close(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, l := range []*gpiocdev.Line{m.enR, m.enL} {
		if l == nil {
			continue
		}
		if err := l.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure enable pin: %w", err))
		}
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close enable pin: %w", err))
		}
	}
	if m.chip != nil {
		if err := m.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// SwitchSensor reads a normally-open limit switch wired to ground.
type SwitchSensor struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
	log  zerolog.Logger
}

// NewSwitchSensor requests pin as input with pull-up.
func NewSwitchSensor(chipName string, pin int, log zerolog.Logger) (*SwitchSensor, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	line, err := chip.RequestLine(pin, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request limit pin %d: %w", pin, err)
	}
	return &SwitchSensor{chip: chip, line: line, log: log}, nil
}

// IsTopTriggered reports a closed switch (raw low). Read errors report false.
func (s *SwitchSensor) IsTopTriggered() bool {
	v, err := s.line.Value()
	if err != nil {
		s.log.Error().Err(err).Msg("read limit pin")
		return false
	}
	return v == 0
}

// Close releases GPIO resources.
func (s *SwitchSensor) Close() error {
	var errs []error
	if err := s.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
		errs = append(errs, fmt.Errorf("reconfigure limit pin: %w", err))
	}
	if err := s.line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close limit pin: %w", err))
	}
	if err := s.chip.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close chip: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// triggerPulse is the HC-SR04 trigger width.
const triggerPulse = 10 * time.Microsecond

// UltrasonicSensor measures distance to the load with an HC-SR04. Echo
// edges arrive as kernel-timestamped line events.
type UltrasonicSensor struct {
	chip    *gpiocdev.Chip
	trig    *gpiocdev.Line
	echo    *gpiocdev.Line
	events  chan gpiocdev.LineEvent
	limitCM float64
	window  time.Duration
	log     zerolog.Logger
}

// NewUltrasonicSensor requests the trigger as output low and the echo as
// input with edge detection on both edges.
func NewUltrasonicSensor(cfg UltrasonicConfig, log zerolog.Logger) (*UltrasonicSensor, error) {
	chip, err := gpiocdev.NewChip(cfg.Chip)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	s := &UltrasonicSensor{
		chip:    chip,
		events:  make(chan gpiocdev.LineEvent, 8),
		limitCM: cfg.LimitCM,
		window:  cfg.EchoWindow,
		log:     log,
	}

	s.trig, err = chip.RequestLine(cfg.PinTrig, gpiocdev.AsOutput(0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request trigger pin %d: %w", cfg.PinTrig, err)
	}
	s.echo, err = chip.RequestLine(cfg.PinEcho,
		gpiocdev.AsInput,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(s.handleEvent))
	if err != nil {
		s.trig.Close()
		chip.Close()
		return nil, fmt.Errorf("request echo pin %d: %w", cfg.PinEcho, err)
	}

	return s, nil
}

func (s *UltrasonicSensor) handleEvent(evt gpiocdev.LineEvent) {
	select {
	case s.events <- evt:
	default:
	}
}

// IsTopTriggered fires one ping and reports whether the echo places the
// load within the limit distance. No echo within the window reads as false.
func (s *UltrasonicSensor) IsTopTriggered() bool {
	s.drain()

	if err := s.trig.SetValue(1); err != nil {
		s.log.Error().Err(err).Msg("ultrasonic trigger")
		return false
	}
	time.Sleep(triggerPulse)
	if err := s.trig.SetValue(0); err != nil {
		s.log.Error().Err(err).Msg("ultrasonic trigger")
		return false
	}

	width, ok := s.awaitEcho()
	if !ok {
		return false
	}
	return EchoTriggered(width, s.limitCM)
}

func (s *UltrasonicSensor) awaitEcho() (time.Duration, bool) {
	timer := time.NewTimer(s.window)
	defer timer.Stop()

	var rise time.Duration
	risen := false
	for {
		select {
		case evt := <-s.events:
			switch evt.Type {
			case gpiocdev.LineEventRisingEdge:
				rise = evt.Timestamp
				risen = true
			case gpiocdev.LineEventFallingEdge:
				if risen {
					return evt.Timestamp - rise, true
				}
			}
		case <-timer.C:
			return 0, false
		}
	}
}

// drain discards stale edges from a previous ping.
func (s *UltrasonicSensor) drain() {
	for {
		select {
		case <-s.events:
		default:
			return
		}
	}
}

// Close releases GPIO resources.
func (s *UltrasonicSensor) Close() error {
	var errs []error
	if err := s.echo.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close echo pin: %w", err))
	}
	if err := s.trig.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
		errs = append(errs, fmt.Errorf("reconfigure trigger pin: %w", err))
	}
	if err := s.trig.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close trigger pin: %w", err))
	}
	if err := s.chip.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close chip: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
