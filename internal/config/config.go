// Package config loads the hoist's mechanical constants, wiring and
// schedule from a YAML file, and the host network state from the
// pi-helper env file.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/hoist/internal/gpio"
	"github.com/sweeney/hoist/internal/logic"
	"github.com/sweeney/hoist/internal/maintenance"
	"github.com/sweeney/hoist/internal/schedule"
)

// Sensor kinds.
const (
	SensorSwitch     = "switch"
	SensorUltrasonic = "ultrasonic"
)

// Config is the on-disk configuration. Durations are Go duration strings
// ("8s", "500ms").
type Config struct {
	Hoist       Hoist       `yaml:"hoist"`
	Maintenance Maintenance `yaml:"maintenance"`
	Motor       Motor       `yaml:"motor"`
	Sensor      Sensor      `yaml:"sensor"`
	Schedule    Schedule    `yaml:"schedule"`
	Timezone    string      `yaml:"timezone"` // IANA name; empty means local
}

// Hoist holds the travel model.
type Hoist struct {
	TimeToMiddle        time.Duration `yaml:"time_to_middle"`
	TimeToBottom        time.Duration `yaml:"time_to_bottom"`
	MaxSafePosition     time.Duration `yaml:"max_safe_position"`
	SpeedUp             uint8         `yaml:"speed_up"`
	SpeedDown           uint8         `yaml:"speed_down"`
	BottomTolerance     time.Duration `yaml:"bottom_tolerance"`
	DirectionTolerance  time.Duration `yaml:"direction_tolerance"`
	AllowGoTopFromError bool          `yaml:"allow_go_top_from_error"`
}

// Maintenance holds the history and anomaly constants.
type Maintenance struct {
	HistorySize int           `yaml:"history_size"`
	Baseline    time.Duration `yaml:"baseline"`
	AcuteRatio  float64       `yaml:"acute_ratio"`
}

// Motor holds the H-bridge wiring.
type Motor struct {
	Chip      string        `yaml:"chip"`
	PinREN    int           `yaml:"pin_r_en"`
	PinLEN    int           `yaml:"pin_l_en"`
	PWMChip   string        `yaml:"pwm_chip"`
	PWMDown   int           `yaml:"pwm_down"`
	PWMUp     int           `yaml:"pwm_up"`
	PWMPeriod time.Duration `yaml:"pwm_period"`
}

// Sensor selects and wires the top limit sensor.
type Sensor struct {
	Kind       string        `yaml:"kind"`
	Chip       string        `yaml:"chip"`
	PinLimit   int           `yaml:"pin_limit"`
	PinTrig    int           `yaml:"pin_trig"`
	PinEcho    int           `yaml:"pin_echo"`
	LimitCM    float64       `yaml:"limit_cm"`
	EchoWindow time.Duration `yaml:"echo_window"`
}

// Schedule holds the initial trigger times as "HH:MM[:SS]"; empty or "off"
// disables a trigger.
type Schedule struct {
	Up   string `yaml:"up"`
	Down string `yaml:"down"`
}

// Default returns the factory configuration.
func Default() Config {
	lc := logic.DefaultConfig()
	mc := maintenance.DefaultConfig()
	mo := gpio.DefaultMotorConfig()
	us := gpio.DefaultUltrasonicConfig()

	return Config{
		Hoist: Hoist{
			TimeToMiddle:        lc.TimeToMiddle,
			TimeToBottom:        lc.TimeToBottom,
			MaxSafePosition:     lc.MaxSafePosition,
			SpeedUp:             lc.SpeedUp,
			SpeedDown:           lc.SpeedDown,
			BottomTolerance:     lc.BottomTolerance,
			DirectionTolerance:  lc.DirectionTolerance,
			AllowGoTopFromError: lc.AllowGoTopFromError,
		},
		Maintenance: Maintenance{
			HistorySize: mc.Capacity,
			Baseline:    mc.Baseline,
			AcuteRatio:  mc.AcuteRatio,
		},
		Motor: Motor{
			Chip:      mo.Chip,
			PinREN:    mo.PinREN,
			PinLEN:    mo.PinLEN,
			PWMChip:   mo.PWMChip,
			PWMDown:   mo.PWMDown,
			PWMUp:     mo.PWMUp,
			PWMPeriod: mo.PWMPeriod,
		},
		Sensor: Sensor{
			Kind:       SensorSwitch,
			Chip:       gpio.DefaultChip,
			PinLimit:   gpio.DefaultPinLimit,
			PinTrig:    us.PinTrig,
			PinEcho:    us.PinEcho,
			LimitCM:    us.LimitCM,
			EchoWindow: us.EchoWindow,
		},
	}
}

// Load reads path over the defaults. A missing or empty file yields the
// defaults. Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("decode %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.Logic().Validate(); err != nil {
		return fmt.Errorf("hoist: %w", err)
	}
	if c.Maintenance.HistorySize <= 0 {
		return fmt.Errorf("maintenance: history_size must be positive, got %d", c.Maintenance.HistorySize)
	}
	if c.Maintenance.Baseline <= 0 || c.Maintenance.AcuteRatio <= 1 {
		return errors.New("maintenance: baseline must be positive and acute_ratio above 1")
	}
	switch c.Sensor.Kind {
	case SensorSwitch, SensorUltrasonic:
	default:
		return fmt.Errorf("sensor: unknown kind %q", c.Sensor.Kind)
	}
	if c.Sensor.Kind == SensorUltrasonic && (c.Sensor.LimitCM <= 0 || c.Sensor.EchoWindow <= 0) {
		return errors.New("sensor: limit_cm and echo_window must be positive")
	}
	if c.Motor.PWMPeriod <= 0 {
		return errors.New("motor: pwm_period must be positive")
	}
	if _, _, err := c.ScheduleSeconds(); err != nil {
		return fmt.Errorf("schedule: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Logic returns the controller configuration.
func (c Config) Logic() logic.Config {
	return logic.Config{
		TimeToMiddle:        c.Hoist.TimeToMiddle,
		TimeToBottom:        c.Hoist.TimeToBottom,
		MaxSafePosition:     c.Hoist.MaxSafePosition,
		SpeedUp:             c.Hoist.SpeedUp,
		SpeedDown:           c.Hoist.SpeedDown,
		BottomTolerance:     c.Hoist.BottomTolerance,
		DirectionTolerance:  c.Hoist.DirectionTolerance,
		AllowGoTopFromError: c.Hoist.AllowGoTopFromError,
	}
}

// MaintenanceConfig returns the maintenance engine configuration.
func (c Config) MaintenanceConfig() maintenance.Config {
	return maintenance.Config{
		Capacity:   c.Maintenance.HistorySize,
		Baseline:   c.Maintenance.Baseline,
		AcuteRatio: c.Maintenance.AcuteRatio,
	}
}

// MotorConfig returns the motor wiring.
func (c Config) MotorConfig() gpio.MotorConfig {
	return gpio.MotorConfig(c.Motor)
}

// UltrasonicConfig returns the ultrasonic sensor wiring.
func (c Config) UltrasonicConfig() gpio.UltrasonicConfig {
	return gpio.UltrasonicConfig{
		Chip:       c.Sensor.Chip,
		PinTrig:    c.Sensor.PinTrig,
		PinEcho:    c.Sensor.PinEcho,
		LimitCM:    c.Sensor.LimitCM,
		EchoWindow: c.Sensor.EchoWindow,
	}
}

// Location returns the scheduler's time zone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// ScheduleSeconds returns the configured triggers as seconds of day.
func (c Config) ScheduleSeconds() (up, down int, err error) {
	if up, err = ParseClock(c.Schedule.Up); err != nil {
		return 0, 0, fmt.Errorf("up: %w", err)
	}
	if down, err = ParseClock(c.Schedule.Down); err != nil {
		return 0, 0, fmt.Errorf("down: %w", err)
	}
	return up, down, nil
}

// ParseClock parses "HH:MM" or "HH:MM:SS" to seconds of day. Empty and
// "off" return schedule.Disabled.
func ParseClock(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "off") {
		return schedule.Disabled, nil
	}

	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("bad time %q, want HH:MM or HH:MM:SS", s)
	}
	limits := []int{24, 60, 60}
	total := 0
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n >= limits[i] {
			return 0, fmt.Errorf("bad time %q", s)
		}
		total = total*60 + n
	}
	if len(parts) == 2 {
		total *= 60
	}
	return total, nil
}
