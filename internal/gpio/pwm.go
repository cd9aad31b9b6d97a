//go:build linux

package gpio

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// pwmChannel is one sysfs PWM output (/sys/class/pwm/pwmchipN/pwmM).
// The character device has no PWM support, so duty is set through sysfs.
type pwmChannel struct {
	chip    string
	channel int
	dir     string
	period  time.Duration
	duty    int64 // last written duty in ns, -1 before the first write
}

func openPWM(chip string, channel int, period time.Duration) (*pwmChannel, error) {
	p := &pwmChannel{
		chip:    chip,
		channel: channel,
		dir:     filepath.Join(chip, fmt.Sprintf("pwm%d", channel)),
		period:  period,
		duty:    -1,
	}

	if _, err := os.Stat(p.dir); errors.Is(err, fs.ErrNotExist) {
		if err := writeSysfs(filepath.Join(chip, "export"), strconv.Itoa(channel)); err != nil {
			return nil, fmt.Errorf("export pwm%d: %w", channel, err)
		}
	}

	// Duty must not exceed the period, so zero it before changing the period.
	if err := p.setDuty(0); err != nil {
		return nil, err
	}
	if err := writeSysfs(filepath.Join(p.dir, "period"), strconv.FormatInt(period.Nanoseconds(), 10)); err != nil {
		return nil, fmt.Errorf("pwm%d period: %w", channel, err)
	}
	if err := writeSysfs(filepath.Join(p.dir, "enable"), "1"); err != nil {
		return nil, fmt.Errorf("pwm%d enable: %w", channel, err)
	}
	return p, nil
}

// setSpeed writes the duty for speed; unchanged values are not rewritten.
func (p *pwmChannel) setSpeed(speed uint8) error {
	return p.setDuty(DutyNanos(p.period, speed))
}

func (p *pwmChannel) setDuty(ns int64) error {
	if ns == p.duty {
		return nil
	}
	if err := writeSysfs(filepath.Join(p.dir, "duty_cycle"), strconv.FormatInt(ns, 10)); err != nil {
		return fmt.Errorf("pwm%d duty: %w", p.channel, err)
	}
	p.duty = ns
	return nil
}

func (p *pwmChannel) close() error {
	var errs []error
	if err := p.setDuty(0); err != nil {
		errs = append(errs, err)
	}
	if err := writeSysfs(filepath.Join(p.dir, "enable"), "0"); err != nil {
		errs = append(errs, fmt.Errorf("pwm%d disable: %w", p.channel, err))
	}
	if err := writeSysfs(filepath.Join(p.chip, "unexport"), strconv.Itoa(p.channel)); err != nil {
		errs = append(errs, fmt.Errorf("unexport pwm%d: %w", p.channel, err))
	}
	return errors.Join(errs...)
}

func writeSysfs(path, value string) error {
	return os.WriteFile(path, []byte(value), 0o644)
}
