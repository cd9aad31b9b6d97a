package main

import (
	"os"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/sweeney/hoist/internal/config"
	"github.com/sweeney/hoist/internal/gpio"
	"github.com/sweeney/hoist/internal/logic"
	"github.com/sweeney/hoist/internal/maintenance"
	"github.com/sweeney/hoist/internal/mqtt"
	"github.com/sweeney/hoist/internal/schedule"
	"github.com/sweeney/hoist/internal/status"
)

// SourceSchedule tags commands fired by the scheduler.
const SourceSchedule = "schedule"

// deps is everything the control loop touches.
type deps struct {
	ctrl       *logic.Controller
	maint      *maintenance.Engine
	sched      *schedule.Scheduler
	motor      gpio.Motor
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus // may be nil
	tracker    *status.Tracker       // may be nil
	telemetry  time.Duration         // 0 publishes on change only
	heartbeat  time.Duration         // 0 disables
	envFile    string
	now        func() time.Time
	log        zerolog.Logger
}

// runLoop owns the controller. Commands from MQTT and HTTP arrive on
// commands and are applied between ticks, so the controller is only ever
// touched from this goroutine. Emergency stops arrive on stops and are
// served before anything else pending. Each tick's value is the time it
// stands for.
func runLoop(d deps, tick <-chan time.Time, commands, stops <-chan logic.Command, sig <-chan os.Signal) error {
	start := d.now()
	lastHeartbeat := start
	var lastTelemetry time.Time
	var last logic.Snapshot
	published := false

	for {
		select {
		case cmd := <-stops:
			applyCommand(d, cmd, d.now())
			continue
		default:
		}

		select {
		case cmd := <-stops:
			applyCommand(d, cmd, d.now())

		case s := <-sig:
			d.motor.Stop()
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			d.log.Info().Str("signal", signalName).Msg("shutting down")

			event := mqtt.SystemEvent{
				Timestamp: d.now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if d.tracker != nil {
				refreshTracker(d)
				event.RawPayload = status.FormatStatusEvent(d.tracker.Snapshot(), "SHUTDOWN", signalName)
			}
			if err := d.publisher.PublishSystem(event); err != nil {
				d.log.Error().Err(err).Msg("failed to publish shutdown event")
			}
			return nil

		case cmd := <-commands:
			applyCommand(d, cmd, d.now())

		case t := <-tick:
			d.ctrl.Tick(t)

			switch d.sched.Check(t) {
			case schedule.TriggerUp:
				applyCommand(d, logic.Command{Type: logic.CmdGoTop, Source: SourceSchedule}, t)
			case schedule.TriggerDown:
				applyCommand(d, logic.Command{Type: logic.CmdGoBottom, Source: SourceSchedule}, t)
			}

			snap := d.ctrl.Snapshot()
			changed := !published || snap.State != last.State || snap.Fault != last.Fault
			if changed {
				logTransition(d.log, last, snap, published)
			}
			due := d.telemetry > 0 && t.Sub(lastTelemetry) >= d.telemetry
			if changed || due {
				if err := d.publisher.PublishTelemetry(telemetry(t, snap, d.maint)); err != nil {
					d.log.Error().Err(err).Msg("telemetry publish error")
					// Don't crash on publish failure
				}
				lastTelemetry = t
				last = snap
				published = true
			}

			if d.heartbeat > 0 && t.Sub(lastHeartbeat) >= d.heartbeat {
				lastHeartbeat = t
				hb := mqtt.SystemEvent{Timestamp: t, Event: "HEARTBEAT"}
				if d.tracker != nil {
					// Refresh network info for heartbeat
					if net := config.ReadNetworkInfo(d.envFile); net != nil {
						d.tracker.SetNetwork(net)
					}
					refreshTracker(d)
					hb.RawPayload = status.FormatStatusEvent(d.tracker.Snapshot(), "HEARTBEAT", "")
				}
				if err := d.publisher.PublishSystem(hb); err != nil {
					d.log.Error().Err(err).Msg("heartbeat publish error")
				}
			}

			// Update status tracker for HTTP consumers
			if d.tracker != nil {
				refreshTracker(d)
			}
		}
	}
}

func applyCommand(d deps, cmd logic.Command, now time.Time) {
	var err error
	switch cmd.Type {
	case logic.CmdScheduleUp:
		err = d.sched.SetUp(cmd.Value)
	case logic.CmdScheduleDown:
		err = d.sched.SetDown(cmd.Value)
	default:
		err = d.ctrl.Apply(cmd, now)
	}

	if err != nil {
		d.log.Warn().Err(err).Str("cmd", string(cmd.Type)).Str("source", cmd.Source).Msg("command rejected")
		if d.tracker != nil {
			d.tracker.SetLastError(string(cmd.Type) + ": " + err.Error())
		}
		return
	}

	ev := d.log.Info().Str("cmd", string(cmd.Type)).Str("source", cmd.Source)
	if cmd.IsSchedule() {
		ev = ev.Str("at", schedule.FormatSeconds(cmd.Value))
		if d.tracker != nil {
			d.tracker.SetSchedule(d.sched.Up(), d.sched.Down())
		}
	}
	ev.Msg("command applied")
	if d.tracker != nil {
		d.tracker.SetLastError("")
	}
}

func refreshTracker(d deps) {
	d.tracker.Update(d.ctrl.Snapshot(), maintenanceSummary(d.maint))
	if d.mqttStatus != nil {
		d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
	}
}

func logTransition(log zerolog.Logger, prev, next logic.Snapshot, seen bool) {
	var ev *zerolog.Event
	if next.Fault != logic.FaultNone && next.Fault != prev.Fault {
		ev = log.Warn().Str("fault", string(next.Fault))
	} else {
		ev = log.Info()
	}
	if seen {
		ev = ev.Str("from", string(prev.State))
	}
	ev.Str("state", string(next.State)).Int64("position_ms", next.PositionMs).Msg("state")
}

func telemetry(t time.Time, snap logic.Snapshot, m *maintenance.Engine) mqtt.Telemetry {
	return mqtt.Telemetry{
		Timestamp:  t,
		State:      snap.State,
		PositionMs: snap.PositionMs,
		LastRunMs:  m.LastRunDuration().Milliseconds(),
		Slope:      m.Slope(),
		Fault:      snap.Fault,
	}
}

func maintenanceSummary(m *maintenance.Engine) status.Maintenance {
	history := m.History()
	ms := make([]int64, len(history))
	for i, d := range history {
		ms[i] = d.Milliseconds()
	}
	return status.Maintenance{
		LastRunMs: m.LastRunDuration().Milliseconds(),
		Slope:     m.Slope(),
		History:   ms,
	}
}
