// Command hoist drives a motorised winch between three stops, watches its
// run times for wear, and takes commands over MQTT, HTTP and a schedule.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/sweeney/hoist/internal/config"
	"github.com/sweeney/hoist/internal/gpio"
	"github.com/sweeney/hoist/internal/logger"
	"github.com/sweeney/hoist/internal/logic"
	"github.com/sweeney/hoist/internal/maintenance"
	"github.com/sweeney/hoist/internal/mqtt"
	"github.com/sweeney/hoist/internal/schedule"
	"github.com/sweeney/hoist/internal/status"
	"github.com/sweeney/hoist/internal/web"
)

// options carries the command-line flags.
type options struct {
	configPath   string
	poll         time.Duration
	broker       string
	topicPrefix  string
	telemetry    time.Duration
	heartbeat    time.Duration
	httpAddr     string
	dbPath       string
	envFile      string
	simulate     bool
	printHistory bool
	seedDemo     bool
	logLevel     string
}

func main() {
	var o options
	flag.StringVar(&o.configPath, "config", "/etc/hoist/hoist.yaml", "YAML config file (missing file uses defaults)")
	flag.DurationVar(&o.poll, "poll", 50*time.Millisecond, "Control loop interval")
	flag.StringVar(&o.broker, "broker", "tcp://192.168.1.200:1883", "MQTT broker address")
	flag.StringVar(&o.topicPrefix, "topic-prefix", mqtt.DefaultPrefix, "MQTT topic prefix")
	flag.DurationVar(&o.telemetry, "telemetry", time.Second, "Periodic telemetry interval (0 to publish on change only)")
	flag.DurationVar(&o.heartbeat, "heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	flag.StringVar(&o.httpAddr, "http", ":80", "HTTP status address (empty to disable)")
	flag.StringVar(&o.dbPath, "db", "/var/lib/hoist/hoist.db", "Run history database (empty keeps history in memory)")
	flag.StringVar(&o.envFile, "env-file", config.PiHelperEnv, "pi-helper network env file")
	flag.BoolVar(&o.simulate, "simulate", false, "Drive a simulated winch instead of GPIO")
	flag.BoolVar(&o.printHistory, "print-history", false, "Print the run history and exit")
	flag.BoolVar(&o.seedDemo, "seed-demo", false, "Replace the run history with a synthetic aging trend")
	flag.StringVar(&o.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	flag.Parse()

	level, err := logger.ParseLevel(o.logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(2)
	}
	log := logger.New(level, os.Stderr)

	if err := run(o, log); err != nil {
		log.Fatal().Err(err).Msg("fatal")
	}
}

func run(o options, log zerolog.Logger) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Run history
	var store maintenance.Store
	if o.dbPath == "" {
		store = maintenance.NewMemoryStore()
	} else {
		bolt, err := maintenance.OpenBoltStore(o.dbPath)
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		defer bolt.Close()
		store = bolt
	}
	engine, err := maintenance.NewEngine(store, cfg.MaintenanceConfig(), logger.Component(log, "maintenance"))
	if err != nil {
		return fmt.Errorf("init maintenance: %w", err)
	}
	if o.seedDemo {
		engine.SeedDemo(rand.New(rand.NewSource(time.Now().UnixNano())))
	}
	if o.printHistory {
		printHistory(os.Stdout, engine)
		return nil
	}

	motor, sensor, err := openHardware(cfg, o.simulate, logger.Component(log, "gpio"))
	if err != nil {
		return err
	}
	defer sensor.Close()
	defer motor.Close()

	sched, err := newScheduler(cfg)
	if err != nil {
		return err
	}

	// Initialize status tracker (before STARTUP so snapshot is available)
	sensorKind := cfg.Sensor.Kind
	if o.simulate {
		sensorKind = "sim"
	}
	tracker := status.NewTracker(time.Now(), status.Config{
		PollMs:      o.poll.Milliseconds(),
		TelemetryMs: o.telemetry.Milliseconds(),
		HeartbeatMs: o.heartbeat.Milliseconds(),
		Broker:      o.broker,
		TopicPrefix: o.topicPrefix,
		HTTPPort:    o.httpAddr,
		Sensor:      sensorKind,
	})
	tracker.SetSchedule(sched.Up(), sched.Down())
	if net := config.ReadNetworkInfo(o.envFile); net != nil {
		tracker.SetNetwork(net)
	}

	queue := logic.NewQueue(16)

	// Initialize MQTT
	client, err := mqtt.NewRealClient(mqtt.Options{
		Broker: o.broker,
		Prefix: o.topicPrefix,
		Log:    logger.Component(log, "mqtt"),
	})
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	pub := mqtt.NewAsync(client, mqtt.DefaultQueueSize, logger.Component(log, "mqtt"))
	defer pub.Close()
	if err := client.Subscribe(commandHandler(queue, log)); err != nil {
		log.Error().Err(err).Msg("subscribe failed")
	}

	// Publish startup event with full status snapshot
	tracker.SetMQTTConnected(client.IsConnected())
	snap := tracker.Snapshot()
	startup := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := client.PublishSystem(startup); err != nil {
		log.Error().Err(err).Msg("failed to publish startup event")
	}

	// Start HTTP status server
	if o.httpAddr != "" {
		srv := web.New(o.httpAddr, tracker, queue, logger.Component(log, "web"))
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("http server error")
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Info().Str("addr", o.httpAddr).Msg("http status server listening")
	}

	ctrl := logic.NewController(cfg.Logic(), motor, sensor, engine, logger.Component(log, "controller"), time.Now())

	log.Info().
		Dur("poll", o.poll).
		Str("broker", o.broker).
		Str("prefix", o.topicPrefix).
		Str("sensor", sensorKind).
		Str("schedule_up", schedule.FormatSeconds(sched.Up())).
		Str("schedule_down", schedule.FormatSeconds(sched.Down())).
		Msg("started")

	ticker := time.NewTicker(o.poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(deps{
		ctrl:       ctrl,
		maint:      engine,
		sched:      sched,
		motor:      motor,
		publisher:  pub,
		mqttStatus: client,
		tracker:    tracker,
		telemetry:  o.telemetry,
		heartbeat:  o.heartbeat,
		envFile:    o.envFile,
		now:        time.Now,
		log:        log,
	}, ticker.C, queue.Commands, queue.Stops, sigCh)
}

// newScheduler builds the scheduler from the configured timezone and boot
// triggers.
func newScheduler(cfg config.Config) (*schedule.Scheduler, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	sched := schedule.New(loc)
	up, down, err := cfg.ScheduleSeconds()
	if err != nil {
		return nil, fmt.Errorf("schedule: %w", err)
	}
	if err := sched.SetUp(up); err != nil {
		return nil, fmt.Errorf("schedule up: %w", err)
	}
	if err := sched.SetDown(down); err != nil {
		return nil, fmt.Errorf("schedule down: %w", err)
	}
	return sched, nil
}

// commandHandler submits commands decoded from the broker. Only ordinary
// commands can be refused; an emergency stop always gets through.
func commandHandler(q *logic.Queue, log zerolog.Logger) mqtt.CommandHandler {
	return func(cmd logic.Command) {
		if err := q.Submit(cmd); err != nil {
			log.Warn().Err(err).Str("cmd", string(cmd.Type)).Msg("dropping command")
		}
	}
}

func openHardware(cfg config.Config, simulate bool, log zerolog.Logger) (gpio.Motor, gpio.LimitSensor, error) {
	if simulate {
		sim := gpio.NewSimWinch(cfg.Hoist.TimeToBottom, nil)
		log.Info().Msg("using simulated winch")
		return sim, sim, nil
	}

	motor, err := gpio.NewRealMotor(cfg.MotorConfig(), log)
	if err != nil {
		return nil, nil, fmt.Errorf("init motor: %w", err)
	}

	var sensor gpio.LimitSensor
	switch cfg.Sensor.Kind {
	case config.SensorUltrasonic:
		sensor, err = gpio.NewUltrasonicSensor(cfg.UltrasonicConfig(), log)
	default:
		sensor, err = gpio.NewSwitchSensor(cfg.Sensor.Chip, cfg.Sensor.PinLimit, log)
	}
	if err != nil {
		motor.Close()
		return nil, nil, fmt.Errorf("init limit sensor: %w", err)
	}
	return motor, sensor, nil
}

func printHistory(w io.Writer, e *maintenance.Engine) {
	history := e.History()
	if len(history) == 0 {
		fmt.Fprintln(w, "no runs recorded")
		return
	}
	for i, d := range history {
		fmt.Fprintf(w, "%2d  %dms\n", i+1, d.Milliseconds())
	}
	fmt.Fprintf(w, "last: %dms  slope: %.2fms/run  acute threshold: %dms\n",
		e.LastRunDuration().Milliseconds(), e.Slope(), e.AcuteThreshold().Milliseconds())
}
