package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// Options configures a RealClient.
type Options struct {
	Broker     string
	ClientID   string
	Prefix     string
	BufferSize int
	Log        zerolog.Logger
}

// RealClient publishes to and receives commands from an MQTT broker.
// Messages published while disconnected are buffered and replayed on
// reconnect.
type RealClient struct {
	client paho.Client
	prefix string
	log    zerolog.Logger

	mu        sync.Mutex
	handler   CommandHandler
	buffer    *ringBuffer
	connected bool // at least one connection has been made
}

// NewRealClient connects to the broker. If the broker is not reachable
// within the connect timeout the client keeps retrying in the background.
func NewRealClient(o Options) (*RealClient, error) {
	if o.Prefix == "" {
		o.Prefix = DefaultPrefix
	}
	if o.ClientID == "" {
		o.ClientID = "hoist"
	}
	if o.BufferSize == 0 {
		o.BufferSize = DefaultBufferSize
	}

	c := &RealClient{
		prefix: o.Prefix,
		log:    o.Log,
		buffer: newRingBuffer(o.BufferSize, o.Log),
	}

	paho.ERROR = pahoLogger{o.Log, zerolog.ErrorLevel}
	paho.CRITICAL = pahoLogger{o.Log, zerolog.ErrorLevel}
	paho.WARN = pahoLogger{o.Log, zerolog.WarnLevel}

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "OFFLINE",
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		return nil, fmt.Errorf("format will: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(Topic(o.Prefix, SuffixSystem), string(will), 1, true).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost)

	c.client = paho.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		c.log.Warn().Str("broker", o.Broker).Msg("broker not reachable yet, retrying in background")
		return c, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return c, nil
}

// Subscribe registers handler for inbound commands. Subscriptions are
// renewed on every reconnect.
func (c *RealClient) Subscribe(handler CommandHandler) error {
	c.mu.Lock()
	c.handler = handler
	c.mu.Unlock()

	if !c.client.IsConnectionOpen() {
		return nil
	}
	return c.subscribe()
}

func (c *RealClient) subscribe() error {
	filters := make(map[string]byte)
	for _, t := range CommandTopics(c.prefix) {
		filters[t] = 1
	}

	token := c.client.SubscribeMultiple(filters, c.onMessage)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("subscribe timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	return nil
}

func (c *RealClient) onMessage(_ paho.Client, msg paho.Message) {
	cmd, err := DecodeCommand(c.prefix, msg.Topic(), msg.Payload())
	if err != nil {
		c.log.Warn().Err(err).Str("topic", msg.Topic()).Msg("ignoring message")
		return
	}

	c.mu.Lock()
	h := c.handler
	c.mu.Unlock()
	if h != nil {
		h(cmd)
	}
}

// onConnect runs on every (re)connect in its own goroutine.
func (c *RealClient) onConnect(_ paho.Client) {
	c.mu.Lock()
	reconnect := c.connected
	c.connected = true
	hasHandler := c.handler != nil
	c.mu.Unlock()

	c.log.Info().Bool("reconnect", reconnect).Msg("connected to broker")

	if hasHandler {
		if err := c.subscribe(); err != nil {
			c.log.Error().Err(err).Msg("resubscribe failed")
		}
	}
	if !reconnect {
		return
	}

	if err := c.PublishSystem(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"}); err != nil {
		c.log.Error().Err(err).Msg("publish RECONNECTED")
	}
	c.replay()
}

func (c *RealClient) onConnectionLost(_ paho.Client, err error) {
	c.log.Warn().Err(err).Msg("connection to broker lost")
}

func (c *RealClient) replay() {
	c.mu.Lock()
	msgs := c.buffer.drainAll()
	c.mu.Unlock()

	if len(msgs) == 0 {
		return
	}
	c.log.Info().Int("count", len(msgs)).Msg("replaying buffered messages")
	for _, m := range msgs {
		if err := c.publish(m); err != nil {
			c.log.Error().Err(err).Str("topic", m.topic).Msg("replay failed")
		}
	}
}

// publish sends msg, buffering it when the connection is down.
func (c *RealClient) publish(m bufferedMsg) error {
	if !c.client.IsConnectionOpen() {
		c.mu.Lock()
		c.buffer.push(m)
		c.mu.Unlock()
		return nil
	}

	token := c.client.Publish(m.topic, m.qos, m.retained, m.payload)
	if !token.WaitTimeout(5 * time.Second) {
		c.mu.Lock()
		c.buffer.push(m)
		c.mu.Unlock()
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// PublishTelemetry sends a telemetry sample.
func (c *RealClient) PublishTelemetry(t Telemetry) error {
	payload, err := FormatTelemetry(t)
	if err != nil {
		return fmt.Errorf("format telemetry: %w", err)
	}

	// QoS 0 (at-most-once), not retained
	return c.publish(bufferedMsg{
		topic:   Topic(c.prefix, SuffixTelemetry),
		payload: payload,
	})
}

// PublishSystem sends a system lifecycle event.
func (c *RealClient) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) so lifecycle transitions are not lost
	return c.publish(bufferedMsg{
		topic:    Topic(c.prefix, SuffixSystem),
		payload:  payload,
		qos:      1,
		retained: event.Retained,
	})
}

// IsConnected reports whether the broker connection is up.
func (c *RealClient) IsConnected() bool {
	return c.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (c *RealClient) Close() error {
	c.client.Disconnect(1000) // 1 second timeout
	return nil
}

// pahoLogger routes the client library's logging through zerolog.
type pahoLogger struct {
	log   zerolog.Logger
	level zerolog.Level
}

func (l pahoLogger) Println(v ...interface{}) {
	l.log.WithLevel(l.level).Str("component", "paho").Msg(fmt.Sprint(v...))
}

func (l pahoLogger) Printf(format string, v ...interface{}) {
	l.log.WithLevel(l.level).Str("component", "paho").Msgf(format, v...)
}
