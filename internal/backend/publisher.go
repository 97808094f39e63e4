package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-lwm2m/internal/engine"
	"github.com/nerrad567/gray-logic-lwm2m/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-lwm2m/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-lwm2m/internal/session"
)

// Websocket channels the publisher broadcasts on.
const (
	ChannelReports  = "reports"
	ChannelSessions = "sessions"
)

// MQTTPublisher is the subset of the MQTT client the uplink needs.
type MQTTPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// TelemetryWriter mirrors telemetry into a time-series store.
type TelemetryWriter interface {
	WriteTelemetry(t influxdb.Telemetry)
}

// Broadcaster fans a payload out to live operator connections.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// Logger is the logging interface used by the publisher.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// PublisherOptions configures a Publisher.
type PublisherOptions struct {
	MQTT   MQTTPublisher
	Topics mqtt.Topics

	// QoS for every uplink publish. Zero selects 1.
	QoS byte

	// Telemetry is optional; nil disables the time-series mirror.
	Telemetry TelemetryWriter

	// Broadcaster is optional.
	Broadcaster Broadcaster

	Logger Logger
}

// Publisher is the engine's Backend: it publishes session lifecycle,
// activity and reported values as JSON on the backend topics, mirrors
// telemetry to InfluxDB and echoes reports to websocket clients.
//
// Attributes and session state are retained so a backend that subscribes
// late sees the current picture. Telemetry and activity are not.
type Publisher struct {
	mqtt        MQTTPublisher
	topics      mqtt.Topics
	qos         byte
	telemetry   TelemetryWriter
	broadcaster Broadcaster
	now         func() time.Time

	logger   Logger
	loggerMu sync.RWMutex
}

var _ engine.Backend = (*Publisher)(nil)

// NewPublisher creates a Publisher.
func NewPublisher(opts PublisherOptions) (*Publisher, error) {
	if opts.MQTT == nil {
		return nil, fmt.Errorf("backend: MQTT publisher is required")
	}

	qos := opts.QoS
	if qos == 0 {
		qos = 1
	}

	var logger Logger = noopLogger{}
	if opts.Logger != nil {
		logger = opts.Logger
	}

	return &Publisher{
		mqtt:        opts.MQTT,
		topics:      opts.Topics,
		qos:         qos,
		telemetry:   opts.Telemetry,
		broadcaster: opts.Broadcaster,
		now:         time.Now,
		logger:      logger,
	}, nil
}

// SetLogger replaces the publisher's logger.
func (p *Publisher) SetLogger(logger Logger) {
	p.loggerMu.Lock()
	defer p.loggerMu.Unlock()
	if logger == nil {
		logger = noopLogger{}
	}
	p.logger = logger
}

func (p *Publisher) getLogger() Logger {
	p.loggerMu.RLock()
	defer p.loggerMu.RUnlock()
	return p.logger
}

// SessionOpen publishes a retained "open" session message.
func (p *Publisher) SessionOpen(ctx context.Context, info session.Info) error {
	return p.publishSession(ctx, info, SessionOpened)
}

// SessionClose publishes a retained "close" session message.
func (p *Publisher) SessionClose(ctx context.Context, info session.Info) error {
	return p.publishSession(ctx, info, SessionClosed)
}

func (p *Publisher) publishSession(ctx context.Context, info session.Info, event SessionEvent) error {
	msg := SessionMessage{
		Device:    deviceOf(info),
		Event:     event,
		Timestamp: p.now().UTC(),
	}
	if err := p.publishJSON(ctx, p.topics.DeviceSession(topicSegment(info)), msg, true); err != nil {
		return err
	}
	p.broadcast(ChannelSessions, msg)
	return nil
}

// ReportActivity publishes an activity heartbeat for the session.
func (p *Publisher) ReportActivity(ctx context.Context, info session.Info) error {
	msg := ActivityMessage{
		Device:    deviceOf(info),
		Timestamp: p.now().UTC(),
	}
	return p.publishJSON(ctx, p.topics.DeviceActivity(topicSegment(info)), msg, false)
}

// Publish sends one category of reported values.
//
// Telemetry is mirrored to the time-series store only after the MQTT
// publish succeeded.
func (p *Publisher) Publish(ctx context.Context, category engine.Category, values map[string]string, info session.Info) error {
	if len(values) == 0 {
		return nil
	}

	var (
		topic    string
		retained bool
	)
	switch category {
	case engine.CategoryAttributes:
		topic, retained = p.topics.DeviceAttributes(topicSegment(info)), true
	case engine.CategoryTelemetry:
		topic = p.topics.DeviceTelemetry(topicSegment(info))
	default:
		return fmt.Errorf("%w: unknown category %q", ErrPublishFailed, category)
	}

	msg := ReportMessage{
		Device:    deviceOf(info),
		Category:  category,
		Timestamp: p.now().UTC(),
		Values:    values,
	}
	if err := p.publishJSON(ctx, topic, msg, retained); err != nil {
		return err
	}

	if category == engine.CategoryTelemetry && p.telemetry != nil {
		p.telemetry.WriteTelemetry(influxdb.Telemetry{
			Endpoint: info.Endpoint,
			Device:   info.DeviceName,
			Profile:  info.ProfileID.String(),
			Values:   values,
			Time:     msg.Timestamp,
		})
	}
	p.broadcast(ChannelReports, msg)
	return nil
}

func (p *Publisher) publishJSON(ctx context.Context, topic string, msg any, retained bool) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	if !p.mqtt.IsConnected() {
		return ErrNotConnected
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("%w: encoding: %w", ErrPublishFailed, err)
	}
	if err := p.mqtt.Publish(topic, payload, p.qos, retained); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPublishFailed, topic, err)
	}

	p.getLogger().Debug("uplink published", "topic", topic, "bytes", len(payload))
	return nil
}

func (p *Publisher) broadcast(channel string, payload any) {
	if p.broadcaster == nil {
		return
	}
	p.broadcaster.Broadcast(channel, payload)
}

// topicSegment is the device's level in the backend topic tree. MQTT
// wildcards and separators are not allowed inside one level.
func topicSegment(info session.Info) string {
	name := info.DeviceName
	if name == "" {
		name = info.Endpoint
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '+', '#':
			return '_'
		}
		return r
	}, name)
}
