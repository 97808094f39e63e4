package lwm2m

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-lwm2m/internal/engine"
	"github.com/nerrad567/gray-logic-lwm2m/internal/infrastructure/mqtt"
	model "github.com/nerrad567/gray-logic-lwm2m/internal/lwm2m"
	"github.com/nerrad567/gray-logic-lwm2m/internal/profile"
)

// Bridge defaults.
const (
	// DefaultWorkers is the number of inbound dispatch workers.
	DefaultWorkers = 8

	// DefaultQueueSize is the per-worker inbound queue length.
	DefaultQueueSize = 256

	// commandQoS is the QoS for requests to the server stack.
	commandQoS = 1
)

// Bridge connects the sync engine to an LwM2M server stack over MQTT.
//
// Outbound it implements engine.Protocol: every request is encoded as a
// CBOR Command and published on the registration's command topic.
// Inbound it decodes lifecycle events, request outcomes, notifications and
// pushed profiles and hands them to a Handler.
//
// Inbound messages are routed to a fixed set of workers by registration
// id, so events for one registration are handled in arrival order while
// different registrations proceed in parallel. Handlers never run on the
// MQTT client's delivery goroutine.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	mqtt     MQTTClient
	topics   mqtt.Topics
	profiles ProfileStore
	health   *HealthReporter

	handler    Handler
	queues     []chan job
	subscribed []string

	received atomic.Uint64
	sent     atomic.Uint64
	errs     atomic.Uint64

	// Shutdown coordination
	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
	ctx       context.Context
	ctxCancel context.CancelFunc

	logger   Logger
	loggerMu sync.RWMutex
}

// MQTTClient is the subset of the MQTT client the bridge needs.
// *mqtt.Client satisfies it.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	IsConnected() bool
}

// Handler receives decoded inbound traffic. *engine.Engine satisfies it.
type Handler interface {
	OnRegistered(ctx context.Context, reg engine.Registration) error
	OnUpdated(ctx context.Context, registrationID string) error
	OnDeregistered(ctx context.Context, registrationID string) error
	OnSleeping(ctx context.Context, registrationID string) error
	OnAwake(ctx context.Context, registrationID string) error
	OnReadResponse(ctx context.Context, registrationID string, path model.PathKey, resources []model.Resource, readErr error) error
	OnValueChanged(ctx context.Context, registrationID string, path model.PathKey, res model.Resource) error
	UpdateProfile(ctx context.Context, id uuid.UUID, def profile.Definition) (engine.ReconcileResult, error)
}

// ProfileStore persists profiles pushed on the configuration topic.
// *profile.SQLiteRepository satisfies it.
type ProfileStore interface {
	Save(ctx context.Context, id uuid.UUID, def profile.Definition) error
}

// SessionCounter reports how many sessions exist. *session.Registry satisfies it.
type SessionCounter interface {
	Len() int
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// BridgeOptions holds configuration for creating a bridge.
type BridgeOptions struct {
	// MQTTClient is the MQTT client implementation.
	MQTTClient MQTTClient

	// Topics selects the server topic root.
	Topics mqtt.Topics

	// Profiles is optional. When set, pushed profiles are persisted before
	// they are applied.
	Profiles ProfileStore

	// Sessions is optional and only feeds the health report.
	Sessions SessionCounter

	// Workers and QueueSize size the inbound dispatch. Zero uses defaults.
	Workers   int
	QueueSize int

	// HealthInterval is how often health is published. Default: 30 seconds.
	HealthInterval time.Duration

	// BridgeID names the bridge in health messages.
	BridgeID string

	// Version is reported in health messages.
	Version string

	// Logger is optional structured logger.
	Logger Logger
}

// job is one inbound message ready to hand to the Handler.
type job func(ctx context.Context, h Handler)

// NewBridge creates a new bridge instance.
// Call Start() to begin operation.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	size := opts.QueueSize
	if size <= 0 {
		size = DefaultQueueSize
	}
	bridgeID := opts.BridgeID
	if bridgeID == "" {
		bridgeID = "lwm2m"
	}

	ctx, ctxCancel := context.WithCancel(context.Background())

	b := &Bridge{
		mqtt:      opts.MQTTClient,
		topics:    opts.Topics,
		profiles:  opts.Profiles,
		queues:    make([]chan job, workers),
		done:      make(chan struct{}),
		ctx:       ctx,
		ctxCancel: ctxCancel,
		logger:    opts.Logger,
	}
	for i := range b.queues {
		b.queues[i] = make(chan job, size)
	}

	b.health = NewHealthReporter(HealthReporterConfig{
		BridgeID:  bridgeID,
		Version:   opts.Version,
		Interval:  opts.HealthInterval,
		Topic:     opts.Topics.BridgeStatus(),
		Publisher: opts.MQTTClient,
		Sessions:  opts.Sessions,
		Stats:     b.Stats,
	})
	if opts.Logger != nil {
		b.health.SetLogger(opts.Logger)
	}

	return b, nil
}

// Start subscribes to the server stack's topics and starts dispatching
// inbound traffic to h.
func (b *Bridge) Start(ctx context.Context, h Handler) error {
	if h == nil {
		return fmt.Errorf("handler is required")
	}

	var err error
	b.startOnce.Do(func() {
		b.handler = h

		if perr := b.health.PublishStarting(); perr != nil {
			b.logError("failed to publish starting status", perr)
		}

		for i := range b.queues {
			b.wg.Add(1)
			go b.worker(b.queues[i])
		}

		subs := []struct {
			topic   string
			handler mqtt.MessageHandler
		}{
			{b.topics.AllEvents(), b.handleEvent},
			{b.topics.AllResponses(), b.handleResponse},
			{b.topics.AllNotifications(), b.handleNotification},
			{b.topics.AllProfileConfigs(), b.handleProfile},
		}
		for _, s := range subs {
			if serr := b.mqtt.Subscribe(s.topic, commandQoS, s.handler); serr != nil {
				err = fmt.Errorf("subscribe to %s: %w", s.topic, serr)
				return
			}
			b.subscribed = append(b.subscribed, s.topic)
			b.logInfo("subscribed", "topic", s.topic)
		}

		b.health.Start(ctx)
		b.logInfo("bridge started", "workers", len(b.queues))
	})
	return err
}

// Stop unsubscribes, waits for in-flight handlers, drops anything still
// queued and publishes a final stopping status.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		if b.mqtt.IsConnected() {
			for _, topic := range b.subscribed {
				if err := b.mqtt.Unsubscribe(topic); err != nil {
					b.logError("failed to unsubscribe", err, "topic", topic)
				}
			}
		}
		close(b.done)
		b.ctxCancel()
		b.wg.Wait()
		b.health.Stop()
		b.logInfo("bridge stopped")
	})
}

// Stats returns the bridge counters.
func (b *Bridge) Stats() Statistics {
	return Statistics{
		MessagesReceived: b.received.Load(),
		CommandsSent:     b.sent.Load(),
		Errors:           b.errs.Load(),
	}
}

// SetLogger sets the logger for the bridge and its health reporter.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()
	b.health.SetLogger(logger)
}

// =============================================================================
// engine.Protocol
// =============================================================================

// Read asks the server stack to read path.
func (b *Bridge) Read(ctx context.Context, registrationID string, path model.PathKey) error {
	return b.send(ctx, registrationID, Command{Op: OpRead, Path: path.String()})
}

// Observe asks the server stack to observe path.
func (b *Bridge) Observe(ctx context.Context, registrationID string, path model.PathKey) error {
	return b.send(ctx, registrationID, Command{Op: OpObserve, Path: path.String()})
}

// CancelObservation asks the server stack to cancel the observation of path.
func (b *Bridge) CancelObservation(ctx context.Context, registrationID string, path model.PathKey) error {
	return b.send(ctx, registrationID, Command{Op: OpCancel, Path: path.String()})
}

// CancelAllObservations asks the server stack to cancel every observation
// of the registration.
func (b *Bridge) CancelAllObservations(ctx context.Context, registrationID string) error {
	return b.send(ctx, registrationID, Command{Op: OpCancelAll})
}

// Execute asks the server stack to execute path with args.
func (b *Bridge) Execute(ctx context.Context, registrationID string, path model.PathKey, args string) error {
	return b.send(ctx, registrationID, Command{Op: OpExecute, Path: path.String(), Args: args})
}

func (b *Bridge) send(ctx context.Context, registrationID string, cmd Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-b.done:
		return ErrStopped
	default:
	}
	if !b.mqtt.IsConnected() {
		b.errs.Add(1)
		return ErrNotConnected
	}

	cmd.RequestID = uuid.NewString()
	cmd.Timestamp = time.Now().UTC()
	payload, err := Marshal(cmd)
	if err != nil {
		b.errs.Add(1)
		return fmt.Errorf("encoding %s command: %w", cmd.Op, err)
	}

	if err := b.mqtt.Publish(b.topics.Command(registrationID), payload, commandQoS, false); err != nil {
		b.errs.Add(1)
		return fmt.Errorf("publishing %s command: %w", cmd.Op, err)
	}
	b.sent.Add(1)
	b.logDebug("command sent",
		"registration_id", registrationID,
		"request_id", cmd.RequestID,
		"op", string(cmd.Op),
		"path", cmd.Path,
	)
	return nil
}

// =============================================================================
// Inbound
// =============================================================================

// worker runs jobs from one queue until Stop.
func (b *Bridge) worker(queue chan job) {
	defer b.wg.Done()
	for {
		select {
		case <-b.done:
			return
		case j := <-queue:
			b.run(j)
		}
	}
}

func (b *Bridge) run(j job) {
	defer func() {
		if r := recover(); r != nil {
			b.errs.Add(1)
			b.logError("handler panic recovered", fmt.Errorf("%v", r))
		}
	}()
	j(b.ctx, b.handler)
}

// enqueue routes j to the worker owning key. It blocks while that worker's
// queue is full, which in turn holds back the MQTT client.
func (b *Bridge) enqueue(key string, j job) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	queue := b.queues[h.Sum32()%uint32(len(b.queues))]

	select {
	case queue <- j:
	case <-b.done:
	}
}

// handleEvent decodes a lifecycle event.
func (b *Bridge) handleEvent(topic string, payload []byte) error {
	b.received.Add(1)
	kind := lastSegment(topic)

	if kind == mqtt.EventRegistered {
		var ev RegistrationEvent
		if err := Unmarshal(payload, &ev); err != nil {
			return b.reject(topic, err)
		}
		if ev.ID == "" || ev.Endpoint == "" {
			return b.reject(topic, fmt.Errorf("%w: registration without id or endpoint", ErrInvalidMessage))
		}
		reg := ev.Registration()
		b.enqueue(reg.ID, func(ctx context.Context, h Handler) {
			b.report("registration", reg.ID, h.OnRegistered(ctx, reg))
		})
		return nil
	}

	var ev LifecycleEvent
	if err := Unmarshal(payload, &ev); err != nil {
		return b.reject(topic, err)
	}
	if ev.ID == "" {
		return b.reject(topic, fmt.Errorf("%w: event without id", ErrInvalidMessage))
	}

	var fn func(Handler, context.Context, string) error
	switch kind {
	case mqtt.EventUpdated:
		fn = Handler.OnUpdated
	case mqtt.EventDeregistered:
		fn = Handler.OnDeregistered
	case mqtt.EventSleeping:
		fn = Handler.OnSleeping
	case mqtt.EventAwake:
		fn = Handler.OnAwake
	default:
		return b.reject(topic, fmt.Errorf("%w: unknown event %q", ErrInvalidTopic, kind))
	}

	id := ev.ID
	b.enqueue(id, func(ctx context.Context, h Handler) {
		b.report(kind, id, fn(h, ctx, id))
	})
	return nil
}

// handleResponse decodes the outcome of a command.
func (b *Bridge) handleResponse(topic string, payload []byte) error {
	b.received.Add(1)
	regID := lastSegment(topic)
	if regID == "" {
		return b.reject(topic, ErrInvalidTopic)
	}

	var resp Response
	if err := Unmarshal(payload, &resp); err != nil {
		return b.reject(topic, err)
	}
	path, err := model.ParsePath(resp.Path)
	if err != nil && resp.Op != OpCancelAll {
		return b.reject(topic, err)
	}

	switch resp.Op {
	case OpRead:
		var (
			values  []model.Resource
			readErr error
		)
		if resp.OK {
			values, readErr = resources(resp.Resources)
		} else {
			readErr = fmt.Errorf("%w: %s", ErrRequestFailed, resp.Error)
		}
		b.enqueue(regID, func(ctx context.Context, h Handler) {
			b.report("read response", regID, h.OnReadResponse(ctx, regID, path, values, readErr))
		})

	case OpObserve:
		// A successful observe carries the current value.
		if !resp.OK {
			b.logWarn("observe rejected", "registration_id", regID, "path", resp.Path, "error", resp.Error)
			return nil
		}
		if len(resp.Resources) > 0 {
			return b.dispatchValues(topic, regID, path, resp.Resources)
		}

	default:
		if !resp.OK {
			b.logWarn("request failed",
				"registration_id", regID,
				"request_id", resp.RequestID,
				"op", string(resp.Op),
				"path", resp.Path,
				"error", resp.Error,
			)
		}
	}
	return nil
}

// handleNotification decodes observed values.
func (b *Bridge) handleNotification(topic string, payload []byte) error {
	b.received.Add(1)
	regID := lastSegment(topic)
	if regID == "" {
		return b.reject(topic, ErrInvalidTopic)
	}

	var n Notification
	if err := Unmarshal(payload, &n); err != nil {
		return b.reject(topic, err)
	}
	path, err := model.ParsePath(n.Path)
	if err != nil {
		return b.reject(topic, err)
	}
	return b.dispatchValues(topic, regID, path, n.Resources)
}

// dispatchValues turns values for a resource or an instance into one value
// change per resource.
func (b *Bridge) dispatchValues(topic, regID string, path model.PathKey, values []ResourceValue) error {
	if !path.IsResource() && !path.IsInstance() {
		return b.reject(topic, fmt.Errorf("%w: values for %s", ErrInvalidMessage, path))
	}
	decoded, err := resources(values)
	if err != nil {
		return b.reject(topic, err)
	}

	b.enqueue(regID, func(ctx context.Context, h Handler) {
		for _, r := range decoded {
			target := path
			if path.IsInstance() {
				target = model.NewPath(path.ObjectID, path.InstanceID, r.ID)
			}
			b.report("value change", regID, h.OnValueChanged(ctx, regID, target, r))
		}
	})
	return nil
}

// handleProfile decodes a pushed profile definition, persists it when a
// store is configured and reconciles the sessions using it.
func (b *Bridge) handleProfile(topic string, payload []byte) error {
	b.received.Add(1)
	id, err := uuid.Parse(lastSegment(topic))
	if err != nil {
		return b.reject(topic, fmt.Errorf("%w: %w", ErrInvalidTopic, err))
	}

	var def profile.Definition
	if err := Unmarshal(payload, &def); err != nil {
		return b.reject(topic, err)
	}

	b.enqueue("profile:"+id.String(), func(ctx context.Context, h Handler) {
		if b.profiles != nil {
			if err := b.profiles.Save(ctx, id, def); err != nil {
				b.errs.Add(1)
				b.logError("failed to persist pushed profile", err, "profile_id", id.String())
				return
			}
		}
		res, err := h.UpdateProfile(ctx, id, def)
		if err != nil {
			b.errs.Add(1)
			b.logError("profile update failed", err, "profile_id", id.String())
			return
		}
		b.logInfo("profile applied",
			"profile_id", id.String(),
			"changed", res.Changed,
			"sessions", res.Sessions,
		)
	})
	return nil
}

// reject counts and returns a decode error. The MQTT client logs it.
func (b *Bridge) reject(topic string, err error) error {
	b.errs.Add(1)
	return fmt.Errorf("%s: %w", topic, err)
}

// report logs the outcome of a handler call. Unknown sessions are expected
// after deregistration and logged at debug level.
func (b *Bridge) report(what, regID string, err error) {
	switch {
	case err == nil:
	case errors.Is(err, engine.ErrSessionNotFound), errors.Is(err, engine.ErrSessionNotActive):
		b.logDebug(what+" ignored", "registration_id", regID, "error", err)
	default:
		b.errs.Add(1)
		b.logWarn(what+" failed", "registration_id", regID, "error", err)
	}
}

func lastSegment(topic string) string {
	if i := strings.LastIndexByte(topic, '/'); i >= 0 {
		return topic[i+1:]
	}
	return topic
}

func (b *Bridge) currentLogger() Logger {
	b.loggerMu.RLock()
	defer b.loggerMu.RUnlock()
	return b.logger
}

func (b *Bridge) logDebug(msg string, keysAndValues ...any) {
	if l := b.currentLogger(); l != nil {
		l.Debug(msg, keysAndValues...)
	}
}

func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	if l := b.currentLogger(); l != nil {
		l.Info(msg, keysAndValues...)
	}
}

func (b *Bridge) logWarn(msg string, keysAndValues ...any) {
	if l := b.currentLogger(); l != nil {
		l.Warn(msg, keysAndValues...)
	}
}

func (b *Bridge) logError(msg string, err error, keysAndValues ...any) {
	if l := b.currentLogger(); l != nil {
		l.Error(msg, append([]any{"error", err}, keysAndValues...)...)
	}
}
