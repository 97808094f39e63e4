package lwm2m

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-lwm2m/internal/engine"
	"github.com/nerrad567/gray-logic-lwm2m/internal/infrastructure/mqtt"
	model "github.com/nerrad567/gray-logic-lwm2m/internal/lwm2m"
	"github.com/nerrad567/gray-logic-lwm2m/internal/profile"
)

// MockMQTTClient implements MQTTClient for testing.
type MockMQTTClient struct {
	mu         sync.Mutex
	published  []mockPublish
	handlers   map[string]mqtt.MessageHandler
	connected  bool
	publishErr error
}

type mockPublish struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

func NewMockMQTTClient() *MockMQTTClient {
	return &MockMQTTClient{
		connected: true,
		handlers:  make(map[string]mqtt.MessageHandler),
	}
}

func (m *MockMQTTClient) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, mockPublish{Topic: topic, Payload: payload, QoS: qos, Retained: retained})
	return nil
}

func (m *MockMQTTClient) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[topic] = handler
	return nil
}

func (m *MockMQTTClient) Unsubscribe(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handlers, topic)
	return nil
}

func (m *MockMQTTClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockMQTTClient) SetConnected(connected bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = connected
}

func (m *MockMQTTClient) SetPublishError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishErr = err
}

func (m *MockMQTTClient) Subscriptions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.handlers))
	for t := range m.handlers {
		out = append(out, t)
	}
	return out
}

// PublishedTo returns the payloads published to topic, in order.
func (m *MockMQTTClient) PublishedTo(topic string) [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out [][]byte
	for _, p := range m.published {
		if p.Topic == topic {
			out = append(out, p.Payload)
		}
	}
	return out
}

// SimulateMessage delivers payload to the handler whose pattern matches topic.
func (m *MockMQTTClient) SimulateMessage(topic string, payload []byte) error {
	m.mu.Lock()
	var handler mqtt.MessageHandler
	for pattern, h := range m.handlers {
		if topicMatches(pattern, topic) {
			handler = h
			break
		}
	}
	m.mu.Unlock()
	if handler == nil {
		return errors.New("no subscription for " + topic)
	}
	return handler(topic, payload)
}

func topicMatches(pattern, topic string) bool {
	p := strings.Split(pattern, "/")
	t := strings.Split(topic, "/")
	if len(p) != len(t) {
		return false
	}
	for i := range p {
		if p[i] != "+" && p[i] != t[i] {
			return false
		}
	}
	return true
}

// handlerCall is one recorded Handler invocation.
type handlerCall struct {
	Kind         string
	RegID        string
	Path         string
	Resources    []model.Resource
	Err          error
	Registration engine.Registration
	ProfileID    uuid.UUID
	Definition   profile.Definition
}

// mockHandler records every Handler call.
type mockHandler struct {
	mu    sync.Mutex
	calls []handlerCall
}

func (m *mockHandler) add(c handlerCall) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, c)
	return nil
}

func (m *mockHandler) snapshot() []handlerCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]handlerCall(nil), m.calls...)
}

func (m *mockHandler) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *mockHandler) OnRegistered(_ context.Context, reg engine.Registration) error {
	return m.add(handlerCall{Kind: "registered", RegID: reg.ID, Registration: reg})
}

func (m *mockHandler) OnUpdated(_ context.Context, id string) error {
	return m.add(handlerCall{Kind: "updated", RegID: id})
}

func (m *mockHandler) OnDeregistered(_ context.Context, id string) error {
	return m.add(handlerCall{Kind: "deregistered", RegID: id})
}

func (m *mockHandler) OnSleeping(_ context.Context, id string) error {
	return m.add(handlerCall{Kind: "sleeping", RegID: id})
}

func (m *mockHandler) OnAwake(_ context.Context, id string) error {
	return m.add(handlerCall{Kind: "awake", RegID: id})
}

func (m *mockHandler) OnReadResponse(_ context.Context, id string, path model.PathKey, res []model.Resource, readErr error) error {
	return m.add(handlerCall{Kind: "read", RegID: id, Path: path.String(), Resources: res, Err: readErr})
}

func (m *mockHandler) OnValueChanged(_ context.Context, id string, path model.PathKey, res model.Resource) error {
	return m.add(handlerCall{Kind: "value", RegID: id, Path: path.String(), Resources: []model.Resource{res}})
}

func (m *mockHandler) UpdateProfile(_ context.Context, id uuid.UUID, def profile.Definition) (engine.ReconcileResult, error) {
	_ = m.add(handlerCall{Kind: "profile", ProfileID: id, Definition: def})
	return engine.ReconcileResult{Changed: true}, nil
}

// mockStore records saved profiles.
type mockStore struct {
	mu    sync.Mutex
	saved map[uuid.UUID]profile.Definition
	err   error
}

func (m *mockStore) Save(_ context.Context, id uuid.UUID, def profile.Definition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.saved == nil {
		m.saved = make(map[uuid.UUID]profile.Definition)
	}
	m.saved[id] = def
	return nil
}

type fixedCounter int

func (c fixedCounter) Len() int { return int(c) }
