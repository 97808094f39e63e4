package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-lwm2m/internal/lwm2m"
	"github.com/nerrad567/gray-logic-lwm2m/internal/profile"
	"github.com/nerrad567/gray-logic-lwm2m/internal/session"
)

// =============================================================================
// Mock protocol
// =============================================================================

type protoCall struct {
	Op   string
	Reg  string
	Path string
}

type mockProtocol struct {
	mu    sync.Mutex
	calls []protoCall
	fail  map[string]error // by op

	// hook runs for every call, outside mu
	hook func(op string)
}

func newMockProtocol() *mockProtocol {
	return &mockProtocol{fail: make(map[string]error)}
}

func (m *mockProtocol) record(op, reg string, p *lwm2m.PathKey) error {
	m.mu.Lock()
	hook := m.hook
	m.mu.Unlock()
	if hook != nil {
		hook(op)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	c := protoCall{Op: op, Reg: reg}
	if p != nil {
		c.Path = p.String()
	}
	m.calls = append(m.calls, c)
	return m.fail[op]
}

func (m *mockProtocol) Read(_ context.Context, reg string, p lwm2m.PathKey) error {
	return m.record("read", reg, &p)
}

func (m *mockProtocol) Observe(_ context.Context, reg string, p lwm2m.PathKey) error {
	return m.record("observe", reg, &p)
}

func (m *mockProtocol) CancelObservation(_ context.Context, reg string, p lwm2m.PathKey) error {
	return m.record("cancel", reg, &p)
}

func (m *mockProtocol) CancelAllObservations(_ context.Context, reg string) error {
	return m.record("cancel_all", reg, nil)
}

func (m *mockProtocol) Execute(_ context.Context, reg string, p lwm2m.PathKey, _ string) error {
	return m.record("execute", reg, &p)
}

func (m *mockProtocol) setHook(fn func(op string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hook = fn
}

func (m *mockProtocol) setFail(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail[op] = err
}

// paths returns the paths of every call with op, in call order.
func (m *mockProtocol) paths(op string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, c := range m.calls {
		if c.Op == op {
			out = append(out, c.Path)
		}
	}
	return out
}

func (m *mockProtocol) count(op string) int {
	return len(m.paths(op))
}

func (m *mockProtocol) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// =============================================================================
// Mock backend
// =============================================================================

type published struct {
	Category Category
	Values   map[string]string
	Endpoint string
}

type mockBackend struct {
	mu         sync.Mutex
	publishes  []published
	opens      []string
	closes     []string
	activities []string
	publishErr error
}

func (m *mockBackend) SessionOpen(_ context.Context, info session.Info) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opens = append(m.opens, info.Endpoint)
	return nil
}

func (m *mockBackend) SessionClose(_ context.Context, info session.Info) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes = append(m.closes, info.Endpoint)
	return nil
}

func (m *mockBackend) ReportActivity(_ context.Context, info session.Info) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activities = append(m.activities, info.Endpoint)
	return nil
}

func (m *mockBackend) Publish(_ context.Context, c Category, values map[string]string, info session.Info) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make(map[string]string, len(values))
	for k, v := range values {
		cp[k] = v
	}
	m.publishes = append(m.publishes, published{Category: c, Values: cp, Endpoint: info.Endpoint})
	return m.publishErr
}

func (m *mockBackend) published(c Category) []map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []map[string]string
	for _, p := range m.publishes {
		if p.Category == c {
			out = append(out, p.Values)
		}
	}
	return out
}

func (m *mockBackend) publishCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.publishes)
}

func (m *mockBackend) activityCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.activities)
}

func (m *mockBackend) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishes = nil
}

// =============================================================================
// Mock authenticator and profile source
// =============================================================================

type mockAuth struct {
	mu      sync.Mutex
	devices map[string]session.Identity // by endpoint
}

func (m *mockAuth) ValidateCredentials(_ context.Context, reg Registration) (session.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.devices[reg.Endpoint]
	if !ok {
		return session.Identity{}, fmt.Errorf("%w: unknown endpoint %s", ErrUnauthorized, reg.Endpoint)
	}
	return id, nil
}

type mockProfiles struct {
	mu   sync.Mutex
	defs map[uuid.UUID]profile.Definition
}

func (m *mockProfiles) Get(_ context.Context, id uuid.UUID) (profile.Definition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	def, ok := m.defs[id]
	if !ok {
		return profile.Definition{}, profile.ErrProfileNotFound
	}
	return def, nil
}

// =============================================================================
// Harness
// =============================================================================

type harness struct {
	engine    *Engine
	proto     *mockProtocol
	backend   *mockBackend
	auth      *mockAuth
	profiles  *mockProfiles
	profileID uuid.UUID
}

func newHarness(t *testing.T, def profile.Definition, tweaks ...func(*Options)) *harness {
	t.Helper()

	h := &harness{
		proto:     newMockProtocol(),
		backend:   &mockBackend{},
		auth:      &mockAuth{devices: make(map[string]session.Identity)},
		profiles:  &mockProfiles{defs: make(map[uuid.UUID]profile.Definition)},
		profileID: uuid.New(),
	}
	h.profiles.defs[h.profileID] = def

	opts := Options{
		Protocol:         h.proto,
		Backend:          h.backend,
		Authenticator:    h.auth,
		Profiles:         h.profiles,
		CommandTimeout:   time.Second,
		DiscoveryTimeout: time.Minute,
		ActivityInterval: time.Minute,
	}
	for _, tweak := range tweaks {
		tweak(&opts)
	}
	e, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(e.Stop)
	h.engine = e
	return h
}

// allow lets endpoint register with the harness profile.
func (h *harness) allow(endpoint string) {
	h.auth.mu.Lock()
	defer h.auth.mu.Unlock()
	h.auth.devices[endpoint] = session.Identity{DeviceName: "dev-" + endpoint, ProfileID: h.profileID}
}

// register allows and registers endpoint under regID with links.
func (h *harness) register(t *testing.T, regID, endpoint string, links ...string) {
	t.Helper()
	h.allow(endpoint)
	require.NoError(t, h.engine.OnRegistered(context.Background(), Registration{
		ID:          regID,
		Endpoint:    endpoint,
		ObjectLinks: links,
	}))
}

// answer completes a read of an instance path with resources.
func (h *harness) answer(t *testing.T, regID, path string, resources ...lwm2m.Resource) {
	t.Helper()
	require.NoError(t, h.engine.OnReadResponse(context.Background(), regID, lwm2m.MustParsePath(path), resources, nil))
}

func str(id int, v string) lwm2m.Resource {
	return lwm2m.NewSingle(id, lwm2m.TypeString, v)
}

func integer(id int, v int64) lwm2m.Resource {
	return lwm2m.NewSingle(id, lwm2m.TypeInteger, v)
}
