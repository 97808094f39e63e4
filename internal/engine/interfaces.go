package engine

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-lwm2m/internal/lwm2m"
	"github.com/nerrad567/gray-logic-lwm2m/internal/profile"
	"github.com/nerrad567/gray-logic-lwm2m/internal/session"
)

// Protocol issues requests to devices through the LwM2M server stack.
//
// Every method is fire-and-forget: it returns once the request has been
// handed off (or the context expires), never after the device answers.
// Read results arrive later through Engine.OnReadResponse and observed
// values through Engine.OnValueChanged. Implementations must not call back
// into the Engine from inside these methods.
type Protocol interface {
	Read(ctx context.Context, registrationID string, path lwm2m.PathKey) error
	Observe(ctx context.Context, registrationID string, path lwm2m.PathKey) error
	CancelObservation(ctx context.Context, registrationID string, path lwm2m.PathKey) error
	CancelAllObservations(ctx context.Context, registrationID string) error
	Execute(ctx context.Context, registrationID string, path lwm2m.PathKey, args string) error
}

// Category is the backend reporting category of a value.
type Category string

// Reporting categories.
const (
	CategoryAttributes Category = "attributes"
	CategoryTelemetry  Category = "telemetry"
)

// Backend receives session lifecycle and reported values.
//
// Failures are logged by the engine and never retried by it.
type Backend interface {
	SessionOpen(ctx context.Context, info session.Info) error
	SessionClose(ctx context.Context, info session.Info) error
	ReportActivity(ctx context.Context, info session.Info) error
	Publish(ctx context.Context, category Category, values map[string]string, info session.Info) error
}

// Authenticator resolves a registration to a device identity.
// It returns an error wrapping ErrUnauthorized to reject the device.
type Authenticator interface {
	ValidateCredentials(ctx context.Context, reg Registration) (session.Identity, error)
}

// ProfileSource loads a profile definition the first time a session needs it.
type ProfileSource interface {
	Get(ctx context.Context, id uuid.UUID) (profile.Definition, error)
}

// Logger defines the logging interface used by the Engine.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registration describes a completed device registration.
type Registration struct {
	ID       string `json:"id"`
	Endpoint string `json:"endpoint"`

	// Identity is the security identity the device authenticated with
	// (PSK identity, certificate CN); empty for no-sec devices.
	Identity string `json:"identity,omitempty"`

	Lifetime time.Duration `json:"lifetime,omitempty"`
	Version  string        `json:"version,omitempty"`
	Binding  string        `json:"binding,omitempty"`

	// ObjectLinks are the CoRE links from the registration payload,
	// e.g. "</3/0>", "</1/0>;ver=1.1".
	ObjectLinks []string `json:"links"`

	// Attributes are any additional registration attributes. They are
	// published as attributes on the initial sync.
	Attributes map[string]string `json:"attributes,omitempty"`
}

// DeclaredPaths returns the distinct instance paths announced in the
// registration's object links, ordered. Object-level links, the root link
// and unparseable links are skipped.
func (r Registration) DeclaredPaths() []lwm2m.PathKey {
	seen := make(map[lwm2m.PathKey]struct{}, len(r.ObjectLinks))
	var out []lwm2m.PathKey

	for _, link := range r.ObjectLinks {
		target := link
		if i := strings.IndexByte(target, ';'); i >= 0 {
			target = target[:i]
		}
		target = strings.TrimSpace(target)
		target = strings.TrimSuffix(strings.TrimPrefix(target, "<"), ">")

		p, err := lwm2m.ParsePath(target)
		if err != nil || !p.IsInstance() {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}

	lwm2m.SortPaths(out)
	return out
}
