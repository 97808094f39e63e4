package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/nerrad567/gray-logic-lwm2m/internal/profile"
	"github.com/nerrad567/gray-logic-lwm2m/internal/session"
)

// Engine defaults.
const (
	// DefaultCommandTimeout bounds how long the engine waits for a collaborator
	// to accept a request or a publish.
	DefaultCommandTimeout = 5 * time.Second

	// DefaultDiscoveryTimeout is how long the initial bulk read may run before
	// unanswered instances are treated as absent.
	DefaultDiscoveryTimeout = 30 * time.Second

	// DefaultActivityInterval is the period of the activity sweep.
	DefaultActivityInterval = 60 * time.Second
)

// Options configures an Engine.
type Options struct {
	Protocol      Protocol
	Backend       Backend
	Authenticator Authenticator
	Profiles      ProfileSource

	// Registry is created when nil.
	Registry *session.Registry

	Logger Logger

	CommandTimeout   time.Duration
	DiscoveryTimeout time.Duration
	ActivityInterval time.Duration
}

// Engine keeps the backend's view of every registered device consistent
// with the device's resources and its reporting profile.
//
// All entry points may be called concurrently. Work on a session is
// serialised by that session's lock; requests and publishes are issued
// after the lock is released.
//
// Lock order: profile before session. A profile snapshot is always taken
// before entering a session's exclusive section, never from inside it.
type Engine struct {
	registry *session.Registry
	protocol Protocol
	backend  Backend
	auth     Authenticator
	profiles ProfileSource

	commandTimeout   time.Duration
	discoveryTimeout time.Duration
	activityInterval time.Duration

	// serialises profile updates, planning through dispatch
	reconcileMu sync.Mutex

	// discovery timers by session id
	timersMu sync.Mutex
	timers   map[uuid.UUID]*time.Timer

	// activity sweep
	cron       *cron.Cron
	startTimer *time.Timer
	jitter     func(max time.Duration) time.Duration
	sweepMu    sync.Mutex

	startOnce sync.Once
	stopOnce  sync.Once
	ctx       context.Context
	ctxCancel context.CancelFunc

	logger   Logger
	loggerMu sync.RWMutex
}

// New creates an Engine.
//
// Returns an error when a required collaborator is missing.
func New(opts Options) (*Engine, error) {
	if opts.Protocol == nil {
		return nil, errors.New("engine: protocol is required")
	}
	if opts.Backend == nil {
		return nil, errors.New("engine: backend is required")
	}
	if opts.Authenticator == nil {
		return nil, errors.New("engine: authenticator is required")
	}
	if opts.Profiles == nil {
		return nil, errors.New("engine: profile source is required")
	}

	reg := opts.Registry
	if reg == nil {
		reg = session.NewRegistry()
	}

	var logger Logger = noopLogger{}
	if opts.Logger != nil {
		logger = opts.Logger
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Engine{
		registry:         reg,
		protocol:         opts.Protocol,
		backend:          opts.Backend,
		auth:             opts.Authenticator,
		profiles:         opts.Profiles,
		commandTimeout:   orDefault(opts.CommandTimeout, DefaultCommandTimeout),
		discoveryTimeout: orDefault(opts.DiscoveryTimeout, DefaultDiscoveryTimeout),
		activityInterval: orDefault(opts.ActivityInterval, DefaultActivityInterval),
		timers:           make(map[uuid.UUID]*time.Timer),
		jitter:           randomOffset,
		ctx:              ctx,
		ctxCancel:        cancel,
		logger:           logger,
	}, nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// randomOffset spreads the first sweep of engines started together.
func randomOffset(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	return rand.N(limit)
}

// Registry returns the session registry.
func (e *Engine) Registry() *session.Registry {
	return e.registry
}

// Start schedules the activity sweep. The first sweep runs after a random
// offset within one interval, then every interval.
func (e *Engine) Start() {
	e.startOnce.Do(func() {
		e.cron = cron.New()
		delay := e.jitter(e.activityInterval)

		e.sweepMu.Lock()
		e.startTimer = time.AfterFunc(delay, func() {
			e.sweepMu.Lock()
			defer e.sweepMu.Unlock()
			if e.ctx.Err() != nil {
				return
			}
			e.ReportActivity(e.ctx)
			e.cron.Schedule(cron.Every(e.activityInterval), cron.FuncJob(func() {
				e.ReportActivity(e.ctx)
			}))
			e.cron.Start()
		})
		e.sweepMu.Unlock()

		e.logInfo("sync engine started",
			"activity_interval", e.activityInterval.String(),
			"first_sweep_in", delay.String(),
		)
	})
}

// Stop halts the activity sweep and pending discovery timers. Sessions are
// left in place; the protocol stack owns their lifetime.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		e.ctxCancel()

		e.sweepMu.Lock()
		if e.startTimer != nil {
			e.startTimer.Stop()
		}
		var stopped context.Context
		if e.cron != nil {
			stopped = e.cron.Stop()
		}
		e.sweepMu.Unlock()

		if stopped != nil {
			select {
			case <-stopped.Done():
			case <-time.After(e.commandTimeout):
				e.logWarn("activity sweep still running at shutdown")
			}
		}

		e.timersMu.Lock()
		for id, t := range e.timers {
			t.Stop()
			delete(e.timers, id)
		}
		e.timersMu.Unlock()

		e.logInfo("sync engine stopped")
	})
}

// SetLogger sets the logger for the engine.
func (e *Engine) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	e.loggerMu.Lock()
	e.logger = logger
	e.loggerMu.Unlock()
}

// sessionProfile resolves the profile a session reports with, loading and
// registering it on first use.
func (e *Engine) sessionProfile(ctx context.Context, id uuid.UUID) (*profile.Profile, error) {
	if p, ok := e.registry.Profile(id); ok {
		return p, nil
	}

	cctx, cancel := e.bounded(ctx)
	defer cancel()

	def, err := e.profiles.Get(cctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrProfileUnavailable, id, err)
	}

	snap, skipped := profile.Compile(def)
	for _, serr := range skipped {
		e.logWarn("skipping profile entry", "profile_id", id.String(), "error", serr)
	}
	return e.registry.PutProfile(profile.New(id, snap)), nil
}

// snapshotFor returns the current snapshot of a session's profile and its
// version, or an empty snapshot at version 0 when the profile is gone.
//
// It must be called without the session lock held. Pass the result through
// State.Adopt once inside the lock.
func (e *Engine) snapshotFor(s *session.Session) (*profile.Snapshot, uint64) {
	if p, ok := e.registry.Profile(s.ProfileID); ok {
		return p.Current()
	}
	return profile.Empty(), 0
}

// bounded derives a context limited by the command timeout.
func (e *Engine) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.commandTimeout)
}

func (e *Engine) armDiscovery(s *session.Session) {
	t := time.AfterFunc(e.discoveryTimeout, func() {
		e.discoveryTimedOut(s)
	})

	e.timersMu.Lock()
	if old, ok := e.timers[s.ID]; ok {
		old.Stop()
	}
	e.timers[s.ID] = t
	e.timersMu.Unlock()
}

func (e *Engine) disarmDiscovery(id uuid.UUID) {
	e.timersMu.Lock()
	if t, ok := e.timers[id]; ok {
		t.Stop()
		delete(e.timers, id)
	}
	e.timersMu.Unlock()
}

func (e *Engine) currentLogger() Logger {
	e.loggerMu.RLock()
	defer e.loggerMu.RUnlock()
	return e.logger
}

func (e *Engine) logDebug(msg string, keysAndValues ...any) {
	e.currentLogger().Debug(msg, keysAndValues...)
}

func (e *Engine) logInfo(msg string, keysAndValues ...any) {
	e.currentLogger().Info(msg, keysAndValues...)
}

func (e *Engine) logWarn(msg string, keysAndValues ...any) {
	e.currentLogger().Warn(msg, keysAndValues...)
}

func (e *Engine) logError(msg string, err error, keysAndValues ...any) {
	e.currentLogger().Error(msg, append([]any{"error", err}, keysAndValues...)...)
}
