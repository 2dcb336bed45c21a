// Package gateway is the process-wide entry point for diagnostic events.
//
// Every event is written to the local sink. Error events are additionally
// escalated to a remote telemetry sink while the persisted quota for the
// current window has room. The quota decision and its persistence happen
// under one mutex; sink calls happen after the decision is committed.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/loggate/loggate/internal/core"
	"github.com/loggate/loggate/internal/core/engine"
	"github.com/loggate/loggate/internal/core/quota"
	"github.com/loggate/loggate/internal/metrics"
)

// QuotaExceededNotice is sent to both sinks once per exhausted window.
const QuotaExceededNotice = "remote log quota exhausted for the current window; further errors are logged locally only"

// LocalSink receives every event. It must not fail observably.
type LocalSink interface {
	Write(severity core.Severity, message string)
}

// RemoteSink is the telemetry backend.
type RemoteSink interface {
	Capture(ctx context.Context, message string, severity core.Severity) error
	IsEnabled() bool
}

// Escalation describes what happened to an event on the remote side.
type Escalation string

const (
	// LocalOnly: the event was not subject to the quota.
	LocalOnly Escalation = "local_only"
	// Escalated: the event counted against the quota and was sent remotely.
	Escalated Escalation = "escalated"
	// Suppressed: the quota is spent and the event was dropped remotely.
	Suppressed Escalation = "suppressed"
)

// Options wires a Gateway.
type Options struct {
	Local  LocalSink
	Remote RemoteSink
	Store  *quota.Store
	Policy *engine.WindowPolicy
}

// Gateway owns the process-wide quota state.
type Gateway struct {
	local  LocalSink
	remote RemoteSink
	store  *quota.Store
	policy *engine.WindowPolicy

	mu    sync.Mutex
	state core.QuotaState
}

type plan int

const (
	planSkip plan = iota
	planEscalate
	planNotice
	planSuppress
)

type discardLocal struct{}

func (discardLocal) Write(core.Severity, string) {}

// New loads the quota state (or persists defaults) and returns a ready
// gateway.
func New(ctx context.Context, opts Options) (*Gateway, error) {
	if opts.Store == nil {
		return nil, errors.New("quota store is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	g := &Gateway{
		local:  opts.Local,
		remote: opts.Remote,
		store:  opts.Store,
		policy: opts.Policy,
	}
	if g.local == nil {
		g.local = discardLocal{}
	}
	if g.policy == nil {
		g.policy = &engine.WindowPolicy{}
	}
	if g.store.Local == nil {
		g.store.Local = g.local
	}
	if g.store.Clock == nil {
		g.store.Clock = g.policy.Now
	}

	g.state = g.store.Load(ctx)
	metrics.SetQuotaUsed(g.quotaName(), g.state.EventCount)
	return g, nil
}

// Write logs an event locally and, for errors, escalates it remotely when
// the quota allows. It never fails; problems are reported to the local sink.
func (g *Gateway) Write(ctx context.Context, severity core.Severity, message string) Escalation {
	g.local.Write(severity, message)
	metrics.RecordEvent(string(severity))

	result, err := g.escalate(ctx, severity, message)
	if err != nil {
		g.local.Write(core.SeverityError, fmt.Sprintf("remote escalation skipped: %v", err))
	}
	return result
}

// Escalate runs only the remote half of Write. Configuration errors from
// the window policy are returned instead of being logged.
func (g *Gateway) Escalate(ctx context.Context, severity core.Severity, message string) (Escalation, error) {
	return g.escalate(ctx, severity, message)
}

func (g *Gateway) escalate(ctx context.Context, severity core.Severity, message string) (Escalation, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if g.remote == nil || !g.remote.IsEnabled() {
		return LocalOnly, nil
	}

	next, err := g.decide(ctx, severity)
	if err != nil {
		return LocalOnly, err
	}

	switch next {
	case planEscalate:
		metrics.RecordEscalation(g.quotaName())
		g.capture(ctx, message, severity)
		return Escalated, nil
	case planNotice:
		metrics.RecordSuppressed(g.quotaName())
		metrics.RecordQuotaNotice(g.quotaName())
		g.local.Write(core.SeverityWarning, QuotaExceededNotice)
		g.capture(ctx, QuotaExceededNotice, core.SeverityWarning)
		return Suppressed, nil
	case planSuppress:
		metrics.RecordSuppressed(g.quotaName())
		return Suppressed, nil
	default:
		return LocalOnly, nil
	}
}

// decide is the critical section: the stored record is re-read, evaluated,
// mutated and persisted as one update, so changes made through another
// gateway on the same backend are honored.
func (g *Gateway) decide(ctx context.Context, severity core.Severity) (plan, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var (
		next  plan
		reset bool
	)
	state, err := g.store.Update(ctx, g.state, func(state *core.QuotaState) (bool, error) {
		next, reset = planSkip, false
		if !state.RemoteEnabled {
			return false, nil
		}

		now := g.policy.Now()
		decision, err := g.policy.Evaluate(*state, now)
		if err != nil {
			return false, err
		}

		if decision.Outcome == engine.Reset {
			*state = decision.State
			reset = true
			decision, err = g.policy.Evaluate(*state, now)
			if err != nil {
				return false, err
			}
		}

		if severity != core.SeverityError {
			return reset, nil
		}

		if decision.Outcome == engine.Exceeded {
			if state.ExceededNotified {
				next = planSuppress
				return reset, nil
			}
			state.ExceededNotified = true
			next = planNotice
			return true, nil
		}

		state.EventCount++
		next = planEscalate
		return true, nil
	})
	if err := g.commitLocked(state, err); err != nil {
		return planSkip, err
	}
	if reset {
		metrics.RecordWindowReset(g.quotaName())
	}
	return next, nil
}

// commitLocked adopts the state an update produced. Persist failures are
// counted and swallowed; anything else is returned.
func (g *Gateway) commitLocked(state core.QuotaState, err error) error {
	var perr *quota.PersistError
	if err != nil && !errors.As(err, &perr) {
		return err
	}
	if perr != nil {
		metrics.RecordPersistFailure(g.quotaName())
	}
	g.state = state
	metrics.SetQuotaUsed(g.quotaName(), g.state.EventCount)
	return nil
}

// capture calls the remote sink and contains any failure, including a panic.
func (g *Gateway) capture(ctx context.Context, message string, severity core.Severity) {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("remote sink panic: %v", r)
			}
		}()
		return g.remote.Capture(ctx, message, severity)
	}()
	if err != nil {
		metrics.RecordRemoteFailure(g.quotaName())
		g.local.Write(core.SeverityWarning, fmt.Sprintf("remote escalation failed: %v", err))
	}
}

// Snapshot returns a copy of the quota state as of the gateway's last read.
func (g *Gateway) Snapshot() core.QuotaState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Refresh re-reads the stored record and returns it.
func (g *Gateway) Refresh(ctx context.Context) core.QuotaState {
	g.mu.Lock()
	defer g.mu.Unlock()

	state, err := g.store.Update(ctx, g.state, func(*core.QuotaState) (bool, error) {
		return false, nil
	})
	_ = g.commitLocked(state, err)
	return g.state
}

// Reset starts a fresh window now, regardless of elapsed time.
func (g *Gateway) Reset(ctx context.Context) error {
	return g.mutate(ctx, func(state *core.QuotaState) {
		state.EventCount = 0
		state.WindowStart = g.policy.Now()
		state.ExceededNotified = false
	})
}

// SetRemoteEnabled flips the persisted escalation master switch.
func (g *Gateway) SetRemoteEnabled(ctx context.Context, enabled bool) error {
	return g.mutate(ctx, func(state *core.QuotaState) {
		state.RemoteEnabled = enabled
	})
}

// mutate applies an admin change to the stored record. Unlike the write
// path, a failed persist is returned to the caller.
func (g *Gateway) mutate(ctx context.Context, change func(state *core.QuotaState)) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	state, err := g.store.Update(ctx, g.state, func(state *core.QuotaState) (bool, error) {
		change(state)
		return true, nil
	})
	if cerr := g.commitLocked(state, err); cerr != nil {
		return cerr
	}
	return err
}

// Name is the persisted quota record the gateway owns.
func (g *Gateway) Name() string {
	return g.quotaName()
}

func (g *Gateway) quotaName() string {
	if g.store.Name == "" {
		return core.DefaultQuotaName
	}
	return g.store.Name
}
