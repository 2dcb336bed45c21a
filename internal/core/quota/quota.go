// Package quota loads and persists the escalation quota record. Storage
// failures never reach the caller: a missing or unreadable record becomes a
// default one, and failed writes are reported to the local sink.
package quota

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/loggate/loggate/internal/core"
)

// Backend reads and writes whole quota records. A missing record is
// reported as (nil, nil).
type Backend interface {
	GetQuota(ctx context.Context, name string) (*core.QuotaState, error)
	PutQuota(ctx context.Context, name string, state *core.QuotaState) error
}

// Updater is implemented by backends that can apply a read-modify-write to
// one record atomically, even when other processes share the backend. fn
// receives the stored record (nil when absent) and returns the record to
// write, or nil to leave it untouched. fn may be called more than once.
type Updater interface {
	UpdateQuota(ctx context.Context, name string, fn func(current *core.QuotaState) (*core.QuotaState, error)) error
}

// Reporter receives storage diagnostics. It must not route back into the
// gateway's remote escalation.
type Reporter interface {
	Write(severity core.Severity, message string)
}

// Defaults seed a record when none is stored.
type Defaults struct {
	Limit         int
	WindowUnit    core.WindowUnit
	RemoteEnabled bool
}

// DefaultSettings mirror the configuration defaults.
var DefaultSettings = Defaults{
	Limit:         20,
	WindowUnit:    core.WindowDay,
	RemoteEnabled: true,
}

// Validate rejects defaults that would produce an unusable record.
func (d Defaults) Validate() error {
	if d.Limit <= 0 {
		return fmt.Errorf("quota limit must be positive, got %d", d.Limit)
	}
	return d.WindowUnit.Validate()
}

// PersistError reports a failed Save.
type PersistError struct {
	Name string
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist quota %q: %v", e.Name, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// Store is the durable home of one named quota record.
type Store struct {
	Backend  Backend
	Name     string
	Defaults Defaults
	Local    Reporter
	Clock    func() time.Time
}

// Load returns the stored record, or a freshly persisted default when the
// record is absent, unreadable or corrupt.
func (s *Store) Load(ctx context.Context) core.QuotaState {
	if ctx == nil {
		ctx = context.Background()
	}

	var stored *core.QuotaState
	if s.Backend != nil {
		state, err := s.Backend.GetQuota(ctx, s.name())
		if err != nil {
			s.report(core.SeverityWarning, fmt.Sprintf("quota state %q unreadable, using defaults: %v", s.name(), err))
		}
		stored = state
	}

	state, fresh := s.baseline(stored)
	if fresh {
		_ = s.Save(ctx, state)
	}
	return state
}

// Update applies fn to the latest stored record and persists the result
// when fn reports a change. Changes made by other gateways or admin
// commands sharing the backend are therefore never overwritten. When the
// backend cannot be read, fn runs against cached instead.
//
// Errors from fn are returned as is and nothing is written. Storage
// failures are reported locally and returned as *PersistError alongside
// the state fn produced.
func (s *Store) Update(ctx context.Context, cached core.QuotaState, fn func(state *core.QuotaState) (bool, error)) (core.QuotaState, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	if updater, ok := s.Backend.(Updater); ok {
		var (
			result  core.QuotaState
			applied bool
			fnErr   error
		)
		err := updater.UpdateQuota(ctx, s.name(), func(current *core.QuotaState) (*core.QuotaState, error) {
			state, fresh := s.baseline(current)
			changed, err := fn(&state)
			if err != nil {
				fnErr = err
				return nil, err
			}
			result, applied = state, true
			if !changed && !fresh {
				return nil, nil
			}
			return &state, nil
		})
		switch {
		case fnErr != nil:
			return cached, fnErr
		case applied && err == nil:
			return result, nil
		case applied:
			perr := &PersistError{Name: s.name(), Err: err}
			s.report(core.SeverityWarning, perr.Error())
			return result, perr
		case err != nil:
			s.report(core.SeverityWarning, fmt.Sprintf("quota state %q unreadable, using cached copy: %v", s.name(), err))
		}
		return s.applyCached(ctx, cached, fn)
	}

	if s.Backend == nil {
		return s.applyCached(ctx, cached, fn)
	}

	current, err := s.Backend.GetQuota(ctx, s.name())
	if err != nil {
		s.report(core.SeverityWarning, fmt.Sprintf("quota state %q unreadable, using cached copy: %v", s.name(), err))
		return s.applyCached(ctx, cached, fn)
	}

	state, fresh := s.baseline(current)
	changed, err := fn(&state)
	if err != nil {
		return cached, err
	}
	if changed || fresh {
		if err := s.Save(ctx, state); err != nil {
			return state, err
		}
	}
	return state, nil
}

func (s *Store) applyCached(ctx context.Context, cached core.QuotaState, fn func(state *core.QuotaState) (bool, error)) (core.QuotaState, error) {
	state := cached
	changed, err := fn(&state)
	if err != nil {
		return cached, err
	}
	if changed {
		if err := s.Save(ctx, state); err != nil {
			return state, err
		}
	}
	return state, nil
}

// baseline turns a stored record into a usable one. fresh is true when
// defaults were substituted and still need to be written.
func (s *Store) baseline(stored *core.QuotaState) (core.QuotaState, bool) {
	if stored == nil {
		return s.defaultState(), true
	}
	if err := validateState(*stored); err != nil {
		s.report(core.SeverityWarning, fmt.Sprintf("quota state %q corrupt, using defaults: %v", s.name(), err))
		return s.defaultState(), true
	}
	state := *stored
	state.WindowStart = state.WindowStart.UTC()
	return state, false
}

// Save writes the whole record. Failures are reported locally and returned
// as *PersistError.
func (s *Store) Save(ctx context.Context, state core.QuotaState) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if s.Backend == nil {
		err := &PersistError{Name: s.name(), Err: errors.New("no quota backend configured")}
		s.report(core.SeverityWarning, err.Error())
		return err
	}

	record := state
	if err := s.Backend.PutQuota(ctx, s.name(), &record); err != nil {
		perr := &PersistError{Name: s.name(), Err: err}
		s.report(core.SeverityWarning, perr.Error())
		return perr
	}
	return nil
}

func (s *Store) defaultState() core.QuotaState {
	defaults := s.Defaults
	if defaults.Validate() != nil {
		defaults = DefaultSettings
	}
	return core.QuotaState{
		EventCount:    0,
		WindowStart:   s.now(),
		Limit:         defaults.Limit,
		WindowUnit:    defaults.WindowUnit,
		RemoteEnabled: defaults.RemoteEnabled,
	}
}

func (s *Store) name() string {
	if name := strings.TrimSpace(s.Name); name != "" {
		return name
	}
	return core.DefaultQuotaName
}

func (s *Store) now() time.Time {
	if s.Clock != nil {
		return s.Clock().UTC()
	}
	return time.Now().UTC()
}

func (s *Store) report(severity core.Severity, message string) {
	if s.Local != nil {
		s.Local.Write(severity, message)
	}
}

func validateState(state core.QuotaState) error {
	if state.Limit <= 0 {
		return fmt.Errorf("limit %d is not positive", state.Limit)
	}
	if state.EventCount < 0 {
		return fmt.Errorf("event count %d is negative", state.EventCount)
	}
	if state.WindowStart.IsZero() {
		return errors.New("window start is missing")
	}
	return state.WindowUnit.Validate()
}
