package gateway

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fulmenhq/gofulmen/telemetry"
	telemetrytesting "github.com/fulmenhq/gofulmen/telemetry/testing"
	"github.com/stretchr/testify/require"

	"github.com/loggate/loggate/internal/core"
	"github.com/loggate/loggate/internal/core/engine"
	"github.com/loggate/loggate/internal/core/quota"
	"github.com/loggate/loggate/internal/metrics"
	"github.com/loggate/loggate/internal/observability"
)

type localLine struct {
	severity core.Severity
	message  string
}

type fakeLocal struct {
	mu    sync.Mutex
	lines []localLine
}

func (f *fakeLocal) Write(severity core.Severity, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines = append(f.lines, localLine{severity: severity, message: message})
}

func (f *fakeLocal) count(message string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, line := range f.lines {
		if line.message == message {
			n++
		}
	}
	return n
}

func (f *fakeLocal) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.lines)
}

type fakeRemote struct {
	mu       sync.Mutex
	enabled  bool
	err      error
	panicMsg string
	messages []string
}

func (f *fakeRemote) IsEnabled() bool { return f.enabled }

func (f *fakeRemote) Capture(ctx context.Context, message string, severity core.Severity) error {
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, message)
	return f.err
}

func (f *fakeRemote) count(message string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.messages {
		if m == message {
			n++
		}
	}
	return n
}

func (f *fakeRemote) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	gateway *Gateway
	local   *fakeLocal
	remote  *fakeRemote
	backend *quota.MemoryBackend
	clock   *clock
}

func newHarness(t *testing.T, limit int, unit core.WindowUnit) *harness {
	t.Helper()

	h := &harness{
		local:   &fakeLocal{},
		remote:  &fakeRemote{enabled: true},
		backend: &quota.MemoryBackend{},
		clock:   &clock{now: time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)},
	}
	h.gateway = h.open(t, limit, unit)
	return h
}

func (h *harness) open(t *testing.T, limit int, unit core.WindowUnit) *Gateway {
	t.Helper()

	gw, err := New(context.Background(), Options{
		Local:  h.local,
		Remote: h.remote,
		Store: &quota.Store{
			Backend:  h.backend,
			Defaults: quota.Defaults{Limit: limit, WindowUnit: unit, RemoteEnabled: true},
		},
		Policy: &engine.WindowPolicy{Clock: h.clock.Now},
	})
	require.NoError(t, err)
	return gw
}

func (h *harness) stored(t *testing.T) core.QuotaState {
	t.Helper()
	state, err := h.backend.GetQuota(context.Background(), core.DefaultQuotaName)
	require.NoError(t, err)
	require.NotNil(t, state)
	return *state
}

func TestErrorWritesWithinWindow(t *testing.T) {
	const limit = 5
	for n := 0; n <= 8; n++ {
		h := newHarness(t, limit, core.WindowDay)
		for i := 0; i < n; i++ {
			h.gateway.Write(context.Background(), core.SeverityError, "failure")
		}

		want := min(n, limit)
		require.Equal(t, want, h.gateway.Snapshot().EventCount, "n=%d", n)
		require.Equal(t, want, h.stored(t).EventCount, "n=%d", n)
		require.Equal(t, want, h.remote.count("failure"), "n=%d", n)
		require.Equal(t, n, h.local.count("failure"), "n=%d", n)
	}
}

func TestQuotaExceededNoticeOncePerWindow(t *testing.T) {
	h := newHarness(t, 5, core.WindowDay)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.Equal(t, Escalated, h.gateway.Write(ctx, core.SeverityError, "failure"))
	}
	for i := 0; i < 4; i++ {
		require.Equal(t, Suppressed, h.gateway.Write(ctx, core.SeverityError, "failure"))
	}

	require.Equal(t, 5, h.remote.count("failure"))
	require.Equal(t, 1, h.remote.count(QuotaExceededNotice))
	require.Equal(t, 1, h.local.count(QuotaExceededNotice))
	require.Equal(t, 5, h.gateway.Snapshot().EventCount)
	require.True(t, h.stored(t).ExceededNotified)

	h.clock.Advance(24 * time.Hour)
	for i := 0; i < 6; i++ {
		h.gateway.Write(ctx, core.SeverityError, "failure")
	}
	require.Equal(t, 10, h.remote.count("failure"))
	require.Equal(t, 2, h.remote.count(QuotaExceededNotice))
}

func TestWindowResetAfterExpiry(t *testing.T) {
	h := newHarness(t, 2, core.WindowHour)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		h.gateway.Write(ctx, core.SeverityError, "failure")
	}
	require.Equal(t, 2, h.gateway.Snapshot().EventCount)

	h.clock.Advance(time.Hour + time.Second)
	now := h.clock.Now()

	require.Equal(t, Escalated, h.gateway.Write(ctx, core.SeverityError, "after reset"))

	state := h.gateway.Snapshot()
	require.Equal(t, 1, state.EventCount)
	require.Equal(t, now, state.WindowStart)
	require.False(t, state.ExceededNotified)
	require.Equal(t, 1, h.remote.count("after reset"))
	require.Equal(t, state, h.stored(t))
}

func TestNonErrorSeveritiesNeverCount(t *testing.T) {
	h := newHarness(t, 1, core.WindowDay)
	ctx := context.Background()

	for _, severity := range []core.Severity{core.SeverityDebug, core.SeverityInformation, core.SeverityWarning} {
		require.Equal(t, LocalOnly, h.gateway.Write(ctx, severity, "note"))
	}
	require.Equal(t, 0, h.gateway.Snapshot().EventCount)
	require.Equal(t, 3, h.local.count("note"))

	h.gateway.Write(ctx, core.SeverityError, "failure")
	h.gateway.Write(ctx, core.SeverityError, "failure")
	require.Equal(t, 1, h.gateway.Snapshot().EventCount)

	for _, severity := range []core.Severity{core.SeverityDebug, core.SeverityInformation, core.SeverityWarning} {
		require.Equal(t, LocalOnly, h.gateway.Write(ctx, severity, "late note"))
	}
	require.Equal(t, 1, h.gateway.Snapshot().EventCount)
	require.Equal(t, 3, h.local.count("late note"))
	require.Equal(t, 0, h.remote.count("note"))
	require.Equal(t, 0, h.remote.count("late note"))
	require.Equal(t, 1, h.remote.count(QuotaExceededNotice))
}

func TestConcurrentWritesNeverOvershoot(t *testing.T) {
	const limit = 10
	h := newHarness(t, limit, core.WindowDay)

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 4; j++ {
				h.gateway.Write(context.Background(), core.SeverityError, "concurrent")
			}
		}()
	}
	wg.Wait()

	require.Equal(t, limit, h.gateway.Snapshot().EventCount)
	require.Equal(t, limit, h.stored(t).EventCount)
	require.Equal(t, limit, h.remote.count("concurrent"))
	require.Equal(t, 1, h.remote.count(QuotaExceededNotice))
	require.Equal(t, 256, h.local.count("concurrent"))
}

func TestRemoteFailureIsContained(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		h := newHarness(t, 5, core.WindowDay)
		h.remote.err = errors.New("403 forbidden")

		require.Equal(t, Escalated, h.gateway.Write(context.Background(), core.SeverityError, "failure"))
		require.Equal(t, 1, h.gateway.Snapshot().EventCount)
		require.Equal(t, 1, h.remote.total())
		require.Equal(t, 1, h.local.count("remote escalation failed: 403 forbidden"))
	})

	t.Run("Panic", func(t *testing.T) {
		h := newHarness(t, 5, core.WindowDay)
		h.remote.panicMsg = "nil session"

		require.NotPanics(t, func() {
			h.gateway.Write(context.Background(), core.SeverityError, "failure")
		})
		require.Equal(t, 1, h.local.count("remote escalation failed: remote sink panic: nil session"))
	})
}

func TestRemoteDisabledSkipsBookkeeping(t *testing.T) {
	t.Run("SinkDisabled", func(t *testing.T) {
		h := newHarness(t, 5, core.WindowDay)
		h.remote.enabled = false

		require.Equal(t, LocalOnly, h.gateway.Write(context.Background(), core.SeverityError, "failure"))
		require.Equal(t, 0, h.gateway.Snapshot().EventCount)
		require.Equal(t, 0, h.remote.total())
		require.Equal(t, 1, h.local.count("failure"))
	})

	t.Run("MasterSwitchOff", func(t *testing.T) {
		h := newHarness(t, 5, core.WindowDay)
		ctx := context.Background()
		require.NoError(t, h.gateway.SetRemoteEnabled(ctx, false))
		require.False(t, h.stored(t).RemoteEnabled)

		h.clock.Advance(48 * time.Hour)
		start := h.gateway.Snapshot().WindowStart
		require.Equal(t, LocalOnly, h.gateway.Write(ctx, core.SeverityError, "failure"))
		require.Equal(t, 0, h.gateway.Snapshot().EventCount)
		require.Equal(t, start, h.gateway.Snapshot().WindowStart)
		require.Equal(t, 0, h.remote.total())

		require.NoError(t, h.gateway.SetRemoteEnabled(ctx, true))
		require.Equal(t, Escalated, h.gateway.Write(ctx, core.SeverityError, "failure"))
	})
}

func TestStateSurvivesRestart(t *testing.T) {
	h := newHarness(t, 2, core.WindowDay)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		h.gateway.Write(ctx, core.SeverityError, "failure")
	}

	restarted := h.open(t, 50, core.WindowMinute)
	state := restarted.Snapshot()
	require.Equal(t, 2, state.EventCount)
	require.Equal(t, 2, state.Limit)
	require.Equal(t, core.WindowDay, state.WindowUnit)
	require.True(t, state.ExceededNotified)

	require.Equal(t, Suppressed, restarted.Write(ctx, core.SeverityError, "failure"))
	require.Equal(t, 1, h.remote.count(QuotaExceededNotice))
}

type failingBackend struct{}

func (failingBackend) GetQuota(ctx context.Context, name string) (*core.QuotaState, error) {
	return nil, errors.New("locked")
}

func (failingBackend) PutQuota(ctx context.Context, name string, state *core.QuotaState) error {
	return errors.New("locked")
}

func TestPersistFailureKeepsLogging(t *testing.T) {
	local := &fakeLocal{}
	remote := &fakeRemote{enabled: true}
	gw, err := New(context.Background(), Options{
		Local:  local,
		Remote: remote,
		Store:  &quota.Store{Backend: failingBackend{}, Defaults: quota.Defaults{Limit: 2, WindowUnit: core.WindowDay, RemoteEnabled: true}},
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		gw.Write(context.Background(), core.SeverityError, "failure")
	}

	require.Equal(t, 3, local.count("failure"))
	require.Equal(t, 2, remote.count("failure"))
	require.Equal(t, 2, gw.Snapshot().EventCount)
	require.Greater(t, local.total(), 3)
}

func TestResetStartsFreshWindow(t *testing.T) {
	h := newHarness(t, 1, core.WindowDay)
	ctx := context.Background()

	h.gateway.Write(ctx, core.SeverityError, "failure")
	h.gateway.Write(ctx, core.SeverityError, "failure")
	require.True(t, h.gateway.Snapshot().ExceededNotified)

	h.clock.Advance(time.Minute)
	require.NoError(t, h.gateway.Reset(ctx))

	state := h.stored(t)
	require.Equal(t, 0, state.EventCount)
	require.False(t, state.ExceededNotified)
	require.Equal(t, h.clock.Now(), state.WindowStart)

	require.Equal(t, Escalated, h.gateway.Write(ctx, core.SeverityError, "failure"))
}

func TestInvalidWindowUnitSurfaces(t *testing.T) {
	remote := &fakeRemote{enabled: true}
	gw, err := New(context.Background(), Options{
		Remote: remote,
		Store:  &quota.Store{Backend: failingBackend{}, Defaults: quota.Defaults{Limit: 5, WindowUnit: core.WindowDay, RemoteEnabled: true}},
	})
	require.NoError(t, err)
	gw.state.WindowUnit = "week"

	_, err = gw.Escalate(context.Background(), core.SeverityError, "failure")
	require.ErrorIs(t, err, core.ErrInvalidWindowUnit)

	require.Equal(t, LocalOnly, gw.Write(context.Background(), core.SeverityError, "failure"))
	require.Equal(t, 0, remote.total())
}

func TestSharedBackendHonorsAdminChanges(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 5, core.WindowDay)
	admin := h.open(t, 5, core.WindowDay)

	require.Equal(t, Escalated, h.gateway.Write(ctx, core.SeverityError, "failure"))

	require.NoError(t, admin.SetRemoteEnabled(ctx, false))
	require.Equal(t, LocalOnly, h.gateway.Write(ctx, core.SeverityError, "failure"))
	require.False(t, h.stored(t).RemoteEnabled)
	require.Equal(t, 1, h.stored(t).EventCount)
	require.Equal(t, 1, h.remote.count("failure"))

	require.NoError(t, admin.SetRemoteEnabled(ctx, true))
	for i := 0; i < 5; i++ {
		h.gateway.Write(ctx, core.SeverityError, "failure")
	}
	require.True(t, h.stored(t).ExceededNotified)

	h.clock.Advance(time.Minute)
	require.NoError(t, admin.Reset(ctx))
	require.Equal(t, Escalated, h.gateway.Write(ctx, core.SeverityError, "failure"))

	state := h.stored(t)
	require.Equal(t, 1, state.EventCount)
	require.False(t, state.ExceededNotified)
	require.Equal(t, h.clock.Now(), state.WindowStart)
	require.Equal(t, state, admin.Refresh(ctx))
}

func TestSharedBackendNeverOvershoots(t *testing.T) {
	const limit = 7
	h := newHarness(t, limit, core.WindowDay)
	gateways := []*Gateway{h.gateway, h.open(t, limit, core.WindowDay), h.open(t, limit, core.WindowDay)}

	var wg sync.WaitGroup
	for i := 0; i < 48; i++ {
		wg.Add(1)
		go func(gw *Gateway) {
			defer wg.Done()
			for j := 0; j < 3; j++ {
				gw.Write(context.Background(), core.SeverityError, "shared")
			}
		}(gateways[i%len(gateways)])
	}
	wg.Wait()

	require.Equal(t, limit, h.stored(t).EventCount)
	require.Equal(t, limit, h.remote.count("shared"))
	require.Equal(t, 1, h.remote.count(QuotaExceededNotice))
}

func TestNewRequiresStore(t *testing.T) {
	_, err := New(context.Background(), Options{})
	require.Error(t, err)
}

func TestGatewayEmitsMetrics(t *testing.T) {
	collector := telemetrytesting.NewFakeCollector()
	sys, err := telemetry.NewSystem(&telemetry.Config{Enabled: true, Emitter: collector})
	require.NoError(t, err)

	original := observability.TelemetrySystem
	observability.TelemetrySystem = sys
	t.Cleanup(func() { observability.TelemetrySystem = original })

	h := newHarness(t, 1, core.WindowDay)
	h.gateway.Write(context.Background(), core.SeverityError, "failure")
	h.gateway.Write(context.Background(), core.SeverityError, "failure")

	require.Greater(t, collector.CountMetricsByName(metrics.EventsTotal), 0)
	require.Greater(t, collector.CountMetricsByName(metrics.EscalationsTotal), 0)
	require.Greater(t, collector.CountMetricsByName(metrics.QuotaNoticesTotal), 0)
}
