package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/loggate/loggate/internal/core"
)

// ErrRemoteDisabled is returned by Capture when no endpoint is configured.
var ErrRemoteDisabled = errors.New("remote telemetry disabled")

// BreakerConfig tunes the circuit breaker in front of the telemetry backend.
type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig trips after a majority of at least five recent
// requests fail and probes again after a minute.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      1,
		Interval:         60 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

// RemoteConfig configures the HTTP telemetry sink.
type RemoteConfig struct {
	Endpoint    string
	DSN         string
	Environment string
	Release     string
	Timeout     time.Duration
	Breaker     BreakerConfig

	// RatePerSecond paces deliveries; zero leaves them unpaced.
	RatePerSecond float64
	Burst         int
}

// Event is the JSON body posted to the telemetry backend.
type Event struct {
	EventID     string    `json:"event_id"`
	Timestamp   time.Time `json:"timestamp"`
	Level       string    `json:"level"`
	Message     string    `json:"message"`
	Logger      string    `json:"logger"`
	Platform    string    `json:"platform"`
	Environment string    `json:"environment,omitempty"`
	Release     string    `json:"release,omitempty"`
}

// HTTPRemote posts events to a telemetry ingest endpoint.
type HTTPRemote struct {
	endpoint    string
	dsn         string
	environment string
	release     string
	client      *http.Client
	breaker     *gobreaker.CircuitBreaker
	pacer       *rate.Limiter
	logger      *logging.Logger
	clock       func() time.Time
}

// NewHTTPRemote builds a remote sink. An empty endpoint yields a sink whose
// IsEnabled reports false.
func NewHTTPRemote(cfg RemoteConfig, logger *logging.Logger) *HTTPRemote {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	breakerCfg := cfg.Breaker
	if breakerCfg == (BreakerConfig{}) {
		breakerCfg = DefaultBreakerConfig()
	}

	r := &HTTPRemote{
		endpoint:    strings.TrimSpace(cfg.Endpoint),
		dsn:         strings.TrimSpace(cfg.DSN),
		environment: cfg.Environment,
		release:     cfg.Release,
		client:      &http.Client{Timeout: timeout},
		logger:      logger,
		clock:       func() time.Time { return time.Now().UTC() },
	}

	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		r.pacer = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}

	r.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "remote-telemetry",
		MaxRequests: breakerCfg.MaxRequests,
		Interval:    breakerCfg.Interval,
		Timeout:     breakerCfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < breakerCfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= breakerCfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if r.logger == nil {
				return
			}
			r.logger.Warn("circuit breaker state changed",
				zap.String("circuit", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return r
}

// IsEnabled reports whether a remote session is usable: an endpoint is
// configured and the breaker is not open.
func (r *HTTPRemote) IsEnabled() bool {
	if r == nil || r.endpoint == "" {
		return false
	}
	return r.breaker.State() != gobreaker.StateOpen
}

// Configured reports whether an endpoint was set, regardless of breaker
// state.
func (r *HTTPRemote) Configured() bool {
	return r != nil && r.endpoint != ""
}

// BreakerState exposes the breaker state for health reporting.
func (r *HTTPRemote) BreakerState() string {
	if r == nil || r.breaker == nil {
		return "disabled"
	}
	return r.breaker.State().String()
}

// Capture delivers one message. Failures count against the breaker.
func (r *HTTPRemote) Capture(ctx context.Context, message string, severity core.Severity) error {
	if r == nil || r.endpoint == "" {
		return ErrRemoteDisabled
	}
	if ctx == nil {
		ctx = context.Background()
	}

	event := Event{
		EventID:     strings.ReplaceAll(uuid.New().String(), "-", ""),
		Timestamp:   r.clock(),
		Level:       remoteLevel(severity),
		Message:     message,
		Logger:      "loggate",
		Platform:    "go",
		Environment: r.environment,
		Release:     r.release,
	}

	if r.pacer != nil {
		if err := r.pacer.Wait(ctx); err != nil {
			return fmt.Errorf("capture remote event: %w", err)
		}
	}

	_, err := r.breaker.Execute(func() (interface{}, error) {
		return nil, r.post(ctx, event)
	})
	if err != nil {
		return fmt.Errorf("capture remote event: %w", err)
	}
	return nil
}

func (r *HTTPRemote) post(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.dsn != "" {
		req.Header.Set("Authorization", "Bearer "+r.dsn)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("telemetry backend returned %s", resp.Status)
	}
	return nil
}

func remoteLevel(severity core.Severity) string {
	switch severity {
	case core.SeverityDebug:
		return "debug"
	case core.SeverityInformation:
		return "info"
	case core.SeverityWarning:
		return "warning"
	default:
		return "error"
	}
}

// NopRemote is a remote sink that is never enabled.
type NopRemote struct{}

func (NopRemote) IsEnabled() bool { return false }

func (NopRemote) Capture(ctx context.Context, message string, severity core.Severity) error {
	return ErrRemoteDisabled
}
