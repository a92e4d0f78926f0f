package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasktracker-api/internal/domain"
	"github.com/phrazzld/tasktracker-api/internal/platform/clock"
	"github.com/phrazzld/tasktracker-api/internal/platform/logger"
	"github.com/phrazzld/tasktracker-api/internal/redact"
	"golang.org/x/sync/errgroup"
)

// Dispatcher defaults
const (
	DefaultMaxConcurrency = 8
	DefaultAttemptTimeout = 10 * time.Second
)

// Registry is the subset of the subscription registry the dispatcher uses.
type Registry interface {
	ListActive(ctx context.Context, tenantID string) ([]*domain.Subscriber, error)
	MarkUsed(ctx context.Context, id uuid.UUID, at time.Time) error
	Deactivate(ctx context.Context, endpoint string) error
}

// AttemptResult reports one subscriber's delivery attempt.
type AttemptResult struct {
	SubscriberID uuid.UUID `json:"subscriptionId"`
	Endpoint     string    `json:"endpoint"`
	Success      bool      `json:"success"`
	Outcome      Outcome   `json:"outcome"`
	StatusCode   int       `json:"statusCode,omitempty"`
	Error        string    `json:"error,omitempty"`
}

// Result aggregates a dispatch.
type Result struct {
	Attempted int             `json:"attempted"`
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
	Results   []AttemptResult `json:"results"`
}

// DispatcherConfig tunes fan-out.
type DispatcherConfig struct {
	// TenantID restricts delivery to one tenant; empty means every tenant.
	TenantID       string
	MaxConcurrency int
	AttemptTimeout time.Duration
}

// Dispatcher fans a payload out to every active subscriber.
type Dispatcher struct {
	registry Registry
	gateway  Gateway
	clock    clock.Clock
	cfg      DispatcherConfig
	logger   *slog.Logger
}

// NewDispatcher creates a Dispatcher. Zero config values take defaults.
func NewDispatcher(
	registry Registry,
	gateway Gateway,
	clk clock.Clock,
	cfg DispatcherConfig,
	logger *slog.Logger,
) *Dispatcher {
	if registry == nil || gateway == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("registry and gateway cannot be nil")
	}
	if clk == nil {
		clk = clock.New()
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DefaultMaxConcurrency
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = DefaultAttemptTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		registry: registry,
		gateway:  gateway,
		clock:    clk,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "dispatcher")),
	}
}

// Dispatch delivers p to every active subscriber. The error is non-nil only
// when the registry cannot be read; delivery failures are counted in Result.
func (d *Dispatcher) Dispatch(ctx context.Context, p Payload) (Result, error) {
	log := logger.FromContextOrDefault(ctx, d.logger).With(slog.String("tag", p.Tag))

	p = p.WithDefaults()
	message, err := json.Marshal(p)
	if err != nil {
		return Result{}, fmt.Errorf("failed to encode payload: %w", err)
	}

	subs, err := d.registry.ListActive(ctx, d.cfg.TenantID)
	if err != nil {
		log.Error("failed to load subscribers", slog.String("error", redact.Error(err)))
		return Result{}, fmt.Errorf("failed to load subscribers: %w", err)
	}
	if len(subs) == 0 {
		log.Debug("no active subscribers")
		return Result{Results: []AttemptResult{}}, nil
	}

	results := make([]AttemptResult, len(subs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.MaxConcurrency)
	for i, sub := range subs {
		g.Go(func() error {
			results[i] = d.attempt(gctx, sub, message)
			return nil
		})
	}
	_ = g.Wait()

	res := Result{Attempted: len(subs), Results: results}
	for _, r := range results {
		if r.Success {
			res.Succeeded++
		} else {
			res.Failed++
		}
	}

	log.Info("notification dispatched",
		slog.Int("attempted", res.Attempted),
		slog.Int("succeeded", res.Succeeded),
		slog.Int("failed", res.Failed))
	return res, nil
}

// attempt sends to one subscriber and applies the registry side effect.
func (d *Dispatcher) attempt(ctx context.Context, sub *domain.Subscriber, message []byte) AttemptResult {
	log := logger.FromContextOrDefault(ctx, d.logger)
	endpoint := redact.Endpoint(sub.Endpoint)
	result := AttemptResult{SubscriberID: sub.ID, Endpoint: endpoint}

	attemptCtx, cancel := context.WithTimeout(ctx, d.cfg.AttemptTimeout)
	sent, err := d.gateway.Send(attemptCtx, sub, message)
	cancel()

	result.StatusCode = sent.StatusCode
	result.Outcome = sent.Outcome
	if err == nil && sent.Outcome == OutcomeDelivered {
		result.Success = true
		if err := d.registry.MarkUsed(ctx, sub.ID, d.clock.Now().UTC()); err != nil {
			log.Warn("failed to record subscriber use",
				slog.String("error", redact.Error(err)),
				slog.String("subscriber_id", sub.ID.String()))
		}
		return result
	}

	if result.Outcome == "" || result.Outcome == OutcomeDelivered {
		result.Outcome = OutcomeTransient
	}
	if err != nil {
		result.Error = redact.Error(err)
	}

	switch result.Outcome {
	case OutcomePermanent:
		log.Info("deactivating subscriber with gone endpoint",
			slog.String("subscriber_id", sub.ID.String()),
			slog.String("endpoint", endpoint),
			slog.Int("status", sent.StatusCode))
		if err := d.registry.Deactivate(ctx, sub.Endpoint); err != nil {
			log.Error("failed to deactivate subscriber",
				slog.String("error", redact.Error(err)),
				slog.String("subscriber_id", sub.ID.String()))
		}
	default:
		log.Warn("transient delivery failure",
			slog.String("subscriber_id", sub.ID.String()),
			slog.String("endpoint", endpoint),
			slog.Int("status", sent.StatusCode),
			slog.String("error", result.Error))
	}
	return result
}
