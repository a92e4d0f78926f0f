package notification

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/phrazzld/tasktracker-api/internal/config"
	"github.com/phrazzld/tasktracker-api/internal/domain"
	"github.com/phrazzld/tasktracker-api/internal/redact"
)

// ErrPushDisabled is returned by the disabled gateway used when no VAPID
// keys are configured.
var ErrPushDisabled = errors.New("web push is not configured")

// WebPushGateway sends encrypted Web Push messages signed with VAPID.
type WebPushGateway struct {
	cfg    config.PushConfig
	client *http.Client
	logger *slog.Logger
}

// NewWebPushGateway creates a gateway. client may be nil to use a default
// HTTP client; per-attempt deadlines come from the caller's context.
func NewWebPushGateway(cfg config.PushConfig, client *http.Client, logger *slog.Logger) (*WebPushGateway, error) {
	if !cfg.PushEnabled() {
		return nil, ErrPushDisabled
	}
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WebPushGateway{
		cfg:    cfg,
		client: client,
		logger: logger.With(slog.String("component", "webpush_gateway")),
	}, nil
}

var _ Gateway = (*WebPushGateway)(nil)

// Send implements Gateway.
func (g *WebPushGateway) Send(ctx context.Context, sub *domain.Subscriber, message []byte) (SendResult, error) {
	resp, err := webpush.SendNotificationWithContext(ctx, message, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			Auth:   sub.Keys.Auth,
			P256dh: sub.Keys.P256dh,
		},
	}, &webpush.Options{
		HTTPClient:      g.client,
		Subscriber:      g.cfg.Subject,
		TTL:             g.cfg.TTLSeconds,
		Urgency:         webpush.UrgencyHigh,
		VAPIDPublicKey:  g.cfg.VAPIDPublicKey,
		VAPIDPrivateKey: g.cfg.VAPIDPrivateKey,
	})
	if err != nil {
		return SendResult{Outcome: OutcomeTransient}, fmt.Errorf("push request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	result := SendResult{Outcome: ClassifyStatus(resp.StatusCode), StatusCode: resp.StatusCode}
	if result.Outcome == OutcomeDelivered {
		return result, nil
	}

	g.logger.Debug("push service rejected message",
		slog.Int("status", resp.StatusCode),
		slog.String("outcome", string(result.Outcome)),
		slog.String("endpoint", redact.Endpoint(sub.Endpoint)))
	return result, fmt.Errorf("push service returned %d", resp.StatusCode)
}

// ClassifyStatus maps a push service status code to an Outcome.
func ClassifyStatus(status int) Outcome {
	switch {
	case status >= 200 && status < 300:
		return OutcomeDelivered
	case status == http.StatusNotFound, status == http.StatusGone:
		return OutcomePermanent
	default:
		return OutcomeTransient
	}
}

// DisabledGateway fails every attempt transiently with ErrPushDisabled.
func DisabledGateway() Gateway {
	return GatewayFunc(func(context.Context, *domain.Subscriber, []byte) (SendResult, error) {
		return SendResult{Outcome: OutcomeTransient}, ErrPushDisabled
	})
}

// GenerateVAPIDKeys returns a new base64url VAPID key pair.
func GenerateVAPIDKeys() (publicKey, privateKey string, err error) {
	privateKey, publicKey, err = webpush.GenerateVAPIDKeys()
	if err != nil {
		return "", "", fmt.Errorf("failed to generate VAPID keys: %w", err)
	}
	return publicKey, privateKey, nil
}
