package notification

import (
	"context"

	"github.com/phrazzld/tasktracker-api/internal/domain"
)

// Outcome classifies a single delivery attempt.
type Outcome string

// Delivery outcomes
const (
	// OutcomeDelivered means the push service accepted the message.
	OutcomeDelivered Outcome = "delivered"
	// OutcomeTransient covers timeouts, rate limits and server errors; the
	// subscriber stays active.
	OutcomeTransient Outcome = "transient"
	// OutcomePermanent means the endpoint is gone (404/410); the subscriber
	// is deactivated.
	OutcomePermanent Outcome = "permanent"
)

// SendResult is what a Gateway observed for one attempt.
type SendResult struct {
	Outcome    Outcome
	StatusCode int
}

// Gateway delivers an encoded payload to one subscriber. A non-nil error
// always comes with OutcomeTransient or OutcomePermanent.
type Gateway interface {
	Send(ctx context.Context, sub *domain.Subscriber, message []byte) (SendResult, error)
}

// GatewayFunc adapts a function to the Gateway interface.
type GatewayFunc func(ctx context.Context, sub *domain.Subscriber, message []byte) (SendResult, error)

// Send implements Gateway.
func (f GatewayFunc) Send(ctx context.Context, sub *domain.Subscriber, message []byte) (SendResult, error) {
	return f(ctx, sub, message)
}
