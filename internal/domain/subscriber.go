package domain

import (
	"net/url"
	"time"

	"github.com/google/uuid"
)

// DefaultSubscriberTenant is the tenant assigned to subscriptions made without a user id.
const DefaultSubscriberTenant = "anonymous"

// SubscriptionKeys holds the client's Web Push encryption material.
type SubscriptionKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// Subscriber is a push-capable endpoint registered by a client.
// Subscribers are never physically deleted; Active flips to false instead.
type Subscriber struct {
	ID         uuid.UUID        `json:"id"`
	Endpoint   string           `json:"endpoint"`
	Keys       SubscriptionKeys `json:"keys"`
	TenantID   string           `json:"user_id"`
	Active     bool             `json:"is_active"`
	CreatedAt  time.Time        `json:"created_at"`
	LastUsedAt time.Time        `json:"last_used_at"`
}

// NewSubscriber creates an active Subscriber. Returns an error if validation fails.
func NewSubscriber(endpoint string, keys SubscriptionKeys, tenantID string) (*Subscriber, error) {
	if tenantID == "" {
		tenantID = DefaultSubscriberTenant
	}
	now := time.Now().UTC()
	sub := &Subscriber{
		ID:         uuid.New(),
		Endpoint:   endpoint,
		Keys:       keys,
		TenantID:   tenantID,
		Active:     true,
		CreatedAt:  now,
		LastUsedAt: now,
	}

	if err := sub.Validate(); err != nil {
		return nil, err
	}
	return sub, nil
}

// Validate checks if the Subscriber has valid data.
func (s *Subscriber) Validate() error {
	if s.ID == uuid.Nil {
		return NewValidationError("id", "cannot be empty", ErrInvalidID)
	}
	if s.Endpoint == "" {
		return NewValidationError("endpoint", "cannot be empty", ErrEmptyContent)
	}
	u, err := url.Parse(s.Endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return NewValidationError("endpoint", "must be an absolute URL", ErrInvalidFormat)
	}
	if s.Keys.P256dh == "" || s.Keys.Auth == "" {
		return NewValidationError("keys", "p256dh and auth are required", ErrEmptyContent)
	}
	return nil
}
