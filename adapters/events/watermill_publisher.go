// Package events publishes authentication events over Watermill so other
// services (notification fan-out, analytics) can react to logins and
// identity reconciliation without coupling to this process.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/cdecaire/desperse-public-sub002/ports"
)

const (
	// LoginTopic carries successful wallet login events.
	LoginTopic = "auth.login"

	// ReconciliationTopic carries identity-marker upgrade events.
	ReconciliationTopic = "identity.reconcile"
)

// LoginEvent announces a successful wallet login.
type LoginEvent struct {
	UserID   string    `json:"user_id"`
	Wallet   string    `json:"wallet"`
	LoggedAt time.Time `json:"logged_at"`
}

// ReconciliationEvent announces that a user's locally synthesized
// identity marker was upgraded to a provider-backed one.
type ReconciliationEvent struct {
	UserID string `json:"user_id"`
	Wallet string `json:"wallet"`
	Marker string `json:"marker"`
}

// WatermillPublisher implements ports.EventPublisher on a Watermill
// message publisher.
type WatermillPublisher struct {
	publisher message.Publisher
}

// NewWatermillPublisher creates a new Watermill-backed publisher.
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{publisher: publisher}
}

// PublishLogin publishes a login event.
func (p *WatermillPublisher) PublishLogin(ctx context.Context, userID, wallet string) error {
	return p.publish(LoginTopic, LoginEvent{
		UserID:   userID,
		Wallet:   wallet,
		LoggedAt: time.Now().UTC(),
	})
}

// PublishReconciliation publishes an identity reconciliation event.
func (p *WatermillPublisher) PublishReconciliation(ctx context.Context, userID, wallet, marker string) error {
	return p.publish(ReconciliationTopic, ReconciliationEvent{
		UserID: userID,
		Wallet: wallet,
		Marker: marker,
	})
}

func (p *WatermillPublisher) publish(topic string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(uuid.New().String(), payload)
	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}
