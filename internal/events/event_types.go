package events

import (
	"time"

	"github.com/spec-kit/nightpass/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTokensIssued        EventType = "tokens_issued"
	EventTokenRedeemed       EventType = "token_redeemed"
	EventTokensForfeited     EventType = "tokens_forfeited"
	EventSubscriptionChanged EventType = "subscription_changed"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	AccountID string      `json:"account_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// Issue triggers recorded on TokensIssuedPayload.
const (
	TriggerSchedule = "schedule"
	TriggerUpgrade  = "upgrade"
	TriggerManual   = "manual"
)

// TokensIssuedPayload payload.
type TokensIssuedPayload struct {
	Trigger string         `json:"trigger"`
	Tokens  []domain.Token `json:"tokens"`
}

// TokenRedeemedPayload payload.
type TokenRedeemedPayload struct {
	Token   domain.Token `json:"token"`
	VenueID string       `json:"venue_id"`
}

// TokensForfeitedPayload payload. Reason is "reset", "downgrade" or "manual".
type TokensForfeitedPayload struct {
	Reason string         `json:"reason"`
	Tokens []domain.Token `json:"tokens"`
}

// SubscriptionChangedPayload payload.
type SubscriptionChangedPayload struct {
	OldStatus domain.SubscriptionStatus `json:"old_status"`
	NewStatus domain.SubscriptionStatus `json:"new_status"`
}
