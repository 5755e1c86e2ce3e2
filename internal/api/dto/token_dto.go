package dto

import (
	"time"

	"github.com/spec-kit/nightpass/internal/domain"
	"github.com/spec-kit/nightpass/internal/tokens"
)

// RedeemRequest payload for POST /tokens/redeem.
type RedeemRequest struct {
	TokenID string `json:"token_id"`
	VenueID string `json:"venue_id"`
}

// PoolResponse is what the wallet screen renders.
type PoolResponse struct {
	SubscriptionStatus domain.SubscriptionStatus `json:"subscription_status"`
	Daily              []domain.Token            `json:"daily"`
	Weekly             []domain.Token            `json:"weekly"`
	Counts             tokens.Counts             `json:"counts"`
	NextDailyReset     *time.Time                `json:"next_daily_reset,omitempty"`
	NextWeeklyReset    *time.Time                `json:"next_weekly_reset,omitempty"`
}

// CancelResponse reports the downgraded state and what was lost.
type CancelResponse struct {
	PoolResponse
	Forfeited []domain.Token `json:"forfeited"`
}

// LedgerEntryResponse is one history row.
type LedgerEntryResponse struct {
	ID         string              `json:"id"`
	TokenID    string              `json:"token_id"`
	Kind       domain.TokenKind    `json:"kind"`
	Action     domain.LedgerAction `json:"action"`
	VenueID    *string             `json:"venue_id,omitempty"`
	Reason     string              `json:"reason,omitempty"`
	OccurredAt time.Time           `json:"occurred_at"`
}

// NewLedgerResponse maps ledger rows, never returning nil.
func NewLedgerResponse(entries []domain.LedgerEntry) []LedgerEntryResponse {
	out := make([]LedgerEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, LedgerEntryResponse{
			ID:         e.ID,
			TokenID:    e.TokenID,
			Kind:       e.Kind,
			Action:     e.Action,
			VenueID:    e.VenueID,
			Reason:     e.Reason,
			OccurredAt: e.OccurredAt,
		})
	}
	return out
}
