package domain

import "time"

// LedgerAction enumerates the history entries kept outside the pool.
type LedgerAction string

const (
	LedgerActionIssued    LedgerAction = "issued"
	LedgerActionRedeemed  LedgerAction = "redeemed"
	LedgerActionForfeited LedgerAction = "forfeited"
)

// LedgerEntry is an append-only record of a token lifecycle step.
type LedgerEntry struct {
	ID         string
	AccountID  string
	TokenID    string
	Kind       TokenKind
	Action     LedgerAction
	VenueID    *string
	Reason     string
	OccurredAt time.Time
}
