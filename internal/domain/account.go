package domain

import "time"

// SubscriptionStatus represents the billing tier of an account.
type SubscriptionStatus string

const (
	SubscriptionFree    SubscriptionStatus = "free"
	SubscriptionPremium SubscriptionStatus = "premium"
)

// Valid reports whether the status is one of the known tiers.
func (s SubscriptionStatus) Valid() bool {
	return s == SubscriptionFree || s == SubscriptionPremium
}

// IsPremium reports whether token issuance is allowed for the status.
func (s SubscriptionStatus) IsPremium() bool {
	return s == SubscriptionPremium
}

// Account is the domain model for a consumer who holds a token pool.
type Account struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Status       SubscriptionStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
