package domain

import (
	"errors"
	"fmt"
	"time"
)

// TokenKind identifies which collection a token belongs to.
type TokenKind string

const (
	TokenKindDaily  TokenKind = "daily"
	TokenKindWeekly TokenKind = "weekly"
)

// Valid reports whether the kind is daily or weekly.
func (k TokenKind) Valid() bool {
	return k == TokenKindDaily || k == TokenKindWeekly
}

// Token is a single-use discount credential.
//
// Used, UsedAt and UsedAtVenue move together from unused to used exactly once.
// ExpiresAt and MintedAt are fixed at mint time.
type Token struct {
	ID          string     `json:"id"`
	Kind        TokenKind  `json:"kind"`
	Used        bool       `json:"used"`
	UsedAt      *time.Time `json:"used_at,omitempty"`
	UsedAtVenue *string    `json:"used_at_venue,omitempty"`
	ExpiresAt   time.Time  `json:"expires_at"`
	MintedAt    time.Time  `json:"minted_at"`
}

var ErrInvalidToken = errors.New("invalid token shape")

// NewToken builds an unused token and validates it.
func NewToken(id string, kind TokenKind, mintedAt, expiresAt time.Time) (Token, error) {
	t := Token{ID: id, Kind: kind, MintedAt: mintedAt, ExpiresAt: expiresAt}
	if err := t.Validate(); err != nil {
		return Token{}, err
	}
	return t, nil
}

// Validate checks the structural invariants of a token.
func (t Token) Validate() error {
	switch {
	case t.ID == "":
		return fmt.Errorf("%w: empty id", ErrInvalidToken)
	case !t.Kind.Valid():
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidToken, t.Kind)
	case t.MintedAt.IsZero() || t.ExpiresAt.IsZero():
		return fmt.Errorf("%w: %s missing timestamps", ErrInvalidToken, t.ID)
	case !t.ExpiresAt.After(t.MintedAt):
		return fmt.Errorf("%w: %s expires before it was minted", ErrInvalidToken, t.ID)
	}
	if t.Used != (t.UsedAt != nil) || t.Used != (t.UsedAtVenue != nil) {
		return fmt.Errorf("%w: %s has partial redemption fields", ErrInvalidToken, t.ID)
	}
	return nil
}

// ExpiredAt reports whether the token's expiry lies before now.
func (t Token) ExpiredAt(now time.Time) bool {
	return t.ExpiresAt.Before(now)
}

// AvailableAt reports whether the token can still be redeemed at now.
func (t Token) AvailableAt(now time.Time) bool {
	return !t.Used && !t.ExpiredAt(now)
}
