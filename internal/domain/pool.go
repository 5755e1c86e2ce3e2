package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// TokenPool holds the daily and weekly collections owned by a single account.
type TokenPool struct {
	Daily           []Token   `json:"daily"`
	Weekly          []Token   `json:"weekly"`
	LastDailyReset  time.Time `json:"last_daily_reset"`
	LastWeeklyReset time.Time `json:"last_weekly_reset"`
}

// Clone returns a deep copy so transitions never alias the caller's slices.
func (p TokenPool) Clone() TokenPool {
	return TokenPool{
		Daily:           cloneTokens(p.Daily),
		Weekly:          cloneTokens(p.Weekly),
		LastDailyReset:  p.LastDailyReset,
		LastWeeklyReset: p.LastWeeklyReset,
	}
}

// IsEmpty reports whether neither collection holds a token.
func (p TokenPool) IsEmpty() bool {
	return len(p.Daily) == 0 && len(p.Weekly) == 0
}

// Validate checks every token and that each sits in the matching collection.
func (p TokenPool) Validate() error {
	seen := make(map[string]struct{}, len(p.Daily)+len(p.Weekly))
	check := func(tokens []Token, kind TokenKind) error {
		for _, t := range tokens {
			if err := t.Validate(); err != nil {
				return err
			}
			if t.Kind != kind {
				return fmt.Errorf("%w: %s stored in %s collection", ErrInvalidToken, t.ID, kind)
			}
			if _, dup := seen[t.ID]; dup {
				return fmt.Errorf("%w: duplicate id %s", ErrInvalidToken, t.ID)
			}
			seen[t.ID] = struct{}{}
		}
		return nil
	}
	if err := check(p.Daily, TokenKindDaily); err != nil {
		return err
	}
	return check(p.Weekly, TokenKindWeekly)
}

// EncodePool serializes a pool for the persistence boundary.
func EncodePool(p TokenPool) ([]byte, error) {
	if p.Daily == nil {
		p.Daily = []Token{}
	}
	if p.Weekly == nil {
		p.Weekly = []Token{}
	}
	return json.Marshal(p)
}

// DecodePool parses and validates a serialized pool.
func DecodePool(data []byte) (TokenPool, error) {
	var p TokenPool
	if len(data) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return TokenPool{}, fmt.Errorf("decode pool: %w", err)
	}
	if err := p.Validate(); err != nil {
		return TokenPool{}, err
	}
	return p, nil
}

func cloneTokens(in []Token) []Token {
	if in == nil {
		return nil
	}
	out := make([]Token, len(in))
	for i, t := range in {
		out[i] = t
		if t.UsedAt != nil {
			at := *t.UsedAt
			out[i].UsedAt = &at
		}
		if t.UsedAtVenue != nil {
			venue := *t.UsedAtVenue
			out[i].UsedAtVenue = &venue
		}
	}
	return out
}
