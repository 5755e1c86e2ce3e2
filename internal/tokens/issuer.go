package tokens

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/nightpass/internal/domain"
)

const (
	DefaultDailyCount  = 4
	DefaultWeeklyCount = 1
)

// IDGenerator assigns ids to freshly minted tokens.
type IDGenerator func(kind domain.TokenKind, index int) string

// IssuerConfig controls pool sizes and id assignment.
type IssuerConfig struct {
	DailyCount  int
	WeeklyCount int
	NewID       IDGenerator
}

// Issuer mints full collections of unused tokens.
type Issuer struct {
	schedule    Schedule
	dailyCount  int
	weeklyCount int
	newID       IDGenerator
}

// NewIssuer builds an issuer, defaulting unset counts and the id generator.
func NewIssuer(schedule Schedule, cfg IssuerConfig) *Issuer {
	if cfg.DailyCount <= 0 {
		cfg.DailyCount = DefaultDailyCount
	}
	if cfg.WeeklyCount <= 0 {
		cfg.WeeklyCount = DefaultWeeklyCount
	}
	if cfg.NewID == nil {
		cfg.NewID = func(domain.TokenKind, int) string { return uuid.NewString() }
	}
	return &Issuer{
		schedule:    schedule,
		dailyCount:  cfg.DailyCount,
		weeklyCount: cfg.WeeklyCount,
		newID:       cfg.NewID,
	}
}

// MintDaily returns the configured number of daily tokens expiring at the next boundary.
func (i *Issuer) MintDaily(now time.Time) []domain.Token {
	return i.mint(domain.TokenKindDaily, i.dailyCount, now, i.schedule.DailyExpiry(now))
}

// MintWeekly returns the configured number of weekly tokens expiring at the upcoming Monday boundary.
func (i *Issuer) MintWeekly(now time.Time) []domain.Token {
	return i.mint(domain.TokenKindWeekly, i.weeklyCount, now, i.schedule.WeeklyExpiry(now))
}

func (i *Issuer) mint(kind domain.TokenKind, count int, now, expiresAt time.Time) []domain.Token {
	out := make([]domain.Token, 0, count)
	for n := 1; n <= count; n++ {
		out = append(out, domain.Token{
			ID:        i.newID(kind, n),
			Kind:      kind,
			MintedAt:  now,
			ExpiresAt: expiresAt,
		})
	}
	return out
}
