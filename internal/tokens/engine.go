package tokens

import (
	"strings"
	"time"

	"github.com/spec-kit/nightpass/internal/domain"
)

// Snapshot is the read-side view handed to clients.
type Snapshot struct {
	Daily  []domain.Token `json:"daily"`
	Weekly []domain.Token `json:"weekly"`
}

// Counts holds the number of available tokens per kind.
type Counts struct {
	Daily  int `json:"daily"`
	Weekly int `json:"weekly"`
}

// ResetOutcome describes what a check-and-reset pass changed.
type ResetOutcome struct {
	DailyReset  bool
	WeeklyReset bool
	Minted      []domain.Token
	// Discarded holds unused tokens dropped by the pass.
	Discarded []domain.Token
}

// Changed reports whether the pass produced a new pool.
func (o ResetOutcome) Changed() bool {
	return o.DailyReset || o.WeeklyReset || len(o.Discarded) > 0
}

// Engine applies token lifecycle transitions to pool values.
// It never mutates its inputs: every transition returns a new pool.
type Engine struct {
	schedule Schedule
	issuer   *Issuer
}

// NewEngine wires a schedule and issuer together.
func NewEngine(schedule Schedule, issuer *Issuer) *Engine {
	return &Engine{schedule: schedule, issuer: issuer}
}

// Schedule exposes the boundary rules used by the engine.
func (e *Engine) Schedule() Schedule {
	return e.schedule
}

// CheckAndReset reissues every collection whose boundary has been crossed.
// Free accounts never mint; any leftover tokens are dropped.
func (e *Engine) CheckAndReset(pool domain.TokenPool, status domain.SubscriptionStatus, now time.Time) (domain.TokenPool, ResetOutcome) {
	var out ResetOutcome
	if !status.IsPremium() {
		if pool.IsEmpty() {
			return pool.Clone(), out
		}
		out.Discarded = unused(all(pool))
		return domain.TokenPool{}, out
	}

	next := pool.Clone()
	if e.schedule.IsDailyResetDue(now, pool.LastDailyReset) {
		out.DailyReset = true
		out.Discarded = append(out.Discarded, unused(pool.Daily)...)
		next.Daily = e.issuer.MintDaily(now)
		next.LastDailyReset = now
		out.Minted = append(out.Minted, next.Daily...)
	}
	if e.schedule.IsWeeklyResetDue(now, pool.LastWeeklyReset) {
		out.WeeklyReset = true
		out.Discarded = append(out.Discarded, unused(pool.Weekly)...)
		next.Weekly = e.issuer.MintWeekly(now)
		next.LastWeeklyReset = now
		out.Minted = append(out.Minted, next.Weekly...)
	}
	return next, out
}

// Upgrade mints both collections at now, replacing whatever the pool held.
func (e *Engine) Upgrade(pool domain.TokenPool, now time.Time) (domain.TokenPool, ResetOutcome) {
	out := ResetOutcome{
		DailyReset:  true,
		WeeklyReset: true,
		Discarded:   unused(all(pool)),
	}
	next := domain.TokenPool{
		Daily:           e.issuer.MintDaily(now),
		Weekly:          e.issuer.MintWeekly(now),
		LastDailyReset:  now,
		LastWeeklyReset: now,
	}
	out.Minted = append(append(out.Minted, next.Daily...), next.Weekly...)
	return next, out
}

// Downgrade clears both collections and returns the unused tokens that were forfeited.
func (e *Engine) Downgrade(pool domain.TokenPool) (domain.TokenPool, []domain.Token) {
	return domain.TokenPool{}, unused(all(pool))
}

// Reinitialize is the explicit re-mint used by developer tooling.
func (e *Engine) Reinitialize(pool domain.TokenPool, status domain.SubscriptionStatus, now time.Time) (domain.TokenPool, ResetOutcome, error) {
	if !status.IsPremium() {
		return pool, ResetOutcome{}, ErrSubscriptionRequired
	}
	next, out := e.Upgrade(pool, now)
	return next, out, nil
}

// Redeem marks tokenID as used at venueID. Lookup scans daily then weekly.
// On failure the returned pool is the unchanged input.
func (e *Engine) Redeem(pool domain.TokenPool, status domain.SubscriptionStatus, tokenID, venueID string, now time.Time) (domain.TokenPool, domain.Token, error) {
	if !status.IsPremium() {
		return pool, domain.Token{}, ErrSubscriptionRequired
	}
	venueID = strings.TrimSpace(venueID)
	if venueID == "" {
		return pool, domain.Token{}, ErrVenueRequired
	}

	next := pool.Clone()
	target := find(next, tokenID)
	if target == nil {
		return pool, domain.Token{}, ErrTokenNotFound
	}
	if target.Used {
		return pool, *target, ErrTokenAlreadyUsed
	}
	if target.ExpiredAt(now) {
		return pool, *target, ErrTokenExpired
	}

	usedAt := now
	target.Used = true
	target.UsedAt = &usedAt
	target.UsedAtVenue = &venueID
	return next, *target, nil
}

// Available lists unused, unexpired tokens. Free accounts always see an empty snapshot.
func (e *Engine) Available(pool domain.TokenPool, status domain.SubscriptionStatus, now time.Time) Snapshot {
	snap := Snapshot{Daily: []domain.Token{}, Weekly: []domain.Token{}}
	if !status.IsPremium() {
		return snap
	}
	for _, t := range pool.Daily {
		if t.AvailableAt(now) {
			snap.Daily = append(snap.Daily, t)
		}
	}
	for _, t := range pool.Weekly {
		if t.AvailableAt(now) {
			snap.Weekly = append(snap.Weekly, t)
		}
	}
	return snap
}

// Counts returns badge counts for the available tokens.
func (e *Engine) Counts(pool domain.TokenPool, status domain.SubscriptionStatus, now time.Time) Counts {
	snap := e.Available(pool, status, now)
	return Counts{Daily: len(snap.Daily), Weekly: len(snap.Weekly)}
}

func find(pool domain.TokenPool, id string) *domain.Token {
	for i := range pool.Daily {
		if pool.Daily[i].ID == id {
			return &pool.Daily[i]
		}
	}
	for i := range pool.Weekly {
		if pool.Weekly[i].ID == id {
			return &pool.Weekly[i]
		}
	}
	return nil
}

func all(pool domain.TokenPool) []domain.Token {
	out := make([]domain.Token, 0, len(pool.Daily)+len(pool.Weekly))
	out = append(out, pool.Daily...)
	return append(out, pool.Weekly...)
}

func unused(tokens []domain.Token) []domain.Token {
	out := make([]domain.Token, 0, len(tokens))
	for _, t := range tokens {
		if !t.Used {
			out = append(out, t)
		}
	}
	return out
}
