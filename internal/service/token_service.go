package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/spec-kit/nightpass/internal/domain"
	"github.com/spec-kit/nightpass/internal/events"
	"github.com/spec-kit/nightpass/internal/lock"
	"github.com/spec-kit/nightpass/internal/observability"
	"github.com/spec-kit/nightpass/internal/repository"
	"github.com/spec-kit/nightpass/internal/tokens"
	apperrors "github.com/spec-kit/nightpass/pkg/util/errorutil"
)

// Forfeit reasons recorded on events and metrics.
const (
	ForfeitReset     = "reset"
	ForfeitDowngrade = "downgrade"
	ForfeitManual    = "manual"
)

// TokenService coordinates the token lifecycle for one account at a time.
// Every operation runs load → transition → save inside the account lock.
type TokenService struct {
	engine     *tokens.Engine
	accounts   repository.AccountRepository
	pools      repository.PoolRepository
	locker     lock.Locker
	clock      clockwork.Clock
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// TokenDependencies bundles collaborators for the token service.
type TokenDependencies struct {
	Engine      *tokens.Engine
	AccountRepo repository.AccountRepository
	PoolRepo    repository.PoolRepository
	Locker      lock.Locker
	Clock       clockwork.Clock
	Dispatcher  events.Dispatcher
	Metrics     *observability.Metrics
	Logger      *zap.Logger
}

// PoolView is what clients render: available tokens, badge counts and the next boundaries.
type PoolView struct {
	Status          domain.SubscriptionStatus
	Tokens          tokens.Snapshot
	Counts          tokens.Counts
	NextDailyReset  *time.Time
	NextWeeklyReset *time.Time
}

// CancelResult reports the state after a downgrade and what was forfeited.
type CancelResult struct {
	View      *PoolView
	Forfeited []domain.Token
}

// NewTokenService constructs the service.
func NewTokenService(deps TokenDependencies) *TokenService {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Locker == nil {
		deps.Locker = lock.NewLocalLocker()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &TokenService{
		engine:     deps.Engine,
		accounts:   deps.AccountRepo,
		pools:      deps.PoolRepo,
		locker:     deps.Locker,
		clock:      deps.Clock,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
	}
}

// Pool runs the lazy reset check and returns the account's available tokens.
func (s *TokenService) Pool(ctx context.Context, accountID string) (*PoolView, error) {
	var view *PoolView
	err := s.withAccount(ctx, accountID, func(account *domain.Account, pool domain.TokenPool) error {
		now := s.clock.Now()
		next, outcome := s.engine.CheckAndReset(pool, account.Status, now)
		if outcome.Changed() {
			if err := s.pools.Save(ctx, accountID, next); err != nil {
				return apperrors.NewInternalError(err)
			}
			s.logger.Info("token pool reset",
				zap.String("account_id", accountID),
				zap.Bool("daily", outcome.DailyReset),
				zap.Bool("weekly", outcome.WeeklyReset),
				zap.Int("discarded", len(outcome.Discarded)))
			s.announceForfeit(ctx, accountID, ForfeitReset, outcome.Discarded, now)
			s.announceIssue(ctx, accountID, events.TriggerSchedule, outcome.Minted, now)
		}
		view = s.view(account.Status, next, now)
		return nil
	})
	return view, err
}

// Counts returns badge counts after the lazy reset check.
func (s *TokenService) Counts(ctx context.Context, accountID string) (tokens.Counts, error) {
	view, err := s.Pool(ctx, accountID)
	if err != nil {
		return tokens.Counts{}, err
	}
	return view.Counts, nil
}

// Redeem marks a token used at a venue. It does not run the reset check.
func (s *TokenService) Redeem(ctx context.Context, accountID, tokenID, venueID string) (*domain.Token, error) {
	var redeemed domain.Token
	err := s.withAccount(ctx, accountID, func(account *domain.Account, pool domain.TokenPool) error {
		now := s.clock.Now()
		next, tok, err := s.engine.Redeem(pool, account.Status, tokenID, venueID, now)
		if err != nil {
			mapped := mapEngineError(err, tokenID)
			s.metrics.RecordRedemption(apperrors.ToDomainError(mapped).Code)
			s.logger.Info("redemption rejected",
				zap.String("account_id", accountID),
				zap.String("token_id", tokenID),
				zap.Error(err))
			return mapped
		}
		if err := s.pools.Save(ctx, accountID, next); err != nil {
			s.metrics.RecordRedemption("INTERNAL_ERROR")
			return apperrors.NewInternalError(err)
		}
		redeemed = tok
		s.metrics.RecordRedemption("ok")
		s.logger.Info("token redeemed",
			zap.String("account_id", accountID),
			zap.String("token_id", tok.ID),
			zap.String("kind", string(tok.Kind)),
			zap.String("venue_id", venueID))
		s.publish(ctx, accountID, events.EventTokenRedeemed, now, events.TokenRedeemedPayload{Token: tok, VenueID: *tok.UsedAtVenue})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &redeemed, nil
}

// Status returns the account's subscription status.
func (s *TokenService) Status(ctx context.Context, accountID string) (domain.SubscriptionStatus, error) {
	account, err := s.loadAccount(ctx, accountID)
	if err != nil {
		return "", err
	}
	return account.Status, nil
}

// Upgrade moves a free account to premium and mints both collections immediately.
// Upgrading a premium account only runs the regular reset check.
func (s *TokenService) Upgrade(ctx context.Context, accountID string) (*PoolView, error) {
	var view *PoolView
	upgraded := false
	err := s.withAccount(ctx, accountID, func(account *domain.Account, pool domain.TokenPool) error {
		if account.Status.IsPremium() {
			return nil
		}
		now := s.clock.Now()
		next, outcome := s.engine.Upgrade(pool, now)
		if err := s.pools.SaveWithStatus(ctx, accountID, domain.SubscriptionPremium, next); err != nil {
			return apperrors.NewInternalError(err)
		}
		upgraded = true
		s.logger.Info("subscription upgraded", zap.String("account_id", accountID))
		s.publish(ctx, accountID, events.EventSubscriptionChanged, now, events.SubscriptionChangedPayload{
			OldStatus: account.Status,
			NewStatus: domain.SubscriptionPremium,
		})
		s.announceForfeit(ctx, accountID, ForfeitReset, outcome.Discarded, now)
		s.announceIssue(ctx, accountID, events.TriggerUpgrade, outcome.Minted, now)
		view = s.view(domain.SubscriptionPremium, next, now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !upgraded {
		return s.Pool(ctx, accountID)
	}
	return view, nil
}

// Cancel moves a premium account to free and forfeits every unused token.
func (s *TokenService) Cancel(ctx context.Context, accountID string) (*CancelResult, error) {
	result := &CancelResult{Forfeited: []domain.Token{}}
	err := s.withAccount(ctx, accountID, func(account *domain.Account, pool domain.TokenPool) error {
		now := s.clock.Now()
		if !account.Status.IsPremium() && pool.IsEmpty() {
			result.View = s.view(account.Status, pool, now)
			return nil
		}
		next, forfeited := s.engine.Downgrade(pool)
		if err := s.pools.SaveWithStatus(ctx, accountID, domain.SubscriptionFree, next); err != nil {
			return apperrors.NewInternalError(err)
		}
		s.logger.Info("subscription cancelled",
			zap.String("account_id", accountID),
			zap.Int("forfeited", len(forfeited)))
		if account.Status != domain.SubscriptionFree {
			s.publish(ctx, accountID, events.EventSubscriptionChanged, now, events.SubscriptionChangedPayload{
				OldStatus: account.Status,
				NewStatus: domain.SubscriptionFree,
			})
		}
		s.announceForfeit(ctx, accountID, ForfeitDowngrade, forfeited, now)
		result.Forfeited = forfeited
		result.View = s.view(domain.SubscriptionFree, next, now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Reinitialize re-mints both collections on request, regardless of boundaries.
func (s *TokenService) Reinitialize(ctx context.Context, accountID string) (*PoolView, error) {
	var view *PoolView
	err := s.withAccount(ctx, accountID, func(account *domain.Account, pool domain.TokenPool) error {
		now := s.clock.Now()
		next, outcome, err := s.engine.Reinitialize(pool, account.Status, now)
		if err != nil {
			return mapEngineError(err, "")
		}
		if err := s.pools.Save(ctx, accountID, next); err != nil {
			return apperrors.NewInternalError(err)
		}
		s.logger.Warn("token pool reinitialized", zap.String("account_id", accountID))
		s.announceForfeit(ctx, accountID, ForfeitManual, outcome.Discarded, now)
		s.announceIssue(ctx, accountID, events.TriggerManual, outcome.Minted, now)
		view = s.view(account.Status, next, now)
		return nil
	})
	return view, err
}

func (s *TokenService) withAccount(ctx context.Context, accountID string, fn func(*domain.Account, domain.TokenPool) error) error {
	unlock, err := s.locker.Lock(ctx, accountID)
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return apperrors.Wrap(err, "ACCOUNT_BUSY", "account is busy, retry later", http.StatusServiceUnavailable, nil)
		}
		return apperrors.NewInternalError(err)
	}
	defer unlock()

	account, err := s.loadAccount(ctx, accountID)
	if err != nil {
		return err
	}
	pool, err := s.pools.Get(ctx, accountID)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	return fn(account, pool)
}

func (s *TokenService) loadAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("account", map[string]any{"account_id": accountID})
		}
		return nil, apperrors.NewInternalError(err)
	}
	return account, nil
}

func (s *TokenService) view(status domain.SubscriptionStatus, pool domain.TokenPool, now time.Time) *PoolView {
	v := &PoolView{
		Status: status,
		Tokens: s.engine.Available(pool, status, now),
		Counts: s.engine.Counts(pool, status, now),
	}
	if status.IsPremium() {
		schedule := s.engine.Schedule()
		daily := schedule.NextDailyReset(pool.LastDailyReset)
		weekly := schedule.NextWeeklyBoundary(pool.LastWeeklyReset)
		v.NextDailyReset = &daily
		v.NextWeeklyReset = &weekly
	}
	return v
}

func (s *TokenService) announceIssue(ctx context.Context, accountID, trigger string, minted []domain.Token, now time.Time) {
	if len(minted) == 0 {
		return
	}
	s.metrics.RecordMinted(minted)
	s.publish(ctx, accountID, events.EventTokensIssued, now, events.TokensIssuedPayload{Trigger: trigger, Tokens: minted})
}

func (s *TokenService) announceForfeit(ctx context.Context, accountID, reason string, forfeited []domain.Token, now time.Time) {
	if len(forfeited) == 0 {
		return
	}
	s.metrics.RecordForfeited(reason, len(forfeited))
	s.publish(ctx, accountID, events.EventTokensForfeited, now, events.TokensForfeitedPayload{Reason: reason, Tokens: forfeited})
}

func (s *TokenService) publish(ctx context.Context, accountID string, eventType events.EventType, now time.Time, payload interface{}) {
	if s.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		AccountID: accountID,
		Timestamp: now,
		Payload:   payload,
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed",
			zap.String("event_type", string(eventType)),
			zap.String("account_id", accountID),
			zap.Error(err))
	}
}

func mapEngineError(err error, tokenID string) error {
	switch {
	case errors.Is(err, tokens.ErrTokenNotFound):
		return apperrors.NewTokenNotFound(err, tokenID)
	case errors.Is(err, tokens.ErrTokenAlreadyUsed):
		return apperrors.NewTokenAlreadyUsed(err, tokenID)
	case errors.Is(err, tokens.ErrTokenExpired):
		return apperrors.NewTokenExpired(err, tokenID)
	case errors.Is(err, tokens.ErrSubscriptionRequired):
		return apperrors.NewSubscriptionRequired(err)
	case errors.Is(err, tokens.ErrVenueRequired):
		return apperrors.Wrap(err, "VALIDATION_FAILED", "venue_id required", http.StatusBadRequest, nil)
	default:
		return apperrors.NewInternalError(err)
	}
}
