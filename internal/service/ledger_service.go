package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/nightpass/internal/domain"
	"github.com/spec-kit/nightpass/internal/events"
	"github.com/spec-kit/nightpass/internal/repository"
	apperrors "github.com/spec-kit/nightpass/pkg/util/errorutil"
)

// LedgerService turns token lifecycle events into append-only ledger rows.
type LedgerService struct {
	dispatcher events.Dispatcher
	entries    repository.LedgerRepository
	logger     *zap.Logger
}

// NewLedgerService creates the service.
func NewLedgerService(dispatcher events.Dispatcher, entries repository.LedgerRepository, logger *zap.Logger) *LedgerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerService{
		dispatcher: dispatcher,
		entries:    entries,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (l *LedgerService) RegisterHandlers() {
	if l.dispatcher == nil {
		return
	}
	l.dispatcher.Subscribe(events.EventTokensIssued, l.handleTokensIssued)
	l.dispatcher.Subscribe(events.EventTokenRedeemed, l.handleTokenRedeemed)
	l.dispatcher.Subscribe(events.EventTokensForfeited, l.handleTokensForfeited)
	l.dispatcher.Subscribe(events.EventSubscriptionChanged, l.handleSubscriptionChanged)
}

// List returns the most recent ledger rows for an account, newest first.
func (l *LedgerService) List(ctx context.Context, accountID string, limit int) ([]domain.LedgerEntry, error) {
	entries, err := l.entries.ListByAccount(ctx, accountID, limit)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return entries, nil
}

func (l *LedgerService) handleTokensIssued(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TokensIssuedPayload)
	if !ok {
		return payloadError(event)
	}
	l.logger.Debug("TokensIssued", zap.String("account_id", event.AccountID), zap.Int("count", len(payload.Tokens)))
	return l.append(ctx, event, payload.Tokens, domain.LedgerActionIssued, payload.Trigger, nil)
}

func (l *LedgerService) handleTokenRedeemed(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TokenRedeemedPayload)
	if !ok {
		return payloadError(event)
	}
	l.logger.Debug("TokenRedeemed", zap.String("account_id", event.AccountID), zap.String("token_id", payload.Token.ID))
	venue := payload.VenueID
	return l.append(ctx, event, []domain.Token{payload.Token}, domain.LedgerActionRedeemed, "", &venue)
}

func (l *LedgerService) handleTokensForfeited(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TokensForfeitedPayload)
	if !ok {
		return payloadError(event)
	}
	l.logger.Debug("TokensForfeited", zap.String("account_id", event.AccountID), zap.String("reason", payload.Reason))
	return l.append(ctx, event, payload.Tokens, domain.LedgerActionForfeited, payload.Reason, nil)
}

func (l *LedgerService) handleSubscriptionChanged(_ context.Context, event events.Event) error {
	l.logger.Info("SubscriptionChanged", zap.String("account_id", event.AccountID), zap.Any("payload", event.Payload))
	return nil
}

func (l *LedgerService) append(ctx context.Context, event events.Event, tokens []domain.Token, action domain.LedgerAction, reason string, venueID *string) error {
	if len(tokens) == 0 || l.entries == nil {
		return nil
	}
	rows := make([]domain.LedgerEntry, 0, len(tokens))
	for _, t := range tokens {
		rows = append(rows, domain.LedgerEntry{
			ID:         uuid.NewString(),
			AccountID:  event.AccountID,
			TokenID:    t.ID,
			Kind:       t.Kind,
			Action:     action,
			VenueID:    venueID,
			Reason:     reason,
			OccurredAt: event.Timestamp,
		})
	}
	return l.entries.Append(ctx, rows)
}

func payloadError(event events.Event) error {
	return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
}
