package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/nightpass/internal/api/dto"
	"github.com/spec-kit/nightpass/internal/auth"
	"github.com/spec-kit/nightpass/internal/service"
	apperrors "github.com/spec-kit/nightpass/pkg/util/errorutil"
)

// TokensHandler serves the token wallet and redemption endpoints.
type TokensHandler struct {
	tokens *service.TokenService
	ledger *service.LedgerService
}

// NewTokensHandler constructs handler.
func NewTokensHandler(tokenService *service.TokenService, ledgerService *service.LedgerService) *TokensHandler {
	return &TokensHandler{tokens: tokenService, ledger: ledgerService}
}

// List GET /tokens.
func (h *TokensHandler) List(c *fiber.Ctx) error {
	accountID, err := currentAccountID(c)
	if err != nil {
		return err
	}
	view, err := h.tokens.Pool(c.UserContext(), accountID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": poolResponse(view)})
}

// Counts GET /tokens/counts.
func (h *TokensHandler) Counts(c *fiber.Ctx) error {
	accountID, err := currentAccountID(c)
	if err != nil {
		return err
	}
	counts, err := h.tokens.Counts(c.UserContext(), accountID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": counts})
}

// Redeem POST /tokens/redeem.
func (h *TokensHandler) Redeem(c *fiber.Ctx) error {
	accountID, err := currentAccountID(c)
	if err != nil {
		return err
	}
	var req dto.RedeemRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.TokenID) == "" {
		return apperrors.NewValidationError("token_id required", nil)
	}

	token, err := h.tokens.Redeem(c.UserContext(), accountID, req.TokenID, req.VenueID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": token})
}

// Reset POST /tokens/reset. Only routed when developer resets are enabled.
func (h *TokensHandler) Reset(c *fiber.Ctx) error {
	accountID, err := currentAccountID(c)
	if err != nil {
		return err
	}
	view, err := h.tokens.Reinitialize(c.UserContext(), accountID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": poolResponse(view)})
}

// Ledger GET /tokens/ledger?limit=N.
func (h *TokensHandler) Ledger(c *fiber.Ctx) error {
	accountID, err := currentAccountID(c)
	if err != nil {
		return err
	}
	limit := c.QueryInt("limit", 50)
	entries, err := h.ledger.List(c.UserContext(), accountID, limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewLedgerResponse(entries)})
}

func currentAccountID(c *fiber.Ctx) (string, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return "", apperrors.NewUnauthorized("account required")
	}
	return principal.Account.ID, nil
}

func poolResponse(view *service.PoolView) dto.PoolResponse {
	return dto.PoolResponse{
		SubscriptionStatus: view.Status,
		Daily:              view.Tokens.Daily,
		Weekly:             view.Tokens.Weekly,
		Counts:             view.Counts,
		NextDailyReset:     view.NextDailyReset,
		NextWeeklyReset:    view.NextWeeklyReset,
	}
}
