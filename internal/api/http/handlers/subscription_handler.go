package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/nightpass/internal/api/dto"
	"github.com/spec-kit/nightpass/internal/service"
)

// SubscriptionHandler manages the premium tier.
type SubscriptionHandler struct {
	tokens *service.TokenService
}

// NewSubscriptionHandler constructs handler.
func NewSubscriptionHandler(tokenService *service.TokenService) *SubscriptionHandler {
	return &SubscriptionHandler{tokens: tokenService}
}

// Get GET /subscription.
func (h *SubscriptionHandler) Get(c *fiber.Ctx) error {
	accountID, err := currentAccountID(c)
	if err != nil {
		return err
	}
	status, err := h.tokens.Status(c.UserContext(), accountID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"subscription_status": status}})
}

// Upgrade POST /subscription/upgrade.
func (h *SubscriptionHandler) Upgrade(c *fiber.Ctx) error {
	accountID, err := currentAccountID(c)
	if err != nil {
		return err
	}
	view, err := h.tokens.Upgrade(c.UserContext(), accountID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": poolResponse(view)})
}

// Cancel POST /subscription/cancel.
func (h *SubscriptionHandler) Cancel(c *fiber.Ctx) error {
	accountID, err := currentAccountID(c)
	if err != nil {
		return err
	}
	result, err := h.tokens.Cancel(c.UserContext(), accountID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.CancelResponse{
		PoolResponse: poolResponse(result.View),
		Forfeited:    result.Forfeited,
	}})
}
