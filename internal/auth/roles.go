package auth

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/nightpass/pkg/util/errorutil"
)

// RequireAccount ensures an account principal is present.
func RequireAccount() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return apperrors.NewUnauthorized("account required")
		}
		return c.Next()
	}
}

// RequireFlag rejects requests when a deployment toggle is off.
func RequireFlag(enabled bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !enabled {
			return apperrors.NewForbidden("endpoint disabled")
		}
		return c.Next()
	}
}
