package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"taskflow/models"
	"taskflow/utils"
)

// IdentityResolver maps a bearer credential to a user.
type IdentityResolver interface {
	Resolve(ctx context.Context, credential string) (*models.User, error)
}

// Protected rejects requests without a valid bearer token and stores the
// caller under Locals("user").
func Protected(resolver IdentityResolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Authorization required", nil)
		}

		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid authorization format", nil)
		}

		user, err := resolver.Resolve(c.UserContext(), tokenParts[1])
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid or expired token", nil)
		}

		c.Locals("user", user)
		c.Locals("userID", user.ID)
		return c.Next()
	}
}

// CurrentUser returns the caller stored by Protected.
func CurrentUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals("user").(*models.User)
	return user
}
