package auth

import (
	"campus-chat/domain"
	"campus-chat/errors"
	"strings"

	"github.com/gofiber/fiber/v2"
)

const userIDLocal = "user_id"

// Middleware authenticates the request from its Bearer token and stores the
// caller identity in the request locals. onError renders the failure.
func Middleware(secret []byte, onError func(c *fiber.Ctx, err error) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		tokenStr, found := strings.CutPrefix(header, "Bearer ")
		if !found || tokenStr == "" {
			return onError(c, errors.ErrUnauthenticated)
		}
		claims, err := ValidateToken(secret, tokenStr)
		if err != nil {
			return onError(c, errors.ErrUnauthenticated)
		}
		c.Locals(userIDLocal, domain.UserID(claims.UserID))
		return c.Next()
	}
}

// UserID returns the authenticated caller, empty outside the middleware.
func UserID(c *fiber.Ctx) domain.UserID {
	id, _ := c.Locals(userIDLocal).(domain.UserID)
	return id
}
