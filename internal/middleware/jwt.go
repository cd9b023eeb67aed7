package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/peerpool/peerpool/internal/auth"
)

const accountIDLocal = "account_id"

// JWTAuth returns a middleware that validates access tokens, checks the token
// version and stores the caller's account id for downstream handlers.
func JWTAuth(svc *auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		tokenStr := strings.TrimSpace(authz[len("Bearer "):])
		accountID, err := svc.Authorize(c.UserContext(), tokenStr)
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, err.Error())
		}

		c.Locals(accountIDLocal, accountID)
		return c.Next()
	}
}

// AccountID returns the authenticated caller, or "" on public routes.
func AccountID(c *fiber.Ctx) string {
	id, _ := c.Locals(accountIDLocal).(string)
	return id
}
