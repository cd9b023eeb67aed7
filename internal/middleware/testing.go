package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
)

// WithAccountID is a test helper that marks the request as made by accountID
// without minting a token. The id is copied because fiber reuses the buffers
// behind header and param strings once the request completes.
func WithAccountID(accountID string) fiber.Handler {
	id := utils.CopyString(accountID)
	return func(c *fiber.Ctx) error {
		c.Locals(accountIDLocal, id)
		return c.Next()
	}
}
