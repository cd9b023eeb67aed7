package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func TestWithAccountIDOutlivesRequestBuffers(t *testing.T) {
	var seen []string
	app := fiber.New()
	app.Post("/", func(c *fiber.Ctx) error {
		return WithAccountID(c.Get("X-Test-Account"))(c)
	}, func(c *fiber.Ctx) error {
		seen = append(seen, AccountID(c))
		return c.SendStatus(fiber.StatusNoContent)
	})

	for _, caller := range []string{"alice-account", "bob-account-id"} {
		req := httptest.NewRequest(fiber.MethodPost, "/", nil)
		req.Header.Set("X-Test-Account", caller)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		resp.Body.Close()
	}

	if len(seen) != 2 || seen[0] != "alice-account" || seen[1] != "bob-account-id" {
		t.Fatalf("account ids must survive later requests, got %q", seen)
	}
}
