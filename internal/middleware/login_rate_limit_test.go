package middleware

import (
	"net/http/httptest"
	"strings"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

func TestLoginRateLimitPerHandle(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()

	app := fiber.New()
	app.Post("/login", LoginRateLimit(cache, 2), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	login := func(handle string) int {
		req := httptest.NewRequest(fiber.MethodPost, "/login", strings.NewReader(`{"handle":"`+handle+`"}`))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	for i := 0; i < 2; i++ {
		if code := login("alice"); code != fiber.StatusOK {
			t.Fatalf("attempt %d: expected 200, got %d", i+1, code)
		}
	}
	if code := login("alice"); code != fiber.StatusTooManyRequests {
		t.Fatalf("expected 429 on third attempt, got %d", code)
	}
	if code := login("bob"); code != fiber.StatusOK {
		t.Fatalf("other handles must not share the budget, got %d", code)
	}
	if ttl := mr.TTL("rl:login:alice"); ttl <= 0 {
		t.Fatalf("expected counter ttl to be set, got %s", ttl)
	}
}
