package middleware

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/redis/go-redis/v9"

	"github.com/peerpool/peerpool/internal/logging"
)

func setupTestApp(t *testing.T) (*fiber.App, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}

	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	app := fiber.New()
	logger := logging.Discard()
	calls := 0
	app.Use(func(c *fiber.Ctx) error {
		if caller := c.Get("X-Test-Account"); caller != "" {
			return WithAccountID(caller)(c)
		}
		return c.Next()
	})
	app.Use(Idempotency(cache, time.Minute, logger))
	app.Post("/resource", func(c *fiber.Ctx) error {
		calls++
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"ok": true, "call": calls})
	})

	cleanup := func() {
		cache.Close()
		mr.Close()
	}

	return app, cleanup
}

func TestIdempotencyRequiresHeader(t *testing.T) {
	app, cleanup := setupTestApp(t)
	defer cleanup()

	req := httptest.NewRequest(fiber.MethodPost, "/resource", strings.NewReader("{}"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}

	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected %d got %d", fiber.StatusBadRequest, resp.StatusCode)
	}
}

func TestIdempotencyReturnsCachedResponse(t *testing.T) {
	app, cleanup := setupTestApp(t)
	defer cleanup()

	body := strings.NewReader("{}")
	req := httptest.NewRequest(fiber.MethodPost, "/resource", body)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set(idempotencyKeyHeader, "abc123")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("first request: %v", err)
	}

	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("expected status %d got %d", fiber.StatusCreated, resp.StatusCode)
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	resp.Body.Close()

	// Second request should return the cached response without invoking handler again.
	req2 := httptest.NewRequest(fiber.MethodPost, "/resource", strings.NewReader("{}"))
	req2.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req2.Header.Set(idempotencyKeyHeader, "abc123")

	resp2, err := app.Test(req2)
	if err != nil {
		t.Fatalf("second request: %v", err)
	}

	if resp2.StatusCode != fiber.StatusCreated {
		t.Fatalf("expected cached status %d got %d", fiber.StatusCreated, resp2.StatusCode)
	}

	cachedPayload, err := io.ReadAll(resp2.Body)
	if err != nil {
		t.Fatalf("read cached body: %v", err)
	}
	resp2.Body.Close()

	if string(cachedPayload) != string(payload) {
		t.Fatalf("expected cached payload %s got %s", string(payload), string(cachedPayload))
	}

	var decoded map[string]any
	if err := json.Unmarshal(cachedPayload, &decoded); err != nil {
		t.Fatalf("cached payload invalid json: %v", err)
	}
}

func TestIdempotencyKeysAreScopedPerCaller(t *testing.T) {
	app, cleanup := setupTestApp(t)
	defer cleanup()

	send := func(account string) string {
		req := httptest.NewRequest(fiber.MethodPost, "/resource", strings.NewReader("{}"))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		req.Header.Set(idempotencyKeyHeader, "same-key")
		req.Header.Set("X-Test-Account", account)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		return string(body)
	}

	alice := send("alice")
	bob := send("bob")
	if alice == bob {
		t.Fatalf("bob must not receive alice's cached response: %s", bob)
	}
	if again := send("alice"); again != alice {
		t.Fatalf("alice replay mismatch: %s vs %s", again, alice)
	}
}

type settledError struct{ status int }

func (e settledError) Error() string { return "payout failed" }
func (e settledError) StatusCode() int { return e.status }
func (e settledError) ErrorCode() string { return "Settled" }

func TestIdempotencyKeepsCommittedFailures(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logging.Discard())})
	app.Use(Idempotency(cache, time.Minute, logging.Discard()))
	calls := map[string]int{}
	app.Post("/:status", func(c *fiber.Ctx) error {
		calls[utils.CopyString(c.Params("status"))]++
		status, _ := c.ParamsInt("status")
		return settledError{status: status}
	})

	send := func(path string) int {
		req := httptest.NewRequest(fiber.MethodPost, path, nil)
		req.Header.Set(idempotencyKeyHeader, "k-"+path)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	for i := 0; i < 2; i++ {
		if got := send("/502"); got != fiber.StatusBadGateway {
			t.Fatalf("attempt %d: expected 502, got %d", i, got)
		}
		if got := send("/409"); got != fiber.StatusConflict {
			t.Fatalf("attempt %d: expected 409, got %d", i, got)
		}
	}
	if calls["502"] != 1 {
		t.Fatalf("committed failure must be replayed, handler ran %d times", calls["502"])
	}
	if calls["409"] != 2 {
		t.Fatalf("rejected request must release its key, handler ran %d times", calls["409"])
	}
}
