package identity

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func TestRegisterHandler(t *testing.T) {
	app := fiber.New()
	h := NewHandler(NewService(NewMemoryRepository()), nil)
	app.Post("/accounts", h.Register)

	post := func(body string) int {
		req := httptest.NewRequest(fiber.MethodPost, "/accounts", strings.NewReader(body))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		if resp.StatusCode == fiber.StatusCreated {
			var out accountResponse
			if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if out.AccountID == "" || out.Handle != "erin" {
				t.Fatalf("unexpected response %+v", out)
			}
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	if code := post(`{"handle":"erin","secret":"long-enough"}`); code != fiber.StatusCreated {
		t.Fatalf("expected 201, got %d", code)
	}
	if code := post(`{"handle":"erin","secret":"long-enough"}`); code != fiber.StatusConflict {
		t.Fatalf("expected 409 for duplicate, got %d", code)
	}
	if code := post(`{"handle":"frank","secret":"x"}`); code != fiber.StatusBadRequest {
		t.Fatalf("expected 400 for weak secret, got %d", code)
	}
}
