package server

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/peerpool/peerpool/internal/config"
	"github.com/peerpool/peerpool/internal/logging"
)

func TestNewDevelopmentServerUsesJSONErrors(t *testing.T) {
	cfg := config.Config{
		AppName:             "PeerPool",
		Env:                 "development",
		Port:                "0",
		JWTSecret:           "a",
		RefreshSecret:       "r",
		InterestRatePercent: decimal.NewFromInt(10),
		PoolOwner:           "owner",
	}
	srv, err := New(cfg, nil, nil, logging.Discard())
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	resp, err := srv.App().Test(httptest.NewRequest(fiber.MethodGet, "/api/v1/borrowers/nobody/loans/0", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound || body["code"] != "LoanMustExist" {
		t.Fatalf("unexpected response %d %v", resp.StatusCode, body)
	}
}
