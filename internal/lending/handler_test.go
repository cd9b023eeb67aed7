package lending

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/peerpool/peerpool/internal/logging"
	"github.com/peerpool/peerpool/internal/middleware"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	svc, _, _, _ := newTestService(t)
	h := NewHandler(svc)

	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler(logging.Discard())})
	app.Get("/pool", h.Pool)
	app.Get("/pool/lenders/:index", h.LenderAt)
	app.Get("/lenders/:address/balance", h.LenderBalance)
	app.Get("/borrowers/:address/loans", h.Loans)
	app.Get("/borrowers/:address/loans/:loanId", h.Loan)
	app.Get("/borrowers/:address/loans/:loanId/due", h.LoanDueDebt)
	app.Get("/borrowers/:address/loans/:loanId/lenders/:lender", h.LoanDueDebtToLender)

	as := func(c *fiber.Ctx) error {
		if caller := c.Get("X-Test-Account"); caller != "" {
			return middleware.WithAccountID(caller)(c)
		}
		return c.Next()
	}
	app.Post("/pool/lend", as, h.Lend)
	app.Post("/pool/borrow", as, h.Borrow)
	app.Post("/pool/loans/:loanId/pay", as, h.PayLoan)
	app.Post("/pool/withdraw", as, h.Withdraw)
	return app
}

func do(t *testing.T, app *fiber.App, method, path, caller, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if caller != "" {
		req.Header.Set("X-Test-Account", caller)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var decoded map[string]any
	_ = json.Unmarshal(payload, &decoded)
	return resp.StatusCode, decoded
}

func TestHandlerScenarioSingleLender(t *testing.T) {
	app := newTestApp(t)

	if code, _ := do(t, app, fiber.MethodPost, "/pool/lend", "deployer", `{"amount_ether":"1"}`); code != fiber.StatusCreated {
		t.Fatalf("lend: expected 201, got %d", code)
	}
	code, body := do(t, app, fiber.MethodPost, "/pool/borrow", "user01", `{"amount_ether":"0.5"}`)
	if code != fiber.StatusCreated {
		t.Fatalf("borrow: expected 201, got %d", code)
	}
	debt := body["total_debt"].(map[string]any)
	if debt["ether"] != "0.55" {
		t.Fatalf("expected 0.55 ether due, got %v", debt)
	}

	code, body = do(t, app, fiber.MethodGet, "/borrowers/user01/loans/0/lenders/deployer", "", "")
	if code != fiber.StatusOK || body["due_debt"].(map[string]any)["wei"] != "550000000000000000" {
		t.Fatalf("due debt to lender: %d %v", code, body)
	}

	code, body = do(t, app, fiber.MethodGet, "/pool", "", "")
	if code != fiber.StatusOK || body["active_loans_counter"] != float64(1) || body["interest_rate_percent"] != "10" {
		t.Fatalf("pool: %d %v", code, body)
	}

	if code, _ := do(t, app, fiber.MethodPost, "/pool/loans/0/pay", "user01", `{"amount_wei":"550000000000000000"}`); code != fiber.StatusOK {
		t.Fatalf("pay: expected 200, got %d", code)
	}
	code, body = do(t, app, fiber.MethodGet, "/lenders/deployer/balance", "", "")
	if code != fiber.StatusOK || body["balance"].(map[string]any)["ether"] != "1.05" {
		t.Fatalf("balance after repayment: %d %v", code, body)
	}

	code, body = do(t, app, fiber.MethodGet, "/borrowers/user01/loans", "", "")
	loans, _ := body["loans"].([]any)
	if code != fiber.StatusOK || len(loans) != 1 || loans[0].(map[string]any)["active"] != false {
		t.Fatalf("loans listing: %d %v", code, body)
	}
}

func TestHandlerErrorMapping(t *testing.T) {
	app := newTestApp(t)

	cases := []struct {
		name   string
		method string
		path   string
		caller string
		body   string
		want   int
	}{
		{"anonymous lend", fiber.MethodPost, "/pool/lend", "", `{"amount_ether":"1"}`, fiber.StatusUnauthorized},
		{"zero lend", fiber.MethodPost, "/pool/lend", "alice", `{"amount_wei":"0"}`, fiber.StatusBadRequest},
		{"both amounts", fiber.MethodPost, "/pool/lend", "alice", `{"amount_wei":"1","amount_ether":"1"}`, fiber.StatusBadRequest},
		{"no amount", fiber.MethodPost, "/pool/lend", "alice", `{}`, fiber.StatusBadRequest},
		{"borrow empty pool", fiber.MethodPost, "/pool/borrow", "bob", `{"amount_ether":"1"}`, fiber.StatusConflict},
		{"pay missing loan", fiber.MethodPost, "/pool/loans/1/pay", "bob", `{"amount_ether":"1"}`, fiber.StatusNotFound},
		{"pay bad loan id", fiber.MethodPost, "/pool/loans/x/pay", "bob", `{"amount_ether":"1"}`, fiber.StatusBadRequest},
		{"withdraw without balance", fiber.MethodPost, "/pool/withdraw", "bob", "", fiber.StatusForbidden},
		{"lender index out of range", fiber.MethodGet, "/pool/lenders/0", "", "", fiber.StatusNotFound},
		{"unknown loan record", fiber.MethodGet, "/borrowers/bob/loans/0", "", "", fiber.StatusNotFound},
	}
	for _, tc := range cases {
		if code, _ := do(t, app, tc.method, tc.path, tc.caller, tc.body); code != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, code)
		}
	}
}

func TestHandlerErrorBodyCarriesLedgerCode(t *testing.T) {
	app := newTestApp(t)
	code, body := do(t, app, fiber.MethodPost, "/pool/withdraw", "nobody", "")
	if code != fiber.StatusForbidden || body["code"] != "Unauthorized" || body["error"] != "unauthorized" {
		t.Fatalf("unexpected error response %d %v", code, body)
	}
}

func TestHandlerMaxTwoLoans(t *testing.T) {
	app := newTestApp(t)
	do(t, app, fiber.MethodPost, "/pool/lend", "alice", `{"amount_ether":"10"}`)

	for i := 0; i < 2; i++ {
		if code, _ := do(t, app, fiber.MethodPost, "/pool/borrow", "bob", `{"amount_ether":"1"}`); code != fiber.StatusCreated {
			t.Fatalf("borrow %d: expected 201, got %d", i, code)
		}
	}
	if code, _ := do(t, app, fiber.MethodPost, "/pool/borrow", "bob", `{"amount_ether":"1"}`); code != fiber.StatusConflict {
		t.Fatalf("third borrow: expected 409, got %d", code)
	}
	code, body := do(t, app, fiber.MethodGet, "/borrowers/bob/loans/1/due", "", "")
	if code != fiber.StatusOK || body["due_debt"].(map[string]any)["ether"] != "1.1" {
		t.Fatalf("due debt: %d %v", code, body)
	}
}
