package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/peerpool/peerpool/internal/lending"
)

// RegisterPoolQueryRoutes wires the read-only pool endpoints.
func RegisterPoolQueryRoutes(r fiber.Router, h *lending.Handler) {
	r.Get("/pool", h.Pool)
	r.Get("/pool/lenders/:index", h.LenderAt)
	r.Get("/lenders/:address/balance", h.LenderBalance)
	r.Get("/borrowers/:address/loans", h.Loans)
	r.Get("/borrowers/:address/loans/:loanId", h.Loan)
	r.Get("/borrowers/:address/loans/:loanId/due", h.LoanDueDebt)
	r.Get("/borrowers/:address/loans/:loanId/lenders/:lender", h.LoanDueDebtToLender)
}

// RegisterPoolRoutes wires the operations that move value; r must authenticate the caller.
func RegisterPoolRoutes(r fiber.Router, h *lending.Handler) {
	r.Post("/pool/lend", h.Lend)
	r.Post("/pool/borrow", h.Borrow)
	r.Post("/pool/loans/:loanId/pay", h.PayLoan)
	r.Post("/pool/withdraw", h.Withdraw)
}
