package routes

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/peerpool/peerpool/internal/identity"
	"github.com/peerpool/peerpool/internal/ledger"
	"github.com/peerpool/peerpool/internal/lending"
	"github.com/peerpool/peerpool/internal/middleware"
)

// RegisterMeRoute exposes the caller's profile together with their pool position.
func RegisterMeRoute(r fiber.Router, svc *lending.Service, idRepo identity.Repository) {
	r.Get("/me", func(c *fiber.Ctx) error {
		accountID := middleware.AccountID(c)
		if accountID == "" {
			return fiber.NewError(http.StatusUnauthorized, "unauthorized")
		}
		account, err := idRepo.FindByID(c.UserContext(), accountID)
		if err != nil {
			return fiber.NewError(http.StatusNotFound, "account not found")
		}
		balance, err := svc.LenderBalance(c.UserContext(), ledger.Address(accountID))
		if err != nil {
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
		loans, err := svc.Loans(c.UserContext(), ledger.Address(accountID))
		if err != nil {
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
		active := make([]fiber.Map, 0, len(loans))
		for _, l := range loans {
			if !l.Active {
				continue
			}
			active = append(active, fiber.Map{
				"loan_id":       l.ID,
				"due_debt_wei":  l.TotalDebt.Dec(),
				"due_debt_eth":  ledger.FormatEther(l.TotalDebt),
				"principal_wei": l.Principal.Dec(),
			})
		}
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"account": fiber.Map{
				"id":            account.ID,
				"handle":        account.Handle,
				"token_version": account.TokenVersion,
				"created_at":    account.CreatedAt,
				"last_login":    account.LastLogin,
			},
			"lender": fiber.Map{
				"balance_wei":   balance.Dec(),
				"balance_ether": ledger.FormatEther(balance),
			},
			"active_loans": active,
		})
	})
}
