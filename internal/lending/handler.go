package lending

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/holiman/uint256"

	"github.com/peerpool/peerpool/internal/ledger"
	"github.com/peerpool/peerpool/internal/middleware"
)

// Handler exposes the pool over HTTP.
type Handler struct {
	service *Service
}

// NewHandler constructs a lending handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Lend deposits the attached amount for the caller.
func (h *Handler) Lend(c *fiber.Ctx) error {
	caller, amount, err := callerAndAmount(c)
	if err != nil {
		return err
	}
	res, err := h.service.Lend(c.UserContext(), caller, amount)
	if err != nil {
		return apiError(err)
	}
	r := res.Receipt
	return c.Status(http.StatusCreated).JSON(LendResponse{
		Lender:      string(r.Lender),
		Amount:      amountView(r.Amount),
		Balance:     amountView(r.Balance),
		NewLender:   r.NewLender,
		PoolBalance: amountView(r.PoolBalance),
		Reference:   res.Reference,
	})
}

// Borrow issues a loan of the requested amount to the caller.
func (h *Handler) Borrow(c *fiber.Ctx) error {
	caller, amount, err := callerAndAmount(c)
	if err != nil {
		return err
	}
	res, err := h.service.Borrow(c.UserContext(), caller, amount)
	if err != nil {
		return apiError(err)
	}
	r := res.Receipt
	return c.Status(http.StatusCreated).JSON(BorrowResponse{
		Borrower:    string(r.Borrower),
		LoanID:      r.LoanID,
		Principal:   amountView(r.Principal),
		Interest:    amountView(r.Interest),
		TotalDebt:   amountView(r.TotalDebt),
		Deductions:  shareViews(r.Deductions),
		DebtShares:  shareViews(r.DebtShares),
		PoolBalance: amountView(r.PoolBalance),
		Reference:   res.Reference,
	})
}

// PayLoan repays one of the caller's loans with the attached amount.
func (h *Handler) PayLoan(c *fiber.Ctx) error {
	loanID, err := loanIDParam(c)
	if err != nil {
		return err
	}
	caller, amount, err := callerAndAmount(c)
	if err != nil {
		return err
	}
	res, err := h.service.PayLoan(c.UserContext(), caller, loanID, amount)
	if err != nil {
		return apiError(err)
	}
	r := res.Receipt
	return c.Status(http.StatusOK).JSON(RepayResponse{
		Borrower:    string(r.Borrower),
		LoanID:      r.LoanID,
		Amount:      amountView(r.Amount),
		Credits:     shareViews(r.Credits),
		Retained:    amountView(r.Retained),
		PoolBalance: amountView(r.PoolBalance),
		Reference:   res.Reference,
	})
}

// Withdraw pays out the caller's whole balance.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	caller, err := callerParam(c)
	if err != nil {
		return err
	}
	res, err := h.service.Withdraw(c.UserContext(), caller)
	if err != nil {
		return apiError(err)
	}
	r := res.Receipt
	return c.Status(http.StatusOK).JSON(WithdrawResponse{
		Lender:      string(r.Lender),
		Amount:      amountView(r.Amount),
		PoolBalance: amountView(r.PoolBalance),
		Reference:   res.Reference,
	})
}

// Pool returns the pool-wide figures.
func (h *Handler) Pool(c *fiber.Ctx) error {
	s, err := h.service.Summary(c.UserContext())
	if err != nil {
		return apiError(err)
	}
	return c.JSON(PoolResponse{
		Owner:              string(s.Owner),
		InterestRate:       s.InterestRate.Dec(),
		InterestRatePct:    ledger.FormatPercent(s.InterestRate),
		PoolBalance:        amountView(s.PoolBalance),
		NumberOfLenders:    s.NumberOfLenders,
		ActiveLoansCounter: s.ActiveLoans,
	})
}

// LenderAt returns the lender registered at :index.
func (h *Handler) LenderAt(c *fiber.Ctx) error {
	index, err := strconv.Atoi(c.Params("index"))
	if err != nil || index < 0 {
		return apiError(ledger.ErrLenderIndexOutOfRange)
	}
	addr, err := h.service.LenderAt(c.UserContext(), index)
	if err != nil {
		return apiError(err)
	}
	return c.JSON(fiber.Map{"index": index, "lender": string(addr)})
}

// LenderBalance returns the balance of :address; unknown lenders hold zero.
func (h *Handler) LenderBalance(c *fiber.Ctx) error {
	addr := ledger.Address(c.Params("address"))
	balance, err := h.service.LenderBalance(c.UserContext(), addr)
	if err != nil {
		return apiError(err)
	}
	return c.JSON(fiber.Map{"lender": string(addr), "balance": amountView(balance)})
}

// Loans lists every slot :address has used.
func (h *Handler) Loans(c *fiber.Ctx) error {
	borrower := ledger.Address(c.Params("address"))
	loans, err := h.service.Loans(c.UserContext(), borrower)
	if err != nil {
		return apiError(err)
	}
	out := make([]LoanResponse, 0, len(loans))
	for _, l := range loans {
		out = append(out, loanResponse(l))
	}
	return c.JSON(fiber.Map{"borrower": string(borrower), "loans": out})
}

// Loan returns one loan slot of :address.
func (h *Handler) Loan(c *fiber.Ctx) error {
	loanID, err := loanIDParam(c)
	if err != nil {
		return err
	}
	loan, err := h.service.Loan(c.UserContext(), ledger.Address(c.Params("address")), loanID)
	if err != nil {
		return apiError(err)
	}
	return c.JSON(loanResponse(loan))
}

// LoanDueDebtToLender returns what loan :loanId of :address owes :lender.
func (h *Handler) LoanDueDebtToLender(c *fiber.Ctx) error {
	loanID, err := loanIDParam(c)
	if err != nil {
		return err
	}
	borrower := ledger.Address(c.Params("address"))
	lender := ledger.Address(c.Params("lender"))
	due, err := h.service.LoanDueDebtToLender(c.UserContext(), borrower, loanID, lender)
	if err != nil {
		return apiError(err)
	}
	return c.JSON(fiber.Map{
		"borrower": string(borrower),
		"loan_id":  loanID,
		"lender":   string(lender),
		"due_debt": amountView(due),
	})
}

// LoanDueDebt returns the exact amount payLoan expects for loan :loanId.
func (h *Handler) LoanDueDebt(c *fiber.Ctx) error {
	loanID, err := loanIDParam(c)
	if err != nil {
		return err
	}
	borrower := ledger.Address(c.Params("address"))
	due, err := h.service.LoanDueDebt(c.UserContext(), borrower, loanID)
	if err != nil {
		return apiError(err)
	}
	return c.JSON(fiber.Map{"borrower": string(borrower), "loan_id": loanID, "due_debt": amountView(due)})
}

func callerParam(c *fiber.Ctx) (ledger.Address, error) {
	caller := middleware.AccountID(c)
	if caller == "" {
		return "", fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	return ledger.Address(caller), nil
}

func callerAndAmount(c *fiber.Ctx) (ledger.Address, *uint256.Int, error) {
	caller, err := callerParam(c)
	if err != nil {
		return "", nil, err
	}
	var req AmountRequest
	if err := c.BodyParser(&req); err != nil {
		return "", nil, fiber.NewError(http.StatusBadRequest, err.Error())
	}
	amount, err := req.Amount()
	if err != nil {
		return "", nil, apiError(err)
	}
	return caller, amount, nil
}

// loanIDParam only rejects non-numeric ids. Numeric slots past the two a
// borrower owns reach the ledger and read as empty.
func loanIDParam(c *fiber.Ctx) (uint8, error) {
	id, err := strconv.ParseUint(c.Params("loanId"), 10, 8)
	if err != nil {
		return 0, apiError(ledger.ErrInvalidLoanID)
	}
	return uint8(id), nil
}
