package lending

import (
	"time"

	"github.com/holiman/uint256"

	"github.com/peerpool/peerpool/internal/ledger"
)

// AmountRequest carries the value attached to lend, borrow and pay calls.
// Exactly one of the two fields must be set.
type AmountRequest struct {
	AmountWei   string `json:"amount_wei"`
	AmountEther string `json:"amount_ether"`
}

// Amount resolves the request to wei.
func (r AmountRequest) Amount() (*uint256.Int, error) {
	switch {
	case r.AmountWei != "" && r.AmountEther != "":
		return nil, ledger.ErrInvalidAmount
	case r.AmountWei != "":
		return ledger.ParseWei(r.AmountWei)
	case r.AmountEther != "":
		return ledger.ParseEther(r.AmountEther)
	default:
		return nil, ledger.ErrInvalidAmount
	}
}

// AmountView renders a wei amount alongside its ether value.
type AmountView struct {
	Wei   string `json:"wei"`
	Ether string `json:"ether"`
}

func amountView(v *uint256.Int) AmountView {
	if v == nil {
		v = new(uint256.Int)
	}
	return AmountView{Wei: v.Dec(), Ether: ledger.FormatEther(v)}
}

// ShareView is one lender's part of a loan or repayment.
type ShareView struct {
	Lender string     `json:"lender"`
	Amount AmountView `json:"amount"`
}

func shareViews(in []ledger.LenderShare) []ShareView {
	out := make([]ShareView, 0, len(in))
	for _, s := range in {
		out = append(out, ShareView{Lender: string(s.Lender), Amount: amountView(s.Amount)})
	}
	return out
}

// LendResponse is returned by POST /pool/lend.
type LendResponse struct {
	Lender      string     `json:"lender"`
	Amount      AmountView `json:"amount"`
	Balance     AmountView `json:"balance"`
	NewLender   bool       `json:"new_lender"`
	PoolBalance AmountView `json:"pool_balance"`
	Reference   string     `json:"settlement_reference"`
}

// BorrowResponse is returned by POST /pool/borrow.
type BorrowResponse struct {
	Borrower    string      `json:"borrower"`
	LoanID      uint8       `json:"loan_id"`
	Principal   AmountView  `json:"principal"`
	Interest    AmountView  `json:"interest"`
	TotalDebt   AmountView  `json:"total_debt"`
	Deductions  []ShareView `json:"deductions"`
	DebtShares  []ShareView `json:"debt_shares"`
	PoolBalance AmountView  `json:"pool_balance"`
	Reference   string      `json:"settlement_reference"`
}

// RepayResponse is returned by POST /pool/loans/:loanId/pay.
type RepayResponse struct {
	Borrower    string      `json:"borrower"`
	LoanID      uint8       `json:"loan_id"`
	Amount      AmountView  `json:"amount"`
	Credits     []ShareView `json:"credits"`
	Retained    AmountView  `json:"retained"`
	PoolBalance AmountView  `json:"pool_balance"`
	Reference   string      `json:"settlement_reference"`
}

// WithdrawResponse is returned by POST /pool/withdraw.
type WithdrawResponse struct {
	Lender      string     `json:"lender"`
	Amount      AmountView `json:"amount"`
	PoolBalance AmountView `json:"pool_balance"`
	Reference   string     `json:"settlement_reference"`
}

// PoolResponse is returned by GET /pool.
type PoolResponse struct {
	Owner              string     `json:"owner"`
	InterestRate       string     `json:"interest_rate"`
	InterestRatePct    string     `json:"interest_rate_percent"`
	PoolBalance        AmountView `json:"pool_balance"`
	NumberOfLenders    int        `json:"number_of_lenders"`
	ActiveLoansCounter uint64     `json:"active_loans_counter"`
}

// LoanResponse describes one loan slot.
type LoanResponse struct {
	Borrower  string      `json:"borrower"`
	LoanID    uint8       `json:"loan_id"`
	Active    bool        `json:"active"`
	Principal AmountView  `json:"principal"`
	Interest  AmountView  `json:"interest"`
	DueDebt   AmountView  `json:"due_debt"`
	Shares    []ShareView `json:"shares"`
	IssuedAt  time.Time   `json:"issued_at"`
	RepaidAt  *time.Time  `json:"repaid_at,omitempty"`
}

func loanResponse(l ledger.Loan) LoanResponse {
	resp := LoanResponse{
		Borrower:  string(l.Borrower),
		LoanID:    l.ID,
		Active:    l.Active,
		Principal: amountView(l.Principal),
		Interest:  amountView(l.Interest),
		DueDebt:   amountView(l.TotalDebt),
		Shares:    shareViews(l.Shares),
		IssuedAt:  l.IssuedAt,
	}
	if !l.RepaidAt.IsZero() {
		repaid := l.RepaidAt
		resp.RepaidAt = &repaid
	}
	return resp
}
