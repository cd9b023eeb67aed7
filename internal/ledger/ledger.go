package ledger

import (
	"context"
	"errors"

	"github.com/holiman/uint256"
)

var (
	// ErrAmountCanNotBeNull is returned when lend or borrow is called with a zero amount.
	ErrAmountCanNotBeNull = errors.New("amount can not be null")

	// ErrNotEnoughFundsInContract is returned when a borrow exceeds the pool balance.
	ErrNotEnoughFundsInContract = errors.New("not enough funds in contract")

	// ErrMax2LoansAllowed is returned when the borrower already holds two active loans.
	ErrMax2LoansAllowed = errors.New("max 2 loans allowed")

	// ErrLoanMustExist is returned when a repayment targets a slot without an active loan.
	ErrLoanMustExist = errors.New("loan must exist")

	// ErrExactDebtMustBePaid is returned when a repayment differs from the loan's total debt.
	ErrExactDebtMustBePaid = errors.New("exact debt must be paid")

	// ErrUnauthorized is returned when a caller with a zero balance tries to withdraw.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrOverflow is returned when an amount would push a balance past 2^256-1.
	ErrOverflow = errors.New("amount overflows 256 bits")

	// ErrInvalidLoanID is returned for loan slots other than 0 and 1.
	ErrInvalidLoanID = errors.New("invalid loan id")

	// ErrLenderIndexOutOfRange is returned by LenderAt for positions past the registry end.
	ErrLenderIndexOutOfRange = errors.New("lender index out of range")
)

const (
	// MaxLoansPerBorrower is the number of loan slots each borrower owns.
	MaxLoansPerBorrower = 2

	// RateDecimals is the fixed-point precision of the interest rate.
	RateDecimals = 18
)

// RateScale is 1e18, the denominator of the fixed-point interest rate.
var RateScale = uint256.NewInt(1_000_000_000_000_000_000)

// Address is the opaque identifier of a lender or borrower.
type Address string

// LenderShare is one lender's slice of a borrow or repayment.
type LenderShare struct {
	Lender Address
	Amount *uint256.Int
}

// LendReceipt captures the outcome of a deposit.
type LendReceipt struct {
	Lender      Address
	Amount      *uint256.Int
	Balance     *uint256.Int
	NewLender   bool
	PoolBalance *uint256.Int
}

// BorrowReceipt captures the outcome of a loan issuance.
type BorrowReceipt struct {
	Borrower    Address
	LoanID      uint8
	Principal   *uint256.Int
	Interest    *uint256.Int
	TotalDebt   *uint256.Int
	Deductions  []LenderShare
	DebtShares  []LenderShare
	PoolBalance *uint256.Int
}

// RepayReceipt captures the outcome of a loan repayment.
type RepayReceipt struct {
	Borrower Address
	LoanID   uint8
	Amount   *uint256.Int
	Credits  []LenderShare
	// Retained is the part of the payment not attributed to any lender because of
	// rounding at borrow time. It stays in the pool's custody.
	Retained    *uint256.Int
	PoolBalance *uint256.Int
}

// WithdrawReceipt captures the outcome of a full withdrawal.
type WithdrawReceipt struct {
	Lender      Address
	Amount      *uint256.Int
	PoolBalance *uint256.Int
}

// PoolSummary aggregates the read-only pool figures.
type PoolSummary struct {
	Owner           Address
	InterestRate    *uint256.Int
	PoolBalance     *uint256.Int
	NumberOfLenders int
	ActiveLoans     uint64
}

// Ledger defines the contract implemented by ledger backends (in-memory, Postgres).
// Every mutating call is atomic with respect to all other calls.
type Ledger interface {
	Lend(ctx context.Context, lender Address, amount *uint256.Int) (LendReceipt, error)
	Borrow(ctx context.Context, borrower Address, amount *uint256.Int) (BorrowReceipt, error)
	PayLoan(ctx context.Context, borrower Address, loanID uint8, amount *uint256.Int) (RepayReceipt, error)
	Withdraw(ctx context.Context, lender Address) (WithdrawReceipt, error)

	LenderBalance(ctx context.Context, lender Address) (*uint256.Int, error)
	LenderAt(ctx context.Context, index int) (Address, error)
	Loan(ctx context.Context, borrower Address, loanID uint8) (Loan, error)
	Loans(ctx context.Context, borrower Address) ([]Loan, error)
	LoanDueDebt(ctx context.Context, borrower Address, loanID uint8) (*uint256.Int, error)
	LoanDueDebtToLender(ctx context.Context, borrower Address, loanID uint8, lender Address) (*uint256.Int, error)
	Summary(ctx context.Context) (PoolSummary, error)
}
