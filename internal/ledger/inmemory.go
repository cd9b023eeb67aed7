package ledger

import (
	"context"
	"sync"

	"github.com/holiman/uint256"
)

type inMemoryLedger struct {
	mu   sync.RWMutex
	pool *Pool
}

// NewInMemory creates a concurrency-safe in-memory ledger, used in development
// and unit tests.
func NewInMemory(owner Address, rate *uint256.Int) Ledger {
	return &inMemoryLedger{pool: NewPool(owner, rate)}
}

func (l *inMemoryLedger) Lend(_ context.Context, lender Address, amount *uint256.Int) (LendReceipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	res, err := l.pool.Lend(lender, amount)
	l.pool.TakeChanges()
	return res, err
}

func (l *inMemoryLedger) Borrow(_ context.Context, borrower Address, amount *uint256.Int) (BorrowReceipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	res, err := l.pool.Borrow(borrower, amount)
	l.pool.TakeChanges()
	return res, err
}

func (l *inMemoryLedger) PayLoan(_ context.Context, borrower Address, loanID uint8, amount *uint256.Int) (RepayReceipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	res, err := l.pool.PayLoan(borrower, loanID, amount)
	l.pool.TakeChanges()
	return res, err
}

func (l *inMemoryLedger) Withdraw(_ context.Context, lender Address) (WithdrawReceipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	res, err := l.pool.Withdraw(lender)
	l.pool.TakeChanges()
	return res, err
}

func (l *inMemoryLedger) LenderBalance(_ context.Context, lender Address) (*uint256.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.pool.LenderBalance(lender), nil
}

func (l *inMemoryLedger) LenderAt(_ context.Context, index int) (Address, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.pool.LenderAt(index)
}

func (l *inMemoryLedger) Loan(_ context.Context, borrower Address, loanID uint8) (Loan, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.pool.Loan(borrower, loanID)
}

func (l *inMemoryLedger) Loans(_ context.Context, borrower Address) ([]Loan, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.pool.Loans(borrower), nil
}

func (l *inMemoryLedger) LoanDueDebt(_ context.Context, borrower Address, loanID uint8) (*uint256.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.pool.LoanDueDebt(borrower, loanID), nil
}

func (l *inMemoryLedger) LoanDueDebtToLender(_ context.Context, borrower Address, loanID uint8, lender Address) (*uint256.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.pool.LoanDueDebtToLender(borrower, loanID, lender), nil
}

func (l *inMemoryLedger) Summary(_ context.Context) (PoolSummary, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.pool.Summary(), nil
}
