package ledger

import (
	"fmt"
	"sort"

	"github.com/holiman/uint256"
)

// LenderAccount is the persisted form of a lender. Position is the registry slot,
// or -1 for accounts that are no longer registered.
type LenderAccount struct {
	Address  Address
	Balance  *uint256.Int
	Position int
}

// State is everything needed to rebuild a Pool from storage.
type State struct {
	Owner        Address
	InterestRate *uint256.Int
	Accounts     []LenderAccount
	Loans        []Loan
}

// Restore rebuilds a pool from a persisted state, checking that registry
// positions are dense and that the stored loans fit their slots.
func Restore(s State) (*Pool, error) {
	p := NewPool(s.Owner, s.InterestRate)

	registered := make([]LenderAccount, 0, len(s.Accounts))
	for _, acct := range s.Accounts {
		balance := cloneAmount(acct.Balance)
		total, overflow := new(uint256.Int).AddOverflow(p.total, balance)
		if overflow {
			return nil, fmt.Errorf("restore lender %s: %w", acct.Address, ErrOverflow)
		}
		p.total = total
		p.balances[acct.Address] = balance
		if acct.Position >= 0 {
			registered = append(registered, acct)
		}
	}
	sort.Slice(registered, func(i, j int) bool { return registered[i].Position < registered[j].Position })
	for i, acct := range registered {
		if acct.Position != i {
			return nil, fmt.Errorf("restore lender %s: registry position %d, want %d", acct.Address, acct.Position, i)
		}
		p.lenders.Add(acct.Address)
	}

	for _, l := range s.Loans {
		if l.ID >= MaxLoansPerBorrower {
			return nil, fmt.Errorf("restore loan %s/%d: %w", l.Borrower, l.ID, ErrInvalidLoanID)
		}
		loan := l.clone()
		p.setSlot(&loan)
		if loan.Active {
			p.activeLoans++
		}
	}

	p.TakeChanges()
	return p, nil
}
