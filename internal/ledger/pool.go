package ledger

import (
	"fmt"
	"sort"
	"time"

	"github.com/holiman/uint256"
)

// Loan is the record kept in a borrower's slot. Repaid loans stay in their slot,
// inactive with a zero total debt, until a new borrow supersedes them.
type Loan struct {
	Borrower  Address
	ID        uint8
	Principal *uint256.Int
	Interest  *uint256.Int
	TotalDebt *uint256.Int
	// Shares holds the debt attributed to each lender at issuance, in registry order.
	Shares   []LenderShare
	Active   bool
	IssuedAt time.Time
	RepaidAt time.Time
}

// DebtTo returns the share of the loan owed to lender, zero when it has none.
// A repaid loan owes nothing to anyone.
func (l Loan) DebtTo(lender Address) *uint256.Int {
	if !l.Active {
		return new(uint256.Int)
	}
	for _, s := range l.Shares {
		if s.Lender == lender {
			return new(uint256.Int).Set(s.Amount)
		}
	}
	return new(uint256.Int)
}

func (l Loan) clone() Loan {
	out := l
	out.Principal = cloneAmount(l.Principal)
	out.Interest = cloneAmount(l.Interest)
	out.TotalDebt = cloneAmount(l.TotalDebt)
	out.Shares = cloneShares(l.Shares)
	return out
}

// LoanKey identifies a loan slot.
type LoanKey struct {
	Borrower Address
	ID       uint8
}

// Changes lists the lenders and loan slots mutated since the last TakeChanges.
type Changes struct {
	Lenders []Address
	Loans   []LoanKey
}

// Pool is the lending pool aggregate: lender balances, the lender registry, loan
// slots and the immutable interest rate. Pool is not safe for concurrent use;
// backends serialise access to it.
type Pool struct {
	owner       Address
	rate        *uint256.Int
	total       *uint256.Int
	balances    map[Address]*uint256.Int
	lenders     *registry
	loans       map[Address]*[MaxLoansPerBorrower]*Loan
	activeLoans uint64
	now         func() time.Time

	dirtyLenders map[Address]struct{}
	dirtyLoans   map[LoanKey]struct{}
}

// NewPool creates an empty pool owned by owner with the given 1e18-scaled rate.
func NewPool(owner Address, rate *uint256.Int) *Pool {
	p := &Pool{
		owner:        owner,
		rate:         cloneAmount(rate),
		total:        new(uint256.Int),
		balances:     make(map[Address]*uint256.Int),
		lenders:      newRegistry(),
		loans:        make(map[Address]*[MaxLoansPerBorrower]*Loan),
		now:          func() time.Time { return time.Now().UTC() },
		dirtyLenders: make(map[Address]struct{}),
		dirtyLoans:   make(map[LoanKey]struct{}),
	}
	return p
}

// Owner returns the administrator identity fixed at construction.
func (p *Pool) Owner() Address { return p.owner }

// InterestRate returns the 1e18-scaled interest rate.
func (p *Pool) InterestRate() *uint256.Int { return cloneAmount(p.rate) }

// Balance returns the pool balance, the sum of all lender balances.
func (p *Pool) Balance() *uint256.Int { return cloneAmount(p.total) }

// NumberOfLenders returns the size of the lender registry.
func (p *Pool) NumberOfLenders() int { return p.lenders.Len() }

// ActiveLoans returns the number of loans currently outstanding.
func (p *Pool) ActiveLoans() uint64 { return p.activeLoans }

// LenderBalance returns the balance held for lender.
func (p *Pool) LenderBalance(lender Address) *uint256.Int {
	return cloneAmount(p.balances[lender])
}

// LenderAt returns the lender registered at position index.
func (p *Pool) LenderAt(index int) (Address, error) {
	addr, ok := p.lenders.At(index)
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrLenderIndexOutOfRange, index)
	}
	return addr, nil
}

// Lenders returns the registered lenders in registry order.
func (p *Pool) Lenders() []Address { return p.lenders.Snapshot() }

// Loan returns the record held in the borrower's slot.
func (p *Pool) Loan(borrower Address, loanID uint8) (Loan, error) {
	l := p.slot(borrower, loanID)
	if l == nil {
		return Loan{}, ErrLoanMustExist
	}
	return l.clone(), nil
}

// Loans returns every slot the borrower has ever used, active or repaid.
func (p *Pool) Loans(borrower Address) []Loan {
	var out []Loan
	if slots, ok := p.loans[borrower]; ok {
		for _, l := range slots {
			if l != nil {
				out = append(out, l.clone())
			}
		}
	}
	return out
}

// LoanDueDebt returns the total debt of a loan; zero for repaid or unknown slots.
func (p *Pool) LoanDueDebt(borrower Address, loanID uint8) *uint256.Int {
	l := p.slot(borrower, loanID)
	if l == nil {
		return new(uint256.Int)
	}
	return cloneAmount(l.TotalDebt)
}

// LoanDueDebtToLender returns the part of a loan's debt attributed to lender.
func (p *Pool) LoanDueDebtToLender(borrower Address, loanID uint8, lender Address) *uint256.Int {
	l := p.slot(borrower, loanID)
	if l == nil {
		return new(uint256.Int)
	}
	return l.DebtTo(lender)
}

// Summary returns the pool-wide read-only figures.
func (p *Pool) Summary() PoolSummary {
	return PoolSummary{
		Owner:           p.owner,
		InterestRate:    p.InterestRate(),
		PoolBalance:     p.Balance(),
		NumberOfLenders: p.lenders.Len(),
		ActiveLoans:     p.activeLoans,
	}
}

// Lend deposits amount for lender, registering the lender on first deposit.
func (p *Pool) Lend(lender Address, amount *uint256.Int) (LendReceipt, error) {
	if amount == nil || amount.IsZero() {
		return LendReceipt{}, ErrAmountCanNotBeNull
	}
	total, overflow := new(uint256.Int).AddOverflow(p.total, amount)
	if overflow {
		return LendReceipt{}, ErrOverflow
	}

	balance := new(uint256.Int).Add(p.balanceOf(lender), amount)
	p.balances[lender] = balance
	p.total = total
	added := p.lenders.Add(lender)
	p.touchLender(lender)

	return LendReceipt{
		Lender:      lender,
		Amount:      cloneAmount(amount),
		Balance:     cloneAmount(balance),
		NewLender:   added,
		PoolBalance: cloneAmount(total),
	}, nil
}

// Borrow issues a loan of amount to borrower, drawing from every registered
// lender in proportion to their balance before the loan.
func (p *Pool) Borrow(borrower Address, amount *uint256.Int) (BorrowReceipt, error) {
	if amount == nil || amount.IsZero() {
		return BorrowReceipt{}, ErrAmountCanNotBeNull
	}
	if amount.Gt(p.total) {
		return BorrowReceipt{}, ErrNotEnoughFundsInContract
	}
	slotID, ok := p.freeSlot(borrower)
	if !ok {
		return BorrowReceipt{}, ErrMax2LoansAllowed
	}

	interest, overflow := new(uint256.Int).MulDivOverflow(amount, p.rate, RateScale)
	if overflow {
		return BorrowReceipt{}, ErrOverflow
	}
	totalDebt, overflow := new(uint256.Int).AddOverflow(amount, interest)
	if overflow {
		return BorrowReceipt{}, ErrOverflow
	}

	// Every share is computed against the pre-loan snapshot before any balance moves.
	snapshot := cloneAmount(p.total)
	var (
		deductions []LenderShare
		shares     []LenderShare
		drawn      = new(uint256.Int)
	)
	for _, lender := range p.lenders.Snapshot() {
		b := p.balanceOf(lender)
		if b.IsZero() {
			continue
		}
		fromLender, _ := new(uint256.Int).MulDivOverflow(amount, b, snapshot)
		debt, _ := new(uint256.Int).MulDivOverflow(totalDebt, b, snapshot)
		if !fromLender.IsZero() {
			deductions = append(deductions, LenderShare{Lender: lender, Amount: fromLender})
			drawn.Add(drawn, fromLender)
		}
		if !debt.IsZero() {
			shares = append(shares, LenderShare{Lender: lender, Amount: debt})
		}
	}

	for _, d := range deductions {
		p.balances[d.Lender] = new(uint256.Int).Sub(p.balances[d.Lender], d.Amount)
		p.touchLender(d.Lender)
	}
	p.total = new(uint256.Int).Sub(p.total, drawn)

	loan := &Loan{
		Borrower:  borrower,
		ID:        slotID,
		Principal: cloneAmount(amount),
		Interest:  interest,
		TotalDebt: totalDebt,
		Shares:    shares,
		Active:    true,
		IssuedAt:  p.now(),
	}
	p.setSlot(loan)
	p.activeLoans++

	return BorrowReceipt{
		Borrower:    borrower,
		LoanID:      slotID,
		Principal:   cloneAmount(amount),
		Interest:    cloneAmount(interest),
		TotalDebt:   cloneAmount(totalDebt),
		Deductions:  cloneShares(deductions),
		DebtShares:  cloneShares(shares),
		PoolBalance: cloneAmount(p.total),
	}, nil
}

// PayLoan settles the borrower's loan in slot loanID. Only the exact total debt
// is accepted; each lender is credited the share recorded at issuance.
func (p *Pool) PayLoan(borrower Address, loanID uint8, amount *uint256.Int) (RepayReceipt, error) {
	loan := p.slot(borrower, loanID)
	if loan == nil || !loan.Active {
		return RepayReceipt{}, ErrLoanMustExist
	}
	if amount == nil || !amount.Eq(loan.TotalDebt) {
		return RepayReceipt{}, ErrExactDebtMustBePaid
	}

	credited := new(uint256.Int)
	for _, s := range loan.Shares {
		credited.Add(credited, s.Amount)
	}
	total, overflow := new(uint256.Int).AddOverflow(p.total, credited)
	if overflow {
		return RepayReceipt{}, ErrOverflow
	}

	for _, s := range loan.Shares {
		p.balances[s.Lender] = new(uint256.Int).Add(p.balanceOf(s.Lender), s.Amount)
		// A lender who withdrew while the loan was out rejoins once paid back.
		p.lenders.Add(s.Lender)
		p.touchLender(s.Lender)
	}
	p.total = total

	credits := cloneShares(loan.Shares)
	loan.Active = false
	loan.TotalDebt = new(uint256.Int)
	loan.RepaidAt = p.now()
	p.touchLoan(loan)
	p.activeLoans--

	return RepayReceipt{
		Borrower:    borrower,
		LoanID:      loanID,
		Amount:      cloneAmount(amount),
		Credits:     credits,
		Retained:    new(uint256.Int).Sub(amount, credited),
		PoolBalance: cloneAmount(p.total),
	}, nil
}

// Withdraw pays out the lender's whole balance and removes them from the registry.
func (p *Pool) Withdraw(lender Address) (WithdrawReceipt, error) {
	balance := p.balanceOf(lender)
	if balance.IsZero() {
		return WithdrawReceipt{}, ErrUnauthorized
	}

	p.balances[lender] = new(uint256.Int)
	p.total = new(uint256.Int).Sub(p.total, balance)
	if moved, ok := p.lenders.Remove(lender); ok {
		p.touchLender(moved)
	}
	p.touchLender(lender)

	return WithdrawReceipt{
		Lender:      lender,
		Amount:      cloneAmount(balance),
		PoolBalance: cloneAmount(p.total),
	}, nil
}

// TakeChanges returns and resets the set of lenders and loans mutated so far.
// Lists are sorted so persistence writes rows in a stable order.
func (p *Pool) TakeChanges() Changes {
	var ch Changes
	for addr := range p.dirtyLenders {
		ch.Lenders = append(ch.Lenders, addr)
	}
	for key := range p.dirtyLoans {
		ch.Loans = append(ch.Loans, key)
	}
	sort.Slice(ch.Lenders, func(i, j int) bool { return ch.Lenders[i] < ch.Lenders[j] })
	sort.Slice(ch.Loans, func(i, j int) bool {
		if ch.Loans[i].Borrower != ch.Loans[j].Borrower {
			return ch.Loans[i].Borrower < ch.Loans[j].Borrower
		}
		return ch.Loans[i].ID < ch.Loans[j].ID
	})
	p.dirtyLenders = make(map[Address]struct{})
	p.dirtyLoans = make(map[LoanKey]struct{})
	return ch
}

// RegistryPosition reports the lender's slot in the registry, -1 if absent.
func (p *Pool) RegistryPosition(lender Address) int { return p.lenders.Position(lender) }

func (p *Pool) balanceOf(addr Address) *uint256.Int {
	if b, ok := p.balances[addr]; ok {
		return b
	}
	return new(uint256.Int)
}

func (p *Pool) slot(borrower Address, loanID uint8) *Loan {
	if loanID >= MaxLoansPerBorrower {
		return nil
	}
	slots, ok := p.loans[borrower]
	if !ok {
		return nil
	}
	return slots[loanID]
}

func (p *Pool) freeSlot(borrower Address) (uint8, bool) {
	slots, ok := p.loans[borrower]
	if !ok {
		return 0, true
	}
	for i, l := range slots {
		if l == nil || !l.Active {
			return uint8(i), true
		}
	}
	return 0, false
}

func (p *Pool) setSlot(l *Loan) {
	slots, ok := p.loans[l.Borrower]
	if !ok {
		slots = new([MaxLoansPerBorrower]*Loan)
		p.loans[l.Borrower] = slots
	}
	slots[l.ID] = l
	p.touchLoan(l)
}

func (p *Pool) touchLender(addr Address) { p.dirtyLenders[addr] = struct{}{} }

func (p *Pool) touchLoan(l *Loan) {
	p.dirtyLoans[LoanKey{Borrower: l.Borrower, ID: l.ID}] = struct{}{}
}

func cloneAmount(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(v)
}

func cloneShares(in []LenderShare) []LenderShare {
	if in == nil {
		return nil
	}
	out := make([]LenderShare, len(in))
	for i, s := range in {
		out[i] = LenderShare{Lender: s.Lender, Amount: cloneAmount(s.Amount)}
	}
	return out
}
