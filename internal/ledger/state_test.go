package ledger

import (
	"math/rand"
	"testing"

	"github.com/holiman/uint256"
)

func TestRestore_RoundTripsPool(t *testing.T) {
	src := NewPool(deployer, tenPercent())
	src.Lend(deployer, ether(t, "1"))
	src.Lend(user01, ether(t, "2"))
	src.Lend(user03, ether(t, "1"))
	src.Withdraw(user01)
	src.Borrow(user02, ether(t, "0.5"))

	state := State{Owner: src.Owner(), InterestRate: src.InterestRate()}
	for addr := range src.balances {
		state.Accounts = append(state.Accounts, LenderAccount{
			Address:  addr,
			Balance:  src.LenderBalance(addr),
			Position: src.RegistryPosition(addr),
		})
	}
	loan, err := src.Loan(user02, 0)
	if err != nil {
		t.Fatalf("loan: %v", err)
	}
	state.Loans = []Loan{loan}

	got, err := Restore(state)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if !got.Balance().Eq(src.Balance()) {
		t.Fatalf("pool balance: want %s got %s", src.Balance().Dec(), got.Balance().Dec())
	}
	if got.ActiveLoans() != 1 {
		t.Fatalf("expected 1 active loan, got %d", got.ActiveLoans())
	}
	for i, want := range src.Lenders() {
		if addr, _ := got.LenderAt(i); addr != want {
			t.Fatalf("lender %d: want %s got %s", i, want, addr)
		}
	}
	if !got.LoanDueDebtToLender(user02, 0, deployer).Eq(src.LoanDueDebtToLender(user02, 0, deployer)) {
		t.Fatalf("debt share not restored")
	}
	if ch := got.TakeChanges(); len(ch.Lenders) != 0 || len(ch.Loans) != 0 {
		t.Fatalf("restored pool must start clean, got %+v", ch)
	}

	if _, err := got.PayLoan(user02, 0, got.LoanDueDebt(user02, 0)); err != nil {
		t.Fatalf("pay on restored pool: %v", err)
	}
}

func TestRestore_RejectsGapsInRegistry(t *testing.T) {
	_, err := Restore(State{
		Owner:        deployer,
		InterestRate: tenPercent(),
		Accounts: []LenderAccount{
			{Address: deployer, Balance: uint256.NewInt(1), Position: 0},
			{Address: user01, Balance: uint256.NewInt(1), Position: 2},
		},
	})
	if err == nil {
		t.Fatalf("expected error for sparse registry positions")
	}
}

// scopedState mirrors what the Postgres backend loads before a mutation: the
// registered lenders and, for borrower operations, the caller's loan slots.
func scopedState(p *Pool, borrower Address) State {
	state := State{Owner: p.Owner(), InterestRate: p.InterestRate()}
	for i, addr := range p.Lenders() {
		state.Accounts = append(state.Accounts, LenderAccount{Address: addr, Balance: p.LenderBalance(addr), Position: i})
	}
	if borrower != "" {
		state.Loans = p.Loans(borrower)
	}
	return state
}

func TestRestore_ScopedStateReplaysMutations(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	full := NewPool(deployer, tenPercent())
	actors := []Address{deployer, user01, user02, user03, "user04"}

	for i := 0; i < 1_000; i++ {
		who := actors[rng.Intn(len(actors))]
		amount := uint256.NewInt(uint64(rng.Int63n(1_000_000_000) + 1))
		op := rng.Intn(4)
		slot := uint8(rng.Intn(MaxLoansPerBorrower))

		for addr, b := range full.balances {
			if !b.IsZero() && full.RegistryPosition(addr) < 0 {
				t.Fatalf("step %d: unregistered lender %s holds %s", i, addr, b.Dec())
			}
		}

		var borrower Address
		if op == 1 || op == 2 {
			borrower = who
		}
		scoped, err := Restore(scopedState(full, borrower))
		if err != nil {
			t.Fatalf("step %d: restore: %v", i, err)
		}
		full.TakeChanges()

		var fullErr, scopedErr error
		switch op {
		case 0:
			_, fullErr = full.Lend(who, amount)
			_, scopedErr = scoped.Lend(who, amount)
		case 1:
			_, fullErr = full.Borrow(who, amount)
			_, scopedErr = scoped.Borrow(who, amount)
		case 2:
			due := full.LoanDueDebt(who, slot)
			_, fullErr = full.PayLoan(who, slot, due)
			_, scopedErr = scoped.PayLoan(who, slot, due)
		case 3:
			_, fullErr = full.Withdraw(who)
			_, scopedErr = scoped.Withdraw(who)
		}
		if fullErr != scopedErr {
			t.Fatalf("step %d op %d: full err %v, scoped err %v", i, op, fullErr, scopedErr)
		}

		fullChanges, scopedChanges := full.TakeChanges(), scoped.TakeChanges()
		if len(fullChanges.Lenders) != len(scopedChanges.Lenders) || len(fullChanges.Loans) != len(scopedChanges.Loans) {
			t.Fatalf("step %d op %d: change sets differ: %+v vs %+v", i, op, fullChanges, scopedChanges)
		}
		for _, addr := range scopedChanges.Lenders {
			if !scoped.LenderBalance(addr).Eq(full.LenderBalance(addr)) || scoped.RegistryPosition(addr) != full.RegistryPosition(addr) {
				t.Fatalf("step %d op %d: lender %s persisted differently", i, op, addr)
			}
		}
		for _, key := range scopedChanges.Loans {
			if !scoped.LoanDueDebt(key.Borrower, key.ID).Eq(full.LoanDueDebt(key.Borrower, key.ID)) {
				t.Fatalf("step %d op %d: loan %+v persisted differently", i, op, key)
			}
		}
		if !scoped.Balance().Eq(full.Balance()) {
			t.Fatalf("step %d op %d: pool balance %s, want %s", i, op, scoped.Balance().Dec(), full.Balance().Dec())
		}
	}
}
