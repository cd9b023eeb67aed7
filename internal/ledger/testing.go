package ledger

import "github.com/holiman/uint256"

// SumBalances is a test helper returning the pool balance and the sum of every
// lender balance ever recorded when using the in-memory ledger.
func SumBalances(l Ledger) (pool, sum *uint256.Int) {
	mem, ok := l.(*inMemoryLedger)
	if !ok {
		return nil, nil
	}
	mem.mu.RLock()
	defer mem.mu.RUnlock()
	sum = new(uint256.Int)
	for _, b := range mem.pool.balances {
		sum.Add(sum, b)
	}
	return mem.pool.Balance(), sum
}
