package identity

import "time"

// Account is a caller of the pool. Its ID is the address the ledger books
// deposits, loans and withdrawals against.
type Account struct {
	ID           string
	Handle       string
	SecretHash   []byte
	TokenVersion int
	CreatedAt    time.Time
	LastLogin    *time.Time
}

// Credentials request structure.
type Credentials struct {
	Handle string
	Secret string
}
