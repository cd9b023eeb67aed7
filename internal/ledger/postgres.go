package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS pool_config (
        id SMALLINT PRIMARY KEY CHECK (id = 1),
        owner TEXT NOT NULL,
        interest_rate NUMERIC(78, 0) NOT NULL,
        created_at TIMESTAMPTZ NOT NULL DEFAULT now()
    )`,
	`CREATE TABLE IF NOT EXISTS pool_lenders (
        address TEXT PRIMARY KEY,
        balance NUMERIC(78, 0) NOT NULL DEFAULT 0,
        registry_position INT NULL,
        updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
        CONSTRAINT pool_lenders_position_unique UNIQUE (registry_position) DEFERRABLE INITIALLY DEFERRED
    )`,
	`CREATE TABLE IF NOT EXISTS pool_loans (
        borrower TEXT NOT NULL,
        slot SMALLINT NOT NULL CHECK (slot IN (0, 1)),
        principal NUMERIC(78, 0) NOT NULL,
        interest NUMERIC(78, 0) NOT NULL,
        total_debt NUMERIC(78, 0) NOT NULL,
        active BOOLEAN NOT NULL,
        issued_at TIMESTAMPTZ NOT NULL,
        repaid_at TIMESTAMPTZ NULL,
        PRIMARY KEY (borrower, slot)
    )`,
	`CREATE TABLE IF NOT EXISTS pool_loan_shares (
        borrower TEXT NOT NULL,
        slot SMALLINT NOT NULL,
        lender TEXT NOT NULL,
        ordinal INT NOT NULL,
        debt NUMERIC(78, 0) NOT NULL,
        PRIMARY KEY (borrower, slot, lender),
        FOREIGN KEY (borrower, slot) REFERENCES pool_loans (borrower, slot) ON DELETE CASCADE
    )`,
	`CREATE INDEX IF NOT EXISTS pool_lenders_registered_idx ON pool_lenders (registry_position)
        WHERE registry_position IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS pool_loans_active_idx ON pool_loans (borrower) WHERE active`,
	`CREATE TABLE IF NOT EXISTS pool_operations (
        id UUID PRIMARY KEY,
        kind TEXT NOT NULL,
        actor TEXT NOT NULL,
        amount NUMERIC(78, 0) NOT NULL,
        loan_slot SMALLINT NULL,
        created_at TIMESTAMPTZ NOT NULL DEFAULT now()
    )`,
}

// Migrate creates the ledger tables when they do not exist yet.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate ledger schema: %w", err)
		}
	}
	return nil
}

// PostgresLedger persists the pool in PostgreSQL. Each call locks the single
// pool_config row, so operations are serialised exactly like the in-memory ledger.
type PostgresLedger struct {
	db *pgxpool.Pool
}

// NewPostgresLedger constructs a Postgres-backed ledger. The owner and rate are
// written on first start only; later starts keep the stored values.
func NewPostgresLedger(ctx context.Context, db *pgxpool.Pool, owner Address, rate *uint256.Int) (*PostgresLedger, error) {
	_, err := db.Exec(ctx, `INSERT INTO pool_config (id, owner, interest_rate) VALUES (1, $1, $2::numeric)
        ON CONFLICT (id) DO NOTHING`, string(owner), cloneAmount(rate).Dec())
	if err != nil {
		return nil, fmt.Errorf("init pool config: %w", err)
	}
	return &PostgresLedger{db: db}, nil
}

// Lend records a deposit.
func (l *PostgresLedger) Lend(ctx context.Context, lender Address, amount *uint256.Int) (LendReceipt, error) {
	var res LendReceipt
	err := l.mutate(ctx, loadScope{}, func(p *Pool) (operation, error) {
		var err error
		res, err = p.Lend(lender, amount)
		return operation{kind: "lend", actor: lender, amount: res.Amount}, err
	})
	return res, err
}

// Borrow records a loan issuance.
func (l *PostgresLedger) Borrow(ctx context.Context, borrower Address, amount *uint256.Int) (BorrowReceipt, error) {
	var res BorrowReceipt
	err := l.mutate(ctx, loadScope{borrower: borrower}, func(p *Pool) (operation, error) {
		var err error
		res, err = p.Borrow(borrower, amount)
		slot := res.LoanID
		return operation{kind: "borrow", actor: borrower, amount: res.Principal, slot: &slot}, err
	})
	return res, err
}

// PayLoan records a loan repayment.
func (l *PostgresLedger) PayLoan(ctx context.Context, borrower Address, loanID uint8, amount *uint256.Int) (RepayReceipt, error) {
	var res RepayReceipt
	err := l.mutate(ctx, loadScope{borrower: borrower}, func(p *Pool) (operation, error) {
		var err error
		res, err = p.PayLoan(borrower, loanID, amount)
		return operation{kind: "pay_loan", actor: borrower, amount: res.Amount, slot: &loanID}, err
	})
	return res, err
}

// Withdraw records a full withdrawal.
func (l *PostgresLedger) Withdraw(ctx context.Context, lender Address) (WithdrawReceipt, error) {
	var res WithdrawReceipt
	err := l.mutate(ctx, loadScope{}, func(p *Pool) (operation, error) {
		var err error
		res, err = p.Withdraw(lender)
		return operation{kind: "withdraw", actor: lender, amount: res.Amount}, err
	})
	return res, err
}

// LenderBalance returns the stored balance of lender, zero if unknown.
func (l *PostgresLedger) LenderBalance(ctx context.Context, lender Address) (*uint256.Int, error) {
	var raw string
	err := l.db.QueryRow(ctx, `SELECT balance::text FROM pool_lenders WHERE address = $1`, string(lender)).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return new(uint256.Int), nil
		}
		return nil, err
	}
	return uint256.FromDecimal(raw)
}

// LenderAt returns the lender registered at index.
func (l *PostgresLedger) LenderAt(ctx context.Context, index int) (Address, error) {
	var addr string
	err := l.db.QueryRow(ctx, `SELECT address FROM pool_lenders WHERE registry_position = $1`, index).Scan(&addr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("%w: %d", ErrLenderIndexOutOfRange, index)
		}
		return "", err
	}
	return Address(addr), nil
}

// Loan returns the record held in a borrower's slot.
func (l *PostgresLedger) Loan(ctx context.Context, borrower Address, loanID uint8) (Loan, error) {
	loans, err := l.Loans(ctx, borrower)
	if err != nil {
		return Loan{}, err
	}
	for _, loan := range loans {
		if loan.ID == loanID {
			return loan, nil
		}
	}
	return Loan{}, ErrLoanMustExist
}

// Loans returns every loan slot the borrower has used.
func (l *PostgresLedger) Loans(ctx context.Context, borrower Address) ([]Loan, error) {
	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly, IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	return loadLoans(ctx, tx, borrower)
}

// LoanDueDebt returns the total debt outstanding on a loan.
func (l *PostgresLedger) LoanDueDebt(ctx context.Context, borrower Address, loanID uint8) (*uint256.Int, error) {
	var raw string
	err := l.db.QueryRow(ctx, `SELECT total_debt::text FROM pool_loans WHERE borrower = $1 AND slot = $2`,
		string(borrower), int16(loanID)).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return new(uint256.Int), nil
		}
		return nil, err
	}
	return uint256.FromDecimal(raw)
}

// LoanDueDebtToLender returns the part of a loan's debt owed to lender.
func (l *PostgresLedger) LoanDueDebtToLender(ctx context.Context, borrower Address, loanID uint8, lender Address) (*uint256.Int, error) {
	var raw string
	err := l.db.QueryRow(ctx, `SELECT s.debt::text FROM pool_loan_shares s
        JOIN pool_loans l ON l.borrower = s.borrower AND l.slot = s.slot
        WHERE s.borrower = $1 AND s.slot = $2 AND s.lender = $3 AND l.active`,
		string(borrower), int16(loanID), string(lender)).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return new(uint256.Int), nil
		}
		return nil, err
	}
	return uint256.FromDecimal(raw)
}

// Summary returns the pool-wide figures.
func (l *PostgresLedger) Summary(ctx context.Context) (PoolSummary, error) {
	var (
		owner, rateRaw, balanceRaw string
		lenders, active            int64
	)
	err := l.db.QueryRow(ctx, `SELECT c.owner, c.interest_rate::text,
            (SELECT COALESCE(SUM(balance), 0)::text FROM pool_lenders WHERE registry_position IS NOT NULL),
            (SELECT COUNT(*) FROM pool_lenders WHERE registry_position IS NOT NULL),
            (SELECT COUNT(*) FROM pool_loans WHERE active)
        FROM pool_config c WHERE c.id = 1`).Scan(&owner, &rateRaw, &balanceRaw, &lenders, &active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PoolSummary{}, fmt.Errorf("pool config not initialised")
		}
		return PoolSummary{}, err
	}
	rate, err := uint256.FromDecimal(rateRaw)
	if err != nil {
		return PoolSummary{}, fmt.Errorf("decode interest rate: %w", err)
	}
	balance, err := uint256.FromDecimal(balanceRaw)
	if err != nil {
		return PoolSummary{}, fmt.Errorf("decode pool balance: %w", err)
	}
	return PoolSummary{
		Owner:           Address(owner),
		InterestRate:    rate,
		PoolBalance:     balance,
		NumberOfLenders: int(lenders),
		ActiveLoans:     uint64(active),
	}, nil
}

type operation struct {
	kind   string
	actor  Address
	amount *uint256.Int
	slot   *uint8
}

// loadScope is the slice of the pool a mutation reads: every registered lender
// and, when borrower is set, that borrower's loan slots. Lenders outside the
// registry always hold a zero balance, so nothing they own is needed.
// The restored pool's active loan counter only covers the loaded slots and is
// never persisted.
type loadScope struct {
	borrower Address
}

func (l *PostgresLedger) mutate(ctx context.Context, scope loadScope, fn func(p *Pool) (operation, error)) error {
	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	p, err := loadPool(ctx, tx, scope)
	if err != nil {
		return err
	}
	op, err := fn(p)
	if err != nil {
		return err
	}
	if err := persist(ctx, tx, p, p.TakeChanges(), op); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func loadPool(ctx context.Context, tx pgx.Tx, scope loadScope) (*Pool, error) {
	var (
		owner   string
		rateRaw string
	)
	err := tx.QueryRow(ctx, `SELECT owner, interest_rate::text FROM pool_config WHERE id = 1 FOR UPDATE`).
		Scan(&owner, &rateRaw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("pool config not initialised")
		}
		return nil, err
	}
	rate, err := uint256.FromDecimal(rateRaw)
	if err != nil {
		return nil, fmt.Errorf("decode interest rate: %w", err)
	}

	state := State{Owner: Address(owner), InterestRate: rate}
	if state.Accounts, err = loadRegisteredLenders(ctx, tx); err != nil {
		return nil, err
	}
	if scope.borrower != "" {
		if state.Loans, err = loadLoans(ctx, tx, scope.borrower); err != nil {
			return nil, err
		}
	}
	return Restore(state)
}

func loadRegisteredLenders(ctx context.Context, tx pgx.Tx) ([]LenderAccount, error) {
	rows, err := tx.Query(ctx, `SELECT address, balance::text, registry_position FROM pool_lenders
        WHERE registry_position IS NOT NULL`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LenderAccount
	for rows.Next() {
		var (
			addr     string
			raw      string
			position int32
		)
		if err := rows.Scan(&addr, &raw, &position); err != nil {
			return nil, err
		}
		balance, err := uint256.FromDecimal(raw)
		if err != nil {
			return nil, fmt.Errorf("decode balance of %s: %w", addr, err)
		}
		out = append(out, LenderAccount{Address: Address(addr), Balance: balance, Position: int(position)})
	}
	return out, rows.Err()
}

// loadLoans returns the borrower's used slots, at most MaxLoansPerBorrower rows.
func loadLoans(ctx context.Context, tx pgx.Tx, borrower Address) ([]Loan, error) {
	rows, err := tx.Query(ctx, `SELECT slot, principal::text, interest::text, total_debt::text,
        active, issued_at, repaid_at FROM pool_loans WHERE borrower = $1 ORDER BY slot`, string(borrower))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Loan
	for rows.Next() {
		var (
			slot                           int16
			principal, interest, totalDebt string
			loan                           Loan
			repaidAt                       *time.Time
		)
		if err := rows.Scan(&slot, &principal, &interest, &totalDebt, &loan.Active, &loan.IssuedAt, &repaidAt); err != nil {
			return nil, err
		}
		loan.Borrower = borrower
		loan.ID = uint8(slot)
		if loan.Principal, err = uint256.FromDecimal(principal); err != nil {
			return nil, fmt.Errorf("decode principal: %w", err)
		}
		if loan.Interest, err = uint256.FromDecimal(interest); err != nil {
			return nil, fmt.Errorf("decode interest: %w", err)
		}
		if loan.TotalDebt, err = uint256.FromDecimal(totalDebt); err != nil {
			return nil, fmt.Errorf("decode total debt: %w", err)
		}
		if repaidAt != nil {
			loan.RepaidAt = repaidAt.UTC()
		}
		loan.IssuedAt = loan.IssuedAt.UTC()
		out = append(out, loan)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	shareRows, err := tx.Query(ctx, `SELECT slot, lender, debt::text FROM pool_loan_shares
        WHERE borrower = $1 ORDER BY slot, ordinal`, string(borrower))
	if err != nil {
		return nil, err
	}
	defer shareRows.Close()
	for shareRows.Next() {
		var (
			lender, raw string
			slot        int16
		)
		if err := shareRows.Scan(&slot, &lender, &raw); err != nil {
			return nil, err
		}
		debt, err := uint256.FromDecimal(raw)
		if err != nil {
			return nil, fmt.Errorf("decode debt share: %w", err)
		}
		for i := range out {
			if out[i].ID == uint8(slot) {
				out[i].Shares = append(out[i].Shares, LenderShare{Lender: Address(lender), Amount: debt})
			}
		}
	}
	return out, shareRows.Err()
}

func persist(ctx context.Context, tx pgx.Tx, p *Pool, ch Changes, op operation) error {
	batch := &pgx.Batch{}
	for _, addr := range ch.Lenders {
		var position *int32
		if pos := p.RegistryPosition(addr); pos >= 0 {
			v := int32(pos)
			position = &v
		}
		batch.Queue(`INSERT INTO pool_lenders (address, balance, registry_position, updated_at)
            VALUES ($1, $2::numeric, $3, now())
            ON CONFLICT (address) DO UPDATE SET balance = EXCLUDED.balance,
                registry_position = EXCLUDED.registry_position, updated_at = now()`,
			string(addr), p.LenderBalance(addr).Dec(), position)
	}
	for _, key := range ch.Loans {
		loan, err := p.Loan(key.Borrower, key.ID)
		if err != nil {
			return err
		}
		var repaidAt *time.Time
		if !loan.RepaidAt.IsZero() {
			repaidAt = &loan.RepaidAt
		}
		batch.Queue(`INSERT INTO pool_loans (borrower, slot, principal, interest, total_debt, active, issued_at, repaid_at)
            VALUES ($1, $2, $3::numeric, $4::numeric, $5::numeric, $6, $7, $8)
            ON CONFLICT (borrower, slot) DO UPDATE SET principal = EXCLUDED.principal,
                interest = EXCLUDED.interest, total_debt = EXCLUDED.total_debt, active = EXCLUDED.active,
                issued_at = EXCLUDED.issued_at, repaid_at = EXCLUDED.repaid_at`,
			string(key.Borrower), int16(key.ID), loan.Principal.Dec(), loan.Interest.Dec(),
			loan.TotalDebt.Dec(), loan.Active, loan.IssuedAt, repaidAt)
		if !loan.Active {
			continue
		}
		// A freshly issued loan may reuse a slot; its shares replace the old ones.
		batch.Queue(`DELETE FROM pool_loan_shares WHERE borrower = $1 AND slot = $2`, string(key.Borrower), int16(key.ID))
		for i, s := range loan.Shares {
			batch.Queue(`INSERT INTO pool_loan_shares (borrower, slot, lender, ordinal, debt)
                VALUES ($1, $2, $3, $4, $5::numeric)`,
				string(key.Borrower), int16(key.ID), string(s.Lender), i, s.Amount.Dec())
		}
	}
	var slot *int16
	if op.slot != nil {
		v := int16(*op.slot)
		slot = &v
	}
	batch.Queue(`INSERT INTO pool_operations (id, kind, actor, amount, loan_slot) VALUES ($1, $2, $3, $4::numeric, $5)`,
		uuid.New(), op.kind, string(op.actor), cloneAmount(op.amount).Dec(), slot)

	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("persist ledger changes: %w", err)
		}
	}
	return br.Close()
}
