package lending

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/holiman/uint256"

	"github.com/peerpool/peerpool/internal/ledger"
	"github.com/peerpool/peerpool/internal/notification"
	"github.com/peerpool/peerpool/internal/settlement"
)

var (
	// ErrCollectFailed is returned when the value attached to a call could not be taken in.
	ErrCollectFailed = errors.New("collect failed")
	// ErrDisbursementFailed is returned when the ledger committed but paying out failed.
	ErrDisbursementFailed = errors.New("disbursement failed")
)

// Service runs each pool operation as collect, ledger, disburse, notify. The
// ledger commits before any value leaves the pool.
type Service struct {
	ledger   ledger.Ledger
	gateway  settlement.Gateway
	notifier notification.Notifier
	logger   *slog.Logger
}

// NewService wires a lending service. A nil gateway approves every transfer.
func NewService(l ledger.Ledger, gateway settlement.Gateway, notifier notification.Notifier, logger *slog.Logger) *Service {
	if gateway == nil {
		gateway = settlement.StaticGateway{}
	}
	return &Service{ledger: l, gateway: gateway, notifier: notifier, logger: logger}
}

// LendResult is the outcome of a deposit.
type LendResult struct {
	Receipt   ledger.LendReceipt
	Reference string
	At        time.Time
}

// BorrowResult is the outcome of a loan issuance.
type BorrowResult struct {
	Receipt   ledger.BorrowReceipt
	Reference string
	At        time.Time
}

// RepayResult is the outcome of a repayment.
type RepayResult struct {
	Receipt   ledger.RepayReceipt
	Reference string
	At        time.Time
}

// WithdrawResult is the outcome of a full withdrawal.
type WithdrawResult struct {
	Receipt   ledger.WithdrawReceipt
	Reference string
	At        time.Time
}

// Lend collects amount from caller and books it as a deposit.
func (s *Service) Lend(ctx context.Context, caller ledger.Address, amount *uint256.Int) (LendResult, error) {
	transfer := settlement.Transfer{Party: string(caller), Amount: amount, Reason: "lend"}
	collected, err := s.collect(ctx, transfer)
	if err != nil {
		return LendResult{}, err
	}

	receipt, err := s.ledger.Lend(ctx, caller, amount)
	if err != nil {
		s.refund(ctx, transfer, err)
		return LendResult{}, err
	}

	s.logger.Info("pool.lend",
		slog.String("lender", string(caller)),
		slog.String("amount_wei", amount.Dec()),
		slog.Bool("new_lender", receipt.NewLender),
		slog.String("pool_balance_wei", receipt.PoolBalance.Dec()),
	)
	s.notify(ctx, notification.KindDeposit, caller, fmt.Sprintf("Deposited %s ether, balance %s ether", ledger.FormatEther(amount), ledger.FormatEther(receipt.Balance)))

	return LendResult{Receipt: receipt, Reference: collected.Reference, At: time.Now().UTC()}, nil
}

// Borrow issues a loan to caller and pays the principal out.
func (s *Service) Borrow(ctx context.Context, caller ledger.Address, amount *uint256.Int) (BorrowResult, error) {
	receipt, err := s.ledger.Borrow(ctx, caller, amount)
	if err != nil {
		return BorrowResult{}, err
	}

	s.logger.Info("pool.borrow",
		slog.String("borrower", string(caller)),
		slog.Int("loan_id", int(receipt.LoanID)),
		slog.String("principal_wei", receipt.Principal.Dec()),
		slog.String("total_debt_wei", receipt.TotalDebt.Dec()),
		slog.Int("lenders", len(receipt.DebtShares)),
	)

	paid, err := s.disburse(ctx, settlement.Transfer{Party: string(caller), Amount: receipt.Principal, Reason: "borrow"})
	result := BorrowResult{Receipt: receipt, Reference: paid.Reference, At: time.Now().UTC()}
	if err != nil {
		return result, err
	}

	s.notify(ctx, notification.KindLoanIssued, caller, fmt.Sprintf("Loan %d issued: %s ether, %s ether due", receipt.LoanID, ledger.FormatEther(receipt.Principal), ledger.FormatEther(receipt.TotalDebt)))
	return result, nil
}

// PayLoan collects amount from caller and settles loan loanID with it.
func (s *Service) PayLoan(ctx context.Context, caller ledger.Address, loanID uint8, amount *uint256.Int) (RepayResult, error) {
	transfer := settlement.Transfer{Party: string(caller), Amount: amount, Reason: "pay_loan"}
	collected, err := s.collect(ctx, transfer)
	if err != nil {
		return RepayResult{}, err
	}

	receipt, err := s.ledger.PayLoan(ctx, caller, loanID, amount)
	if err != nil {
		s.refund(ctx, transfer, err)
		return RepayResult{}, err
	}

	s.logger.Info("pool.pay_loan",
		slog.String("borrower", string(caller)),
		slog.Int("loan_id", int(loanID)),
		slog.String("amount_wei", amount.Dec()),
		slog.String("retained_wei", receipt.Retained.Dec()),
		slog.Int("lenders_credited", len(receipt.Credits)),
	)
	for _, credit := range receipt.Credits {
		s.notify(ctx, notification.KindLoanRepaid, credit.Lender, fmt.Sprintf("Loan %d of %s repaid, credited %s ether", loanID, caller, ledger.FormatEther(credit.Amount)))
	}

	return RepayResult{Receipt: receipt, Reference: collected.Reference, At: time.Now().UTC()}, nil
}

// Withdraw pays caller's whole balance out of the pool.
func (s *Service) Withdraw(ctx context.Context, caller ledger.Address) (WithdrawResult, error) {
	receipt, err := s.ledger.Withdraw(ctx, caller)
	if err != nil {
		return WithdrawResult{}, err
	}

	s.logger.Info("pool.withdraw",
		slog.String("lender", string(caller)),
		slog.String("amount_wei", receipt.Amount.Dec()),
		slog.String("pool_balance_wei", receipt.PoolBalance.Dec()),
	)

	paid, err := s.disburse(ctx, settlement.Transfer{Party: string(caller), Amount: receipt.Amount, Reason: "withdraw"})
	result := WithdrawResult{Receipt: receipt, Reference: paid.Reference, At: time.Now().UTC()}
	if err != nil {
		return result, err
	}

	s.notify(ctx, notification.KindWithdrawal, caller, fmt.Sprintf("Withdrew %s ether", ledger.FormatEther(receipt.Amount)))
	return result, nil
}

// Summary returns the pool-wide figures.
func (s *Service) Summary(ctx context.Context) (ledger.PoolSummary, error) {
	return s.ledger.Summary(ctx)
}

// LenderAt returns the lender registered at index.
func (s *Service) LenderAt(ctx context.Context, index int) (ledger.Address, error) {
	return s.ledger.LenderAt(ctx, index)
}

// LenderBalance returns the withdrawable balance of lender.
func (s *Service) LenderBalance(ctx context.Context, lender ledger.Address) (*uint256.Int, error) {
	return s.ledger.LenderBalance(ctx, lender)
}

// Loans returns every slot the borrower has used.
func (s *Service) Loans(ctx context.Context, borrower ledger.Address) ([]ledger.Loan, error) {
	return s.ledger.Loans(ctx, borrower)
}

// Loan returns the record in one of the borrower's slots.
func (s *Service) Loan(ctx context.Context, borrower ledger.Address, loanID uint8) (ledger.Loan, error) {
	return s.ledger.Loan(ctx, borrower, loanID)
}

// LoanDueDebt returns the amount payLoan expects for a loan.
func (s *Service) LoanDueDebt(ctx context.Context, borrower ledger.Address, loanID uint8) (*uint256.Int, error) {
	return s.ledger.LoanDueDebt(ctx, borrower, loanID)
}

// LoanDueDebtToLender returns what a loan owes lender.
func (s *Service) LoanDueDebtToLender(ctx context.Context, borrower ledger.Address, loanID uint8, lender ledger.Address) (*uint256.Int, error) {
	return s.ledger.LoanDueDebtToLender(ctx, borrower, loanID, lender)
}

func (s *Service) collect(ctx context.Context, t settlement.Transfer) (settlement.Receipt, error) {
	rec, err := s.gateway.Collect(ctx, t)
	if err != nil {
		s.logger.Warn("settlement collect failed", slog.String("party", t.Party), slog.String("reason", t.Reason), slog.Any("error", err))
		return settlement.Receipt{}, fmt.Errorf("%w: %w", ErrCollectFailed, err)
	}
	return rec, nil
}

func (s *Service) disburse(ctx context.Context, t settlement.Transfer) (settlement.Receipt, error) {
	rec, err := s.gateway.Disburse(ctx, t)
	if err != nil {
		s.logger.Error("settlement disburse failed after ledger commit",
			slog.String("party", t.Party),
			slog.String("reason", t.Reason),
			slog.String("amount_wei", t.Amount.Dec()),
			slog.Any("error", err),
		)
		return settlement.Receipt{}, fmt.Errorf("%w: %w", ErrDisbursementFailed, err)
	}
	return rec, nil
}

func (s *Service) refund(ctx context.Context, t settlement.Transfer, cause error) {
	if _, err := s.gateway.Refund(ctx, t); err != nil {
		s.logger.Error("settlement refund failed",
			slog.String("party", t.Party),
			slog.String("reason", t.Reason),
			slog.Any("cause", cause),
			slog.Any("error", err),
		)
	}
}

func (s *Service) notify(ctx context.Context, kind string, to ledger.Address, body string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Send(ctx, notification.Message{Kind: kind, Destination: string(to), Body: body}); err != nil {
		s.logger.Warn("notification failed", slog.String("kind", kind), slog.Any("error", err))
	}
}
