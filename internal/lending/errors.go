package lending

import (
	"errors"
	"net/http"

	"github.com/peerpool/peerpool/internal/ledger"
)

// Error is an API failure with a stable machine-readable code.
type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string { return e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
func (e *Error) StatusCode() int { return e.Status }
func (e *Error) ErrorCode() string { return e.Code }

var errorTable = []struct {
	err    error
	status int
	code   string
}{
	{ledger.ErrAmountCanNotBeNull, http.StatusBadRequest, "AmountCanNotBeNull"},
	{ledger.ErrNotEnoughFundsInContract, http.StatusConflict, "NotEnoughFundsInContract"},
	{ledger.ErrMax2LoansAllowed, http.StatusConflict, "Max2LoansAllowed"},
	{ledger.ErrLoanMustExist, http.StatusNotFound, "LoanMustExist"},
	{ledger.ErrExactDebtMustBePaid, http.StatusBadRequest, "ExactDebtMustBePaid"},
	{ledger.ErrUnauthorized, http.StatusForbidden, "Unauthorized"},
	{ledger.ErrOverflow, http.StatusBadRequest, "Overflow"},
	{ledger.ErrInvalidAmount, http.StatusBadRequest, "InvalidAmount"},
	{ledger.ErrInvalidLoanID, http.StatusBadRequest, "InvalidLoanId"},
	{ledger.ErrLenderIndexOutOfRange, http.StatusNotFound, "LenderIndexOutOfRange"},
	{ErrCollectFailed, http.StatusPaymentRequired, "CollectFailed"},
	{ErrDisbursementFailed, http.StatusBadGateway, "DisbursementFailed"},
}

func apiError(err error) error {
	for _, e := range errorTable {
		if errors.Is(err, e.err) {
			return &Error{Status: e.status, Code: e.code, Err: err}
		}
	}
	return &Error{Status: http.StatusInternalServerError, Code: "InternalError", Err: err}
}
