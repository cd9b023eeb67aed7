package notification

import (
	"context"
	"log/slog"
)

const (
	// KindDeposit is sent to a lender after a successful lend.
	KindDeposit = "deposit"
	// KindLoanIssued is sent to a borrower once the loan is disbursed.
	KindLoanIssued = "loan_issued"
	// KindLoanRepaid is sent to each lender credited by a repayment.
	KindLoanRepaid = "loan_repaid"
	// KindWithdrawal is sent to a lender after a full withdrawal.
	KindWithdrawal = "withdrawal"
)

// Message describes a notification payload.
type Message struct {
	Kind        string
	Destination string
	Body        string
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier is a stub implementation that writes notifications to the logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier stub.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(ctx context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.InfoContext(ctx, "notification",
		slog.String("kind", message.Kind),
		slog.String("destination", message.Destination),
		slog.String("body", message.Body),
	)
	return nil
}
