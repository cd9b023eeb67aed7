package settlement

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// StatusApproved marks a transfer the gateway accepted.
const StatusApproved = "approved"

// ErrTransferDeclined is returned when the gateway refuses to move funds.
var ErrTransferDeclined = errors.New("transfer declined")

// Direction tells which way value moves relative to the pool.
type Direction string

const (
	DirectionIn     Direction = "in"
	DirectionOut    Direction = "out"
	DirectionRefund Direction = "refund"
)

// Transfer describes one movement of value between a party and the pool.
type Transfer struct {
	Party  string
	Amount *uint256.Int
	// Reason is the ledger operation the transfer belongs to (lend, borrow...).
	Reason string
}

// Receipt is the gateway's answer to a transfer request.
type Receipt struct {
	Reference string
	Status    string
}

// Gateway moves value in and out of the pool's custody.
type Gateway interface {
	// Collect takes the value a caller attaches to lend or payLoan.
	Collect(ctx context.Context, t Transfer) (Receipt, error)
	// Disburse pays a borrower on borrow or a lender on withdraw.
	Disburse(ctx context.Context, t Transfer) (Receipt, error)
	// Refund returns collected value when the ledger rejects the operation.
	Refund(ctx context.Context, t Transfer) (Receipt, error)
}

// StaticGateway approves every transfer with a synthetic reference.
type StaticGateway struct{}

func (StaticGateway) Collect(_ context.Context, _ Transfer) (Receipt, error) {
	return Receipt{Reference: uuid.NewString(), Status: StatusApproved}, nil
}

func (StaticGateway) Disburse(_ context.Context, _ Transfer) (Receipt, error) {
	return Receipt{Reference: uuid.NewString(), Status: StatusApproved}, nil
}

func (StaticGateway) Refund(_ context.Context, _ Transfer) (Receipt, error) {
	return Receipt{Reference: uuid.NewString(), Status: StatusApproved}, nil
}

// Entry is one transfer recorded by a RecordingGateway.
type Entry struct {
	Direction Direction
	Transfer  Transfer
	Receipt   Receipt
}

// RecordingGateway approves transfers like StaticGateway and keeps a journal of
// them. Decline, when set, is consulted first and may reject a transfer.
type RecordingGateway struct {
	Decline func(Direction, Transfer) bool

	mu      sync.Mutex
	entries []Entry
}

func (g *RecordingGateway) Collect(_ context.Context, t Transfer) (Receipt, error) {
	return g.record(DirectionIn, t)
}

func (g *RecordingGateway) Disburse(_ context.Context, t Transfer) (Receipt, error) {
	return g.record(DirectionOut, t)
}

func (g *RecordingGateway) Refund(_ context.Context, t Transfer) (Receipt, error) {
	return g.record(DirectionRefund, t)
}

// Entries returns a copy of the journal in call order.
func (g *RecordingGateway) Entries() []Entry {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Entry, len(g.entries))
	copy(out, g.entries)
	return out
}

// Net returns the collected total and the disbursed plus refunded total.
func (g *RecordingGateway) Net() (in, out *uint256.Int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	in, out = new(uint256.Int), new(uint256.Int)
	for _, e := range g.entries {
		if e.Direction == DirectionIn {
			in.Add(in, e.Transfer.Amount)
		} else {
			out.Add(out, e.Transfer.Amount)
		}
	}
	return in, out
}

func (g *RecordingGateway) record(dir Direction, t Transfer) (Receipt, error) {
	if g.Decline != nil && g.Decline(dir, t) {
		return Receipt{}, ErrTransferDeclined
	}
	rec := Receipt{Reference: uuid.NewString(), Status: StatusApproved}
	amount := new(uint256.Int)
	if t.Amount != nil {
		amount.Set(t.Amount)
	}
	t.Amount = amount

	g.mu.Lock()
	g.entries = append(g.entries, Entry{Direction: dir, Transfer: t, Receipt: rec})
	g.mu.Unlock()
	return rec, nil
}
