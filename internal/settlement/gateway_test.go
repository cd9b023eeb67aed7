package settlement

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

func TestStaticGatewayApproves(t *testing.T) {
	var g Gateway = StaticGateway{}
	rec, err := g.Disburse(context.Background(), Transfer{Party: "alice", Amount: uint256.NewInt(5), Reason: "borrow"})
	if err != nil {
		t.Fatalf("disburse: %v", err)
	}
	if rec.Status != StatusApproved {
		t.Fatalf("unexpected status %s", rec.Status)
	}
	if _, err := uuid.Parse(rec.Reference); err != nil {
		t.Fatalf("reference is not a uuid: %v", err)
	}
}

func TestRecordingGatewayJournal(t *testing.T) {
	ctx := context.Background()
	g := &RecordingGateway{
		Decline: func(dir Direction, tr Transfer) bool {
			return dir == DirectionOut && tr.Party == "mallory"
		},
	}

	g.Collect(ctx, Transfer{Party: "alice", Amount: uint256.NewInt(10), Reason: "lend"})
	g.Disburse(ctx, Transfer{Party: "bob", Amount: uint256.NewInt(4), Reason: "borrow"})
	if _, err := g.Disburse(ctx, Transfer{Party: "mallory", Amount: uint256.NewInt(1)}); !errors.Is(err, ErrTransferDeclined) {
		t.Fatalf("expected declined transfer, got %v", err)
	}

	entries := g.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 journal entries, got %d", len(entries))
	}
	if entries[0].Direction != DirectionIn || entries[1].Direction != DirectionOut {
		t.Fatalf("unexpected journal order %+v", entries)
	}
	in, out := g.Net()
	if in.Uint64() != 10 || out.Uint64() != 4 {
		t.Fatalf("unexpected totals in=%s out=%s", in.Dec(), out.Dec())
	}
}
