package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestLoggerNotifierWritesStructuredRecord(t *testing.T) {
	var buf bytes.Buffer
	n := NewLoggerNotifier(slog.New(slog.NewJSONHandler(&buf, nil)))

	if err := n.Send(context.Background(), Message{Kind: KindLoanRepaid, Destination: "lender-1", Body: "credited"}); err != nil {
		t.Fatalf("send: %v", err)
	}

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if rec["kind"] != KindLoanRepaid || rec["destination"] != "lender-1" {
		t.Fatalf("unexpected record %v", rec)
	}
}

func TestNilNotifierIsNoop(t *testing.T) {
	var n *LoggerNotifier
	if err := n.Send(context.Background(), Message{Kind: KindDeposit}); err != nil {
		t.Fatalf("nil notifier must not fail: %v", err)
	}
}
